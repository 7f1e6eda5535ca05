package auditor

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sitesense/sitesense/internal/logging"
	"github.com/sitesense/sitesense/internal/model"
	"github.com/sitesense/sitesense/internal/webclient"
)

// AccessibilityAuditor runs axe-style static rules over each page's DOM.
// It only covers what static analysis can see; rules needing computed
// styles (contrast, focus order) are out of reach without a browser
// accessibility tree.
type AccessibilityAuditor struct {
	wc     webclient.WebClient
	logger logging.Logger
}

func NewAccessibilityAuditor(wc webclient.WebClient, logger logging.Logger) *AccessibilityAuditor {
	return &AccessibilityAuditor{
		wc:     wc,
		logger: logger.With(logging.Field{Key: "component", Value: "auditor.accessibility"}),
	}
}

type a11yRule struct {
	id          string
	description string
	helpURL     string
	impact      string
	// count returns how many elements violate the rule.
	count func(doc *goquery.Document) int
}

var a11yRules = []a11yRule{
	{
		id:          "image-alt",
		description: "Images must have alternate text",
		helpURL:     "https://dequeuniversity.com/rules/axe/4.7/image-alt",
		impact:      "critical",
		count: func(doc *goquery.Document) int {
			n := 0
			doc.Find("img").Each(func(_ int, s *goquery.Selection) {
				if _, ok := s.Attr("alt"); !ok {
					n++
				}
			})
			return n
		},
	},
	{
		id:          "html-has-lang",
		description: "<html> element must have a lang attribute",
		helpURL:     "https://dequeuniversity.com/rules/axe/4.7/html-has-lang",
		impact:      "serious",
		count: func(doc *goquery.Document) int {
			lang, _ := doc.Find("html").First().Attr("lang")
			if strings.TrimSpace(lang) == "" {
				return 1
			}
			return 0
		},
	},
	{
		id:          "document-title",
		description: "Documents must have a title element",
		helpURL:     "https://dequeuniversity.com/rules/axe/4.7/document-title",
		impact:      "serious",
		count: func(doc *goquery.Document) int {
			if strings.TrimSpace(doc.Find("head title").First().Text()) == "" {
				return 1
			}
			return 0
		},
	},
	{
		id:          "label",
		description: "Form elements must have labels",
		helpURL:     "https://dequeuniversity.com/rules/axe/4.7/label",
		impact:      "critical",
		count: func(doc *goquery.Document) int {
			n := 0
			doc.Find("input:not([type=hidden]):not([type=submit]):not([type=button]), select, textarea").Each(func(_ int, s *goquery.Selection) {
				if _, ok := s.Attr("aria-label"); ok {
					return
				}
				if _, ok := s.Attr("aria-labelledby"); ok {
					return
				}
				if id, ok := s.Attr("id"); ok {
					if doc.Find("label[for='" + id + "']").Length() > 0 {
						return
					}
				}
				if s.ParentsFiltered("label").Length() > 0 {
					return
				}
				n++
			})
			return n
		},
	},
	{
		id:          "link-name",
		description: "Links must have discernible text",
		helpURL:     "https://dequeuniversity.com/rules/axe/4.7/link-name",
		impact:      "serious",
		count: func(doc *goquery.Document) int {
			n := 0
			doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
				if strings.TrimSpace(s.Text()) != "" {
					return
				}
				if _, ok := s.Attr("aria-label"); ok {
					return
				}
				if s.Find("img[alt]").Length() > 0 {
					return
				}
				n++
			})
			return n
		},
	},
	{
		id:          "meta-viewport",
		description: "Zooming and scaling must not be disabled",
		helpURL:     "https://dequeuniversity.com/rules/axe/4.7/meta-viewport",
		impact:      "moderate",
		count: func(doc *goquery.Document) int {
			content, _ := doc.Find(`head meta[name="viewport"]`).First().Attr("content")
			if strings.Contains(content, "user-scalable=no") || strings.Contains(content, "maximum-scale=1") {
				return 1
			}
			return 0
		},
	},
}

func impactWeight(impact string) int {
	switch impact {
	case "critical":
		return 15
	case "serious":
		return 10
	case "moderate":
		return 5
	default:
		return 2
	}
}

// Audit checks every endpoint. Pages that fail to fetch are reported
// with an error status and excluded from scoring downstream.
func (a *AccessibilityAuditor) Audit(ctx context.Context, input model.AccessibilityInput) (*model.AccessibilityReport, error) {
	report := &model.AccessibilityReport{Results: make([]model.PageAudit, 0, len(input.Endpoints))}

	for _, url := range input.Endpoints {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		report.Results = append(report.Results, a.auditPage(ctx, url))
	}

	a.logger.Info("accessibility audit complete",
		logging.Field{Key: "scan_id", Value: input.ScanID},
		logging.Field{Key: "pages", Value: len(report.Results)})
	return report, nil
}

func (a *AccessibilityAuditor) auditPage(ctx context.Context, url string) model.PageAudit {
	resp, err := a.wc.Get(ctx, url)
	if err != nil {
		return model.PageAudit{URL: url, Status: "error", Error: err.Error()}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(resp.Body)))
	if err != nil {
		return model.PageAudit{URL: url, Status: "error", Error: err.Error()}
	}

	audit := model.PageAudit{
		URL:        url,
		Status:     model.PageAuditCompleted,
		Violations: []model.Violation{},
	}

	score := 100
	for _, rule := range a11yRules {
		n := rule.count(doc)
		if n == 0 {
			continue
		}
		score -= impactWeight(rule.impact) * n
		for i := 0; i < n; i++ {
			audit.Violations = append(audit.Violations, model.Violation{
				ID:          rule.id,
				Description: rule.description,
				HelpURL:     rule.helpURL,
				Impact:      rule.impact,
			})
		}
	}
	if score < 0 {
		score = 0
	}
	audit.AccessibilityScore = score
	return audit
}
