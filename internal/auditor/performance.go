// Package auditor provides the built-in reference implementations of the
// performance/SEO, accessibility and security audit contracts. Each one
// is a lab approximation: good enough to audit real sites end to end,
// and swappable for a heavier engine behind the same contract.
package auditor

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/sitesense/sitesense/internal/logging"
	"github.com/sitesense/sitesense/internal/model"
	"github.com/sitesense/sitesense/internal/normalizer"
	"github.com/sitesense/sitesense/internal/snapshot"
	"github.com/sitesense/sitesense/internal/webclient"
)

// PerformanceAuditor measures page load timing through the webclient
// (use the chromedp backend to include render time) and runs static SEO
// rules over the fetched DOM.
type PerformanceAuditor struct {
	wc     webclient.WebClient
	logger logging.Logger
}

func NewPerformanceAuditor(wc webclient.WebClient, logger logging.Logger) *PerformanceAuditor {
	return &PerformanceAuditor{
		wc:     wc,
		logger: logger.With(logging.Field{Key: "component", Value: "auditor.performance"}),
	}
}

// Audit runs all endpoints in batches of input.BatchSize and aggregates
// per-page scores into the summary. The raw report is written to
// input.OutputTarget; a failed write is logged and does not fail the audit.
func (a *PerformanceAuditor) Audit(ctx context.Context, input model.PerformanceInput) (*model.PerformanceReport, error) {
	batchSize := input.BatchSize
	if batchSize <= 0 {
		batchSize = 3
	}

	pages := make([]model.PageResult, len(input.Endpoints))
	seoIssues := make([][]model.Issue, len(input.Endpoints))
	for start := 0; start < len(input.Endpoints); start += batchSize {
		end := start + batchSize
		if end > len(input.Endpoints) {
			end = len(input.Endpoints)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				pages[i], seoIssues[i] = a.auditPage(ctx, input.Endpoints[i])
			}(i)
		}
		wg.Wait()

		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	report := a.summarize(pages, seoIssues)

	if input.OutputTarget != "" {
		if err := snapshot.WriteMarshaled(input.OutputTarget, report); err != nil {
			a.logger.Warn("writing performance snapshot",
				logging.Field{Key: "path", Value: input.OutputTarget},
				logging.Field{Key: "error", Value: err.Error()})
		}
	}

	return report, nil
}

func (a *PerformanceAuditor) auditPage(ctx context.Context, url string) (model.PageResult, []model.Issue) {
	start := time.Now()
	resp, err := a.wc.Get(ctx, url)
	if err != nil {
		a.logger.Warn("page fetch failed",
			logging.Field{Key: "url", Value: url},
			logging.Field{Key: "error", Value: err.Error()})
		return model.PageResult{URL: url, Error: err.Error()}, nil
	}
	loadMs := float64(time.Since(start).Milliseconds())

	result := model.PageResult{
		URL: url,
		// Timing approximations derived from the full load; the chromedp
		// backend's load includes render and network idle.
		Metrics: model.PageMetrics{
			FirstContentfulPaint:   loadMs * 0.6,
			LargestContentfulPaint: loadMs,
			TotalBlockingTime:      loadMs * 0.1,
			CumulativeLayoutShift:  0,
			SpeedIndex:             loadMs * 0.8,
		},
		PerformanceScore: timingScore(loadMs, float64(len(resp.Body))),
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(resp.Body)))
	if err != nil {
		result.Error = err.Error()
		return result, nil
	}
	score, issues := seoChecks(doc, url)
	result.SeoScore = score
	return result, issues
}

// timingScore maps load time and page weight to 0-100. Thresholds loosely
// follow the usual lab buckets: under ~1.2s is good, over ~6s is failing.
func timingScore(loadMs, bodyBytes float64) int {
	score := 100
	switch {
	case loadMs > 6000:
		score -= 60
	case loadMs > 3000:
		score -= 40
	case loadMs > 1800:
		score -= 20
	case loadMs > 1200:
		score -= 10
	}
	if bodyBytes > 2_000_000 {
		score -= 15
	} else if bodyBytes > 500_000 {
		score -= 5
	}
	if score < 0 {
		score = 0
	}
	return score
}

type seoRule struct {
	title       string
	description string
	severity    string
	failed      func(doc *goquery.Document) bool
}

var seoRules = []seoRule{
	{
		title:       "Missing page title",
		description: "Every page should have a unique, descriptive <title> element.",
		severity:    "high",
		failed: func(doc *goquery.Document) bool {
			return strings.TrimSpace(doc.Find("head title").First().Text()) == ""
		},
	},
	{
		title:       "Missing meta description",
		description: "Add a <meta name=\"description\"> so search engines can build a useful snippet.",
		severity:    "medium",
		failed: func(doc *goquery.Document) bool {
			desc, _ := doc.Find(`head meta[name="description"]`).First().Attr("content")
			return strings.TrimSpace(desc) == ""
		},
	},
	{
		title:       "Missing or multiple h1 headings",
		description: "Pages should have exactly one <h1> describing their content.",
		severity:    "low",
		failed: func(doc *goquery.Document) bool {
			return doc.Find("h1").Length() != 1
		},
	},
	{
		title:       "Missing viewport meta tag",
		description: "Without a viewport meta tag the page is not mobile friendly.",
		severity:    "medium",
		failed: func(doc *goquery.Document) bool {
			return doc.Find(`head meta[name="viewport"]`).Length() == 0
		},
	},
	{
		title:       "Links without descriptive text",
		description: "Anchor elements should contain text so crawlers understand the link target.",
		severity:    "low",
		failed: func(doc *goquery.Document) bool {
			bad := false
			doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
				if strings.TrimSpace(s.Text()) == "" && s.Find("img[alt]").Length() == 0 {
					bad = true
					return false
				}
				return true
			})
			return bad
		},
	},
}

// seoChecks runs the rule table and returns the page score plus issues.
func seoChecks(doc *goquery.Document, url string) (int, []model.Issue) {
	score := 100
	var issues []model.Issue
	for _, rule := range seoRules {
		if !rule.failed(doc) {
			continue
		}
		switch rule.severity {
		case "high":
			score -= 25
		case "medium":
			score -= 15
		default:
			score -= 5
		}
		issues = append(issues, model.Issue{
			Title:       rule.title,
			Description: rule.description,
			Severity:    rule.severity,
			URL:         url,
		})
	}
	if score < 0 {
		score = 0
	}
	return score, issues
}

func (a *PerformanceAuditor) summarize(pages []model.PageResult, seoIssues [][]model.Issue) *model.PerformanceReport {
	report := &model.PerformanceReport{
		PageResults: pages,
		Issues:      model.PerformanceIssues{Performance: []model.Issue{}, Seo: []model.Issue{}},
	}

	perfSum, seoSum, audited := 0, 0, 0
	for i, p := range pages {
		if p.Error != "" {
			continue
		}
		perfSum += p.PerformanceScore
		seoSum += p.SeoScore
		audited++
		report.Issues.Seo = append(report.Issues.Seo, seoIssues[i]...)

		m := p.Metrics
		if m.LargestContentfulPaint > 3000 {
			report.Issues.Performance = append(report.Issues.Performance, model.Issue{
				Title:       "Slow largest contentful paint",
				Description: "The main content takes too long to render.",
				Severity:    "high",
				URL:         p.URL,
			})
		} else if m.LargestContentfulPaint > 1800 {
			report.Issues.Performance = append(report.Issues.Performance, model.Issue{
				Title:    "Largest contentful paint needs improvement",
				Severity: "medium",
				URL:      p.URL,
			})
		}
	}

	perfScore, seoScore := 0, 0
	if audited > 0 {
		perfScore = perfSum / audited
		seoScore = seoSum / audited
	}

	report.Summary = &model.PerformanceSummary{
		OverallPerformanceScore: perfScore,
		OverallSeoScore:         seoScore,
		PerformanceGrade:        normalizer.Grade(perfScore),
		SeoGrade:                normalizer.Grade(seoScore),
	}
	return report
}
