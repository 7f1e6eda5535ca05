// Package normalizer converts each audit adapter's raw output into the
// comparable {score 0-100, issues} shape of the final report. Every rule
// here operates purely on one adapter's output; no I/O.
package normalizer

import (
	"fmt"
	"math"
	"strings"

	"github.com/sitesense/sitesense/internal/model"
)

const maxVulnerabilities = 15

// ProcessUX normalizes an accessibility report. The score is the average
// accessibility_score over completed pages (0 when none completed);
// violations are flattened across pages and grouped by rule id into
// human-readable recommendations.
func ProcessUX(report *model.AccessibilityReport) model.UXSection {
	out := model.UXSection{
		Issues:          []model.FlattenedViolation{},
		Recommendations: []string{},
	}
	if report == nil || report.Results == nil {
		return out
	}

	totalScore := 0
	completed := 0
	for _, page := range report.Results {
		if page.Status != model.PageAuditCompleted {
			continue
		}
		totalScore += page.AccessibilityScore
		completed++

		for _, v := range page.Violations {
			severity := v.Impact
			if severity == "" {
				severity = "minor"
			}
			out.Issues = append(out.Issues, model.FlattenedViolation{
				Violation: v,
				URL:       page.URL,
				Severity:  severity,
			})
		}
	}

	if completed > 0 {
		out.Score = round(float64(totalScore) / float64(completed))
	}

	// Group violations by rule id, preserving first-seen order.
	type ruleGroup struct {
		description string
		count       int
		pages       map[string]struct{}
	}
	groups := make(map[string]*ruleGroup)
	var order []string
	for _, v := range out.Issues {
		g, ok := groups[v.ID]
		if !ok {
			g = &ruleGroup{description: v.Description, pages: make(map[string]struct{})}
			groups[v.ID] = g
			order = append(order, v.ID)
		}
		g.count++
		g.pages[v.URL] = struct{}{}
	}
	for _, id := range order {
		g := groups[id]
		out.Recommendations = append(out.Recommendations,
			fmt.Sprintf("%s (%d instances across %d pages)", g.description, g.count, len(g.pages)))
	}

	return out
}

// ProcessSecurity normalizes a security report. Scoring starts at 100
// and deducts per finding severity (high -15, medium -5, low -2);
// informational findings never affect the score or the list.
func ProcessSecurity(report *model.SecurityReport) model.SecuritySection {
	out := model.SecuritySection{Vulnerabilities: []model.Vulnerability{}}
	if report == nil || report.Summary == nil {
		return out
	}

	risks := report.Summary.RiskDistribution
	score := 100 - risks.High*15 - risks.Medium*5 - risks.Low*2
	out.Score = clamp(score, 0, 100)

	// Prefer the precomputed top-vulnerabilities summary.
	for _, vuln := range report.Summary.TopVulnerabilities {
		if informational(vuln.Risk) {
			continue
		}
		if len(out.Vulnerabilities) >= maxVulnerabilities {
			break
		}
		out.Vulnerabilities = append(out.Vulnerabilities, model.Vulnerability{
			Title:       vuln.Title,
			Severity:    severityOf(vuln.Risk),
			Description: vuln.Title,
			Count:       defaultInt(vuln.Occurrences, 1),
			Impact:      defaultInt(vuln.Impact, 5),
			Effort:      defaultStr(vuln.Effort, "Medium"),
		})
	}

	// Fall back to raw per-site issue lists, capped per site.
	if len(out.Vulnerabilities) == 0 {
		for _, site := range report.Websites {
			taken := 0
			for _, issue := range site.Issues {
				if issue.Risk == "" || informational(issue.Risk) {
					continue
				}
				if taken >= maxVulnerabilities {
					break
				}
				taken++
				out.Vulnerabilities = append(out.Vulnerabilities, model.Vulnerability{
					Title:       issue.Title,
					Severity:    severityOf(issue.Risk),
					Description: defaultStr(issue.Description, issue.Title),
					Count:       1,
					Impact:      defaultInt(issue.Impact, 5),
					Effort:      defaultStr(issue.Effort, "Medium"),
				})
			}
		}
	}

	return out
}

// OverallScore is the rounded arithmetic mean of the given dimension
// scores, skipping absent (nil) dimensions entirely. All absent yields 0.
func OverallScore(scores ...*int) int {
	sum := 0
	n := 0
	for _, s := range scores {
		if s == nil {
			continue
		}
		sum += *s
		n++
	}
	if n == 0 {
		return 0
	}
	return round(float64(sum) / float64(n))
}

// Grade maps a 0-100 score to a letter grade.
func Grade(score int) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}

// BuildAggregate combines the three raw reports into the final result.
// scannedPages is the endpoint cap actually applied to the page audits.
func BuildAggregate(endpoints []string, scannedPages int, perf *model.PerformanceReport, ux *model.AccessibilityReport, sec *model.SecurityReport) *model.AggregateResult {
	perfScore := 0
	seoScore := 0
	perfGrade := "F"
	seoGrade := "F"
	if perf != nil && perf.Summary != nil {
		perfScore = perf.Summary.OverallPerformanceScore
		seoScore = perf.Summary.OverallSeoScore
		perfGrade = defaultStr(perf.Summary.PerformanceGrade, "F")
		seoGrade = defaultStr(perf.Summary.SeoGrade, "F")
	}

	perfSection := model.PerformanceSection{
		Score:       perfScore,
		Issues:      []model.Issue{},
		PageResults: []model.PageResult{},
	}
	seoSection := model.SEOSection{Score: seoScore, Issues: []model.Issue{}}
	if perf != nil {
		if len(perf.PageResults) > 0 {
			perfSection.Metrics = perf.PageResults[0].Metrics
			perfSection.PageResults = perf.PageResults
		}
		if perf.Issues.Performance != nil {
			perfSection.Issues = perf.Issues.Performance
		}
		if perf.Issues.Seo != nil {
			seoSection.Issues = perf.Issues.Seo
		}
	}

	uxSection := ProcessUX(ux)
	secSection := ProcessSecurity(sec)

	overall := OverallScore(&perfScore, &seoScore, &uxSection.Score, &secSection.Score)

	if scannedPages > len(endpoints) {
		scannedPages = len(endpoints)
	}

	return &model.AggregateResult{
		Performance: perfSection,
		SEO:         seoSection,
		UX:          uxSection,
		Security:    secSection,
		Overall:     overall,
		Summary: model.ReportSummary{
			TotalPages:       len(endpoints),
			ScannedPages:     scannedPages,
			PerformanceGrade: perfGrade,
			SEOGrade:         seoGrade,
		},
	}
}

func informational(risk string) bool {
	return strings.EqualFold(risk, "informational")
}

func severityOf(risk string) string {
	if risk == "" {
		return "medium"
	}
	return strings.ToLower(risk)
}

func round(f float64) int {
	return int(math.Round(f))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func defaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func defaultStr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
