package model

import "time"

// Shapes exchanged with the audit adapters. The orchestrator depends only
// on these structures, not on how an adapter produces them, so adapters
// are swappable for any engine that can fill them in.

// CrawlResult is the crawler adapter output.
type CrawlResult struct {
	Endpoints []string `json:"endpoints"`
}

// PerformanceInput bounds a performance/SEO audit run.
type PerformanceInput struct {
	Endpoints []string `json:"endpoints"`
	BatchSize int      `json:"batchSize"`

	// OutputTarget is where the adapter should write its raw snapshot.
	// Empty disables the write; a failed write must not fail the audit.
	OutputTarget string `json:"outputFile,omitempty"`
}

// PerformanceReport is the performance/SEO adapter output.
type PerformanceReport struct {
	Summary     *PerformanceSummary `json:"summary"`
	PageResults []PageResult        `json:"pageResults"`
	Issues      PerformanceIssues   `json:"issues"`
}

// PerformanceSummary carries the adapter's own 0-100 scores and grades.
type PerformanceSummary struct {
	OverallPerformanceScore int    `json:"overallPerformanceScore"`
	OverallSeoScore         int    `json:"overallSeoScore"`
	PerformanceGrade        string `json:"performanceGrade"`
	SeoGrade                string `json:"seoGrade"`
}

// PerformanceIssues splits findings by dimension.
type PerformanceIssues struct {
	Performance []Issue `json:"performance"`
	Seo         []Issue `json:"seo"`
}

// PageResult is one audited page with its lab metrics.
type PageResult struct {
	URL              string      `json:"url"`
	PerformanceScore int         `json:"performanceScore"`
	SeoScore         int         `json:"seoScore"`
	Metrics          PageMetrics `json:"metrics"`
	Error            string      `json:"error,omitempty"`
}

// PageMetrics are lab timing metrics in milliseconds (CLS is unitless).
type PageMetrics struct {
	FirstContentfulPaint   float64 `json:"firstContentfulPaint"`
	LargestContentfulPaint float64 `json:"largestContentfulPaint"`
	TotalBlockingTime      float64 `json:"totalBlockingTime"`
	CumulativeLayoutShift  float64 `json:"cumulativeLayoutShift"`
	SpeedIndex             float64 `json:"speedIndex"`
}

// AccessibilityInput bounds an accessibility audit run.
type AccessibilityInput struct {
	ScanID    string   `json:"scan_id"`
	Endpoints []string `json:"endpoints"`
}

// AccessibilityReport is the accessibility adapter output.
type AccessibilityReport struct {
	Results []PageAudit `json:"results"`
}

// PageAuditCompleted marks a page whose audit ran to completion; only
// completed pages contribute to the UX score.
const PageAuditCompleted = "completed"

// PageAudit is one page's accessibility outcome.
type PageAudit struct {
	URL                string      `json:"url"`
	Status             string      `json:"status"`
	AccessibilityScore int         `json:"accessibility_score"`
	Violations         []Violation `json:"violations"`
	Error              string      `json:"error,omitempty"`
}

// Violation is a single accessibility rule violation.
type Violation struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	HelpURL     string `json:"helpUrl,omitempty"`
	Impact      string `json:"impact,omitempty"`
}

// SecurityInput bounds a security audit run.
type SecurityInput struct {
	Endpoints    []string        `json:"endpoints"`
	OutputTarget string          `json:"outputFile,omitempty"`
	Options      SecurityOptions `json:"options"`
}

// SecurityOptions tune the security adapter.
type SecurityOptions struct {
	MaxDepth        int           `json:"maxDepth"`
	Timeout         time.Duration `json:"timeout"`
	PassiveScanOnly bool          `json:"passiveScanOnly"`
	BatchSize       int           `json:"batchSize"`
}

// SecurityReport is the security adapter output.
type SecurityReport struct {
	Summary  *SecuritySummary  `json:"summary"`
	Websites []WebsiteFindings `json:"websites"`
}

// SecuritySummary aggregates findings across all scanned sites.
type SecuritySummary struct {
	RiskDistribution   RiskDistribution   `json:"riskDistribution"`
	TopVulnerabilities []TopVulnerability `json:"topVulnerabilities"`
}

// RiskDistribution counts findings per risk level.
type RiskDistribution struct {
	High          int `json:"high"`
	Medium        int `json:"medium"`
	Low           int `json:"low"`
	Informational int `json:"informational"`
}

// TopVulnerability is a precomputed, deduplicated finding.
type TopVulnerability struct {
	Title       string `json:"title"`
	Risk        string `json:"risk"`
	Occurrences int    `json:"occurrences"`
	Impact      int    `json:"impact,omitempty"`
	Effort      string `json:"effort,omitempty"`
}

// WebsiteFindings holds the raw per-site issue list.
type WebsiteFindings struct {
	URL    string          `json:"url"`
	Issues []SecurityIssue `json:"issues"`
}

// SecurityIssue is a single raw security finding on one site.
type SecurityIssue struct {
	Title       string `json:"title"`
	Risk        string `json:"risk"`
	Description string `json:"description,omitempty"`
	Impact      int    `json:"impact,omitempty"`
	Effort      string `json:"effort,omitempty"`
}
