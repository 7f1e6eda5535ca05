package model

// AggregateResult is the combined report produced once per successful scan.
// Overall is derived from the four dimension scores and is never set
// independently.
type AggregateResult struct {
	Performance PerformanceSection `json:"performance"`
	SEO         SEOSection         `json:"seo"`
	UX          UXSection          `json:"ux"`
	Security    SecuritySection    `json:"security"`
	Overall     int                `json:"overall"`
	Summary     ReportSummary      `json:"summary"`
}

// PerformanceSection reports the performance dimension. Metrics are the
// first scanned page's metrics, kept for the headline display.
type PerformanceSection struct {
	Score       int          `json:"score"`
	Metrics     PageMetrics  `json:"metrics"`
	Issues      []Issue      `json:"issues"`
	PageResults []PageResult `json:"pageResults"`
}

// SEOSection reports the SEO dimension.
type SEOSection struct {
	Score  int     `json:"score"`
	Issues []Issue `json:"issues"`
}

// UXSection reports the accessibility dimension. Issues are violations
// flattened across all audited pages; Recommendations group them by rule.
type UXSection struct {
	Score           int                  `json:"score"`
	Issues          []FlattenedViolation `json:"issues"`
	Recommendations []string             `json:"recommendations"`
}

// SecuritySection reports the security dimension.
type SecuritySection struct {
	Score           int             `json:"score"`
	Vulnerabilities []Vulnerability `json:"vulnerabilities"`
}

// ReportSummary holds page counts and letter grades for the header line.
type ReportSummary struct {
	TotalPages       int    `json:"totalPages"`
	ScannedPages     int    `json:"scannedPages"`
	PerformanceGrade string `json:"performanceGrade"`
	SEOGrade         string `json:"seoGrade"`
}

// Issue is a generic performance/SEO finding.
type Issue struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Severity    string `json:"severity,omitempty"`
	URL         string `json:"url,omitempty"`
}

// FlattenedViolation is an accessibility violation tagged with the page
// it was found on and a severity derived from its impact.
type FlattenedViolation struct {
	Violation
	URL      string `json:"url"`
	Severity string `json:"severity"`
}

// Vulnerability is one normalized security finding in the final report.
type Vulnerability struct {
	Title       string `json:"title"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Count       int    `json:"count"`
	Impact      int    `json:"impact"`
	Effort      string `json:"effort"`
}
