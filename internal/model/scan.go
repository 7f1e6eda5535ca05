package model

import "time"

// ScanStatus is the lifecycle state of a scan record. Records are
// created scanning and transition to success or error; the two terminal
// states are never left once entered.
type ScanStatus string

const (
	ScanScanning ScanStatus = "scanning"
	ScanSuccess  ScanStatus = "success"
	ScanError    ScanStatus = "error"
)

// Terminal reports whether the status is one of the two end states.
func (s ScanStatus) Terminal() bool {
	return s == ScanSuccess || s == ScanError
}

// ScanRecord is one submitted audit target and everything known about it.
// Exactly one of Results/Error is set once the record is terminal;
// neither is set while the scan is still running.
type ScanRecord struct {
	// ID is unique and monotonically increasing, assigned at creation.
	ID int64 `json:"id"`

	// URL is the validated absolute target URL.
	URL string `json:"url"`

	// CreatedAt is set once at creation and never changes.
	CreatedAt time.Time `json:"timestamp"`

	Status   ScanStatus `json:"status"`
	Progress int        `json:"progress"`

	// Results holds the aggregated report, present iff Status == success.
	Results *AggregateResult `json:"results"`

	// Error holds the terminal failure message, present iff Status == error.
	Error string `json:"error,omitempty"`

	// Snapshots lists per-stage artifact paths written so far. Entries
	// survive a later stage failure; they are debugging aids, not results.
	Snapshots []string `json:"snapshots,omitempty"`
}

// Clone returns a copy safe to hand to readers while the owning scan
// task keeps mutating the original.
func (r *ScanRecord) Clone() *ScanRecord {
	if r == nil {
		return nil
	}
	out := *r
	if r.Snapshots != nil {
		out.Snapshots = append([]string(nil), r.Snapshots...)
	}
	return &out
}

// ScanSummary is the listing shape: record metadata plus only the five
// scores when the scan finished successfully.
type ScanSummary struct {
	ID        int64         `json:"id"`
	URL       string        `json:"url"`
	CreatedAt time.Time     `json:"timestamp"`
	Status    ScanStatus    `json:"status"`
	Progress  int           `json:"progress"`
	Results   *ScoreSummary `json:"results"`
}

// ScoreSummary carries just the dimension scores for listings.
type ScoreSummary struct {
	Overall     int            `json:"overall"`
	Performance DimensionScore `json:"performance"`
	SEO         DimensionScore `json:"seo"`
	UX          DimensionScore `json:"ux"`
	Security    DimensionScore `json:"security"`
}

// DimensionScore wraps a single 0-100 score.
type DimensionScore struct {
	Score int `json:"score"`
}

// Summarize reduces a record to its listing shape.
func (r *ScanRecord) Summarize() ScanSummary {
	s := ScanSummary{
		ID:        r.ID,
		URL:       r.URL,
		CreatedAt: r.CreatedAt,
		Status:    r.Status,
		Progress:  r.Progress,
	}
	if r.Results != nil {
		s.Results = &ScoreSummary{
			Overall:     r.Results.Overall,
			Performance: DimensionScore{Score: r.Results.Performance.Score},
			SEO:         DimensionScore{Score: r.Results.SEO.Score},
			UX:          DimensionScore{Score: r.Results.UX.Score},
			Security:    DimensionScore{Score: r.Results.Security.Score},
		}
	}
	return s
}
