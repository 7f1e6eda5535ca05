package orchestrator

import "time"

// Config bounds one scan's pipeline. Caps keep the heavyweight external
// engines (headless browser, probing) from fanning out over large sites.
type Config struct {
	// CrawlDepth is the maximum link depth followed from the target.
	CrawlDepth int

	// PageAuditLimit caps the endpoints fed to the performance/SEO and
	// accessibility stages.
	PageAuditLimit int

	// SecurityAuditLimit caps the endpoints fed to the security stage.
	// Security scans are slower, so they get fewer pages.
	SecurityAuditLimit int

	// PerformanceBatchSize and SecurityBatchSize are passed through to
	// the respective adapters.
	PerformanceBatchSize int
	SecurityBatchSize    int

	// SecurityTimeout is the security stage's internal budget. It bounds
	// that sub-stage only; there is no full-scan timeout.
	SecurityTimeout time.Duration

	// MaxConcurrentScans caps scans running at once. 0 means unlimited,
	// which matches the original behavior but risks resource exhaustion
	// under load.
	MaxConcurrentScans int
}

// DefaultConfig returns the caps used by the hosted service.
func DefaultConfig() *Config {
	return &Config{
		CrawlDepth:           2,
		PageAuditLimit:       10,
		SecurityAuditLimit:   5,
		PerformanceBatchSize: 3,
		SecurityBatchSize:    2,
		SecurityTimeout:      180 * time.Second,
		MaxConcurrentScans:   0,
	}
}
