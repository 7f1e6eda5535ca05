package orchestrator

import (
	"context"

	"github.com/sitesense/sitesense/internal/model"
)

// The orchestrator consumes the four audit engines through these
// contracts only. Any implementation that fills in the model shapes is
// interchangeable; the built-in ones live in internal/crawler and
// internal/auditor.

// Crawler discovers the endpoint set for a target URL.
type Crawler interface {
	Crawl(ctx context.Context, url string, maxDepth int) (*model.CrawlResult, error)
}

// PerformanceAuditor measures performance and SEO for a set of endpoints.
type PerformanceAuditor interface {
	Audit(ctx context.Context, input model.PerformanceInput) (*model.PerformanceReport, error)
}

// AccessibilityAuditor runs accessibility rules against a set of endpoints.
type AccessibilityAuditor interface {
	Audit(ctx context.Context, input model.AccessibilityInput) (*model.AccessibilityReport, error)
}

// SecurityAuditor probes a set of endpoints for security findings.
type SecurityAuditor interface {
	Audit(ctx context.Context, input model.SecurityInput) (*model.SecurityReport, error)
}

// Adapters bundles one implementation of each contract.
type Adapters struct {
	Crawler       Crawler
	Performance   PerformanceAuditor
	Accessibility AccessibilityAuditor
	Security      SecurityAuditor
}
