// Package testutil provides shared test doubles for use across package tests.
// All dummies implement the corresponding interfaces from the production code,
// allowing injection into components under test without real I/O or side effects.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/sitesense/sitesense/internal/logging"
	"github.com/sitesense/sitesense/internal/model"
)

// ─── Logger ────────────────────────────────────────────────────────────

// DummyLogger implements logging.Logger with in-memory recording.
type DummyLogger struct {
	mu     sync.Mutex
	Errors []string
	Infos  []string
	Debugs []string
	Warns  []string
}

func (l *DummyLogger) Debug(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Debugs = append(l.Debugs, msg)
}

func (l *DummyLogger) Info(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Infos = append(l.Infos, msg)
}

func (l *DummyLogger) Warn(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Warns = append(l.Warns, msg)
}

func (l *DummyLogger) Error(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors = append(l.Errors, msg)
}

func (l *DummyLogger) With(_ ...logging.Field) logging.Logger { return l }

// ─── WebClient ─────────────────────────────────────────────────────────

// DummyWebClient implements webclient.WebClient.
// Pages maps a URL to the body returned for it; unmapped URLs get
// "ok:<url>". Set FailURLs[url] = true to force an error for a URL.
type DummyWebClient struct {
	ResponseDelay time.Duration
	Pages         map[string]string
	FailURLs      map[string]bool
	mu            sync.Mutex
	Requests      []*model.Request
}

func (d *DummyWebClient) Do(ctx context.Context, req *model.Request) (*model.Response, error) {
	if d.ResponseDelay > 0 {
		select {
		case <-time.After(d.ResponseDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	d.mu.Lock()
	d.Requests = append(d.Requests, req)
	d.mu.Unlock()

	if d.FailURLs != nil && d.FailURLs[req.URL] {
		return nil, &errString{"dummy fetch fail for " + req.URL}
	}

	body := "ok:" + req.URL
	if d.Pages != nil {
		if page, ok := d.Pages[req.URL]; ok {
			body = page
		}
	}

	return &model.Response{
		Request:    req,
		Body:       []byte(body),
		StatusCode: 200,
		FetchedAt:  time.Now(),
	}, nil
}

func (d *DummyWebClient) Get(ctx context.Context, url string) (*model.Response, error) {
	return d.Do(ctx, &model.Request{Method: "GET", URL: url})
}

func (d *DummyWebClient) Close() error { return nil }

// ─── Audit adapters ────────────────────────────────────────────────────

// StubCrawler implements the crawler contract. It returns Endpoints (or
// just the target when unset) unless Err is set.
type StubCrawler struct {
	Endpoints []string
	Err       error
	mu        sync.Mutex
	Calls     []string
}

func (s *StubCrawler) Crawl(_ context.Context, url string, _ int) (*model.CrawlResult, error) {
	s.mu.Lock()
	s.Calls = append(s.Calls, url)
	s.mu.Unlock()

	if s.Err != nil {
		return nil, s.Err
	}
	endpoints := s.Endpoints
	if endpoints == nil {
		endpoints = []string{url}
	}
	return &model.CrawlResult{Endpoints: endpoints}, nil
}

// StubPerformance implements the performance/SEO adapter contract.
type StubPerformance struct {
	Report *model.PerformanceReport
	Err    error
	mu     sync.Mutex
	Inputs []model.PerformanceInput
}

func (s *StubPerformance) Audit(_ context.Context, input model.PerformanceInput) (*model.PerformanceReport, error) {
	s.mu.Lock()
	s.Inputs = append(s.Inputs, input)
	s.mu.Unlock()

	if s.Err != nil {
		return nil, s.Err
	}
	if s.Report != nil {
		return s.Report, nil
	}
	return &model.PerformanceReport{
		Summary: &model.PerformanceSummary{
			OverallPerformanceScore: 80,
			OverallSeoScore:         90,
			PerformanceGrade:        "B",
			SeoGrade:                "A",
		},
	}, nil
}

// LastInput returns the most recent recorded input.
func (s *StubPerformance) LastInput() model.PerformanceInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Inputs) == 0 {
		return model.PerformanceInput{}
	}
	return s.Inputs[len(s.Inputs)-1]
}

// StubAccessibility implements the accessibility adapter contract.
type StubAccessibility struct {
	Report *model.AccessibilityReport
	Err    error
	mu     sync.Mutex
	Inputs []model.AccessibilityInput
}

func (s *StubAccessibility) Audit(_ context.Context, input model.AccessibilityInput) (*model.AccessibilityReport, error) {
	s.mu.Lock()
	s.Inputs = append(s.Inputs, input)
	s.mu.Unlock()

	if s.Err != nil {
		return nil, s.Err
	}
	if s.Report != nil {
		return s.Report, nil
	}
	results := make([]model.PageAudit, 0, len(input.Endpoints))
	for _, url := range input.Endpoints {
		results = append(results, model.PageAudit{
			URL:                url,
			Status:             model.PageAuditCompleted,
			AccessibilityScore: 70,
			Violations:         []model.Violation{},
		})
	}
	return &model.AccessibilityReport{Results: results}, nil
}

// StubSecurity implements the security adapter contract.
type StubSecurity struct {
	Report *model.SecurityReport
	Err    error
	mu     sync.Mutex
	Inputs []model.SecurityInput
}

func (s *StubSecurity) Audit(_ context.Context, input model.SecurityInput) (*model.SecurityReport, error) {
	s.mu.Lock()
	s.Inputs = append(s.Inputs, input)
	s.mu.Unlock()

	if s.Err != nil {
		return nil, s.Err
	}
	if s.Report != nil {
		return s.Report, nil
	}
	return &model.SecurityReport{
		Summary: &model.SecuritySummary{
			RiskDistribution:   model.RiskDistribution{Low: 1},
			TopVulnerabilities: []model.TopVulnerability{},
		},
	}, nil
}

// LastInput returns the most recent recorded input.
func (s *StubSecurity) LastInput() model.SecurityInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Inputs) == 0 {
		return model.SecurityInput{}
	}
	return s.Inputs[len(s.Inputs)-1]
}

type errString struct{ s string }

func (e *errString) Error() string { return e.s }
