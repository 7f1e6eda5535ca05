package auditor_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sitesense/sitesense/internal/auditor"
	"github.com/sitesense/sitesense/internal/model"
	"github.com/sitesense/sitesense/internal/testutil"
)

func auditSite(t *testing.T, handler http.Handler, opts model.SecurityOptions) *model.SecurityReport {
	t.Helper()

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	a := auditor.NewSecurityAuditor(ts.Client(), &testutil.DummyLogger{})
	report, err := a.Audit(context.Background(), model.SecurityInput{
		Endpoints: []string{ts.URL},
		Options:   opts,
	})
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	return report
}

func hasIssue(issues []model.SecurityIssue, title string) bool {
	for _, issue := range issues {
		if issue.Title == title {
			return true
		}
	}
	return false
}

func TestSecurityAuditor_BareServerFindings(t *testing.T) {
	t.Parallel()
	report := auditSite(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "x", Path: "/"})
		w.Header().Set("X-Powered-By", "DemoEngine/1.2.3")
		fmt.Fprint(w, "hello")
	}), model.SecurityOptions{PassiveScanOnly: true})

	if len(report.Websites) != 1 {
		t.Fatalf("expected findings for 1 site, got %d", len(report.Websites))
	}
	issues := report.Websites[0].Issues

	for _, title := range []string{
		"Site served over plain HTTP",
		"Content Security Policy header not set",
		"X-Content-Type-Options header missing",
		"Missing anti-clickjacking header",
		"Cookie without HttpOnly flag",
		"X-Powered-By header disclosure",
	} {
		if !hasIssue(issues, title) {
			t.Errorf("expected finding %q, got %v", title, issues)
		}
	}

	if report.Summary == nil {
		t.Fatal("expected a summary")
	}
	if report.Summary.RiskDistribution.High < 1 {
		t.Errorf("plain HTTP should count as high risk: %+v", report.Summary.RiskDistribution)
	}
	if len(report.Summary.TopVulnerabilities) == 0 {
		t.Error("expected top vulnerabilities")
	}
	// Highest risks sort first.
	if report.Summary.TopVulnerabilities[0].Title != "Site served over plain HTTP" {
		t.Errorf("expected the high-risk finding first, got %+v", report.Summary.TopVulnerabilities[0])
	}
}

func TestSecurityAuditor_HardenedServer(t *testing.T) {
	t.Parallel()
	report := auditSite(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Content-Security-Policy", "default-src 'self'; frame-ancestors 'none'")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "no-referrer")
		fmt.Fprint(w, "hello")
	}), model.SecurityOptions{PassiveScanOnly: true})

	issues := report.Websites[0].Issues
	for _, title := range []string{
		"Content Security Policy header not set",
		"X-Content-Type-Options header missing",
		// frame-ancestors in the CSP stands in for X-Frame-Options.
		"Missing anti-clickjacking header",
		"Referrer-Policy header missing",
	} {
		if hasIssue(issues, title) {
			t.Errorf("unexpected finding %q on hardened server", title)
		}
	}
	// Plain HTTP is inherent to httptest; it stays.
	if !hasIssue(issues, "Site served over plain HTTP") {
		t.Error("expected the plain-HTTP finding to remain")
	}
}

func TestSecurityAuditor_ActiveProbesFindExposedFiles(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "hello")
	})
	mux.HandleFunc("/.git/config", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "[core]\n\trepositoryformatversion = 0\n")
	})
	mux.HandleFunc("/.env", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "DB_PASSWORD=hunter2\n")
	})

	report := auditSite(t, mux, model.SecurityOptions{PassiveScanOnly: false})

	issues := report.Websites[0].Issues
	if !hasIssue(issues, "Exposed git repository") {
		t.Errorf("expected exposed git repository finding, got %v", issues)
	}
	if !hasIssue(issues, "Exposed environment file") {
		t.Errorf("expected exposed environment file finding, got %v", issues)
	}
}

func TestSecurityAuditor_PassiveModeSkipsProbes(t *testing.T) {
	t.Parallel()
	var probed atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			probed.Store(true)
		}
		fmt.Fprint(w, "hello")
	})

	auditSite(t, mux, model.SecurityOptions{PassiveScanOnly: true})

	if probed.Load() {
		t.Error("passive mode must not request extra paths")
	}
}

func TestSecurityAuditor_TimeoutBudget(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		fmt.Fprint(w, "slow")
	}))
	t.Cleanup(ts.Close)

	a := auditor.NewSecurityAuditor(ts.Client(), &testutil.DummyLogger{})
	_, err := a.Audit(context.Background(), model.SecurityInput{
		Endpoints: []string{ts.URL, ts.URL, ts.URL},
		Options:   model.SecurityOptions{Timeout: 50 * time.Millisecond, PassiveScanOnly: true},
	})
	if err == nil {
		t.Error("expected the stage to fail once its budget is exhausted")
	}
}

func TestSecurityAuditor_WritesSnapshot(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "hello")
	}))
	t.Cleanup(ts.Close)

	target := filepath.Join(t.TempDir(), "security", "scan-1-results.json")
	a := auditor.NewSecurityAuditor(ts.Client(), &testutil.DummyLogger{})
	_, err := a.Audit(context.Background(), model.SecurityInput{
		Endpoints:    []string{ts.URL},
		OutputTarget: target,
		Options:      model.SecurityOptions{PassiveScanOnly: true},
	})
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}

	if _, err := os.Stat(target); err != nil {
		t.Errorf("expected snapshot at %s: %v", target, err)
	}
}
