package registry_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sitesense/sitesense/internal/model"
	"github.com/sitesense/sitesense/internal/registry"
	"github.com/sitesense/sitesense/internal/testutil"

	_ "modernc.org/sqlite"
)

// Both Store implementations must satisfy the same record invariants, so
// every test runs against both.
func stores(t *testing.T) map[string]registry.Store {
	t.Helper()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "scans.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlStore, err := registry.NewSQLiteStore(db, &testutil.DummyLogger{})
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}

	out := map[string]registry.Store{
		"memory": registry.NewMemoryStore(),
		"sqlite": sqlStore,
	}
	t.Cleanup(func() {
		for _, s := range out {
			s.Close()
		}
	})
	return out
}

func mustCreate(t *testing.T, s registry.Store, url string) *model.ScanRecord {
	t.Helper()
	rec, err := s.Create(context.Background(), url)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return rec
}

func TestStore_CreateAssignsMonotonicIDs(t *testing.T) {
	t.Parallel()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			first := mustCreate(t, s, "https://a.example")
			second := mustCreate(t, s, "https://b.example")

			if first.ID <= 0 {
				t.Errorf("expected positive id, got %d", first.ID)
			}
			if second.ID <= first.ID {
				t.Errorf("expected increasing ids, got %d then %d", first.ID, second.ID)
			}
			if first.Status != model.ScanScanning || first.Progress != 0 {
				t.Errorf("new record should be scanning at 0%%, got %+v", first)
			}
			if first.Results != nil || first.Error != "" {
				t.Errorf("new record must have neither results nor error: %+v", first)
			}
		})
	}
}

func TestMemoryStore_ConcurrentCreateNoCollisions(t *testing.T) {
	t.Parallel()
	s := registry.NewMemoryStore()

	const n = 50
	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := s.Create(context.Background(), "https://a.example")
			if err != nil {
				t.Errorf("Create: %v", err)
				return
			}
			ids <- rec.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		if seen[id] {
			t.Fatalf("id %d assigned twice", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Errorf("expected %d distinct ids, got %d", n, len(seen))
	}
}

func TestStore_GetUnknownID(t *testing.T) {
	t.Parallel()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Get(context.Background(), 999); !errors.Is(err, registry.ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestStore_ProgressIsMonotonic(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			rec := mustCreate(t, s, "https://a.example")

			if err := s.SetProgress(ctx, rec.ID, 60); err != nil {
				t.Fatalf("SetProgress: %v", err)
			}
			// Lower values are ignored, not errors.
			if err := s.SetProgress(ctx, rec.ID, 30); err != nil {
				t.Fatalf("SetProgress lower: %v", err)
			}

			got, err := s.Get(ctx, rec.ID)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.Progress != 60 {
				t.Errorf("expected progress to stay at 60, got %d", got.Progress)
			}
		})
	}
}

func TestStore_FinishSetsResultsAndFreezes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			rec := mustCreate(t, s, "https://a.example")

			results := &model.AggregateResult{Overall: 75}
			if err := s.Finish(ctx, rec.ID, results); err != nil {
				t.Fatalf("Finish: %v", err)
			}

			got, err := s.Get(ctx, rec.ID)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.Status != model.ScanSuccess || got.Progress != 100 {
				t.Errorf("expected success at 100%%, got %+v", got)
			}
			if got.Results == nil || got.Results.Overall != 75 {
				t.Errorf("expected results persisted, got %+v", got.Results)
			}
			if got.Error != "" {
				t.Errorf("success record must not carry an error: %q", got.Error)
			}

			// Terminal records reject further transitions and ignore progress.
			if err := s.Fail(ctx, rec.ID, "late failure"); err == nil {
				t.Error("expected Fail on terminal record to error")
			}
			if err := s.SetProgress(ctx, rec.ID, 100); err != nil {
				t.Fatalf("SetProgress on terminal: %v", err)
			}
			got, _ = s.Get(ctx, rec.ID)
			if got.Status != model.ScanSuccess {
				t.Errorf("terminal state must not change, got %s", got.Status)
			}
		})
	}
}

func TestStore_FailSetsErrorOnly(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			rec := mustCreate(t, s, "https://a.example")

			if err := s.Fail(ctx, rec.ID, "crawl failed: boom"); err != nil {
				t.Fatalf("Fail: %v", err)
			}

			got, err := s.Get(ctx, rec.ID)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.Status != model.ScanError || got.Progress != 100 {
				t.Errorf("expected error at 100%%, got %+v", got)
			}
			if got.Error != "crawl failed: boom" {
				t.Errorf("unexpected error message %q", got.Error)
			}
			if got.Results != nil {
				t.Errorf("failed record must not carry results: %+v", got.Results)
			}

			if err := s.Finish(ctx, rec.ID, &model.AggregateResult{}); err == nil {
				t.Error("expected Finish on terminal record to error")
			}
		})
	}
}

func TestStore_AddSnapshot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			rec := mustCreate(t, s, "https://a.example")

			if err := s.AddSnapshot(ctx, rec.ID, "/tmp/crawler/scan-1-results.json"); err != nil {
				t.Fatalf("AddSnapshot: %v", err)
			}
			if err := s.AddSnapshot(ctx, rec.ID, "/tmp/security/scan-1-results.json"); err != nil {
				t.Fatalf("AddSnapshot: %v", err)
			}

			got, err := s.Get(ctx, rec.ID)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if len(got.Snapshots) != 2 {
				t.Errorf("expected 2 snapshot paths, got %v", got.Snapshots)
			}
		})
	}
}

func TestStore_ListNewestFirst(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			a := mustCreate(t, s, "https://a.example")
			b := mustCreate(t, s, "https://b.example")

			list, err := s.List(ctx)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(list) != 2 {
				t.Fatalf("expected 2 summaries, got %d", len(list))
			}
			// Same-second creation falls back to id ordering.
			if list[0].ID != b.ID || list[1].ID != a.ID {
				t.Errorf("expected newest first (%d, %d), got (%d, %d)", b.ID, a.ID, list[0].ID, list[1].ID)
			}
			if list[0].Results != nil {
				t.Errorf("running scan summary must have nil results: %+v", list[0].Results)
			}
		})
	}
}

func TestStore_ListIncludesScoresForFinishedScans(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			rec := mustCreate(t, s, "https://a.example")
			results := &model.AggregateResult{
				Overall:     75,
				Performance: model.PerformanceSection{Score: 80},
				SEO:         model.SEOSection{Score: 90},
				UX:          model.UXSection{Score: 70},
				Security:    model.SecuritySection{Score: 60},
			}
			if err := s.Finish(ctx, rec.ID, results); err != nil {
				t.Fatalf("Finish: %v", err)
			}

			list, err := s.List(ctx)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(list) != 1 || list[0].Results == nil {
				t.Fatalf("expected one summary with scores, got %+v", list)
			}
			scores := list[0].Results
			if scores.Overall != 75 || scores.Performance.Score != 80 || scores.Security.Score != 60 {
				t.Errorf("unexpected score summary: %+v", scores)
			}
		})
	}
}
