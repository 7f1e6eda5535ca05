// Package orchestrator drives a scan's lifecycle: it sequences the four
// audit stages against the discovered endpoint set, advances progress,
// persists intermediate snapshots and aggregates the final report.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/sitesense/sitesense/internal/logging"
	"github.com/sitesense/sitesense/internal/model"
	"github.com/sitesense/sitesense/internal/normalizer"
	"github.com/sitesense/sitesense/internal/registry"
	"github.com/sitesense/sitesense/internal/snapshot"
)

type EventType string

const (
	EventProgress EventType = "progress"
	EventStatus   EventType = "status"
)

// Event is one progress or status update for a running scan, streamed to
// websocket subscribers.
type Event struct {
	ScanID   int64            `json:"scan_id"`
	Type     EventType        `json:"type"`
	Status   model.ScanStatus `json:"status,omitempty"`
	Progress int              `json:"progress,omitempty"`
	Stage    string           `json:"stage,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// Orchestrator owns scan execution. Each accepted scan runs in its own
// goroutine; that goroutine is the only writer of its record. Stages run
// strictly sequentially because later stages consume the crawl's
// endpoint list and each adapter may launch a heavyweight external
// process that should not be multiplied across stages.
type Orchestrator struct {
	cfg       *Config
	store     registry.Store
	snapshots *snapshot.Store
	adapters  Adapters
	logger    logging.Logger

	subsMu sync.Mutex
	subs   map[int64][]chan Event

	admission chan struct{}
	wg        sync.WaitGroup
}

// New ties together config, registry store, snapshot store and adapters.
func New(cfg *Config, store registry.Store, snapshots *snapshot.Store, adapters Adapters, logger logging.Logger) *Orchestrator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	o := &Orchestrator{
		cfg:       cfg,
		store:     store,
		snapshots: snapshots,
		adapters:  adapters,
		logger:    logger,
		subs:      make(map[int64][]chan Event),
	}
	if cfg.MaxConcurrentScans > 0 {
		o.admission = make(chan struct{}, cfg.MaxConcurrentScans)
	}
	return o
}

// StartScan creates the record and kicks off the pipeline in the
// background. The record (with its id) is returned immediately; callers
// observe completion by polling or subscribing.
func (o *Orchestrator) StartScan(ctx context.Context, url string) (*model.ScanRecord, error) {
	rec, err := o.store.Create(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("create scan record: %w", err)
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		// The scan outlives the submitting request.
		o.run(context.Background(), rec.ID, url)
	}()

	return rec, nil
}

// GetScan returns the full record for a scan id.
func (o *Orchestrator) GetScan(ctx context.Context, id int64) (*model.ScanRecord, error) {
	return o.store.Get(ctx, id)
}

// ListScans returns all scan summaries, newest first.
func (o *Orchestrator) ListScans(ctx context.Context) ([]model.ScanSummary, error) {
	return o.store.List(ctx)
}

// Close waits for in-flight scans to reach a terminal state.
func (o *Orchestrator) Close() {
	o.wg.Wait()
}

func (o *Orchestrator) run(ctx context.Context, id int64, url string) {
	if o.admission != nil {
		o.admission <- struct{}{}
		defer func() { <-o.admission }()
	}

	// A panicking stage must not take the process (or other scans) down;
	// it terminates this scan like any other stage failure.
	defer func() {
		if r := recover(); r != nil {
			o.fail(id, fmt.Sprintf("scan aborted: %v", r))
		}
	}()

	o.logger.Info("starting scan",
		logging.Field{Key: "scan_id", Value: id},
		logging.Field{Key: "url", Value: url})

	// Stage 1/4: crawl.
	o.advance(id, 10, "crawl")
	crawl, err := o.adapters.Crawler.Crawl(ctx, url, o.cfg.CrawlDepth)
	if err != nil {
		o.fail(id, fmt.Sprintf("crawl failed: %v", err))
		return
	}
	o.writeSnapshot(id, "crawler", crawl)

	endpoints := crawl.Endpoints
	if len(endpoints) == 0 {
		endpoints = []string{url}
	}
	o.logger.Info("crawl complete",
		logging.Field{Key: "scan_id", Value: id},
		logging.Field{Key: "endpoints", Value: len(endpoints)})

	// Stage 2/4: performance & SEO.
	o.advance(id, 30, "performance")
	perfTarget := o.snapshots.Path("performance", id)
	perf, err := o.adapters.Performance.Audit(ctx, model.PerformanceInput{
		Endpoints:    capped(endpoints, o.cfg.PageAuditLimit),
		BatchSize:    o.cfg.PerformanceBatchSize,
		OutputTarget: perfTarget,
	})
	if err != nil {
		o.fail(id, fmt.Sprintf("performance audit failed: %v", err))
		return
	}
	o.noteAdapterSnapshot(id, perfTarget)

	// Stage 3/4: accessibility.
	o.advance(id, 60, "accessibility")
	ux, err := o.adapters.Accessibility.Audit(ctx, model.AccessibilityInput{
		ScanID:    fmt.Sprintf("scan-%d", id),
		Endpoints: capped(endpoints, o.cfg.PageAuditLimit),
	})
	if err != nil {
		o.fail(id, fmt.Sprintf("accessibility audit failed: %v", err))
		return
	}
	o.writeSnapshot(id, "ux-audit", ux)

	// Stage 4/4: security.
	o.advance(id, 80, "security")
	secTarget := o.snapshots.Path("security", id)
	sec, err := o.adapters.Security.Audit(ctx, model.SecurityInput{
		Endpoints:    capped(endpoints, o.cfg.SecurityAuditLimit),
		OutputTarget: secTarget,
		Options: model.SecurityOptions{
			MaxDepth:        o.cfg.CrawlDepth,
			Timeout:         o.cfg.SecurityTimeout,
			PassiveScanOnly: false,
			BatchSize:       o.cfg.SecurityBatchSize,
		},
	})
	if err != nil {
		o.fail(id, fmt.Sprintf("security audit failed: %v", err))
		return
	}
	o.noteAdapterSnapshot(id, secTarget)

	// Aggregation runs synchronously within the scan's task.
	o.advance(id, 95, "aggregate")
	results := normalizer.BuildAggregate(endpoints, o.cfg.PageAuditLimit, perf, ux, sec)

	if err := o.store.Finish(ctx, id, results); err != nil {
		o.fail(id, fmt.Sprintf("finalize scan: %v", err))
		return
	}

	o.logger.Info("scan complete",
		logging.Field{Key: "scan_id", Value: id},
		logging.Field{Key: "overall", Value: results.Overall})

	o.emit(id, Event{ScanID: id, Type: EventStatus, Status: model.ScanSuccess, Progress: 100})
	o.closeSubscribers(id)
}

// advance bumps progress at the start of a stage and notifies subscribers.
func (o *Orchestrator) advance(id int64, progress int, stage string) {
	if err := o.store.SetProgress(context.Background(), id, progress); err != nil {
		o.logger.Warn("updating scan progress",
			logging.Field{Key: "scan_id", Value: id},
			logging.Field{Key: "error", Value: err.Error()})
	}
	o.logger.Info("scan stage",
		logging.Field{Key: "scan_id", Value: id},
		logging.Field{Key: "stage", Value: stage},
		logging.Field{Key: "progress", Value: progress})
	o.emit(id, Event{ScanID: id, Type: EventProgress, Status: model.ScanScanning, Progress: progress, Stage: stage})
}

func (o *Orchestrator) fail(id int64, msg string) {
	o.logger.Error("scan failed",
		logging.Field{Key: "scan_id", Value: id},
		logging.Field{Key: "error", Value: msg})
	if err := o.store.Fail(context.Background(), id, msg); err != nil {
		o.logger.Warn("marking scan failed",
			logging.Field{Key: "scan_id", Value: id},
			logging.Field{Key: "error", Value: err.Error()})
	}
	o.emit(id, Event{ScanID: id, Type: EventStatus, Status: model.ScanError, Progress: 100, Error: msg})
	o.closeSubscribers(id)
}

// writeSnapshot persists a stage's raw output. Write failures are logged
// and never abort the scan.
func (o *Orchestrator) writeSnapshot(id int64, module string, v any) {
	path, err := o.snapshots.Write(module, id, v)
	if err != nil {
		o.logger.Warn("writing stage snapshot",
			logging.Field{Key: "scan_id", Value: id},
			logging.Field{Key: "module", Value: module},
			logging.Field{Key: "error", Value: err.Error()})
		return
	}
	o.recordSnapshot(id, path)
}

// noteAdapterSnapshot records an artifact the adapter wrote itself, if
// it actually exists.
func (o *Orchestrator) noteAdapterSnapshot(id int64, path string) {
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	o.recordSnapshot(id, path)
}

func (o *Orchestrator) recordSnapshot(id int64, path string) {
	if err := o.store.AddSnapshot(context.Background(), id, path); err != nil {
		o.logger.Warn("recording snapshot path",
			logging.Field{Key: "scan_id", Value: id},
			logging.Field{Key: "error", Value: err.Error()})
	}
}

// Subscribe registers for a scan's progress events. The returned channel
// is closed when the scan reaches a terminal state; cancel detaches early.
func (o *Orchestrator) Subscribe(ctx context.Context, id int64) (<-chan Event, func(), error) {
	rec, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan Event, 16)
	if rec.Status.Terminal() {
		close(ch)
		return ch, func() {}, nil
	}

	o.subsMu.Lock()
	o.subs[id] = append(o.subs[id], ch)
	o.subsMu.Unlock()

	// Re-check after registering: the scan may have gone terminal, and its
	// subscriber list been swept, between the Get above and the append. A
	// channel added after the sweep would otherwise never close.
	if rec, err := o.store.Get(ctx, id); err == nil && rec.Status.Terminal() {
		if o.removeSubscriber(id, ch) {
			close(ch)
		}
		return ch, func() {}, nil
	}

	cancel := func() { o.removeSubscriber(id, ch) }
	return ch, cancel, nil
}

// removeSubscriber detaches ch from the scan's subscriber list and
// reports whether it was still registered. A false return means a
// terminal sweep already took ownership of the channel and closes it.
func (o *Orchestrator) removeSubscriber(id int64, ch chan Event) bool {
	o.subsMu.Lock()
	defer o.subsMu.Unlock()
	chans := o.subs[id]
	for i, c := range chans {
		if c == ch {
			o.subs[id] = append(chans[:i], chans[i+1:]...)
			return true
		}
	}
	return false
}

// emit delivers an event to all subscribers without blocking; slow
// consumers drop events.
func (o *Orchestrator) emit(id int64, ev Event) {
	o.subsMu.Lock()
	chans := append([]chan Event(nil), o.subs[id]...)
	o.subsMu.Unlock()

	for _, ch := range chans {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (o *Orchestrator) closeSubscribers(id int64) {
	o.subsMu.Lock()
	chans := o.subs[id]
	delete(o.subs, id)
	o.subsMu.Unlock()

	for _, ch := range chans {
		close(ch)
	}
}

func capped(list []string, n int) []string {
	if n > 0 && len(list) > n {
		return list[:n]
	}
	return list
}
