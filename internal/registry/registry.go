package registry

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/sitesense/sitesense/internal/model"
)

// ErrNotFound is returned when a scan id has no record.
var ErrNotFound = errors.New("scan not found")

// Store keeps scan records for the lifetime of the process (or longer,
// for durable implementations). Records are created synchronously and
// then mutated only through the setters below, so every implementation
// can guard the record invariants in one place:
//
//   - progress never decreases and freezes at 100 on terminal states
//   - exactly one of results/error is set once terminal, neither before
type Store interface {
	// Create allocates the next id and stores a record with
	// status=scanning, progress=0. No audit work happens here.
	Create(ctx context.Context, url string) (*model.ScanRecord, error)

	// Get returns a copy of the record, or ErrNotFound.
	Get(ctx context.Context, id int64) (*model.ScanRecord, error)

	// List returns summaries of all records, newest first.
	List(ctx context.Context) ([]model.ScanSummary, error)

	// SetProgress advances progress. Lower values and updates to
	// terminal records are ignored to preserve monotonicity.
	SetProgress(ctx context.Context, id int64, progress int) error

	// AddSnapshot appends a per-stage artifact path to the record.
	AddSnapshot(ctx context.Context, id int64, path string) error

	// Finish moves the record to success with progress=100 and results set.
	Finish(ctx context.Context, id int64, results *model.AggregateResult) error

	// Fail moves the record to error with progress=100 and the message set.
	Fail(ctx context.Context, id int64, msg string) error

	Close() error
}

// MemoryStore is the default process-local Store. Identifier allocation
// is strictly increasing and collision-free under concurrent Create.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	scans  map[int64]*model.ScanRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID: 1,
		scans:  make(map[int64]*model.ScanRecord),
	}
}

func (m *MemoryStore) Create(_ context.Context, url string) (*model.ScanRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := &model.ScanRecord{
		ID:        m.nextID,
		URL:       url,
		CreatedAt: time.Now().UTC(),
		Status:    model.ScanScanning,
		Progress:  0,
	}
	m.nextID++
	m.scans[rec.ID] = rec
	return rec.Clone(), nil
}

func (m *MemoryStore) Get(_ context.Context, id int64) (*model.ScanRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.scans[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (m *MemoryStore) List(_ context.Context) ([]model.ScanSummary, error) {
	m.mu.RLock()
	out := make([]model.ScanSummary, 0, len(m.scans))
	for _, rec := range m.scans {
		out = append(out, rec.Summarize())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) SetProgress(_ context.Context, id int64, progress int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.scans[id]
	if !ok {
		return ErrNotFound
	}
	if rec.Status.Terminal() || progress <= rec.Progress {
		return nil
	}
	if progress > 100 {
		progress = 100
	}
	rec.Progress = progress
	return nil
}

func (m *MemoryStore) AddSnapshot(_ context.Context, id int64, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.scans[id]
	if !ok {
		return ErrNotFound
	}
	rec.Snapshots = append(rec.Snapshots, path)
	return nil
}

func (m *MemoryStore) Finish(_ context.Context, id int64, results *model.AggregateResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.scans[id]
	if !ok {
		return ErrNotFound
	}
	if rec.Status.Terminal() {
		return errors.New("scan already terminal")
	}
	rec.Status = model.ScanSuccess
	rec.Progress = 100
	rec.Results = results
	rec.Error = ""
	return nil
}

func (m *MemoryStore) Fail(_ context.Context, id int64, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.scans[id]
	if !ok {
		return ErrNotFound
	}
	if rec.Status.Terminal() {
		return errors.New("scan already terminal")
	}
	rec.Status = model.ScanError
	rec.Progress = 100
	rec.Error = msg
	rec.Results = nil
	return nil
}

func (m *MemoryStore) Close() error { return nil }
