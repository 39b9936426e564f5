package repo

import (
	"context"
	"sync"

	"github.com/crucial707/irrigation/internal/models"
	"github.com/crucial707/irrigation/internal/pushid"
)

// MemoryIrrigationRepo keeps records in process memory. Data does not survive restarts.
type MemoryIrrigationRepo struct {
	mu      sync.RWMutex
	records map[string]models.Irrigation
	keys    *pushid.Generator
}

// NewMemoryIrrigationRepo returns an empty in-memory store.
func NewMemoryIrrigationRepo() *MemoryIrrigationRepo {
	return &MemoryIrrigationRepo{
		records: make(map[string]models.Irrigation),
		keys:    pushid.New(),
	}
}

func (r *MemoryIrrigationRepo) Push(ctx context.Context, rec models.Irrigation) (string, error) {
	id := r.keys.Next()
	r.mu.Lock()
	r.records[id] = clone(rec)
	r.mu.Unlock()
	return id, nil
}

func (r *MemoryIrrigationRepo) List(ctx context.Context) (map[string]models.Irrigation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]models.Irrigation, len(r.records))
	for id, rec := range r.records {
		out[id] = clone(rec)
	}
	return out, nil
}

func (r *MemoryIrrigationRepo) Get(ctx context.Context, id string) (*models.Irrigation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, nil
	}
	c := clone(rec)
	return &c, nil
}

func (r *MemoryIrrigationRepo) Update(ctx context.Context, id string, rec models.Irrigation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return ErrNotFound
	}
	r.records[id] = clone(rec)
	return nil
}

func (r *MemoryIrrigationRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return ErrNotFound
	}
	delete(r.records, id)
	return nil
}

func (r *MemoryIrrigationRepo) SetStatus(ctx context.Context, id string, from, to models.Status) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok || rec.Status != from {
		return false, nil
	}
	rec.Status = to
	r.records[id] = rec
	return true, nil
}

func (r *MemoryIrrigationRepo) Ping(ctx context.Context) error {
	return ctx.Err()
}

// clone copies the slices so callers cannot mutate stored state.
func clone(rec models.Irrigation) models.Irrigation {
	rec.Times = append([]string{}, rec.Times...)
	rec.Days = append([]string{}, rec.Days...)
	rec.SpecificDates = append([]string{}, rec.SpecificDates...)
	return rec
}
