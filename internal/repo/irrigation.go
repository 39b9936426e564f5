package repo

import (
	"context"
	"errors"

	"github.com/crucial707/irrigation/internal/models"
)

// ErrNotFound is returned by Update and Delete when no record has the given id.
var ErrNotFound = errors.New("irrigation record not found")

// IrrigationStore is the persistence contract for irrigation records. Keys are assigned
// by the store on Push and never change afterwards.
type IrrigationStore interface {
	// Push stores rec under a newly generated key and returns the key.
	Push(ctx context.Context, rec models.Irrigation) (string, error)
	// List returns the whole collection keyed by id. An empty store yields an empty, non-nil map.
	List(ctx context.Context) (map[string]models.Irrigation, error)
	// Get returns the record for id, or nil when it does not exist.
	Get(ctx context.Context, id string) (*models.Irrigation, error)
	// Update replaces the record stored under id.
	Update(ctx context.Context, id string, rec models.Irrigation) error
	// Delete removes the record stored under id.
	Delete(ctx context.Context, id string) error
	// SetStatus changes only the status of record id, and only while it is still from.
	// ok is false when the record is gone or its status has moved on.
	SetStatus(ctx context.Context, id string, from, to models.Status) (ok bool, err error)
	// Ping checks that the backing store is reachable.
	Ping(ctx context.Context) error
}
