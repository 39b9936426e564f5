package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"github.com/cenkalti/backoff/v4"
	"github.com/crucial707/irrigation/internal/models"
	"github.com/sony/gobreaker"
	"google.golang.org/api/option"
)

// FirebaseConfig configures the Realtime Database store.
type FirebaseConfig struct {
	DatabaseURL     string
	CredentialsFile string
	// Path is the collection node, "irrigation" by default.
	Path string

	// BreakerFailures consecutive failures open the breaker for BreakerOpen.
	BreakerFailures int
	BreakerOpen     time.Duration
	// ReadRetries bounds how many times a failed read is retried.
	ReadRetries int
}

// FirebaseIrrigationRepo stores records in a Firebase Realtime Database collection.
// Writes go through exactly once; reads are retried with exponential backoff. Every call
// goes through one circuit breaker.
type FirebaseIrrigationRepo struct {
	ref     *db.Ref
	breaker *gobreaker.CircuitBreaker
	retries uint64
}

// NewFirebaseIrrigationRepo connects to the database at cfg.DatabaseURL.
func NewFirebaseIrrigationRepo(ctx context.Context, cfg FirebaseConfig) (*FirebaseIrrigationRepo, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("firebase: database URL is required")
	}
	if cfg.Path == "" {
		cfg.Path = "irrigation"
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{DatabaseURL: cfg.DatabaseURL}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase database: %w", err)
	}
	return &FirebaseIrrigationRepo{
		ref:     client.NewRef(cfg.Path),
		breaker: newBreaker("firebase-"+cfg.Path, cfg.BreakerFailures, cfg.BreakerOpen),
		retries: uint64(max(cfg.ReadRetries, 0)),
	}, nil
}

func newBreaker(name string, fails int, open time.Duration) *gobreaker.CircuitBreaker {
	if fails < 1 {
		fails = 5
	}
	if open <= 0 {
		open = 30 * time.Second
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: open,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(fails)
		},
		// A missing record or a lost status race is an answer, not a database failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, errStatusMoved)
		},
	})
}

// write runs op once through the breaker.
func (r *FirebaseIrrigationRepo) write(op func() error) error {
	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, op()
	})
	return err
}

// read runs op through the breaker, retrying transient failures.
func (r *FirebaseIrrigationRepo) read(ctx context.Context, op func() error) error {
	return retryRead(ctx, r.breaker, r.retries, op)
}

func retryRead(ctx context.Context, cb *gobreaker.CircuitBreaker, retries uint64, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxElapsedTime = 5 * time.Second

	return backoff.Retry(func() error {
		_, err := cb.Execute(func() (interface{}, error) {
			return nil, op()
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(bo, retries), ctx))
}

// Push writes rec under a key generated by the database.
func (r *FirebaseIrrigationRepo) Push(ctx context.Context, rec models.Irrigation) (string, error) {
	var key string
	err := r.write(func() error {
		child, err := r.ref.Push(ctx, rec)
		if err != nil {
			return err
		}
		key = child.Key
		return nil
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

// List reads the whole collection in one request. Entries that cannot be decoded are
// logged and left out so one bad record does not hide the rest.
func (r *FirebaseIrrigationRepo) List(ctx context.Context) (map[string]models.Irrigation, error) {
	var raw map[string]json.RawMessage
	err := r.read(ctx, func() error {
		raw = nil
		return r.ref.Get(ctx, &raw)
	})
	if err != nil {
		return nil, err
	}
	return decodeCollection(ctx, raw), nil
}

func decodeCollection(ctx context.Context, raw map[string]json.RawMessage) map[string]models.Irrigation {
	out := make(map[string]models.Irrigation, len(raw))
	for id, doc := range raw {
		rec, err := models.DecodeRecord(doc)
		if err != nil {
			slog.WarnContext(ctx, "skipping undecodable irrigation record", "id", id, "error", err)
			continue
		}
		out[id] = rec
	}
	return out
}

// Get reads a single record; a null node means it does not exist.
func (r *FirebaseIrrigationRepo) Get(ctx context.Context, id string) (*models.Irrigation, error) {
	var raw json.RawMessage
	err := r.read(ctx, func() error {
		raw = nil
		return r.ref.Child(id).Get(ctx, &raw)
	})
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	rec, err := models.DecodeRecord(raw)
	if err != nil {
		return nil, fmt.Errorf("decode irrigation %s: %w", id, err)
	}
	return &rec, nil
}

// Update overwrites an existing record inside a transaction, so a record deleted
// concurrently is not written back. Concurrent updates race; the last write wins.
func (r *FirebaseIrrigationRepo) Update(ctx context.Context, id string, rec models.Irrigation) error {
	return r.write(func() error {
		err := r.ref.Child(id).Transaction(ctx, func(node db.TransactionNode) (interface{}, error) {
			if !exists(node) {
				return nil, ErrNotFound
			}
			return rec, nil
		})
		return err
	})
}

// Delete removes an existing record.
func (r *FirebaseIrrigationRepo) Delete(ctx context.Context, id string) error {
	return r.write(func() error {
		err := r.ref.Child(id).Transaction(ctx, func(node db.TransactionNode) (interface{}, error) {
			if !exists(node) {
				return nil, ErrNotFound
			}
			return nil, nil
		})
		return err
	})
}

// SetStatus moves the record from one status to another inside a transaction.
func (r *FirebaseIrrigationRepo) SetStatus(ctx context.Context, id string, from, to models.Status) (bool, error) {
	err := r.write(func() error {
		err := r.ref.Child(id).Transaction(ctx, func(node db.TransactionNode) (interface{}, error) {
			var raw json.RawMessage
			if err := node.Unmarshal(&raw); err != nil {
				return nil, err
			}
			rec, ok, err := statusTransition(raw, from, to)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, errStatusMoved
			}
			return rec, nil
		})
		return err
	})
	if errors.Is(err, errStatusMoved) {
		return false, nil
	}
	return err == nil, err
}

// errStatusMoved aborts a SetStatus transaction whose record no longer has the expected status.
var errStatusMoved = errors.New("irrigation status changed")

// statusTransition returns the record in raw with its status set to to. ok is false when
// raw is empty or its status is not from.
func statusTransition(raw json.RawMessage, from, to models.Status) (models.Irrigation, bool, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return models.Irrigation{}, false, nil
	}
	rec, err := models.DecodeRecord(raw)
	if err != nil {
		return models.Irrigation{}, false, err
	}
	if rec.Status != from {
		return models.Irrigation{}, false, nil
	}
	rec.Status = to
	return rec, true, nil
}

func exists(node db.TransactionNode) bool {
	var raw json.RawMessage
	if err := node.Unmarshal(&raw); err != nil {
		return false
	}
	return len(raw) > 0 && string(raw) != "null"
}

// Ping performs a shallow read of the collection node.
func (r *FirebaseIrrigationRepo) Ping(ctx context.Context) error {
	var shallow interface{}
	return r.write(func() error {
		return r.ref.GetShallow(ctx, &shallow)
	})
}
