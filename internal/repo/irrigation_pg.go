package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/crucial707/irrigation/internal/models"
	"github.com/crucial707/irrigation/internal/pushid"
)

// IrrigationRepo persists irrigation records in Postgres. Each record is kept as a JSONB
// document under its push key.
type IrrigationRepo struct {
	DB   *sql.DB
	Keys *pushid.Generator
}

// NewIrrigationRepo returns a new IrrigationRepo.
func NewIrrigationRepo(db *sql.DB) *IrrigationRepo {
	return &IrrigationRepo{DB: db, Keys: pushid.New()}
}

// Push inserts rec under a freshly generated key.
func (r *IrrigationRepo) Push(ctx context.Context, rec models.Irrigation) (string, error) {
	doc, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode irrigation: %w", err)
	}
	id := r.Keys.Next()
	_, err = r.DB.ExecContext(ctx,
		`INSERT INTO irrigation (id, data, created_at) VALUES ($1, $2, $3)`,
		id, doc, rec.CreatedAt,
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// List returns every record keyed by id.
func (r *IrrigationRepo) List(ctx context.Context) (map[string]models.Irrigation, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id, data FROM irrigation ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]models.Irrigation)
	for rows.Next() {
		var id string
		var doc []byte
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, err
		}
		var rec models.Irrigation
		if err := json.Unmarshal(doc, &rec); err != nil {
			return nil, fmt.Errorf("decode irrigation %s: %w", id, err)
		}
		out[id] = rec
	}
	return out, rows.Err()
}

// Get returns one record by id, or nil when it does not exist.
func (r *IrrigationRepo) Get(ctx context.Context, id string) (*models.Irrigation, error) {
	var doc []byte
	err := r.DB.QueryRowContext(ctx, `SELECT data FROM irrigation WHERE id = $1`, id).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec := &models.Irrigation{}
	if err := json.Unmarshal(doc, rec); err != nil {
		return nil, fmt.Errorf("decode irrigation %s: %w", id, err)
	}
	return rec, nil
}

// Update replaces the document stored under id. created_at is left as inserted.
func (r *IrrigationRepo) Update(ctx context.Context, id string, rec models.Irrigation) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode irrigation: %w", err)
	}
	result, err := r.DB.ExecContext(ctx, `UPDATE irrigation SET data = $1 WHERE id = $2`, doc, id)
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

// Delete removes a record by id.
func (r *IrrigationRepo) Delete(ctx context.Context, id string) error {
	result, err := r.DB.ExecContext(ctx, `DELETE FROM irrigation WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

// SetStatus rewrites the status key of the document in place, guarded by its current value.
func (r *IrrigationRepo) SetStatus(ctx context.Context, id string, from, to models.Status) (bool, error) {
	result, err := r.DB.ExecContext(ctx,
		`UPDATE irrigation SET data = jsonb_set(data, '{status}', to_jsonb($1::text)) WHERE id = $2 AND data->>'status' = $3`,
		string(to), id, string(from),
	)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (r *IrrigationRepo) Ping(ctx context.Context) error {
	return r.DB.PingContext(ctx)
}

func expectOneRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
