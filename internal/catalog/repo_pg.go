package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PGRepo implements Repo using Postgres. The option tables, flags and
// policies are stored as a single JSONB descriptor per module.
type PGRepo struct {
	DB *sql.DB
}

// GetByID returns the descriptor for a module.
func (r *PGRepo) GetByID(ctx context.Context, moduleID string) (ModuleDescriptor, error) {
	const query = `
SELECT id, name, descriptor, created_at
FROM modules
WHERE id = $1
LIMIT 1`
	var (
		id      string
		name    string
		raw     []byte
		created time.Time
	)
	err := r.DB.QueryRowContext(ctx, query, moduleID).Scan(&id, &name, &raw, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ModuleDescriptor{}, ErrNotFound
		}
		return ModuleDescriptor{}, err
	}
	return decodeDescriptor(id, name, raw, created)
}

// List returns all descriptors ordered by id.
func (r *PGRepo) List(ctx context.Context) ([]ModuleDescriptor, error) {
	const query = `
SELECT id, name, descriptor, created_at
FROM modules
ORDER BY id`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ModuleDescriptor
	for rows.Next() {
		var (
			id      string
			name    string
			raw     []byte
			created time.Time
		)
		if err := rows.Scan(&id, &name, &raw, &created); err != nil {
			return nil, err
		}
		d, err := decodeDescriptor(id, name, raw, created)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Upsert writes a descriptor, used by seeding and the migrate CLI.
func (r *PGRepo) Upsert(ctx context.Context, d ModuleDescriptor) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode descriptor %s: %w", d.ID, err)
	}
	const query = `
INSERT INTO modules (id, name, descriptor, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, descriptor = EXCLUDED.descriptor`
	_, err = r.DB.ExecContext(ctx, query, d.ID, d.Name, raw, d.CreatedAt)
	return err
}

func decodeDescriptor(id, name string, raw []byte, created time.Time) (ModuleDescriptor, error) {
	var d ModuleDescriptor
	if err := json.Unmarshal(raw, &d); err != nil {
		return ModuleDescriptor{}, fmt.Errorf("decode descriptor %s: %w", id, err)
	}
	d.ID = id
	d.Name = name
	d.CreatedAt = created
	return d, nil
}

var _ Repo = (*PGRepo)(nil)
