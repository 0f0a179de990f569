package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/smspanel/internal/domain/model"
	"github.com/ericfisherdev/smspanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.NumberStore = (*NumberRepo)(nil)

// NumberRepo is the SQLite implementation of the NumberStore port interface.
// The phone_number table holds at most one row (id = 1).
type NumberRepo struct {
	db *DB
}

// NewNumberRepo creates a new NumberRepo backed by the given DB.
func NewNumberRepo(db *DB) *NumberRepo {
	return &NumberRepo{db: db}
}

// Get returns the current phone number. A never-written store reads as an
// empty value; the empty row is created on first read so subsequent writes
// are plain updates.
func (r *NumberRepo) Get(ctx context.Context) (model.PhoneNumber, error) {
	const query = `SELECT value, updated_at FROM phone_number WHERE id = 1`

	var value, updatedAt string
	err := r.db.Reader.QueryRowContext(ctx, query).Scan(&value, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return r.createEmpty(ctx)
	}
	if err != nil {
		return model.PhoneNumber{}, fmt.Errorf("get phone number: %w", err)
	}

	num := model.PhoneNumber{Value: value}
	num.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return model.PhoneNumber{}, fmt.Errorf("parse updated_at: %w", err)
	}

	return num, nil
}

// Set upserts the phone number value and refreshes updated_at.
func (r *NumberRepo) Set(ctx context.Context, value string) (model.PhoneNumber, error) {
	const query = `
		INSERT INTO phone_number (id, value, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC()
	if _, err := r.db.Writer.ExecContext(ctx, query, value, now); err != nil {
		return model.PhoneNumber{}, fmt.Errorf("set phone number: %w", err)
	}

	return model.PhoneNumber{Value: value, UpdatedAt: now}, nil
}

// Clear resets the value to empty. The record itself is kept so reads stay
// updates rather than inserts.
func (r *NumberRepo) Clear(ctx context.Context) error {
	if _, err := r.Set(ctx, ""); err != nil {
		return fmt.Errorf("clear phone number: %w", err)
	}
	return nil
}

func (r *NumberRepo) createEmpty(ctx context.Context) (model.PhoneNumber, error) {
	const query = `
		INSERT INTO phone_number (id, value, updated_at) VALUES (1, '', ?)
		ON CONFLICT(id) DO NOTHING
	`

	now := time.Now().UTC()
	if _, err := r.db.Writer.ExecContext(ctx, query, now); err != nil {
		return model.PhoneNumber{}, fmt.Errorf("create empty phone number: %w", err)
	}

	return model.PhoneNumber{Value: "", UpdatedAt: now}, nil
}
