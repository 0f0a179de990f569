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
var _ driven.StateStore = (*StateRepo)(nil)

// StateRepo is the SQLite implementation of the StateStore port interface.
// It persists the reconciler baseline in a single row (id = 1), the server
// process analog of the browser localStorage the panel frontend used.
type StateRepo struct {
	db *DB
}

// NewStateRepo creates a new StateRepo backed by the given DB.
func NewStateRepo(db *DB) *StateRepo {
	return &StateRepo{db: db}
}

// Get returns the persisted reconciler state, or a zero state when nothing
// has been saved yet.
func (r *StateRepo) Get(ctx context.Context) (model.NotificationState, error) {
	const query = `SELECT last_seen_count, unseen_count, badge_active, updated_at FROM notification_state WHERE id = 1`

	var state model.NotificationState
	var badgeActive int
	var updatedAt string

	err := r.db.Reader.QueryRowContext(ctx, query).Scan(
		&state.LastSeenCount, &state.UnseenCount, &badgeActive, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.NotificationState{}, nil
	}
	if err != nil {
		return model.NotificationState{}, fmt.Errorf("get notification state: %w", err)
	}

	state.BadgeActive = badgeActive != 0

	state.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return model.NotificationState{}, fmt.Errorf("parse updated_at: %w", err)
	}

	return state, nil
}

// Save upserts the reconciler state.
func (r *StateRepo) Save(ctx context.Context, state model.NotificationState) error {
	const query = `
		INSERT INTO notification_state (id, last_seen_count, unseen_count, badge_active, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_seen_count = excluded.last_seen_count,
			unseen_count = excluded.unseen_count,
			badge_active = excluded.badge_active,
			updated_at = excluded.updated_at
	`

	badgeActive := 0
	if state.BadgeActive {
		badgeActive = 1
	}

	_, err := r.db.Writer.ExecContext(ctx, query,
		state.LastSeenCount, state.UnseenCount, badgeActive, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save notification state: %w", err)
	}

	return nil
}
