package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/smspanel/internal/domain/model"
	"github.com/ericfisherdev/smspanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.MessageStore = (*MessageRepo)(nil)

// MessageRepo is the SQLite implementation of the MessageStore port interface.
type MessageRepo struct {
	db *DB
}

// NewMessageRepo creates a new MessageRepo backed by the given DB.
func NewMessageRepo(db *DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Insert stores a new message. A UUID is assigned when the message carries no
// id, and the receipt time fills a zero OccurredAt. The stored message is
// returned with all generated fields populated.
func (r *MessageRepo) Insert(ctx context.Context, msg model.Message) (model.Message, error) {
	const query = `
		INSERT INTO messages (id, sender, body, occurred_at, origin_number, origin_slot, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.OccurredAt.IsZero() {
		msg.OccurredAt = now
	}
	msg.CreatedAt = now

	_, err := r.db.Writer.ExecContext(ctx, query,
		msg.ID, msg.Sender, msg.Body,
		msg.OccurredAt.UTC(), msg.OriginNumber, msg.OriginSlot, msg.CreatedAt,
	)
	if err != nil {
		return model.Message{}, fmt.Errorf("insert message %s: %w", msg.ID, err)
	}

	return msg, nil
}

// ListAll returns all messages ordered by occurred_at descending, newest
// first. An empty store yields an empty slice, never an error.
func (r *MessageRepo) ListAll(ctx context.Context) ([]model.Message, error) {
	const query = `
		SELECT id, sender, body, occurred_at, origin_number, origin_slot, created_at
		FROM messages
		ORDER BY occurred_at DESC, created_at DESC
	`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	msgs := []model.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, *msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return msgs, nil
}

// Count returns the number of stored messages without fetching rows. The
// reconciler polls this instead of transferring the whole collection.
func (r *MessageRepo) Count(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM messages`

	var n int
	if err := r.db.Reader.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}

	return n, nil
}

// Delete removes a message by id. Returns driven.ErrMessageNotFound if no
// message with that id exists.
func (r *MessageRepo) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM messages WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete message %s: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("delete message %s: %w", id, driven.ErrMessageNotFound)
	}

	return nil
}

// DeleteAll removes every message and returns the number removed.
func (r *MessageRepo) DeleteAll(ctx context.Context) (int64, error) {
	const query = `DELETE FROM messages`

	result, err := r.db.Writer.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("delete all messages: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check rows affected: %w", err)
	}

	return rows, nil
}

func scanMessage(s scanner) (*model.Message, error) {
	var msg model.Message
	var occurredAt, createdAt string

	err := s.Scan(
		&msg.ID, &msg.Sender, &msg.Body,
		&occurredAt, &msg.OriginNumber, &msg.OriginSlot, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	msg.OccurredAt, err = parseTime(occurredAt)
	if err != nil {
		return nil, fmt.Errorf("parse occurred_at: %w", err)
	}

	msg.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	return &msg, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// parseTime tries multiple SQLite datetime formats.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
		time.RFC3339,
		time.RFC3339Nano,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
