package model

import "time"

// NotificationState is the reconciler baseline persisted between sessions so
// a restart does not reset the unseen count to zero.
//
// Invariants: UnseenCount >= 0 and BadgeActive == (UnseenCount > 0).
type NotificationState struct {
	LastSeenCount int
	UnseenCount   int
	BadgeActive   bool
	UpdatedAt     time.Time
}

// BadgeUpdate is the event broadcast to subscribers after a reconciler tick
// or an explicit acknowledge. NewInBatch is the number of messages first
// observed on this tick; it is zero on re-broadcasts and on acknowledge.
type BadgeUpdate struct {
	UnseenCount  int  `json:"unseen_count"`
	CurrentTotal int  `json:"current_total"`
	NewInBatch   int  `json:"new_in_batch"`
	BadgeActive  bool `json:"badge_active"`
}
