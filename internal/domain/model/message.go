package model

import "time"

// Message is a single SMS-style message received through the ingestion path.
// Messages are immutable once stored; the only mutation is deletion.
type Message struct {
	ID           string
	Sender       string
	Body         string
	OccurredAt   time.Time
	OriginNumber string
	OriginSlot   string
	CreatedAt    time.Time
}
