package model

import "time"

// PhoneNumber is the single configurable phone number shown on the panel.
// At most one logical record exists; an unset store reads as an empty value.
type PhoneNumber struct {
	Value     string
	UpdatedAt time.Time
}
