package model

import "time"

// Credential is a stored secret, encrypted at rest. The only credential the
// panel keeps today is the admin password hash under service "admin".
type Credential struct {
	ID        int64
	Service   string
	Value     string
	UpdatedAt time.Time
}
