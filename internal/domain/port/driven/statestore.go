package driven

import (
	"context"

	"github.com/ericfisherdev/smspanel/internal/domain/model"
)

// StateStore persists the notification reconciler baseline between sessions.
// Get returns a zero state when nothing has been saved yet.
type StateStore interface {
	Get(ctx context.Context) (model.NotificationState, error)
	Save(ctx context.Context, state model.NotificationState) error
}
