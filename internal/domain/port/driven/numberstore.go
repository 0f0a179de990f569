package driven

import (
	"context"

	"github.com/ericfisherdev/smspanel/internal/domain/model"
)

// NumberStore defines the driven port for the single phone-number record.
// Get auto-creates an empty record on first read so later writes are
// updates. Clear resets the value to empty without deleting the record.
type NumberStore interface {
	Get(ctx context.Context) (model.PhoneNumber, error)
	Set(ctx context.Context, value string) (model.PhoneNumber, error)
	Clear(ctx context.Context) error
}
