package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/smspanel/internal/domain/model"
)

// ErrMessageNotFound indicates a targeted delete referenced a message id
// that does not exist in the store.
var ErrMessageNotFound = errors.New("message not found")

// MessageStore defines the driven port for message persistence.
// Insert assigns a store-generated id when the message carries none.
// Delete returns ErrMessageNotFound if the id does not exist.
type MessageStore interface {
	Insert(ctx context.Context, msg model.Message) (model.Message, error)
	ListAll(ctx context.Context) ([]model.Message, error)
	Count(ctx context.Context) (int, error)
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) (int64, error)
}
