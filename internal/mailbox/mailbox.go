// Package mailbox supplies raw email messages to the sync pipeline.
package mailbox

import (
	"context"
	"time"

	"github.com/joseph-ayodele/purchase-sync/internal/entity"
)

// Mailbox lists and fetches a user's messages. List returns references
// newest first, limited to messages received at or after since.
type Mailbox interface {
	List(ctx context.Context, userID string, since time.Time) ([]entity.MessageRef, error)
	Fetch(ctx context.Context, userID, id string) (entity.RawEmailMessage, error)
}
