package cart

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ignite/cart-recovery/internal/domain"
)

// Repository defines the data access contract for carts.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Upsert creates or merges a cart snapshot in a single atomic statement.
	// Snapshot, total and the update timestamp are replaced unconditionally;
	// email and customer id are coalesced — a nil incoming value never erases
	// a previously learned one. Converted and reminder flags are untouched.
	// Returns the resulting row.
	Upsert(ctx context.Context, in UpsertInput) (*domain.Cart, error)

	// Get returns a single cart. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Cart, error)

	// MarkConverted sets converted=true and refreshes the update timestamp.
	// Unknown ids are a silent no-op, not an error.
	MarkConverted(ctx context.Context, id string) error

	// SetEmail attaches an email to the cart. Returns ErrNotFound when the
	// id is unknown.
	SetEmail(ctx context.Context, id, email string) error

	// FindIDWithoutEmailRecent returns the id of the single most recently
	// updated non-converted cart lacking an email, updated within the
	// window. Returns ErrNotFound when no cart qualifies.
	FindIDWithoutEmailRecent(ctx context.Context, window time.Duration) (string, error)

	// SelectAbandoned returns up to limit carts eligible for the given
	// reminder stage (1-based): email present, not converted, this stage's
	// flag unset, previous stage sent (for stage > 1), and last update older
	// than dwell. Ordered oldest-updated first.
	SelectAbandoned(ctx context.Context, stage int, dwell time.Duration, limit int) ([]domain.Cart, error)

	// MarkReminderSent flips the stage flag and appends the audit entry in
	// one transaction. The update re-checks eligibility (flag still unset,
	// not converted); if no row matches, ErrAlreadySent is returned and no
	// audit row is written.
	MarkReminderSent(ctx context.Context, id string, stage int, entry *domain.EmailLogEntry) error

	// List returns carts ordered by update recency, newest first.
	List(ctx context.Context, limit, offset int) ([]domain.Cart, int, error)

	// Stats returns counts by state over the trailing window.
	Stats(ctx context.Context, window time.Duration) (Stats, error)
}

// UpsertInput holds one webhook-derived cart snapshot.
type UpsertInput struct {
	ID         string
	Email      *string
	CustomerID *string
	Items      json.RawMessage
	Total      float64
}

// Stats aggregates cart counts by state over a trailing window.
type Stats struct {
	Total     int `json:"total"`
	WithEmail int `json:"with_email"`
	Converted int `json:"converted"`
	Reminded  int `json:"reminded"`
}
