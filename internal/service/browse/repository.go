package browse

import (
	"context"
	"time"

	"github.com/ignite/cart-recovery/internal/domain"
)

// Repository defines the data access contract for browse events.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Insert appends one view row. Views are never merged; repeat views of
	// the same product each get their own row.
	Insert(ctx context.Context, ev *domain.BrowseEvent) error

	// EligibleEmails returns up to limit distinct emails that hold at least
	// one un-notified view with a non-empty image older than dwell, and for
	// which no non-converted cart was updated within cartRecency (the
	// cart track takes priority — mutual exclusion).
	EligibleEmails(ctx context.Context, dwell, cartRecency time.Duration, limit int) ([]string, error)

	// EligibleProducts returns the latest un-notified, image-bearing view
	// per distinct product for the email, restricted to views older than
	// cutoff, ranked by recency descending and capped at limit.
	EligibleProducts(ctx context.Context, email string, cutoff time.Time, limit int) ([]domain.BrowseEvent, error)

	// MarkEmailSent flips email_sent for ALL of the email's currently
	// eligible rows (older than cutoff, un-notified, image present) in one
	// transaction together with the audit entry. Returns ErrNothingToFlag
	// when no row qualified; in that case no audit row is written.
	MarkEmailSent(ctx context.Context, email string, cutoff time.Time, entry *domain.EmailLogEntry) (int64, error)

	// List returns recent views, newest first.
	List(ctx context.Context, limit, offset int) ([]domain.BrowseEvent, int, error)

	// Stats returns counts by state over the trailing window.
	Stats(ctx context.Context, window time.Duration) (Stats, error)
}

// RecordInput holds one storefront view ping.
type RecordInput struct {
	SessionID    string
	Email        *string
	ProductID    string
	ProductName  string
	ProductURL   string
	ProductImage string
	ProductPrice float64
}

// Stats aggregates browse-event counts over a trailing window.
type Stats struct {
	Total     int `json:"total"`
	WithEmail int `json:"with_email"`
	Notified  int `json:"notified"`
	Carted    int `json:"carted"`
}
