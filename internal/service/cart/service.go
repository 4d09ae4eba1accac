package cart

import (
	"context"
	"time"

	"github.com/ignite/cart-recovery/internal/domain"
)

// Service implements cart tracking business logic on top of a Repository.
// All public methods are safe for concurrent use if the underlying
// repository is concurrency-safe.
type Service struct {
	repo Repository
}

// NewService creates a cart service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Upsert records a cart snapshot from a webhook event. Repeated calls for
// the same identifier are idempotent with respect to row existence; the
// latest snapshot wins, learned email/customer values are preserved.
func (s *Service) Upsert(ctx context.Context, in UpsertInput) (*domain.Cart, error) {
	if in.ID == "" {
		return nil, ErrMissingID
	}
	return s.repo.Upsert(ctx, in)
}

// Get returns a single cart.
func (s *Service) Get(ctx context.Context, id string) (*domain.Cart, error) {
	return s.repo.Get(ctx, id)
}

// MarkConverted closes the cart after order completion. The cart drops out
// of abandonment eligibility permanently; unknown ids are ignored.
func (s *Service) MarkConverted(ctx context.Context, id string) error {
	if id == "" {
		return ErrMissingID
	}
	return s.repo.MarkConverted(ctx, id)
}

// AttachEmail sets the learned email on a known cart.
func (s *Service) AttachEmail(ctx context.Context, id, email string) error {
	if id == "" {
		return ErrMissingID
	}
	return s.repo.SetEmail(ctx, id, email)
}

// AttachRecentCart associates an out-of-band learned email (e.g. from an
// on-site popup) with the most plausible in-flight cart: the most recently
// updated non-converted cart without an email inside the window.
//
// This is a pure recency heuristic with no session correlation; under
// concurrent anonymous carts it can attach the email to the wrong one.
// Returns the chosen cart id, or ErrNotFound when no cart qualifies.
func (s *Service) AttachRecentCart(ctx context.Context, email string, window time.Duration) (string, error) {
	id, err := s.repo.FindIDWithoutEmailRecent(ctx, window)
	if err != nil {
		return "", err
	}
	if err := s.repo.SetEmail(ctx, id, email); err != nil {
		return "", err
	}
	return id, nil
}

// Abandoned returns the carts currently eligible for the given reminder
// stage, oldest-updated first.
func (s *Service) Abandoned(ctx context.Context, stage int, dwell time.Duration, limit int) ([]domain.Cart, error) {
	return s.repo.SelectAbandoned(ctx, stage, dwell, limit)
}

// ConfirmReminder records a successful send: stage flag plus audit entry,
// atomically. ErrAlreadySent means another sweep got there first.
func (s *Service) ConfirmReminder(ctx context.Context, id string, stage int, entry *domain.EmailLogEntry) error {
	return s.repo.MarkReminderSent(ctx, id, stage, entry)
}

// List returns carts for the query endpoints.
func (s *Service) List(ctx context.Context, limit, offset int) ([]domain.Cart, int, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.List(ctx, limit, offset)
}

// Stats returns trailing-window counts by state.
func (s *Service) Stats(ctx context.Context, window time.Duration) (Stats, error) {
	return s.repo.Stats(ctx, window)
}
