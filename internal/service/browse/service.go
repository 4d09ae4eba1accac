package browse

import (
	"context"
	"time"

	"github.com/ignite/cart-recovery/internal/domain"
)

// Service implements browse tracking business logic on top of a Repository.
type Service struct {
	repo Repository
}

// NewService creates a browse service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// RecordView appends one product-page view. Product id is required; session
// and email are whatever the storefront pixel could see.
func (s *Service) RecordView(ctx context.Context, in RecordInput) (*domain.BrowseEvent, error) {
	if in.ProductID == "" {
		return nil, ErrMissingProduct
	}
	ev := &domain.BrowseEvent{
		SessionID:    in.SessionID,
		Email:        in.Email,
		ProductID:    in.ProductID,
		ProductName:  in.ProductName,
		ProductURL:   in.ProductURL,
		ProductImage: in.ProductImage,
		ProductPrice: in.ProductPrice,
		ViewedAt:     time.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// EligibleEmails returns the emails the browse sweep should consider.
func (s *Service) EligibleEmails(ctx context.Context, dwell, cartRecency time.Duration, limit int) ([]string, error) {
	return s.repo.EligibleEmails(ctx, dwell, cartRecency, limit)
}

// EligibleProducts returns the top products for one email's recovery
// message: one representative row per product (the latest view), ranked by
// recency, capped at limit.
func (s *Service) EligibleProducts(ctx context.Context, email string, cutoff time.Time, limit int) ([]domain.BrowseEvent, error) {
	return s.repo.EligibleProducts(ctx, email, cutoff, limit)
}

// ConfirmSent flags every currently-eligible row for the email — not just
// the rows that made the message — and appends the audit entry atomically.
func (s *Service) ConfirmSent(ctx context.Context, email string, cutoff time.Time, entry *domain.EmailLogEntry) (int64, error) {
	return s.repo.MarkEmailSent(ctx, email, cutoff, entry)
}

// List returns recent views for the query endpoints.
func (s *Service) List(ctx context.Context, limit, offset int) ([]domain.BrowseEvent, int, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.List(ctx, limit, offset)
}

// Stats returns trailing-window counts by state.
func (s *Service) Stats(ctx context.Context, window time.Duration) (Stats, error) {
	return s.repo.Stats(ctx, window)
}
