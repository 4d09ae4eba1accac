package recovery

import (
	"context"
	"log"
	"time"

	"github.com/ignite/cart-recovery/internal/config"
	"github.com/ignite/cart-recovery/internal/delivery"
	"github.com/ignite/cart-recovery/internal/domain"
	"github.com/ignite/cart-recovery/internal/pkg/distlock"
	"github.com/ignite/cart-recovery/internal/pkg/logger"
	"github.com/ignite/cart-recovery/internal/service/browse"
)

const browseSubject = "Still looking? Take another peek"

// BrowseSweep periodically finds shoppers who viewed products but never
// carted them and sends one recovery message per shopper. Shoppers with a
// live cart are left to the cart sweep.
type BrowseSweep struct {
	views  *browse.Service
	sender Sender
	gate   *Gate
	lock   distlock.DistLock
	cfg    config.SweepConfig
}

// NewBrowseSweep creates the browse abandonment sweep.
func NewBrowseSweep(views *browse.Service, sender Sender, gate *Gate, lock distlock.DistLock, cfg config.SweepConfig) *BrowseSweep {
	return &BrowseSweep{views: views, sender: sender, gate: gate, lock: lock, cfg: cfg}
}

// Start begins the sweep loop. It blocks until ctx is cancelled.
func (s *BrowseSweep) Start(ctx context.Context) {
	log.Printf("[BrowseSweep] Starting (interval=%s, dwell=%s, batch=%d, max_products=%d)",
		s.cfg.BrowseInterval(), s.cfg.BrowseDwell(), s.cfg.BatchSize, s.cfg.MaxProducts)

	// Run once immediately on start
	s.tick(ctx)

	ticker := time.NewTicker(s.cfg.BrowseInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[BrowseSweep] Stopping")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *BrowseSweep) tick(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		log.Printf("[BrowseSweep] Cycle error: %v", err)
	}
}

// RunOnce executes a single sweep cycle under the distributed lock and
// returns the number of messages sent.
func (s *BrowseSweep) RunOnce(ctx context.Context) (int, error) {
	ok, err := s.lock.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		log.Println("[BrowseSweep] Another instance holds the lock, skipping cycle")
		return 0, nil
	}
	defer s.lock.Release(ctx)

	emails, err := s.views.EligibleEmails(ctx, s.cfg.BrowseDwell(), s.cfg.CartRecency(), s.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	// One cutoff for the whole cycle so selection and flagging agree on
	// which rows the message covered.
	cutoff := time.Now().UTC().Add(-s.cfg.BrowseDwell())

	sent := 0
	for _, email := range emails {
		if !s.gate.Allow(email) {
			continue
		}
		if s.processEmail(ctx, email, cutoff) {
			sent++
		}
	}
	if sent > 0 {
		log.Printf("[BrowseSweep] Cycle completed, %d messages sent", sent)
	}
	return sent, nil
}

// processEmail sends one browse recovery message and flags the rows it
// covers. Returns true when a message went out and was recorded.
func (s *BrowseSweep) processEmail(ctx context.Context, email string, cutoff time.Time) bool {
	events, err := s.views.EligibleProducts(ctx, email, cutoff, s.cfg.MaxProducts)
	if err != nil {
		log.Printf("[BrowseSweep] Selecting products for %s: %v", logger.RedactEmail(email), err)
		return false
	}
	if len(events) == 0 {
		return false
	}

	payload := delivery.BrowsePayload{}
	for _, ev := range events {
		payload.Products = append(payload.Products, delivery.BrowseProduct{
			ID:       ev.ProductID,
			Name:     ev.ProductName,
			URL:      ev.ProductURL,
			ImageURL: ev.ProductImage,
			Price:    ev.ProductPrice,
		})
	}

	if err := s.sender.Notify(ctx, email, delivery.TemplateBrowse, payload); err != nil {
		log.Printf("[BrowseSweep] Sending to %s: %v", logger.RedactEmail(email), err)
		return false
	}

	entry := &domain.EmailLogEntry{
		Type:      domain.EmailLogBrowse,
		Recipient: email,
		Subject:   browseSubject,
		ProductID: events[0].ProductID,
	}
	flagged, err := s.views.ConfirmSent(ctx, email, cutoff, entry)
	if err != nil {
		if err == browse.ErrNothingToFlag {
			return false
		}
		log.Printf("[BrowseSweep] Recording send for %s: %v", logger.RedactEmail(email), err)
		return false
	}
	logger.Info("browse recovery sent",
		"recipient", email, "products", len(events), "rows_flagged", flagged)
	return true
}
