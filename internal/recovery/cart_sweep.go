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
	"github.com/ignite/cart-recovery/internal/service/cart"
)

// Sender delivers one recovery message. Satisfied by *delivery.Client.
type Sender interface {
	Notify(ctx context.Context, recipient string, kind delivery.TemplateKind, payload any) error
}

var stageSubjects = [domain.ReminderStages]string{
	"You left something in your cart",
	"Still thinking it over?",
	"Last chance: your cart is about to expire",
}

// CartSweep periodically finds abandoned carts and sends staged reminders.
type CartSweep struct {
	carts  *cart.Service
	sender Sender
	gate   *Gate
	lock   distlock.DistLock
	cfg    config.SweepConfig
}

// NewCartSweep creates the cart abandonment sweep.
func NewCartSweep(carts *cart.Service, sender Sender, gate *Gate, lock distlock.DistLock, cfg config.SweepConfig) *CartSweep {
	return &CartSweep{carts: carts, sender: sender, gate: gate, lock: lock, cfg: cfg}
}

// stageDwell returns how long a cart must sit untouched before the given
// reminder stage fires.
func (s *CartSweep) stageDwell(stage int) time.Duration {
	switch stage {
	case 1:
		return s.cfg.CartDwell()
	case 2:
		return time.Duration(s.cfg.Stage2DwellHours) * time.Hour
	default:
		return time.Duration(s.cfg.Stage3DwellHours) * time.Hour
	}
}

// Start begins the sweep loop. It blocks until ctx is cancelled.
func (s *CartSweep) Start(ctx context.Context) {
	log.Printf("[CartSweep] Starting (interval=%s, dwell=%s, batch=%d)",
		s.cfg.CartInterval(), s.cfg.CartDwell(), s.cfg.BatchSize)

	// Run once immediately on start
	s.tick(ctx)

	ticker := time.NewTicker(s.cfg.CartInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[CartSweep] Stopping")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *CartSweep) tick(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		log.Printf("[CartSweep] Cycle error: %v", err)
	}
}

// RunOnce executes a single sweep cycle under the distributed lock and
// returns the number of reminders sent. A cycle that loses the lock race
// is skipped, never run unlocked.
func (s *CartSweep) RunOnce(ctx context.Context) (int, error) {
	ok, err := s.lock.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		log.Println("[CartSweep] Another instance holds the lock, skipping cycle")
		return 0, nil
	}
	defer s.lock.Release(ctx)

	start := time.Now()
	sent := 0
	// Highest stage first, so a cart flagged at stage k this cycle cannot
	// also qualify for stage k+1 until a later cycle.
	for stage := domain.ReminderStages; stage >= 1; stage-- {
		sent += s.runStage(ctx, stage)
	}
	if sent > 0 {
		log.Printf("[CartSweep] Cycle completed in %s, %d reminders sent",
			time.Since(start).Round(time.Millisecond), sent)
	}
	return sent, nil
}

// runStage processes one reminder stage. A failure on one cart never
// aborts the rest of the batch.
func (s *CartSweep) runStage(ctx context.Context, stage int) int {
	carts, err := s.carts.Abandoned(ctx, stage, s.stageDwell(stage), s.cfg.BatchSize)
	if err != nil {
		log.Printf("[CartSweep] Selecting stage-%d carts: %v", stage, err)
		return 0
	}

	sent := 0
	for i := range carts {
		c := &carts[i]
		if !c.HasEmail() {
			continue
		}
		email := *c.Email

		if !s.gate.Allow(email) {
			continue
		}

		payload := delivery.CartPayload{
			CartID: c.ID,
			Stage:  stage,
			Items:  c.Items,
			Total:  c.Total,
		}
		if err := s.sender.Notify(ctx, email, delivery.TemplateCart, payload); err != nil {
			log.Printf("[CartSweep] Sending stage-%d reminder for cart %s to %s: %v",
				stage, c.ID, logger.RedactEmail(email), err)
			continue
		}

		entry := &domain.EmailLogEntry{
			Type:      domain.CartReminderLogType(stage),
			Recipient: email,
			Subject:   stageSubjects[stage-1],
			CartID:    c.ID,
		}
		if err := s.carts.ConfirmReminder(ctx, c.ID, stage, entry); err != nil {
			if err == cart.ErrAlreadySent {
				continue
			}
			log.Printf("[CartSweep] Recording stage-%d reminder for cart %s: %v", stage, c.ID, err)
			continue
		}
		logger.Info("cart reminder sent", "cart_id", c.ID, "stage", stage, "recipient", email)
		sent++
	}
	return sent
}
