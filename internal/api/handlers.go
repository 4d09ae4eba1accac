package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/ignite/cart-recovery/internal/config"
	"github.com/ignite/cart-recovery/internal/domain"
	"github.com/ignite/cart-recovery/internal/pkg/httputil"
	"github.com/ignite/cart-recovery/internal/pkg/logger"
	"github.com/ignite/cart-recovery/internal/platform"
	"github.com/ignite/cart-recovery/internal/service/browse"
	"github.com/ignite/cart-recovery/internal/service/cart"
)

// statsWindow is the trailing window for the dashboard stats endpoint.
const statsWindow = 30 * 24 * time.Hour

// PlatformClient is the slice of the commerce platform API the handlers
// use. Satisfied by *platform.Client.
type PlatformClient interface {
	FetchCustomerEmail(ctx context.Context, customerID string) (string, error)
	FetchOrder(ctx context.Context, orderID string) (*platform.Order, error)
	UpdateCartEmail(ctx context.Context, cartID, email string) error
}

// ListRemover takes converted buyers off the drip list. Satisfied by
// *delivery.Client.
type ListRemover interface {
	RemoveSubscriber(ctx context.Context, email string) error
}

// EmailLogStore reads the audit log. Satisfied by *postgres.EmailLogRepo.
type EmailLogStore interface {
	List(ctx context.Context, limit, offset int) ([]domain.EmailLogEntry, int, error)
	CountByType(ctx context.Context, window time.Duration) (map[string]int, error)
}

// SweepRunner triggers one sweep cycle out of band.
type SweepRunner interface {
	RunOnce(ctx context.Context) (int, error)
}

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	carts    *cart.Service
	views    *browse.Service
	emailLog EmailLogStore
	platform PlatformClient
	remover  ListRemover
	sweep    config.SweepConfig

	cartSweep   SweepRunner
	browseSweep SweepRunner

	db *sql.DB
}

// NewHandlers creates the handler set. Platform client and list remover
// may be nil; enrichment and list removal then silently degrade.
func NewHandlers(
	carts *cart.Service,
	views *browse.Service,
	emailLog EmailLogStore,
	pc PlatformClient,
	remover ListRemover,
	cartSweep, browseSweep SweepRunner,
	sweep config.SweepConfig,
	db *sql.DB,
) *Handlers {
	return &Handlers{
		carts:       carts,
		views:       views,
		emailLog:    emailLog,
		platform:    pc,
		remover:     remover,
		cartSweep:   cartSweep,
		browseSweep: browseSweep,
		sweep:       sweep,
		db:          db,
	}
}

func optStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// cartWebhookPayload is the commerce platform's cart event body. The
// platform sends the id under either key depending on event age.
type cartWebhookPayload struct {
	ID         string          `json:"id"`
	CartID     string          `json:"cart_id"`
	Email      string          `json:"email"`
	CustomerID string          `json:"customer_id"`
	Items      json.RawMessage `json:"items"`
	Total      float64         `json:"total"`
}

func (p *cartWebhookPayload) cartID() string {
	if p.CartID != "" {
		return p.CartID
	}
	return p.ID
}

// HandleCartWebhook ingests cart-created and cart-updated events. The
// response is 200 no matter what happens; the platform retries anything
// else and a retry storm is worse than one dropped snapshot.
//
//	POST /webhooks/cart-created
//	POST /webhooks/cart-updated
func (h *Handlers) HandleCartWebhook(w http.ResponseWriter, r *http.Request) {
	var p cartWebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		httputil.WebhookOK(w, "unparseable payload")
		return
	}
	id := p.cartID()
	if id == "" {
		httputil.WebhookOK(w, "missing cart id")
		return
	}

	email := p.Email
	if email == "" && p.CustomerID != "" && h.platform != nil {
		// Webhook carried no email but names a customer; ask the platform.
		// Failure just means the cart stays anonymous for now.
		if found, err := h.platform.FetchCustomerEmail(r.Context(), p.CustomerID); err == nil {
			email = found
		} else {
			log.Printf("[Webhook] Customer %s email lookup: %v", p.CustomerID, err)
		}
	}

	items := p.Items
	if items == nil {
		items = json.RawMessage(`[]`)
	}
	_, err := h.carts.Upsert(r.Context(), cart.UpsertInput{
		ID:         id,
		Email:      optStr(email),
		CustomerID: optStr(p.CustomerID),
		Items:      items,
		Total:      p.Total,
	})
	if err != nil {
		log.Printf("[Webhook] Upserting cart %s: %v", id, err)
		httputil.WebhookOK(w, "not recorded")
		return
	}
	httputil.WebhookOK(w, "")
}

type orderWebhookPayload struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	CartID  string `json:"cart_id"`
	Email   string `json:"email"`
}

func (p *orderWebhookPayload) orderID() string {
	if p.OrderID != "" {
		return p.OrderID
	}
	return p.ID
}

// HandleOrderWebhook closes the recovery loop on checkout: the cart is
// marked converted and the buyer comes off the drip list. Always 200.
//
//	POST /webhooks/order-created
func (h *Handlers) HandleOrderWebhook(w http.ResponseWriter, r *http.Request) {
	var p orderWebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		httputil.WebhookOK(w, "unparseable payload")
		return
	}

	cartID := p.CartID
	email := p.Email
	if cartID == "" && p.orderID() != "" && h.platform != nil {
		// Some platforms omit the cart linkage from the order event.
		order, err := h.platform.FetchOrder(r.Context(), p.orderID())
		if err != nil {
			log.Printf("[Webhook] Order %s lookup: %v", p.orderID(), err)
		} else {
			cartID = order.CartID
			if email == "" {
				email = order.BillingEmail
			}
		}
	}
	if cartID == "" {
		httputil.WebhookOK(w, "missing cart id")
		return
	}

	if err := h.carts.MarkConverted(r.Context(), cartID); err != nil {
		log.Printf("[Webhook] Marking cart %s converted: %v", cartID, err)
		httputil.WebhookOK(w, "not recorded")
		return
	}

	if email != "" && h.remover != nil {
		if err := h.remover.RemoveSubscriber(r.Context(), email); err != nil {
			log.Printf("[Webhook] Removing %s from drip list: %v", logger.RedactEmail(email), err)
		}
	}
	httputil.WebhookOK(w, "")
}

type trackViewPayload struct {
	SessionID    string  `json:"session_id"`
	Email        string  `json:"email"`
	ProductID    string  `json:"product_id"`
	ProductName  string  `json:"product_name"`
	ProductURL   string  `json:"product_url"`
	ProductImage string  `json:"product_image"`
	ProductPrice float64 `json:"product_price"`
}

// HandleTrackView ingests one storefront product-view ping. Unlike the
// webhooks this is our own pixel, so a bad payload gets a real 400.
//
//	POST /track/view
func (h *Handlers) HandleTrackView(w http.ResponseWriter, r *http.Request) {
	var p trackViewPayload
	if !httputil.Decode(w, r, &p) {
		return
	}

	ev, err := h.views.RecordView(r.Context(), browse.RecordInput{
		SessionID:    p.SessionID,
		Email:        optStr(p.Email),
		ProductID:    p.ProductID,
		ProductName:  p.ProductName,
		ProductURL:   p.ProductURL,
		ProductImage: p.ProductImage,
		ProductPrice: p.ProductPrice,
	})
	if err == browse.ErrMissingProduct {
		httputil.BadRequest(w, "product_id is required")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	// A view with an email is a chance to de-anonymize a recent cart.
	if p.Email != "" {
		if cartID, err := h.carts.AttachRecentCart(r.Context(), p.Email, h.sweep.AttachWindow()); err == nil {
			if h.platform != nil {
				if err := h.platform.UpdateCartEmail(r.Context(), cartID, p.Email); err != nil {
					log.Printf("[Track] Pushing email to platform cart %s: %v", cartID, err)
				}
			}
		} else if err != cart.ErrNotFound {
			log.Printf("[Track] Attaching email to recent cart: %v", err)
		}
	}

	httputil.OK(w, map[string]any{"recorded": true, "id": ev.ID})
}
