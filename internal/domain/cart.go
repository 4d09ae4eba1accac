package domain

import (
	"encoding/json"
	"time"
)

// ReminderStages is the number of ordered recovery reminders a cart can
// receive. Each stage has its own monotonic sent-flag.
const ReminderStages = 3

// Cart is the persisted snapshot of one shopping-cart session on the
// commerce platform, keyed by the platform's cart identifier.
//
// Email and CustomerID are learned lazily: webhooks for anonymous visitors
// carry neither, and later events (or a storefront popup) may fill them in.
// Converted and the reminder flags are terminal — once true, never cleared.
type Cart struct {
	ID         string          `json:"id"`
	Email      *string         `json:"email,omitempty"`
	CustomerID *string         `json:"customer_id,omitempty"`
	Items      json.RawMessage `json:"items,omitempty"`
	Total      float64         `json:"total"`
	Converted  bool            `json:"converted"`

	// ReminderSent[k] records that reminder stage k+1 went out.
	ReminderSent [ReminderStages]bool `json:"reminder_sent"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasEmail reports whether a non-empty email has been learned for this cart.
func (c *Cart) HasEmail() bool {
	return c.Email != nil && *c.Email != ""
}

// CartItem is one line item inside a cart snapshot. The snapshot is stored
// as an opaque JSON payload; this type documents its expected shape for the
// notification payload builder.
type CartItem struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	ImageURL string  `json:"image_url,omitempty"`
	URL      string  `json:"url,omitempty"`
}
