package domain

import "time"

// BrowseEvent is one observed product-page view. Events are append-only:
// repeat views of the same product by the same session each get their own
// row, preserving full history for recency ordering.
//
// Email may be attached after the fact, once the visitor identifies
// themselves. EmailSent is flipped in bulk for all of an email's eligible
// rows when a browse-recovery message goes out, and never reverts.
type BrowseEvent struct {
	ID           int64     `json:"id"`
	SessionID    string    `json:"session_id"`
	Email        *string   `json:"email,omitempty"`
	ProductID    string    `json:"product_id"`
	ProductName  string    `json:"product_name,omitempty"`
	ProductURL   string    `json:"product_url,omitempty"`
	ProductImage string    `json:"product_image,omitempty"`
	ProductPrice float64   `json:"product_price"`
	ViewedAt     time.Time `json:"viewed_at"`
	EmailSent    bool      `json:"email_sent"`
	AddedToCart  bool      `json:"added_to_cart"`
}
