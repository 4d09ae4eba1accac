// Package delivery sends recovery emails through the campaign delivery
// API and manages the automation list converted buyers drop off of.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ignite/cart-recovery/internal/config"
)

// TemplateKind selects the message template on the delivery side.
type TemplateKind string

const (
	// TemplateCart is the abandoned-cart reminder template family.
	TemplateCart TemplateKind = "cart_reminder"
	// TemplateBrowse is the browse-abandonment template.
	TemplateBrowse TemplateKind = "browse_reminder"
)

// CartPayload is the template data for a cart reminder.
type CartPayload struct {
	CartID string          `json:"cart_id"`
	Stage  int             `json:"stage"`
	Items  json.RawMessage `json:"items,omitempty"`
	Total  float64         `json:"total"`
}

// BrowsePayload is the template data for a browse-abandonment message.
type BrowsePayload struct {
	Products []BrowseProduct `json:"products"`
}

// BrowseProduct is one product card in a browse-abandonment message.
type BrowseProduct struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	URL      string  `json:"url"`
	ImageURL string  `json:"image_url"`
	Price    float64 `json:"price"`
}

// HTTPDoer abstracts the HTTP client for testing.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a campaign delivery API client
type Client struct {
	baseURL    string
	apiKey     string
	listID     string
	httpClient HTTPDoer
}

// NewClient creates a new delivery API client
func NewClient(cfg config.DeliveryConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		listID:  cfg.ListID,
		httpClient: &http.Client{
			Timeout: cfg.Timeout(),
		},
	}
}

func (c *Client) doRequest(ctx context.Context, method, path string, payload any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(data))
	}

	return nil
}

// Notify sends one recovery message. An error means the send did not
// happen and no state should be flagged for the recipient.
func (c *Client) Notify(ctx context.Context, recipient string, kind TemplateKind, payload any) error {
	return c.doRequest(ctx, http.MethodPost, "/messages", map[string]any{
		"to":       recipient,
		"template": string(kind),
		"data":     payload,
	})
}

// RemoveSubscriber takes a converted buyer off the configured automation
// list so the drip sequence stops. No-op when no list is configured.
func (c *Client) RemoveSubscriber(ctx context.Context, email string) error {
	if c.listID == "" {
		return nil
	}
	return c.doRequest(ctx, http.MethodDelete,
		"/lists/"+c.listID+"/subscribers/"+email, nil)
}
