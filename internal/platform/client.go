// Package platform is a client for the commerce platform's REST API. The
// service uses it to fill in data the webhooks do not carry: customer
// emails, full cart contents, and the cart behind a completed order.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ignite/cart-recovery/internal/config"
)

// HTTPDoer abstracts the HTTP client for testing.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a commerce platform API client
type Client struct {
	baseURL    string
	apiKey     string
	httpClient HTTPDoer
}

// NewClient creates a new commerce platform API client
func NewClient(cfg config.PlatformConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout(),
		},
	}
}

// doRequest makes an HTTP request to the platform API
func (c *Client) doRequest(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(data))
	}

	return data, nil
}

// Cart is the platform's cart representation, reduced to the fields the
// recovery flow needs.
type Cart struct {
	ID         string          `json:"id"`
	Email      string          `json:"email"`
	CustomerID string          `json:"customer_id"`
	Items      json.RawMessage `json:"items"`
	Total      float64         `json:"total"`
}

// Order carries the cart linkage and billing email from a completed order.
type Order struct {
	ID           string `json:"id"`
	CartID       string `json:"cart_id"`
	BillingEmail string `json:"billing_email"`
}

// FetchCart retrieves the current cart snapshot by id.
func (c *Client) FetchCart(ctx context.Context, cartID string) (*Cart, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/carts/"+cartID, nil)
	if err != nil {
		return nil, err
	}
	var cart Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("parsing cart: %w", err)
	}
	return &cart, nil
}

// FetchCustomerEmail resolves a customer id to their email address.
// Returns "" with no error when the platform has no email on file.
func (c *Client) FetchCustomerEmail(ctx context.Context, customerID string) (string, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/customers/"+customerID, nil)
	if err != nil {
		return "", err
	}
	var customer struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(data, &customer); err != nil {
		return "", fmt.Errorf("parsing customer: %w", err)
	}
	return customer.Email, nil
}

// FetchOrder retrieves a completed order, used to resolve the cart an order
// closed when the webhook payload omits the cart id.
func (c *Client) FetchOrder(ctx context.Context, orderID string) (*Order, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/orders/"+orderID, nil)
	if err != nil {
		return nil, err
	}
	var order Order
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, fmt.Errorf("parsing order: %w", err)
	}
	return &order, nil
}

// UpdateCartEmail pushes a learned email back to the platform cart so a
// later checkout starts pre-filled. Best effort; callers log failures.
func (c *Client) UpdateCartEmail(ctx context.Context, cartID, email string) error {
	_, err := c.doRequest(ctx, http.MethodPut, "/carts/"+cartID,
		map[string]string{"email": email})
	return err
}
