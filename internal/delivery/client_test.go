package delivery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ignite/cart-recovery/internal/config"
)

func testClient(t *testing.T, listID string, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.DeliveryConfig{
		BaseURL: srv.URL, APIKey: "test-key", ListID: listID, TimeoutSeconds: 5,
	})
}

func TestNotifySendsTemplateAndData(t *testing.T) {
	var got map[string]any
	c := testClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" || r.Method != http.MethodPost {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	})

	err := c.Notify(context.Background(), "v@x.com", TemplateBrowse, BrowsePayload{
		Products: []BrowseProduct{{ID: "P1", Name: "Hat"}},
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if got["to"] != "v@x.com" || got["template"] != "browse_reminder" {
		t.Errorf("body = %v", got)
	}
}

func TestNotifyErrorOnRejection(t *testing.T) {
	c := testClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	if err := c.Notify(context.Background(), "v@x.com", TemplateCart, CartPayload{}); err == nil {
		t.Fatal("expected error when delivery rejects")
	}
}

func TestRemoveSubscriber(t *testing.T) {
	called := false
	c := testClient(t, "list-1", func(w http.ResponseWriter, r *http.Request) {
		called = true
		if r.Method != http.MethodDelete || r.URL.Path != "/lists/list-1/subscribers/v@x.com" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if err := c.RemoveSubscriber(context.Background(), "v@x.com"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if !called {
		t.Fatal("API not called")
	}
}

func TestRemoveSubscriberNoListConfigured(t *testing.T) {
	c := testClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should go out without a list id")
	})

	if err := c.RemoveSubscriber(context.Background(), "v@x.com"); err != nil {
		t.Fatalf("remove: %v", err)
	}
}
