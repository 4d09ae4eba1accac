package browse_test

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/ignite/cart-recovery/internal/domain"
	"github.com/ignite/cart-recovery/internal/service/browse"
)

// memRepo is an in-memory browse repository mirroring the SQL semantics:
// append-only rows, latest-view-per-product selection, batch flagging.
type memRepo struct {
	mu     sync.Mutex
	nextID int64
	events []*domain.BrowseEvent
	log    []*domain.EmailLogEntry

	// liveCarts simulates the mutual-exclusion subquery: emails that have a
	// non-converted cart updated inside the recency window.
	liveCarts map[string]bool
}

func newMemRepo() *memRepo {
	return &memRepo{liveCarts: make(map[string]bool)}
}

func (m *memRepo) Insert(_ context.Context, ev *domain.BrowseEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	ev.ID = m.nextID
	cp := *ev
	m.events = append(m.events, &cp)
	return nil
}

func (m *memRepo) eligible(ev *domain.BrowseEvent, cutoff time.Time) bool {
	return ev.Email != nil && *ev.Email != "" && !ev.EmailSent &&
		ev.ProductImage != "" && ev.ViewedAt.Before(cutoff)
}

func (m *memRepo) EligibleEmails(_ context.Context, dwell, _ time.Duration, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().UTC().Add(-dwell)
	seen := make(map[string]bool)
	var out []string
	for _, ev := range m.events {
		if !m.eligible(ev, cutoff) {
			continue
		}
		email := *ev.Email
		if seen[email] || m.liveCarts[email] {
			continue
		}
		seen[email] = true
		out = append(out, email)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memRepo) EligibleProducts(_ context.Context, email string, cutoff time.Time, limit int) ([]domain.BrowseEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	latest := make(map[string]*domain.BrowseEvent)
	for _, ev := range m.events {
		if !m.eligible(ev, cutoff) || *ev.Email != email {
			continue
		}
		if cur, ok := latest[ev.ProductID]; !ok || ev.ViewedAt.After(cur.ViewedAt) {
			latest[ev.ProductID] = ev
		}
	}
	var out []domain.BrowseEvent
	for _, ev := range latest {
		out = append(out, *ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ViewedAt.After(out[j].ViewedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memRepo) MarkEmailSent(_ context.Context, email string, cutoff time.Time, entry *domain.EmailLogEntry) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, ev := range m.events {
		if m.eligible(ev, cutoff) && *ev.Email == email {
			ev.EmailSent = true
			n++
		}
	}
	if n == 0 {
		return 0, browse.ErrNothingToFlag
	}
	m.log = append(m.log, entry)
	return n, nil
}

func (m *memRepo) List(_ context.Context, limit, offset int) ([]domain.BrowseEvent, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.BrowseEvent
	for _, ev := range m.events {
		out = append(out, *ev)
	}
	return out, len(out), nil
}

func (m *memRepo) Stats(_ context.Context, _ time.Duration) (browse.Stats, error) {
	return browse.Stats{}, nil
}

func strPtr(s string) *string { return &s }

// seed inserts a view with an explicit timestamp.
func seed(m *memRepo, email, product, image string, viewedAt time.Time) {
	m.nextID++
	m.events = append(m.events, &domain.BrowseEvent{
		ID: m.nextID, SessionID: "s1", Email: strPtr(email),
		ProductID: product, ProductImage: image, ViewedAt: viewedAt,
	})
}

func TestRecordViewRequiresProduct(t *testing.T) {
	svc := browse.NewService(newMemRepo())
	if _, err := svc.RecordView(context.Background(), browse.RecordInput{SessionID: "s1"}); err != browse.ErrMissingProduct {
		t.Fatalf("expected ErrMissingProduct, got %v", err)
	}
}

func TestRecordViewAppendsAlways(t *testing.T) {
	repo := newMemRepo()
	svc := browse.NewService(repo)
	ctx := context.Background()

	in := browse.RecordInput{SessionID: "s1", ProductID: "P1", ProductName: "Hat"}
	svc.RecordView(ctx, in)
	svc.RecordView(ctx, in)

	if len(repo.events) != 2 {
		t.Fatalf("repeat views must append, got %d rows", len(repo.events))
	}
}

func TestEligibleProductsLatestPerProductTopN(t *testing.T) {
	repo := newMemRepo()
	svc := browse.NewService(repo)
	base := time.Now().UTC().Add(-3 * time.Hour)

	// P1 viewed at T=0 and T=5m, P2 at T=3m, P3 at T=1m — all with images.
	seed(repo, "v@x.com", "P1", "img1", base)
	seed(repo, "v@x.com", "P2", "img2", base.Add(3*time.Minute))
	seed(repo, "v@x.com", "P1", "img1", base.Add(5*time.Minute))
	seed(repo, "v@x.com", "P3", "img3", base.Add(1*time.Minute))

	got, err := svc.EligibleProducts(context.Background(), "v@x.com", time.Now().UTC(), 2)
	if err != nil {
		t.Fatalf("eligible: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected limit-2 products, got %d", len(got))
	}
	// Representatives ranked by recency: P1 (T=5m), then P2 (T=3m). P3 cut.
	if got[0].ProductID != "P1" || got[1].ProductID != "P2" {
		t.Fatalf("wrong order: %s, %s", got[0].ProductID, got[1].ProductID)
	}
}

func TestEligibleProductsSkipsMissingImage(t *testing.T) {
	repo := newMemRepo()
	svc := browse.NewService(repo)
	seed(repo, "v@x.com", "P1", "", time.Now().UTC().Add(-3*time.Hour))

	got, _ := svc.EligibleProducts(context.Background(), "v@x.com", time.Now().UTC(), 2)
	if len(got) != 0 {
		t.Fatal("view without an image must not be selected")
	}
}

func TestConfirmSentFlagsAllEligibleRows(t *testing.T) {
	repo := newMemRepo()
	svc := browse.NewService(repo)
	base := time.Now().UTC().Add(-3 * time.Hour)

	// Three products; only two make the message, but all rows get flagged.
	seed(repo, "v@x.com", "P1", "img", base.Add(5*time.Minute))
	seed(repo, "v@x.com", "P2", "img", base.Add(3*time.Minute))
	seed(repo, "v@x.com", "P3", "img", base)

	n, err := svc.ConfirmSent(context.Background(), "v@x.com", time.Now().UTC(),
		&domain.EmailLogEntry{Type: domain.EmailLogBrowse, Recipient: "v@x.com", ProductID: "P1"})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected all 3 rows flagged, got %d", n)
	}
	for _, ev := range repo.events {
		if !ev.EmailSent {
			t.Fatalf("row for %s not flagged", ev.ProductID)
		}
	}
	if len(repo.log) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(repo.log))
	}

	// Flagged rows are never selected again.
	got, _ := svc.EligibleProducts(context.Background(), "v@x.com", time.Now().UTC(), 2)
	if len(got) != 0 {
		t.Fatal("flagged rows reselected")
	}
}

func TestConfirmSentNothingEligible(t *testing.T) {
	svc := browse.NewService(newMemRepo())
	_, err := svc.ConfirmSent(context.Background(), "v@x.com", time.Now().UTC(), &domain.EmailLogEntry{})
	if err != browse.ErrNothingToFlag {
		t.Fatalf("expected ErrNothingToFlag, got %v", err)
	}
}

func TestEligibleEmailsMutualExclusion(t *testing.T) {
	repo := newMemRepo()
	svc := browse.NewService(repo)
	old := time.Now().UTC().Add(-3 * time.Hour)

	seed(repo, "busy@x.com", "P1", "img", old)
	seed(repo, "idle@x.com", "P2", "img", old)
	repo.liveCarts["busy@x.com"] = true

	emails, err := svc.EligibleEmails(context.Background(), 2*time.Hour, 24*time.Hour, 10)
	if err != nil {
		t.Fatalf("eligible emails: %v", err)
	}
	if len(emails) != 1 || emails[0] != "idle@x.com" {
		t.Fatalf("cart track must suppress browse track: %v", emails)
	}

	// Once the cart leaves the recency window the email becomes eligible.
	delete(repo.liveCarts, "busy@x.com")
	emails, _ = svc.EligibleEmails(context.Background(), 2*time.Hour, 24*time.Hour, 10)
	if len(emails) != 2 {
		t.Fatalf("expected both emails eligible, got %v", emails)
	}
}
