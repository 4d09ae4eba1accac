package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ignite/cart-recovery/internal/domain"
	"github.com/ignite/cart-recovery/internal/service/browse"
)

// BrowseRepo implements browse.Repository against PostgreSQL.
type BrowseRepo struct{ db *sql.DB }

// NewBrowseRepo creates a Postgres-backed browse repository.
func NewBrowseRepo(db *sql.DB) *BrowseRepo { return &BrowseRepo{db: db} }

const browseColumns = `id, session_id, email, product_id, product_name, product_url,
	       product_image, product_price, viewed_at, email_sent, added_to_cart`

func scanBrowseEvent(row interface{ Scan(...any) error }) (*domain.BrowseEvent, error) {
	ev := &domain.BrowseEvent{}
	var email sql.NullString
	err := row.Scan(
		&ev.ID, &ev.SessionID, &email, &ev.ProductID, &ev.ProductName,
		&ev.ProductURL, &ev.ProductImage, &ev.ProductPrice,
		&ev.ViewedAt, &ev.EmailSent, &ev.AddedToCart,
	)
	if err != nil {
		return nil, err
	}
	if email.Valid {
		ev.Email = &email.String
	}
	return ev, nil
}

func (r *BrowseRepo) Insert(ctx context.Context, ev *domain.BrowseEvent) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO recovery_browse_events
			(session_id, email, product_id, product_name, product_url,
			 product_image, product_price, viewed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, ev.SessionID, ev.Email, ev.ProductID, ev.ProductName, ev.ProductURL,
		ev.ProductImage, ev.ProductPrice, ev.ViewedAt).Scan(&ev.ID)
	if err != nil {
		return fmt.Errorf("insert browse event: %w", err)
	}
	return nil
}

// EligibleEmails embeds the cart-priority rule: an email with a live
// non-converted cart inside the recency window is suppressed from the
// browse track entirely.
func (r *BrowseRepo) EligibleEmails(ctx context.Context, dwell, cartRecency time.Duration, limit int) ([]string, error) {
	now := time.Now().UTC()
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT b.email
		FROM recovery_browse_events b
		WHERE b.email IS NOT NULL AND b.email <> ''
		  AND b.email_sent = FALSE
		  AND b.product_image <> ''
		  AND b.viewed_at < $1
		  AND NOT EXISTS (
			SELECT 1 FROM recovery_carts c
			WHERE c.email = b.email
			  AND c.converted = FALSE
			  AND c.updated_at > $2
		  )
		LIMIT $3
	`, now.Add(-dwell), now.Add(-cartRecency), limit)
	if err != nil {
		return nil, fmt.Errorf("select eligible emails: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("scan eligible email: %w", err)
		}
		out = append(out, email)
	}
	return out, rows.Err()
}

// EligibleProducts reduces to one representative row per product (the
// latest view via DISTINCT ON), then ranks representatives by recency and
// takes the top N.
func (r *BrowseRepo) EligibleProducts(ctx context.Context, email string, cutoff time.Time, limit int) ([]domain.BrowseEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+browseColumns+`
		FROM (
			SELECT DISTINCT ON (product_id) `+browseColumns+`
			FROM recovery_browse_events
			WHERE email = $1
			  AND email_sent = FALSE
			  AND product_image <> ''
			  AND viewed_at < $2
			ORDER BY product_id, viewed_at DESC
		) latest
		ORDER BY viewed_at DESC
		LIMIT $3
	`, email, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("select eligible products: %w", err)
	}
	defer rows.Close()

	var out []domain.BrowseEvent
	for rows.Next() {
		ev, err := scanBrowseEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan eligible product: %w", err)
		}
		out = append(out, *ev)
	}
	return out, rows.Err()
}

// MarkEmailSent flips every currently-eligible row for the email — batch
// semantics, not per-product — and appends the audit entry in the same
// transaction. Zero flagged rows means another sweep already handled this
// email; nothing is logged.
func (r *BrowseRepo) MarkEmailSent(ctx context.Context, email string, cutoff time.Time, entry *domain.EmailLogEntry) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE recovery_browse_events
		SET email_sent = TRUE
		WHERE email = $1
		  AND email_sent = FALSE
		  AND product_image <> ''
		  AND viewed_at < $2
	`, email, cutoff)
	if err != nil {
		return 0, fmt.Errorf("mark email sent: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return 0, browse.ErrNothingToFlag
	}

	if err := insertEmailLog(ctx, tx, entry); err != nil {
		return 0, fmt.Errorf("append email log: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

func (r *BrowseRepo) List(ctx context.Context, limit, offset int) ([]domain.BrowseEvent, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM recovery_browse_events`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count browse events: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+browseColumns+`
		FROM recovery_browse_events
		ORDER BY viewed_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list browse events: %w", err)
	}
	defer rows.Close()

	var out []domain.BrowseEvent
	for rows.Next() {
		ev, err := scanBrowseEvent(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan browse event: %w", err)
		}
		out = append(out, *ev)
	}
	return out, total, rows.Err()
}

func (r *BrowseRepo) Stats(ctx context.Context, window time.Duration) (browse.Stats, error) {
	var s browse.Stats
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE email IS NOT NULL AND email <> ''),
		       COUNT(*) FILTER (WHERE email_sent),
		       COUNT(*) FILTER (WHERE added_to_cart)
		FROM recovery_browse_events
		WHERE viewed_at > $1
	`, time.Now().UTC().Add(-window)).Scan(&s.Total, &s.WithEmail, &s.Notified, &s.Carted)
	if err != nil {
		return browse.Stats{}, fmt.Errorf("browse stats: %w", err)
	}
	return s, nil
}
