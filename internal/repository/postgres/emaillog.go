package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/cart-recovery/internal/domain"
)

// execer is satisfied by both *sql.DB and *sql.Tx, so the audit insert can
// run standalone or inside the flag-update transactions.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertEmailLog(ctx context.Context, ex execer, entry *domain.EmailLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := ex.ExecContext(ctx, `
		INSERT INTO recovery_email_log
			(id, type, recipient, subject, cart_id, product_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, entry.ID, entry.Type, entry.Recipient, entry.Subject,
		entry.CartID, entry.ProductID, entry.CreatedAt)
	return err
}

// EmailLogRepo provides standalone access to the append-only audit log.
type EmailLogRepo struct{ db *sql.DB }

// NewEmailLogRepo creates a Postgres-backed email log repository.
func NewEmailLogRepo(db *sql.DB) *EmailLogRepo { return &EmailLogRepo{db: db} }

// Append writes one audit entry outside any transaction. Callers treat
// failures as best-effort (log only).
func (r *EmailLogRepo) Append(ctx context.Context, entry *domain.EmailLogEntry) error {
	if err := insertEmailLog(ctx, r.db, entry); err != nil {
		return fmt.Errorf("append email log: %w", err)
	}
	return nil
}

// List returns recent entries, newest first.
func (r *EmailLogRepo) List(ctx context.Context, limit, offset int) ([]domain.EmailLogEntry, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM recovery_email_log`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count email log: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, recipient, subject, cart_id, product_id, created_at
		FROM recovery_email_log
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list email log: %w", err)
	}
	defer rows.Close()

	var out []domain.EmailLogEntry
	for rows.Next() {
		var e domain.EmailLogEntry
		if err := rows.Scan(&e.ID, &e.Type, &e.Recipient, &e.Subject,
			&e.CartID, &e.ProductID, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan email log entry: %w", err)
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

// CountByType returns per-type send counts over the trailing window.
func (r *EmailLogRepo) CountByType(ctx context.Context, window time.Duration) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT type, COUNT(*)
		FROM recovery_email_log
		WHERE created_at > $1
		GROUP BY type
	`, time.Now().UTC().Add(-window))
	if err != nil {
		return nil, fmt.Errorf("email log counts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, fmt.Errorf("scan email log count: %w", err)
		}
		out[t] = n
	}
	return out, rows.Err()
}
