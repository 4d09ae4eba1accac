package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ignite/cart-recovery/internal/domain"
	"github.com/ignite/cart-recovery/internal/service/cart"
)

// CartRepo implements cart.Repository against PostgreSQL.
type CartRepo struct{ db *sql.DB }

// NewCartRepo creates a Postgres-backed cart repository.
func NewCartRepo(db *sql.DB) *CartRepo { return &CartRepo{db: db} }

const cartColumns = `id, email, customer_id, items, total, converted,
	       reminder1_sent, reminder2_sent, reminder3_sent, created_at, updated_at`

func scanCart(row interface{ Scan(...any) error }) (*domain.Cart, error) {
	c := &domain.Cart{}
	var email, customerID sql.NullString
	var items []byte
	err := row.Scan(
		&c.ID, &email, &customerID, &items, &c.Total, &c.Converted,
		&c.ReminderSent[0], &c.ReminderSent[1], &c.ReminderSent[2],
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if email.Valid {
		c.Email = &email.String
	}
	if customerID.Valid {
		c.CustomerID = &customerID.String
	}
	c.Items = items
	return c, nil
}

// Upsert is a single conditional statement so that two concurrent webhooks
// for the same cart cannot interleave a read-then-write and drop a learned
// email. COALESCE keeps the stored value when the incoming one is NULL.
func (r *CartRepo) Upsert(ctx context.Context, in cart.UpsertInput) (*domain.Cart, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO recovery_carts (id, email, customer_id, items, total, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			email = COALESCE(EXCLUDED.email, recovery_carts.email),
			customer_id = COALESCE(EXCLUDED.customer_id, recovery_carts.customer_id),
			items = EXCLUDED.items,
			total = EXCLUDED.total,
			updated_at = NOW()
		RETURNING `+cartColumns,
		in.ID, in.Email, in.CustomerID, []byte(in.Items), in.Total)

	c, err := scanCart(row)
	if err != nil {
		return nil, fmt.Errorf("upsert cart: %w", err)
	}
	return c, nil
}

func (r *CartRepo) Get(ctx context.Context, id string) (*domain.Cart, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+cartColumns+` FROM recovery_carts WHERE id = $1`, id)
	c, err := scanCart(row)
	if err == sql.ErrNoRows {
		return nil, cart.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return c, nil
}

func (r *CartRepo) MarkConverted(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE recovery_carts
		SET converted = TRUE, updated_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("mark converted: %w", err)
	}
	return nil
}

func (r *CartRepo) SetEmail(ctx context.Context, id, email string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE recovery_carts SET email = $2 WHERE id = $1
	`, id, email)
	if err != nil {
		return fmt.Errorf("set cart email: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return cart.ErrNotFound
	}
	return nil
}

func (r *CartRepo) FindIDWithoutEmailRecent(ctx context.Context, window time.Duration) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `
		SELECT id FROM recovery_carts
		WHERE converted = FALSE
		  AND (email IS NULL OR email = '')
		  AND updated_at > $1
		ORDER BY updated_at DESC
		LIMIT 1
	`, time.Now().UTC().Add(-window)).Scan(&id)
	if err == sql.ErrNoRows {
		return "", cart.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("find recent cart without email: %w", err)
	}
	return id, nil
}

// reminderColumn maps a 1-based stage to its flag column. Stage comes from
// the sweep's fixed ladder, never from user input.
func reminderColumn(stage int) (string, error) {
	if stage < 1 || stage > domain.ReminderStages {
		return "", fmt.Errorf("invalid reminder stage %d", stage)
	}
	return fmt.Sprintf("reminder%d_sent", stage), nil
}

func (r *CartRepo) SelectAbandoned(ctx context.Context, stage int, dwell time.Duration, limit int) ([]domain.Cart, error) {
	col, err := reminderColumn(stage)
	if err != nil {
		return nil, err
	}
	q := `SELECT ` + cartColumns + `
		FROM recovery_carts
		WHERE email IS NOT NULL AND email <> ''
		  AND converted = FALSE
		  AND ` + col + ` = FALSE`
	if stage > 1 {
		prev, _ := reminderColumn(stage - 1)
		q += ` AND ` + prev + ` = TRUE`
	}
	q += `
		  AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, q, time.Now().UTC().Add(-dwell), limit)
	if err != nil {
		return nil, fmt.Errorf("select abandoned carts: %w", err)
	}
	defer rows.Close()

	var out []domain.Cart
	for rows.Next() {
		c, err := scanCart(rows)
		if err != nil {
			return nil, fmt.Errorf("scan abandoned cart: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// MarkReminderSent runs the flag flip and the audit insert in one
// transaction. The WHERE clause re-checks eligibility, so a cart that was
// flagged or converted between selection and update becomes a no-op
// (ErrAlreadySent) instead of a duplicate audit row.
func (r *CartRepo) MarkReminderSent(ctx context.Context, id string, stage int, entry *domain.EmailLogEntry) error {
	col, err := reminderColumn(stage)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE recovery_carts
		SET `+col+` = TRUE
		WHERE id = $1 AND converted = FALSE AND `+col+` = FALSE
	`, id)
	if err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return cart.ErrAlreadySent
	}

	if err := insertEmailLog(ctx, tx, entry); err != nil {
		return fmt.Errorf("append email log: %w", err)
	}
	return tx.Commit()
}

func (r *CartRepo) List(ctx context.Context, limit, offset int) ([]domain.Cart, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM recovery_carts`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count carts: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+cartColumns+`
		FROM recovery_carts
		ORDER BY updated_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list carts: %w", err)
	}
	defer rows.Close()

	var out []domain.Cart
	for rows.Next() {
		c, err := scanCart(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan cart: %w", err)
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

func (r *CartRepo) Stats(ctx context.Context, window time.Duration) (cart.Stats, error) {
	var s cart.Stats
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE email IS NOT NULL AND email <> ''),
		       COUNT(*) FILTER (WHERE converted),
		       COUNT(*) FILTER (WHERE reminder1_sent)
		FROM recovery_carts
		WHERE updated_at > $1
	`, time.Now().UTC().Add(-window)).Scan(&s.Total, &s.WithEmail, &s.Converted, &s.Reminded)
	if err != nil {
		return cart.Stats{}, fmt.Errorf("cart stats: %w", err)
	}
	return s, nil
}
