package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ignite/cart-recovery/internal/domain"
	"github.com/ignite/cart-recovery/internal/service/cart"
)

func now() time.Time { return time.Now().UTC() }

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	return db, mock, func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	}
}

func cartRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "email", "customer_id", "items", "total", "converted",
		"reminder1_sent", "reminder2_sent", "reminder3_sent", "created_at", "updated_at",
	})
}

func TestCartRepo_UpsertCoalescesEmail(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	// Incoming snapshot has no email; the stored one must survive the
	// conflict update, which the RETURNING row reflects.
	mock.ExpectQuery(`(?s)INSERT INTO recovery_carts.*ON CONFLICT \(id\) DO UPDATE SET\s+email = COALESCE`).
		WithArgs("c1", nil, nil, []byte(`[]`), 42.5).
		WillReturnRows(cartRows().AddRow(
			"c1", "kept@x.com", nil, []byte(`[]`), 42.5, false,
			false, false, false, now(), now()))

	repo := NewCartRepo(db)
	got, err := repo.Upsert(context.Background(), cart.UpsertInput{
		ID: "c1", Items: []byte(`[]`), Total: 42.5,
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if got.Email == nil || *got.Email != "kept@x.com" {
		t.Errorf("stored email not preserved: %v", got.Email)
	}
}

func TestCartRepo_GetNotFound(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery(`FROM recovery_carts WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	repo := NewCartRepo(db)
	if _, err := repo.Get(context.Background(), "missing"); err != cart.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCartRepo_SelectAbandonedStageTwoRequiresStageOne(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery(`reminder2_sent = FALSE AND reminder1_sent = TRUE`).
		WithArgs(sqlmock.AnyArg(), 10).
		WillReturnRows(cartRows())

	repo := NewCartRepo(db)
	if _, err := repo.SelectAbandoned(context.Background(), 2, 0, 10); err != nil {
		t.Fatalf("select abandoned: %v", err)
	}
}

func TestCartRepo_SelectAbandonedRejectsBadStage(t *testing.T) {
	db, _, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewCartRepo(db)
	if _, err := repo.SelectAbandoned(context.Background(), 4, 0, 10); err == nil {
		t.Error("stage outside the ladder must be rejected")
	}
}

func TestCartRepo_MarkReminderSentCommitsFlagAndLog(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE recovery_carts\s+SET reminder1_sent = TRUE`).
		WithArgs("c1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO recovery_email_log`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := NewCartRepo(db)
	entry := &domain.EmailLogEntry{
		Type: domain.EmailLogCartReminder1, Recipient: "v@x.com", CartID: "c1",
	}
	if err := repo.MarkReminderSent(context.Background(), "c1", 1, entry); err != nil {
		t.Fatalf("mark reminder sent: %v", err)
	}
	if entry.ID == "" {
		t.Error("audit entry id not assigned")
	}
}

func TestCartRepo_MarkReminderSentAlreadyFlagged(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	// The eligibility re-check matches no rows; the audit insert must not
	// run and the transaction rolls back.
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE recovery_carts\s+SET reminder1_sent = TRUE`).
		WithArgs("c1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	repo := NewCartRepo(db)
	err := repo.MarkReminderSent(context.Background(), "c1", 1, &domain.EmailLogEntry{})
	if err != cart.ErrAlreadySent {
		t.Errorf("expected ErrAlreadySent, got %v", err)
	}
}

func TestCartRepo_SetEmailUnknownCart(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec(`UPDATE recovery_carts SET email = \$2`).
		WithArgs("missing", "v@x.com").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewCartRepo(db)
	if err := repo.SetEmail(context.Background(), "missing", "v@x.com"); err != cart.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
