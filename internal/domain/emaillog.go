package domain

import "time"

// EmailLogType identifies which recovery track produced a log entry.
type EmailLogType string

const (
	EmailLogCartReminder1 EmailLogType = "cart_reminder_1"
	EmailLogCartReminder2 EmailLogType = "cart_reminder_2"
	EmailLogCartReminder3 EmailLogType = "cart_reminder_3"
	EmailLogBrowse        EmailLogType = "browse_recovery"
)

// CartReminderLogType returns the log type for a 1-based reminder stage.
func CartReminderLogType(stage int) EmailLogType {
	switch stage {
	case 2:
		return EmailLogCartReminder2
	case 3:
		return EmailLogCartReminder3
	default:
		return EmailLogCartReminder1
	}
}

// EmailLogEntry is an append-only audit record of one notification outcome.
// Entries are write-once and never mutated.
type EmailLogEntry struct {
	ID        string       `json:"id"`
	Type      EmailLogType `json:"type"`
	Recipient string       `json:"recipient"`
	Subject   string       `json:"subject,omitempty"`
	CartID    string       `json:"cart_id,omitempty"`
	ProductID string       `json:"product_id,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}
