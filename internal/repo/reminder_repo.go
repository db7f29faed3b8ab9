package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/deceser/astrobot/internal/model"
)

// ReminderRepo defines the interface for reminder repository operations.
//
// Status updates are guarded with `WHERE status = 'pending'` so that a
// delivery racing a cancellation can never pull a reminder out of a terminal
// state: whichever write lands second is a no-op.
type ReminderRepo interface {
	Create(ctx context.Context, userID int64, text string, scheduledFor time.Time, timezone string) (model.Reminder, error)
	GetByID(ctx context.Context, id uuid.UUID) (model.Reminder, error)
	GetPending(ctx context.Context) ([]model.Reminder, error)
	ListPendingByUser(ctx context.Context, userID int64) ([]model.Reminder, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, notifiedAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error
	Cancel(ctx context.Context, id uuid.UUID, userID int64) (bool, error)
}

type reminderRepo struct {
	db *sql.DB
}

// NewReminderRepo creates a new ReminderRepo instance
func NewReminderRepo(db *sql.DB) ReminderRepo {
	return &reminderRepo{db: db}
}

const reminderColumns = `id, user_id, text, scheduled_for, timezone, status, recurrence,
	       created_at, last_notified, failure_count, last_error`

// Create inserts a new pending reminder and returns the stored row.
func (r *reminderRepo) Create(ctx context.Context, userID int64, text string, scheduledFor time.Time, timezone string) (model.Reminder, error) {
	query := `
		INSERT INTO reminders (id, user_id, text, scheduled_for, timezone, status, recurrence)
		VALUES ($1, $2, $3, $4, $5, 'pending', 'none')
		RETURNING ` + reminderColumns

	id := uuid.New()
	row := r.db.QueryRowContext(ctx, query, id, userID, text, scheduledFor.UTC(), timezone)
	reminder, err := scanReminder(row)
	if err != nil {
		return model.Reminder{}, fmt.Errorf("failed to insert reminder: %w", err)
	}
	return reminder, nil
}

// GetByID retrieves a reminder by ID.
func (r *reminderRepo) GetByID(ctx context.Context, id uuid.UUID) (model.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders WHERE id = $1`

	reminder, err := scanReminder(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return model.Reminder{}, fmt.Errorf("reminder not found: %w", err)
		}
		return model.Reminder{}, fmt.Errorf("failed to query reminder: %w", err)
	}
	return reminder, nil
}

// GetPending returns every pending reminder ordered by scheduled time
// ascending. Used by startup recovery.
func (r *reminderRepo) GetPending(ctx context.Context) ([]model.Reminder, error) {
	query := `
		SELECT ` + reminderColumns + `
		FROM reminders
		WHERE status = 'pending'
		ORDER BY scheduled_for ASC
	`
	return r.queryReminders(ctx, query)
}

// ListPendingByUser returns the user's pending reminders ordered by scheduled
// time ascending.
func (r *reminderRepo) ListPendingByUser(ctx context.Context, userID int64) ([]model.Reminder, error) {
	query := `
		SELECT ` + reminderColumns + `
		FROM reminders
		WHERE user_id = $1 AND status = 'pending'
		ORDER BY scheduled_for ASC
	`
	return r.queryReminders(ctx, query, userID)
}

// MarkCompleted records a successful delivery. No-op if the reminder already
// left the pending state.
func (r *reminderRepo) MarkCompleted(ctx context.Context, id uuid.UUID, notifiedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE reminders
		SET status = 'completed', last_notified = $2
		WHERE id = $1 AND status = 'pending'
	`, id, notifiedAt.UTC())
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return nil
}

// MarkFailed records a delivery or scheduling failure. No-op if the reminder
// already left the pending state.
func (r *reminderRepo) MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE reminders
		SET status = 'failed', failure_count = failure_count + 1, last_error = $2
		WHERE id = $1 AND status = 'pending'
	`, id, lastError)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// Cancel marks a pending reminder cancelled. Returns false when the reminder
// does not exist, belongs to another user, or is no longer pending.
func (r *reminderRepo) Cancel(ctx context.Context, id uuid.UUID, userID int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE reminders
		SET status = 'cancelled'
		WHERE id = $1 AND user_id = $2 AND status = 'pending'
	`, id, userID)
	if err != nil {
		return false, fmt.Errorf("cancel reminder: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("cancel reminder rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *reminderRepo) queryReminders(ctx context.Context, query string, args ...any) ([]model.Reminder, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reminders: %w", err)
	}
	defer rows.Close()

	var reminders []model.Reminder
	for rows.Next() {
		reminder, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		reminders = append(reminders, reminder)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reminders: %w", err)
	}
	return reminders, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanReminder(row rowScanner) (model.Reminder, error) {
	var reminder model.Reminder
	var idStr string
	var lastNotified sql.NullTime
	err := row.Scan(
		&idStr,
		&reminder.UserID,
		&reminder.Text,
		&reminder.ScheduledFor,
		&reminder.Timezone,
		&reminder.Status,
		&reminder.Recurrence,
		&reminder.CreatedAt,
		&lastNotified,
		&reminder.FailureCount,
		&reminder.LastError,
	)
	if err != nil {
		return model.Reminder{}, err
	}
	reminder.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.Reminder{}, fmt.Errorf("failed to parse reminder ID: %w", err)
	}
	if lastNotified.Valid {
		t := lastNotified.Time
		reminder.LastNotified = &t
	}
	return reminder, nil
}
