package model

import (
	"time"

	"github.com/google/uuid"
)

// MaxReminderTextLen is the longest reminder body the bot accepts.
const MaxReminderTextLen = 1000

// ReminderStatus is the lifecycle state of a reminder. Transitions are
// one-way: pending is the only state a reminder ever leaves.
type ReminderStatus string

const (
	StatusPending   ReminderStatus = "pending"
	StatusCompleted ReminderStatus = "completed"
	StatusFailed    ReminderStatus = "failed"
	StatusCancelled ReminderStatus = "cancelled"
)

// Recurrence is declared on the record but not acted on by delivery;
// the field is reserved for a future recurring-reminder feature.
type Recurrence string

const (
	RecurrenceNone    Recurrence = "none"
	RecurrenceDaily   Recurrence = "daily"
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"
)

// Reminder is a user-owned scheduled text delivery at a fixed future instant.
type Reminder struct {
	ID           uuid.UUID
	UserID       int64
	Text         string
	ScheduledFor time.Time // UTC instant
	Timezone     string    // IANA zone the user created it in
	Status       ReminderStatus
	Recurrence   Recurrence
	CreatedAt    time.Time
	LastNotified *time.Time
	FailureCount int
	LastError    string
}

// UserSettings holds per-user profile and delivery preferences. A user with
// no stored row gets the zero-value defaults.
type UserSettings struct {
	UserID         int64
	Name           string
	ZodiacSign     string
	BirthDate      string // YYYY-MM-DD
	BirthTime      string // HH:MM
	AutoHoroscope  bool
	Timezone       string
	LastCardDate   *time.Time
	CardUsageToday int
	UpdatedAt      time.Time
}
