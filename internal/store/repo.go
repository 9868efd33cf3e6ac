package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Repo defines storage operations for reminders, acknowledgements, voice
// memos and the interaction log.
type Repo interface {
	UpsertReminder(ctx context.Context, r *Reminder) error
	GetReminder(ctx context.Context, userID int64) (*Reminder, error)
	ListReminders(ctx context.Context) ([]Reminder, error)

	MarkPillTaken(ctx context.Context, userID int64, date string) error
	ClearPillTaken(ctx context.Context, userID int64, date string) error
	PillTakenOn(ctx context.Context, userID int64, date string) (bool, error)
	PillDaysCount(ctx context.Context, userID int64) (int, error)
	FirstPillDate(ctx context.Context, userID int64) (string, error)

	LogInteraction(ctx context.Context, userID int64, username, kind, data string) error
	ListInteractions(ctx context.Context) ([]Interaction, error)

	AddVoiceMemo(ctx context.Context, fileID string) (int64, error)
	NextVoiceMemoFor(ctx context.Context, userID int64) (*VoiceMemo, error)
	MarkVoiceMemoDelivered(ctx context.Context, userID, memoID int64) error
	ListVoiceMemos(ctx context.Context, limit int) ([]VoiceMemo, error)
	DeleteVoiceMemo(ctx context.Context, memoID int64) (bool, error)
	VoiceMemoTakenOn(ctx context.Context, userID int64, date string) (bool, error)
	MarkVoiceMemoTaken(ctx context.Context, userID int64, date string) error

	ListUserExports(ctx context.Context) ([]UserExport, error)

	Close() error
}
