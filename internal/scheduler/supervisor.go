package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mshv/pillbot/internal/domain"
	"github.com/mshv/pillbot/internal/store"
)

// DefaultRemindAt is used when a user changes timezone before ever picking a
// reminder time.
const DefaultRemindAt = "09:00"

// Supervisor owns the persisted reminder configurations and keeps the
// scheduler in sync with them. All time and timezone changes go through it,
// which guarantees at most one live task per user.
type Supervisor struct {
	repo      store.Repo
	sched     *Scheduler
	log       *zap.Logger
	defaultTZ string
}

func NewSupervisor(repo store.Repo, sched *Scheduler, log *zap.Logger, defaultTZ string) *Supervisor {
	return &Supervisor{repo: repo, sched: sched, log: log, defaultTZ: defaultTZ}
}

// LoadAll arms every persisted reminder at process start. A user whose row is
// malformed (unparseable time, unknown zone, non-positive delay) is logged
// and skipped; the rest of the load continues.
func (sv *Supervisor) LoadAll(ctx context.Context) error {
	rows, err := sv.repo.ListReminders(ctx)
	if err != nil {
		return err
	}

	armed := 0
	for _, row := range rows {
		at, err := domain.ParseDayTime(row.RemindAt)
		if err != nil {
			sv.log.Warn("skipping user with malformed reminder time",
				zap.Int64("user_id", row.UserID),
				zap.String("remind_at", row.RemindAt),
				zap.Error(err),
			)
			continue
		}
		if err := sv.sched.Arm(row.UserID, at, row.TZ); err != nil {
			sv.log.Warn("skipping user that failed to arm",
				zap.Int64("user_id", row.UserID),
				zap.String("tz", row.TZ),
				zap.Error(err),
			)
			continue
		}
		armed++
	}
	sv.log.Info("reminders loaded", zap.Int("total", len(rows)), zap.Int("armed", armed))
	return nil
}

// SetReminderTime validates, persists and arms a new daily time for the user.
// Today's acknowledgement (in the user's zone) is cleared so the fresh
// schedule is not immediately suppressed.
func (sv *Supervisor) SetReminderTime(ctx context.Context, userID int64, username, hhmm string) error {
	at, err := domain.ParseDayTime(hhmm)
	if err != nil {
		return err
	}

	tz := sv.defaultTZ
	if existing, err := sv.repo.GetReminder(ctx, userID); err == nil {
		tz = existing.TZ
		if username == "" {
			username = existing.Username
		}
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		sv.log.Warn("stored timezone no longer loads, falling back to default",
			zap.Int64("user_id", userID), zap.String("tz", tz))
		tz = sv.defaultTZ
		loc, err = time.LoadLocation(tz)
		if err != nil {
			return err
		}
	}

	today := domain.LocalDate(sv.sched.clk.Now(), loc)
	if err := sv.repo.ClearPillTaken(ctx, userID, today); err != nil {
		return err
	}

	if err := sv.repo.UpsertReminder(ctx, &store.Reminder{
		UserID:   userID,
		Username: username,
		RemindAt: at.String(),
		TZ:       tz,
	}); err != nil {
		return err
	}
	return sv.sched.Arm(userID, at, tz)
}

// SetTimezone validates, persists and rearms with a new zone, keeping the
// existing reminder time (or the default for a brand-new user).
func (sv *Supervisor) SetTimezone(ctx context.Context, userID int64, username, tz string) error {
	tz, err := domain.ValidateTZ(tz)
	if err != nil {
		return err
	}

	remindAt := DefaultRemindAt
	if existing, err := sv.repo.GetReminder(ctx, userID); err == nil {
		remindAt = existing.RemindAt
		if username == "" {
			username = existing.Username
		}
	}

	at, err := domain.ParseDayTime(remindAt)
	if err != nil {
		// Stored time is corrupt; reset to the default rather than wedge the user.
		sv.log.Warn("stored reminder time is malformed, resetting to default",
			zap.Int64("user_id", userID), zap.String("remind_at", remindAt))
		remindAt = DefaultRemindAt
		at, _ = domain.ParseDayTime(remindAt)
	}

	if err := sv.repo.UpsertReminder(ctx, &store.Reminder{
		UserID:   userID,
		Username: username,
		RemindAt: remindAt,
		TZ:       tz,
	}); err != nil {
		return err
	}
	return sv.sched.Arm(userID, at, tz)
}
