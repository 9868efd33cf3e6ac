package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jmhodges/clock"
	"go.uber.org/zap"

	"github.com/mshv/pillbot/internal/domain"
)

const defaultTick = 30 * time.Second

// ErrNonPositiveDelay is returned by Arm when the computed fire instant is
// not in the future. Never expected in correct use; the user stays unarmed.
var ErrNonPositiveDelay = errors.New("computed fire instant is not in the future")

// Sender delivers a reminder to a user. telegram.Router implements this.
type Sender interface {
	SendReminder(ctx context.Context, userID int64) error
}

// task is the per-user armed reminder: a transient copy of the config plus
// the generation token that identifies the current arming.
type task struct {
	at     domain.DayTime
	tz     string
	gen    uint64
	fireAt time.Time // UTC
}

// Scheduler owns at most one armed daily reminder per user. A ticker-driven
// loop collects due tasks and fires them; a rearm or cancel supersedes the
// old task by issuing a fresh generation token, so a racing fire for a stale
// token is discarded without any timer bookkeeping.
type Scheduler struct {
	mu      sync.Mutex
	tasks   map[int64]*task
	lastGen uint64

	clk    clock.Clock
	gate   Gate
	sender Sender
	log    *zap.Logger
	tick   time.Duration
}

// New creates a Scheduler. The clock is injectable so tests can drive time.
func New(gate Gate, sender Sender, log *zap.Logger, clk clock.Clock) *Scheduler {
	return &Scheduler{
		tasks:  make(map[int64]*task),
		clk:    clk,
		gate:   gate,
		sender: sender,
		log:    log,
		tick:   defaultTick,
	}
}

// Arm schedules (or reschedules) the user's daily reminder. Any previously
// armed task is superseded. On error the user is left unarmed.
func (s *Scheduler) Arm(userID int64, at domain.DayTime, tz string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Supersede first: even if the new config fails to arm, the old schedule
	// must not keep firing with outdated settings.
	delete(s.tasks, userID)

	now := s.clk.Now().UTC()
	fireAt, err := domain.NextFireInstant(now, at, tz)
	if err != nil {
		return err
	}
	if !fireAt.After(now) {
		s.log.Warn("refusing to arm reminder in the past",
			zap.Int64("user_id", userID),
			zap.Time("fire_at", fireAt),
		)
		return ErrNonPositiveDelay
	}

	s.lastGen++
	s.tasks[userID] = &task{at: at, tz: tz, gen: s.lastGen, fireAt: fireAt}
	s.log.Info("reminder armed",
		zap.Int64("user_id", userID),
		zap.String("at", at.String()),
		zap.String("tz", tz),
		zap.Time("fire_at", fireAt),
	)
	return nil
}

// Cancel unarms the user. Cancelling an unarmed user is a no-op.
func (s *Scheduler) Cancel(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, userID)
}

// NextFireAt reports the armed fire instant for a user, if any.
func (s *Scheduler) NextFireAt(userID int64) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[userID]
	if !ok {
		return time.Time{}, false
	}
	return t.fireAt, true
}

// Run drives the fire loop until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopping")
			return
		case <-ticker.C:
			s.tickOnce(ctx)
		}
	}
}

type due struct {
	userID int64
	gen    uint64
}

// tickOnce collects due tasks and fires each in its own goroutine. Fires for
// different users are independent; a second collection of the same task is
// harmless because the first fire's rearm invalidates the collected token.
func (s *Scheduler) tickOnce(ctx context.Context) {
	now := s.clk.Now().UTC()

	s.mu.Lock()
	var dues []due
	for userID, t := range s.tasks {
		if !t.fireAt.After(now) {
			dues = append(dues, due{userID: userID, gen: t.gen})
		}
	}
	s.mu.Unlock()

	for _, d := range dues {
		go s.fire(ctx, d.userID, d.gen)
	}
}

// fire handles one due reminder: verify the token, rearm for the next local
// day, then deliver. Rearming happens before and independently of delivery,
// so a failing or slow notifier can never leave the user unarmed.
func (s *Scheduler) fire(ctx context.Context, userID int64, gen uint64) {
	s.mu.Lock()
	t, ok := s.tasks[userID]
	if !ok || t.gen != gen {
		s.mu.Unlock()
		// Superseded by a rearm or cancel while this fire was in flight.
		s.log.Debug("stale firing discarded", zap.Int64("user_id", userID), zap.Uint64("gen", gen))
		return
	}
	firedAt := t.fireAt
	at, tz := t.at, t.tz

	loc, err := time.LoadLocation(tz)
	if err != nil {
		// The zone was valid when armed; fall back rather than lose the user.
		s.log.Error("stored timezone no longer loads, using UTC", zap.Int64("user_id", userID), zap.String("tz", tz))
		loc = time.UTC
	}

	s.lastGen++
	t.gen = s.lastGen
	t.fireAt = domain.NextDailyFire(firedAt, at, loc)
	nextAt := t.fireAt
	s.mu.Unlock()

	localDate := domain.LocalDate(firedAt, loc)

	deliver, err := s.gate.ShouldDeliver(ctx, userID, localDate)
	if err != nil {
		// A flaky read must not swallow a reminder; worst case is a duplicate.
		s.log.Error("delivery gate check failed, delivering anyway", zap.Int64("user_id", userID), zap.Error(err))
		deliver = true
	}

	if !deliver {
		s.log.Info("reminder suppressed, already acknowledged today",
			zap.Int64("user_id", userID),
			zap.String("date", localDate),
		)
	} else if err := s.sender.SendReminder(ctx, userID); err != nil {
		s.log.Warn("reminder delivery failed", zap.Int64("user_id", userID), zap.Error(err))
	}

	s.log.Info("reminder rearmed", zap.Int64("user_id", userID), zap.Time("fire_at", nextAt))
}
