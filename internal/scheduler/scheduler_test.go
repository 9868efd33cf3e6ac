package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jmhodges/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mshv/pillbot/internal/domain"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []int64
	fail bool
}

func (f *fakeSender) SendReminder(_ context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("user blocked the bot")
	}
	f.sent = append(f.sent, userID)
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeGate struct {
	mu    sync.Mutex
	acked map[string]bool // "userID/date"
	err   error
}

func newFakeGate() *fakeGate {
	return &fakeGate{acked: make(map[string]bool)}
}

func (g *fakeGate) ack(userID int64, date string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.acked[key(userID, date)] = true
}

func (g *fakeGate) ShouldDeliver(_ context.Context, userID int64, localDate string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return false, g.err
	}
	return !g.acked[key(userID, localDate)], nil
}

func key(userID int64, date string) string {
	return fmt.Sprintf("%d/%s", userID, date)
}

func newTestScheduler(t *testing.T, base time.Time) (*Scheduler, *fakeSender, *fakeGate, clock.FakeClock) {
	t.Helper()
	clk := clock.NewFake()
	clk.Set(base)
	sender := &fakeSender{}
	gate := newFakeGate()
	s := New(gate, sender, zap.NewNop(), clk)
	return s, sender, gate, clk
}

func (s *Scheduler) taskGen(userID int64) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[userID]
	if !ok {
		return 0, false
	}
	return t.gen, true
}

var baseTime = time.Date(2025, time.June, 10, 5, 0, 0, 0, time.UTC) // 08:00 MSK

func TestArm_SingleLiveTask(t *testing.T) {
	s, _, _, _ := newTestScheduler(t, baseTime)

	require.NoError(t, s.Arm(1, domain.DayTime{Hour: 9}, "Europe/Moscow"))
	first, ok := s.NextFireAt(1)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, time.June, 10, 6, 0, 0, 0, time.UTC), first)

	// Rapid repeated changes: each arm supersedes the prior task.
	require.NoError(t, s.Arm(1, domain.DayTime{Hour: 12}, "Europe/Moscow"))
	require.NoError(t, s.Arm(1, domain.DayTime{Hour: 18}, "Europe/Moscow"))

	s.mu.Lock()
	assert.Len(t, s.tasks, 1)
	s.mu.Unlock()

	next, ok := s.NextFireAt(1)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, time.June, 10, 15, 0, 0, 0, time.UTC), next)
}

func TestArm_InvalidTimezoneLeavesUnarmed(t *testing.T) {
	s, _, _, _ := newTestScheduler(t, baseTime)

	require.NoError(t, s.Arm(1, domain.DayTime{Hour: 9}, "Europe/Moscow"))
	err := s.Arm(1, domain.DayTime{Hour: 9}, "Not/AZone")
	require.ErrorIs(t, err, domain.ErrInvalidTimezone)

	// The stale schedule must not keep firing with outdated settings.
	_, ok := s.NextFireAt(1)
	assert.False(t, ok)
}

func TestCancel_Idempotent(t *testing.T) {
	s, _, _, _ := newTestScheduler(t, baseTime)

	require.NoError(t, s.Arm(1, domain.DayTime{Hour: 9}, "Europe/Moscow"))
	s.Cancel(1)
	s.Cancel(1) // no-op

	_, ok := s.NextFireAt(1)
	assert.False(t, ok)
}

func TestFire_DeliversAndRearmsNextDay(t *testing.T) {
	s, sender, _, clk := newTestScheduler(t, baseTime)

	require.NoError(t, s.Arm(1, domain.DayTime{Hour: 9}, "Europe/Moscow"))
	gen, ok := s.taskGen(1)
	require.True(t, ok)

	clk.Add(2 * time.Hour) // past 06:00 UTC
	s.fire(context.Background(), 1, gen)

	assert.Equal(t, 1, sender.count())
	next, ok := s.NextFireAt(1)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, time.June, 11, 6, 0, 0, 0, time.UTC), next,
		"rearm is one local day after the fired instant")

	newGen, ok := s.taskGen(1)
	require.True(t, ok)
	assert.NotEqual(t, gen, newGen, "rearm issues a fresh token")
}

func TestFire_StaleTokenIsNoOp(t *testing.T) {
	s, sender, _, _ := newTestScheduler(t, baseTime)

	require.NoError(t, s.Arm(1, domain.DayTime{Hour: 9}, "Europe/Moscow"))
	staleGen, _ := s.taskGen(1)

	// A user-driven change supersedes the armed task.
	require.NoError(t, s.Arm(1, domain.DayTime{Hour: 20}, "Europe/Moscow"))
	want, _ := s.NextFireAt(1)

	s.fire(context.Background(), 1, staleGen)

	assert.Zero(t, sender.count(), "stale fire must not send")
	got, ok := s.NextFireAt(1)
	require.True(t, ok)
	assert.Equal(t, want, got, "stale fire must not rearm")

	// Firing after cancel is equally silent.
	s.Cancel(1)
	s.fire(context.Background(), 1, staleGen)
	assert.Zero(t, sender.count())
}

func TestFire_RearmsOnSenderFailure(t *testing.T) {
	s, sender, _, clk := newTestScheduler(t, baseTime)
	sender.fail = true

	require.NoError(t, s.Arm(1, domain.DayTime{Hour: 9}, "Europe/Moscow"))
	gen, _ := s.taskGen(1)

	clk.Add(2 * time.Hour)
	s.fire(context.Background(), 1, gen)

	next, ok := s.NextFireAt(1)
	require.True(t, ok, "user must stay armed after a delivery failure")
	assert.Equal(t, time.Date(2025, time.June, 11, 6, 0, 0, 0, time.UTC), next)
}

func TestFire_SuppressedWhenAcknowledged(t *testing.T) {
	s, sender, gate, clk := newTestScheduler(t, baseTime)

	require.NoError(t, s.Arm(1, domain.DayTime{Hour: 9}, "Europe/Moscow"))
	gen, _ := s.taskGen(1)

	gate.ack(1, "2025-06-10") // acknowledged today, MSK date of the fire

	clk.Add(2 * time.Hour)
	s.fire(context.Background(), 1, gen)

	assert.Zero(t, sender.count(), "acknowledged day must not be delivered")
	next, ok := s.NextFireAt(1)
	require.True(t, ok, "suppression still rearms for tomorrow")
	assert.Equal(t, time.Date(2025, time.June, 11, 6, 0, 0, 0, time.UTC), next)
}

func TestFire_DeliversWhenGateFails(t *testing.T) {
	s, sender, gate, clk := newTestScheduler(t, baseTime)
	gate.err = errors.New("db locked")

	require.NoError(t, s.Arm(1, domain.DayTime{Hour: 9}, "Europe/Moscow"))
	gen, _ := s.taskGen(1)

	clk.Add(2 * time.Hour)
	s.fire(context.Background(), 1, gen)

	assert.Equal(t, 1, sender.count(), "a flaky gate read must not swallow the reminder")
}

func TestFire_NextDayAcrossDST(t *testing.T) {
	// 2025-03-29 08:00 UTC = 09:00 CET in Berlin; clocks jump forward that night.
	base := time.Date(2025, time.March, 29, 7, 0, 0, 0, time.UTC)
	s, sender, _, clk := newTestScheduler(t, base)

	require.NoError(t, s.Arm(1, domain.DayTime{Hour: 9}, "Europe/Berlin"))
	fireAt, _ := s.NextFireAt(1)
	assert.Equal(t, time.Date(2025, time.March, 29, 8, 0, 0, 0, time.UTC), fireAt)

	gen, _ := s.taskGen(1)
	clk.Add(2 * time.Hour)
	s.fire(context.Background(), 1, gen)

	require.Equal(t, 1, sender.count())
	next, _ := s.NextFireAt(1)
	// Same 09:00 local the next day, but only 23h later in UTC (CET→CEST).
	assert.Equal(t, time.Date(2025, time.March, 30, 7, 0, 0, 0, time.UTC), next)
}

func TestTickOnce_FiresOnlyDueTasks(t *testing.T) {
	s, sender, _, clk := newTestScheduler(t, baseTime)

	require.NoError(t, s.Arm(1, domain.DayTime{Hour: 9}, "Europe/Moscow"))  // 06:00 UTC
	require.NoError(t, s.Arm(2, domain.DayTime{Hour: 22}, "Europe/Moscow")) // 19:00 UTC

	s.tickOnce(context.Background())
	assert.Zero(t, sender.count(), "nothing is due yet")

	clk.Add(90 * time.Minute) // 06:30 UTC, only user 1 due
	s.tickOnce(context.Background())

	require.Eventually(t, func() bool { return sender.count() == 1 }, time.Second, 5*time.Millisecond)

	next, ok := s.NextFireAt(1)
	require.True(t, ok)
	assert.True(t, next.After(clk.Now()), "fired user is rearmed in the future")

	// User 2's task is untouched.
	next2, ok := s.NextFireAt(2)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, time.June, 10, 19, 0, 0, 0, time.UTC), next2)
}
