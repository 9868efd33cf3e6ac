package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRepo(t *testing.T) *SQLiteRepo {
	t.Helper()

	repo, err := OpenMemory(context.Background())
	require.NoError(t, err, "failed to open in-memory database")
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestReminders(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	t.Run("get missing returns ErrNotFound", func(t *testing.T) {
		_, err := repo.GetReminder(ctx, 42)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("upsert then get", func(t *testing.T) {
		err := repo.UpsertReminder(ctx, &Reminder{
			UserID:   1,
			Username: "alice",
			RemindAt: "09:00",
			TZ:       "Europe/Moscow",
		})
		require.NoError(t, err)

		got, err := repo.GetReminder(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "09:00", got.RemindAt)
		assert.Equal(t, "Europe/Moscow", got.TZ)
		assert.Equal(t, "alice", got.Username)
		assert.False(t, got.UpdatedAt.IsZero())
	})

	t.Run("upsert overwrites in place", func(t *testing.T) {
		err := repo.UpsertReminder(ctx, &Reminder{
			UserID:   1,
			Username: "alice",
			RemindAt: "21:30",
			TZ:       "Asia/Yekaterinburg",
		})
		require.NoError(t, err)

		got, err := repo.GetReminder(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "21:30", got.RemindAt)
		assert.Equal(t, "Asia/Yekaterinburg", got.TZ)

		all, err := repo.ListReminders(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1, "upsert must not create a second row")
	})

	t.Run("list returns every user", func(t *testing.T) {
		require.NoError(t, repo.UpsertReminder(ctx, &Reminder{UserID: 2, RemindAt: "08:00", TZ: "Europe/Moscow"}))
		all, err := repo.ListReminders(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})
}

func TestPillAcknowledgements(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	taken, err := repo.PillTakenOn(ctx, 1, "2025-06-10")
	require.NoError(t, err)
	assert.False(t, taken)

	require.NoError(t, repo.MarkPillTaken(ctx, 1, "2025-06-10"))
	// Marking twice is a replace, not a duplicate.
	require.NoError(t, repo.MarkPillTaken(ctx, 1, "2025-06-10"))
	require.NoError(t, repo.MarkPillTaken(ctx, 1, "2025-06-11"))

	taken, err = repo.PillTakenOn(ctx, 1, "2025-06-10")
	require.NoError(t, err)
	assert.True(t, taken)

	n, err := repo.PillDaysCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	first, err := repo.FirstPillDate(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "2025-06-10", first)

	require.NoError(t, repo.ClearPillTaken(ctx, 1, "2025-06-10"))
	taken, err = repo.PillTakenOn(ctx, 1, "2025-06-10")
	require.NoError(t, err)
	assert.False(t, taken)

	// Clearing a date that was never marked is a no-op.
	require.NoError(t, repo.ClearPillTaken(ctx, 1, "2030-01-01"))

	first, err = repo.FirstPillDate(ctx, 99)
	require.NoError(t, err)
	assert.Equal(t, "", first)
}

func TestVoiceMemos(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	t.Run("empty pool", func(t *testing.T) {
		_, err := repo.NextVoiceMemoFor(ctx, 1)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	id1, err := repo.AddVoiceMemo(ctx, "file-aaa")
	require.NoError(t, err)
	id2, err := repo.AddVoiceMemo(ctx, "file-bbb")
	require.NoError(t, err)
	require.Greater(t, id2, id1)

	t.Run("delivers each memo once, earliest first", func(t *testing.T) {
		m, err := repo.NextVoiceMemoFor(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, id1, m.ID)
		require.NoError(t, repo.MarkVoiceMemoDelivered(ctx, 1, m.ID))

		m, err = repo.NextVoiceMemoFor(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, id2, m.ID)
		require.NoError(t, repo.MarkVoiceMemoDelivered(ctx, 1, m.ID))

		_, err = repo.NextVoiceMemoFor(ctx, 1)
		assert.ErrorIs(t, err, ErrNotFound)

		// A different user still gets the full pool.
		m, err = repo.NextVoiceMemoFor(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, id1, m.ID)
	})

	t.Run("daily cap bookkeeping", func(t *testing.T) {
		got, err := repo.VoiceMemoTakenOn(ctx, 1, "2025-06-10")
		require.NoError(t, err)
		assert.False(t, got)

		require.NoError(t, repo.MarkVoiceMemoTaken(ctx, 1, "2025-06-10"))
		got, err = repo.VoiceMemoTakenOn(ctx, 1, "2025-06-10")
		require.NoError(t, err)
		assert.True(t, got)
	})

	t.Run("list and delete", func(t *testing.T) {
		memos, err := repo.ListVoiceMemos(ctx, 10)
		require.NoError(t, err)
		require.Len(t, memos, 2)
		assert.Equal(t, id2, memos[0].ID, "newest first")

		ok, err := repo.DeleteVoiceMemo(ctx, id1)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.DeleteVoiceMemo(ctx, id1)
		require.NoError(t, err)
		assert.False(t, ok, "second delete finds nothing")

		// Deliveries for the deleted memo are gone, so user 2 sees id2 next.
		m, err := repo.NextVoiceMemoFor(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, id2, m.ID)
	})
}

func TestInteractionsAndExport(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.UpsertReminder(ctx, &Reminder{UserID: 1, Username: "alice", RemindAt: "09:00", TZ: "Europe/Moscow"}))
	require.NoError(t, repo.MarkPillTaken(ctx, 1, "2025-06-10"))
	require.NoError(t, repo.LogInteraction(ctx, 1, "alice", "pill_taken", "2025-06-10"))
	require.NoError(t, repo.LogInteraction(ctx, 1, "alice", "reminder_time_changed", "09:00"))

	log, err := repo.ListInteractions(ctx)
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.Equal(t, "reminder_time_changed", log[0].Kind, "newest first")

	users, err := repo.ListUserExports(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, int64(1), users[0].UserID)
	assert.Equal(t, 1, users[0].PillsTaken)
	assert.Equal(t, "2025-06-10", users[0].FirstTaken)
	assert.Equal(t, 2, users[0].Interactions)
}
