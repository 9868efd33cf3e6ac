package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"
)

// SQLiteRepo implements Repo using an embedded SQLite database.
type SQLiteRepo struct{ db *sql.DB }

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies recommended PRAGMAs, runs SQL migrations, and returns a repository.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Reasonable pooling for SQLite; it's a single-writer engine. The single
	// connection also serializes read-modify-write cycles per row.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLiteRepo{db: db}, nil
}

// OpenMemory opens a throwaway in-memory database, used by tests.
func OpenMemory(ctx context.Context) (*SQLiteRepo, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return &SQLiteRepo{db: db}, nil
}

// applyPragmas configures the SQLite connection for durability and concurrency.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database resources.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

// --- Reminders ---

// UpsertReminder inserts or replaces a user's reminder configuration.
func (r *SQLiteRepo) UpsertReminder(ctx context.Context, rem *Reminder) error {
	if rem == nil {
		return errors.New("nil reminder")
	}
	updated := rem.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reminders (user_id, username, remind_at, tz, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			username   = excluded.username,
			remind_at  = excluded.remind_at,
			tz         = excluded.tz,
			updated_at = excluded.updated_at`,
		rem.UserID, toNullString(rem.Username), rem.RemindAt, rem.TZ, updated.Unix(),
	)
	return err
}

// GetReminder returns a user's reminder row or ErrNotFound.
func (r *SQLiteRepo) GetReminder(ctx context.Context, userID int64) (*Reminder, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT user_id, username, remind_at, tz, updated_at
		FROM reminders
		WHERE user_id = ?`,
		userID,
	)
	rem, err := scanReminder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rem, err
}

// ListReminders returns every persisted reminder configuration.
func (r *SQLiteRepo) ListReminders(ctx context.Context) ([]Reminder, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, username, remind_at, tz, updated_at
		FROM reminders
		ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *rem)
	}
	return res, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReminder(row rowScanner) (*Reminder, error) {
	var (
		userID   int64
		username sql.NullString
		remindAt string
		tz       string
		updated  int64
	)
	if err := row.Scan(&userID, &username, &remindAt, &tz, &updated); err != nil {
		return nil, err
	}
	return &Reminder{
		UserID:    userID,
		Username:  fromNullString(username),
		RemindAt:  remindAt,
		TZ:        tz,
		UpdatedAt: time.Unix(updated, 0).UTC(),
	}, nil
}

// --- Acknowledgements ---

// MarkPillTaken records that the user took the pill on the given local date.
func (r *SQLiteRepo) MarkPillTaken(ctx context.Context, userID int64, date string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO pills_taken (user_id, date, taken_at)
		VALUES (?, ?, ?)`,
		userID, date, time.Now().UTC().Unix(),
	)
	return err
}

// ClearPillTaken removes the acknowledgement for the given local date, if any.
func (r *SQLiteRepo) ClearPillTaken(ctx context.Context, userID int64, date string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM pills_taken WHERE user_id = ? AND date = ?`,
		userID, date,
	)
	return err
}

// PillTakenOn reports whether an acknowledgement exists for (user, date).
func (r *SQLiteRepo) PillTakenOn(ctx context.Context, userID int64, date string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `
		SELECT 1 FROM pills_taken WHERE user_id = ? AND date = ?`,
		userID, date,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// PillDaysCount returns the number of distinct days the user acknowledged.
func (r *SQLiteRepo) PillDaysCount(ctx context.Context, userID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT date) FROM pills_taken WHERE user_id = ?`,
		userID,
	).Scan(&n)
	return n, err
}

// FirstPillDate returns the earliest acknowledged date, or "" if none.
func (r *SQLiteRepo) FirstPillDate(ctx context.Context, userID int64) (string, error) {
	var first sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT MIN(date) FROM pills_taken WHERE user_id = ?`,
		userID,
	).Scan(&first)
	if err != nil {
		return "", err
	}
	return fromNullString(first), nil
}

// --- Interaction log ---

// LogInteraction appends one row to the interaction log.
func (r *SQLiteRepo) LogInteraction(ctx context.Context, userID int64, username, kind, data string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO interactions (user_id, username, kind, data, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		userID, toNullString(username), kind, toNullString(data), time.Now().UTC().Unix(),
	)
	return err
}

// ListInteractions returns the full interaction log, newest first.
func (r *SQLiteRepo) ListInteractions(ctx context.Context) ([]Interaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, username, kind, data, created_at
		FROM interactions
		ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Interaction
	for rows.Next() {
		var (
			it       Interaction
			username sql.NullString
			data     sql.NullString
			created  int64
		)
		if err := rows.Scan(&it.ID, &it.UserID, &username, &it.Kind, &data, &created); err != nil {
			return nil, err
		}
		it.Username = fromNullString(username)
		it.Data = fromNullString(data)
		it.CreatedAt = time.Unix(created, 0).UTC()
		res = append(res, it)
	}
	return res, rows.Err()
}

// --- Voice memos ---

// AddVoiceMemo stores a new memo and returns its id.
func (r *SQLiteRepo) AddVoiceMemo(ctx context.Context, fileID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO voice_memos (file_id, created_at) VALUES (?, ?)`,
		fileID, time.Now().UTC().Unix(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// NextVoiceMemoFor returns the earliest memo the user has not received yet,
// or ErrNotFound when the pool is exhausted for them.
func (r *SQLiteRepo) NextVoiceMemoFor(ctx context.Context, userID int64) (*VoiceMemo, error) {
	var (
		m       VoiceMemo
		created int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT vm.id, vm.file_id, vm.created_at
		FROM voice_memos vm
		LEFT JOIN voice_deliveries vd
		       ON vd.memo_id = vm.id AND vd.user_id = ?
		WHERE vd.memo_id IS NULL
		ORDER BY vm.id ASC
		LIMIT 1`,
		userID,
	).Scan(&m.ID, &m.FileID, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	m.CreatedAt = time.Unix(created, 0).UTC()
	return &m, nil
}

// MarkVoiceMemoDelivered records that the memo was handed to the user.
func (r *SQLiteRepo) MarkVoiceMemoDelivered(ctx context.Context, userID, memoID int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO voice_deliveries (user_id, memo_id, delivered_at)
		VALUES (?, ?, ?)`,
		userID, memoID, time.Now().UTC().Unix(),
	)
	return err
}

// ListVoiceMemos returns the most recently added memos, newest first.
func (r *SQLiteRepo) ListVoiceMemos(ctx context.Context, limit int) ([]VoiceMemo, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, file_id, created_at
		FROM voice_memos
		ORDER BY id DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []VoiceMemo
	for rows.Next() {
		var (
			m       VoiceMemo
			created int64
		)
		if err := rows.Scan(&m.ID, &m.FileID, &created); err != nil {
			return nil, err
		}
		m.CreatedAt = time.Unix(created, 0).UTC()
		res = append(res, m)
	}
	return res, rows.Err()
}

// DeleteVoiceMemo removes a memo and its delivery records. Returns false if
// no such memo existed.
func (r *SQLiteRepo) DeleteVoiceMemo(ctx context.Context, memoID int64) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM voice_memos WHERE id = ?`, memoID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM voice_deliveries WHERE memo_id = ?`, memoID); err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM voice_memos WHERE id = ?`, memoID); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

// VoiceMemoTakenOn reports whether the user already received a memo that day.
func (r *SQLiteRepo) VoiceMemoTakenOn(ctx context.Context, userID int64, date string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `
		SELECT 1 FROM voice_memo_daily WHERE user_id = ? AND date = ?`,
		userID, date,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// MarkVoiceMemoTaken records the day's memo delivery for the one-per-day cap.
func (r *SQLiteRepo) MarkVoiceMemoTaken(ctx context.Context, userID int64, date string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO voice_memo_daily (user_id, date, taken_at)
		VALUES (?, ?, ?)`,
		userID, date, time.Now().UTC().Unix(),
	)
	return err
}

// --- Export ---

// ListUserExports returns one aggregated row per user for the spreadsheet.
func (r *SQLiteRepo) ListUserExports(ctx context.Context) ([]UserExport, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT r.user_id, r.username, r.remind_at, r.tz, r.updated_at,
		       (SELECT COUNT(DISTINCT date) FROM pills_taken p WHERE p.user_id = r.user_id),
		       (SELECT MIN(date) FROM pills_taken p WHERE p.user_id = r.user_id),
		       (SELECT COUNT(*) FROM interactions i WHERE i.user_id = r.user_id)
		FROM reminders r
		ORDER BY r.user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []UserExport
	for rows.Next() {
		var (
			u        UserExport
			username sql.NullString
			updated  int64
			first    sql.NullString
		)
		if err := rows.Scan(&u.UserID, &username, &u.RemindAt, &u.TZ, &updated, &u.PillsTaken, &first, &u.Interactions); err != nil {
			return nil, err
		}
		u.Username = fromNullString(username)
		u.FirstTaken = fromNullString(first)
		u.UpdatedAt = time.Unix(updated, 0).UTC()
		res = append(res, u)
	}
	return res, rows.Err()
}
