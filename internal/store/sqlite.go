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

	"github.com/quitpal/notifier/internal/domain"
)

// SQLiteRepo implements Repo using an embedded SQLite database.
type SQLiteRepo struct{ db *sql.DB }

// OpenSQLite opens (or creates) the database at path, applies PRAGMAs,
// runs migrations, and returns a repository.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// SQLite is a single-writer engine; keep the pool at one connection.
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

// GetInstallID returns the stable per-install user id, or ErrNotFound on a
// fresh install.
func (r *SQLiteRepo) GetInstallID(ctx context.Context) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT user_id FROM install WHERE k = 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// SetInstallID writes the install id once; later calls leave it unchanged.
func (r *SQLiteRepo) SetInstallID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO install (k, user_id) VALUES (1, ?)
		ON CONFLICT(k) DO NOTHING`,
		userID,
	)
	return err
}

// SaveSettings inserts or updates a user's settings row.
func (r *SQLiteRepo) SaveSettings(ctx context.Context, s domain.Settings) error {
	now := time.Now().UTC().Unix()
	created := s.CreatedAt.UTC().Unix()
	if s.CreatedAt.IsZero() {
		created = now
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_settings (
			user_id, language, buddy_name, buddy_id, gender, start_date,
			morning_time, evening_time, tz, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			language     = excluded.language,
			buddy_name   = excluded.buddy_name,
			buddy_id     = excluded.buddy_id,
			gender       = excluded.gender,
			start_date   = excluded.start_date,
			morning_time = excluded.morning_time,
			evening_time = excluded.evening_time,
			tz           = excluded.tz,
			enabled      = excluded.enabled,
			updated_at   = excluded.updated_at`,
		s.UserID, s.Language, s.BuddyName, s.BuddyID, s.Gender,
		s.StartDate.UTC().Unix(), s.MorningTime, s.EveningTime, s.Timezone,
		boolToInt(s.Enabled), created, now,
	)
	return err
}

// GetSettings returns a user's settings or ErrNotFound.
func (r *SQLiteRepo) GetSettings(ctx context.Context, userID string) (domain.Settings, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT user_id, language, buddy_name, buddy_id, gender, start_date,
		       morning_time, evening_time, tz, enabled, created_at, updated_at
		FROM user_settings
		WHERE user_id = ?`,
		userID,
	)

	var (
		s          domain.Settings
		startDate  int64
		enabledInt int
		createdAt  int64
		updatedAt  int64
	)
	err := row.Scan(
		&s.UserID, &s.Language, &s.BuddyName, &s.BuddyID, &s.Gender, &startDate,
		&s.MorningTime, &s.EveningTime, &s.Timezone, &enabledInt, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Settings{}, ErrNotFound
	}
	if err != nil {
		return domain.Settings{}, err
	}
	s.StartDate = time.Unix(startDate, 0).UTC()
	s.Enabled = enabledInt != 0
	s.CreatedAt = time.Unix(createdAt, 0).UTC()
	s.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return s, nil
}

// SaveScheduled upserts a notification record by id, so regenerating the
// same schedule overwrites instead of duplicating.
func (r *SQLiteRepo) SaveScheduled(ctx context.Context, n domain.Notification) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO scheduled_notifications (
			id, user_id, template_id, day, time_of_day, category,
			message, scheduled_at, sent, sent_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			day          = excluded.day,
			time_of_day  = excluded.time_of_day,
			category     = excluded.category,
			message      = excluded.message,
			scheduled_at = excluded.scheduled_at,
			created_at   = excluded.created_at`,
		n.ID, n.UserID, n.TemplateID, n.Day, string(n.TimeOfDay), string(n.Category),
		n.Message, n.ScheduledAt.UTC().Unix(), boolToInt(n.Sent),
		toNullInt64(n.SentAt), n.CreatedAt.UTC().Unix(),
	)
	return err
}

// ClearScheduled deletes every scheduled record for the user.
func (r *SQLiteRepo) ClearScheduled(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM scheduled_notifications WHERE user_id = ?`,
		userID,
	)
	return err
}

// ListDue returns up to `limit` unsent records with scheduled_at <= now,
// ordered by scheduled_at ascending.
func (r *SQLiteRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Notification, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, template_id, day, time_of_day, category,
		       message, scheduled_at, sent, sent_at, created_at
		FROM scheduled_notifications
		WHERE sent = 0
		  AND scheduled_at <= ?
		ORDER BY scheduled_at ASC
		LIMIT ?`,
		now.UTC().Unix(), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, rows.Err()
}

// MarkSent flips the sent flag. Already-sent records are left untouched.
func (r *SQLiteRepo) MarkSent(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_notifications
		SET sent = 1, sent_at = ?
		WHERE id = ? AND sent = 0`,
		at.UTC().Unix(), id,
	)
	return err
}

// Stats summarizes a user's schedule, including the next pending record.
func (r *SQLiteRepo) Stats(ctx context.Context, userID string) (domain.Stats, error) {
	var st domain.Stats
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(sent), 0)
		FROM scheduled_notifications
		WHERE user_id = ?`,
		userID,
	).Scan(&st.Total, &st.Sent)
	if err != nil {
		return domain.Stats{}, err
	}
	st.Pending = st.Total - st.Sent

	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, template_id, day, time_of_day, category,
		       message, scheduled_at, sent, sent_at, created_at
		FROM scheduled_notifications
		WHERE user_id = ? AND sent = 0
		ORDER BY scheduled_at ASC
		LIMIT 1`,
		userID,
	)
	next, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return st, nil
	}
	if err != nil {
		return domain.Stats{}, err
	}
	st.Next = &next
	return st, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotification(row rowScanner) (domain.Notification, error) {
	var (
		n           domain.Notification
		tod         string
		category    string
		scheduledAt int64
		sentInt     int
		sentNS      sql.NullInt64
		createdAt   int64
	)
	if err := row.Scan(
		&n.ID, &n.UserID, &n.TemplateID, &n.Day, &tod, &category,
		&n.Message, &scheduledAt, &sentInt, &sentNS, &createdAt,
	); err != nil {
		return domain.Notification{}, err
	}
	n.TimeOfDay = domain.TimeOfDay(tod)
	n.Category = domain.Category(category)
	n.ScheduledAt = time.Unix(scheduledAt, 0).UTC()
	n.Sent = sentInt != 0
	n.SentAt = fromNullInt64(sentNS)
	n.CreatedAt = time.Unix(createdAt, 0).UTC()
	return n, nil
}
