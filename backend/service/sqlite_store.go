package service

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/AnTengye/cvintake/backend/model"
	"github.com/AnTengye/cvintake/backend/service/migrations"
)

// timeLayout is fixed width so stored timestamps compare correctly as text
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore is a durable ApplicationStore and EmailQueue
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at path and applies pending migrations
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Applications ====================

const applicationColumns = `id, name, email, phone, cv_url, file_name, file_type, file_size,
	status, extracted_data, submitted_at, updated_at`

func (s *SQLiteStore) Save(ctx context.Context, app *model.Application) error {
	now := time.Now().UTC()
	if app.SubmittedAt.IsZero() {
		app.SubmittedAt = now
	}
	app.UpdatedAt = now

	data, err := json.Marshal(app.ExtractedData)
	if err != nil {
		return fmt.Errorf("marshalling extracted data: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO applications (`+applicationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			phone = excluded.phone,
			cv_url = excluded.cv_url,
			file_name = excluded.file_name,
			file_type = excluded.file_type,
			file_size = excluded.file_size,
			status = excluded.status,
			extracted_data = excluded.extracted_data,
			updated_at = excluded.updated_at
	`, app.ID, app.Name, app.Email, app.Phone, app.CVURL, app.FileName, app.FileType, app.FileSize,
		app.Status, string(data), formatTime(app.SubmittedAt), formatTime(app.UpdatedAt))
	if err != nil {
		return fmt.Errorf("saving application: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.Application, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id = ?`, id)
	app, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return app, err
}

func (s *SQLiteStore) List(ctx context.Context) ([]*model.Application, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+applicationColumns+` FROM applications ORDER BY submitted_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying applications: %w", err)
	}
	defer rows.Close()

	apps := []*model.Application{}
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

func (s *SQLiteStore) UpdateStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE applications SET status = ?, updated_at = ? WHERE id = ?",
		status, formatTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("updating status: %w", err)
	}
	return requireAffected(res)
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM applications WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting application: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM applications").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting applications: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (*model.Application, error) {
	var app model.Application
	var data, submittedAt, updatedAt string
	if err := row.Scan(&app.ID, &app.Name, &app.Email, &app.Phone, &app.CVURL, &app.FileName,
		&app.FileType, &app.FileSize, &app.Status, &data, &submittedAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning application: %w", err)
	}

	if err := json.Unmarshal([]byte(data), &app.ExtractedData); err != nil {
		return nil, fmt.Errorf("unmarshalling extracted data: %w", err)
	}
	app.ExtractedData.Normalize()
	app.SubmittedAt = parseTime(submittedAt)
	app.UpdatedAt = parseTime(updatedAt)
	return &app, nil
}

// ==================== Scheduled e-mails ====================

func (s *SQLiteStore) Schedule(ctx context.Context, email *model.ScheduledEmail) error {
	if email.CreatedAt.IsZero() {
		email.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scheduled_emails (id, application_id, recipient, name, cv_url, scheduled_for, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			recipient = excluded.recipient,
			name = excluded.name,
			cv_url = excluded.cv_url,
			scheduled_for = excluded.scheduled_for
	`, email.ID, email.ApplicationID, email.To, email.Name, email.CVURL,
		formatTime(email.ScheduledFor), formatTime(email.CreatedAt))
	if err != nil {
		return fmt.Errorf("scheduling email: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Due(ctx context.Context, now time.Time, limit int) ([]*model.ScheduledEmail, error) {
	query := `
		SELECT id, application_id, recipient, name, cv_url, scheduled_for, sent, sent_at, attempts, last_error, created_at
		FROM scheduled_emails
		WHERE sent = 0 AND scheduled_for <= ?
		ORDER BY scheduled_for ASC`
	args := []any{formatTime(now)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying due emails: %w", err)
	}
	defer rows.Close()

	var due []*model.ScheduledEmail
	for rows.Next() {
		var e model.ScheduledEmail
		var scheduledFor, createdAt string
		var sentAt sql.NullString
		if err := rows.Scan(&e.ID, &e.ApplicationID, &e.To, &e.Name, &e.CVURL, &scheduledFor,
			&e.Sent, &sentAt, &e.Attempts, &e.LastError, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning email: %w", err)
		}
		e.ScheduledFor = parseTime(scheduledFor)
		e.CreatedAt = parseTime(createdAt)
		if sentAt.Valid {
			t := parseTime(sentAt.String)
			e.SentAt = &t
		}
		due = append(due, &e)
	}
	return due, rows.Err()
}

func (s *SQLiteStore) MarkSent(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_emails SET sent = 1, sent_at = ?, attempts = attempts + 1, last_error = ''
		WHERE id = ?
	`, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("marking email sent: %w", err)
	}
	return requireAffected(res)
}

func (s *SQLiteStore) MarkFailed(ctx context.Context, id string, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE scheduled_emails SET attempts = attempts + 1, last_error = ? WHERE id = ?",
		errMsg, id)
	if err != nil {
		return fmt.Errorf("marking email failed: %w", err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
