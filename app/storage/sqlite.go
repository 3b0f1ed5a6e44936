package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	e "nuclight.org/media-tg-bot/pkg/entities"
)

// SQLite is the job journal. It records what the queue did and is never
// read back to drive a conversation.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(ctx context.Context, filePath string) (*SQLite, error) {
	dsn := filePath
	if !strings.Contains(dsn, "?") {
		dsn += "?_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite3 database: %w", err)
	}

	client := &SQLite{
		db: db,
	}

	err = client.init(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing sqlite3 database: %w", err)
	}

	return client, nil
}

func (c *SQLite) Close() error {
	return c.db.Close()
}

func (c *SQLite) SaveJob(ctx context.Context, rec e.JobRecord) error {
	_, err := c.db.ExecContext(
		ctx,
		`INSERT INTO jobs (
			id, kind, chat_id, query, extractor, media_id, format_id, author, title, status, created_at
		) VALUES (
			?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		) ON CONFLICT(id) DO UPDATE SET status = excluded.status, error = NULL, finished_at = NULL`,
		rec.ID, string(rec.Kind), rec.ChatID, rec.Query, rec.Extractor, rec.MediaID, rec.FormatID,
		nullString(rec.Author), nullString(rec.Title), string(rec.Status), rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting job: %w", err)
	}
	return nil
}

func (c *SQLite) FinishJob(ctx context.Context, id string, status e.JobStatus, errText string) error {
	var errValue sql.NullString
	if errText != "" {
		errValue = sql.NullString{String: errText, Valid: true}
	}

	result, err := c.db.ExecContext(
		ctx,
		`UPDATE jobs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(status), errValue, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating job: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("job %s not found", id)
	}

	return nil
}

// RecentDownloads returns the latest download jobs of a chat, newest first.
func (c *SQLite) RecentDownloads(ctx context.Context, chatID int64, limit int) ([]e.JobRecord, error) {
	rows, err := c.db.QueryContext(
		ctx,
		`SELECT id, kind, chat_id, query, extractor, media_id, format_id, author, title, status, error, created_at, finished_at
			FROM jobs
			WHERE chat_id = ? AND kind = ?
			ORDER BY created_at DESC, rowid DESC
			LIMIT ?`,
		chatID, string(e.JobKindDownload), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying jobs: %w", err)
	}
	defer rows.Close()

	var records []e.JobRecord
	for rows.Next() {
		var (
			rec                   e.JobRecord
			kind, status          string
			author, title, jobErr sql.NullString
			finishedAt            sql.NullTime
		)
		err := rows.Scan(
			&rec.ID, &kind, &rec.ChatID, &rec.Query, &rec.Extractor, &rec.MediaID, &rec.FormatID,
			&author, &title, &status, &jobErr, &rec.CreatedAt, &finishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning job: %w", err)
		}

		rec.Kind = e.JobKind(kind)
		rec.Status = e.JobStatus(status)
		rec.Author = fromNullString(author)
		rec.Title = fromNullString(title)
		rec.Error = fromNullString(jobErr)
		if finishedAt.Valid {
			t := finishedAt.Time
			rec.FinishedAt = &t
		}

		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating jobs: %w", err)
	}

	return records, nil
}

//go:embed init.sql
var initQuery string

func (c *SQLite) init(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, initQuery)
	return err
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}
