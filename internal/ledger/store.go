// Package ledger records every delivered episode in SQLite so repeat
// requests can be served from the vault instead of re-downloading.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver (pure Go, no CGO)
)

// Query limits for ledger listings.
const (
	DefaultQueryLimit  = 50
	ExtendedQueryLimit = 200
	MaxQueryLimit      = 1000
)

// UploadedFile is one delivered episode recorded in the ledger.
type UploadedFile struct {
	ID                int64     `json:"id"`
	AnimeTitle        string    `json:"anime_title"`
	Episode           int       `json:"episode"`
	UploadedChatID    int64     `json:"uploaded_chat_id"`
	UploaderUserID    int64     `json:"uploader_user_id"`
	UploadedMessageID int       `json:"uploaded_message_id"`
	VaultChatID       int64     `json:"vault_chat_id"`
	VaultMessageID    int       `json:"vault_message_id"`
	Language          string    `json:"ep_lang"`
	Quality           int       `json:"ep_qual"`
	Filename          string    `json:"filename"`
	Filesize          int64     `json:"filesize"`
	CreatedAt         time.Time `json:"created_at"`
}

// Store provides SQLite persistence for the upload ledger.
type Store struct {
	db *sql.DB
}

// Open initializes the ledger store and runs migrations.
// WAL mode and a busy timeout keep concurrent batch inserts from tripping
// over "database locked" errors.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &Store{db: db}

	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate runs database schema migrations.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS uploaded_files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		anime_title TEXT NOT NULL,
		episode INTEGER NOT NULL,
		uploaded_chat_id INTEGER NOT NULL,
		uploader_user_id INTEGER NOT NULL,
		uploaded_message_id INTEGER NOT NULL,
		vault_chat_id INTEGER NOT NULL,
		vault_message_id INTEGER NOT NULL,
		ep_lang TEXT NOT NULL DEFAULT '',
		ep_qual INTEGER NOT NULL DEFAULT 0,
		filename TEXT NOT NULL,
		filesize INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_uploaded_files_title ON uploaded_files(anime_title);
	CREATE INDEX IF NOT EXISTS idx_uploaded_files_title_episode ON uploaded_files(anime_title, episode);
	`

	_, err := s.db.Exec(schema)
	return err
}

// InsertUploadedFile records one delivered episode and returns the stored row.
func (s *Store) InsertUploadedFile(ctx context.Context, rec UploadedFile) (UploadedFile, error) {
	rec.CreatedAt = time.Now().UTC()

	query := `
	INSERT INTO uploaded_files (
		anime_title, episode, uploaded_chat_id, uploader_user_id,
		uploaded_message_id, vault_chat_id, vault_message_id,
		ep_lang, ep_qual, filename, filesize, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := s.db.ExecContext(ctx, query,
		rec.AnimeTitle, rec.Episode, rec.UploadedChatID, rec.UploaderUserID,
		rec.UploadedMessageID, rec.VaultChatID, rec.VaultMessageID,
		rec.Language, rec.Quality, rec.Filename, rec.Filesize,
		rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return UploadedFile{}, fmt.Errorf("insert uploaded file: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return UploadedFile{}, fmt.Errorf("read insert id: %w", err)
	}
	rec.ID = id

	return rec, nil
}

// LatestUploaded returns the newest ledger record for a title and episode,
// or nil when nothing has been uploaded yet.
func (s *Store) LatestUploaded(ctx context.Context, title string, episode int) (*UploadedFile, error) {
	query := selectColumns + `
	WHERE anime_title = ? AND episode = ?
	ORDER BY created_at DESC, id DESC
	LIMIT 1
	`

	rec, err := scanUploadedFile(s.db.QueryRowContext(ctx, query, title, episode))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query latest upload: %w", err)
	}

	return &rec, nil
}

// ListForTitle returns up to limit records for a title, episode ascending.
func (s *Store) ListForTitle(ctx context.Context, title string, limit int) ([]UploadedFile, error) {
	query := selectColumns + `
	WHERE anime_title = ?
	ORDER BY episode ASC, created_at DESC
	LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, title, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query uploads for title: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectUploadedFiles(rows)
}

// ListDistinctTitles returns every title present in the ledger.
func (s *Store) ListDistinctTitles(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT anime_title FROM uploaded_files ORDER BY anime_title`)
	if err != nil {
		return nil, fmt.Errorf("query distinct titles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var titles []string
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, err
		}
		titles = append(titles, title)
	}

	return titles, rows.Err()
}

// SearchFiles returns a page of ledger records filtered by a title fragment
// and, when episode is positive, an exact episode number. Newest first.
func (s *Store) SearchFiles(ctx context.Context, titleLike string, episode, limit, offset int) ([]UploadedFile, error) {
	where, args := searchFilter(titleLike, episode)

	query := selectColumns + where + `
	ORDER BY created_at DESC, id DESC
	LIMIT ? OFFSET ?
	`
	args = append(args, clampLimit(limit), max(offset, 0))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search uploaded files: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectUploadedFiles(rows)
}

// CountFiles counts the ledger records matching a SearchFiles filter.
func (s *Store) CountFiles(ctx context.Context, titleLike string, episode int) (int, error) {
	where, args := searchFilter(titleLike, episode)

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM uploaded_files`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count uploaded files: %w", err)
	}

	return count, nil
}

const selectColumns = `
	SELECT id, anime_title, episode, uploaded_chat_id, uploader_user_id,
	       uploaded_message_id, vault_chat_id, vault_message_id,
	       ep_lang, ep_qual, filename, filesize, created_at
	FROM uploaded_files
`

func searchFilter(titleLike string, episode int) (string, []any) {
	var clauses []string
	var args []any

	if titleLike != "" {
		clauses = append(clauses, "anime_title LIKE ?")
		args = append(args, "%"+titleLike+"%")
	}
	if episode > 0 {
		clauses = append(clauses, "episode = ?")
		args = append(args, episode)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultQueryLimit
	}
	if limit > MaxQueryLimit {
		return MaxQueryLimit
	}
	return limit
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUploadedFile(row rowScanner) (UploadedFile, error) {
	var rec UploadedFile
	var createdAt string

	err := row.Scan(
		&rec.ID, &rec.AnimeTitle, &rec.Episode, &rec.UploadedChatID,
		&rec.UploaderUserID, &rec.UploadedMessageID, &rec.VaultChatID,
		&rec.VaultMessageID, &rec.Language, &rec.Quality,
		&rec.Filename, &rec.Filesize, &createdAt,
	)
	if err != nil {
		return UploadedFile{}, err
	}

	rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return UploadedFile{}, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}

	return rec, nil
}

func collectUploadedFiles(rows *sql.Rows) ([]UploadedFile, error) {
	var files []UploadedFile
	for rows.Next() {
		rec, err := scanUploadedFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, rec)
	}
	return files, rows.Err()
}
