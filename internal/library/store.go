package library

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	_ "modernc.org/sqlite"

	"mediavault/internal/config"
	"mediavault/internal/services"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; users must delete the index database and rescan after a bump.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the
// expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Store manages the media index backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the index database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.DatabasePath())
}

// OpenPath connects to the index database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	err = s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete the index database and rescan)",
			ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// UpsertFile records a file observed by a scan, keyed by path. View history
// survives rescans.
func (s *Store) UpsertFile(ctx context.Context, file File) (*File, bool, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	modTime := file.ModTime.UTC().Format(time.RFC3339Nano)

	var existingID int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM media_files WHERE path = ?`, file.Path).Scan(&existingID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO media_files (
                path, title, kind, size_bytes, mod_time, cloud_id,
                first_seen_at, last_seen_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			file.Path, file.Title, string(file.Kind), file.SizeBytes, modTime,
			nullableString(file.CloudID), now, now,
		)
		if err != nil {
			return nil, false, fmt.Errorf("insert file: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, false, fmt.Errorf("last insert id: %w", err)
		}
		inserted, err := s.GetByID(ctx, id)
		return inserted, true, err
	case err != nil:
		return nil, false, fmt.Errorf("lookup file by path: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE media_files SET
            title = ?, kind = ?, size_bytes = ?, mod_time = ?, cloud_id = ?, last_seen_at = ?
         WHERE id = ?`,
		file.Title, string(file.Kind), file.SizeBytes, modTime,
		nullableString(file.CloudID), now, existingID,
	)
	if err != nil {
		return nil, false, fmt.Errorf("update file: %w", err)
	}
	updated, err := s.GetByID(ctx, existingID)
	return updated, false, err
}

// GetByID fetches an indexed file by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*File, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	file, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "library", "get", fmt.Sprintf("no file with id %d", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get file %d: %w", id, err)
	}
	return file, nil
}

// GetByPath fetches an indexed file by absolute path.
func (s *Store) GetByPath(ctx context.Context, path string) (*File, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE path = ?`, path)
	file, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "library", "get", fmt.Sprintf("path %q is not indexed", path), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get file by path: %w", err)
	}
	return file, nil
}

// List returns indexed files ordered by title, optionally restricted to one
// kind. A zero limit returns everything.
func (s *Store) List(ctx context.Context, kind Kind, limit int) ([]File, error) {
	query := selectColumns
	args := []any{}
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY title COLLATE NOCASE, path`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var files []File
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, *file)
	}
	return files, rows.Err()
}

// RecordView bumps the view counter and view timestamp for a file.
func (s *Store) RecordView(ctx context.Context, id int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE media_files SET view_count = view_count + 1, last_viewed_at = ? WHERE id = ?`,
		now, id,
	)
	if err != nil {
		return fmt.Errorf("record view: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record view rows: %w", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "library", "record_view", fmt.Sprintf("no file with id %d", id), nil)
	}
	return nil
}

// PruneNotSeenSince removes files a completed scan no longer observed.
func (s *Store) PruneNotSeenSince(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM media_files WHERE last_seen_at < ?`,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("prune files: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune rows: %w", err)
	}
	return removed, nil
}

// Stats aggregates index contents.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, COUNT(1), COALESCE(SUM(size_bytes), 0), COALESCE(SUM(view_count), 0)
         FROM media_files GROUP BY kind`)
	if err != nil {
		return stats, fmt.Errorf("library stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind string
		var count, bytes, views int64
		if err := rows.Scan(&kind, &count, &bytes, &views); err != nil {
			return stats, err
		}
		stats.TotalFiles += count
		stats.TotalBytes += bytes
		stats.TotalViews += views
		switch Kind(kind) {
		case KindVideo:
			stats.VideoFiles += count
		case KindImage:
			stats.ImageFiles += count
		default:
			stats.OtherFiles += count
		}
	}
	return stats, rows.Err()
}

// CheckHealth returns diagnostic information about the index database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat index database: %w", err)
	}
	health.DatabaseExists = true
	health.SizeBytes = info.Size()

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM media_files`).Scan(&health.TotalFiles); err != nil {
		return health, fmt.Errorf("count files: %w", err)
	}
	return health, nil
}

const selectColumns = `SELECT id, path, title, kind, size_bytes, mod_time, cloud_id,
    view_count, last_viewed_at, first_seen_at, last_seen_at FROM media_files`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(row rowScanner) (*File, error) {
	var (
		file         File
		kind         string
		modTime      string
		cloudID      sql.NullString
		lastViewedAt sql.NullString
		firstSeenAt  string
		lastSeenAt   string
	)
	err := row.Scan(&file.ID, &file.Path, &file.Title, &kind, &file.SizeBytes,
		&modTime, &cloudID, &file.ViewCount, &lastViewedAt, &firstSeenAt, &lastSeenAt)
	if err != nil {
		return nil, err
	}
	file.Kind = Kind(kind)
	if cloudID.Valid {
		file.CloudID = cloudID.String
	}
	if file.ModTime, err = parseTimestamp(modTime); err != nil {
		return nil, err
	}
	if lastViewedAt.Valid {
		viewed, err := parseTimestamp(lastViewedAt.String)
		if err != nil {
			return nil, err
		}
		file.LastViewedAt = &viewed
	}
	if file.FirstSeenAt, err = parseTimestamp(firstSeenAt); err != nil {
		return nil, err
	}
	if file.LastSeenAt, err = parseTimestamp(lastSeenAt); err != nil {
		return nil, err
	}
	return &file, nil
}

func parseTimestamp(value string) (time.Time, error) {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return parsed, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
