package library

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"reelhouse/internal/config"
	"reelhouse/internal/services"
	"reelhouse/internal/sqlitex"
)

//go:embed schema.sql
var schemaSQL string

const schemaVersion = 2

const assetColumns = `id, title, year, season, episode, catalog_id, media_type, triage_path,
    base_name, extension, duration_seconds, status, created_at, updated_at`

// Store persists assets in SQLite.
type Store struct {
	db   *sql.DB
	path string
	root string
}

// NewAsset describes an asset to insert.
type NewAsset struct {
	Title      string
	Year       int
	Season     *int
	Episode    *int
	CatalogID  string
	MediaType  MediaType
	TriagePath string
	BaseName   string
	Extension  string
}

// Open opens the library database under the state directory with artifacts
// rooted at the library directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.LibraryDBPath(), cfg.Paths.LibraryDir)
}

// OpenPath opens the library database at path.
func OpenPath(path, root string) (*Store, error) {
	db, err := sqlitex.Open(path)
	if err != nil {
		return nil, err
	}
	if err := sqlitex.InitSchema(context.Background(), db, schemaSQL, schemaVersion, "delete "+path+" to recreate the library"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, path: path, root: root}, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) scanAsset(scanner sqlitex.Scanner) (*Asset, error) {
	var (
		asset      Asset
		season     sql.NullInt64
		episode    sql.NullInt64
		catalogID  sql.NullString
		duration   sql.NullInt64
		status     string
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(
		&asset.ID, &asset.Title, &asset.Year, &season, &episode, &catalogID, &asset.MediaType,
		&asset.TriagePath, &asset.BaseName, &asset.Extension, &duration, &status,
		&createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}
	asset.Season = sqlitex.IntPtr(season)
	asset.Episode = sqlitex.IntPtr(episode)
	asset.DurationSeconds = sqlitex.IntPtr(duration)
	asset.CatalogID = catalogID.String
	asset.Status, _ = ParseStatus(status)
	asset.CreatedAt, _ = sqlitex.ParseTime(createdRaw)
	asset.UpdatedAt, _ = sqlitex.ParseTime(updatedRaw)
	asset.root = s.root
	return &asset, nil
}

// Insert creates an asset in the not-converted state. A triage path that is
// already admitted yields ErrValidation; a base name another asset owns yields
// ErrConflict.
func (s *Store) Insert(ctx context.Context, req NewAsset) (*Asset, error) {
	now := sqlitex.Now()
	res, err := sqlitex.Exec(
		ctx, s.db,
		`INSERT INTO assets (
            title, year, season, episode, catalog_id, media_type, triage_path,
            base_name, extension, status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.Title, req.Year, sqlitex.NullableInt(req.Season), sqlitex.NullableInt(req.Episode),
		sqlitex.NullableString(req.CatalogID), req.MediaType, req.TriagePath,
		req.BaseName, req.Extension, StatusNotConverted, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) && !strings.Contains(err.Error(), "assets.triage_path") {
			return nil, services.Wrap(services.ErrConflict, "library", "admit", "an asset named "+req.BaseName+" already exists", nil)
		}
		if isUniqueViolation(err) {
			return nil, services.Wrap(services.ErrValidation, "library", "admit", req.TriagePath+" is already triaged", nil)
		}
		return nil, fmt.Errorf("insert asset: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.Get(ctx, id)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Get fetches an asset. A missing asset yields (nil, nil).
func (s *Store) Get(ctx context.Context, id int64) (*Asset, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = ?`, id)
	asset, err := s.scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get asset: %w", err)
	}
	return asset, nil
}

// List returns every asset ordered by base name. Passing statuses restricts
// the result to those states.
func (s *Store) List(ctx context.Context, statuses ...ConversionStatus) ([]*Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + sqlitex.Placeholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY base_name, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var assets []*Asset
	for rows.Next() {
		asset, err := s.scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		assets = append(assets, asset)
	}
	return assets, rows.Err()
}

// TransitionStatus moves asset id to status "to" when its current status is
// one of from. It reports false when the asset was in any other state.
func (s *Store) TransitionStatus(ctx context.Context, id int64, to ConversionStatus, from ...ConversionStatus) (bool, error) {
	if len(from) == 0 {
		return false, errors.New("transition requires at least one source status")
	}
	args := []any{to, sqlitex.Now(), id}
	for _, status := range from {
		args = append(args, status)
	}
	res, err := sqlitex.Exec(
		ctx, s.db,
		`UPDATE assets SET status = ?, updated_at = ? WHERE id = ? AND status IN (`+sqlitex.Placeholders(len(from))+`)`,
		args...,
	)
	if err != nil {
		return false, fmt.Errorf("transition asset: %w", err)
	}
	return affectedOne(res)
}

// SetDuration records the asset duration in whole seconds.
func (s *Store) SetDuration(ctx context.Context, id int64, duration time.Duration) error {
	if _, err := sqlitex.Exec(
		ctx, s.db,
		`UPDATE assets SET duration_seconds = ?, updated_at = ? WHERE id = ?`,
		int64(duration/time.Second), sqlitex.Now(), id,
	); err != nil {
		return fmt.Errorf("set duration: %w", err)
	}
	return nil
}

// Delete removes the asset record and reports whether it existed.
func (s *Store) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := sqlitex.Exec(ctx, s.db, `DELETE FROM assets WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete asset: %w", err)
	}
	return affectedOne(res)
}

// CountCoverSharers returns how many stored assets use the same cover file as
// asset. Covers are named by GroupName, so sharing is decided on title and year
// alone.
func (s *Store) CountCoverSharers(ctx context.Context, asset *Asset) (int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT title FROM assets WHERE year = ?`, asset.Year)
	if err != nil {
		return 0, fmt.Errorf("count cover sharers: %w", err)
	}
	defer rows.Close()

	group := GroupName(asset.Title, asset.Year)
	count := 0
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return 0, fmt.Errorf("scan cover sharer: %w", err)
		}
		if GroupName(title, asset.Year) == group {
			count++
		}
	}
	return count, rows.Err()
}

// IsTriaged reports whether path has been admitted.
func (s *Store) IsTriaged(ctx context.Context, path string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM assets WHERE triage_path = ?`, path).Scan(&n); err != nil {
		return false, fmt.Errorf("check triage path: %w", err)
	}
	return n > 0, nil
}

// TriagePaths returns the set of admitted triage paths.
func (s *Store) TriagePaths(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT triage_path FROM assets`)
	if err != nil {
		return nil, fmt.Errorf("list triage paths: %w", err)
	}
	defer rows.Close()

	paths := make(map[string]struct{})
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, err
		}
		paths[path] = struct{}{}
	}
	return paths, rows.Err()
}

func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}
