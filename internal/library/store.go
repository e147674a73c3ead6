package library

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"ludex/internal/config"
	"ludex/internal/services"
)

// Store manages library persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// Open initializes or connects to the library database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.DatabasePath()
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

// DBPath returns the location of the database file.
func (s *Store) DBPath() string {
	return s.path
}

// AddPath registers a candidate folder. Adding an already-known path returns
// the existing row unchanged.
func (s *Store) AddPath(ctx context.Context, path Path) (*Path, error) {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(path.Library) == "" || strings.TrimSpace(path.Dir) == "" {
		return nil, services.Wrap(services.ErrValidation, "library", "add path",
			"library and dir are required", nil)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.execWithRetry(ctx,
		`INSERT INTO library_paths (library, platform, dir, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (library, dir) DO NOTHING`,
		path.Library, path.Platform, path.Dir, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert library path: %w", err)
	}
	return s.PathByKey(ctx, path.Key())
}

// PathByKey loads one path by identity.
func (s *Store) PathByKey(ctx context.Context, key Key) (*Path, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT id, library, platform, dir, created_at FROM library_paths WHERE library = ? AND dir = ?`,
		key.Library, key.Dir,
	)
	path, err := scanPath(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "library", "path lookup",
			fmt.Sprintf("path %q in library %q is not registered", key.Dir, key.Library), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("scan library path: %w", err)
	}
	return path, nil
}

// ListPaths returns every registered path ordered by library then folder.
func (s *Store) ListPaths(ctx context.Context) ([]*Path, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, library, platform, dir, created_at FROM library_paths ORDER BY library, dir`,
	)
	if err != nil {
		return nil, fmt.Errorf("list library paths: %w", err)
	}
	defer rows.Close()

	var paths []*Path
	for rows.Next() {
		path, err := scanPath(rows)
		if err != nil {
			return nil, fmt.Errorf("scan library path: %w", err)
		}
		paths = append(paths, path)
	}
	return paths, rows.Err()
}

// RemovePath deletes a path and, via cascade, its game and provider records.
func (s *Store) RemovePath(ctx context.Context, key Key) error {
	res, err := s.execWithRetry(ctx,
		`DELETE FROM library_paths WHERE library = ? AND dir = ?`, key.Library, key.Dir)
	if err != nil {
		return fmt.Errorf("remove library path: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove library path: %w", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "library", "remove path",
			fmt.Sprintf("path %q in library %q is not registered", key.Dir, key.Library), nil)
	}
	return nil
}

// UpsertGame stores or replaces the confirmed game for a path.
func (s *Store) UpsertGame(ctx context.Context, game *Game) (*Game, error) {
	ctx = ensureContext(ctx)
	if game == nil || game.PathID == 0 {
		return nil, services.Wrap(services.ErrValidation, "library", "upsert game",
			"game with a path id is required", nil)
	}

	genres, err := marshalStrings(game.Genres)
	if err != nil {
		return nil, fmt.Errorf("encode genres: %w", err)
	}
	screenshots, err := marshalStrings(game.ScreenshotURLs)
	if err != nil {
		return nil, fmt.Errorf("encode screenshots: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.execWithRetry(ctx,
		`INSERT INTO games (path_id, name, description, release_date, critic_score, user_score,
		                    genres, thumbnail_url, poster_url, screenshot_urls, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (path_id) DO UPDATE SET
		   name = excluded.name,
		   description = excluded.description,
		   release_date = excluded.release_date,
		   critic_score = excluded.critic_score,
		   user_score = excluded.user_score,
		   genres = excluded.genres,
		   thumbnail_url = excluded.thumbnail_url,
		   poster_url = excluded.poster_url,
		   screenshot_urls = excluded.screenshot_urls,
		   updated_at = excluded.updated_at`,
		game.PathID, game.Name, nullableString(game.Description), nullableString(game.ReleaseDate),
		game.CriticScore, game.UserScore, nullableString(genres),
		nullableString(game.ThumbnailURL), nullableString(game.PosterURL), nullableString(screenshots),
		now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert game: %w", err)
	}
	return s.GameForPath(ctx, game.PathID)
}

// GameForPath loads the confirmed game for a path, or nil when none exists.
func (s *Store) GameForPath(ctx context.Context, pathID int64) (*Game, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT id, path_id, name, description, release_date, critic_score, user_score,
		        genres, thumbnail_url, poster_url, screenshot_urls, created_at, updated_at
		 FROM games WHERE path_id = ?`, pathID,
	)
	game, err := scanGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan game: %w", err)
	}
	return game, nil
}

// UpsertProviderRecord stores one provider's data for a confirmed game.
func (s *Store) UpsertProviderRecord(ctx context.Context, record ProviderRecord) error {
	if record.GameID == 0 || record.Provider == "" {
		return services.Wrap(services.ErrValidation, "library", "upsert provider record",
			"game id and provider are required", nil)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.execWithRetry(ctx,
		`INSERT INTO provider_data (game_id, provider, provider_game_id, site_url, data_json, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (game_id, provider) DO UPDATE SET
		   provider_game_id = excluded.provider_game_id,
		   site_url = excluded.site_url,
		   data_json = excluded.data_json,
		   updated_at = excluded.updated_at`,
		record.GameID, record.Provider, record.ProviderGameID,
		nullableString(record.SiteURL), nullableString(record.DataJSON), now,
	)
	if err != nil {
		return fmt.Errorf("upsert provider record: %w", err)
	}
	return nil
}

// ProviderRecords returns the stored provider data for a game.
func (s *Store) ProviderRecords(ctx context.Context, gameID int64) ([]ProviderRecord, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT game_id, provider, provider_game_id, site_url, data_json, updated_at
		 FROM provider_data WHERE game_id = ? ORDER BY provider`, gameID,
	)
	if err != nil {
		return nil, fmt.Errorf("list provider records: %w", err)
	}
	defer rows.Close()

	var records []ProviderRecord
	for rows.Next() {
		var (
			record     ProviderRecord
			siteURL    sql.NullString
			dataJSON   sql.NullString
			updatedRaw string
		)
		if err := rows.Scan(&record.GameID, &record.Provider, &record.ProviderGameID,
			&siteURL, &dataJSON, &updatedRaw); err != nil {
			return nil, fmt.Errorf("scan provider record: %w", err)
		}
		record.SiteURL = siteURL.String
		record.DataJSON = dataJSON.String
		if updated, err := parseTimeString(updatedRaw); err == nil {
			record.UpdatedAt = updated
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// MarkExcluded records that a path must never be offered for sync again.
// Marking an already-excluded path is a no-op.
func (s *Store) MarkExcluded(ctx context.Context, key Key) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.execWithRetry(ctx,
		`INSERT INTO excluded_paths (library, dir, excluded_at) VALUES (?, ?, ?)
		 ON CONFLICT (library, dir) DO NOTHING`,
		key.Library, key.Dir, now,
	)
	if err != nil {
		return fmt.Errorf("mark excluded: %w", err)
	}
	return nil
}

// IsExcluded reports whether a path has been excluded.
func (s *Store) IsExcluded(ctx context.Context, key Key) (bool, error) {
	ctx = ensureContext(ctx)
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM excluded_paths WHERE library = ? AND dir = ?`,
		key.Library, key.Dir,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check exclusion: %w", err)
	}
	return count > 0, nil
}

// Exclusions lists every excluded path.
func (s *Store) Exclusions(ctx context.Context) ([]Key, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT library, dir FROM excluded_paths ORDER BY library, dir`,
	)
	if err != nil {
		return nil, fmt.Errorf("list exclusions: %w", err)
	}
	defer rows.Close()

	var keys []Key
	for rows.Next() {
		var key Key
		if err := rows.Scan(&key.Library, &key.Dir); err != nil {
			return nil, fmt.Errorf("scan exclusion: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// RecordSyncResult appends one audit row for a finished path.
func (s *Store) RecordSyncResult(ctx context.Context, result SyncResult) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.execWithRetry(ctx,
		`INSERT INTO sync_results (run_id, library, dir, outcome, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		result.RunID, result.Library, result.Dir, string(result.Outcome),
		nullableString(result.Detail), now,
	)
	if err != nil {
		return fmt.Errorf("record sync result: %w", err)
	}
	return nil
}

// ResultsForRun returns the audit rows for one sync run in insertion order.
func (s *Store) ResultsForRun(ctx context.Context, runID string) ([]SyncResult, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, library, dir, outcome, detail, created_at
		 FROM sync_results WHERE run_id = ? ORDER BY id`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list sync results: %w", err)
	}
	defer rows.Close()

	var results []SyncResult
	for rows.Next() {
		var (
			result     SyncResult
			outcome    string
			detail     sql.NullString
			createdRaw string
		)
		if err := rows.Scan(&result.ID, &result.RunID, &result.Library, &result.Dir,
			&outcome, &detail, &createdRaw); err != nil {
			return nil, fmt.Errorf("scan sync result: %w", err)
		}
		result.Outcome = SyncOutcome(outcome)
		result.Detail = detail.String
		if created, err := parseTimeString(createdRaw); err == nil {
			result.CreatedAt = created
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

// Stats aggregates store counts for status output.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	ctx = ensureContext(ctx)
	var stats Stats
	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(1) FROM library_paths", &stats.Paths},
		{"SELECT COUNT(1) FROM games", &stats.Games},
		{"SELECT COUNT(1) FROM excluded_paths", &stats.Excluded},
		{"SELECT COUNT(DISTINCT run_id) FROM sync_results", &stats.SyncRuns},
	}
	for _, count := range counts {
		if err := s.db.QueryRowContext(ctx, count.query).Scan(count.dest); err != nil {
			return Stats{}, fmt.Errorf("count: %w", err)
		}
	}

	var lastRaw sql.NullString
	if err := s.db.QueryRowContext(ctx,
		"SELECT MAX(created_at) FROM sync_results").Scan(&lastRaw); err != nil {
		return Stats{}, fmt.Errorf("last sync time: %w", err)
	}
	if lastRaw.Valid {
		if last, err := parseTimeString(lastRaw.String); err == nil {
			stats.LastSyncAt = &last
		}
	}
	return stats, nil
}

// Health runs diagnostics against the database.
func (s *Store) Health(ctx context.Context) DatabaseHealth {
	ctx = ensureContext(ctx)
	health := DatabaseHealth{DBPath: s.path, DatabaseExists: true, DatabaseReadable: true}

	var version int
	if err := s.db.QueryRowContext(ctx,
		"SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		health.Error = err.Error()
		return health
	}
	health.SchemaVersion = fmt.Sprintf("%d", version)

	var tableExists int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='library_paths'",
	).Scan(&tableExists); err != nil {
		health.Error = err.Error()
		return health
	}
	health.TableExists = tableExists > 0

	var integrity string
	if err := s.db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&integrity); err != nil {
		health.Error = err.Error()
		return health
	}
	health.IntegrityCheck = integrity == "ok"

	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM library_paths").Scan(&health.TotalPaths); err != nil {
		health.Error = err.Error()
	}
	return health
}

func scanPath(scanner interface{ Scan(dest ...any) error }) (*Path, error) {
	var (
		path       Path
		platform   sql.NullString
		createdRaw string
	)
	if err := scanner.Scan(&path.ID, &path.Library, &platform, &path.Dir, &createdRaw); err != nil {
		return nil, err
	}
	path.Platform = platform.String
	if created, err := parseTimeString(createdRaw); err == nil {
		path.CreatedAt = created
	}
	return &path, nil
}

func scanGame(scanner interface{ Scan(dest ...any) error }) (*Game, error) {
	var (
		game        Game
		description sql.NullString
		releaseDate sql.NullString
		critic      sql.NullFloat64
		user        sql.NullFloat64
		genres      sql.NullString
		thumbnail   sql.NullString
		poster      sql.NullString
		screenshots sql.NullString
		createdRaw  string
		updatedRaw  string
	)
	if err := scanner.Scan(&game.ID, &game.PathID, &game.Name, &description, &releaseDate,
		&critic, &user, &genres, &thumbnail, &poster, &screenshots,
		&createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	game.Description = description.String
	game.ReleaseDate = releaseDate.String
	if critic.Valid {
		game.CriticScore = &critic.Float64
	}
	if user.Valid {
		game.UserScore = &user.Float64
	}
	game.ThumbnailURL = thumbnail.String
	game.PosterURL = poster.String
	if genres.Valid {
		game.Genres = unmarshalStrings(genres.String)
	}
	if screenshots.Valid {
		game.ScreenshotURLs = unmarshalStrings(screenshots.String)
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		game.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		game.UpdatedAt = updated
	}
	return &game, nil
}

func marshalStrings(values []string) (string, error) {
	if len(values) == 0 {
		return "", nil
	}
	encoded, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func unmarshalStrings(encoded string) []string {
	if encoded == "" {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(encoded), &values); err != nil {
		return nil
	}
	return values
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
