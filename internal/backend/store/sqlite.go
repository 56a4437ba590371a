package store

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"media-organizer/internal/backend/models"
)

// SQLiteStore is the SQLite-backed implementation of Store.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (and initializes if needed) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Connection string parameters for safe single-process access:
	// - _journal_mode=WAL: Write-Ahead Logging for read concurrency
	// - _busy_timeout=10000: wait up to 10 seconds when locked
	// - _synchronous=NORMAL: balance between safety and performance
	// - _cache_size=-8000: 8MB page cache
	// - _txlock=immediate: acquire write lock at transaction start
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=10000&_synchronous=NORMAL&_cache_size=-8000&_txlock=immediate", dbPath)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer to avoid SQLITE_BUSY under concurrent API calls
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scans (
		id TEXT PRIMARY KEY,
		root_path TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at DATETIME,
		completed_at DATETIME,
		files_found INTEGER DEFAULT 0,
		groups_created INTEGER DEFAULT 0,
		error_message TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS media_files (
		id TEXT PRIMARY KEY,
		scan_id TEXT,
		file_path TEXT NOT NULL UNIQUE,
		file_hash TEXT,
		file_size INTEGER DEFAULT 0,
		media_type TEXT NOT NULL,
		group_id TEXT,
		is_group_primary BOOLEAN DEFAULT 0,
		track_number INTEGER DEFAULT 0,
		extracted_title TEXT,
		extracted_author TEXT,
		extracted_narrator TEXT,
		extracted_series TEXT,
		extracted_series_index REAL DEFAULT 0,
		extracted_year INTEGER DEFAULT 0,
		duration_seconds INTEGER DEFAULT 0,
		final_title TEXT,
		final_author TEXT,
		final_narrator TEXT,
		final_series TEXT,
		final_series_index REAL DEFAULT 0,
		final_year INTEGER DEFAULT 0,
		status TEXT NOT NULL,
		confidence REAL DEFAULT 0,
		provider_match_source TEXT,
		provider_match_id TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS audiobook_groups (
		id TEXT PRIMARY KEY,
		scan_id TEXT,
		folder_path TEXT NOT NULL UNIQUE,
		file_count INTEGER DEFAULT 0,
		total_duration_seconds INTEGER DEFAULT 0,
		title TEXT,
		author TEXT,
		narrator TEXT,
		series TEXT,
		series_index REAL DEFAULT 0,
		year INTEGER DEFAULT 0,
		final_title TEXT,
		final_author TEXT,
		final_narrator TEXT,
		final_series TEXT,
		final_series_index REAL DEFAULT 0,
		final_year INTEGER DEFAULT 0,
		status TEXT NOT NULL,
		confidence REAL DEFAULT 0,
		provider_match_source TEXT,
		provider_match_id TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS plans (
		id TEXT PRIMARY KEY,
		name TEXT,
		description TEXT,
		status TEXT NOT NULL,
		item_count INTEGER DEFAULT 0,
		completed_count INTEGER DEFAULT 0,
		error_message TEXT,
		created_at DATETIME NOT NULL,
		applied_at DATETIME,
		rolled_back_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS planned_operations (
		id TEXT PRIMARY KEY,
		plan_id TEXT NOT NULL,
		media_file_id TEXT,
		group_id TEXT,
		operation_type TEXT NOT NULL,
		source_path TEXT NOT NULL,
		target_path TEXT NOT NULL,
		file_hash TEXT,
		execution_order INTEGER NOT NULL,
		status TEXT NOT NULL,
		executed_at DATETIME,
		error_message TEXT
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS provider_cache (
		provider TEXT NOT NULL,
		query_key TEXT NOT NULL,
		response_json TEXT NOT NULL,
		expires_at DATETIME NOT NULL,
		PRIMARY KEY (provider, query_key)
	);

	CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		plan_id TEXT,
		operation_id TEXT,
		action TEXT NOT NULL,
		source_path TEXT,
		target_path TEXT,
		result TEXT NOT NULL,
		error_message TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_media_files_status ON media_files(status);
	CREATE INDEX IF NOT EXISTS idx_media_files_group ON media_files(group_id);
	CREATE INDEX IF NOT EXISTS idx_media_files_scan ON media_files(scan_id);
	CREATE INDEX IF NOT EXISTS idx_groups_status ON audiobook_groups(status);
	CREATE INDEX IF NOT EXISTS idx_operations_plan ON planned_operations(plan_id, execution_order);
	CREATE INDEX IF NOT EXISTS idx_audit_plan ON audit_log(plan_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Settings

func (s *SQLiteStore) GetSetting(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *SQLiteStore) SetSetting(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func (s *SQLiteStore) AllSettings() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		settings[k] = v
	}
	return settings, rows.Err()
}

// Provider cache

func (s *SQLiteStore) GetCachedResponse(provider, queryKey string) ([]byte, error) {
	var response string
	err := s.db.QueryRow(`
		SELECT response_json FROM provider_cache
		WHERE provider = ? AND query_key = ? AND expires_at > ?
	`, provider, queryKey, time.Now().UTC()).Scan(&response)
	if err == sql.ErrNoRows {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	return []byte(response), nil
}

func (s *SQLiteStore) PutCachedResponse(provider, queryKey string, response []byte, ttl time.Duration) error {
	_, err := s.db.Exec(`
		INSERT INTO provider_cache (provider, query_key, response_json, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(provider, query_key) DO UPDATE SET
			response_json = excluded.response_json,
			expires_at = excluded.expires_at
	`, provider, queryKey, string(response), time.Now().UTC().Add(ttl))
	return err
}

// Audit log

func (s *SQLiteStore) AppendAudit(entry *models.AuditEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.Exec(`
		INSERT INTO audit_log (plan_id, operation_id, action, source_path, target_path, result, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.PlanID, entry.OperationID, entry.Action, entry.SourcePath, entry.TargetPath,
		entry.Result, entry.ErrorMessage, entry.CreatedAt)
	if err != nil {
		return err
	}
	entry.ID, _ = res.LastInsertId()
	return nil
}

func (s *SQLiteStore) ListAudit(planID string) ([]*models.AuditEntry, error) {
	rows, err := s.db.Query(`
		SELECT id, plan_id, operation_id, action, source_path, target_path, result, error_message, created_at
		FROM audit_log WHERE plan_id = ? ORDER BY id
	`, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var src, tgt, errMsg sql.NullString
		if err := rows.Scan(&e.ID, &e.PlanID, &e.OperationID, &e.Action, &src, &tgt, &e.Result, &errMsg, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.SourcePath = src.String
		e.TargetPath = tgt.String
		e.ErrorMessage = errMsg.String
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// Aggregates

func (s *SQLiteStore) GetDashboardStats() (*models.DashboardStats, error) {
	stats := &models.DashboardStats{}
	var durationSec, sizeBytes int64

	err := s.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = 'reviewed' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = 'approved' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = 'applied' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(duration_seconds), 0),
		       COALESCE(SUM(file_size), 0)
		FROM media_files
	`).Scan(&stats.TotalFiles, &stats.PendingCount, &stats.ReviewedCount,
		&stats.ApprovedCount, &stats.AppliedCount, &durationSec, &sizeBytes)
	if err != nil {
		return nil, err
	}
	stats.TotalDurationHours = float64(durationSec) / 3600.0
	stats.TotalSizeGB = float64(sizeBytes) / (1024 * 1024 * 1024)

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM audiobook_groups`).Scan(&stats.TotalGroups); err != nil {
		return nil, err
	}

	scans, err := s.ListScans(5)
	if err != nil {
		return nil, err
	}
	stats.RecentScans = scans

	plans, err := s.ListPlans(5)
	if err != nil {
		return nil, err
	}
	stats.RecentPlans = plans

	return stats, nil
}

// Lifecycle

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) HealthCheck() error {
	return s.db.Ping()
}

func (s *SQLiteStore) Vacuum() error {
	_, err := s.db.Exec("VACUUM")
	return err
}
