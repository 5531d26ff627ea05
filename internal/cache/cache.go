package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/codesynapse/codesynapse/internal/graph"
)

const schema = `
CREATE TABLE IF NOT EXISTS parse_results (
	path         TEXT NOT NULL,
	signatures   INTEGER NOT NULL,
	size         INTEGER NOT NULL,
	mtime_ns     INTEGER NOT NULL,
	content_hash TEXT NOT NULL,
	result       BLOB NOT NULL,
	PRIMARY KEY (path, signatures)
);
`

// SQLiteCache persists per-file visit results between runs. Entries are
// keyed by path and signature-collection mode, and validated by file size and
// mtime first, falling back to a content hash so a touched-but-unchanged file
// still hits.
type SQLiteCache struct {
	db *sql.DB
}

// Open opens (creating if needed) a cache database at path.
func Open(path string) (*SQLiteCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	// Parallel walkers write concurrently; wait instead of failing on a
	// locked database.
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}
	return &SQLiteCache{db: db}, nil
}

// Get returns the cached result for absPath if an entry for the given
// signature mode is still fresh. Any stat, query, or decode failure is
// reported as a miss.
func (c *SQLiteCache) Get(absPath string, collectSignatures bool) (*graph.FileResult, bool) {
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, false
	}

	var (
		size, mtime int64
		contentHash string
		payload     []byte
	)
	row := c.db.QueryRow(
		"SELECT size, mtime_ns, content_hash, result FROM parse_results WHERE path = ? AND signatures = ?",
		absPath, collectSignatures)
	if err := row.Scan(&size, &mtime, &contentHash, &payload); err != nil {
		return nil, false
	}

	if size != info.Size() || mtime != info.ModTime().UnixNano() {
		source, err := os.ReadFile(absPath)
		if err != nil || hashBytes(source) != contentHash {
			return nil, false
		}
	}

	var result graph.FileResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, false
	}
	return &result, true
}

// Put stores the result for absPath under the given signature mode, keyed by
// the file's current size, mtime, and content hash.
func (c *SQLiteCache) Put(absPath string, collectSignatures bool, result *graph.FileResult) error {
	info, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", absPath, err)
	}
	source, err := os.ReadFile(absPath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", absPath, err)
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result for %s: %w", absPath, err)
	}

	_, err = c.db.Exec(`
		INSERT INTO parse_results (path, signatures, size, mtime_ns, content_hash, result)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path, signatures) DO UPDATE SET
			size = excluded.size,
			mtime_ns = excluded.mtime_ns,
			content_hash = excluded.content_hash,
			result = excluded.result`,
		absPath, collectSignatures, info.Size(), info.ModTime().UnixNano(), hashBytes(source), payload)
	if err != nil {
		return fmt.Errorf("failed to store result for %s: %w", absPath, err)
	}
	return nil
}

// Clear removes every cached entry.
func (c *SQLiteCache) Clear() error {
	if _, err := c.db.Exec("DELETE FROM parse_results"); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

// Len returns the number of cached entries.
func (c *SQLiteCache) Len() (int, error) {
	var n int
	if err := c.db.QueryRow("SELECT COUNT(*) FROM parse_results").Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Close closes the underlying database.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
