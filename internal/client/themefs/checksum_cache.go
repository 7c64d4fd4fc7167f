package themefs

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/openmined/themesync/internal/db"
)

const cacheSchema = `
CREATE TABLE IF NOT EXISTS checksum_cache (
    key TEXT PRIMARY KEY,
    size INTEGER NOT NULL,
    mod_time INTEGER NOT NULL, -- unix nanoseconds
    checksum TEXT NOT NULL
);
`

// CacheEntry remembers the checksum of a file for a given size and mtime.
type CacheEntry struct {
	Key      string `db:"key"`
	Size     int64  `db:"size"`
	ModTime  int64  `db:"mod_time"`
	Checksum string `db:"checksum"`
}

// ChecksumCache persists local checksums between runs so a restart does not
// rehash every file of the theme.
type ChecksumCache struct {
	db *sqlx.DB
}

// OpenChecksumCache opens the cache at path. An empty path keeps it in memory.
func OpenChecksumCache(path string) (*ChecksumCache, error) {
	opts := []db.SqliteOption{db.WithMaxOpenConns(1)}
	if path != "" {
		opts = append(opts, db.WithPath(path))
	}

	conn, err := db.NewSqliteDB(opts...)
	if err != nil {
		return nil, fmt.Errorf("open checksum cache: %w", err)
	}

	if _, err := conn.Exec(cacheSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init checksum cache schema: %w", err)
	}

	return &ChecksumCache{db: conn}, nil
}

func (c *ChecksumCache) Close() error {
	return c.db.Close()
}

func (c *ChecksumCache) GetAll() (map[string]*CacheEntry, error) {
	var entries []*CacheEntry
	if err := c.db.Select(&entries, "SELECT key, size, mod_time, checksum FROM checksum_cache"); err != nil {
		return nil, fmt.Errorf("get all: %w", err)
	}

	out := make(map[string]*CacheEntry, len(entries))
	for _, e := range entries {
		out[e.Key] = e
	}
	return out, nil
}

func (c *ChecksumCache) Put(entry *CacheEntry) error {
	_, err := c.db.NamedExec(`
		INSERT INTO checksum_cache (key, size, mod_time, checksum)
		VALUES (:key, :size, :mod_time, :checksum)
		ON CONFLICT(key) DO UPDATE SET size = excluded.size, mod_time = excluded.mod_time, checksum = excluded.checksum`,
		entry)
	if err != nil {
		return fmt.Errorf("put %s: %w", entry.Key, err)
	}
	return nil
}

func (c *ChecksumCache) Delete(key string) error {
	if _, err := c.db.Exec("DELETE FROM checksum_cache WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Prune drops every entry whose key is not in keep.
func (c *ChecksumCache) Prune(keep map[string]struct{}) error {
	var keys []string
	if err := c.db.Select(&keys, "SELECT key FROM checksum_cache"); err != nil {
		return fmt.Errorf("prune: %w", err)
	}

	tx, err := c.db.Beginx()
	if err != nil {
		return fmt.Errorf("prune: %w", err)
	}
	for _, key := range keys {
		if _, ok := keep[key]; ok {
			continue
		}
		if _, err := tx.Exec("DELETE FROM checksum_cache WHERE key = ?", key); err != nil {
			tx.Rollback()
			return fmt.Errorf("prune %s: %w", key, err)
		}
	}
	return tx.Commit()
}
