package dataset

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/roach88/clasql/internal/schema"
)

// SchemaCache loads each database schema once.
//
// For database db it reads <dir>/<db>/schema.sql, falling back to
// introspecting <dir>/<db>/<db>.sqlite. Thread-safety: Get may be called
// concurrently; concurrent first requests for one database load it once.
type SchemaCache struct {
	dir    string
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	once   sync.Once
	schema *schema.Schema
	found  bool
	err    error
}

// NewSchemaCache creates a cache over a database directory.
func NewSchemaCache(dir string, logger *slog.Logger) *SchemaCache {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &SchemaCache{dir: dir, logger: logger, entries: make(map[string]*cacheEntry)}
}

// Get returns the schema of db. found is false when the database has no
// schema file or its schema defines no tables; err reports unreadable or
// malformed schemas.
func (c *SchemaCache) Get(ctx context.Context, db string) (s *schema.Schema, found bool, err error) {
	c.mu.Lock()
	e, ok := c.entries[db]
	if !ok {
		e = &cacheEntry{}
		c.entries[db] = e
	}
	c.mu.Unlock()

	e.once.Do(func() {
		e.schema, e.found, e.err = c.load(ctx, db)
	})
	return e.schema, e.found, e.err
}

// Len returns the number of databases requested so far.
func (c *SchemaCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *SchemaCache) load(ctx context.Context, db string) (*schema.Schema, bool, error) {
	candidates := []string{
		filepath.Join(c.dir, db, "schema.sql"),
		filepath.Join(c.dir, db, db+".sqlite"),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, false, err
		}

		s, err := schema.LoadFile(ctx, path, schema.WithLogger(c.logger.With("db", db)))
		if err != nil {
			return nil, false, err
		}
		if s.Len() == 0 {
			c.logger.Warn("schema defines no tables", "db", db, "path", path)
			return nil, false, nil
		}
		c.logger.Debug("loaded schema", "db", db, "path", path, "tables", s.Len())
		return s, true, nil
	}

	c.logger.Warn("no schema found", "db", db, "dir", c.dir)
	return nil, false, nil
}
