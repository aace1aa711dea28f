// Package sqlkv implements a key-value backend on a relational table through GORM.
//
// Each row carries a revision counter that is the concurrency token. Creates rely on
// the primary key to reject a second insert, updates and deletes are conditioned on
// the revision read earlier.
//
// Removing a key leaves a tombstone row that keeps counting revisions, so a token
// observed before a delete never matches a later incarnation of the same key.
package sqlkv

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"kv-reconciler/core/database"
	"kv-reconciler/core/reconcile"
	"kv-reconciler/core/registry"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// Name is the provider identifier.
	Name = "sql"
	// DefaultPort is the MySQL port.
	DefaultPort = 3306
)

// Entry is one stored key. Deleted rows are tombstones and read as missing.
type Entry struct {
	Key      string `gorm:"column:kv_key;primaryKey;size:255"`
	Value    string `gorm:"column:value;type:text;not null"`
	Revision int64  `gorm:"column:revision;not null"`
	Deleted  bool   `gorm:"column:deleted;not null;default:false"`
}

// Columns lists the columns the backend reads and writes.
var Columns = []string{"kv_key", "value", "revision", "deleted"}

// Backend stores keys as rows in one table.
type Backend struct {
	db    *gorm.DB
	table string
}

// New creates a backend over an open connection. When migrate is true the
// table is created if needed, otherwise its columns are verified.
func New(db *gorm.DB, table string, migrate bool) (*Backend, error) {
	if table == "" {
		table = "kv_entries"
	}

	if migrate {
		if err := db.Table(table).AutoMigrate(&Entry{}); err != nil {
			return nil, fmt.Errorf("failed to migrate table %s: %w", table, err)
		}
	} else {
		missing, err := database.MissingColumns(db, table, Columns)
		if err != nil {
			return nil, err
		}
		if len(missing) > 0 {
			return nil, fmt.Errorf("table %s is missing columns %v", table, missing)
		}
	}

	return &Backend{db: db, table: table}, nil
}

// Provider returns the registry entry for the SQL table backend. A target host
// replaces the configured host and port; without one the database settings apply.
//
// Backends are shared per endpoint for the life of the provider: the first
// resolution opens the pool and prepares the table, later ones reuse it. The
// registry's Close releases the pools.
func Provider(cfg database.Config) registry.Provider {
	p := &pools{backends: make(map[string]*Backend)}
	return registry.Provider{
		Name:         Name,
		DefaultPort:  DefaultPort,
		Description:  "Relational table via GORM (row revision compare-and-swap)",
		OwnsEndpoint: true,
		Factory: func(target registry.Target) (reconcile.Backend, error) {
			c := cfg
			if c.Driver != database.DriverSQLite && target.Host != "" {
				c.Host = target.Host
				if target.Port > 0 {
					c.Port = target.Port
				}
			}
			return p.get(c)
		},
		Close: p.close,
	}
}

type pools struct {
	mu       sync.Mutex
	backends map[string]*Backend
}

func (p *pools) get(cfg database.Config) (*Backend, error) {
	id := fmt.Sprintf("%s|%s:%d|%s|%s", cfg.Driver, cfg.Host, cfg.Port, cfg.Name, cfg.Table)

	p.mu.Lock()
	defer p.mu.Unlock()
	if b, ok := p.backends[id]; ok {
		return b, nil
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, err
	}
	b, err := New(db, cfg.Table, cfg.AutoMigrate)
	if err != nil {
		_ = database.Close(db)
		return nil, err
	}
	p.backends[id] = b
	return b, nil
}

func (p *pools) close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for id, b := range p.backends {
		if err := database.Close(b.db); err != nil {
			errs = append(errs, err)
		}
		delete(p.backends, id)
	}
	return errors.Join(errs...)
}

func (b *Backend) query(ctx context.Context) *gorm.DB {
	return b.db.WithContext(ctx).Table(b.table)
}

// Read returns the live row for key. Tombstones read as missing.
func (b *Backend) Read(ctx context.Context, key string) (reconcile.ObservedState, error) {
	var e Entry
	err := b.query(ctx).Where("kv_key = ?", key).Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return reconcile.Missing(), nil
	}
	if err != nil {
		return reconcile.ObservedState{}, reconcile.Unavailable("sql select", err)
	}
	if e.Deleted {
		return reconcile.Missing(), nil
	}
	return reconcile.Found(e.Value, formatRevision(e.Revision)), nil
}

// Write creates the row when expected is CreateOnly, otherwise updates it if
// its revision still equals expected.
func (b *Backend) Write(ctx context.Context, key, value string, expected reconcile.Token) (bool, error) {
	if expected == reconcile.CreateOnly {
		return b.create(ctx, key, value)
	}

	rev, err := parseRevision(expected)
	if err != nil {
		return false, err
	}
	res := b.query(ctx).Where("kv_key = ? AND revision = ? AND deleted = ?", key, rev, false).
		Updates(map[string]any{"value": value, "revision": gorm.Expr("revision + 1")})
	if res.Error != nil {
		return false, reconcile.Unavailable("sql update", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (b *Backend) create(ctx context.Context, key, value string) (bool, error) {
	res := b.query(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&Entry{Key: key, Value: value, Revision: 1})
	if res.Error != nil {
		return false, reconcile.Unavailable("sql insert", res.Error)
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	// The key exists or was removed earlier; only a tombstone can be revived.
	res = b.query(ctx).Where("kv_key = ? AND deleted = ?", key, true).
		Updates(map[string]any{"value": value, "deleted": false, "revision": gorm.Expr("revision + 1")})
	if res.Error != nil {
		return false, reconcile.Unavailable("sql revive", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Remove tombstones the row if its revision still equals expected.
func (b *Backend) Remove(ctx context.Context, key string, expected reconcile.Token) (bool, error) {
	if expected == reconcile.CreateOnly {
		return false, nil
	}
	rev, err := parseRevision(expected)
	if err != nil {
		return false, err
	}
	res := b.query(ctx).Where("kv_key = ? AND revision = ? AND deleted = ?", key, rev, false).
		Updates(map[string]any{"value": "", "deleted": true, "revision": gorm.Expr("revision + 1")})
	if res.Error != nil {
		return false, reconcile.Unavailable("sql delete", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func formatRevision(rev int64) reconcile.Token {
	return reconcile.Token(strconv.FormatInt(rev, 10))
}

func parseRevision(tok reconcile.Token) (int64, error) {
	rev, err := strconv.ParseInt(string(tok), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid sql revision token %q: %w", tok, err)
	}
	return rev, nil
}
