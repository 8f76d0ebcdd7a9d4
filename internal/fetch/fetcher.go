package fetch

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	"github.com/gezibash/auditfwd/pkg/audit"
	"github.com/gezibash/auditfwd/pkg/cursor"
	"github.com/gezibash/auditfwd/pkg/errors"
)

// DefaultBatchSize bounds a single fetch when no batch size is configured.
const DefaultBatchSize = 500

// Config is the per-host query configuration.
type Config struct {
	Host            string
	Dialect         Dialect
	Library         string
	Journal         string
	ReceiverLibrary string
	EntryTypes      []string
	BatchSize       int
}

// Fetcher runs batch queries against one host.
type Fetcher struct {
	db  *sql.DB
	cfg Config
}

// New returns a Fetcher over an open database handle. The Fetcher owns db.
func New(db *sql.DB, cfg Config) *Fetcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Dialect == "" {
		cfg.Dialect = DialectDB2i
	}
	return &Fetcher{db: db, cfg: cfg}
}

// Source holds the opaque connection parameters for a host.
type Source struct {
	Dialect  Dialect
	Host     string
	User     string
	Password string
	Driver   string
}

// DriverName returns the database/sql driver registered for the dialect.
func (s Source) DriverName() string {
	if s.Dialect == DialectSQLite {
		return "sqlite"
	}
	return "odbc"
}

// DSN renders the connection string. For sqlite the host is the database path.
func (s Source) DSN() string {
	if s.Dialect == DialectSQLite {
		return s.Host
	}
	return fmt.Sprintf("DRIVER={%s};SYSTEM=%s;UID=%s;PWD=%s;DBQ=,QGPL;", s.Driver, s.Host, s.User, s.Password)
}

// Open opens a connection pool for src. No round trip happens until the first
// fetch.
func Open(src Source, cfg Config) (*Fetcher, error) {
	if name := src.DriverName(); !slices.Contains(sql.Drivers(), name) {
		return nil, errors.New(errors.ErrConfiguration, cfg.Host, "open",
			fmt.Errorf("database driver %q is not registered: binary built without -tags %s", name, name))
	}
	db, err := sql.Open(src.DriverName(), src.DSN())
	if err != nil {
		return nil, errors.New(errors.ErrConnection, cfg.Host, "open", err)
	}
	if src.Dialect == DialectSQLite {
		db.SetMaxOpenConns(1)
	}
	return New(db, cfg), nil
}

// Config returns the fetcher's configuration.
func (f *Fetcher) Config() Config {
	return f.cfg
}

// Fetch returns up to BatchSize entries strictly after the given cursor,
// oldest first. On error no entries are returned.
func (f *Fetcher) Fetch(ctx context.Context, after cursor.Cursor) ([]audit.Entry, error) {
	query, args, err := Build(Request{
		Dialect:         f.cfg.Dialect,
		Library:         f.cfg.Library,
		Journal:         f.cfg.Journal,
		ReceiverLibrary: f.cfg.ReceiverLibrary,
		EntryTypes:      f.cfg.EntryTypes,
		After:           after,
		Limit:           f.cfg.BatchSize,
	})
	if err != nil {
		return nil, errors.New(errors.ErrQuery, f.cfg.Host, "build", err)
	}

	if err := f.db.PingContext(ctx); err != nil {
		return nil, errors.New(errors.ErrConnection, f.cfg.Host, "connect", err)
	}

	rows, err := f.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.New(errors.ErrQuery, f.cfg.Host, "query", err)
	}
	defer rows.Close()

	var entries []audit.Entry
	order := journalOrder{last: after}
	for rows.Next() {
		var r row
		if err := rows.Scan(r.dest()...); err != nil {
			return nil, errors.New(errors.ErrQuery, f.cfg.Host, "scan", err)
		}
		e, err := r.entry()
		if err != nil {
			return nil, errors.New(errors.ErrQuery, f.cfg.Host, "scan", err)
		}
		if err := order.next(e.Position); err != nil {
			return nil, errors.New(errors.ErrQuery, f.cfg.Host, "scan", err)
		}
		if len(f.cfg.EntryTypes) > 0 && !containsFold(f.cfg.EntryTypes, e.EntryType) {
			return nil, errors.New(errors.ErrQuery, f.cfg.Host, "scan",
				fmt.Errorf("row %s has unrequested entry type %q", e.Position, e.EntryType))
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New(errors.ErrQuery, f.cfg.Host, "query", err)
	}
	if len(entries) > f.cfg.BatchSize {
		return nil, errors.New(errors.ErrQuery, f.cfg.Host, "query",
			fmt.Errorf("backend returned %d rows, limit %d", len(entries), f.cfg.BatchSize))
	}
	return entries, nil
}

// Close releases the connection pool.
func (f *Fetcher) Close() error {
	return f.db.Close()
}

func containsFold(set []string, s string) bool {
	for _, v := range set {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// journalOrder checks that rows arrive in journal order. Sequence numbers must
// increase within a receiver. Receiver names collate in EBCDIC on IBM i, so
// the order between receivers is taken from the query's ORDER BY, and the only
// cross-receiver check is that a receiver already left is not returned to.
type journalOrder struct {
	last cursor.Cursor
	left []string
}

func (o *journalOrder) next(c cursor.Cursor) error {
	if !o.last.Precedes(c) || slices.Contains(o.left, c.ReceiverID) {
		return fmt.Errorf("row %s does not follow %s", c, o.last)
	}
	if !o.last.IsZero() && o.last.ReceiverID != c.ReceiverID {
		o.left = append(o.left, o.last.ReceiverID)
	}
	o.last = c
	return nil
}
