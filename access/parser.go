// Package access reads table schemas and rows from the source database.
package access

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"

	"github.com/louiss0/access-sharepoint-migrator/config"
)

// ErrDatabaseNotFound indicates that access_db.file_path does not exist.
var ErrDatabaseNotFound = errors.New("database file not found")

// ErrNotConnected indicates a read before Connect succeeded.
var ErrNotConnected = errors.New("not connected to the database")

// ErrTableNotFound indicates a configured table that the database does not have.
var ErrTableNotFound = errors.New("table not found")

const (
	defaultPingTimeout  = 5 * time.Second
	defaultMaxOpenConns = 4
)

// Options tunes the connection pool.
type Options struct {
	MaxOpenConns int
	PingTimeout  time.Duration
}

// Parser extracts schema and rows from an Access (or SQLite) database.
type Parser struct {
	cfg     config.AccessDB
	opts    Options
	dialect dialect
	db      *sql.DB
}

// ReadOptions controls ReadRows.
type ReadOptions struct {
	BatchSize int
	// Skip drops this many leading rows, used to resume a partially migrated table.
	Skip int
}

// NewParser builds a Parser for the configured database. Nothing is opened until Connect.
func NewParser(cfg config.AccessDB, opts Options) (*Parser, error) {
	d, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = defaultMaxOpenConns
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = defaultPingTimeout
	}
	return &Parser{cfg: cfg, opts: opts, dialect: d}, nil
}

// Connect opens the pool and pings the database.
func (p *Parser) Connect(ctx context.Context) error {
	if p.db != nil {
		return nil
	}

	if p.cfg.DSN == "" {
		if _, err := os.Stat(p.cfg.FilePath); err != nil {
			return fmt.Errorf("%w: %s", ErrDatabaseNotFound, p.cfg.FilePath)
		}
	}

	pool, err := sql.Open(p.dialect.driverName(), p.dialect.dsn(p.cfg))
	if err != nil {
		return fmt.Errorf("failed to open %s database: %w", p.dialect.driverName(), err)
	}
	pool.SetMaxOpenConns(p.opts.MaxOpenConns)

	pingCtx, cancel := context.WithTimeout(ctx, p.opts.PingTimeout)
	defer cancel()

	if err := pool.PingContext(pingCtx); err != nil {
		_ = pool.Close()
		return fmt.Errorf("failed to connect to %s: %w", p.cfg.FilePath, err)
	}

	log.Debug("database connected", "driver", p.dialect.driverName(), "path", p.cfg.FilePath)

	p.db = pool
	return nil
}

// Close releases the pool. It is safe to call on a Parser that never connected.
func (p *Parser) Close() error {
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}

// ExtractTables returns the schema of every table to migrate, sorted by name.
// The configured table list wins over the catalog; configured primary keys win over detected ones.
func (p *Parser) ExtractTables(ctx context.Context) ([]Table, error) {
	if p.db == nil {
		return nil, ErrNotConnected
	}

	names := p.cfg.Tables
	if len(names) == 0 {
		listed, err := p.dialect.listTables(ctx, p.db)
		if err != nil {
			return nil, fmt.Errorf("failed to list tables: %w", err)
		}
		names = listed
	}

	names = lo.Uniq(names)
	sort.Strings(names)

	tables := make([]Table, 0, len(names))
	for _, name := range names {
		columns, keys, err := p.dialect.describe(ctx, p.db, name)
		if err != nil {
			return nil, fmt.Errorf("failed to describe table %s: %w", name, err)
		}

		if configured, ok := p.cfg.PrimaryKeysFor(name); ok {
			keys = configured
		}

		table := Table{Name: name, Columns: columns, PrimaryKeys: keys}
		if missing, found := lo.Find(keys, func(k string) bool { _, ok := table.Column(k); return !ok }); found {
			return nil, fmt.Errorf("%w: primary key column %s in table %s", ErrTableNotFound, missing, name)
		}

		log.Debug("extracted table", "table", name, "columns", len(columns), "primary_keys", keys)
		tables = append(tables, table)
	}

	return tables, nil
}

// ReadRows streams table in batches of opts.BatchSize and calls fn for each batch.
// Rows are ordered by primary key, or by every non-binary column when the table has none,
// so Skip is stable across runs.
// It returns the number of rows passed to fn.
func (p *Parser) ReadRows(ctx context.Context, table Table, opts ReadOptions, fn func([]Row) error) (int, error) {
	if p.db == nil {
		return 0, ErrNotConnected
	}
	if opts.BatchSize <= 0 {
		return 0, fmt.Errorf("batch size must be positive, got %d", opts.BatchSize)
	}

	query := fmt.Sprintf("SELECT %s FROM %s",
		strings.Join(lo.Map(table.ColumnNames(), func(n string, _ int) string { return p.dialect.quote(n) }), ", "),
		p.dialect.quote(table.Name),
	)
	if order := orderColumns(table); len(order) > 0 {
		query += " ORDER BY " + strings.Join(lo.Map(order, func(n string, _ int) string { return p.dialect.quote(n) }), ", ")
	}

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to read table %s: %w", table.Name, err)
	}
	defer func() { _ = rows.Close() }()

	var (
		batch   = make([]Row, 0, opts.BatchSize)
		read    int
		skipped int
		values  = make([]any, len(table.Columns))
		targets = make([]any, len(table.Columns))
	)
	for i := range values {
		targets[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(targets...); err != nil {
			return read, fmt.Errorf("failed to scan row of %s: %w", table.Name, err)
		}

		if skipped < opts.Skip {
			skipped++
			continue
		}

		row := make(Row, len(table.Columns))
		for i, column := range table.Columns {
			row[column.Name] = normalizeValue(values[i], column.Type)
		}
		batch = append(batch, row)

		if len(batch) == opts.BatchSize {
			if err := fn(batch); err != nil {
				return read, err
			}
			read += len(batch)
			batch = make([]Row, 0, opts.BatchSize)
		}
	}
	if err := rows.Err(); err != nil {
		return read, fmt.Errorf("failed to read table %s: %w", table.Name, err)
	}

	if len(batch) > 0 {
		if err := fn(batch); err != nil {
			return read, err
		}
		read += len(batch)
	}

	return read, nil
}

func orderColumns(table Table) []string {
	if len(table.PrimaryKeys) > 0 {
		return table.PrimaryKeys
	}
	return lo.FilterMap(table.Columns, func(c Column, _ int) (string, bool) { return c.Name, c.Type != Binary })
}

// normalizeValue copies driver-owned byte slices; text columns become strings.
func normalizeValue(value any, columnType ColumnType) any {
	raw, ok := value.([]byte)
	if !ok {
		return value
	}
	if columnType == Binary {
		return append([]byte(nil), raw...)
	}
	return string(raw)
}
