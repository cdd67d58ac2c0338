package access

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/louiss0/access-sharepoint-migrator/config"
)

// dialect hides the catalog differences between Access over ODBC and SQLite.
type dialect interface {
	driverName() string
	dsn(cfg config.AccessDB) string
	quote(identifier string) string
	listTables(ctx context.Context, db *sql.DB) ([]string, error)
	describe(ctx context.Context, db *sql.DB, table string) ([]Column, []string, error)
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case config.DriverODBC, "":
		return accessDialect{}, nil
	case config.DriverSQLite:
		return sqliteDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
}

type accessDialect struct{}

func (accessDialect) driverName() string { return "odbc" }

func (accessDialect) dsn(cfg config.AccessDB) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	return fmt.Sprintf("Driver={Microsoft Access Driver (*.mdb, *.accdb)};Dbq=%s;", cfg.FilePath)
}

func (accessDialect) quote(identifier string) string {
	return "[" + strings.ReplaceAll(identifier, "]", "]]") + "]"
}

// listTables reads user tables from MSysObjects, which needs read permission on the system table.
func (accessDialect) listTables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT Name FROM MSysObjects WHERE Type = 1 AND Flags = 0 ORDER BY Name")
	if err != nil {
		return nil, fmt.Errorf("%w (grant read access to MSysObjects or list access_db.tables in the config)", err)
	}
	defer func() { _ = rows.Close() }()

	return scanStrings(rows)
}

// describe infers columns from an empty result set. AutoNumber (COUNTER) columns become the primary key.
func (d accessDialect) describe(ctx context.Context, db *sql.DB, table string) ([]Column, []string, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s WHERE 1 = 0", d.quote(table)))
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = rows.Close() }()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, nil, err
	}

	var keys []string
	columns := lo.Map(types, func(ct *sql.ColumnType, _ int) Column {
		declared := ct.DatabaseTypeName()
		if declared == "" && ct.ScanType() != nil {
			declared = ct.ScanType().String()
		}

		nullable, ok := ct.Nullable()
		if !ok {
			nullable = true
		}

		if strings.EqualFold(declared, "COUNTER") {
			keys = append(keys, ct.Name())
			nullable = false
		}

		return Column{Name: ct.Name(), Type: NormalizeType(declared), Nullable: nullable}
	})

	return columns, keys, rows.Err()
}

type sqliteDialect struct{}

func (sqliteDialect) driverName() string { return "sqlite" }

func (sqliteDialect) dsn(cfg config.AccessDB) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	return cfg.FilePath
}

func (sqliteDialect) quote(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

func (sqliteDialect) listTables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanStrings(rows)
}

func (d sqliteDialect) describe(ctx context.Context, db *sql.DB, table string) ([]Column, []string, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", d.quote(table)))
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = rows.Close() }()

	type keyColumn struct {
		position int
		name     string
	}

	var (
		columns []Column
		keys    []keyColumn
	)

	for rows.Next() {
		var (
			cid          int
			name         string
			declared     string
			notNull      int
			defaultValue sql.NullString
			pk           int
		)
		if err := rows.Scan(&cid, &name, &declared, &notNull, &defaultValue, &pk); err != nil {
			return nil, nil, err
		}

		columns = append(columns, Column{Name: name, Type: NormalizeType(declared), Nullable: notNull == 0 && pk == 0})
		if pk > 0 {
			keys = append(keys, keyColumn{position: pk, name: name})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	if len(columns) == 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i].position < keys[j].position })

	return columns, lo.Map(keys, func(k keyColumn, _ int) string { return k.name }), nil
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
