// Package migration copies the tables of the source database into SharePoint lists.
package migration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/louiss0/access-sharepoint-migrator/access"
	"github.com/louiss0/access-sharepoint-migrator/config"
	"github.com/louiss0/access-sharepoint-migrator/internal/checkpoint"
	"github.com/louiss0/access-sharepoint-migrator/sharepoint"
)

// ErrItemsFailed marks a table where some rows were rejected by SharePoint.
var ErrItemsFailed = errors.New("items were not inserted")

var errUnprocessed = errors.New("batch was not fully processed")

// Source is the database side of a migration.
type Source interface {
	Connect(ctx context.Context) error
	ExtractTables(ctx context.Context) ([]access.Table, error)
	ReadRows(ctx context.Context, table access.Table, opts access.ReadOptions, fn func([]access.Row) error) (int, error)
	Close() error
}

// Target is the SharePoint side of a migration.
type Target interface {
	Authenticate(ctx context.Context) error
	CreateList(ctx context.Context, name string, columns []access.Column) (sharepoint.List, error)
	InsertItems(ctx context.Context, list sharepoint.List, items []sharepoint.Item) (sharepoint.InsertResult, error)
}

type Option func(*Migrator)

// WithDryRun reads and transforms every row without touching SharePoint.
func WithDryRun(dryRun bool) Option {
	return func(m *Migrator) { m.dryRun = dryRun }
}

// WithTables limits the run to the named tables.
func WithTables(tables []string) Option {
	return func(m *Migrator) { m.only = tables }
}

// WithCheckpoint resumes from and records progress in store.
func WithCheckpoint(store *checkpoint.Store) Option {
	return func(m *Migrator) { m.store = store }
}

// WithBackOff replaces the exponential retry schedule.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(m *Migrator) { m.newBackOff = newBackOff }
}

// Migrator runs a migration from a Source to a Target.
type Migrator struct {
	settings   config.MigrationSettings
	source     Source
	target     Target
	dryRun     bool
	only       []string
	store      *checkpoint.Store
	newBackOff func() backoff.BackOff
}

// New builds a Migrator. Without WithCheckpoint progress is kept in memory only.
func New(settings config.MigrationSettings, source Source, target Target, opts ...Option) *Migrator {
	m := &Migrator{
		settings:   settings,
		source:     source,
		target:     target,
		newBackOff: defaultBackOff,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.store == nil {
		m.store, _ = checkpoint.Open("")
	}
	return m
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// ListName is the SharePoint list a table migrates into.
func (m *Migrator) ListName(table string) string {
	return m.settings.ListPrefix + table
}

// MigrateDatabase migrates every selected table. Tables run concurrently up to the configured
// concurrency; one failing table does not stop the others. The returned error joins every
// table failure and the Report is complete either way.
func (m *Migrator) MigrateDatabase(ctx context.Context) (report Report, err error) {
	report = Report{RunID: uuid.NewString(), DryRun: m.dryRun, StartedAt: time.Now().UTC()}
	defer func() { report.FinishedAt = time.Now().UTC() }()

	log.Info("starting migration", "run_id", report.RunID, "dry_run", m.dryRun)

	if err := m.source.Connect(ctx); err != nil {
		return report, err
	}
	defer func() {
		if err := m.source.Close(); err != nil {
			log.Warn("failed to close the database", "err", err)
		}
	}()

	tables, err := m.source.ExtractTables(ctx)
	if err != nil {
		return report, err
	}

	tables, err = m.selectTables(tables)
	if err != nil {
		return report, err
	}

	if !m.dryRun {
		if err := m.target.Authenticate(ctx); err != nil {
			return report, err
		}
	}

	report.Tables = make([]TableReport, len(tables))
	errs := make([]error, len(tables))

	var g errgroup.Group
	g.SetLimit(max(m.settings.Concurrency, 1))

	for i, table := range tables {
		g.Go(func() error {
			started := time.Now()
			tr, err := m.migrateTable(ctx, table)
			tr.Duration = time.Since(started)

			if err != nil {
				err = fmt.Errorf("table %s: %w", table.Name, err)
				tr.Error = err.Error()
				log.Error("table failed", "table", table.Name, "err", err)
			} else {
				log.Info("table migrated", "table", table.Name, "rows", tr.RowsMigrated, "skipped", tr.Skipped)
			}

			report.Tables[i] = tr
			errs[i] = err
			return nil
		})
	}
	_ = g.Wait()

	return report, errors.Join(errs...)
}

func (m *Migrator) selectTables(tables []access.Table) ([]access.Table, error) {
	if len(m.only) == 0 {
		return tables, nil
	}

	selected := make([]access.Table, 0, len(m.only))
	for _, name := range m.only {
		table, ok := lo.Find(tables, func(t access.Table) bool { return strings.EqualFold(t.Name, name) })
		if !ok {
			return nil, fmt.Errorf("%w: %s", access.ErrTableNotFound, name)
		}
		selected = append(selected, table)
	}
	return lo.UniqBy(selected, func(t access.Table) string { return t.Name }), nil
}

func (m *Migrator) migrateTable(ctx context.Context, table access.Table) (TableReport, error) {
	tr := TableReport{Table: table.Name, List: m.ListName(table.Name)}

	state := m.store.Resume(table.Name, checkpoint.SchemaHash(table))
	if state.Completed && !m.dryRun {
		tr.Skipped = true
		tr.ListID = state.ListID
		tr.RowsResumed = state.RowsMigrated
		return tr, nil
	}
	if m.dryRun {
		state = checkpoint.TableState{SchemaHash: state.SchemaHash}
	}
	tr.RowsResumed = state.RowsMigrated

	if dropped := lo.Filter(table.Columns, func(c access.Column, _ int) bool { return c.Type == access.Binary }); len(dropped) > 0 {
		log.Warn("binary columns are not migrated", "table", table.Name, "columns", lo.Map(dropped, func(c access.Column, _ int) string { return c.Name }))
	}

	var list sharepoint.List
	if m.dryRun {
		list = sharepoint.List{Name: tr.List, Columns: sharepoint.ColumnMapping(table.Columns)}
	} else {
		created, err := m.target.CreateList(ctx, tr.List, table.Columns)
		if err != nil {
			return tr, err
		}
		list = created
		state.ListID = created.ID
	}
	tr.ListID = list.ID
	tr.ListCreated = list.Created

	ordinal := state.RowsMigrated
	read, err := m.source.ReadRows(ctx, table, access.ReadOptions{BatchSize: m.settings.BatchSize, Skip: state.RowsMigrated}, func(rows []access.Row) error {
		transformed, err := TransformData(rows, table.Columns)
		if err != nil {
			var te *TransformError
			if errors.As(err, &te) {
				te.Row += ordinal
			}
			return err
		}

		items := lo.Map(transformed, func(row access.Row, i int) sharepoint.Item {
			return sharepoint.Item{Title: Title(table, row, ordinal+i+1), Fields: row}
		})
		ordinal += len(items)

		if m.dryRun {
			tr.RowsMigrated += len(items)
			return nil
		}

		inserted, failed, err := m.insert(ctx, list, items)
		tr.RowsMigrated += inserted
		tr.RowsFailed += failed
		if err != nil {
			return err
		}

		state.RowsMigrated += len(items)
		return m.store.Save(table.Name, state)
	})
	tr.RowsRead = read
	if err != nil {
		return tr, err
	}

	if tr.RowsFailed > 0 {
		return tr, fmt.Errorf("%w: %d of %d rows", ErrItemsFailed, tr.RowsFailed, read)
	}

	if !m.dryRun {
		state.Completed = true
		if err := m.store.Save(table.Name, state); err != nil {
			return tr, err
		}
	}
	return tr, nil
}

// retryAfterBackOff stretches the next delay to the server's Retry-After hint.
type retryAfterBackOff struct {
	backoff.BackOff
	hint time.Duration
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	next := b.BackOff.NextBackOff()
	if next != backoff.Stop && b.hint > next {
		next = b.hint
	}
	b.hint = 0
	return next
}

func retryable(err error) (bool, time.Duration) {
	var graphErr *sharepoint.GraphError
	if errors.As(err, &graphErr) {
		return graphErr.Retryable(), graphErr.RetryAfter
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded), 0
}

// insert sends items, retrying throttled and server-side failures up to retry_count times.
// Rejected items that cannot succeed on retry count as failed without failing the batch.
func (m *Migrator) insert(ctx context.Context, list sharepoint.List, items []sharepoint.Item) (inserted, failed int, err error) {
	pending := items
	var rejected []sharepoint.Item
	policy := &retryAfterBackOff{BackOff: backoff.WithMaxRetries(m.newBackOff(), uint64(max(m.settings.RetryCount, 0)))}

	operation := func() error {
		result, err := m.target.InsertItems(ctx, list, pending)
		inserted += result.Inserted

		var (
			retry   []sharepoint.Item
			lastErr = err
		)
		seen := make(map[int]bool, len(result.Failures))
		for _, failure := range result.Failures {
			if failure.Index < 0 || failure.Index >= len(pending) {
				failed++
				log.Warn("item failure does not match a sent item", "list", list.Name, "index", failure.Index, "err", failure.Err)
				continue
			}
			if seen[failure.Index] {
				continue
			}
			seen[failure.Index] = true

			ok, after := retryable(failure.Err)
			if !ok {
				failed++
				rejected = append(rejected, pending[failure.Index])
				log.Warn("item rejected", "list", list.Name, "title", pending[failure.Index].Title, "err", failure.Err)
				continue
			}
			retry = append(retry, pending[failure.Index])
			policy.hint = max(policy.hint, after)
			lastErr = failure.Err
		}
		retry = append(retry, pending[min(result.Processed, len(pending)):]...)
		pending = retry

		if len(pending) == 0 {
			return nil
		}

		if err != nil {
			ok, after := retryable(err)
			if !ok {
				return backoff.Permanent(err)
			}
			policy.hint = max(policy.hint, after)
		}

		if lastErr == nil {
			lastErr = errUnprocessed
		}
		log.Debug("retrying items", "list", list.Name, "pending", len(pending), "err", lastErr)
		return fmt.Errorf("%d items pending: %w", len(pending), lastErr)
	}

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		failed += len(pending)
		// The checkpoint only advances per whole batch, so a resume sends these again.
		if accepted := lo.Without(itemTitles(items), itemTitles(append(rejected, pending...))...); len(accepted) > 0 {
			log.Warn("batch abandoned after a partial insert; these items will be sent again on resume", "list", list.Name, "titles", accepted)
		}
		return inserted, failed, err
	}
	return inserted, failed, nil
}

func itemTitles(items []sharepoint.Item) []string {
	return lo.Map(items, func(item sharepoint.Item, _ int) string { return item.Title })
}
