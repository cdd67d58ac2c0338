// Package mock provides testify mocks for the command dependencies of the migrator.
package mock

import (
	// standard library
	"context"
	"fmt"
	"sync"

	// external
	"github.com/samber/lo"
	"github.com/stretchr/testify/mock"

	// internal
	"github.com/louiss0/access-sharepoint-migrator/access"
	"github.com/louiss0/access-sharepoint-migrator/cmd"
	"github.com/louiss0/access-sharepoint-migrator/sharepoint"
)

// MockDebugExecutor implements the cmd.DebugExecutor interface for testing purposes
type MockDebugExecutor struct {
	mock.Mock
}

// ExecuteIfDebugIsTrue records the call to this method.
func (m *MockDebugExecutor) ExecuteIfDebugIsTrue(cb func()) {
	m.Called(cb)
}

// LogDebugMessageIfDebugIsTrue records the message and its key/value pairs as one argument list,
// so expectations read like the call: On("LogDebugMessageIfDebugIsTrue", "Loaded configuration", "path", mock.Anything, ...).
func (m *MockDebugExecutor) LogDebugMessageIfDebugIsTrue(msg string, keyvals ...interface{}) {
	args := []interface{}{msg}
	args = append(args, keyvals...)
	m.Called(args...)
}

// MockSource is an in-memory migration.Source. Tables and Rows describe the database;
// expectations are only needed to inject errors or assert calls.
type MockSource struct {
	mock.Mock

	Tables []access.Table
	Rows   map[string][]access.Row
}

// NewMockSource creates a source serving rows per table name.
func NewMockSource(tables []access.Table, rows map[string][]access.Row) *MockSource {
	return &MockSource{Tables: tables, Rows: rows}
}

// ExpectHappyPath registers permissive expectations for every method.
func (m *MockSource) ExpectHappyPath() *MockSource {
	m.On("Connect", mock.Anything).Return(nil)
	m.On("ExtractTables", mock.Anything).Return(nil)
	m.On("ReadRows", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	m.On("Close").Return(nil)
	return m
}

func (m *MockSource) Connect(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockSource) ExtractTables(ctx context.Context) ([]access.Table, error) {
	if err := m.Called(ctx).Error(0); err != nil {
		return nil, err
	}
	return m.Tables, nil
}

// ReadRows hands the stored rows of table to fn in batches, honouring Skip.
func (m *MockSource) ReadRows(ctx context.Context, table access.Table, opts access.ReadOptions, fn func([]access.Row) error) (int, error) {
	if err := m.Called(ctx, table.Name, opts).Error(0); err != nil {
		return 0, err
	}
	if opts.BatchSize < 1 {
		return 0, fmt.Errorf("batch size must be positive, got %d", opts.BatchSize)
	}

	rows := m.Rows[table.Name]
	rows = rows[min(opts.Skip, len(rows)):]

	read := 0
	for _, batch := range lo.Chunk(rows, opts.BatchSize) {
		if err := ctx.Err(); err != nil {
			return read, err
		}
		read += len(batch)
		if err := fn(batch); err != nil {
			return read, err
		}
	}
	return read, nil
}

func (m *MockSource) Close() error {
	return m.Called().Error(0)
}

// InsertCall is one recorded MockTarget.InsertItems call.
type InsertCall struct {
	List  string
	Items []sharepoint.Item
}

// MockTarget implements migration.Target. InsertItems responses are queued with
// QueueInsertResult; once the queue is empty every item is reported inserted.
type MockTarget struct {
	mock.Mock

	mu    sync.Mutex
	queue []insertResponse
	Calls []InsertCall
}

type insertResponse struct {
	result sharepoint.InsertResult
	err    error
}

func NewMockTarget() *MockTarget {
	return &MockTarget{}
}

// ExpectHappyPath authenticates and creates every list with the default column mapping.
func (m *MockTarget) ExpectHappyPath() *MockTarget {
	m.On("Authenticate", mock.Anything).Return(nil)
	m.On("CreateList", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	return m
}

// QueueInsertResult makes the next InsertItems call return result and err.
func (m *MockTarget) QueueInsertResult(result sharepoint.InsertResult, err error) *MockTarget {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, insertResponse{result, err})
	return m
}

func (m *MockTarget) Authenticate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// CreateList returns a list whose ID is derived from name.
func (m *MockTarget) CreateList(ctx context.Context, name string, columns []access.Column) (sharepoint.List, error) {
	if err := m.Called(ctx, name, columns).Error(0); err != nil {
		return sharepoint.List{}, err
	}
	return sharepoint.List{
		ID:      "list-" + name,
		Name:    name,
		Columns: sharepoint.ColumnMapping(columns),
		Created: true,
	}, nil
}

func (m *MockTarget) InsertItems(ctx context.Context, list sharepoint.List, items []sharepoint.Item) (sharepoint.InsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, InsertCall{List: list.Name, Items: append([]sharepoint.Item(nil), items...)})

	if len(m.queue) == 0 {
		return sharepoint.InsertResult{Inserted: len(items), Processed: len(items)}, nil
	}
	next := m.queue[0]
	m.queue = m.queue[1:]
	return next.result, next.err
}

// InsertedTitles returns the titles sent to list across every recorded call.
func (m *MockTarget) InsertedTitles(list string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var titles []string
	for _, call := range m.Calls {
		if call.List != list {
			continue
		}
		titles = append(titles, lo.Map(call.Items, func(item sharepoint.Item, _ int) string { return item.Title })...)
	}
	return titles
}

// MockConfirmUI answers the migration confirmation prompt.
type MockConfirmUI struct {
	Title  string
	answer bool
}

// NewMockConfirmUI returns a constructor matching cmd.Dependencies.NewConfirmUI that always answers answer.
func NewMockConfirmUI(answer bool) func(title string) cmd.ConfirmUI {
	return func(title string) cmd.ConfirmUI {
		return &MockConfirmUI{Title: title, answer: answer}
	}
}

func (ui *MockConfirmUI) Run() error {
	return nil
}

func (ui *MockConfirmUI) Value() bool {
	return ui.answer
}
