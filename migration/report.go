package migration

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// TableReport is the outcome of one table.
type TableReport struct {
	Table        string        `json:"table" yaml:"table"`
	List         string        `json:"list" yaml:"list"`
	ListID       string        `json:"list_id,omitempty" yaml:"list_id,omitempty"`
	ListCreated  bool          `json:"list_created" yaml:"list_created"`
	RowsRead     int           `json:"rows_read" yaml:"rows_read"`
	RowsMigrated int           `json:"rows_migrated" yaml:"rows_migrated"`
	RowsFailed   int           `json:"rows_failed" yaml:"rows_failed"`
	RowsResumed  int           `json:"rows_resumed,omitempty" yaml:"rows_resumed,omitempty"`
	Skipped      bool          `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Duration     time.Duration `json:"duration" yaml:"duration"`
	Error        string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// Succeeded reports whether the table finished without errors.
func (t TableReport) Succeeded() bool { return t.Error == "" }

// Report is the outcome of one MigrateDatabase run.
type Report struct {
	RunID      string        `json:"run_id" yaml:"run_id"`
	DryRun     bool          `json:"dry_run" yaml:"dry_run"`
	StartedAt  time.Time     `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time     `json:"finished_at" yaml:"finished_at"`
	Tables     []TableReport `json:"tables" yaml:"tables"`
}

// Failed returns the tables that did not finish.
func (r Report) Failed() []TableReport {
	return lo.Reject(r.Tables, func(t TableReport, _ int) bool { return t.Succeeded() })
}

// RowsMigrated sums RowsMigrated over every table.
func (r Report) RowsMigrated() int {
	return lo.SumBy(r.Tables, func(t TableReport) int { return t.RowsMigrated })
}

const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Encode writes r as JSON or YAML.
func (r Report) Encode(w io.Writer, format string) error {
	switch format {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(r)
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(r); err != nil {
			return err
		}
		return encoder.Close()
	default:
		return fmt.Errorf("unsupported report format %q", format)
	}
}

// WriteFile writes r to path, choosing JSON for .json files and YAML otherwise.
func (r Report) WriteFile(path string) error {
	format := FormatYAML
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = FormatJSON
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	defer func() { _ = file.Close() }()

	if err := r.Encode(file, format); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return file.Close()
}
