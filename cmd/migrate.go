package cmd

import (
	// standard library
	"fmt"
	"io"
	"text/tabwriter"

	// external
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	// internal
	"github.com/louiss0/access-sharepoint-migrator/build_info"
	"github.com/louiss0/access-sharepoint-migrator/config"
	"github.com/louiss0/access-sharepoint-migrator/custom_errors"
	"github.com/louiss0/access-sharepoint-migrator/custom_flags"
	"github.com/louiss0/access-sharepoint-migrator/internal/checkpoint"
	"github.com/louiss0/access-sharepoint-migrator/migration"
)

const (
	DRY_RUN_FLAG     = "dry-run"
	YES_FLAG         = "yes"
	REPORT_FLAG      = "report"
	TABLE_FLAG       = "table"
	BATCH_SIZE_FLAG  = "batch-size"
	CONCURRENCY_FLAG = "concurrency"
	CHECKPOINT_FLAG  = "checkpoint"
)

// NewMigrateCmd creates the 'migrate' command that copies tables into SharePoint lists.
func NewMigrateCmd(deps Dependencies) *cobra.Command {
	reportFlag := custom_flags.NewFilePathFlag(REPORT_FLAG, "")
	checkpointFlag := custom_flags.NewFilePathFlag(CHECKPOINT_FLAG, "")
	batchSizeFlag := custom_flags.NewRangeFlag(BATCH_SIZE_FLAG, 1, config.MaxBatchSize, 100)
	concurrencyFlag := custom_flags.NewRangeFlag(CONCURRENCY_FLAG, 1, config.MaxConcurrency, 1)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate database tables into SharePoint lists",
		Long: `Migrate every table of the configured database (or the ones named with --table)
into SharePoint lists. Lists that already exist are reused. Rows are inserted in batches;
throttled and failed requests are retried up to migration_settings.retry_count times.

With a checkpoint file, progress is saved after every batch and a rerun resumes where
the previous one stopped. Completed tables whose schema did not change are skipped.

Examples:
		a2sp migrate --dry-run
		a2sp migrate --yes --table Customers --table Orders
		a2sp migrate -c prod.json --checkpoint .a2sp-state.yaml --report report.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, deps.LoadConfig)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			dryRun, err := flags.GetBool(DRY_RUN_FLAG)
			if err != nil {
				return err
			}
			yes, err := flags.GetBool(YES_FLAG)
			if err != nil {
				return err
			}
			tables, err := flags.GetStringSlice(TABLE_FLAG)
			if err != nil {
				return err
			}

			settings := cfg.MigrationSettings
			if flags.Changed(BATCH_SIZE_FLAG) {
				settings.BatchSize = batchSizeFlag.Value()
			}
			if flags.Changed(CONCURRENCY_FLAG) {
				settings.Concurrency = concurrencyFlag.Value()
			}
			if flags.Changed(CHECKPOINT_FLAG) {
				settings.CheckpointFile = checkpointFlag.String()
			}

			debugExecutor := getDebugExecutorFromCommandContext(cmd)
			debugExecutor.LogDebugMessageIfDebugIsTrue("Migration settings", "settings", settings, "dry_run", dryRun, "tables", tables)

			if !dryRun {
				if err := cfg.SharePoint.Validate(); err != nil {
					return err
				}
			}

			if !dryRun && !yes {
				if build_info.InCI() {
					return custom_errors.CreateInvalidFlagErrorWithMessage(YES_FLAG, "is required in CI builds, where no prompt can be answered")
				}
				confirm := deps.NewConfirmUI(fmt.Sprintf("Migrate %s into %s?", cfg.AccessDB.FilePath, cfg.SharePoint.SiteURL))
				if err := confirm.Run(); err != nil {
					return err
				}
				if !confirm.Value() {
					log.Info("Migration cancelled")
					return nil
				}
			}

			source, err := deps.NewSource(cfg.AccessDB)
			if err != nil {
				return err
			}

			var target migration.Target
			if !dryRun {
				target, err = deps.NewTarget(cfg.SharePoint)
				if err != nil {
					return err
				}
			}

			store, err := checkpoint.Open(settings.CheckpointFile)
			if err != nil {
				return err
			}

			migrator := migration.New(settings, source, target,
				migration.WithDryRun(dryRun),
				migration.WithTables(tables),
				migration.WithCheckpoint(store),
			)

			report, migrateErr := migrator.MigrateDatabase(cmd.Context())

			writeSummary(cmd.OutOrStdout(), report)

			if path := reportFlag.String(); path != "" {
				if err := report.WriteFile(path); err != nil {
					return err
				}
				debugExecutor.LogDebugMessageIfDebugIsTrue("Wrote report", "path", path)
			}

			if migrateErr != nil {
				return migrateErr
			}

			getGoEnvFromCommandContext(cmd).ExecuteIfModeIsProduction(func() {
				log.Info("Migration finished", "run_id", report.RunID, "rows", report.RowsMigrated())
			})
			return nil
		},
	}

	cmd.Flags().Bool(DRY_RUN_FLAG, false, "Read and transform every row without writing to SharePoint")
	cmd.Flags().BoolP(YES_FLAG, "y", false, "Skip the confirmation prompt")
	cmd.Flags().StringSliceP(TABLE_FLAG, "t", nil, "Only migrate these tables (repeatable)")
	cmd.Flags().Var(reportFlag, REPORT_FLAG, "Write a YAML (or .json) report of the run to this file")
	cmd.Flags().Var(checkpointFlag, CHECKPOINT_FLAG, "Resume from and save progress to this file (overrides migration_settings.checkpoint_file)")
	cmd.Flags().Var(batchSizeFlag, BATCH_SIZE_FLAG, fmt.Sprintf("Rows per batch, 1-%d (overrides migration_settings.batch_size)", config.MaxBatchSize))
	cmd.Flags().Var(concurrencyFlag, CONCURRENCY_FLAG, fmt.Sprintf("Tables migrated at once, 1-%d (overrides migration_settings.concurrency)", config.MaxConcurrency))

	return cmd
}

func writeSummary(w io.Writer, report migration.Report) {
	if len(report.Tables) == 0 {
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TABLE\tLIST\tROWS\tFAILED\tSTATUS")
	for _, t := range report.Tables {
		status := "ok"
		switch {
		case t.Skipped:
			status = "skipped"
		case !t.Succeeded():
			status = "failed"
		case report.DryRun:
			status = "dry-run"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", t.Table, t.List, t.RowsMigrated, t.RowsFailed, status)
	}
	_ = tw.Flush()
}
