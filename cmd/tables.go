package cmd

import (
	// standard library
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	// external
	"github.com/charmbracelet/log"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	// internal
	"github.com/louiss0/access-sharepoint-migrator/access"
	"github.com/louiss0/access-sharepoint-migrator/config"
	"github.com/louiss0/access-sharepoint-migrator/custom_flags"
	"github.com/louiss0/access-sharepoint-migrator/migration"
	"github.com/louiss0/access-sharepoint-migrator/sharepoint"
)

// NewTablesCmd creates the 'tables' command that prints the schema extracted from the database.
func NewTablesCmd(loadConfigFile func(string) (config.Config, error), newSource func(config.AccessDB) (migration.Source, error)) *cobra.Command {
	formatFlag := custom_flags.NewUnionFlag(OutputFormats, FORMAT_FLAG)

	cmd := &cobra.Command{
		Use:   "tables",
		Short: "Show the tables, columns and keys that would be migrated",
		Long: `Connect to the configured database and print every table that would be migrated,
with the SharePoint type and internal name of each column.

Examples:
		a2sp tables
		a2sp tables -c export.yaml --format yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, loadConfigFile)
			if err != nil {
				return err
			}

			source, err := newSource(cfg.AccessDB)
			if err != nil {
				return err
			}

			if err := source.Connect(cmd.Context()); err != nil {
				return err
			}
			defer func() {
				if err := source.Close(); err != nil {
					log.Warn("failed to close the database", "err", err)
				}
			}()

			tables, err := source.ExtractTables(cmd.Context())
			if err != nil {
				return err
			}

			getDebugExecutorFromCommandContext(cmd).LogDebugMessageIfDebugIsTrue("Extracted tables", "count", len(tables))

			return writeTables(cmd.OutOrStdout(), tables, formatFlag.String())
		},
	}

	cmd.Flags().Var(formatFlag, FORMAT_FLAG, fmt.Sprintf("Output format, one of %v", OutputFormats))

	_ = cmd.RegisterFlagCompletionFunc(
		FORMAT_FLAG,
		cobra.FixedCompletions(OutputFormats, cobra.ShellCompDirectiveNoFileComp),
	)

	return cmd
}

func writeTables(w io.Writer, tables []access.Table, format string) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(tables)
	case "yaml":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(tables); err != nil {
			return err
		}
		return encoder.Close()
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, table := range tables {
		if i > 0 {
			_, _ = fmt.Fprintln(tw)
		}

		keys := lo.Ternary(len(table.PrimaryKeys) > 0, strings.Join(table.PrimaryKeys, ", "), "none")
		_, _ = fmt.Fprintf(tw, "%s (primary key: %s)\n", table.Name, keys)

		mapping := sharepoint.ColumnMapping(table.Columns)
		_, _ = fmt.Fprintln(tw, "  COLUMN\tTYPE\tNULLABLE\tSHAREPOINT")
		for _, column := range table.Columns {
			internal, ok := mapping[column.Name]
			if !ok {
				internal = "(skipped)"
			}
			_, _ = fmt.Fprintf(tw, "  %s\t%s\t%t\t%s\n", column.Name, column.Type, column.Nullable, internal)
		}
	}
	return tw.Flush()
}
