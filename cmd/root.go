/*
Copyright © 2025 Shelton Louis

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/

// Package cmd provides the command-line interface of the Access to SharePoint migrator.
package cmd

import (
	// standard library
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	// external
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	// internal
	"github.com/louiss0/access-sharepoint-migrator/access"
	"github.com/louiss0/access-sharepoint-migrator/build_info"
	"github.com/louiss0/access-sharepoint-migrator/config"
	"github.com/louiss0/access-sharepoint-migrator/custom_errors"
	"github.com/louiss0/access-sharepoint-migrator/custom_flags"
	"github.com/louiss0/access-sharepoint-migrator/env"
	"github.com/louiss0/access-sharepoint-migrator/migration"
	"github.com/louiss0/access-sharepoint-migrator/sharepoint"
)

// Context keys
const (
	_GO_ENV         = "go_env"
	_DEBUG_EXECUTOR = "debug_executor"
)

const (
	CONFIG_FLAG    = "config"
	LOG_LEVEL_FLAG = "log-level"
	_DEBUG_FLAG    = "debug"
)

var LogLevels = []string{"info", "debug", "warn", "error"}

// ConfirmUI asks a yes/no question before anything is written to SharePoint.
type ConfirmUI interface {
	Run() error
	Value() bool
}

type confirmUI struct {
	value   bool
	confirm *huh.Confirm
}

func newConfirmUI(title string) ConfirmUI {
	return &confirmUI{
		confirm: huh.NewConfirm().
			Title(title).
			Affirmative("Migrate").
			Negative("Cancel"),
	}
}

func (ui confirmUI) Value() bool {
	return ui.value
}

func (ui *confirmUI) Run() error {
	return ui.confirm.Value(&ui.value).Run()
}

type DebugExecutor interface {
	ExecuteIfDebugIsTrue(cb func())
	LogDebugMessageIfDebugIsTrue(msg string, keyvals ...interface{})
}

type debugExecutor struct {
	debugFlag bool
}

func newDebugExecutor(debugFlag bool) DebugExecutor {
	return debugExecutor{debugFlag}
}

func (d debugExecutor) ExecuteIfDebugIsTrue(cb func()) {
	if d.debugFlag {
		cb()
	}
}

func (d debugExecutor) LogDebugMessageIfDebugIsTrue(msg string, keyvals ...interface{}) {
	if d.debugFlag {
		log.Debug(msg, keyvals...)
	}
}

// Dependencies holds the external dependencies for testing and real execution
type Dependencies struct {
	LoadConfig       func(path string) (config.Config, error)
	NewSource        func(cfg config.AccessDB) (migration.Source, error)
	NewTarget        func(cfg config.SharePoint) (migration.Target, error)
	NewConfirmUI     func(title string) ConfirmUI
	NewDebugExecutor func(bool) DebugExecutor
}

// NewRootCmd creates a new root command with injectable dependencies.
func NewRootCmd(deps Dependencies) *cobra.Command {
	configFlag := custom_flags.NewFilePathFlag(CONFIG_FLAG, config.DefaultFileName)
	logLevelFlag := custom_flags.NewUnionFlag(LogLevels, LOG_LEVEL_FLAG)

	cmd := &cobra.Command{
		Use:     "a2sp",
		Version: build_info.CLI_VERSION.String(),
		Short:   "Migrate Microsoft Access databases into SharePoint lists",
		Long: `a2sp copies the tables of a Microsoft Access database into SharePoint Online lists
through Microsoft Graph. Every table becomes a list, every column a list column and
every row a list item. Rows are sent in batches and throttled requests are retried.

Available commands:
		manifest   - Validate a requirements manifest
		tables     - Show the schema that would be migrated
		migrate    - Migrate tables into SharePoint lists
		completion - Generate shell completion scripts`,
		SilenceUsage: true,

		PersistentPreRunE: func(c *cobra.Command, args []string) error {
			err := godotenv.Load()

			if err != nil && !errors.Is(err, os.ErrNotExist) {
				log.Error(err.Error())
			}

			goEnv := env.NewGoEnv()
			debug, err := c.Flags().GetBool(_DEBUG_FLAG)
			if err != nil {
				return err
			}
			debug = debug || goEnv.IsDebugMode()

			if debug {
				log.SetLevel(log.DebugLevel)
			} else if c.Flags().Changed(LOG_LEVEL_FLAG) {
				level, err := log.ParseLevel(logLevelFlag.String())
				if err != nil {
					return err
				}
				log.SetLevel(level)
			}

			c_ctx := c.Context()
			if c_ctx == nil {
				c_ctx = context.Background()
			}

			lo.ForEach([][2]any{
				{_GO_ENV, goEnv},
				{_DEBUG_EXECUTOR, deps.NewDebugExecutor(debug)},
			}, func(item [2]any, index int) {
				c_ctx = context.WithValue(c_ctx, item[0], item[1])
			})

			c.SetContext(c_ctx)
			getDebugExecutorFromCommandContext(c).LogDebugMessageIfDebugIsTrue("Build", "version", build_info.CLI_VERSION.String(), "mode", goEnv.Mode())
			return nil
		},
	}

	cmd.AddCommand(NewManifestCmd())
	cmd.AddCommand(NewTablesCmd(deps.LoadConfig, deps.NewSource))
	cmd.AddCommand(NewMigrateCmd(deps))
	cmd.AddCommand(NewCompletionCmd())

	cmd.PersistentFlags().BoolP(_DEBUG_FLAG, "d", false, "Make commands run in debug mode")

	cmd.PersistentFlags().VarP(configFlag, CONFIG_FLAG, "c", "Path of the configuration file (.json, .jsonc, .yaml)")

	cmd.PersistentFlags().Var(logLevelFlag, LOG_LEVEL_FLAG, fmt.Sprintf("Log level, one of %v (overrides migration_settings.log_level)", LogLevels))

	_ = cmd.RegisterFlagCompletionFunc(
		LOG_LEVEL_FLAG,
		cobra.FixedCompletions(LogLevels, cobra.ShellCompDirectiveNoFileComp),
	)
	_ = cmd.MarkPersistentFlagFilename(CONFIG_FLAG, "json", "jsonc", "yaml", "yml")

	return cmd
}

// Global variable for the root command, initialized in init()
var rootCmd *cobra.Command

func init() {
	rootCmd = NewRootCmd(
		Dependencies{
			LoadConfig: config.Load,
			NewSource: func(cfg config.AccessDB) (migration.Source, error) {
				return access.NewParser(cfg, access.Options{})
			},
			NewTarget: func(cfg config.SharePoint) (migration.Target, error) {
				tokens, err := sharepoint.NewMSALTokenProvider(cfg)
				if err != nil {
					return nil, err
				}
				return sharepoint.NewConnector(cfg, tokens), nil
			},
			NewConfirmUI:     newConfirmUI,
			NewDebugExecutor: newDebugExecutor,
		},
	)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.ExecuteContext(context.Background())
	if err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the file named by --config and applies its log level unless
// --debug or --log-level already chose one.
func loadConfig(cmd *cobra.Command, load func(string) (config.Config, error)) (config.Config, error) {
	path, err := cmd.Flags().GetString(CONFIG_FLAG)
	if err != nil {
		return config.Config{}, err
	}

	cfg, err := load(path)
	if err != nil {
		return config.Config{}, err
	}

	getDebugExecutorFromCommandContext(cmd).LogDebugMessageIfDebugIsTrue("Loaded configuration", "path", path, "config", cfg.Redacted())

	debug, _ := cmd.Flags().GetBool(_DEBUG_FLAG)
	debug = debug || getGoEnvFromCommandContext(cmd).IsDebugMode()
	if !debug && !cmd.Flags().Changed(LOG_LEVEL_FLAG) {
		level, err := parseLogLevel(cfg.MigrationSettings.LogLevel)
		if err != nil {
			return config.Config{}, custom_errors.CreateInvalidConfigError("migration_settings.log_level", err.Error())
		}
		log.SetLevel(level)
	}

	return cfg, nil
}

func parseLogLevel(level string) (log.Level, error) {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		level = "warn"
	}
	return log.ParseLevel(level)
}

// Helper functions to retrieve dependencies and other values from the command context.

func getDebugExecutorFromCommandContext(cmd *cobra.Command) DebugExecutor {
	return cmd.Context().Value(_DEBUG_EXECUTOR).(DebugExecutor)
}

func getGoEnvFromCommandContext(cmd *cobra.Command) env.GoEnv {
	goEnv := cmd.Context().Value(_GO_ENV).(env.GoEnv)
	return goEnv
}
