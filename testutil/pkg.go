// Package testutil builds root commands wired to mocks, plus small helpers for command tests.
package testutil

import (
	// standard library
	"bytes"
	"context"

	// external
	"github.com/spf13/cobra"
	tmock "github.com/stretchr/testify/mock"

	// internal
	"github.com/louiss0/access-sharepoint-migrator/cmd"
	"github.com/louiss0/access-sharepoint-migrator/config"
	"github.com/louiss0/access-sharepoint-migrator/migration"
	"github.com/louiss0/access-sharepoint-migrator/mock"
)

// ValidConfig returns a configuration that passes config.Validate.
func ValidConfig() config.Config {
	return config.Config{
		AccessDB: config.AccessDB{
			FilePath: "inventory.accdb",
			Driver:   config.DriverODBC,
		},
		SharePoint: config.SharePoint{
			SiteURL:      "https://contoso.sharepoint.com/sites/inventory",
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			TenantID:     "tenant-id",
		},
		MigrationSettings: config.MigrationSettings{
			BatchSize:   100,
			RetryCount:  3,
			LogLevel:    "INFO",
			Concurrency: 1,
		},
	}
}

// RootCommandFactory is a helper struct for creating cobra.Command instances
// with mocked dependencies for testing purposes.
type RootCommandFactory struct {
	Config        config.Config
	ConfigErr     error
	Source        *mock.MockSource
	Target        *mock.MockTarget
	ConfirmAnswer bool

	debugExecutor *mock.MockDebugExecutor
	loadedPaths   []string
	confirmTitles []string
	targetCreated bool
}

// NewRootCommandFactory creates a factory serving source and target and answering yes to the prompt.
func NewRootCommandFactory(source *mock.MockSource, target *mock.MockTarget) *RootCommandFactory {
	return &RootCommandFactory{
		Config:        ValidConfig(),
		Source:        source,
		Target:        target,
		ConfirmAnswer: true,
		debugExecutor: &mock.MockDebugExecutor{},
	}
}

func (f *RootCommandFactory) DebugExecutor() *mock.MockDebugExecutor {
	return f.debugExecutor
}

// IgnoreDebugMessages accepts any debug log call.
func (f *RootCommandFactory) IgnoreDebugMessages() *RootCommandFactory {
	f.debugExecutor.On("LogDebugMessageIfDebugIsTrue", tmock.Anything).Maybe().Return()
	f.debugExecutor.On("LogDebugMessageIfDebugIsTrue", tmock.Anything, tmock.Anything, tmock.Anything).Maybe().Return()
	f.debugExecutor.On("LogDebugMessageIfDebugIsTrue", tmock.Anything, tmock.Anything, tmock.Anything, tmock.Anything, tmock.Anything).Maybe().Return()
	f.debugExecutor.On("LogDebugMessageIfDebugIsTrue", tmock.Anything, tmock.Anything, tmock.Anything, tmock.Anything, tmock.Anything, tmock.Anything, tmock.Anything).Maybe().Return()
	return f
}

// LoadedPaths returns every path the command asked to load configuration from.
func (f *RootCommandFactory) LoadedPaths() []string {
	return f.loadedPaths
}

// ConfirmTitles returns the prompts shown to the user.
func (f *RootCommandFactory) ConfirmTitles() []string {
	return f.confirmTitles
}

// TargetCreated reports whether the command built a SharePoint target.
func (f *RootCommandFactory) TargetCreated() bool {
	return f.targetCreated
}

// Dependencies returns the mocked dependencies the root command is built with.
func (f *RootCommandFactory) Dependencies() cmd.Dependencies {
	return cmd.Dependencies{
		LoadConfig: func(path string) (config.Config, error) {
			f.loadedPaths = append(f.loadedPaths, path)
			return f.Config, f.ConfigErr
		},
		NewSource: func(config.AccessDB) (migration.Source, error) {
			return f.Source, nil
		},
		NewTarget: func(config.SharePoint) (migration.Target, error) {
			f.targetCreated = true
			return f.Target, nil
		},
		NewConfirmUI: func(title string) cmd.ConfirmUI {
			f.confirmTitles = append(f.confirmTitles, title)
			return mock.NewMockConfirmUI(f.ConfirmAnswer)(title)
		},
		NewDebugExecutor: func(bool) cmd.DebugExecutor {
			return f.debugExecutor
		},
	}
}

// CreateRootCmd builds the root command from the factory's dependencies.
func (f *RootCommandFactory) CreateRootCmd() *cobra.Command {
	return cmd.NewRootCmd(f.Dependencies())
}

// ExecuteCommand runs the root command with args and returns what it printed to stdout and stderr.
func ExecuteCommand(root *cobra.Command, args ...string) (stdout string, stderr string, err error) {
	var outBuf, errBuf bytes.Buffer
	root.SetOut(&outBuf)
	root.SetErr(&errBuf)
	root.SetArgs(args)

	err = root.ExecuteContext(context.Background())
	return outBuf.String(), errBuf.String(), err
}
