// Package env exposes the build mode the binary was compiled with.
package env

import (
	"github.com/louiss0/access-sharepoint-migrator/build_info"
)

type GoEnv struct {
	goEnv string
}

func NewGoEnv() GoEnv {
	return GoEnv{build_info.GO_MODE.String()}
}

// Mode returns the current Go environment mode string (e.g., "production", "development").
func (e GoEnv) Mode() string {
	return e.goEnv
}

// IsDebugMode reports a debug build, which logs at debug level without --debug.
func (e GoEnv) IsDebugMode() bool {
	return e.goEnv == "debug"
}

func (e GoEnv) IsProductionMode() bool {
	return e.goEnv == "production"
}

// ExecuteIfModeIsProduction runs cb only in production builds, where progress is logged at info level.
func (e GoEnv) ExecuteIfModeIsProduction(cb func()) {
	if e.IsProductionMode() {
		cb()
	}
}
