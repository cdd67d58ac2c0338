// Package build_info holds the values injected at link time with -ldflags.
// Every exported value uses the BuildInfo type and is validated once in init.
package build_info

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/samber/lo"
)

// BuildInfo is a string set at build time.
type BuildInfo string

func (value BuildInfo) String() string {
	return string(value)
}

// Overridden with -ldflags "-X github.com/louiss0/access-sharepoint-migrator/build_info.rawCLI_VERSION=..."
var (
	rawCLI_VERSION = "dev"
	rawGO_MODE     = "development"
	rawBUILD_DATE  = "unknown"
	rawCI          = "false"
)

var (
	CLI_VERSION BuildInfo
	GO_MODE     BuildInfo
	BUILD_DATE  BuildInfo
	CI          BuildInfo
)

// AllowedModes are the values GO_MODE may take.
var AllowedModes = []string{"development", "production", "debug"}

var semverRegex = regexp.MustCompile(`^(0|[1-9]\d*)\.(0|[1-9]\d*)\.(0|[1-9]\d*)(?:-((?:0|[1-9]\d*|[0-9]*[a-zA-Z-][0-9a-zA-Z-]*)(?:\.(?:0|[1-9]\d*|[0-9]*[a-zA-Z-][0-9a-zA-Z-]*))*))?(?:\+([0-9a-zA-Z-]+(?:\.[0-9a-zA-Z-]+)*))?$`)

func init() {
	version := rawCLI_VERSION
	if len(version) > 0 && version[0] == 'v' {
		version = version[1:]
	}

	date := rawBUILD_DATE
	if t, err := time.Parse(time.RFC3339, rawBUILD_DATE); err == nil {
		date = t.Format(time.DateOnly)
	}

	CLI_VERSION = BuildInfo(version)
	GO_MODE = BuildInfo(rawGO_MODE)
	BUILD_DATE = BuildInfo(date)
	CI = BuildInfo(rawCI)

	if !lo.Contains(AllowedModes, GO_MODE.String()) {
		panic(fmt.Sprintf("build_info: invalid GO_MODE: '%s'. Must be one of: %v", GO_MODE, AllowedModes))
	}

	if CLI_VERSION != "dev" && !semverRegex.MatchString(CLI_VERSION.String()) {
		panic(fmt.Sprintf("build_info: invalid CLI_VERSION format: '%s'. Must be a valid semver string", CLI_VERSION))
	}

	if BUILD_DATE == "unknown" {
		if GO_MODE == "production" {
			panic("build_info: BUILD_DATE is 'unknown' in production mode. It must be set via ldflags.")
		}
	} else if _, err := time.Parse(time.DateOnly, BUILD_DATE.String()); err != nil {
		panic(fmt.Sprintf("build_info: invalid BUILD_DATE format: '%s'. Must be YYYY-MM-DD or 'unknown': %v", BUILD_DATE, err))
	}

	if _, err := strconv.ParseBool(CI.String()); err != nil {
		panic(fmt.Sprintf("build_info: invalid CI value: '%s'. Must be 'true' or 'false'", CI))
	}
}

// InCI returns true if the binary was built with the CI flag enabled.
func InCI() bool {
	b, err := strconv.ParseBool(CI.String())
	if err != nil {
		return false
	}
	return b
}

// UserAgent is sent with every outgoing HTTP request.
func UserAgent() string {
	return "a2sp/" + CLI_VERSION.String()
}
