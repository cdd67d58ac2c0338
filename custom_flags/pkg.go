// Package custom_flags provides validated pflag.Value implementations for the cobra commands.
package custom_flags

import (
	"fmt"
	"regexp"
	"runtime"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/pflag"

	"github.com/louiss0/access-sharepoint-migrator/custom_errors"
)

var (
	whitespaceOnlyRe = regexp.MustCompile(`^\s*$`)
	// Absolute (C:\ or C:/), UNC (\\server\share\) or relative Windows paths ending in a file name.
	windowsFilePathRe = regexp.MustCompile(`^(?:(?:[a-zA-Z]:[/\\]|\\\\[^/\\:*?"<>|]+\\[^/\\:*?"<>|]+[/\\]|\.{1,2}[/\\])(?:[^/\\:*?"<>|]+[/\\])*|(?:[^/\\:*?"<>|]+[/\\])+)?[^/\\:*?"<>|]+$`)
	// Relative or absolute POSIX paths ending in a file name.
	posixFilePathRe = regexp.MustCompile(`^(?:/?(?:[a-zA-Z0-9 ._-]+|\.{1,2})(?:/(?:[a-zA-Z0-9 ._-]+|\.{1,2}))*)?/?([a-zA-Z0-9 ._-]+)$`)
)

func isWindows() bool {
	return runtime.GOOS == "windows"
}

func platformName() string {
	return lo.Ternary(isWindows(), "Windows", "POSIX/UNIX")
}

func validFilePath(value string) bool {
	if isWindows() {
		return windowsFilePathRe.MatchString(value)
	}
	return posixFilePathRe.MatchString(value) && !strings.HasSuffix(value, "/") && !strings.Contains(value, "//")
}

// FilePathFlag is a flag holding a path that must end in a file name.
type FilePathFlag interface {
	pflag.Value
	FlagName() string
}

// UnionFlag is a flag restricted to a fixed set of values.
type UnionFlag interface {
	pflag.Value
	FlagName() string
	AllowedValues() []string
}

// RangeFlag is an integer flag bounded by [Min, Max].
type RangeFlag interface {
	pflag.Value
	FlagName() string
	Value() int
	Min() int
	Max() int
}

type filePathFlag struct {
	value    string
	flagName string
}

// NewFilePathFlag creates a FilePathFlag, optionally pre-set to defaultValue without validation.
func NewFilePathFlag(flagName string, defaultValue string) FilePathFlag {
	return &filePathFlag{flagName: flagName, value: defaultValue}
}

func (p filePathFlag) String() string {
	return p.value
}

// Set rejects blank values and values that are not a file path on the current platform.
func (p *filePathFlag) Set(value string) error {
	if whitespaceOnlyRe.MatchString(value) {
		return fmt.Errorf("the %s flag cannot be empty or contain only whitespace", p.flagName)
	}

	if !validFilePath(value) {
		return fmt.Errorf("the %s flag value '%s' is not a valid %s file path", p.flagName, value, platformName())
	}

	p.value = value
	return nil
}

func (p filePathFlag) Type() string {
	return "string"
}

func (p filePathFlag) FlagName() string {
	return p.flagName
}

type unionFlag struct {
	value         string
	allowedValues []string
	flagName      string
}

// NewUnionFlag creates a UnionFlag whose initial value is the first allowed value.
func NewUnionFlag(allowedValues []string, flagName string) UnionFlag {
	if len(allowedValues) == 0 {
		panic("a union flag needs at least one allowed value")
	}
	return &unionFlag{
		value:         allowedValues[0],
		allowedValues: allowedValues,
		flagName:      flagName,
	}
}

func (u unionFlag) String() string {
	return u.value
}

// Set accepts any of the allowed values, compared case-insensitively.
func (u *unionFlag) Set(value string) error {
	match, found := lo.Find(u.allowedValues, func(allowed string) bool {
		return strings.EqualFold(allowed, strings.TrimSpace(value))
	})
	if !found {
		return fmt.Errorf("%s flag must be one of %v", custom_errors.FlagName(u.flagName), u.allowedValues)
	}
	u.value = match
	return nil
}

func (u unionFlag) Type() string {
	return "string"
}

func (u unionFlag) FlagName() string {
	return u.flagName
}

func (u unionFlag) AllowedValues() []string {
	return u.allowedValues
}

type rangeFlag struct {
	value, min, max int
	flagName        string
}

// NewRangeFlag creates a RangeFlag starting at defaultValue.
func NewRangeFlag(flagName string, min, max, defaultValue int) RangeFlag {
	if min > max {
		panic("min must be less than max")
	}
	if min < 0 || max < 0 {
		panic("min and max must be non-negative")
	}
	return &rangeFlag{
		value:    defaultValue,
		min:      min,
		max:      max,
		flagName: flagName,
	}
}

func (r rangeFlag) String() string {
	return strconv.Itoa(r.value)
}

func (r rangeFlag) Value() int {
	return r.value
}

// Set parses value as a non-negative integer and checks it against the bounds.
func (r *rangeFlag) Set(value string) error {
	num, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || num < 0 {
		return fmt.Errorf("%s flag must be an integer between %d and %d", custom_errors.FlagName(r.flagName), r.min, r.max)
	}
	if num < r.min || num > r.max {
		return fmt.Errorf("%s flag must be between %d and %d", custom_errors.FlagName(r.flagName), r.min, r.max)
	}
	r.value = num
	return nil
}

func (r rangeFlag) Type() string {
	return "int"
}

func (r rangeFlag) FlagName() string {
	return r.flagName
}

func (r rangeFlag) Min() int {
	return r.min
}

func (r rangeFlag) Max() int {
	return r.max
}
