// Package custom_errors provides the sentinel errors shared by the CLI flags, arguments and configuration.
package custom_errors

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidFlag represents an error indicating an invalid flag.
var ErrInvalidFlag = errors.New("invalid flag")

// ErrInvalidArgument represents an error indicating an invalid argument.
var ErrInvalidArgument = errors.New("invalid argument")

// ErrInvalidConfig represents an error indicating a configuration value that cannot be used.
var ErrInvalidConfig = errors.New("invalid config")

var flagNameRegex = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// FlagName is a string type representing the name of a flag.
type FlagName string

// Error validates the FlagName and returns an error if it's invalid.
// A valid flag name is lowercase kebab-case, like "batch-size".
func (self FlagName) Error() error {
	if !flagNameRegex.MatchString(string(self)) {
		return fmt.Errorf("%w: %s must be lowercase kebab-case", ErrInvalidFlag, string(self))
	}
	return nil
}

// CreateInvalidFlagErrorWithMessage creates an error with a custom message for an invalid flag.
// It first validates the flag name and returns the validation error if present.
var CreateInvalidFlagErrorWithMessage = func(flagName FlagName, message string) error {
	if err := flagName.Error(); err != nil {
		return err
	}
	return fmt.Errorf("%w: %s %s", ErrInvalidFlag, flagName, message)
}

// CreateInvalidArgumentErrorWithMessage creates an error with a custom message for an invalid argument.
var CreateInvalidArgumentErrorWithMessage = func(message string) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, message)
}

// CreateInvalidConfigError creates an error naming the dotted config key that failed validation.
var CreateInvalidConfigError = func(key string, message string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidConfig, key, message)
}
