// Package manifest parses and validates requirements.txt style dependency manifests.
package manifest

import (
	"errors"
	"fmt"
)

// ErrEmptyName indicates a requirement line that carries no package name.
var ErrEmptyName = errors.New("empty requirement name")

// ErrInvalidName indicates a name that does not follow the PEP 508 name grammar.
var ErrInvalidName = errors.New("invalid requirement name")

// ErrInvalidSpecifier indicates a malformed comparator clause.
var ErrInvalidSpecifier = errors.New("invalid version specifier")

// ErrInvalidVersion indicates a version that is not a valid PEP 440 version.
var ErrInvalidVersion = errors.New("invalid version")

// ErrDuplicateRequirement indicates the same normalized name listed more than once.
var ErrDuplicateRequirement = errors.New("duplicate requirement")

// ErrUnknownOption indicates a line starting with an option the manifest format does not know.
var ErrUnknownOption = errors.New("unknown option")

// ErrIncludeCycle indicates a -r include chain that loops back on itself.
var ErrIncludeCycle = errors.New("include cycle")

// LineError ties a parse failure to the manifest line that caused it.
type LineError struct {
	Path string
	Line int
	Text string
	Err  error
}

func (e *LineError) Error() string {
	location := fmt.Sprintf("line %d", e.Line)
	if e.Path != "" {
		location = fmt.Sprintf("%s:%d", e.Path, e.Line)
	}
	return fmt.Sprintf("%s: %v (%q)", location, e.Err, e.Text)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// LineErrors extracts every *LineError from an error returned by Parse or ParseFile.
func LineErrors(err error) []*LineError {
	if err == nil {
		return nil
	}

	var out []*LineError

	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			out = append(out, LineErrors(e)...)
		}
		return out
	}

	var lineErr *LineError
	if errors.As(err, &lineErr) {
		out = append(out, lineErr)
	}

	return out
}
