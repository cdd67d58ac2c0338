package manifest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/samber/lo"
)

// DefaultFileName is the manifest looked up when no path is given.
const DefaultFileName = "requirements.txt"

var commentRe = regexp.MustCompile(`(^|\s+)#.*$`)

// includeOptions are followed by ParseFile; the rest are recorded as directives only.
var includeOptions = []string{"-r", "--requirement"}

var knownOptions = []string{
	"-r", "--requirement",
	"-c", "--constraint",
	"-e", "--editable",
	"-i", "--index-url",
	"--extra-index-url",
	"--no-index",
	"-f", "--find-links",
	"--pre",
	"--prefer-binary",
	"--only-binary",
	"--no-binary",
	"--trusted-host",
	"--use-feature",
	"--require-hashes",
}

// Directive is an option line such as "-r base.txt" or "--index-url https://...".
type Directive struct {
	Line   int    `json:"line" yaml:"line"`
	Option string `json:"option" yaml:"option"`
	Value  string `json:"value,omitempty" yaml:"value,omitempty"`
}

// Manifest is a parsed dependency manifest.
type Manifest struct {
	Path         string        `json:"path,omitempty" yaml:"path,omitempty"`
	Requirements []Requirement `json:"requirements" yaml:"requirements"`
	Directives   []Directive   `json:"directives,omitempty" yaml:"directives,omitempty"`
}

// Names returns the requirement names in manifest order.
func (m *Manifest) Names() []string {
	return lo.Map(m.Requirements, func(r Requirement, _ int) string { return r.Name })
}

// Lookup finds a requirement by name, comparing normalized names.
func (m *Manifest) Lookup(name string) (Requirement, bool) {
	return lo.Find(m.Requirements, func(r Requirement) bool {
		return r.NormalizedName() == NormalizeName(name)
	})
}

// Parse reads a manifest from r. Blank lines and comments are skipped and a trailing
// backslash continues a line. Parsing does not stop at the first bad line: the returned
// manifest holds every valid requirement and the error joins one *LineError per bad line.
func Parse(r io.Reader) (*Manifest, error) {
	m := &Manifest{}
	err := parseInto(m, r, "")
	return m, err
}

// ParseFile parses the manifest at path, following -r includes relative to the including file.
func ParseFile(path string) (*Manifest, error) {
	m := &Manifest{Path: path}
	err := parseFileInto(m, path, &includeState{visiting: map[string]bool{}, parsed: map[string]bool{}})
	return m, err
}

// includeState tracks the include chain being parsed and every file already read,
// so a file included twice through different parents is only parsed once.
type includeState struct {
	visiting map[string]bool
	parsed   map[string]bool
}

func parseFileInto(m *Manifest, path string, state *includeState) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if state.visiting[abs] {
		return fmt.Errorf("%w: %s", ErrIncludeCycle, path)
	}
	if state.parsed[abs] {
		return nil
	}
	state.visiting[abs] = true
	state.parsed[abs] = true
	defer delete(state.visiting, abs)

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}
	defer func() { _ = file.Close() }()

	start := len(m.Directives)
	parseErr := parseInto(m, file, path)

	errs := []error{parseErr}
	for _, directive := range m.Directives[start:] {
		if !lo.Contains(includeOptions, directive.Option) {
			continue
		}
		included := directive.Value
		if !filepath.IsAbs(included) {
			included = filepath.Join(filepath.Dir(path), included)
		}
		err := parseFileInto(m, included, state)
		switch {
		case err == nil:
		case len(LineErrors(err)) > 0:
			errs = append(errs, err)
		default:
			errs = append(errs, &LineError{Path: path, Line: directive.Line, Text: directive.Option + " " + directive.Value, Err: err})
		}
	}

	return errors.Join(errs...)
}

func parseInto(m *Manifest, r io.Reader, path string) error {
	var errs []error
	seen := lo.SliceToMap(m.Requirements, func(req Requirement) (string, int) {
		return req.NormalizedName(), req.Line
	})

	scanner := bufio.NewScanner(r)
	lineNumber := 0
	startLine := 0
	var pending strings.Builder

	flush := func() {
		text := pending.String()
		pending.Reset()

		text = strings.TrimSpace(commentRe.ReplaceAllString(text, ""))
		if text == "" {
			return
		}

		fail := func(err error) {
			errs = append(errs, &LineError{Path: path, Line: startLine, Text: text, Err: err})
		}

		if strings.HasPrefix(text, "-") {
			directive, err := parseDirective(text)
			if err != nil {
				fail(err)
				return
			}
			directive.Line = startLine
			m.Directives = append(m.Directives, directive)
			return
		}

		req, err := ParseRequirement(text)
		if err != nil {
			fail(err)
			return
		}
		req.Line = startLine

		if first, dup := seen[req.NormalizedName()]; dup {
			fail(fmt.Errorf("%w: %s already listed on line %d", ErrDuplicateRequirement, req.Name, first))
			return
		}
		seen[req.NormalizedName()] = startLine

		m.Requirements = append(m.Requirements, req)
	}

	for scanner.Scan() {
		lineNumber++
		line := strings.TrimRight(scanner.Text(), "\r")

		if pending.Len() == 0 {
			startLine = lineNumber
		}

		if strings.HasSuffix(line, `\`) {
			pending.WriteString(strings.TrimSuffix(line, `\`))
			pending.WriteString(" ")
			continue
		}

		pending.WriteString(line)
		flush()
	}

	if pending.Len() > 0 {
		flush()
	}

	if err := scanner.Err(); err != nil {
		errs = append(errs, fmt.Errorf("failed to read manifest: %w", err))
	}

	return errors.Join(errs...)
}

func parseDirective(text string) (Directive, error) {
	option, value, _ := strings.Cut(text, "=")
	if fields := strings.Fields(text); len(fields) > 0 && !strings.Contains(fields[0], "=") {
		option = fields[0]
		value = strings.Join(fields[1:], " ")
	}

	option = strings.TrimSpace(option)
	value = strings.TrimSpace(value)

	if !lo.Contains(knownOptions, option) {
		return Directive{}, fmt.Errorf("%w: %s", ErrUnknownOption, option)
	}

	if lo.Contains(includeOptions, option) && value == "" {
		return Directive{}, fmt.Errorf("%w: %s needs a file name", ErrUnknownOption, option)
	}

	return Directive{Option: option, Value: value}, nil
}
