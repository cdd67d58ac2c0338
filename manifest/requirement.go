package manifest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/samber/lo"
)

var (
	namePattern      = regexp.MustCompile(`(?i)^([A-Z0-9]|[A-Z0-9][A-Z0-9._-]*[A-Z0-9])$`)
	nameSeparatorsRe = regexp.MustCompile(`[-_.]+`)
	leadingNameRe    = regexp.MustCompile(`^[^\s\[\]();,@<>=!~]*`)
	hashOptionRe     = regexp.MustCompile(`\s--hash[=\s]+(\S+)`)
)

// Requirement is one dependency specifier line of a manifest.
type Requirement struct {
	Line       int         `json:"line" yaml:"line"`
	Raw        string      `json:"raw" yaml:"raw"`
	Name       string      `json:"name" yaml:"name"`
	Extras     []string    `json:"extras,omitempty" yaml:"extras,omitempty"`
	Specifiers []Specifier `json:"specifiers,omitempty" yaml:"specifiers,omitempty"`
	URL        string      `json:"url,omitempty" yaml:"url,omitempty"`
	Marker     string      `json:"marker,omitempty" yaml:"marker,omitempty"`
	Hashes     []string    `json:"hashes,omitempty" yaml:"hashes,omitempty"`
}

// NormalizedName returns the comparable form of the requirement name.
func (r Requirement) NormalizedName() string {
	return NormalizeName(r.Name)
}

// Constraint renders the specifiers back into their comma separated form.
func (r Requirement) Constraint() string {
	return strings.Join(lo.Map(r.Specifiers, func(s Specifier, _ int) string {
		return s.String()
	}), ",")
}

// Allows reports whether version satisfies every specifier of the requirement.
// A requirement without specifiers allows any valid version.
func (r Requirement) Allows(version string) (bool, error) {
	v, err := ParseVersion(version)
	if err != nil {
		return false, err
	}
	return lo.EveryBy(r.Specifiers, func(s Specifier) bool {
		return s.Allows(v)
	}), nil
}

// NormalizeName lowercases name and collapses runs of "-", "_" and "." into "-".
func NormalizeName(name string) string {
	return nameSeparatorsRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}

// ValidName reports whether name follows the PEP 508 name grammar.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// ParseRequirement parses a single requirement specifier such as
// `requests[socks]>=2.28.0,<3; python_version >= "3.8"`.
// The line must already be stripped of comments and continuations.
func ParseRequirement(line string) (Requirement, error) {
	req := Requirement{Raw: strings.TrimSpace(line)}
	rest := req.Raw

	rest = hashOptionRe.ReplaceAllStringFunc(" "+rest, func(option string) string {
		req.Hashes = append(req.Hashes, hashOptionRe.FindStringSubmatch(option)[1])
		return ""
	})
	rest = strings.TrimSpace(rest)

	if before, after, found := strings.Cut(rest, ";"); found {
		req.Marker = strings.TrimSpace(after)
		rest = strings.TrimSpace(before)
		if req.Marker == "" {
			return Requirement{}, fmt.Errorf("%w: empty environment marker", ErrInvalidSpecifier)
		}
	}

	req.Name = leadingNameRe.FindString(rest)
	rest = strings.TrimSpace(rest[len(req.Name):])

	if req.Name == "" {
		return Requirement{}, ErrEmptyName
	}
	if !ValidName(req.Name) {
		return Requirement{}, fmt.Errorf("%w: %q", ErrInvalidName, req.Name)
	}

	if strings.HasPrefix(rest, "[") {
		end := strings.Index(rest, "]")
		if end < 0 {
			return Requirement{}, fmt.Errorf("%w: unterminated extras in %q", ErrInvalidName, req.Raw)
		}
		extras, err := parseExtras(rest[1:end])
		if err != nil {
			return Requirement{}, err
		}
		req.Extras = extras
		rest = strings.TrimSpace(rest[end+1:])
	}

	if strings.HasPrefix(rest, "@") {
		req.URL = strings.TrimSpace(rest[1:])
		if req.URL == "" || strings.ContainsAny(req.URL, " \t") {
			return Requirement{}, fmt.Errorf("%w: invalid direct reference %q", ErrInvalidSpecifier, req.URL)
		}
		return req, nil
	}

	if strings.HasPrefix(rest, "(") {
		if !strings.HasSuffix(rest, ")") {
			return Requirement{}, fmt.Errorf("%w: unbalanced parentheses in %q", ErrInvalidSpecifier, rest)
		}
		rest = strings.TrimSpace(rest[1 : len(rest)-1])
	}

	specs, err := ParseSpecifiers(rest)
	if err != nil {
		return Requirement{}, err
	}
	req.Specifiers = specs

	return req, nil
}

func parseExtras(list string) ([]string, error) {
	if strings.TrimSpace(list) == "" {
		return nil, nil
	}

	extras := lo.Map(strings.Split(list, ","), func(extra string, _ int) string {
		return strings.TrimSpace(extra)
	})

	if invalid, found := lo.Find(extras, func(extra string) bool { return !ValidName(extra) }); found {
		return nil, fmt.Errorf("%w: extra %q", ErrInvalidName, invalid)
	}

	return extras, nil
}
