package manifest

import (
	"fmt"
	"regexp"
	"strings"
)

// Operator is a PEP 440 version comparison operator.
type Operator string

const (
	Compatible   Operator = "~="
	Equal        Operator = "=="
	NotEqual     Operator = "!="
	LessEqual    Operator = "<="
	GreaterEqual Operator = ">="
	Less         Operator = "<"
	Greater      Operator = ">"
	Arbitrary    Operator = "==="
)

// Operators lists every supported operator, longest first so prefix matching is unambiguous.
var Operators = [...]Operator{Arbitrary, Compatible, Equal, NotEqual, LessEqual, GreaterEqual, Less, Greater}

var specifierPattern = regexp.MustCompile(`^\s*(===|~=|==|!=|<=|>=|<|>)\s*(\S+)\s*$`)

// Specifier is one comparator clause of a version constraint, such as ">=4.0.30".
type Specifier struct {
	Operator Operator `json:"operator" yaml:"operator"`
	Version  string   `json:"version" yaml:"version"`
}

func (s Specifier) String() string {
	return string(s.Operator) + s.Version
}

// IsWildcard reports whether the specifier ends in ".*".
func (s Specifier) IsWildcard() bool {
	return strings.HasSuffix(s.Version, ".*")
}

// ParseSpecifier parses a single "<op><version>" clause and validates the version for the operator.
func ParseSpecifier(clause string) (Specifier, error) {
	match := specifierPattern.FindStringSubmatch(clause)
	if match == nil {
		return Specifier{}, fmt.Errorf("%w: %q", ErrInvalidSpecifier, strings.TrimSpace(clause))
	}

	spec := Specifier{Operator: Operator(match[1]), Version: match[2]}

	if err := spec.validate(); err != nil {
		return Specifier{}, err
	}

	return spec, nil
}

func (s Specifier) validate() error {
	if s.Operator == Arbitrary {
		return nil
	}

	version := s.Version
	if s.IsWildcard() {
		if s.Operator != Equal && s.Operator != NotEqual {
			return fmt.Errorf("%w: %s does not accept a wildcard version %q", ErrInvalidSpecifier, s.Operator, s.Version)
		}
		version = strings.TrimSuffix(version, ".*")
	}

	parsed, err := ParseVersion(version)
	if err != nil {
		return err
	}

	if s.IsWildcard() && (parsed.PreLabel != "" || parsed.Post >= 0 || parsed.Dev >= 0 || parsed.Local != "") {
		return fmt.Errorf("%w: wildcard must follow a release segment in %q", ErrInvalidSpecifier, s.Version)
	}

	if parsed.Local != "" && s.Operator != Equal && s.Operator != NotEqual {
		return fmt.Errorf("%w: %s does not accept a local version %q", ErrInvalidSpecifier, s.Operator, s.Version)
	}

	if s.Operator == Compatible && len(parsed.Release) < 2 {
		return fmt.Errorf("%w: ~= needs at least two release segments, got %q", ErrInvalidSpecifier, s.Version)
	}

	return nil
}

// ParseSpecifiers parses a comma separated constraint such as ">=1.0,<2".
// An empty constraint yields no specifiers.
func ParseSpecifiers(constraint string) ([]Specifier, error) {
	constraint = strings.TrimSpace(constraint)
	if constraint == "" {
		return nil, nil
	}

	specs := make([]Specifier, 0, strings.Count(constraint, ",")+1)
	for _, clause := range strings.Split(constraint, ",") {
		spec, err := ParseSpecifier(clause)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}

	return specs, nil
}

// Allows reports whether v satisfies the specifier.
func (s Specifier) Allows(v Version) bool {
	if s.Operator == Arbitrary {
		return strings.EqualFold(strings.TrimSpace(v.String()), s.Version)
	}

	if s.IsWildcard() {
		prefix, _ := ParseVersion(strings.TrimSuffix(s.Version, ".*"))
		matches := v.Epoch == prefix.Epoch && hasReleasePrefix(v.Release, prefix.Release)
		if s.Operator == NotEqual {
			return !matches
		}
		return matches
	}

	target, err := ParseVersion(s.Version)
	if err != nil {
		return false
	}

	// A specifier without a local segment ignores the candidate's local segment.
	candidate := v
	if target.Local == "" {
		candidate.Local = ""
	}
	cmp := candidate.Compare(target)

	switch s.Operator {
	case Equal:
		return cmp == 0
	case NotEqual:
		return cmp != 0
	case LessEqual:
		return cmp <= 0
	case GreaterEqual:
		return cmp >= 0
	case Less:
		if cmp >= 0 {
			return false
		}
		// <3.0 excludes 3.0 pre-releases unless the bound itself is a pre-release.
		return target.IsPreRelease() || !candidate.IsPreRelease() || !sameRelease(candidate, target)
	case Greater:
		if cmp <= 0 {
			return false
		}
		// >3.0 excludes 3.0 post-releases unless the bound itself is a post-release.
		return target.Post >= 0 || candidate.Post < 0 || !sameRelease(candidate, target)
	case Compatible:
		if cmp < 0 {
			return false
		}
		prefix := target.Release[:len(target.Release)-1]
		return candidate.Epoch == target.Epoch && hasReleasePrefix(candidate.Release, prefix)
	}

	return false
}

func sameRelease(a, b Version) bool {
	return a.Epoch == b.Epoch && compareRelease(a.Release, b.Release) == 0
}

func hasReleasePrefix(release, prefix []int) bool {
	for i, want := range prefix {
		got := 0
		if i < len(release) {
			got = release[i]
		}
		if got != want {
			return false
		}
	}
	return true
}
