package manifest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// versionPattern is the PEP 440 public version grammar, including the local segment.
var versionPattern = regexp.MustCompile(`(?i)^\s*v?` +
	`(?:(?P<epoch>[0-9]+)!)?` +
	`(?P<release>[0-9]+(?:\.[0-9]+)*)` +
	`(?:[-_.]?(?P<pre_l>alpha|a|beta|b|preview|pre|c|rc)[-_.]?(?P<pre_n>[0-9]+)?)?` +
	`(?:(?:-(?P<post_n1>[0-9]+))|(?:[-_.]?(?P<post_l>post|rev|r)[-_.]?(?P<post_n2>[0-9]+)?))?` +
	`(?:[-_.]?(?P<dev_l>dev)[-_.]?(?P<dev_n>[0-9]+)?)?` +
	`(?:\+(?P<local>[a-z0-9]+(?:[-_.][a-z0-9]+)*))?` +
	`\s*$`)

// Version is a parsed PEP 440 version.
// Post and Dev are -1 when the segment is absent; PreLabel is empty when there is no pre-release.
type Version struct {
	Epoch     int
	Release   []int
	PreLabel  string
	PreNumber int
	Post      int
	Dev       int
	Local     string

	raw string
}

// ParseVersion parses s as a PEP 440 version.
func ParseVersion(s string) (Version, error) {
	match := versionPattern.FindStringSubmatch(s)
	if match == nil {
		return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
	}

	group := func(name string) string {
		return match[versionPattern.SubexpIndex(name)]
	}

	v := Version{Post: -1, Dev: -1, raw: strings.TrimSpace(s)}

	if epoch := group("epoch"); epoch != "" {
		v.Epoch, _ = strconv.Atoi(epoch)
	}

	v.Release = lo.Map(strings.Split(group("release"), "."), func(part string, _ int) int {
		n, _ := strconv.Atoi(part)
		return n
	})

	if label := group("pre_l"); label != "" {
		v.PreLabel = normalizePreLabel(label)
		v.PreNumber = atoiOrZero(group("pre_n"))
	}

	switch {
	case group("post_n1") != "":
		v.Post = atoiOrZero(group("post_n1"))
	case group("post_l") != "":
		v.Post = atoiOrZero(group("post_n2"))
	}

	if group("dev_l") != "" {
		v.Dev = atoiOrZero(group("dev_n"))
	}

	v.Local = strings.ToLower(group("local"))

	return v, nil
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func normalizePreLabel(label string) string {
	switch strings.ToLower(label) {
	case "alpha", "a":
		return "a"
	case "beta", "b":
		return "b"
	default:
		return "rc"
	}
}

// IsPreRelease reports whether the version carries a pre-release or dev segment.
func (v Version) IsPreRelease() bool {
	return v.PreLabel != "" || v.Dev >= 0
}

// String returns the version as it was written.
func (v Version) String() string {
	return v.raw
}

// Canonical returns the normalized PEP 440 form of the version.
func (v Version) Canonical() string {
	var b strings.Builder
	if v.Epoch != 0 {
		fmt.Fprintf(&b, "%d!", v.Epoch)
	}
	b.WriteString(strings.Join(lo.Map(v.Release, func(n int, _ int) string {
		return strconv.Itoa(n)
	}), "."))
	if v.PreLabel != "" {
		fmt.Fprintf(&b, "%s%d", v.PreLabel, v.PreNumber)
	}
	if v.Post >= 0 {
		fmt.Fprintf(&b, ".post%d", v.Post)
	}
	if v.Dev >= 0 {
		fmt.Fprintf(&b, ".dev%d", v.Dev)
	}
	if v.Local != "" {
		b.WriteString("+" + v.Local)
	}
	return b.String()
}

// Compare returns -1, 0 or 1 following PEP 440 ordering.
func (v Version) Compare(other Version) int {
	if c := compareInt(v.Epoch, other.Epoch); c != 0 {
		return c
	}
	if c := compareRelease(v.Release, other.Release); c != 0 {
		return c
	}
	if c := compareInt(v.preRank(), other.preRank()); c != 0 {
		return c
	}
	if v.PreLabel != "" && other.PreLabel != "" {
		if c := compareInt(v.PreNumber, other.PreNumber); c != 0 {
			return c
		}
	}
	if c := compareInt(v.Post, other.Post); c != 0 {
		return c
	}
	if c := compareInt(v.devRank(), other.devRank()); c != 0 {
		return c
	}
	return compareLocal(v.Local, other.Local)
}

// preRank orders a dev-only release before every pre-release and a final release after them.
func (v Version) preRank() int {
	switch {
	case v.PreLabel == "" && v.Post < 0 && v.Dev >= 0:
		return -1
	case v.PreLabel == "":
		return 3
	case v.PreLabel == "a":
		return 0
	case v.PreLabel == "b":
		return 1
	default:
		return 2
	}
}

func (v Version) devRank() int {
	if v.Dev < 0 {
		return int(^uint(0) >> 1)
	}
	return v.Dev
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareRelease(a, b []int) int {
	size := max(len(a), len(b))
	for i := 0; i < size; i++ {
		var x, y int
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		if c := compareInt(x, y); c != 0 {
			return c
		}
	}
	return 0
}

// compareLocal sorts a missing local segment first; numeric parts outrank alphanumeric ones.
func compareLocal(a, b string) int {
	if a == b {
		return 0
	}
	if a == "" {
		return -1
	}
	if b == "" {
		return 1
	}

	split := func(s string) []string {
		return strings.FieldsFunc(s, func(r rune) bool { return r == '.' || r == '-' || r == '_' })
	}
	left, right := split(a), split(b)

	for i := 0; i < min(len(left), len(right)); i++ {
		ln, lerr := strconv.Atoi(left[i])
		rn, rerr := strconv.Atoi(right[i])
		switch {
		case lerr == nil && rerr == nil:
			if c := compareInt(ln, rn); c != 0 {
				return c
			}
		case lerr == nil:
			return 1
		case rerr == nil:
			return -1
		default:
			if c := strings.Compare(left[i], right[i]); c != 0 {
				return c
			}
		}
	}
	return compareInt(len(left), len(right))
}
