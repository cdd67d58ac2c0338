package manifest_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"

	"github.com/louiss0/access-sharepoint-migrator/manifest"
)

func TestManifest(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Manifest Suite")
}

const referenceManifest = `# Database connectivity
pyodbc>=4.0.30

# Authentication
msal>=1.20.0

# HTTP requests
requests>=2.28.0

# Type hints
typing-extensions>=4.4.0

# Testing
pytest>=7.0.0
pytest-cov>=3.0.0

# Development tools
black>=22.0.0
flake8>=4.0.0
mypy>=0.950
`

var _ = Describe("Parse", Label("fast", "unit"), func() {
	assert := assert.New(GinkgoT())

	Context("the reference manifest", func() {
		It("parses into nine requirements with one >= specifier each", func() {
			m, err := manifest.Parse(strings.NewReader(referenceManifest))

			assert.NoError(err)
			assert.Equal([]string{
				"pyodbc", "msal", "requests", "typing-extensions",
				"pytest", "pytest-cov", "black", "flake8", "mypy",
			}, m.Names())

			for _, req := range m.Requirements {
				assert.NotEmpty(req.Name)
				assert.Len(req.Specifiers, 1, req.Name)
				assert.Equal(manifest.GreaterEqual, req.Specifiers[0].Operator)
			}
		})

		It("records the source line of every requirement", func() {
			m, err := manifest.Parse(strings.NewReader(referenceManifest))
			assert.NoError(err)

			pyodbc, ok := m.Lookup("PyODBC")
			assert.True(ok)
			assert.Equal(2, pyodbc.Line)

			mypy, ok := m.Lookup("mypy")
			assert.True(ok)
			assert.Equal(20, mypy.Line)
			assert.Equal("0.950", mypy.Specifiers[0].Version)
		})
	})

	Context("line handling", func() {
		It("skips trailing comments but keeps # inside a token", func() {
			m, err := manifest.Parse(strings.NewReader("requests>=2.28.0  # http\nfoo @ https://example.com/foo.zip#egg=foo\n"))

			assert.NoError(err)
			assert.Len(m.Requirements, 2)
			assert.Equal("https://example.com/foo.zip#egg=foo", m.Requirements[1].URL)
		})

		It("joins backslash continuations and reports the first line", func() {
			m, err := manifest.Parse(strings.NewReader("\nrequests>=2.28.0, \\\n  <3\n"))

			assert.NoError(err)
			assert.Len(m.Requirements, 1)
			assert.Equal(2, m.Requirements[0].Line)
			assert.Equal(">=2.28.0,<3", m.Requirements[0].Constraint())
		})

		It("records option lines as directives", func() {
			m, err := manifest.Parse(strings.NewReader("--index-url=https://pypi.org/simple\n-c constraints.txt\nmsal\n"))

			assert.NoError(err)
			assert.Equal([]manifest.Directive{
				{Line: 1, Option: "--index-url", Value: "https://pypi.org/simple"},
				{Line: 2, Option: "-c", Value: "constraints.txt"},
			}, m.Directives)
			assert.Equal([]string{"msal"}, m.Names())
		})
	})

	Context("invalid manifests", func() {
		It("reports every bad line and keeps the good ones", func() {
			input := strings.Join([]string{
				"pyodbc>=4.0.30",
				">=1.0",
				"requests=>2",
				"black>=22.0.0",
				"flake8>=four",
				"--bogus",
			}, "\n")

			m, err := manifest.Parse(strings.NewReader(input))

			Expect(err).To(HaveOccurred())
			assert.Equal([]string{"pyodbc", "black"}, m.Names())

			lineErrs := manifest.LineErrors(err)
			assert.Equal([]int{2, 3, 5, 6}, lo.Map(lineErrs, func(e *manifest.LineError, _ int) int { return e.Line }))
			assert.ErrorIs(lineErrs[0], manifest.ErrEmptyName)
			assert.ErrorIs(lineErrs[1], manifest.ErrInvalidSpecifier)
			assert.ErrorIs(lineErrs[2], manifest.ErrInvalidVersion)
			assert.ErrorIs(lineErrs[3], manifest.ErrUnknownOption)
		})

		It("rejects duplicate names after normalization", func() {
			_, err := manifest.Parse(strings.NewReader("typing_extensions>=4.4.0\nTyping.Extensions<5\n"))

			assert.ErrorIs(err, manifest.ErrDuplicateRequirement)
			assert.Contains(err.Error(), "line 1")
		})
	})
})

var _ = Describe("ParseFile", Label("integration"), func() {
	assert := assert.New(GinkgoT())

	write := func(dir, name, content string) string {
		path := filepath.Join(dir, name)
		assert.NoError(os.WriteFile(path, []byte(content), 0644))
		return path
	}

	It("follows -r includes relative to the including file", func() {
		dir := GinkgoT().TempDir()
		assert.NoError(os.Mkdir(filepath.Join(dir, "reqs"), 0755))
		write(dir, "reqs/base.txt", "pyodbc>=4.0.30\nmsal>=1.20.0\n")
		path := write(dir, "requirements.txt", "-r reqs/base.txt\nrequests>=2.28.0\n")

		m, err := manifest.ParseFile(path)

		assert.NoError(err)
		assert.ElementsMatch([]string{"pyodbc", "msal", "requests"}, m.Names())
		assert.Equal(path, m.Path)
	})

	It("reads a file included by two other files once", func() {
		dir := GinkgoT().TempDir()
		write(dir, "base.txt", "pyodbc>=4.0.30\n")
		write(dir, "auth.txt", "-r base.txt\nmsal>=1.20.0\n")
		write(dir, "http.txt", "-r base.txt\nrequests>=2.28.0\n")
		path := write(dir, "requirements.txt", "-r auth.txt\n-r http.txt\n")

		m, err := manifest.ParseFile(path)

		assert.NoError(err)
		assert.ElementsMatch([]string{"pyodbc", "msal", "requests"}, m.Names())
	})

	It("reports include cycles", func() {
		dir := GinkgoT().TempDir()
		write(dir, "a.txt", "-r b.txt\n")
		path := write(dir, "b.txt", "-r a.txt\n")

		_, err := manifest.ParseFile(path)

		assert.True(errors.Is(err, manifest.ErrIncludeCycle))
	})

	It("points missing includes at the directive line", func() {
		dir := GinkgoT().TempDir()
		path := write(dir, "requirements.txt", "msal\n-r missing.txt\n")

		_, err := manifest.ParseFile(path)

		lineErrs := manifest.LineErrors(err)
		assert.Len(lineErrs, 1)
		assert.Equal(2, lineErrs[0].Line)
		assert.ErrorIs(err, os.ErrNotExist)
	})
})
