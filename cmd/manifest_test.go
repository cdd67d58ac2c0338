package cmd_test

import (
	"encoding/json"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"

	"github.com/louiss0/access-sharepoint-migrator/custom_errors"
	"github.com/louiss0/access-sharepoint-migrator/manifest"
	"github.com/louiss0/access-sharepoint-migrator/mock"
	"github.com/louiss0/access-sharepoint-migrator/testutil"
)

const validManifest = `# runtime
msal==1.24.0
pyodbc>=5.0.1,<6
requests[socks]~=2.31
-r dev.txt
`

const devManifest = `pytest
`

var _ = Describe("manifest", func() {
	assert := assert.New(GinkgoT())

	var (
		rootCmd *cobra.Command
		dir     string
	)

	writeFile := func(name, content string) string {
		path := filepath.Join(dir, name)
		Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
		return path
	}

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		factory := testutil.NewRootCommandFactory(mock.NewMockSource(nil, nil), mock.NewMockTarget()).IgnoreDebugMessages()
		rootCmd = factory.CreateRootCmd()
		writeFile("dev.txt", devManifest)
	})

	It("lists every requirement with its constraint", func() {
		path := writeFile(manifest.DefaultFileName, validManifest)

		out, _, err := testutil.ExecuteCommand(rootCmd, "manifest", path)

		Expect(err).NotTo(HaveOccurred())
		assert.Regexp(`LINE\s+NAME\s+CONSTRAINT`, out)
		assert.Regexp(`2\s+msal\s+==1\.24\.0`, out)
		assert.Regexp(`3\s+pyodbc\s+>=5\.0\.1,<6`, out)
		assert.Regexp(`1\s+pytest\s+\*`, out)
	})

	It("prints JSON", func() {
		path := writeFile("requirements.txt", validManifest)

		out, _, err := testutil.ExecuteCommand(rootCmd, "manifest", path, "--format", "json")
		Expect(err).NotTo(HaveOccurred())

		var decoded manifest.Manifest
		Expect(json.Unmarshal([]byte(out), &decoded)).To(Succeed())
		assert.Equal([]string{"msal", "pyodbc", "requests", "pytest"}, decoded.Names())
		assert.Equal([]string{"socks"}, decoded.Requirements[2].Extras)
	})

	It("prints YAML", func() {
		path := writeFile("requirements.txt", validManifest)

		out, _, err := testutil.ExecuteCommand(rootCmd, "manifest", path, "--format", "yaml")
		Expect(err).NotTo(HaveOccurred())

		var decoded manifest.Manifest
		Expect(yaml.Unmarshal([]byte(out), &decoded)).To(Succeed())
		assert.Len(decoded.Requirements, 4)
		assert.Equal("-r", decoded.Directives[0].Option)
	})

	It("reports every invalid line", func() {
		path := writeFile("broken.txt", "msal==1.24.0\n_bad==1\npyodbc=>5\nmsal\n")

		_, stderr, err := testutil.ExecuteCommand(rootCmd, "manifest", path)

		assert.EqualError(err, path+" has 3 invalid line(s)")
		assert.Contains(stderr, path+":2: invalid requirement name")
		assert.Contains(stderr, path+":3: invalid version specifier")
		assert.Contains(stderr, path+":4: duplicate requirement")
	})

	It("returns read errors for a missing manifest", func() {
		_, _, err := testutil.ExecuteCommand(rootCmd, "manifest", filepath.Join(dir, "missing.txt"))
		assert.ErrorContains(err, "failed to read manifest")
	})

	Describe("--check", func() {
		var path string

		BeforeEach(func() {
			path = writeFile("requirements.txt", validManifest)
		})

		It("confirms versions the manifest allows", func() {
			out, _, err := testutil.ExecuteCommand(rootCmd, "manifest", path, "--check", "msal=1.24.0", "--check", "PyODBC=5.1")

			Expect(err).NotTo(HaveOccurred())
			assert.Contains(out, "msal 1.24.0 satisfies ==1.24.0")
			assert.Contains(out, "pyodbc 5.1 satisfies >=5.0.1,<6")
		})

		It("accepts pinned name==version pairs", func() {
			out, _, err := testutil.ExecuteCommand(rootCmd, "manifest", path, "--check", "msal==1.24.0")

			Expect(err).NotTo(HaveOccurred())
			assert.Contains(out, "msal 1.24.0 satisfies ==1.24.0")
		})

		It("fails for versions the manifest rejects", func() {
			out, _, err := testutil.ExecuteCommand(rootCmd, "manifest", path, "--check", "requests=3.0")

			assert.EqualError(err, "versions rejected by the manifest: requests")
			assert.Contains(out, "requests 3.0 does not satisfy ~=2.31")
		})

		DescribeTable("needs name=version",
			func(check string) {
				_, _, err := testutil.ExecuteCommand(rootCmd, "manifest", path, "--check", check)
				assert.ErrorIs(err, custom_errors.ErrInvalidFlag)
			},
			Entry("no version", "msal"),
			Entry("only equals signs", "msal=="),
		)

		It("needs a listed name", func() {
			_, _, err := testutil.ExecuteCommand(rootCmd, "manifest", path, "--check", "flask=3.0")
			assert.ErrorIs(err, custom_errors.ErrInvalidArgument)
		})
	})
})
