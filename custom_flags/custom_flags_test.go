package custom_flags_test

import (
	"runtime"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/assert"

	"github.com/louiss0/access-sharepoint-migrator/custom_flags"
)

func TestCustomFlags(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Custom Flags Suite")
}

var _ = Describe("FilePathFlag", Label("fast", "unit"), func() {
	var (
		flag    custom_flags.FilePathFlag
		assertT *assert.Assertions
	)

	BeforeEach(func() {
		if runtime.GOOS == "windows" {
			Skip("POSIX path rules")
		}
		assertT = assert.New(GinkgoT())
		flag = custom_flags.NewFilePathFlag("config", "config.json")
	})

	It("starts with the default value", func() {
		assertT.Equal("config", flag.FlagName())
		assertT.Equal("string", flag.Type())
		assertT.Equal("config.json", flag.String())
	})

	DescribeTable("accepts file paths",
		func(value string) {
			assertT.NoError(flag.Set(value))
			assertT.Equal(value, flag.String())
		},
		Entry("absolute", "/etc/a2sp/config.json"),
		Entry("relative", "configs/prod.yaml"),
		Entry("parent directory", "../shared/config.jsonc"),
		Entry("with spaces", "My Documents/config.json"),
	)

	DescribeTable("rejects values that are not file paths",
		func(value string) {
			err := flag.Set(value)
			Expect(err).To(HaveOccurred())
			assertT.Equal("config.json", flag.String())
		},
		Entry("empty", ""),
		Entry("whitespace", "   "),
		Entry("trailing slash", "configs/"),
		Entry("double slash", "configs//config.json"),
	)
})

var _ = Describe("UnionFlag", Label("fast", "unit"), func() {
	assertT := assert.New(GinkgoT())

	It("defaults to the first allowed value", func() {
		flag := custom_flags.NewUnionFlag([]string{"text", "json", "yaml"}, "format")
		assertT.Equal("text", flag.String())
		assertT.Equal([]string{"text", "json", "yaml"}, flag.AllowedValues())
	})

	It("accepts allowed values case-insensitively", func() {
		flag := custom_flags.NewUnionFlag([]string{"debug", "info"}, "log-level")
		assertT.NoError(flag.Set("INFO"))
		assertT.Equal("info", flag.String())
	})

	It("rejects anything else", func() {
		flag := custom_flags.NewUnionFlag([]string{"text", "json"}, "format")
		err := flag.Set("xml")
		assertT.EqualError(err, "format flag must be one of [text json]")
	})

	It("panics without allowed values", func() {
		Expect(func() { custom_flags.NewUnionFlag(nil, "format") }).To(Panic())
	})
})

var _ = Describe("RangeFlag", Label("fast", "unit"), func() {
	assertT := assert.New(GinkgoT())

	var flag custom_flags.RangeFlag

	BeforeEach(func() {
		flag = custom_flags.NewRangeFlag("batch-size", 1, 5000, 100)
	})

	It("reports its bounds and default", func() {
		assertT.Equal(1, flag.Min())
		assertT.Equal(5000, flag.Max())
		assertT.Equal(100, flag.Value())
		assertT.Equal("100", flag.String())
		assertT.Equal("int", flag.Type())
	})

	It("accepts values inside the range", func() {
		assertT.NoError(flag.Set("250"))
		assertT.Equal(250, flag.Value())
	})

	DescribeTable("rejects values outside the range",
		func(value, message string) {
			assertT.EqualError(flag.Set(value), message)
			assertT.Equal(100, flag.Value())
		},
		Entry("zero", "0", "batch-size flag must be between 1 and 5000"),
		Entry("too large", "5001", "batch-size flag must be between 1 and 5000"),
		Entry("negative", "-3", "batch-size flag must be an integer between 1 and 5000"),
		Entry("not a number", "ten", "batch-size flag must be an integer between 1 and 5000"),
	)

	It("panics on inverted bounds", func() {
		Expect(func() { custom_flags.NewRangeFlag("concurrency", 5, 1, 1) }).To(Panic())
	})
})
