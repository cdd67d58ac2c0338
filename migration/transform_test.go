package migration_test

import (
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/assert"

	"github.com/louiss0/access-sharepoint-migrator/access"
	"github.com/louiss0/access-sharepoint-migrator/migration"
)

var _ = Describe("TransformData", func() {
	assert := assert.New(GinkgoT())

	convertOne := func(columnType access.ColumnType, value any) (any, error) {
		columns := []access.Column{{Name: "value", Type: columnType, Nullable: true}}
		rows, err := migration.TransformData([]access.Row{{"value": value}}, columns)
		if err != nil {
			return nil, err
		}
		return rows[0]["value"], nil
	}

	DescribeTable("converts values to the SharePoint representation of their column",
		func(columnType access.ColumnType, value any, expected any) {
			converted, err := convertOne(columnType, value)
			assert.NoError(err)
			assert.Equal(expected, converted)
		},
		Entry("int32 integer", access.Integer, int32(42), int64(42)),
		Entry("whole float integer", access.Integer, float64(7), int64(7)),
		Entry("numeric string integer", access.Integer, " 12 ", int64(12)),
		Entry("bool integer", access.Integer, true, int64(1)),
		Entry("byte slice integer", access.Integer, []byte("99"), int64(99)),
		Entry("double from float32", access.Double, float32(1.5), float64(1.5)),
		Entry("double from int", access.Double, 3, float64(3)),
		Entry("currency from string", access.Currency, "19.99", 19.99),
		Entry("boolean from bool", access.Boolean, false, false),
		Entry("boolean from Access true", access.Boolean, int64(-1), true),
		Entry("boolean from zero", access.Boolean, int64(0), false),
		Entry("boolean from yes", access.Boolean, "Yes", true),
		Entry("boolean from off", access.Boolean, "off", false),
		Entry("datetime from time", access.DateTime, time.Date(2024, 3, 1, 9, 30, 0, 0, time.FixedZone("EST", -5*3600)), "2024-03-01T14:30:00Z"),
		Entry("datetime from date string", access.DateTime, "2024-03-01", "2024-03-01T00:00:00Z"),
		Entry("datetime from US string", access.DateTime, "03/01/2024 08:15:00", "2024-03-01T08:15:00Z"),
		Entry("text from string", access.Text, "hello", "hello"),
		Entry("text from number", access.Text, 12.5, "12.5"),
		Entry("memo from bytes", access.Memo, []byte("long text"), "long text"),
		Entry("guid from string", access.GUID, "{6F9619FF-8B86-D011-B42D-00C04FC964FF}", "{6F9619FF-8B86-D011-B42D-00C04FC964FF}"),
	)

	DescribeTable("rejects values that do not fit their column",
		func(columnType access.ColumnType, value any) {
			_, err := convertOne(columnType, value)
			assert.ErrorIs(err, migration.ErrUnconvertible)
		},
		Entry("fractional integer", access.Integer, 1.25),
		Entry("word integer", access.Integer, "ten"),
		Entry("bool double", access.Double, true),
		Entry("unknown boolean", access.Boolean, "maybe"),
		Entry("bad date", access.DateTime, "yesterday"),
		Entry("number date", access.DateTime, 20240301),
	)

	It("drops binary columns and keeps nulls of nullable columns", func() {
		columns := []access.Column{
			{Name: "id", Type: access.Integer},
			{Name: "photo", Type: access.Binary, Nullable: true},
			{Name: "notes", Type: access.Memo, Nullable: true},
		}

		rows, err := migration.TransformData([]access.Row{
			{"id": int64(1), "photo": []byte{0xff}, "notes": nil},
		}, columns)

		assert.NoError(err)
		assert.Equal([]access.Row{{"id": int64(1), "notes": nil}}, rows)
	})

	It("names the row and column of a null in a required column", func() {
		columns := []access.Column{{Name: "name", Type: access.Text}}

		_, err := migration.TransformData([]access.Row{{"name": "a"}, {"name": nil}}, columns)

		var transformErr *migration.TransformError
		Expect(errors.As(err, &transformErr)).To(BeTrue())
		assert.Equal(1, transformErr.Row)
		assert.Equal("name", transformErr.Column)
		assert.ErrorIs(err, migration.ErrNullValue)
		assert.Equal("row 2, column name: null value in a required column", err.Error())
	})

	It("includes the offending value in the error", func() {
		columns := []access.Column{{Name: "qty", Type: access.Integer}}

		_, err := migration.TransformData([]access.Row{{"qty": "lots"}}, columns)

		assert.EqualError(err, "row 1, column qty: value cannot be converted (lots)")
	})
})

var _ = Describe("Title", func() {
	assert := assert.New(GinkgoT())

	It("joins primary key values with a dash", func() {
		table := access.Table{
			Name:        "order_lines",
			Columns:     []access.Column{{Name: "OrderNo", Type: access.Integer}, {Name: "Line", Type: access.Integer}},
			PrimaryKeys: []string{"orderno", "Line"},
		}

		assert.Equal("1042-3", migration.Title(table, access.Row{"OrderNo": int64(1042), "Line": int64(3)}, 7))
	})

	It("falls back to the row ordinal without a key", func() {
		assert.Equal("7", migration.Title(access.Table{Name: "notes"}, access.Row{"body": "x"}, 7))
	})

	It("leaves missing key values empty", func() {
		table := access.Table{Name: "t", PrimaryKeys: []string{"a", "b"}}
		assert.Equal("x-", migration.Title(table, access.Row{"a": "x"}, 1))
	})

	It("truncates long titles to 255 characters", func() {
		table := access.Table{Name: "t", Columns: []access.Column{{Name: "code", Type: access.Text}}, PrimaryKeys: []string{"code"}}
		title := migration.Title(table, access.Row{"code": strings.Repeat("é", 300)}, 1)
		assert.Equal(255, len([]rune(title)))
	})
})
