package migration

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/louiss0/access-sharepoint-migrator/access"
)

var (
	ErrNullValue     = errors.New("null value in a required column")
	ErrUnconvertible = errors.New("value cannot be converted")
)

const (
	maxTitleLength = 255
	titleSeparator = "-"
)

var (
	dateLayouts   = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02", "01/02/2006 15:04:05", "01/02/2006"}
	truthyStrings = []string{"yes", "y", "on", "-1"}
	falsyStrings  = []string{"no", "n", "off"}
)

// TransformError names the row and column a value could not be migrated from.
type TransformError struct {
	// Row is the zero-based position in the rows passed to TransformData.
	Row    int
	Column string
	Value  any
	Err    error
}

func (e *TransformError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("row %d, column %s: %v", e.Row+1, e.Column, e.Err)
	}
	return fmt.Sprintf("row %d, column %s: %v (%v)", e.Row+1, e.Column, e.Err, e.Value)
}

func (e *TransformError) Unwrap() error { return e.Err }

// TransformData converts rows into the value representation SharePoint expects for each
// column type. Keys stay the source column names; binary columns are dropped.
func TransformData(rows []access.Row, columns []access.Column) ([]access.Row, error) {
	out := make([]access.Row, 0, len(rows))

	for i, row := range rows {
		converted := make(access.Row, len(columns))

		for _, column := range columns {
			if column.Type == access.Binary {
				continue
			}

			value := row[column.Name]
			if value == nil {
				if !column.Nullable {
					return nil, &TransformError{Row: i, Column: column.Name, Err: ErrNullValue}
				}
				converted[column.Name] = nil
				continue
			}

			v, err := convert(value, column.Type)
			if err != nil {
				return nil, &TransformError{Row: i, Column: column.Name, Value: value, Err: err}
			}
			converted[column.Name] = v
		}

		out = append(out, converted)
	}

	return out, nil
}

func convert(value any, columnType access.ColumnType) (any, error) {
	if raw, ok := value.([]byte); ok {
		value = string(raw)
	}

	switch columnType {
	case access.Integer:
		return toInt64(value)
	case access.Double, access.Currency:
		return toFloat64(value)
	case access.Boolean:
		return toBool(value)
	case access.DateTime:
		return toDateTime(value)
	default:
		return toText(value), nil
	}
}

func toInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		if uint64(v) > math.MaxInt64 {
			return 0, ErrUnconvertible
		}
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, ErrUnconvertible
		}
		return int64(v), nil
	case float32:
		return wholeNumber(float64(v))
	case float64:
		return wholeNumber(v)
	case bool:
		return lo.Ternary[int64](v, 1, 0), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, ErrUnconvertible
		}
		return n, nil
	default:
		return 0, ErrUnconvertible
	}
}

func wholeNumber(f float64) (int64, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, ErrUnconvertible
	}
	return int64(f), nil
}

func toFloat64(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, ErrUnconvertible
		}
		return f, nil
	case bool:
		return 0, ErrUnconvertible
	default:
		n, err := toInt64(v)
		return float64(n), err
	}
}

func toBool(value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		s := strings.ToLower(strings.TrimSpace(v))
		if lo.Contains(truthyStrings, s) {
			return true, nil
		}
		if lo.Contains(falsyStrings, s) {
			return false, nil
		}
		b, err := strconv.ParseBool(s)
		if err != nil {
			return false, ErrUnconvertible
		}
		return b, nil
	default:
		n, err := toInt64(v)
		return n != 0, err
	}
}

func toDateTime(value any) (string, error) {
	switch v := value.(type) {
	case time.Time:
		return v.UTC().Format(time.RFC3339), nil
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC().Format(time.RFC3339), nil
			}
		}
	}
	return "", ErrUnconvertible
}

func toText(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}

// Title builds the SharePoint Title of a row: its primary key values joined with "-",
// or the 1-based ordinal of the row in its table when there is no key.
func Title(table access.Table, row access.Row, ordinal int) string {
	if len(table.PrimaryKeys) == 0 {
		return strconv.Itoa(ordinal)
	}

	parts := lo.Map(table.PrimaryKeys, func(key string, _ int) string {
		if column, ok := table.Column(key); ok {
			key = column.Name
		}
		value, ok := row[key]
		if !ok || value == nil {
			return ""
		}
		return toText(value)
	})

	title := []rune(strings.Join(parts, titleSeparator))
	if len(title) > maxTitleLength {
		title = title[:maxTitleLength]
	}
	return string(title)
}
