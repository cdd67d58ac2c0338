//go:build windows || cgo

package access

// The Access ODBC driver needs cgo everywhere except Windows.
import _ "github.com/alexbrainman/odbc"
