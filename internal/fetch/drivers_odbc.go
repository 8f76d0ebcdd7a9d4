//go:build odbc

package fetch

// The ODBC driver needs cgo and unixODBC, so it is only linked into builds
// tagged odbc.
import _ "github.com/alexbrainman/odbc"
