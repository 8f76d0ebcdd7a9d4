package fetch

// The sqlite dialect is always available.
import _ "modernc.org/sqlite"
