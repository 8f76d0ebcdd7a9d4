// Package fetch reads batches of journal entries past a cursor.
package fetch

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gezibash/auditfwd/pkg/cursor"
)

// Dialect selects how the journal is addressed.
type Dialect string

const (
	// DialectDB2i queries QSYS2.DISPLAY_JOURNAL on IBM i.
	DialectDB2i Dialect = "db2i"
	// DialectSQLite queries a table named after the journal.
	DialectSQLite Dialect = "sqlite"
)

// ParseDialect returns the dialect named s. Empty means db2i.
func ParseDialect(s string) (Dialect, error) {
	switch Dialect(strings.ToLower(s)) {
	case "", DialectDB2i:
		return DialectDB2i, nil
	case DialectSQLite:
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("unknown dialect %q", s)
	}
}

// StartOfChain names every receiver still on the system, oldest first, as
// the starting point of a read with no cursor.
const StartOfChain = "*CURAVLCHN"

const columns = "SYSLOG_FACILITY, SYSLOG_SEVERITY, SYSLOG_EVENT, JOURNAL_ENTRY_TYPE, RECEIVER_NAME, SEQUENCE_NUMBER"

// Request describes one batch query.
type Request struct {
	Dialect         Dialect
	Library         string
	Journal         string
	ReceiverLibrary string
	EntryTypes      []string
	After           cursor.Cursor
	Limit           int
}

// Build renders r as a parameterized statement. Identifiers that end up in
// the statement text are validated; everything else is bound.
func Build(r Request) (string, []any, error) {
	if r.Limit <= 0 {
		return "", nil, fmt.Errorf("limit must be positive, got %d", r.Limit)
	}
	if r.Journal == "" {
		return "", nil, fmt.Errorf("journal is required")
	}

	var (
		b    strings.Builder
		args []any
	)

	b.WriteString("SELECT ")
	b.WriteString(columns)

	switch r.Dialect {
	case DialectDB2i, "":
		if r.Library == "" {
			return "", nil, fmt.Errorf("library is required")
		}
		call := []string{"?", "?"}
		args = append(args, r.Library, r.Journal)
		if r.After.IsZero() {
			// Without a cursor, read the whole available receiver chain
			// rather than only the attached receiver.
			call = append(call, "STARTING_RECEIVER_NAME => ?")
			args = append(args, StartOfChain)
		} else {
			if r.ReceiverLibrary != "" {
				call = append(call, "STARTING_RECEIVER_LIBRARY => ?")
				args = append(args, r.ReceiverLibrary)
			}
			call = append(call, "STARTING_RECEIVER_NAME => ?")
			args = append(args, r.After.ReceiverID)
		}
		call = append(call, "GENERATE_SYSLOG => 'RFC5424'")
		b.WriteString(" FROM TABLE (QSYS2.DISPLAY_JOURNAL(")
		b.WriteString(strings.Join(call, ", "))
		b.WriteString(")) AS X")
	case DialectSQLite:
		if !validIdent(r.Journal) {
			return "", nil, fmt.Errorf("invalid journal name %q", r.Journal)
		}
		b.WriteString(` FROM "`)
		b.WriteString(r.Journal)
		b.WriteString(`"`)
	default:
		return "", nil, fmt.Errorf("unknown dialect %q", r.Dialect)
	}

	where := []string{"SYSLOG_EVENT IS NOT NULL"}
	if !r.After.IsZero() {
		where = append(where, "(RECEIVER_NAME > ? OR (RECEIVER_NAME = ? AND SEQUENCE_NUMBER > ?))")
		args = append(args, r.After.ReceiverID, r.After.ReceiverID, sequenceArg(r.After.Sequence))
	}
	if len(r.EntryTypes) > 0 {
		where = append(where, "JOURNAL_ENTRY_TYPE IN ("+placeholders(len(r.EntryTypes))+")")
		for _, t := range r.EntryTypes {
			args = append(args, t)
		}
	}
	b.WriteString(" WHERE ")
	b.WriteString(strings.Join(where, " AND "))
	b.WriteString(" ORDER BY RECEIVER_NAME, SEQUENCE_NUMBER")

	if r.Dialect == DialectSQLite {
		b.WriteString(" LIMIT ")
	} else {
		b.WriteString(" FETCH FIRST ")
	}
	b.WriteString(strconv.Itoa(r.Limit))
	if r.Dialect != DialectSQLite {
		b.WriteString(" ROWS ONLY")
	}

	return b.String(), args, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// sequenceArg binds a sequence number. database/sql refuses uint64 values
// with the high bit set, so those travel as decimal text.
func sequenceArg(seq uint64) any {
	if seq <= 1<<63-1 {
		return int64(seq)
	}
	return strconv.FormatUint(seq, 10)
}

func validIdent(s string) bool {
	if s == "" || len(s) > 128 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		case r == '_', r == '#', r == '@', r == '$':
		default:
			return false
		}
	}
	return true
}
