package fetch

import (
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gezibash/auditfwd/pkg/audit"
	"github.com/gezibash/auditfwd/pkg/cursor"
)

// sequence scans SEQUENCE_NUMBER. DB2 reports DECIMAL(21,0), which drivers
// hand back as text or bytes; sqlite hands back integers.
type sequence uint64

func (s *sequence) Scan(src any) error {
	switch v := src.(type) {
	case int64:
		if v < 0 {
			return fmt.Errorf("negative sequence %d", v)
		}
		*s = sequence(v)
	case float64:
		if v < 0 || v != math.Trunc(v) || v > math.MaxUint64 {
			return fmt.Errorf("sequence %v is not a non-negative integer", v)
		}
		*s = sequence(v)
	case []byte:
		return s.parse(string(v))
	case string:
		return s.parse(v)
	case nil:
		return fmt.Errorf("null sequence")
	default:
		return fmt.Errorf("unsupported sequence type %T", src)
	}
	return nil
}

func (s *sequence) parse(text string) error {
	text = strings.TrimSpace(text)
	// Decimal renderings may carry a zero fraction.
	if i := strings.IndexByte(text, '.'); i >= 0 {
		if strings.Trim(text[i+1:], "0") != "" {
			return fmt.Errorf("sequence %q has a fraction", text)
		}
		text = text[:i]
	}
	n, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return fmt.Errorf("sequence %q: %w", text, err)
	}
	*s = sequence(n)
	return nil
}

// row is the fixed column layout every dialect returns.
type row struct {
	facility  sql.NullInt64
	severity  sql.NullInt64
	event     sql.NullString
	entryType sql.NullString
	receiver  sql.NullString
	sequence  sequence
}

func (r *row) dest() []any {
	return []any{&r.facility, &r.severity, &r.event, &r.entryType, &r.receiver, &r.sequence}
}

func (r *row) entry() (audit.Entry, error) {
	receiver := strings.TrimSpace(r.receiver.String)
	if !r.receiver.Valid || receiver == "" {
		return audit.Entry{}, fmt.Errorf("row without receiver name")
	}
	e := audit.Entry{
		Facility:  int(r.facility.Int64),
		Severity:  audit.SeverityUnknown,
		Message:   r.event.String,
		EntryType: strings.TrimSpace(r.entryType.String),
		Position:  cursor.New(receiver, uint64(r.sequence)),
	}
	if r.severity.Valid {
		e.Severity = int(r.severity.Int64)
	}
	return e, nil
}
