// Package cursor defines the journal position a host monitor resumes from.
package cursor

import (
	"cmp"
	"errors"
	"fmt"
)

// ErrRegression is returned by Advance when the target is not strictly after
// the current position.
var ErrRegression = errors.New("cursor would not advance")

// Cursor identifies the last delivered journal entry of a host.
//
// Sequence numbers only increase within one receiver; a new receiver restarts
// them, so positions are ordered by receiver first and sequence second. The
// zero value means no position is known yet.
type Cursor struct {
	ReceiverID string
	Sequence   uint64
}

// New returns a cursor at the given receiver and sequence.
func New(receiverID string, sequence uint64) Cursor {
	return Cursor{ReceiverID: receiverID, Sequence: sequence}
}

// IsZero reports whether c is the absent position.
func (c Cursor) IsZero() bool {
	return c.ReceiverID == ""
}

// Compare returns -1, 0 or +1 as c sorts before, equal to, or after o,
// comparing receiver names byte-wise. IBM i orders receivers in EBCDIC, so
// Compare is only a stable sort key; use Precedes for journal order.
func (c Cursor) Compare(o Cursor) int {
	if r := cmp.Compare(c.ReceiverID, o.ReceiverID); r != 0 {
		return r
	}
	return cmp.Compare(c.Sequence, o.Sequence)
}

// Less reports whether c sorts strictly before o under Compare.
func (c Cursor) Less(o Cursor) bool {
	return c.Compare(o) < 0
}

// Precedes reports whether o may follow c in journal order. Within one
// receiver the sequence must increase. A different receiver is accepted
// whatever its name, since receiver order is the journal's own collation and
// only the query's ORDER BY knows it.
func (c Cursor) Precedes(o Cursor) bool {
	if o.IsZero() {
		return false
	}
	if c.IsZero() || c.ReceiverID != o.ReceiverID {
		return true
	}
	return c.Sequence < o.Sequence
}

// Advance returns to if it follows c in journal order.
func (c Cursor) Advance(to Cursor) (Cursor, error) {
	if !c.Precedes(to) {
		return c, fmt.Errorf("%w: %s -> %s", ErrRegression, c, to)
	}
	return to, nil
}

func (c Cursor) String() string {
	if c.IsZero() {
		return "<start>"
	}
	return fmt.Sprintf("%s/%d", c.ReceiverID, c.Sequence)
}
