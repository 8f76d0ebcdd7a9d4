// Package audit holds the journal entry type passed from fetchers to sinks.
package audit

import "github.com/gezibash/auditfwd/pkg/cursor"

// SeverityUnknown marks an entry whose backend reported no severity.
const SeverityUnknown = -1

// Entry is one rendered journal entry. It lives only for the duration of one
// delivery cycle.
type Entry struct {
	Facility  int
	Severity  int
	Message   string
	EntryType string
	Position  cursor.Cursor
}

// Attributes returns the entry as a flat map, keyed the way severity rules
// refer to entry fields.
func (e Entry) Attributes() map[string]any {
	return map[string]any{
		"type":     e.EntryType,
		"severity": int64(e.Severity),
		"facility": int64(e.Facility),
		"receiver": e.Position.ReceiverID,
		"sequence": e.Position.Sequence,
		"message":  e.Message,
	}
}
