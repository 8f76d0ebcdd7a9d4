package cursor

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed is returned by Decode for content that is not a usable state.
var ErrMalformed = errors.New("malformed cursor state")

// State is the persisted form of a Cursor.
type State struct {
	LastReceiverID string `json:"last_receiver_id"`
	LastSequence   uint64 `json:"last_sequence"`
}

// legacyState is the layout written by the first generation of the monitor.
type legacyState struct {
	LastReceiverName   *string `json:"last_receiver_name"`
	LastSequenceNumber *uint64 `json:"last_sequence_number"`
}

// Encode serializes c as a JSON State.
func Encode(c Cursor) ([]byte, error) {
	if c.IsZero() {
		return nil, fmt.Errorf("%w: empty receiver", ErrMalformed)
	}
	return json.Marshal(State{LastReceiverID: c.ReceiverID, LastSequence: c.Sequence})
}

// Decode parses a JSON State. The legacy last_receiver_name and
// last_sequence_number keys are accepted when the current ones are absent.
func Decode(data []byte) (Cursor, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if _, ok := raw["last_receiver_id"]; ok {
		var s State
		if err := json.Unmarshal(data, &s); err != nil {
			return Cursor{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if s.LastReceiverID == "" {
			return Cursor{}, fmt.Errorf("%w: empty receiver", ErrMalformed)
		}
		return New(s.LastReceiverID, s.LastSequence), nil
	}

	var ls legacyState
	if err := json.Unmarshal(data, &ls); err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if ls.LastReceiverName == nil || *ls.LastReceiverName == "" || ls.LastSequenceNumber == nil {
		return Cursor{}, fmt.Errorf("%w: missing receiver or sequence", ErrMalformed)
	}
	return New(*ls.LastReceiverName, *ls.LastSequenceNumber), nil
}
