package monitor

import (
	"fmt"
	"time"
)

// State is a host monitor's position in its polling cycle.
type State int32

const (
	Idle State = iota
	Fetching
	Delivering
	Bookmarking
	Waiting
	Stopped
)

var stateNames = [...]string{
	Idle:        "idle",
	Fetching:    "fetching",
	Delivering:  "delivering",
	Bookmarking: "bookmarking",
	Waiting:     "waiting",
	Stopped:     "stopped",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// MarshalText renders the state by name in JSON and YAML output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is an operator snapshot of one host.
type Status struct {
	Host      string    `json:"host" yaml:"host"`
	State     State     `json:"state" yaml:"state"`
	Receiver  string    `json:"receiver,omitempty" yaml:"receiver,omitempty"`
	Sequence  uint64    `json:"sequence" yaml:"sequence"`
	Forwarded uint64    `json:"forwarded" yaml:"forwarded"`
	Restarts  int       `json:"restarts" yaml:"restarts"`
	LastCycle time.Time `json:"last_cycle,omitzero" yaml:"last_cycle,omitempty"`
	LastError string    `json:"last_error,omitempty" yaml:"last_error,omitempty"`
	Unsaved   bool      `json:"unsaved,omitempty" yaml:"unsaved,omitempty"`
}
