package reconcile

import (
	"fmt"
	"time"
)

// State is the driver's position in a cycle.
type State int

const (
	Idle State = iota
	Fetching
	Detecting
	Processing
	Committing
	Aborted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case Detecting:
		return "detecting"
	case Processing:
		return "processing"
	case Committing:
		return "committing"
	case Aborted:
		return "aborted"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for c := Idle; c <= Aborted; c++ {
		if c.String() == string(text) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}

// Report summarizes one cycle.
type Report struct {
	CycleID        string        `json:"cycle_id"`
	State          State         `json:"state"`
	Events         int           `json:"events"`
	Notified       int           `json:"notified"`
	NotifyFailures int           `json:"notify_failures"`
	Skipped        []string      `json:"skipped,omitempty"`
	Err            string        `json:"error,omitempty"`
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration"`
}
