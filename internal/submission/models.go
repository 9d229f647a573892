package submission

import (
	"fmt"
	"time"

	"github.com/abduss/stopsurvey/internal/objectstore"
)

// State is a step of the submission pipeline.
type State int

const (
	StateCollecting State = iota
	StateValidating
	StateUploading
	StateAppending
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCollecting:
		return "collecting"
	case StateValidating:
		return "validating"
	case StateUploading:
		return "uploading"
	case StateAppending:
		return "appending"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name produced by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	for st := StateCollecting; st <= StateFailed; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown submission state %q", text)
}

// MediaRef is an uploaded media reference tied to its 1-based attachment index.
type MediaRef struct {
	Index int `json:"index"`
	objectstore.Reference
}

// Resume carries what an earlier failed attempt already committed. SubmissionID and
// SubmittedAt keep the retried items' keys identical to the first attempt's.
type Resume struct {
	SubmissionID string     `json:"submission_id"`
	SubmittedAt  time.Time  `json:"submitted_at"`
	EventTime    time.Time  `json:"event_time"`
	References   []MediaRef `json:"references"`
}

// Result describes a completed submission.
type Result struct {
	SubmissionID string                  `json:"submission_id"`
	Variant      string                  `json:"variant"`
	State        State                   `json:"state"`
	LedgerKey    string                  `json:"ledger_key"`
	Header       []string                `json:"header"`
	Row          []string                `json:"row"`
	References   []objectstore.Reference `json:"references"`
	EventTime    time.Time               `json:"event_time"`
	SubmittedAt  time.Time               `json:"submitted_at"`
}
