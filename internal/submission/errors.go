package submission

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidResume reports preserved references that do not fit the record's media.
var ErrInvalidResume = errors.New("invalid resume references")

// Failure is returned when a submission stops before Done. References lists every media
// item committed to the store so the caller can resume without re-uploading.
type Failure struct {
	Stage        State
	SubmissionID string
	SubmittedAt  time.Time
	EventTime    time.Time
	References   []MediaRef
	Err          error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("submission failed while %s: %v", f.Stage, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Resume builds the resume payload for a retry of the same submission.
func (f *Failure) Resume() Resume {
	return Resume{
		SubmissionID: f.SubmissionID,
		SubmittedAt:  f.SubmittedAt,
		EventTime:    f.EventTime,
		References:   append([]MediaRef(nil), f.References...),
	}
}

// AsFailure extracts a *Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
