package pipeline

import (
	"fmt"
	"time"

	"orbitcam/internal/models"
)

// Kind identifies the pipeline step that failed.
type Kind int

const (
	KindCapture Kind = iota + 1
	KindClassify
	KindResolve
	KindPersist
)

func (k Kind) String() string {
	switch k {
	case KindCapture:
		return "capture"
	case KindClassify:
		return "classify"
	case KindResolve:
		return "resolve"
	case KindPersist:
		return "persist"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// StepError is the failure of one step of one iteration.
type StepError struct {
	Kind      Kind
	Timestamp time.Time
	Err       error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s failed at %s: %v", e.Kind, models.FormatTimestamp(e.Timestamp), e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
