package participant

import (
	"errors"

	"github.com/absmach/flparticipant/pkg/fl"
)

var (
	ErrAlreadyRunning = errors.New("participant loop already running")
	ErrStepPanic      = errors.New("participant step panicked")
)

// FailureKind classifies errors returned by the coordinator.
type FailureKind uint8

const (
	NoFailure FailureKind = iota
	Unavailable
	DataTypeMismatch
	LengthMismatch
	Uninitialized
	Unclassified
)

func (k FailureKind) String() string {
	switch k {
	case NoFailure:
		return "none"
	case Unavailable:
		return "unavailable"
	case DataTypeMismatch:
		return "data_type_mismatch"
	case LengthMismatch:
		return "length_mismatch"
	case Uninitialized:
		return "uninitialized"
	default:
		return "unclassified"
	}
}

// Recoverable reports whether the loop keeps going after a failure of kind k.
func (k FailureKind) Recoverable() bool {
	switch k {
	case Unavailable, DataTypeMismatch, LengthMismatch:
		return true
	default:
		return false
	}
}

func Classify(err error) FailureKind {
	switch {
	case err == nil:
		return NoFailure
	case errors.Is(err, fl.ErrGlobalModelUnavailable):
		return Unavailable
	case errors.Is(err, fl.ErrGlobalModelDataTypeMismatch), errors.Is(err, fl.ErrLocalModelDataTypeMismatch):
		return DataTypeMismatch
	case errors.Is(err, fl.ErrLocalModelLengthMismatch):
		return LengthMismatch
	case errors.Is(err, fl.ErrUninitializedParticipant):
		return Uninitialized
	default:
		return Unclassified
	}
}
