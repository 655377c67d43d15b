package fl

import "errors"

var (
	ErrNoUpdates                   = errors.New("no updates provided for aggregation")
	ErrInvalidDataType             = errors.New("invalid data type")
	ErrGlobalModelUnavailable      = errors.New("global model unavailable")
	ErrGlobalModelDataTypeMismatch = errors.New("global model data type mismatch")
	ErrLocalModelLengthMismatch    = errors.New("local model length mismatch")
	ErrLocalModelDataTypeMismatch  = errors.New("local model data type mismatch")
	ErrUninitializedParticipant    = errors.New("uninitialized participant")
)
