package fl

import (
	"fmt"
	"strings"
	"time"
)

// DataType is the element type a coordinator expects for model values.
type DataType uint8

const (
	F32 DataType = iota
	F64
	I32
	I64
)

func (dt DataType) String() string {
	switch dt {
	case F32:
		return "f32"
	case F64:
		return "f64"
	case I32:
		return "i32"
	case I64:
		return "i64"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(dt))
	}
}

func (dt DataType) MarshalText() ([]byte, error) {
	switch dt {
	case F32, F64, I32, I64:
		return []byte(dt.String()), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidDataType, uint8(dt))
	}
}

func (dt *DataType) UnmarshalText(text []byte) error {
	parsed, err := ParseDataType(string(text))
	if err != nil {
		return err
	}
	*dt = parsed

	return nil
}

func ParseDataType(s string) (DataType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "f32", "float32":
		return F32, nil
	case "f64", "float64":
		return F64, nil
	case "i32", "int32":
		return I32, nil
	case "i64", "int64":
		return I64, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidDataType, s)
	}
}

type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseUpdate    Phase = "update"
	PhaseAggregate Phase = "aggregate"
)

// ModelConfig describes the shape of the model a round aggregates.
type ModelConfig struct {
	Length   int      `json:"length"    cbor:"length"`
	DataType DataType `json:"data_type" cbor:"data_type"`
}

// RoundParams is what the coordinator publishes about the round in progress.
type RoundParams struct {
	RoundID      uint64      `json:"round_id"      cbor:"round_id"`
	Phase        Phase       `json:"phase"         cbor:"phase"`
	ModelVersion uint64      `json:"model_version" cbor:"model_version"`
	Model        ModelConfig `json:"model"         cbor:"model"`
}

type GlobalModel struct {
	Version  uint64    `json:"version"   cbor:"version"`
	DataType DataType  `json:"data_type" cbor:"data_type"`
	Values   []float64 `json:"values"    cbor:"values"`
}

// LocalUpdate is the result of one round of local training.
type LocalUpdate struct {
	Values   []float64 `json:"values"          cbor:"values"`
	DataType DataType  `json:"data_type"       cbor:"data_type"`
	Shape    []int     `json:"shape,omitempty" cbor:"shape,omitempty"`
}

func (u LocalUpdate) Len() int {
	return len(u.Values)
}

func (u LocalUpdate) Empty() bool {
	return len(u.Values) == 0
}

// Validate checks the update against the model config of the current round.
func (u LocalUpdate) Validate(cfg ModelConfig) error {
	if u.DataType != cfg.DataType {
		return fmt.Errorf("%w: expected %s, got %s", ErrLocalModelDataTypeMismatch, cfg.DataType, u.DataType)
	}
	if cfg.Length > 0 && len(u.Values) != cfg.Length {
		return fmt.Errorf("%w: expected %d values, got %d", ErrLocalModelLengthMismatch, cfg.Length, len(u.Values))
	}

	return nil
}

// UpdateEnvelope is the payload sent to the coordinator for a local update.
type UpdateEnvelope struct {
	ParticipantID string      `json:"participant_id" cbor:"participant_id"`
	RoundID       uint64      `json:"round_id"       cbor:"round_id"`
	ModelVersion  uint64      `json:"model_version"  cbor:"model_version"`
	Scalar        float64     `json:"scalar"         cbor:"scalar"`
	Update        LocalUpdate `json:"update"         cbor:"update"`
	SentAt        time.Time   `json:"sent_at"        cbor:"sent_at"`
}

type Aggregator interface {
	Aggregate(updates []UpdateEnvelope) ([]float64, error)
}
