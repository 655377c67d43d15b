package fl_test

import (
	"encoding/json"
	"testing"

	"github.com/absmach/flparticipant/pkg/fl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalUpdateValidate(t *testing.T) {
	t.Parallel()

	cfg := fl.ModelConfig{Length: 3, DataType: fl.F32}

	tests := []struct {
		name   string
		update fl.LocalUpdate
		err    error
	}{
		{
			name:   "matching update",
			update: fl.LocalUpdate{Values: []float64{1, 2, 3}, DataType: fl.F32},
		},
		{
			name:   "length mismatch",
			update: fl.LocalUpdate{Values: []float64{1, 2}, DataType: fl.F32},
			err:    fl.ErrLocalModelLengthMismatch,
		},
		{
			name:   "data type mismatch",
			update: fl.LocalUpdate{Values: []float64{1, 2, 3}, DataType: fl.F64},
			err:    fl.ErrLocalModelDataTypeMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.update.Validate(cfg)
			if tt.err == nil {
				assert.NoError(t, err)

				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestDataTypeText(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(fl.RoundParams{Model: fl.ModelConfig{DataType: fl.I64}})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"data_type":"i64"`)

	var params fl.RoundParams
	require.NoError(t, json.Unmarshal([]byte(`{"round_id":4,"model":{"length":2,"data_type":"float32"}}`), &params))
	assert.Equal(t, fl.F32, params.Model.DataType)
	assert.Equal(t, uint64(4), params.RoundID)

	_, err = fl.ParseDataType("complex128")
	assert.ErrorIs(t, err, fl.ErrInvalidDataType)
}

func TestGlobalModelCodec(t *testing.T) {
	t.Parallel()

	model := fl.GlobalModel{Version: 7, DataType: fl.F64, Values: []float64{0.5, -1.25}}

	data, err := fl.EncodeGlobalModel(model)
	require.NoError(t, err)

	decoded, err := fl.DecodeGlobalModel(data)
	require.NoError(t, err)
	assert.Equal(t, model, decoded)

	_, err = fl.DecodeGlobalModel([]byte{0xff, 0x00})
	assert.Error(t, err)
}

func TestFedAvgAggregator(t *testing.T) {
	t.Parallel()

	agg := fl.NewFedAvgAggregator()

	_, err := agg.Aggregate(nil)
	require.ErrorIs(t, err, fl.ErrNoUpdates)

	got, err := agg.Aggregate([]fl.UpdateEnvelope{
		{Scalar: 1, Update: fl.LocalUpdate{Values: []float64{1, 2}}},
		{Scalar: 3, Update: fl.LocalUpdate{Values: []float64{5, 6}}},
	})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{4, 5}, got, 1e-9)

	_, err = agg.Aggregate([]fl.UpdateEnvelope{
		{Update: fl.LocalUpdate{Values: []float64{1, 2}}},
		{Update: fl.LocalUpdate{Values: []float64{1}}},
	})
	assert.ErrorIs(t, err, fl.ErrLocalModelLengthMismatch)
}
