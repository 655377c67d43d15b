package coordinator_test

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/absmach/flparticipant/coordinator"
	"github.com/absmach/flparticipant/coordinator/mocks"
	"github.com/absmach/flparticipant/pkg/fl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const participantID = "participant-1"

var (
	modelCfg    = fl.ModelConfig{Length: 3, DataType: fl.F32}
	updateRound = fl.RoundParams{RoundID: 1, Phase: fl.PhaseUpdate, ModelVersion: 1, Model: modelCfg}
	validUpdate = fl.LocalUpdate{Values: []float64{1, 2, 3}, DataType: fl.F32}
)

func newClient(t *testing.T, state []byte) (*coordinator.Client, *mocks.Transport) {
	t.Helper()

	transport := mocks.NewTransport(t)
	c, err := coordinator.New(transport, participantID, 2, state, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	return c, transport
}

func envelopeFor(round uint64, update fl.LocalUpdate) any {
	return mock.MatchedBy(func(env fl.UpdateEnvelope) bool {
		return env.ParticipantID == participantID &&
			env.RoundID == round &&
			env.Scalar == 2 &&
			assert.ObjectsAreEqual(update, env.Update) &&
			!env.SentAt.IsZero()
	})
}

func TestInitialFlags(t *testing.T) {
	t.Parallel()

	c, _ := newClient(t, nil)

	assert.True(t, c.MadeProgress())
	assert.False(t, c.HasNewGlobalModel())
	assert.False(t, c.ShouldSubmitModel())
}

func TestTickTracksRounds(t *testing.T) {
	t.Parallel()

	c, transport := newClient(t, nil)
	transport.On("RoundParams", mock.Anything).Return(updateRound, nil).Twice()

	c.Tick(t.Context())
	assert.True(t, c.HasNewGlobalModel())
	assert.True(t, c.ShouldSubmitModel())
	assert.True(t, c.MadeProgress())

	c.Tick(t.Context())
	assert.False(t, c.MadeProgress())

	aggregating := updateRound
	aggregating.Phase = fl.PhaseAggregate
	transport.On("RoundParams", mock.Anything).Return(aggregating, nil).Once()

	c.Tick(t.Context())
	assert.True(t, c.MadeProgress())
	assert.False(t, c.ShouldSubmitModel())

	transport.On("RoundParams", mock.Anything).Return(fl.RoundParams{}, errors.New("connection refused")).Once()
	c.Tick(t.Context())
	assert.False(t, c.MadeProgress())
}

func TestFetchGlobalModel(t *testing.T) {
	t.Parallel()

	c, transport := newClient(t, nil)
	transport.On("RoundParams", mock.Anything).Return(updateRound, nil).Once()
	c.Tick(t.Context())

	cases := []struct {
		desc   string
		model  *fl.GlobalModel
		err    error
		hasNew bool
		empty  bool
		want   error
	}{
		{
			desc:   "unavailable",
			err:    fl.ErrGlobalModelUnavailable,
			hasNew: true,
			empty:  true,
			want:   fl.ErrGlobalModelUnavailable,
		},
		{
			desc:   "data type mismatch",
			model:  &fl.GlobalModel{Version: 1, DataType: fl.F64, Values: []float64{1, 2, 3}},
			hasNew: true,
			empty:  true,
			want:   fl.ErrGlobalModelDataTypeMismatch,
		},
		{
			desc:   "older than announced",
			model:  &fl.GlobalModel{Version: 0, DataType: fl.F32, Values: []float64{1, 2, 3}},
			hasNew: true,
			empty:  true,
			want:   fl.ErrGlobalModelUnavailable,
		},
		{
			desc:  "present",
			model: &fl.GlobalModel{Version: 1, DataType: fl.F32, Values: []float64{1, 2, 3}},
		},
		{
			desc:  "no model yet",
			empty: true,
		},
	}

	for _, tc := range cases {
		transport.On("GlobalModel", mock.Anything).Return(tc.model, tc.err).Once()

		data, err := c.FetchGlobalModel(t.Context())
		if tc.want != nil {
			require.ErrorIs(t, err, tc.want, tc.desc)
		} else {
			require.NoError(t, err, tc.desc)
		}
		assert.Equal(t, tc.empty, len(data) == 0, tc.desc)
		assert.Equal(t, tc.hasNew, c.HasNewGlobalModel(), tc.desc)

		if !tc.empty {
			got, err := fl.DecodeGlobalModel(data)
			require.NoError(t, err, tc.desc)
			assert.Equal(t, *tc.model, got, tc.desc)
		}
	}
}

func TestFetchGlobalModelWaitsForAnnouncedVersion(t *testing.T) {
	t.Parallel()

	c, transport := newClient(t, nil)
	announced := updateRound
	announced.ModelVersion = 2
	transport.On("RoundParams", mock.Anything).Return(announced, nil).Once()
	c.Tick(t.Context())

	stale := &fl.GlobalModel{Version: 1, DataType: fl.F32, Values: []float64{1, 1, 1}}
	transport.On("GlobalModel", mock.Anything).Return(stale, nil).Once()
	data, err := c.FetchGlobalModel(t.Context())
	require.ErrorIs(t, err, fl.ErrGlobalModelUnavailable)
	assert.Empty(t, data)
	assert.True(t, c.HasNewGlobalModel())

	fresh := &fl.GlobalModel{Version: 2, DataType: fl.F32, Values: []float64{2, 2, 2}}
	transport.On("GlobalModel", mock.Anything).Return(fresh, nil).Once()
	data, err = c.FetchGlobalModel(t.Context())
	require.NoError(t, err)
	assert.False(t, c.HasNewGlobalModel())

	got, err := fl.DecodeGlobalModel(data)
	require.NoError(t, err)
	assert.Equal(t, *fresh, got)
}

func TestSubmitLocalModel(t *testing.T) {
	t.Parallel()

	c, transport := newClient(t, nil)

	err := c.SubmitLocalModel(t.Context(), validUpdate)
	require.ErrorIs(t, err, fl.ErrUninitializedParticipant)

	transport.On("RoundParams", mock.Anything).Return(updateRound, nil)
	c.Tick(t.Context())

	cases := []struct {
		desc   string
		update fl.LocalUpdate
		err    error
	}{
		{desc: "wrong length", update: fl.LocalUpdate{Values: []float64{1}, DataType: fl.F32}, err: fl.ErrLocalModelLengthMismatch},
		{desc: "wrong data type", update: fl.LocalUpdate{Values: []float64{1, 2, 3}, DataType: fl.I64}, err: fl.ErrLocalModelDataTypeMismatch},
		{desc: "valid", update: validUpdate},
	}
	for _, tc := range cases {
		err := c.SubmitLocalModel(t.Context(), tc.update)
		assert.ErrorIs(t, err, tc.err, tc.desc)
	}
	assert.False(t, c.ShouldSubmitModel())

	transport.On("SendUpdate", mock.Anything, envelopeFor(1, validUpdate)).
		Return(errors.New("timeout")).Once()
	c.Tick(t.Context())
	assert.False(t, c.MadeProgress())
	assert.False(t, c.ShouldSubmitModel())

	transport.On("SendUpdate", mock.Anything, envelopeFor(1, validUpdate)).Return(nil).Once()
	c.Tick(t.Context())
	assert.True(t, c.MadeProgress())
	assert.False(t, c.ShouldSubmitModel())

	c.Tick(t.Context())
	assert.False(t, c.MadeProgress())
	transport.AssertNumberOfCalls(t, "SendUpdate", 2)
}

func TestRejectedParticipant(t *testing.T) {
	t.Parallel()

	c, transport := newClient(t, nil)
	transport.On("RoundParams", mock.Anything).Return(updateRound, nil)
	c.Tick(t.Context())

	require.NoError(t, c.SubmitLocalModel(t.Context(), validUpdate))
	transport.On("SendUpdate", mock.Anything, mock.Anything).Return(fl.ErrUninitializedParticipant).Once()
	c.Tick(t.Context())

	assert.True(t, c.MadeProgress())
	assert.True(t, c.ShouldSubmitModel())
	assert.False(t, c.HasNewGlobalModel())

	data, err := c.FetchGlobalModel(t.Context())
	require.NoError(t, err)
	assert.Empty(t, data)
	transport.AssertNotCalled(t, "GlobalModel", mock.Anything)

	err = c.SubmitLocalModel(t.Context(), validUpdate)
	assert.ErrorIs(t, err, fl.ErrUninitializedParticipant)

	state, err := c.Save()
	require.NoError(t, err)
	info, err := coordinator.Inspect(state)
	require.NoError(t, err)
	assert.True(t, info.Rejected)

	restored, _ := newClient(t, state)
	assert.False(t, restored.HasNewGlobalModel())
	assert.True(t, restored.ShouldSubmitModel())
	err = restored.SubmitLocalModel(t.Context(), validUpdate)
	assert.ErrorIs(t, err, fl.ErrUninitializedParticipant)
}

func TestRoundChangeDropsPendingUpdate(t *testing.T) {
	t.Parallel()

	c, transport := newClient(t, nil)
	aggregating := updateRound
	aggregating.Phase = fl.PhaseAggregate
	transport.On("RoundParams", mock.Anything).Return(updateRound, nil).Once()
	c.Tick(t.Context())

	require.NoError(t, c.SubmitLocalModel(t.Context(), validUpdate))

	next := updateRound
	next.RoundID = 2
	next.Phase = fl.PhaseIdle
	transport.On("RoundParams", mock.Anything).Return(next, nil).Once()
	c.Tick(t.Context())
	assert.True(t, c.HasNewGlobalModel())

	next.Phase = fl.PhaseUpdate
	transport.On("RoundParams", mock.Anything).Return(next, nil).Once()
	c.Tick(t.Context())

	assert.True(t, c.ShouldSubmitModel())
	transport.AssertNotCalled(t, "SendUpdate", mock.Anything, mock.Anything)
}

func TestSaveAndRestore(t *testing.T) {
	t.Parallel()

	c, transport := newClient(t, nil)
	transport.On("RoundParams", mock.Anything).Return(updateRound, nil).Once()
	transport.On("SendUpdate", mock.Anything, mock.Anything).Return(nil).Once()
	c.Tick(t.Context())
	require.NoError(t, c.SubmitLocalModel(t.Context(), validUpdate))

	transport.On("RoundParams", mock.Anything).Return(updateRound, nil).Once()
	c.Tick(t.Context())

	state, err := c.Save()
	require.NoError(t, err)

	restored, transport := newClient(t, state)
	assert.True(t, restored.HasNewGlobalModel())
	assert.False(t, restored.ShouldSubmitModel())

	transport.On("RoundParams", mock.Anything).Return(updateRound, nil).Once()
	restored.Tick(t.Context())
	assert.False(t, restored.MadeProgress())
	assert.False(t, restored.ShouldSubmitModel())
}

func TestRestoreInvalidState(t *testing.T) {
	t.Parallel()

	other, err := coordinator.New(mocks.NewTransport(t), "participant-2", 1, nil, nil)
	require.NoError(t, err)
	foreign, err := other.Save()
	require.NoError(t, err)

	cases := []struct {
		desc  string
		state []byte
	}{
		{desc: "garbage", state: []byte{0xff, 0x00, 0x13}},
		{desc: "other participant", state: foreign},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()

			_, err := coordinator.New(mocks.NewTransport(t), participantID, 1, tc.state, nil)
			assert.ErrorIs(t, err, coordinator.ErrInvalidState)
		})
	}
}

func TestInspect(t *testing.T) {
	t.Parallel()

	c, transport := newClient(t, nil)
	transport.On("RoundParams", mock.Anything).Return(updateRound, nil).Once()
	c.Tick(t.Context())
	require.NoError(t, c.SubmitLocalModel(t.Context(), validUpdate))

	state, err := c.Save()
	require.NoError(t, err)

	info, err := coordinator.Inspect(state)
	require.NoError(t, err)
	assert.Equal(t, participantID, info.ParticipantID)
	require.NotNil(t, info.Params)
	assert.Equal(t, updateRound.RoundID, info.Params.RoundID)
	assert.False(t, info.Submitted)
	assert.Equal(t, uint64(1), info.PendingRound)
	assert.Equal(t, 3, info.PendingLength)

	_, err = coordinator.Inspect([]byte{0xff})
	assert.ErrorIs(t, err, coordinator.ErrInvalidState)
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		desc string
		cfg  coordinator.Config
		ok   bool
	}{
		{desc: "http", cfg: coordinator.Config{Address: "http://localhost:7070", Transport: coordinator.TransportHTTP, Scalar: 1}, ok: true},
		{desc: "mqtt", cfg: coordinator.Config{Transport: coordinator.TransportMQTT, Scalar: 0.5}, ok: true},
		{desc: "standalone", cfg: coordinator.Config{Standalone: true, Scalar: 1}, ok: true},
		{desc: "zero scalar", cfg: coordinator.Config{Transport: coordinator.TransportMQTT}},
		{desc: "missing address", cfg: coordinator.Config{Transport: coordinator.TransportHTTP, Scalar: 1}},
		{desc: "unknown transport", cfg: coordinator.Config{Transport: "grpc", Scalar: 1}},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()

			err := tc.cfg.Validate()
			if tc.ok {
				assert.NoError(t, err)

				return
			}
			assert.Error(t, err)
		})
	}
}
