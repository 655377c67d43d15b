package mqtt_test

import (
	"encoding/json"
	"errors"
	"testing"

	transport "github.com/absmach/flparticipant/coordinator/mqtt"
	"github.com/absmach/flparticipant/pkg/fl"
	"github.com/absmach/flparticipant/pkg/mqtt"
	"github.com/absmach/flparticipant/pkg/mqtt/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	domainID      = "domain-1"
	channelID     = "channel-1"
	participantID = "participant-1"

	paramsTopic  = "m/domain-1/c/channel-1/fl/rounds/params"
	modelTopic   = "m/domain-1/c/channel-1/fl/models/global"
	updatesTopic = "m/domain-1/c/channel-1/fl/updates"
	statusTopic  = "m/domain-1/c/channel-1/fl/participants/status"
)

func newTransport(t *testing.T) (*transport.Transport, *mocks.PubSub, map[string]mqtt.Handler) {
	t.Helper()

	ps := mocks.NewPubSub(t)
	handlers := make(map[string]mqtt.Handler)
	capture := func(args mock.Arguments) {
		handlers[args.String(1)] = args.Get(2).(mqtt.Handler)
	}
	ps.On("Subscribe", mock.Anything, paramsTopic, mock.Anything).Run(capture).Return(nil).Once()
	ps.On("Subscribe", mock.Anything, modelTopic, mock.Anything).Run(capture).Return(nil).Once()
	ps.On("Publish", mock.Anything, statusTopic, mock.Anything).Return(nil).Once()

	tr, err := transport.New(t.Context(), ps, domainID, channelID, participantID, nil)
	require.NoError(t, err)

	return tr, ps, handlers
}

func payload(t *testing.T, v any) []byte {
	t.Helper()

	data, err := json.Marshal(v)
	require.NoError(t, err)

	return data
}

func TestRoundParams(t *testing.T) {
	t.Parallel()

	tr, _, handlers := newTransport(t)

	_, err := tr.RoundParams(t.Context())
	assert.Error(t, err)

	want := fl.RoundParams{RoundID: 3, Phase: fl.PhaseUpdate, ModelVersion: 2, Model: fl.ModelConfig{Length: 4, DataType: fl.I32}}
	require.NoError(t, handlers[paramsTopic](paramsTopic, payload(t, want)))

	got, err := tr.RoundParams(t.Context())
	require.NoError(t, err)
	assert.Equal(t, want, got)

	assert.Error(t, handlers[paramsTopic](paramsTopic, []byte("not json")))
	got, err = tr.RoundParams(t.Context())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestGlobalModelKeepsLatestVersion(t *testing.T) {
	t.Parallel()

	tr, _, handlers := newTransport(t)

	got, err := tr.GlobalModel(t.Context())
	require.NoError(t, err)
	assert.Nil(t, got)

	v2 := fl.GlobalModel{Version: 2, DataType: fl.F32, Values: []float64{2, 2}}
	v1 := fl.GlobalModel{Version: 1, DataType: fl.F32, Values: []float64{1, 1}}
	require.NoError(t, handlers[modelTopic](modelTopic, payload(t, v2)))
	require.NoError(t, handlers[modelTopic](modelTopic, payload(t, v1)))

	got, err = tr.GlobalModel(t.Context())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, v2, *got)

	got.Values[0] = 42
	again, err := tr.GlobalModel(t.Context())
	require.NoError(t, err)
	assert.Equal(t, v2, *again)
}

func TestSendUpdate(t *testing.T) {
	t.Parallel()

	tr, ps, _ := newTransport(t)
	env := fl.UpdateEnvelope{ParticipantID: participantID, RoundID: 1, Scalar: 1}

	ps.On("Publish", mock.Anything, updatesTopic, env).Return(nil).Once()
	require.NoError(t, tr.SendUpdate(t.Context(), env))

	errBroker := errors.New("broker unavailable")
	ps.On("Publish", mock.Anything, updatesTopic, env).Return(errBroker).Once()
	assert.ErrorIs(t, tr.SendUpdate(t.Context(), env), errBroker)
}

func TestClose(t *testing.T) {
	t.Parallel()

	tr, ps, _ := newTransport(t)
	ps.On("Publish", mock.Anything, statusTopic, mock.Anything).Return(nil).Once()
	ps.On("Unsubscribe", mock.Anything, paramsTopic).Return(nil).Once()
	ps.On("Unsubscribe", mock.Anything, modelTopic).Return(nil).Once()

	require.NoError(t, tr.Close(t.Context()))
}

func TestNewFailsWhenSubscribeFails(t *testing.T) {
	t.Parallel()

	ps := mocks.NewPubSub(t)
	errSub := errors.New("not authorized")
	ps.On("Subscribe", mock.Anything, paramsTopic, mock.Anything).Return(nil).Once()
	ps.On("Subscribe", mock.Anything, modelTopic, mock.Anything).Return(errSub).Once()
	ps.On("Unsubscribe", mock.Anything, paramsTopic).Return(nil).Once()

	_, err := transport.New(t.Context(), ps, domainID, channelID, participantID, nil)
	assert.ErrorIs(t, err, errSub)
}
