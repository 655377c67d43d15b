package mocks

import (
	"context"

	"github.com/absmach/flparticipant/pkg/fl"
	"github.com/stretchr/testify/mock"
)

// Client is a mock implementation of participant.Client.
type Client[M any] struct {
	mock.Mock
}

func (m *Client[M]) TrainSingleUpdate(ctx context.Context, global *M) (fl.LocalUpdate, error) {
	args := m.Called(ctx, global)

	return args.Get(0).(fl.LocalUpdate), args.Error(1)
}

func (m *Client[M]) OnNewGlobalModel(ctx context.Context, model M) error {
	args := m.Called(ctx, model)

	return args.Error(0)
}

func (m *Client[M]) ParticipateInUpdateTask() bool {
	args := m.Called()

	return args.Bool(0)
}

func (m *Client[M]) SerializeLocalModel() (fl.LocalUpdate, error) {
	args := m.Called()

	return args.Get(0).(fl.LocalUpdate), args.Error(1)
}

func (m *Client[M]) DeserializeTrainingInput(data []byte) (M, error) {
	args := m.Called(data)

	var model M
	if v := args.Get(0); v != nil {
		model = v.(M)
	}

	return model, args.Error(1)
}

func (m *Client[M]) OnStop() {
	m.Called()
}

// NewClient creates a Client mock whose expectations are asserted on cleanup.
func NewClient[M any](t interface {
	mock.TestingT
	Cleanup(func())
},
) *Client[M] {
	m := &Client[M]{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
