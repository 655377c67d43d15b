package mocks

import (
	"context"

	"github.com/absmach/flparticipant/coordinator"
	"github.com/absmach/flparticipant/pkg/fl"
	"github.com/stretchr/testify/mock"
)

var _ coordinator.Transport = (*Transport)(nil)

// Transport is a mock implementation of coordinator.Transport.
type Transport struct {
	mock.Mock
}

func (m *Transport) RoundParams(ctx context.Context) (fl.RoundParams, error) {
	args := m.Called(ctx)

	return args.Get(0).(fl.RoundParams), args.Error(1)
}

func (m *Transport) GlobalModel(ctx context.Context) (*fl.GlobalModel, error) {
	args := m.Called(ctx)

	var model *fl.GlobalModel
	if v := args.Get(0); v != nil {
		model = v.(*fl.GlobalModel)
	}

	return model, args.Error(1)
}

func (m *Transport) SendUpdate(ctx context.Context, env fl.UpdateEnvelope) error {
	args := m.Called(ctx, env)

	return args.Error(0)
}

// NewTransport creates a Transport mock whose expectations are asserted on
// cleanup.
func NewTransport(t interface {
	mock.TestingT
	Cleanup(func())
},
) *Transport {
	m := &Transport{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
