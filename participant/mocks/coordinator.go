package mocks

import (
	"context"

	"github.com/absmach/flparticipant/pkg/fl"
	"github.com/stretchr/testify/mock"
)

// Coordinator is a mock implementation of participant.Coordinator.
type Coordinator struct {
	mock.Mock
}

func (m *Coordinator) Tick(ctx context.Context) {
	m.Called(ctx)
}

func (m *Coordinator) HasNewGlobalModel() bool {
	args := m.Called()

	return args.Bool(0)
}

func (m *Coordinator) ShouldSubmitModel() bool {
	args := m.Called()

	return args.Bool(0)
}

func (m *Coordinator) MadeProgress() bool {
	args := m.Called()

	return args.Bool(0)
}

func (m *Coordinator) FetchGlobalModel(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)

	var data []byte
	if v := args.Get(0); v != nil {
		data = v.([]byte)
	}

	return data, args.Error(1)
}

func (m *Coordinator) SubmitLocalModel(ctx context.Context, update fl.LocalUpdate) error {
	args := m.Called(ctx, update)

	return args.Error(0)
}

// NewCoordinator creates a Coordinator mock whose expectations are asserted
// on cleanup.
func NewCoordinator(t interface {
	mock.TestingT
	Cleanup(func())
},
) *Coordinator {
	m := &Coordinator{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
