package participant

import (
	"context"

	"github.com/absmach/flparticipant/pkg/fl"
)

// Coordinator is the round coordinator as seen by the participant loop.
//
// Tick advances the coordinator's protocol state and refreshes the three
// round status flags. The flags are only meaningful until the next Tick.
type Coordinator interface {
	Tick(ctx context.Context)
	HasNewGlobalModel() bool
	ShouldSubmitModel() bool
	MadeProgress() bool

	// FetchGlobalModel returns nil bytes and a nil error when the
	// coordinator has no model yet.
	FetchGlobalModel(ctx context.Context) ([]byte, error)
	SubmitLocalModel(ctx context.Context, update fl.LocalUpdate) error
}

// Client supplies the training logic. M is the deserialized global model.
type Client[M any] interface {
	// TrainSingleUpdate trains against global, which is nil when no global
	// model is available. Returning an update without values means the
	// client trained in place and SerializeLocalModel holds the result.
	TrainSingleUpdate(ctx context.Context, global *M) (fl.LocalUpdate, error)
	OnNewGlobalModel(ctx context.Context, model M) error
	ParticipateInUpdateTask() bool
	SerializeLocalModel() (fl.LocalUpdate, error)
	DeserializeTrainingInput(data []byte) (M, error)
	OnStop()
}
