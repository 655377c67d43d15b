// Package wasm implements a participant client whose training step runs in
// a WebAssembly module.
//
// The module must export its memory and two functions:
//
//	alloc(size i32) i32             reserve size bytes, return the pointer
//	train(ptr i32, size i32) i64    train on the model at ptr, return ptr<<32|size
//
// Models are exchanged as little-endian float64 values. An optional
// participate() i32 export lets the module opt out of a round by returning 0.
// A train result of size zero means the module kept the previous model.
package wasm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/absmach/flparticipant/participant"
	"github.com/absmach/flparticipant/pkg/fl"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

const (
	allocFunc       = "alloc"
	trainFunc       = "train"
	participateFunc = "participate"
)

var (
	ErrMissingExport = errors.New("wasm module is missing a required export")
	errOutOfBounds   = errors.New("wasm memory access out of bounds")
)

var _ participant.Client[fl.GlobalModel] = (*Trainer)(nil)

type Config struct {
	File        string      `env:"FILE"        envDefault:""     toml:"file"`
	Image       string      `env:"IMAGE"       envDefault:""     toml:"image"`
	DataType    fl.DataType `env:"DATA_TYPE"   envDefault:"f32"  toml:"data_type"`
	Participate bool        `env:"PARTICIPATE" envDefault:"true" toml:"participate"`
}

type Trainer struct {
	mu          sync.Mutex
	runtime     wazero.Runtime
	module      api.Module
	alloc       api.Function
	train       api.Function
	participate api.Function

	dataType    fl.DataType
	defaultPart bool
	local       []float64
	version     uint64
	logger      *slog.Logger
	closeOnce   sync.Once
}

func New(ctx context.Context, wasmBinary []byte, cfg Config, logger *slog.Logger) (*Trainer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	r := wazero.NewRuntime(ctx)

	// TinyGo modules import WASI for panic and friends.
	wasi_snapshot_preview1.MustInstantiate(ctx, r)

	module, err := r.InstantiateWithConfig(ctx, wasmBinary, wazero.NewModuleConfig().WithStartFunctions("_initialize"))
	if err != nil {
		return nil, errors.Join(errors.New("failed to instantiate Wasm module"), err, r.Close(ctx))
	}

	t := &Trainer{
		runtime:     r,
		module:      module,
		alloc:       module.ExportedFunction(allocFunc),
		train:       module.ExportedFunction(trainFunc),
		participate: module.ExportedFunction(participateFunc),
		dataType:    cfg.DataType,
		defaultPart: cfg.Participate,
		logger:      logger,
	}

	switch {
	case t.alloc == nil:
		return nil, errors.Join(fmt.Errorf("%w: %s", ErrMissingExport, allocFunc), r.Close(ctx))
	case t.train == nil:
		return nil, errors.Join(fmt.Errorf("%w: %s", ErrMissingExport, trainFunc), r.Close(ctx))
	case module.Memory() == nil:
		return nil, errors.Join(fmt.Errorf("%w: memory", ErrMissingExport), r.Close(ctx))
	}

	return t, nil
}

func (t *Trainer) TrainSingleUpdate(ctx context.Context, global *fl.GlobalModel) (fl.LocalUpdate, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	input, version := t.local, t.version
	if global != nil {
		input, version = global.Values, global.Version
	}

	out, err := t.call(ctx, encodeValues(input))
	if err != nil {
		return fl.LocalUpdate{}, err
	}
	if len(out) == 0 {
		t.logger.Debug("trainer kept the model in place", slog.Uint64("base_version", version))

		return fl.LocalUpdate{DataType: t.dataType}, nil
	}

	values, err := decodeValues(out)
	if err != nil {
		return fl.LocalUpdate{}, err
	}
	t.local = values
	t.logger.Debug("trained local update",
		slog.Uint64("base_version", version),
		slog.Int("length", len(values)),
	)

	return fl.LocalUpdate{
		Values:   append([]float64(nil), values...),
		DataType: t.dataType,
	}, nil
}

func (t *Trainer) OnNewGlobalModel(_ context.Context, model fl.GlobalModel) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if model.DataType != t.dataType {
		t.logger.Warn("global model data type differs from trainer data type",
			slog.String("model", model.DataType.String()),
			slog.String("trainer", t.dataType.String()),
		)
	}
	t.local = append([]float64(nil), model.Values...)
	t.version = model.Version
	t.logger.Info("loaded global model", slog.Uint64("version", model.Version), slog.Int("length", len(model.Values)))

	return nil
}

func (t *Trainer) ParticipateInUpdateTask() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.participate == nil {
		return t.defaultPart
	}

	res, err := t.participate.Call(context.Background())
	if err != nil || len(res) == 0 {
		t.logger.Warn("failed to call participate, using configured default", slog.Any("error", err))

		return t.defaultPart
	}

	return api.DecodeI32(res[0]) != 0
}

func (t *Trainer) SerializeLocalModel() (fl.LocalUpdate, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return fl.LocalUpdate{
		Values:   append([]float64(nil), t.local...),
		DataType: t.dataType,
	}, nil
}

func (t *Trainer) DeserializeTrainingInput(data []byte) (fl.GlobalModel, error) {
	return fl.DecodeGlobalModel(data)
}

func (t *Trainer) OnStop() {
	t.closeOnce.Do(func() {
		if err := t.runtime.Close(context.Background()); err != nil {
			t.logger.Warn("failed to close wasm runtime", slog.Any("error", err))
		}
	})
}

// call must be called with mu held.
func (t *Trainer) call(ctx context.Context, input []byte) ([]byte, error) {
	size := uint32(len(input))
	res, err := t.alloc.Call(ctx, api.EncodeU32(size))
	if err != nil {
		return nil, fmt.Errorf("failed to allocate %d bytes: %w", size, err)
	}
	ptr := api.DecodeU32(res[0])

	mem := t.module.Memory()
	if size > 0 && !mem.Write(ptr, input) {
		return nil, fmt.Errorf("%w: write %d bytes at %d", errOutOfBounds, size, ptr)
	}

	res, err = t.train.Call(ctx, api.EncodeU32(ptr), api.EncodeU32(size))
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", trainFunc, err)
	}

	outPtr, outSize := uint32(res[0]>>32), uint32(res[0])
	if outSize == 0 {
		return nil, nil
	}
	out, ok := mem.Read(outPtr, outSize)
	if !ok {
		return nil, fmt.Errorf("%w: read %d bytes at %d", errOutOfBounds, outSize, outPtr)
	}

	return append([]byte(nil), out...), nil
}
