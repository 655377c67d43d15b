// Package participant runs the federated-learning participant loop.
//
// A Participant repeatedly ticks the round coordinator, fetches the global
// model when a new one is announced, trains and submits a local update when
// the coordinator asks for one, and sleeps between steps according to a
// backoff schedule that resets whenever the round made progress.
package participant

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/absmach/flparticipant/pkg/backoff"
)

type Participant[M any] struct {
	id          string
	coordinator Coordinator
	client      Client[M]
	logger      *slog.Logger

	exit   *exitSignal
	stepMu sync.Mutex

	// Guarded by stepMu.
	backoff  *backoff.Backoff
	fetchErr bool
	global   *M

	running   atomic.Bool
	startOnce sync.Once
	done      chan struct{}

	statusMu sync.RWMutex
	status   Status
	err      error
}

func New[M any](cfg Config, coordinator Coordinator, client Client[M], logger *slog.Logger) (*Participant[M], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	bo, err := backoff.New(cfg.Backoff)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Participant[M]{
		id:          cfg.ID,
		coordinator: coordinator,
		client:      client,
		logger:      logger.With(slog.String("participant_id", cfg.ID)),
		exit:        newExitSignal(),
		backoff:     bo,
		done:        make(chan struct{}),
		status:      Status{ID: cfg.ID},
	}, nil
}

// Start runs the loop in a background goroutine. Only the first call has
// an effect. Loop failures are reported through Err, never to the caller.
func (p *Participant[M]) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		go func() {
			_ = p.Run(ctx)
		}()
	})
}

// Run executes the loop on the calling goroutine until Stop is called, ctx
// is cancelled or a step fails with an unrecoverable error.
func (p *Participant[M]) Run(ctx context.Context) (err error) {
	if !p.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(p.done)
	defer func() {
		p.exit.Set()
		p.stopClient()
		p.finish(err)
	}()

	p.setRunning()
	p.logger.Info("participant loop started")

	for !p.exit.IsSet() {
		if ctx.Err() != nil {
			p.exit.Set()

			break
		}

		wait, err := p.step(ctx)
		if err != nil {
			return err
		}

		p.sleep(ctx, wait)
	}

	return nil
}

// Stop requests the loop to exit and blocks until any in-flight step has
// completed. It is safe to call more than once and from any goroutine.
func (p *Participant[M]) Stop() {
	p.exit.Set()
	p.stepMu.Lock()
	//nolint:staticcheck // empty critical section waits for the in-flight step
	p.stepMu.Unlock()
}

func (p *Participant[M]) Wait() {
	<-p.done
}

func (p *Participant[M]) Done() <-chan struct{} {
	return p.done
}

// Err returns the error that ended the loop, if any.
func (p *Participant[M]) Err() error {
	p.statusMu.RLock()
	defer p.statusMu.RUnlock()

	return p.err
}

func (p *Participant[M]) ExitRequested() bool {
	return p.exit.IsSet()
}

func (p *Participant[M]) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-p.exit.Done():
	case <-ctx.Done():
	}
}

func (p *Participant[M]) stopClient() {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("client stop hook panicked", slog.Any("panic", r))
		}
	}()

	p.client.OnStop()
}

func (p *Participant[M]) finish(err error) {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()

	p.err = err
	p.status.Running = false
	p.status.ExitRequested = true
	if err != nil {
		p.status.Error = err.Error()
	}

	if err != nil {
		p.logger.Error("participant loop stopped with error", slog.Any("error", err))

		return
	}
	p.logger.Info("participant loop stopped", slog.Uint64("steps", p.status.Steps))
}

func recoverStep(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: %v", ErrStepPanic, r)
	}
}
