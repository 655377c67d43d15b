package participant

import (
	"sync"
	"sync/atomic"
)

// exitSignal is a one-way flag. Once set it stays set.
type exitSignal struct {
	set  atomic.Bool
	once sync.Once
	ch   chan struct{}
}

func newExitSignal() *exitSignal {
	return &exitSignal{ch: make(chan struct{})}
}

func (e *exitSignal) Set() {
	e.once.Do(func() {
		e.set.Store(true)
		close(e.ch)
	})
}

func (e *exitSignal) IsSet() bool {
	return e.set.Load()
}

func (e *exitSignal) Done() <-chan struct{} {
	return e.ch
}
