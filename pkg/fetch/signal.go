package fetch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrAborted is the default abort reason when Abort is called with nil.
var ErrAborted = errors.New("fetch: operation aborted")

// Signal is a one-shot, broadcast cancellation token.
//
// It is set at most once, by Abort, and never reset. Any number of
// goroutines may observe it through Aborted, Done or the context returned by
// Context. Consumers that see it set must stop producing output.
type Signal struct {
	ctx     context.Context
	cancel  context.CancelCauseFunc
	once    sync.Once
	aborted atomic.Bool
}

// NewSignal creates an unset Signal. The context returned by Context carries
// the values of parent but is cancelled only when the Signal is aborted;
// cancellation of parent itself is not inherited.
func NewSignal(parent context.Context) *Signal {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancelCause(context.WithoutCancel(parent))
	return &Signal{ctx: ctx, cancel: cancel}
}

// Abort sets the signal with the given reason. Only the first call has an
// effect; it returns true if this call set the signal.
func (s *Signal) Abort(reason error) bool {
	if reason == nil {
		reason = ErrAborted
	}
	set := false
	s.once.Do(func() {
		s.aborted.Store(true)
		s.cancel(reason)
		set = true
	})
	return set
}

// Aborted reports whether the signal has been set.
func (s *Signal) Aborted() bool {
	return s.aborted.Load()
}

// Done returns a channel that is closed when the signal is set.
func (s *Signal) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Reason returns the abort reason, or nil while the signal is unset.
func (s *Signal) Reason() error {
	if !s.Aborted() {
		return nil
	}
	return context.Cause(s.ctx)
}

// Context returns a context that is cancelled, with Reason as its cause,
// when the signal is set.
func (s *Signal) Context() context.Context {
	return s.ctx
}
