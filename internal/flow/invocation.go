package flow

import (
	"context"
	"encoding/json"
	"sync"

	"charmstudio/internal/apperr"
)

// State is the lifecycle of one flow invocation.
type State int

const (
	StateIdle State = iota
	StateRequesting
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateRequesting:
		return "requesting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Terminal reports whether s is Succeeded or Failed.
func (s State) Terminal() bool { return s == StateSucceeded || s == StateFailed }

// Result is the discriminated outcome of an invocation.
type Result[T any] struct {
	State  State
	Output T
	Err    error
}

// Reason is the user-visible failure reason. Empty on success.
func (r Result[T]) Reason() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

type envelope struct {
	Status string `json:"status"`
	Output any    `json:"output,omitempty"`
	Kind   string `json:"kind,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// MarshalJSON renders {"status":"succeeded","output":...} or
// {"status":"failed","kind":...,"reason":...}.
func (r Result[T]) MarshalJSON() ([]byte, error) {
	if r.State == StateSucceeded {
		return json.Marshal(envelope{Status: r.State.String(), Output: r.Output})
	}
	return json.Marshal(envelope{Status: StateFailed.String(), Kind: apperr.KindOf(r.Err).String(), Reason: r.Reason()})
}

// Invocation runs one flow call. Once started, the call runs to completion
// even if every waiter gives up.
type Invocation[T any] struct {
	mu    sync.Mutex
	state State
	res   Result[T]
	done  chan struct{}
}

// Start launches fn detached from ctx cancellation. Values of ctx stay visible.
func Start[T any](ctx context.Context, fn func(context.Context) (T, error)) *Invocation[T] {
	inv := &Invocation[T]{state: StateRequesting, done: make(chan struct{})}
	go func() {
		out, err := fn(context.WithoutCancel(ctx))
		inv.finish(out, err)
	}()
	return inv
}

func (inv *Invocation[T]) finish(out T, err error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if err != nil {
		inv.state = StateFailed
		inv.res = Result[T]{State: StateFailed, Err: err}
	} else {
		inv.state = StateSucceeded
		inv.res = Result[T]{State: StateSucceeded, Output: out}
	}
	close(inv.done)
}

// State returns the current lifecycle state.
func (inv *Invocation[T]) State() State {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.state
}

// Done is closed once the invocation is terminal.
func (inv *Invocation[T]) Done() <-chan struct{} { return inv.done }

// Wait blocks for the result. Abandoning the wait through ctx leaves the
// call running.
func (inv *Invocation[T]) Wait(ctx context.Context) (Result[T], error) {
	select {
	case <-inv.done:
		inv.mu.Lock()
		defer inv.mu.Unlock()
		return inv.res, nil
	case <-ctx.Done():
		return Result[T]{State: StateRequesting}, ctx.Err()
	}
}

// Invoke runs fn to completion and returns its terminal result.
func Invoke[T any](ctx context.Context, fn func(context.Context) (T, error)) Result[T] {
	out, err := fn(ctx)
	if err != nil {
		return Result[T]{State: StateFailed, Err: err}
	}
	return Result[T]{State: StateSucceeded, Output: out}
}
