// Package testutil holds in-memory collaborators for orchestration tests.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/GPTx-global/rngoracle/oracle/types"
)

// Events is an ordered log shared between fakes so tests can assert on the
// interleaving of submissions and confirmation waits.
type Events struct {
	mu  sync.Mutex
	log []string
}

func (e *Events) Add(format string, args ...any) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.log = append(e.log, fmt.Sprintf(format, args...))
}

func (e *Events) All() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]string, len(e.log))
	copy(out, e.log)

	return out
}

// Index returns the position of entry, or -1.
func (e *Events) Index(entry string) int {
	for i, ev := range e.All() {
		if ev == entry {
			return i
		}
	}

	return -1
}

// Executor is a scripted executor. Each operation pops the next queued
// result; when a queue is empty the operation fails.
type Executor struct {
	Events *Events

	Mints    []types.MintResult
	Inits    []types.InitResult
	Updates  []types.UpdateResult
	Register types.RegisterResult
	Output   string

	MintErr     error
	InitErr     error
	RegisterErr error
	UpdateErr   error
	QueryErr    error

	Settings map[string]string
}

func NewExecutor(events *Events) *Executor {
	return &Executor{Events: events, Settings: map[string]string{}}
}

func (f *Executor) MintIdentity(_ context.Context, name string) (types.MintResult, error) {
	f.Events.Add("submit:mint:%s", name)
	if f.MintErr != nil {
		return types.MintResult{}, f.MintErr
	}
	if len(f.Mints) == 0 {
		return types.MintResult{}, fmt.Errorf("no mint scripted")
	}
	res := f.Mints[0]
	f.Mints = f.Mints[1:]

	return res, nil
}

func (f *Executor) InitializeGenerator(context.Context) (types.InitResult, error) {
	f.Events.Add("submit:init")
	if f.InitErr != nil {
		return types.InitResult{}, f.InitErr
	}
	if len(f.Inits) == 0 {
		return types.InitResult{}, fmt.Errorf("no init scripted")
	}
	res := f.Inits[0]
	f.Inits = f.Inits[1:]

	return res, nil
}

func (f *Executor) RegisterIdentity(_ context.Context, initTx types.TxHash, unit string) (types.RegisterResult, error) {
	f.Events.Add("submit:register:%s:%s", initTx, unit)
	if f.RegisterErr != nil {
		return types.RegisterResult{}, f.RegisterErr
	}

	return f.Register, nil
}

func (f *Executor) UpdateIdentity(_ context.Context, initTx types.TxHash, unit string, prevHead types.TxHash) (types.UpdateResult, error) {
	f.Events.Add("submit:update:%s:%s:%s", initTx, unit, prevHead)
	if f.UpdateErr != nil {
		return types.UpdateResult{}, f.UpdateErr
	}
	if len(f.Updates) == 0 {
		return types.UpdateResult{}, fmt.Errorf("no update scripted")
	}
	res := f.Updates[0]
	f.Updates = f.Updates[1:]

	return res, nil
}

func (f *Executor) QueryIdentity(_ context.Context, head types.TxHash) (types.QueryResult, error) {
	f.Events.Add("query:%s", head)
	if f.QueryErr != nil {
		return types.QueryResult{}, f.QueryErr
	}

	return types.QueryResult{Output: f.Output}, nil
}

func (f *Executor) Reconfigure(key, value string) error {
	f.Events.Add("reconfigure:%s=%s", key, value)
	f.Settings[key] = value

	return nil
}

// Waiter records every wait. Fail makes the wait for a given hash fail.
type Waiter struct {
	Events *Events
	Fail   map[types.TxHash]error
}

func NewWaiter(events *Events) *Waiter {
	return &Waiter{Events: events, Fail: map[types.TxHash]error{}}
}

func (w *Waiter) Await(ctx context.Context, tx types.TxHash) error {
	w.Events.Add("await:%s", tx)
	if err := ctx.Err(); err != nil {
		return err
	}

	return w.Fail[tx]
}
