package loop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/GPTx-global/rngoracle/oracle/confirm"
	"github.com/GPTx-global/rngoracle/oracle/display"
	"github.com/GPTx-global/rngoracle/oracle/executor"
	"github.com/GPTx-global/rngoracle/oracle/lifecycle"
	"github.com/GPTx-global/rngoracle/oracle/log"
	"github.com/GPTx-global/rngoracle/oracle/metrics"
	"github.com/GPTx-global/rngoracle/oracle/types"
)

// Loop serves generate and query actions for a registered identity. It owns
// the head from construction on; only a fully confirmed update moves it.
type Loop struct {
	executor  executor.Executor
	sequencer *lifecycle.Sequencer
	display   display.Display
	observer  types.Observer

	identity types.OracleIdentity
	head     types.TxHash
}

func New(
	boot lifecycle.Result,
	exec executor.Executor,
	waiter confirm.Waiter,
	disp display.Display,
	observer types.Observer,
) (*Loop, error) {
	if !boot.Identity.Registered {
		return nil, types.ErrNotRegistered
	}
	if boot.Head.IsEmpty() {
		return nil, types.ErrHeadNotSet
	}
	if disp == nil {
		disp = display.Discard{}
	}
	if observer == nil {
		observer = types.Observers{}
	}

	return &Loop{
		executor:  exec,
		sequencer: lifecycle.NewSequencer(waiter, disp, observer, types.PhaseAction),
		display:   disp,
		observer:  observer,
		identity:  boot.Identity,
		head:      boot.Head,
	}, nil
}

func (l *Loop) Head() types.TxHash {
	return l.head
}

func (l *Loop) Identity() types.OracleIdentity {
	return l.identity
}

// Run dispatches commands until ctx is done or the prompter reports io.EOF.
// Action failures are shown to the operator and the loop carries on.
func (l *Loop) Run(ctx context.Context, prompter Prompter) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		cmd, err := prompter.NextCommand(ctx)
		if errors.Is(err, io.EOF) {
			log.Infof("operator input closed, leaving action loop")
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.display.Failure(err)
			continue
		}

		metrics.CommandReceived(cmd.Name())
		if err := l.Dispatch(ctx, cmd); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.display.Failure(err)
		}
	}
}

// Dispatch executes a single command.
func (l *Loop) Dispatch(ctx context.Context, cmd Command) error {
	switch c := cmd.(type) {
	case GenerateCommand:
		head, err := l.Generate(ctx, l.head, c.Request)
		if err != nil {
			return err
		}
		l.head = head
		metrics.HeadAdvanced()
		log.Infof("head advanced to %s", head)

		return nil
	case QueryCommand:
		out, err := l.Query(ctx, l.head)
		if err != nil {
			return err
		}
		l.display.Output(out)

		return nil
	case UnknownCommand:
		return types.ErrUnknownCommand.Wrapf("%q", c.Input)
	default:
		return types.ErrUnknownCommand.Wrapf("%T", cmd)
	}
}

// Generate runs one init and update cycle against head and returns the new
// head. head is left to the caller to replace.
func (l *Loop) Generate(ctx context.Context, head types.TxHash, req types.GenerationRequest) (types.TxHash, error) {
	if head.IsEmpty() {
		return "", types.ErrHeadNotSet
	}
	if err := req.Validate(); err != nil {
		return "", l.sequencer.Fail(types.StageInit, err)
	}
	if err := l.executor.Reconfigure(executor.KeyOutputLength, strconv.Itoa(req.OutputLength)); err != nil {
		return "", l.sequencer.Fail(types.StageInit, err)
	}

	initRecord, err := l.sequencer.Run(ctx, lifecycle.Step{
		Stage:  types.StageInit,
		Status: "Initiating RNG ID to RNG Contract",
		Submit: func(ctx context.Context) (types.StageRecord, error) {
			res, err := l.executor.InitializeGenerator(ctx)
			if err != nil {
				return types.StageRecord{}, err
			}

			return types.StageRecord{TxHash: res.TxHash, Unit: l.identity.Unit, Detail: strconv.Itoa(req.OutputLength)}, nil
		},
	})
	if err != nil {
		return "", err
	}

	updateRecord, err := l.sequencer.Run(ctx, lifecycle.Step{
		Stage:  types.StageUpdate,
		Status: "Updating Oracle DID to Oracle Contract",
		Submit: func(ctx context.Context) (types.StageRecord, error) {
			res, err := l.executor.UpdateIdentity(ctx, initRecord.TxHash, l.identity.Unit, head)
			if err != nil {
				return types.StageRecord{}, err
			}

			return types.StageRecord{TxHash: res.TxHash, Unit: l.identity.Unit, Detail: head.String()}, nil
		},
	})
	if err != nil {
		return "", err
	}

	return updateRecord.TxHash, nil
}

// Query reads the random value published at head. It submits nothing.
func (l *Loop) Query(ctx context.Context, head types.TxHash) (string, error) {
	if head.IsEmpty() {
		return "", types.ErrHeadNotSet
	}

	res, err := l.executor.QueryIdentity(ctx, head)
	if err != nil {
		return "", l.sequencer.Fail(types.StageQuery, fmt.Errorf("%w: %w", types.ErrQueryFailed, err))
	}
	if res.Output == "" {
		return "", l.sequencer.Fail(types.StageQuery, types.ErrMissingPayload.Wrap("query returned no output"))
	}

	l.observer.StageConfirmed(types.StageRecord{
		Stage:  types.StageQuery,
		TxHash: head,
		Unit:   l.identity.Unit,
		Detail: res.Output,
		At:     time.Now(),
	})

	return res.Output, nil
}
