package lifecycle

import (
	"context"

	"github.com/GPTx-global/rngoracle/oracle/confirm"
	"github.com/GPTx-global/rngoracle/oracle/display"
	"github.com/GPTx-global/rngoracle/oracle/executor"
	"github.com/GPTx-global/rngoracle/oracle/log"
	"github.com/GPTx-global/rngoracle/oracle/types"
)

// Result is what bootstrap hands to the action loop.
type Result struct {
	Identity types.OracleIdentity
	Head     types.TxHash
}

// Controller drives the one-time bootstrap: mint, init, register.
type Controller struct {
	executor  executor.Executor
	sequencer *Sequencer
	display   display.Display

	state    types.BootState
	started  bool
	identity types.OracleIdentity
}

func New(exec executor.Executor, waiter confirm.Waiter, disp display.Display, observer types.Observer) *Controller {
	if disp == nil {
		disp = display.Discard{}
	}

	return &Controller{
		executor:  exec,
		sequencer: NewSequencer(waiter, disp, observer, types.PhaseBootstrap),
		display:   disp,
		state:     types.Unstarted,
	}
}

// State is the last confirmed bootstrap state.
func (c *Controller) State() types.BootState {
	return c.state
}

// Identity returns the identity as far as bootstrap got. The unit is set as
// soon as the mint is submitted, confirmed or not.
func (c *Controller) Identity() types.OracleIdentity {
	return c.identity
}

// Bootstrap runs once per process. Any failure is fatal and leaves State at
// the last confirmed transition.
func (c *Controller) Bootstrap(ctx context.Context, displayName string) (Result, error) {
	if c.started {
		return Result{}, types.ErrAlreadyBootstrapped
	}
	c.started = true

	if err := c.mint(ctx, displayName); err != nil {
		return Result{}, err
	}

	c.display.Status("To register the Oracle DID, We need initial RNG transaction to pass the data with it")
	initTx, err := c.initialize(ctx)
	if err != nil {
		return Result{}, err
	}

	head, err := c.register(ctx, initTx)
	if err != nil {
		return Result{}, err
	}

	log.Infof("bootstrap complete: unit %s, head %s", c.identity.Unit, head)

	return Result{Identity: c.identity, Head: head}, nil
}

func (c *Controller) mint(ctx context.Context, displayName string) error {
	_, err := c.sequencer.Run(ctx, Step{
		Stage:  types.StageMint,
		Status: "Minting Oracle DID to your wallet",
		Submit: func(ctx context.Context) (types.StageRecord, error) {
			res, err := c.executor.MintIdentity(ctx, displayName)
			if err != nil {
				return types.StageRecord{}, err
			}
			if res.Unit == "" {
				return types.StageRecord{}, types.ErrMissingPayload.Wrap("mint returned no identity unit")
			}
			c.identity = types.NewOracleIdentity(res.Unit)

			return types.StageRecord{TxHash: res.TxHash, Unit: res.Unit, Detail: displayName}, nil
		},
	})
	if err != nil {
		return err
	}

	c.state = types.Minted

	return nil
}

func (c *Controller) initialize(ctx context.Context) (types.TxHash, error) {
	record, err := c.sequencer.Run(ctx, Step{
		Stage:  types.StageInit,
		Status: "Initiating RNG ID to RNG Contract",
		Submit: func(ctx context.Context) (types.StageRecord, error) {
			res, err := c.executor.InitializeGenerator(ctx)
			if err != nil {
				return types.StageRecord{}, err
			}

			return types.StageRecord{TxHash: res.TxHash, Unit: c.identity.Unit}, nil
		},
	})
	if err != nil {
		return "", err
	}

	c.state = types.Initialized

	return record.TxHash, nil
}

func (c *Controller) register(ctx context.Context, initTx types.TxHash) (types.TxHash, error) {
	record, err := c.sequencer.Run(ctx, Step{
		Stage:  types.StageRegister,
		Status: "Registering Oracle DID to Oracle Contract",
		Submit: func(ctx context.Context) (types.StageRecord, error) {
			res, err := c.executor.RegisterIdentity(ctx, initTx, c.identity.Unit)
			if err != nil {
				return types.StageRecord{}, err
			}

			return types.StageRecord{TxHash: res.TxHash, Unit: c.identity.Unit, Detail: initTx.String()}, nil
		},
	})
	if err != nil {
		return "", err
	}

	c.identity.MarkRegistered()
	c.state = types.Registered

	return record.TxHash, nil
}
