package types

import (
	"errors"
	"fmt"

	errorsmod "cosmossdk.io/errors"
)

const Codespace = "rngoracle"

// errors
var (
	ErrStageFailed         = errorsmod.Register(Codespace, 2, "stage failed")
	ErrMissingPayload      = errorsmod.Register(Codespace, 3, "executor returned no payload")
	ErrTxFailed            = errorsmod.Register(Codespace, 4, "transaction failed on chain")
	ErrConfirmationTimeout = errorsmod.Register(Codespace, 5, "transaction not confirmed in time")
	ErrInvalidInput        = errorsmod.Register(Codespace, 6, "invalid input")
	ErrUnknownCommand      = errorsmod.Register(Codespace, 7, "unknown command")
	ErrHeadNotSet          = errorsmod.Register(Codespace, 8, "latest update transaction not set")
	ErrNotRegistered       = errorsmod.Register(Codespace, 9, "oracle identity not registered")
	ErrAlreadyBootstrapped = errorsmod.Register(Codespace, 10, "bootstrap already ran")
	ErrQueryFailed         = errorsmod.Register(Codespace, 11, "query failed")
	ErrInvalidConfig       = errorsmod.Register(Codespace, 12, "invalid config")
	ErrExecutorUnavailable = errorsmod.Register(Codespace, 13, "executor unavailable")
)

// Phase says where a stage ran. It decides whether its failure is fatal.
type Phase byte

const (
	PhaseBootstrap Phase = iota
	PhaseAction
)

// StageError wraps the failure of a single stage. TxHash and Unit are set
// when the executor accepted the submission before the stage failed.
type StageError struct {
	Stage  Stage
	Phase  Phase
	TxHash TxHash
	Unit   string
	Err    error
}

func NewStageError(stage Stage, phase Phase, err error) *StageError {
	return &StageError{Stage: stage, Phase: phase, Err: err}
}

// WithSubmission attaches what the executor returned for the stage.
func (e *StageError) WithSubmission(record StageRecord) *StageError {
	e.TxHash = record.TxHash
	e.Unit = record.Unit

	return e
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Fatal reports whether the process must stop. Only bootstrap failures are.
func (e *StageError) Fatal() bool {
	return e.Phase == PhaseBootstrap
}

// IsFatal reports whether err carries a fatal stage failure.
func IsFatal(err error) bool {
	var se *StageError
	if errors.As(err, &se) {
		return se.Fatal()
	}

	return false
}
