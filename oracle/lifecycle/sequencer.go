package lifecycle

import (
	"context"
	"time"

	"github.com/GPTx-global/rngoracle/oracle/confirm"
	"github.com/GPTx-global/rngoracle/oracle/display"
	"github.com/GPTx-global/rngoracle/oracle/log"
	"github.com/GPTx-global/rngoracle/oracle/metrics"
	"github.com/GPTx-global/rngoracle/oracle/types"
)

// Step is one chain transaction. Submit returns a record with at least the
// transaction hash filled in.
type Step struct {
	Stage  types.Stage
	Status string
	Submit func(ctx context.Context) (types.StageRecord, error)
}

// Sequencer runs steps strictly one after another. A step's record is only
// handed back after its confirmation wait has returned, so the next step can
// never see an unconfirmed dependency.
type Sequencer struct {
	waiter   confirm.Waiter
	display  display.Display
	observer types.Observer
	phase    types.Phase
	now      func() time.Time
}

func NewSequencer(waiter confirm.Waiter, disp display.Display, observer types.Observer, phase types.Phase) *Sequencer {
	if disp == nil {
		disp = display.Discard{}
	}
	if observer == nil {
		observer = types.Observers{}
	}

	return &Sequencer{
		waiter:   waiter,
		display:  disp,
		observer: observer,
		phase:    phase,
		now:      time.Now,
	}
}

// Run submits the step, waits for confirmation and reports the outcome.
// Every failure comes back as a *types.StageError tagged with the phase.
func (s *Sequencer) Run(ctx context.Context, step Step) (types.StageRecord, error) {
	start := s.now()
	if step.Status != "" {
		s.display.Status(step.Status)
	}
	log.Debugf("%s: submitting", step.Stage)

	record, err := step.Submit(ctx)
	if err != nil {
		return types.StageRecord{}, s.fail(step.Stage, types.StageRecord{}, err)
	}
	if record.TxHash.IsEmpty() {
		return types.StageRecord{}, s.fail(step.Stage, types.StageRecord{}, types.ErrMissingPayload.Wrap("no transaction hash"))
	}

	s.display.Waiting(record.TxHash)
	if err := s.waiter.Await(ctx, record.TxHash); err != nil {
		return types.StageRecord{}, s.fail(step.Stage, record, err)
	}

	record.Stage = step.Stage
	record.At = s.now()
	log.Infof("%s: transaction %s confirmed", step.Stage, record.TxHash)
	metrics.StageConfirmed(step.Stage, s.phase, start)
	s.observer.StageConfirmed(record)

	return record, nil
}

// Fail reports a failure that happened outside Run, e.g. input validation.
func (s *Sequencer) Fail(stage types.Stage, err error) error {
	return s.fail(stage, types.StageRecord{}, err)
}

// fail keeps the submitted record on the error so an unconfirmed
// transaction can still be traced.
func (s *Sequencer) fail(stage types.Stage, submitted types.StageRecord, err error) error {
	stageErr := types.NewStageError(stage, s.phase, err).WithSubmission(submitted)
	log.Errorf("%v", stageErr)
	metrics.StageFailed(stage, s.phase)
	s.observer.StageFailed(stage, stageErr)

	return stageErr
}
