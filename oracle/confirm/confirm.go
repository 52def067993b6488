package confirm

import (
	"context"
	"time"

	"github.com/GPTx-global/rngoracle/oracle/log"
	"github.com/GPTx-global/rngoracle/oracle/retry"
	"github.com/GPTx-global/rngoracle/oracle/types"
)

// DefaultDelay is how long the fixed waiter assumes a transaction needs.
const DefaultDelay = 120 * time.Second

// Waiter blocks until a submitted transaction may be relied upon.
type Waiter interface {
	Await(ctx context.Context, tx types.TxHash) error
}

// Status is the on-chain state of a transaction as seen by a StatusChecker.
type Status byte

const (
	Pending Status = iota
	Confirmed
	Failed
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Confirmed:
		return "confirmed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// StatusChecker reports the current status of a transaction.
type StatusChecker interface {
	Status(ctx context.Context, tx types.TxHash) (Status, error)
}

// FixedDelay waits a constant interval regardless of stage. It never checks
// the chain, so a transaction that is slower than the interval is assumed
// confirmed anyway.
type FixedDelay struct {
	delay time.Duration
	after func(time.Duration) <-chan time.Time
}

func NewFixedDelay(delay time.Duration) *FixedDelay {
	if delay <= 0 {
		delay = DefaultDelay
	}

	return &FixedDelay{delay: delay, after: time.After}
}

func (f *FixedDelay) Await(ctx context.Context, tx types.TxHash) error {
	log.Debugf("waiting %v for transaction %s", f.delay, tx)

	select {
	case <-f.after(f.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Poller asks a StatusChecker until the transaction is confirmed, failed, or
// the timeout elapses. Checker errors count as pending unless the checker
// also reports Failed.
type Poller struct {
	checker StatusChecker
	timeout time.Duration
	backoff retry.Config
	now     func() time.Time
}

func NewPoller(checker StatusChecker, timeout time.Duration, backoff retry.Config) *Poller {
	return &Poller{
		checker: checker,
		timeout: timeout,
		backoff: backoff,
		now:     time.Now,
	}
}

func (p *Poller) Await(ctx context.Context, tx types.TxHash) error {
	deadline := p.now().Add(p.timeout)

	for attempt := 1; ; attempt++ {
		status, err := p.checker.Status(ctx, tx)
		switch {
		case status == Failed:
			if err != nil {
				return types.ErrTxFailed.Wrapf("transaction %s: %v", tx, err)
			}
			return types.ErrTxFailed.Wrapf("transaction %s", tx)
		case err != nil:
			log.Debugf("status check for %s failed: %v", tx, err)
		case status == Confirmed:
			log.Debugf("transaction %s confirmed after %d checks", tx, attempt)
			return nil
		}

		delay := retry.Delay(p.backoff, attempt)
		remaining := deadline.Sub(p.now())
		if remaining <= 0 {
			return types.ErrConfirmationTimeout.Wrapf("transaction %s after %v", tx, p.timeout)
		}
		if delay > remaining {
			delay = remaining
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}
