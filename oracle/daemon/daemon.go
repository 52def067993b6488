package daemon

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/GPTx-global/rngoracle/oracle/config"
	"github.com/GPTx-global/rngoracle/oracle/confirm"
	"github.com/GPTx-global/rngoracle/oracle/display"
	"github.com/GPTx-global/rngoracle/oracle/executor"
	"github.com/GPTx-global/rngoracle/oracle/health"
	"github.com/GPTx-global/rngoracle/oracle/journal"
	"github.com/GPTx-global/rngoracle/oracle/lifecycle"
	"github.com/GPTx-global/rngoracle/oracle/log"
	"github.com/GPTx-global/rngoracle/oracle/loop"
	"github.com/GPTx-global/rngoracle/oracle/retry"
	"github.com/GPTx-global/rngoracle/oracle/session"
	"github.com/GPTx-global/rngoracle/oracle/status"
	"github.com/GPTx-global/rngoracle/oracle/types"
)

const healthInterval = 30 * time.Second

type Daemon struct {
	client  *executor.Client
	display display.Display
	session *session.Session

	tracker      *status.Tracker
	checker      *health.HealthChecker
	statusServer *status.Server
	journal      *journal.Journal
	observers    types.Observers

	params types.BaseParams
	waiter confirm.Waiter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds every component from the loaded config. Operator prompts are
// read from in and all operator-facing text goes to out.
func New(ctx context.Context, in io.Reader, out io.Writer) (*Daemon, error) {
	d := new(Daemon)
	d.ctx, d.cancel = context.WithCancel(ctx)

	d.client = executor.NewClient(config.ExecutorEndpoint(), config.ExecutorTimeout())
	d.display = display.NewConsole(out)
	d.session = session.New(in, out)

	d.tracker = status.NewTracker()
	d.observers = types.Observers{d.tracker}

	d.checker = health.NewHealthChecker(healthInterval)
	d.checker.AddCheck(d.client)

	if config.JournalEnabled() {
		j, err := journal.Open(config.JournalPath())
		if err != nil {
			d.cancel()
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
		d.journal = j
		d.observers = append(d.observers, j)
		if last, ok := j.Last(types.StageMint); ok {
			log.Infof("journal holds a previous identity %s from %s", last.Unit, last.At)
		}
	}

	if config.StatusEnabled() {
		d.statusServer = status.NewServer(config.StatusListen(), config.StatusAllowedOrigins(), d.tracker, d.checker)
	}

	return d, nil
}

// Start collects the base parameters, opens the executor session and starts
// the background health and status services.
func (d *Daemon) Start() error {
	preset, err := presetFromConfig()
	if err != nil {
		return err
	}

	d.params, err = d.session.Params(preset)
	if err != nil {
		return fmt.Errorf("failed to collect parameters: %w", err)
	}
	log.Infof("using %s network", d.params.Network.Name())

	if err := d.client.Open(d.ctx, d.params); err != nil {
		return err
	}

	d.waiter = d.newWaiter()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.checker.Start(d.ctx)
	}()

	if d.statusServer != nil {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if err := d.statusServer.Start(d.ctx); err != nil {
				log.Errorf("status server stopped: %v", err)
			}
		}()
	}

	return nil
}

// Run bootstraps the oracle identity and then serves operator actions until
// input ends or the daemon is stopped. A bootstrap failure is returned as is
// and is fatal to the process.
func (d *Daemon) Run() error {
	d.display.Status("Creating Oracle DID for you")
	name, err := d.session.DisplayName()
	if err != nil {
		return fmt.Errorf("failed to read oracle name: %w", err)
	}

	ctrl := lifecycle.New(d.client, d.waiter, d.display, d.observers)
	boot, err := ctrl.Bootstrap(d.ctx, name)
	if err != nil {
		d.display.Failure(err)
		return err
	}

	actions, err := loop.New(boot, d.client, d.waiter, d.display, d.observers)
	if err != nil {
		return err
	}

	return actions.Run(d.ctx, d.session)
}

// Stop cancels all work and waits for background services to exit.
func (d *Daemon) Stop() {
	d.cancel()
	d.wg.Wait()
}

// Snapshot exposes the tracked state, mainly for tests.
func (d *Daemon) Snapshot() status.Snapshot {
	return d.tracker.Snapshot()
}

func (d *Daemon) newWaiter() confirm.Waiter {
	if config.ConfirmMode() == config.ModeFixed {
		log.Infof("confirmation: fixed delay of %v", config.ConfirmDelay())
		return confirm.NewFixedDelay(config.ConfirmDelay())
	}

	backoff := retry.ConfirmationConfig()
	backoff.BaseDelay = config.ConfirmInterval()
	if backoff.MaxDelay < backoff.BaseDelay {
		backoff.MaxDelay = backoff.BaseDelay
	}

	var checker confirm.StatusChecker = d.client
	if config.ConfirmSource() == config.SourceBlockfrost {
		bf := confirm.NewBlockfrost(d.params.Network.BlockfrostURL(), d.params.BlockfrostAPIKey, config.ExecutorTimeout())
		d.checker.AddCheck(health.NewFuncCheck("blockfrost", bf.Check))
		checker = bf
	}
	log.Infof("confirmation: polling %s every %v, timeout %v", config.ConfirmSource(), backoff.BaseDelay, config.ConfirmTimeout())

	return confirm.NewPoller(checker, config.ConfirmTimeout(), backoff)
}

func presetFromConfig() (session.Preset, error) {
	oracleCBOR, err := config.OracleCBOR()
	if err != nil {
		return session.Preset{}, err
	}
	rngCBOR, err := config.RngCBOR()
	if err != nil {
		return session.Preset{}, err
	}

	return session.Preset{
		Network:          config.NetworkSelector(),
		BlockfrostAPIKey: config.BlockfrostAPIKey(),
		RngAPIURL:        config.RngAPIURL(),
		OgmiosURL:        config.OgmiosURL(),
		OracleCBOR:       oracleCBOR,
		RngCBOR:          rngCBOR,
		WalletSeed:       config.WalletSeed(),
		RngOutputLen:     config.RngOutputLength(),
	}, nil
}
