package status

import (
	"errors"
	"sync"
	"time"

	"github.com/GPTx-global/rngoracle/oracle/types"
)

var _ types.Observer = (*Tracker)(nil)

// Snapshot is the read-only view served over HTTP.
type Snapshot struct {
	State      string    `json:"state"`
	Unit       string    `json:"unit,omitempty"`
	Registered bool      `json:"registered"`
	Head       string    `json:"head,omitempty"`
	Updates    int       `json:"updates"`
	LastOutput string    `json:"last_output,omitempty"`
	LastError  string    `json:"last_error,omitempty"`
	PendingTx  string    `json:"pending_tx,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Tracker follows stage records. It never touches the controller or loop, so
// HTTP readers cannot observe half-applied transitions.
type Tracker struct {
	mu    sync.RWMutex
	state types.BootState
	snap  Snapshot
	now   func() time.Time
}

func NewTracker() *Tracker {
	t := &Tracker{state: types.Unstarted, now: time.Now}
	t.snap.State = t.state.String()

	return t
}

func (t *Tracker) StageConfirmed(record types.StageRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch record.Stage {
	case types.StageMint:
		t.state = types.Minted
		t.snap.Unit = record.Unit
	case types.StageInit:
		if t.state < types.Initialized {
			t.state = types.Initialized
		}
	case types.StageRegister:
		t.state = types.Registered
		t.snap.Registered = true
		t.snap.Head = record.TxHash.String()
	case types.StageUpdate:
		t.snap.Head = record.TxHash.String()
		t.snap.Updates++
	case types.StageQuery:
		t.snap.LastOutput = record.Detail
	}

	t.snap.State = t.state.String()
	t.snap.LastError = ""
	t.snap.PendingTx = ""
	t.snap.UpdatedAt = t.now()
}

func (t *Tracker) StageFailed(_ types.Stage, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var stageErr *types.StageError
	if errors.As(err, &stageErr) {
		t.snap.PendingTx = stageErr.TxHash.String()
		if t.snap.Unit == "" {
			t.snap.Unit = stageErr.Unit
		}
	}
	t.snap.LastError = err.Error()
	t.snap.UpdatedAt = t.now()
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.snap
}
