package journal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"sigs.k8s.io/yaml"

	"github.com/GPTx-global/rngoracle/oracle/log"
	"github.com/GPTx-global/rngoracle/oracle/types"
)

var _ types.Observer = (*Journal)(nil)

// Entry is one line of the journal.
type Entry struct {
	Stage  string    `json:"stage"`
	TxHash string    `json:"tx_hash,omitempty"`
	Unit   string    `json:"unit,omitempty"`
	Detail string    `json:"detail,omitempty"`
	Error  string    `json:"error,omitempty"`
	At     time.Time `json:"at"`
}

type document struct {
	Entries []Entry `json:"entries"`
}

// Journal keeps every confirmed stage in a YAML file so the identity unit and
// the latest head survive a crash.
type Journal struct {
	mu      sync.Mutex
	path    string
	entries []Entry
	now     func() time.Time
}

// Open loads the journal at path, or starts an empty one if it does not exist.
func Open(path string) (*Journal, error) {
	j := &Journal{path: path, now: time.Now}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return j, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse journal %s: %w", path, err)
	}
	j.entries = doc.Entries

	return j, nil
}

func (j *Journal) StageConfirmed(record types.StageRecord) {
	at := record.At
	if at.IsZero() {
		at = j.now()
	}

	j.append(Entry{
		Stage:  record.Stage.String(),
		TxHash: record.TxHash.String(),
		Unit:   record.Unit,
		Detail: record.Detail,
		At:     at.UTC(),
	})
}

// StageFailed records the failure together with any transaction the executor
// had already accepted for the stage.
func (j *Journal) StageFailed(stage types.Stage, err error) {
	e := Entry{Stage: stage.String(), Error: err.Error(), At: j.now().UTC()}

	var stageErr *types.StageError
	if errors.As(err, &stageErr) {
		e.TxHash = stageErr.TxHash.String()
		e.Unit = stageErr.Unit
	}

	j.append(e)
}

// Entries returns a copy of everything recorded so far.
func (j *Journal) Entries() []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make([]Entry, len(j.entries))
	copy(out, j.entries)

	return out
}

// Last returns the most recent confirmed entry for stage.
func (j *Journal) Last(stage types.Stage) (Entry, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	for i := len(j.entries) - 1; i >= 0; i-- {
		e := j.entries[i]
		if e.Stage == stage.String() && e.Error == "" {
			return e, true
		}
	}

	return Entry{}, false
}

func (j *Journal) append(e Entry) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.entries = append(j.entries, e)
	if err := j.flush(); err != nil {
		log.Errorf("failed to write journal: %v", err)
	}
}

// flush rewrites the whole file through a temp file so a crash never leaves
// it half written.
func (j *Journal) flush() error {
	data, err := yaml.Marshal(document{Entries: j.entries})
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(j.path), 0755); err != nil {
		return err
	}

	tmp := j.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}

	return os.Rename(tmp, j.path)
}
