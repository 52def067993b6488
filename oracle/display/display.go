package display

import (
	"fmt"
	"io"
	"sync"

	"github.com/GPTx-global/rngoracle/oracle/types"
)

// Display shows progress to the operator. It has no state of its own.
type Display interface {
	Status(msg string)
	Waiting(tx types.TxHash)
	Output(value string)
	Failure(err error)
}

// Console writes one line per event.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

func (c *Console) Status(msg string) {
	c.println(msg)
}

func (c *Console) Waiting(tx types.TxHash) {
	c.println(fmt.Sprintf("Waiting for transaction: %s... to be confirmed", tx.Short()))
}

func (c *Console) Output(value string) {
	c.println(fmt.Sprintf("Random Number from Oracle: %s", value))
}

func (c *Console) Failure(err error) {
	c.println(fmt.Sprintf("Error: %v", err))
}

func (c *Console) println(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, _ = fmt.Fprintln(c.out, line)
}

// Discard drops everything.
type Discard struct{}

func (Discard) Status(string)        {}
func (Discard) Waiting(types.TxHash) {}
func (Discard) Output(string)        {}
func (Discard) Failure(error)        {}
