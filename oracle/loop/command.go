package loop

import (
	"context"

	"github.com/GPTx-global/rngoracle/oracle/types"
)

// Command is one operator action. The set is closed: GenerateCommand,
// QueryCommand and UnknownCommand.
type Command interface {
	isCommand()
	Name() string
}

// GenerateCommand requests a fresh random value and publishes it.
type GenerateCommand struct {
	Request types.GenerationRequest
}

// QueryCommand reads the value behind the current head.
type QueryCommand struct{}

// UnknownCommand carries input that did not map to an action.
type UnknownCommand struct {
	Input string
}

func (GenerateCommand) isCommand() {}
func (QueryCommand) isCommand()    {}
func (UnknownCommand) isCommand()  {}

func (GenerateCommand) Name() string { return "generate" }
func (QueryCommand) Name() string    { return "query" }
func (UnknownCommand) Name() string  { return "unknown" }

// Prompter supplies the next command. It returns io.EOF when input ends.
type Prompter interface {
	NextCommand(ctx context.Context) (Command, error)
}
