package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cosmos/cosmos-sdk/client/input"
	bip39 "github.com/cosmos/go-bip39"
	"github.com/spf13/cast"

	"github.com/GPTx-global/rngoracle/oracle/loop"
	"github.com/GPTx-global/rngoracle/oracle/types"
)

const (
	PromptNetwork      = "Which network ? \n Type 1 for Mainnet \n Type 0 for Preprod"
	PromptBlockfrost   = "Enter Blockfrost api key:"
	PromptRngAPI       = "Enter the hosted RNG API URL:"
	PromptOgmios       = "Enter the hosted Ogmios URL:"
	PromptOracleCBOR   = "Enter Oracle Contract compiled CBOR:"
	PromptRngCBOR      = "Enter RNG Contract compiled CBOR:"
	PromptWalletSeed   = "Enter 12, 15 or 24 words wallet seed (should have atleast 5-10 ADA) to perform actions:"
	PromptOutputLength = "Enter your desired Random Number length:"
	PromptDisplayName  = "Enter your desired name for Oracle DID:"
	PromptAction       = "Following actions you can do with\n 1. Generate new RNG\n 2. Query Oracle DID"

	// NetworkUnset asks the operator for the network.
	NetworkUnset = -1

	maxAttempts = 3
)

var _ loop.Prompter = (*Session)(nil)

// Preset carries values already known from config or environment. Empty
// strings, a zero output length and NetworkUnset are prompted for.
type Preset struct {
	Network          int
	BlockfrostAPIKey string
	RngAPIURL        string
	OgmiosURL        string
	OracleCBOR       string
	RngCBOR          string
	WalletSeed       string
	RngOutputLen     int
}

// Session reads operator input line by line. Reads block until a line is
// available; ctx is only checked between prompts.
type Session struct {
	reader *bufio.Reader
	out    io.Writer
}

func New(in io.Reader, out io.Writer) *Session {
	return &Session{reader: bufio.NewReader(in), out: out}
}

// Params collects the base parameters once, prompting for whatever preset
// leaves open.
func (s *Session) Params(preset Preset) (types.BaseParams, error) {
	var (
		params types.BaseParams
		err    error
	)

	if preset.Network == NetworkUnset {
		if params.Network, err = s.askNetwork(); err != nil {
			return params, err
		}
	} else if params.Network, err = types.ParseNetwork(preset.Network); err != nil {
		return params, err
	}

	fields := []struct {
		dst    *string
		preset string
		prompt string
	}{
		{&params.BlockfrostAPIKey, preset.BlockfrostAPIKey, PromptBlockfrost},
		{&params.RngAPIURL, preset.RngAPIURL, PromptRngAPI},
		{&params.OgmiosURL, preset.OgmiosURL, PromptOgmios},
		{&params.OracleCBOR, preset.OracleCBOR, PromptOracleCBOR},
		{&params.RngCBOR, preset.RngCBOR, PromptRngCBOR},
	}
	for _, f := range fields {
		if f.preset != "" {
			*f.dst = strings.TrimSpace(f.preset)
			continue
		}
		if *f.dst, err = s.askString(f.prompt); err != nil {
			return params, err
		}
	}

	params.WalletSeed = normalizeSeed(preset.WalletSeed)
	if params.WalletSeed == "" {
		if params.WalletSeed, err = s.askSeed(); err != nil {
			return params, err
		}
	} else if err := ValidateSeed(params.WalletSeed); err != nil {
		return params, err
	}

	params.RngOutputLen = preset.RngOutputLen
	if params.RngOutputLen <= 0 {
		if params.RngOutputLen, err = s.askInt(PromptOutputLength, 1); err != nil {
			return params, err
		}
	}

	return params, nil
}

// DisplayName asks for the name the oracle identity is minted under.
func (s *Session) DisplayName() (string, error) {
	return s.askString(PromptDisplayName)
}

// NextCommand reads one action selection.
func (s *Session) NextCommand(ctx context.Context) (loop.Command, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	choice, err := s.readLine(PromptAction)
	if err != nil {
		return nil, err
	}

	switch choice {
	case "1":
		n, err := s.askInt(PromptOutputLength, 1)
		if err != nil {
			return nil, err
		}

		return loop.GenerateCommand{Request: types.GenerationRequest{OutputLength: n}}, nil
	case "2":
		return loop.QueryCommand{}, nil
	default:
		return loop.UnknownCommand{Input: choice}, nil
	}
}

// ValidateSeed accepts BIP-39 mnemonics of 12, 15 or 24 words with a valid
// checksum. Words must be separated by single spaces.
func ValidateSeed(seed string) error {
	switch n := len(strings.Fields(seed)); n {
	case 12, 15, 24:
	default:
		return types.ErrInvalidInput.Wrapf("wallet seed must have 12, 15 or 24 words, got %d", n)
	}
	if _, err := bip39.MnemonicToByteArray(seed); err != nil {
		return types.ErrInvalidInput.Wrapf("wallet seed is not a valid mnemonic: %v", err)
	}

	return nil
}

func normalizeSeed(seed string) string {
	return strings.Join(strings.Fields(seed), " ")
}

func (s *Session) readLine(prompt string) (string, error) {
	_, _ = fmt.Fprintln(s.out, prompt)

	return input.GetString("", s.reader)
}

func (s *Session) askString(prompt string) (string, error) {
	for attempt := 1; ; attempt++ {
		value, err := s.readLine(prompt)
		if err != nil {
			return "", err
		}
		if value != "" {
			return value, nil
		}
		if attempt == maxAttempts {
			return "", types.ErrInvalidInput.Wrapf("no value given for %q", prompt)
		}
	}
}

func (s *Session) askInt(prompt string, lowest int) (int, error) {
	for attempt := 1; ; attempt++ {
		value, err := s.readLine(prompt)
		if err != nil {
			return 0, err
		}

		n, convErr := cast.ToIntE(value)
		if convErr == nil && n >= lowest {
			return n, nil
		}
		if attempt == maxAttempts {
			return 0, types.ErrInvalidInput.Wrapf("expected a number >= %d, got %q", lowest, value)
		}
		_, _ = fmt.Fprintf(s.out, "Error: expected a number >= %d\n", lowest)
	}
}

func (s *Session) askNetwork() (types.Network, error) {
	for attempt := 1; ; attempt++ {
		value, err := s.readLine(PromptNetwork)
		if err != nil {
			return 0, err
		}

		selector, convErr := cast.ToIntE(value)
		if convErr != nil {
			convErr = types.ErrInvalidInput.Wrapf("expected a network number, got %q", value)
		} else {
			var network types.Network
			if network, convErr = types.ParseNetwork(selector); convErr == nil {
				return network, nil
			}
		}
		if attempt == maxAttempts {
			return 0, convErr
		}
		_, _ = fmt.Fprintf(s.out, "Error: %v\n", convErr)
	}
}

func (s *Session) askSeed() (string, error) {
	for attempt := 1; ; attempt++ {
		_, _ = fmt.Fprintln(s.out, PromptWalletSeed)

		seed, err := input.GetPassword("", s.reader)
		if err != nil && seed == "" {
			return "", err
		}
		seed = normalizeSeed(seed)

		validErr := ValidateSeed(seed)
		if validErr == nil {
			return seed, nil
		}
		if attempt == maxAttempts {
			return "", validErr
		}
		_, _ = fmt.Fprintf(s.out, "Error: %v\n", validErr)
	}
}
