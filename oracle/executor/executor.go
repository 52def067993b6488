package executor

import (
	"context"

	"github.com/GPTx-global/rngoracle/oracle/types"
)

// Setting keys accepted by Reconfigure.
const (
	KeyOutputLength = "rngOutputLen"
)

// Executor performs one logical chain operation per call. Building, signing
// and broadcasting happen behind it.
type Executor interface {
	MintIdentity(ctx context.Context, name string) (types.MintResult, error)
	InitializeGenerator(ctx context.Context) (types.InitResult, error)
	RegisterIdentity(ctx context.Context, initTx types.TxHash, unit string) (types.RegisterResult, error)
	UpdateIdentity(ctx context.Context, initTx types.TxHash, unit string, prevHead types.TxHash) (types.UpdateResult, error)
	QueryIdentity(ctx context.Context, head types.TxHash) (types.QueryResult, error)
	// Reconfigure changes executor-held settings used by the next InitializeGenerator.
	Reconfigure(key, value string) error
}
