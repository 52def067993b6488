package types

import (
	"fmt"
	"time"
)

// TxHash identifies a submitted chain transaction.
type TxHash string

// Short returns the abbreviated hash shown to the operator.
func (h TxHash) Short() string {
	if len(h) <= 6 {
		return string(h)
	}

	return string(h[:6])
}

func (h TxHash) String() string {
	return string(h)
}

// IsEmpty reports whether no transaction id is present.
func (h TxHash) IsEmpty() bool {
	return h == ""
}

// OracleIdentity is the on-chain handle of the published random feed.
// Unit is assigned at mint time and never changes afterwards.
type OracleIdentity struct {
	Unit       string
	Registered bool
}

// NewOracleIdentity returns an identity that has been minted but not yet registered.
func NewOracleIdentity(unit string) OracleIdentity {
	return OracleIdentity{Unit: unit, Registered: false}
}

// MarkRegistered flips the registration flag. It is a one-way transition.
func (o *OracleIdentity) MarkRegistered() {
	o.Registered = true
}

type MintResult struct {
	Unit   string
	TxHash TxHash
}

type InitResult struct {
	TxHash TxHash
}

type RegisterResult struct {
	TxHash TxHash
}

type UpdateResult struct {
	TxHash TxHash
}

type QueryResult struct {
	Output string
}

// GenerationRequest is the transient input of a generate action.
type GenerationRequest struct {
	OutputLength int
}

func (r GenerationRequest) Validate() error {
	if r.OutputLength <= 0 {
		return ErrInvalidInput.Wrapf("output length must be positive, got %d", r.OutputLength)
	}

	return nil
}

type Stage byte

const (
	StageMint Stage = iota
	StageInit
	StageRegister
	StageUpdate
	StageQuery
)

func (s Stage) String() string {
	switch s {
	case StageMint:
		return "mint"
	case StageInit:
		return "init"
	case StageRegister:
		return "register"
	case StageUpdate:
		return "update"
	case StageQuery:
		return "query"
	default:
		return fmt.Sprintf("stage(%d)", byte(s))
	}
}

// BootState is the position of the bootstrap state machine.
type BootState byte

const (
	Unstarted BootState = iota
	Minted
	Initialized
	Registered
)

func (b BootState) String() string {
	switch b {
	case Unstarted:
		return "unstarted"
	case Minted:
		return "minted"
	case Initialized:
		return "initialized"
	case Registered:
		return "registered"
	default:
		return fmt.Sprintf("state(%d)", byte(b))
	}
}

// StageRecord describes one confirmed stage.
type StageRecord struct {
	Stage  Stage
	TxHash TxHash
	Unit   string
	Detail string
	At     time.Time
}

// Observer is told about every confirmed or failed stage.
type Observer interface {
	StageConfirmed(record StageRecord)
	StageFailed(stage Stage, err error)
}

// Observers fans a record out to several observers.
type Observers []Observer

func (o Observers) StageConfirmed(record StageRecord) {
	for _, obs := range o {
		obs.StageConfirmed(record)
	}
}

func (o Observers) StageFailed(stage Stage, err error) {
	for _, obs := range o {
		obs.StageFailed(stage, err)
	}
}

// Network is the target chain selected by an integer.
type Network int

const (
	Preprod Network = 0
	Mainnet Network = 1
)

var networkData = map[Network]struct {
	name          string
	blockfrostURL string
}{
	Preprod: {name: "Preprod", blockfrostURL: "https://cardano-preprod.blockfrost.io/api/v0"},
	Mainnet: {name: "Mainnet", blockfrostURL: "https://cardano-mainnet.blockfrost.io/api/v0"},
}

// ParseNetwork validates an integer selector.
func ParseNetwork(selector int) (Network, error) {
	n := Network(selector)
	if _, ok := networkData[n]; !ok {
		return 0, ErrInvalidInput.Wrapf("unknown network selector %d", selector)
	}

	return n, nil
}

func (n Network) Name() string {
	return networkData[n].name
}

func (n Network) BlockfrostURL() string {
	return networkData[n].blockfrostURL
}

// BaseParams is everything the executor needs to open a session.
type BaseParams struct {
	Network          Network
	BlockfrostAPIKey string
	RngAPIURL        string
	OgmiosURL        string
	OracleCBOR       string
	RngCBOR          string
	WalletSeed       string
	RngOutputLen     int
}
