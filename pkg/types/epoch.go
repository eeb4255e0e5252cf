package types

import (
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// EpochHeader describes one unit of finality. Once an epoch is committed
// the header is immutable and identified by its digest.
type EpochHeader struct {
	ChainID          Hash        `msgpack:"c"`
	EpochID          uint64      `msgpack:"e"`
	PreHash          Hash        `msgpack:"ph"`
	Timestamp        uint64      `msgpack:"ts"`
	LogsBloom        []byte      `msgpack:"lb"`
	OrderRoot        Hash        `msgpack:"or"`
	ConfirmRoot      []Hash      `msgpack:"cr"`
	StateRoot        Hash        `msgpack:"sr"`
	ReceiptRoot      []Hash      `msgpack:"rr"`
	CyclesUsed       []uint64    `msgpack:"cu"`
	Proposer         Address     `msgpack:"pp"`
	Proof            Proof       `msgpack:"pf"`
	ValidatorVersion uint64      `msgpack:"vv"`
	Validators       []Validator `msgpack:"vs"`
}

type Epoch struct {
	Header          EpochHeader `msgpack:"h"`
	OrderedTxHashes []Hash      `msgpack:"txs"`
}

// Hash identifies the epoch by the digest of its encoded header.
func (e *Epoch) Hash() Hash {
	b, _ := msgpack.Marshal(e.Header)
	return Digest(b)
}

func (e *Epoch) Marshal() ([]byte, error) {
	b, err := msgpack.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling epoch")
	}

	return b, nil
}

func (e *Epoch) Unmarshal(b []byte) error {
	return msgpack.Unmarshal(b, e)
}

// Proof is the aggregated quorum signature authenticating a committed
// epoch. One proof exists per committed epoch.
type Proof struct {
	EpochID   uint64 `msgpack:"e"`
	Round     uint64 `msgpack:"r"`
	EpochHash Hash   `msgpack:"h"`
	Signature []byte `msgpack:"s"`
	Bitmap    []byte `msgpack:"b"`
}

func (p *Proof) Marshal() ([]byte, error) {
	b, err := msgpack.Marshal(p)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling proof")
	}

	return b, nil
}

func (p *Proof) Unmarshal(b []byte) error {
	return msgpack.Unmarshal(b, p)
}

type Validator struct {
	Address       Address `msgpack:"a"`
	PubKey        []byte  `msgpack:"pk"`
	ProposeWeight uint32  `msgpack:"pw"`
	VoteWeight    uint32  `msgpack:"vw"`
}

// Pill is the proposal payload the BFT engine agrees on: a candidate
// epoch plus the tx hashes whose order still needs confirmation.
type Pill struct {
	Epoch           Epoch  `msgpack:"e"`
	ProposeTxHashes []Hash `msgpack:"p"`
}

func (p *Pill) Marshal() ([]byte, error) {
	b, err := msgpack.Marshal(p)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling pill")
	}

	return b, nil
}

func (p *Pill) Unmarshal(b []byte) error {
	return msgpack.Unmarshal(b, p)
}

// MixedTxHashes is a packaging result from the mempool. Order hashes are
// ready to commit; propose hashes still need consensus-wide order
// confirmation.
type MixedTxHashes struct {
	OrderTxHashes   []Hash `msgpack:"o"`
	ProposeTxHashes []Hash `msgpack:"p"`
}
