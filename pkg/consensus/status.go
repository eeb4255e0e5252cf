package consensus

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/aeonchain/aeon/pkg/types"
)

// Status is a point-in-time view of the node's chain tip. EpochID is the
// next epoch to propose; ExecEpochID the most recently committed one.
type Status struct {
	EpochID     uint64
	ExecEpochID uint64
	PreHash     types.Hash

	StateRoots   []types.Hash
	ReceiptRoots []types.Hash
	CyclesUsed   []uint64

	CyclesPrice uint64
	CyclesLimit uint64

	Validators       []types.Validator
	ValidatorVersion uint64

	Proof types.Proof

	// broadcast interval in milliseconds
	ConsensusInterval uint64
}

// LatestStateRoot is the root resulting from the most recent commit.
func (s Status) LatestStateRoot() types.Hash {
	if len(s.StateRoots) == 0 {
		return types.NilHash
	}

	return s.StateRoots[len(s.StateRoots)-1]
}

// CurrentConsensusStatus is the shared, lock-guarded view of the chain
// tip. Writers apply one committed epoch's delta at a time and never
// hold the lock across I/O; readers take snapshots.
type CurrentConsensusStatus struct {
	mu sync.RWMutex
	s  Status
}

func NewCurrentConsensusStatus(genesis Status) *CurrentConsensusStatus {
	return &CurrentConsensusStatus{s: genesis}
}

func (c *CurrentConsensusStatus) Snapshot() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := c.s
	s.StateRoots = append([]types.Hash(nil), c.s.StateRoots...)
	s.ReceiptRoots = append([]types.Hash(nil), c.s.ReceiptRoots...)
	s.CyclesUsed = append([]uint64(nil), c.s.CyclesUsed...)
	s.Validators = append([]types.Validator(nil), c.s.Validators...)

	return s
}

// ApplyCommit folds one committed epoch into the status. The epoch id
// must be exactly the next expected one; anything else means the caller
// violated the engine's exclusive-access guard.
func (c *CurrentConsensusStatus) ApplyCommit(e *types.Epoch, proof types.Proof, stateRoot types.Hash, cyclesUsed uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e.Header.EpochID != c.s.EpochID {
		return errors.Wrapf(ErrStatusOutOfOrder, "committing %d, expected %d", e.Header.EpochID, c.s.EpochID)
	}

	c.s.EpochID = e.Header.EpochID + 1
	c.s.ExecEpochID = e.Header.EpochID
	c.s.PreHash = e.Hash()
	c.s.StateRoots = append(c.s.StateRoots, stateRoot)
	if len(e.Header.ReceiptRoot) > 0 {
		c.s.ReceiptRoots = append(c.s.ReceiptRoots, e.Header.ReceiptRoot...)
	}
	c.s.CyclesUsed = append(c.s.CyclesUsed, cyclesUsed)
	c.s.Proof = proof

	if len(e.Header.Validators) > 0 {
		c.s.Validators = append([]types.Validator(nil), e.Header.Validators...)
		c.s.ValidatorVersion = e.Header.ValidatorVersion
	}

	return nil
}
