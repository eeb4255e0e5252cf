package consensus

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aeonchain/aeon/pkg/types"
)

func TestStatusSnapshotIsolation(t *testing.T) {
	_, vals := testValidators(t, 4)

	status := NewCurrentConsensusStatus(Status{
		EpochID:    5,
		StateRoots: []types.Hash{types.Digest([]byte("root"))},
		Validators: vals,
	})

	snap := status.Snapshot()
	snap.StateRoots[0] = types.Digest([]byte("mutated"))
	snap.Validators[0].VoteWeight = 99

	fresh := status.Snapshot()
	assert.Equal(t, types.Digest([]byte("root")), fresh.StateRoots[0])
	assert.Equal(t, uint32(1), fresh.Validators[0].VoteWeight)
}

func TestStatusApplyCommit(t *testing.T) {
	keys, vals := testValidators(t, 4)
	root := types.Digest([]byte("root"))
	chain := buildChain(t, keys, vals, root, 1)

	status := statusAt(chain[0], vals, root)
	next := chain[1]

	proof := quorumProof(t, keys, 1, next.Hash())
	assert.NoError(t, status.ApplyCommit(next, proof, root, 42))

	snap := status.Snapshot()
	assert.Equal(t, uint64(2), snap.EpochID)
	assert.Equal(t, uint64(1), snap.ExecEpochID)
	assert.Equal(t, next.Hash(), snap.PreHash)
	assert.Equal(t, root, snap.LatestStateRoot())
	assert.Equal(t, proof, snap.Proof)
	assert.Equal(t, []uint64{42}, snap.CyclesUsed[len(snap.CyclesUsed)-1:])
}

func TestStatusApplyCommitOutOfOrder(t *testing.T) {
	keys, vals := testValidators(t, 4)
	root := types.Digest([]byte("root"))
	chain := buildChain(t, keys, vals, root, 3)

	status := statusAt(chain[0], vals, root)

	// skipping epoch 1 entirely must be rejected
	err := status.ApplyCommit(chain[2], chain[2].Header.Proof, root, 0)
	assert.ErrorIs(t, err, ErrStatusOutOfOrder)

	// replaying the already-applied tip must be rejected too
	assert.NoError(t, status.ApplyCommit(chain[1], chain[1].Header.Proof, root, 0))
	err = status.ApplyCommit(chain[1], chain[1].Header.Proof, root, 0)
	assert.ErrorIs(t, err, ErrStatusOutOfOrder)
}

func TestStatusApplyCommitRotatesValidators(t *testing.T) {
	keys, vals := testValidators(t, 4)
	_, nextVals := testValidators(t, 5)
	root := types.Digest([]byte("root"))
	chain := buildChain(t, keys, vals, root, 1)

	next := chain[1]
	next.Header.Validators = nextVals
	next.Header.ValidatorVersion = 2

	status := statusAt(chain[0], vals, root)
	assert.NoError(t, status.ApplyCommit(next, next.Header.Proof, root, 0))

	snap := status.Snapshot()
	assert.Len(t, snap.Validators, 5)
	assert.Equal(t, uint64(2), snap.ValidatorVersion)
}
