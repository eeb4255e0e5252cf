package consensus

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/aeonchain/aeon/pkg/cryptography"
	"github.com/aeonchain/aeon/pkg/executor"
	"github.com/aeonchain/aeon/pkg/storage"
	"github.com/aeonchain/aeon/pkg/types"
)

var testChainID = types.Digest([]byte("testnet"))

func testValidators(t *testing.T, n int) ([]*cryptography.BlsPrivateKey, []types.Validator) {
	t.Helper()

	keys := make([]*cryptography.BlsPrivateKey, 0, n)
	vals := make([]types.Validator, 0, n)

	for i := 0; i < n; i++ {
		k := cryptography.NewBlsKeyPair()
		pk, err := k.Public().Bytes()
		assert.NoError(t, err)

		keys = append(keys, k)
		vals = append(vals, types.Validator{
			Address:       types.AddressFromPubKey(pk),
			PubKey:        pk,
			ProposeWeight: 1,
			VoteWeight:    1,
		})
	}

	return keys, vals
}

// quorumProof builds a proof signed by every validator.
func quorumProof(t *testing.T, keys []*cryptography.BlsPrivateKey, id uint64, hash types.Hash) types.Proof {
	t.Helper()

	var bitmap []byte
	sigs := make([][]byte, 0, len(keys))

	for i, k := range keys {
		sig, err := k.Sign(hash.Bytes())
		assert.NoError(t, err)

		sigs = append(sigs, sig)
		bitmap = BitmapSet(bitmap, i)
	}

	agg, err := cryptography.AggregateSignatures(sigs...)
	assert.NoError(t, err)

	return types.Proof{
		EpochID:   id,
		EpochHash: hash,
		Signature: agg,
		Bitmap:    bitmap,
	}
}

// buildChain constructs epochs 0..n, each carrying the proof of its
// predecessor, all declaring the same state root.
func buildChain(t *testing.T, keys []*cryptography.BlsPrivateKey, vals []types.Validator, execRoot types.Hash, n uint64) []*types.Epoch {
	t.Helper()

	chain := make([]*types.Epoch, 0, n+1)

	for id := uint64(0); id <= n; id++ {
		header := types.EpochHeader{
			ChainID:    testChainID,
			EpochID:    id,
			StateRoot:  execRoot,
			Validators: vals,
		}

		if id > 0 {
			prev := chain[id-1]
			header.PreHash = prev.Hash()

			if id == 1 {
				// the genesis epoch has no quorum behind it
				header.Proof = types.Proof{EpochID: 0, EpochHash: header.PreHash}
			} else {
				header.Proof = quorumProof(t, keys, id-1, header.PreHash)
			}
		}

		chain = append(chain, &types.Epoch{Header: header})
	}

	return chain
}

// testAdapter is a ConsensusAdapter over in-memory maps. "local" is the
// node's own chain, "remote" what peers would serve, and ops records the
// commit pipeline's call order.
type testAdapter struct {
	mu  sync.Mutex
	ops []string

	local  map[uint64]*types.Epoch
	latest uint64

	remote    map[uint64]*types.Epoch
	remoteTxs map[types.Hash]*types.SignedTransaction

	validators []types.Validator

	execRoot   types.Hash
	pullEpochs int

	savedTxs      []*types.SignedTransaction
	savedReceipts []*types.Receipt
	savedProofs   []types.Proof
}

var _ ConsensusAdapter = (*testAdapter)(nil)

func newTestAdapter(vals []types.Validator, execRoot types.Hash) *testAdapter {
	return &testAdapter{
		local:      make(map[uint64]*types.Epoch),
		remote:     make(map[uint64]*types.Epoch),
		remoteTxs:  make(map[types.Hash]*types.SignedTransaction),
		validators: vals,
		execRoot:   execRoot,
	}
}

func (a *testAdapter) record(op string) {
	a.mu.Lock()
	a.ops = append(a.ops, op)
	a.mu.Unlock()
}

func (a *testAdapter) opLog() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	return append([]string(nil), a.ops...)
}

func (a *testAdapter) seedLocal(epochs ...*types.Epoch) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, e := range epochs {
		a.local[e.Header.EpochID] = e
		if e.Header.EpochID > a.latest {
			a.latest = e.Header.EpochID
		}
	}
}

func (a *testAdapter) seedRemote(epochs ...*types.Epoch) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, e := range epochs {
		a.remote[e.Header.EpochID] = e
	}
}

func (a *testAdapter) committed() []uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	ids := make([]uint64, 0, len(a.local))
	for id := range a.local {
		ids = append(ids, id)
	}

	return ids
}

func (a *testAdapter) GetTxsFromMempool(_ context.Context, _, _ uint64) (*types.MixedTxHashes, error) {
	return &types.MixedTxHashes{}, nil
}

func (a *testAdapter) CheckTxs(_ context.Context, _ []types.Hash) error {
	return nil
}

func (a *testAdapter) SyncTxs(_ context.Context, _ []types.Hash) error {
	return nil
}

func (a *testAdapter) GetFullTxs(_ context.Context, hashes []types.Hash) ([]*types.SignedTransaction, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	txs := make([]*types.SignedTransaction, 0, len(hashes))
	for _, h := range hashes {
		tx, ok := a.remoteTxs[h]
		if !ok {
			return nil, errors.Wrap(storage.ErrNotFound, h.Hex())
		}
		txs = append(txs, tx)
	}

	return txs, nil
}

func (a *testAdapter) FlushMempool(_ context.Context, _ []types.Hash) error {
	a.record("flush")
	return nil
}

func (a *testAdapter) Transmit(_ context.Context, _ []byte, _ string, _ MessageTarget) error {
	return nil
}

func (a *testAdapter) Execute(_ context.Context, _ NodeInfo, _ types.Hash, epochID, _ uint64, _ types.Address, txs []*types.SignedTransaction) (*executor.ExecResp, error) {
	a.record("exec")

	receipts := make([]*types.Receipt, 0, len(txs))
	for _, tx := range txs {
		receipts = append(receipts, &types.Receipt{
			StateRoot: a.execRoot,
			EpochID:   epochID,
			TxHash:    tx.TxHash,
		})
	}

	return &executor.ExecResp{
		Receipts:  receipts,
		StateRoot: a.execRoot,
	}, nil
}

func (a *testAdapter) SaveEpoch(_ context.Context, e *types.Epoch) error {
	a.record("save_epoch")
	a.seedLocal(e)
	return nil
}

func (a *testAdapter) SaveReceipts(_ context.Context, receipts []*types.Receipt) error {
	a.record("save_receipts")

	a.mu.Lock()
	a.savedReceipts = append(a.savedReceipts, receipts...)
	a.mu.Unlock()

	return nil
}

func (a *testAdapter) SaveProof(_ context.Context, proof types.Proof) error {
	a.record("save_proof")

	a.mu.Lock()
	a.savedProofs = append(a.savedProofs, proof)
	a.mu.Unlock()

	return nil
}

func (a *testAdapter) SaveSignedTxs(_ context.Context, txs []*types.SignedTransaction) error {
	a.record("save_txs")

	a.mu.Lock()
	a.savedTxs = append(a.savedTxs, txs...)
	a.mu.Unlock()

	return nil
}

func (a *testAdapter) GetLastValidators(_ context.Context, _ uint64) ([]types.Validator, error) {
	return a.validators, nil
}

func (a *testAdapter) GetCurrentEpochID(_ context.Context) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.local) == 0 {
		return 0, storage.ErrNotFound
	}

	return a.latest, nil
}

func (a *testAdapter) GetEpochByID(_ context.Context, epochID uint64) (*types.Epoch, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	e, ok := a.local[epochID]
	if !ok {
		return nil, errors.Wrapf(storage.ErrNotFound, "epoch %d", epochID)
	}

	return e, nil
}

func (a *testAdapter) PullEpoch(_ context.Context, epochID uint64, _ string) (*types.Epoch, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.pullEpochs++

	e, ok := a.remote[epochID]
	if !ok {
		return nil, errors.Wrapf(storage.ErrNotFound, "remote epoch %d", epochID)
	}

	return e, nil
}

func (a *testAdapter) PullTxs(_ context.Context, hashes []types.Hash, _ string) ([]*types.SignedTransaction, error) {
	return a.GetFullTxs(context.Background(), hashes)
}

// statusAt seeds a status whose next proposal is tip+1.
func statusAt(tip *types.Epoch, vals []types.Validator, execRoot types.Hash) *CurrentConsensusStatus {
	return NewCurrentConsensusStatus(Status{
		EpochID:     tip.Header.EpochID + 1,
		ExecEpochID: tip.Header.EpochID,
		PreHash:     tip.Hash(),
		StateRoots:  []types.Hash{execRoot},
		CyclesLimit: 1_000_000,
		Validators:  vals,
	})
}
