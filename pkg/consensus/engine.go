package consensus

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aeonchain/aeon/internal/utils/logging"
	"github.com/aeonchain/aeon/pkg/storage"
	"github.com/aeonchain/aeon/pkg/types"
)

// ConsensusEngine orchestrates a single epoch's lifecycle: packaging,
// execution, proof handling and ordered persistence. The engine mutex is
// the sole ordering device between the live consensus path and
// synchronization replay; it is held for the entire exec→save window of
// one epoch.
type ConsensusEngine struct {
	status  *CurrentConsensusStatus
	node    NodeInfo
	adapter ConsensusAdapter

	lock sync.Mutex

	logger *logrus.Entry
}

func NewConsensusEngine(status *CurrentConsensusStatus, node NodeInfo, adapter ConsensusAdapter) *ConsensusEngine {
	return &ConsensusEngine{
		status:  status,
		node:    node,
		adapter: adapter,
		logger:  logging.WithField("chain", node.ChainID),
	}
}

// Lock acquires the engine's exclusive-access guard for a whole
// synchronization session.
func (e *ConsensusEngine) Lock() {
	e.lock.Lock()
}

func (e *ConsensusEngine) Unlock() {
	e.lock.Unlock()
}

func (e *ConsensusEngine) Status() Status {
	return e.status.Snapshot()
}

// Package delegates to the mempool and returns the hashes to propose
// plus those still awaiting order confirmation.
func (e *ConsensusEngine) Package(ctx context.Context, cycleLimit uint64) (*types.MixedTxHashes, error) {
	snap := e.status.Snapshot()
	return e.adapter.GetTxsFromMempool(ctx, snap.EpochID, cycleLimit)
}

func (e *ConsensusEngine) GetEpochByID(ctx context.Context, id uint64) (*types.Epoch, error) {
	return e.adapter.GetEpochByID(ctx, id)
}

func (e *ConsensusEngine) GetCurrentEpochID(ctx context.Context) (uint64, error) {
	return e.adapter.GetCurrentEpochID(ctx)
}

// BuildPill assembles the next proposal from the current status
// snapshot and the mempool's packaging result. The state root is left
// empty; commit fills it after execution.
func (e *ConsensusEngine) BuildPill(ctx context.Context) (*types.Pill, error) {
	snap := e.status.Snapshot()

	mixed, err := e.adapter.GetTxsFromMempool(ctx, snap.EpochID, snap.CyclesLimit)
	if err != nil {
		return nil, errors.Wrap(err, "packaging txs")
	}

	bloom, err := storage.MakeBloom(mixed.OrderTxHashes)
	if err != nil {
		return nil, errors.Wrap(err, "building logs bloom")
	}

	header := types.EpochHeader{
		ChainID:          e.node.ChainID,
		EpochID:          snap.EpochID,
		PreHash:          snap.PreHash,
		Timestamp:        uint64(time.Now().UnixMilli()),
		LogsBloom:        bloom,
		OrderRoot:        orderRoot(mixed.OrderTxHashes),
		Proposer:         e.node.SelfAddress,
		Proof:            snap.Proof,
		ValidatorVersion: snap.ValidatorVersion,
		Validators:       snap.Validators,
	}

	return &types.Pill{
		Epoch: types.Epoch{
			Header:          header,
			OrderedTxHashes: mixed.OrderTxHashes,
		},
		ProposeTxHashes: mixed.ProposeTxHashes,
	}, nil
}

// VerifyPill checks a peer's proposal against the local chain tip and
// confirms tx availability through the mempool.
func (e *ConsensusEngine) VerifyPill(ctx context.Context, pill *types.Pill) error {
	snap := e.status.Snapshot()
	header := pill.Epoch.Header

	if !header.ChainID.Equal(e.node.ChainID) {
		return errors.Wrap(ErrStaleProposal, "wrong chain")
	}

	if header.EpochID != snap.EpochID {
		return errors.Wrapf(ErrStaleProposal, "pill for %d, expected %d", header.EpochID, snap.EpochID)
	}

	if !header.PreHash.Equal(snap.PreHash) {
		return errors.Wrap(ErrStaleProposal, "pre hash diverges from local tip")
	}

	if len(pill.ProposeTxHashes) > 0 {
		if err := e.adapter.SyncTxs(ctx, pill.ProposeTxHashes); err != nil {
			return errors.Wrap(err, "syncing proposed txs")
		}
	}

	return e.adapter.CheckTxs(ctx, pill.Epoch.OrderedTxHashes)
}

// CommitEpoch runs the full commit pipeline for an agreed epoch on the
// live consensus path, fetching tx bodies from the mempool.
func (e *ConsensusEngine) CommitEpoch(ctx context.Context, epoch *types.Epoch, proof types.Proof) error {
	e.lock.Lock()
	defer e.lock.Unlock()

	txs, err := e.adapter.GetFullTxs(ctx, epoch.OrderedTxHashes)
	if err != nil {
		return errors.Wrap(err, "fetching full txs")
	}

	return e.commitLocked(ctx, epoch, txs, proof)
}

// commitLocked persists one epoch in the fixed order
// execute → save txs → save receipts → save proof → save epoch, then
// applies the committed delta to the shared status and flushes the
// mempool. The caller must hold the engine lock.
func (e *ConsensusEngine) commitLocked(ctx context.Context, epoch *types.Epoch, txs []*types.SignedTransaction, proof types.Proof) error {
	snap := e.status.Snapshot()

	if epoch.Header.EpochID != snap.EpochID {
		return errors.Wrapf(ErrStatusOutOfOrder, "committing %d, expected %d", epoch.Header.EpochID, snap.EpochID)
	}

	resp, err := e.adapter.Execute(ctx, e.node, snap.LatestStateRoot(), epoch.Header.EpochID, snap.CyclesPrice, epoch.Header.Proposer, txs)
	if err != nil {
		// trie/storage level failure; state corruption risk, surface it
		return errors.Wrapf(err, "executing epoch %d", epoch.Header.EpochID)
	}

	if epoch.Header.StateRoot.IsNil() {
		epoch.Header.StateRoot = resp.StateRoot
		epoch.Header.ReceiptRoot = []types.Hash{receiptRoot(resp.Receipts)}
		epoch.Header.CyclesUsed = []uint64{resp.AllCyclesUsed}
	} else if !epoch.Header.StateRoot.Equal(resp.StateRoot) {
		return errors.Wrapf(ErrStateRootMismatch, "epoch %d declared %s, executed %s",
			epoch.Header.EpochID, epoch.Header.StateRoot, resp.StateRoot)
	}

	if err := e.adapter.SaveSignedTxs(ctx, txs); err != nil {
		return errors.Wrapf(err, "saving signed txs for epoch %d", epoch.Header.EpochID)
	}

	if err := e.adapter.SaveReceipts(ctx, resp.Receipts); err != nil {
		return errors.Wrapf(err, "saving receipts for epoch %d", epoch.Header.EpochID)
	}

	if err := e.adapter.SaveProof(ctx, proof); err != nil {
		return errors.Wrapf(err, "saving proof for epoch %d", epoch.Header.EpochID)
	}

	if err := e.adapter.SaveEpoch(ctx, epoch); err != nil {
		return errors.Wrapf(err, "saving epoch %d", epoch.Header.EpochID)
	}

	if err := e.status.ApplyCommit(epoch, proof, resp.StateRoot, resp.AllCyclesUsed); err != nil {
		return err
	}

	if err := e.adapter.FlushMempool(ctx, epoch.OrderedTxHashes); err != nil {
		return errors.Wrapf(err, "flushing mempool for epoch %d", epoch.Header.EpochID)
	}

	e.logger.WithFields(logging.Fields{
		"epoch": epoch.Header.EpochID,
		"txs":   len(txs),
		"root":  resp.StateRoot,
	}).Info("epoch committed")

	return nil
}

func orderRoot(hashes []types.Hash) types.Hash {
	if len(hashes) == 0 {
		return types.NilHash
	}

	b, _ := msgpack.Marshal(hashes)
	return types.Digest(b)
}

func receiptRoot(receipts []*types.Receipt) types.Hash {
	if len(receipts) == 0 {
		return types.NilHash
	}

	hashes := make([]types.Hash, 0, len(receipts))
	for _, r := range receipts {
		b, _ := r.Marshal()
		hashes = append(hashes, types.Digest(b))
	}

	b, _ := msgpack.Marshal(hashes)
	return types.Digest(b)
}
