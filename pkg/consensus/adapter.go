package consensus

import (
	"context"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aeonchain/aeon/pkg/executor"
	"github.com/aeonchain/aeon/pkg/mempool"
	"github.com/aeonchain/aeon/pkg/storage"
	"github.com/aeonchain/aeon/pkg/types"
)

type Priority uint8

const (
	PriorityLow Priority = iota
	PriorityHigh
)

// MessageTarget selects broadcast or a specific peer set for Transmit.
type MessageTarget struct {
	Broadcast bool
	Peers     []string
}

// Gossip publishes consensus payloads to the network.
type Gossip interface {
	Broadcast(ctx context.Context, end string, payload []byte, p Priority) error
	Unicast(ctx context.Context, end string, peers []string, payload []byte, p Priority) error
}

// Rpc performs a request/response round-trip against a peer chosen by
// the transport. The call's own timeout bounds the wait.
type Rpc interface {
	Call(ctx context.Context, end string, req []byte) ([]byte, error)
}

// NodeInfo identifies this node on its chain.
type NodeInfo struct {
	ChainID     types.Hash
	SelfAddress types.Address
}

// ConsensusAdapter is the engine's boundary to the outside world. Every
// operation maps 1:1 to a collaborator call and propagates errors
// unchanged; retry policy belongs to callers.
type ConsensusAdapter interface {
	GetTxsFromMempool(ctx context.Context, epochID, cycleLimit uint64) (*types.MixedTxHashes, error)
	CheckTxs(ctx context.Context, hashes []types.Hash) error
	SyncTxs(ctx context.Context, hashes []types.Hash) error
	GetFullTxs(ctx context.Context, hashes []types.Hash) ([]*types.SignedTransaction, error)
	FlushMempool(ctx context.Context, hashes []types.Hash) error

	Transmit(ctx context.Context, msg []byte, end string, target MessageTarget) error

	Execute(ctx context.Context, node NodeInfo, stateRoot types.Hash, epochID, cyclesPrice uint64, coinbase types.Address, txs []*types.SignedTransaction) (*executor.ExecResp, error)

	SaveEpoch(ctx context.Context, e *types.Epoch) error
	SaveReceipts(ctx context.Context, receipts []*types.Receipt) error
	SaveProof(ctx context.Context, proof types.Proof) error
	SaveSignedTxs(ctx context.Context, txs []*types.SignedTransaction) error

	GetLastValidators(ctx context.Context, epochID uint64) ([]types.Validator, error)
	GetCurrentEpochID(ctx context.Context) (uint64, error)
	GetEpochByID(ctx context.Context, epochID uint64) (*types.Epoch, error)

	PullEpoch(ctx context.Context, epochID uint64, end string) (*types.Epoch, error)
	PullTxs(ctx context.Context, hashes []types.Hash, end string) ([]*types.SignedTransaction, error)
}

var _ ConsensusAdapter = (*DefaultAdapter)(nil)

type DefaultAdapter struct {
	rpc     Rpc
	gossip  Gossip
	memPool mempool.MemPool
	store   storage.Storage
	factory executor.Factory
}

func NewDefaultAdapter(rpc Rpc, gossip Gossip, memPool mempool.MemPool, store storage.Storage, factory executor.Factory) *DefaultAdapter {
	return &DefaultAdapter{
		rpc:     rpc,
		gossip:  gossip,
		memPool: memPool,
		store:   store,
		factory: factory,
	}
}

func (a *DefaultAdapter) GetTxsFromMempool(ctx context.Context, _ uint64, cycleLimit uint64) (*types.MixedTxHashes, error) {
	return a.memPool.Package(ctx, cycleLimit)
}

func (a *DefaultAdapter) CheckTxs(ctx context.Context, hashes []types.Hash) error {
	return a.memPool.EnsureOrderTxs(ctx, hashes)
}

func (a *DefaultAdapter) SyncTxs(ctx context.Context, hashes []types.Hash) error {
	return a.memPool.SyncProposeTxs(ctx, hashes)
}

func (a *DefaultAdapter) GetFullTxs(ctx context.Context, hashes []types.Hash) ([]*types.SignedTransaction, error) {
	return a.memPool.GetFullTxs(ctx, hashes)
}

func (a *DefaultAdapter) FlushMempool(ctx context.Context, hashes []types.Hash) error {
	return a.memPool.Flush(ctx, hashes)
}

func (a *DefaultAdapter) Transmit(ctx context.Context, msg []byte, end string, target MessageTarget) error {
	if target.Broadcast {
		return a.gossip.Broadcast(ctx, end, msg, PriorityHigh)
	}

	return a.gossip.Unicast(ctx, end, target.Peers, msg, PriorityHigh)
}

func (a *DefaultAdapter) Execute(ctx context.Context, node NodeInfo, stateRoot types.Hash, epochID, cyclesPrice uint64, coinbase types.Address, txs []*types.SignedTransaction) (*executor.ExecResp, error) {
	exec, err := a.factory.FromRoot(node.ChainID, stateRoot, epochID, cyclesPrice, coinbase)
	if err != nil {
		return nil, err
	}

	return exec.Exec(ctx, txs)
}

func (a *DefaultAdapter) SaveEpoch(ctx context.Context, e *types.Epoch) error {
	return a.store.InsertEpoch(ctx, e)
}

func (a *DefaultAdapter) SaveReceipts(ctx context.Context, receipts []*types.Receipt) error {
	return a.store.InsertReceipts(ctx, receipts)
}

func (a *DefaultAdapter) SaveProof(ctx context.Context, proof types.Proof) error {
	return a.store.UpdateLatestProof(ctx, proof)
}

func (a *DefaultAdapter) SaveSignedTxs(ctx context.Context, txs []*types.SignedTransaction) error {
	return a.store.InsertTransactions(ctx, txs)
}

func (a *DefaultAdapter) GetLastValidators(ctx context.Context, epochID uint64) ([]types.Validator, error) {
	e, err := a.store.GetEpochByEpochID(ctx, epochID)
	if err != nil {
		return nil, err
	}

	return e.Header.Validators, nil
}

func (a *DefaultAdapter) GetCurrentEpochID(ctx context.Context) (uint64, error) {
	e, err := a.store.GetLatestEpoch(ctx)
	if err != nil {
		return 0, err
	}

	return e.Header.EpochID, nil
}

func (a *DefaultAdapter) GetEpochByID(ctx context.Context, epochID uint64) (*types.Epoch, error) {
	return a.store.GetEpochByEpochID(ctx, epochID)
}

func (a *DefaultAdapter) PullEpoch(ctx context.Context, epochID uint64, end string) (*types.Epoch, error) {
	req, err := msgpack.Marshal(&PullEpochRequest{EpochID: epochID})
	if err != nil {
		return nil, errors.Wrap(err, "marshaling pull epoch request")
	}

	resp, err := a.rpc.Call(ctx, end, req)
	if err != nil {
		return nil, err
	}

	e := &types.Epoch{}
	if err := e.Unmarshal(resp); err != nil {
		return nil, errors.Wrap(ErrMsgDecode, err.Error())
	}

	return e, nil
}

func (a *DefaultAdapter) PullTxs(ctx context.Context, hashes []types.Hash, end string) ([]*types.SignedTransaction, error) {
	req, err := msgpack.Marshal(&PullTxsRequest{Hashes: hashes})
	if err != nil {
		return nil, errors.Wrap(err, "marshaling pull txs request")
	}

	resp, err := a.rpc.Call(ctx, end, req)
	if err != nil {
		return nil, err
	}

	var txs []*types.SignedTransaction
	if err := msgpack.Unmarshal(resp, &txs); err != nil {
		return nil, errors.Wrap(ErrMsgDecode, err.Error())
	}

	return txs, nil
}
