package mempool

import (
	"container/heap"
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/aeonchain/aeon/pkg/types"
)

var (
	ErrNotFound  = errors.New("tx not in mempool")
	ErrDuplicate = errors.New("tx already in mempool")
)

// MemPool holds pending signed transactions awaiting packaging into an
// epoch. All operations are safe for concurrent use and never block on
// other components.
type MemPool interface {
	Insert(ctx context.Context, tx *types.SignedTransaction) error

	// Package selects hashes up to the cycle limit. Order hashes have
	// full bodies locally; propose hashes are known only by hash and
	// still need consensus-wide order confirmation.
	Package(ctx context.Context, cycleLimit uint64) (*types.MixedTxHashes, error)

	// EnsureOrderTxs confirms full bodies exist for every hash.
	EnsureOrderTxs(ctx context.Context, hashes []types.Hash) error

	// SyncProposeTxs records hashes proposed elsewhere whose bodies are
	// not yet held locally.
	SyncProposeTxs(ctx context.Context, hashes []types.Hash) error

	GetFullTxs(ctx context.Context, hashes []types.Hash) ([]*types.SignedTransaction, error)

	// Flush removes committed hashes.
	Flush(ctx context.Context, hashes []types.Hash) error
}

var _ MemPool = (*HashMemPool)(nil)

// txHeap orders packaging by timeout so transactions closest to expiry
// propose first.
type txHeap []*types.SignedTransaction

func (h txHeap) Len() int            { return len(h) }
func (h txHeap) Less(i, j int) bool  { return h[i].Raw.Timeout < h[j].Raw.Timeout }
func (h txHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *txHeap) Push(x interface{}) { *h = append(*h, x.(*types.SignedTransaction)) }

func (h *txHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

type HashMemPool struct {
	mu sync.Mutex

	pending txHeap
	byHash  map[types.Hash]*types.SignedTransaction

	// hashes seen in remote proposals with no local body yet
	proposed map[types.Hash]struct{}
}

func NewHashMemPool() *HashMemPool {
	m := &HashMemPool{
		byHash:   make(map[types.Hash]*types.SignedTransaction),
		proposed: make(map[types.Hash]struct{}),
	}

	heap.Init(&m.pending)

	return m
}

func (m *HashMemPool) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.byHash)
}

func (m *HashMemPool) Insert(_ context.Context, tx *types.SignedTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byHash[tx.TxHash]; ok {
		return ErrDuplicate
	}

	m.byHash[tx.TxHash] = tx
	heap.Push(&m.pending, tx)
	delete(m.proposed, tx.TxHash)

	return nil
}

func (m *HashMemPool) Package(_ context.Context, cycleLimit uint64) (*types.MixedTxHashes, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mixed := &types.MixedTxHashes{}

	var cycles uint64
	// peek in timeout order without consuming; commit removes via Flush
	ordered := make(txHeap, len(m.pending))
	copy(ordered, m.pending)

	for ordered.Len() > 0 {
		tx := heap.Pop(&ordered).(*types.SignedTransaction)

		if _, ok := m.byHash[tx.TxHash]; !ok {
			continue
		}

		if cycles+tx.Raw.CyclesLimit > cycleLimit {
			break
		}

		cycles += tx.Raw.CyclesLimit
		mixed.OrderTxHashes = append(mixed.OrderTxHashes, tx.TxHash)
	}

	for h := range m.proposed {
		mixed.ProposeTxHashes = append(mixed.ProposeTxHashes, h)
	}

	return mixed, nil
}

func (m *HashMemPool) EnsureOrderTxs(_ context.Context, hashes []types.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, h := range hashes {
		if _, ok := m.byHash[h]; !ok {
			return errors.Wrap(ErrNotFound, h.Hex())
		}
	}

	return nil
}

func (m *HashMemPool) SyncProposeTxs(_ context.Context, hashes []types.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, h := range hashes {
		if _, ok := m.byHash[h]; ok {
			continue
		}
		m.proposed[h] = struct{}{}
	}

	return nil
}

func (m *HashMemPool) GetFullTxs(_ context.Context, hashes []types.Hash) ([]*types.SignedTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	txs := make([]*types.SignedTransaction, 0, len(hashes))
	for _, h := range hashes {
		tx, ok := m.byHash[h]
		if !ok {
			return nil, errors.Wrap(ErrNotFound, h.Hex())
		}
		txs = append(txs, tx)
	}

	return txs, nil
}

func (m *HashMemPool) Flush(_ context.Context, hashes []types.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, h := range hashes {
		delete(m.byHash, h)
		delete(m.proposed, h)
	}

	// drop flushed entries from the heap in one pass
	kept := m.pending[:0]
	for _, tx := range m.pending {
		if _, ok := m.byHash[tx.TxHash]; ok {
			kept = append(kept, tx)
		}
	}
	m.pending = kept
	heap.Init(&m.pending)

	return nil
}
