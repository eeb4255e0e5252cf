package storage

import (
	"context"
	"sync"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aeonchain/aeon/pkg/types"
)

var _ Storage = (*MemStore)(nil)

// MemStore keeps all chain data content-addressed in memory. Used by
// tests and local tooling.
type MemStore struct {
	mu sync.RWMutex

	objects  map[cid.Cid][]byte
	epochs   map[uint64]cid.Cid
	txs      map[types.Hash]cid.Cid
	receipts map[types.Hash]cid.Cid

	latestEpochID uint64
	hasEpoch      bool
	latestProof   *types.Proof
}

func NewMemStore() *MemStore {
	return &MemStore{
		objects:  make(map[cid.Cid][]byte),
		epochs:   make(map[uint64]cid.Cid),
		txs:      make(map[types.Hash]cid.Cid),
		receipts: make(map[types.Hash]cid.Cid),
	}
}

func (m *MemStore) putObj(obj interface{}) cid.Cid {
	d, _ := msgpack.Marshal(obj)

	h, _ := multihash.Sum(d, multihash.SHA3_256, multihash.DefaultLengths[multihash.SHA3_256])
	id := cid.NewCidV1(cid.Raw, h)

	m.objects[id] = d

	return id
}

func (m *MemStore) getObj(id cid.Cid, into interface{}) error {
	d, ok := m.objects[id]
	if !ok {
		return ErrNotFound
	}

	if err := msgpack.Unmarshal(d, into); err != nil {
		return errors.Wrap(err, "unmarshaling object")
	}

	return nil
}

func (m *MemStore) InsertEpoch(_ context.Context, e *types.Epoch) error {
	if len(e.OrderedTxHashes) > MaxEpochTxCount {
		return ErrEpochTooLarge
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.epochs[e.Header.EpochID] = m.putObj(e)
	if !m.hasEpoch || e.Header.EpochID > m.latestEpochID {
		m.latestEpochID = e.Header.EpochID
		m.hasEpoch = true
	}

	return nil
}

func (m *MemStore) InsertTransactions(_ context.Context, txs []*types.SignedTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, tx := range txs {
		m.txs[tx.TxHash] = m.putObj(tx)
	}

	return nil
}

func (m *MemStore) InsertReceipts(_ context.Context, receipts []*types.Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range receipts {
		m.receipts[r.TxHash] = m.putObj(r)
	}

	return nil
}

func (m *MemStore) UpdateLatestProof(_ context.Context, p types.Proof) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.latestProof = &p

	return nil
}

func (m *MemStore) GetEpochByEpochID(_ context.Context, id uint64) (*types.Epoch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.epochs[id]
	if !ok {
		return nil, ErrNotFound
	}

	e := &types.Epoch{}
	if err := m.getObj(c, e); err != nil {
		return nil, err
	}

	return e, nil
}

func (m *MemStore) GetLatestEpoch(ctx context.Context) (*types.Epoch, error) {
	m.mu.RLock()
	if !m.hasEpoch {
		m.mu.RUnlock()
		return nil, ErrNotFound
	}
	id := m.latestEpochID
	m.mu.RUnlock()

	return m.GetEpochByEpochID(ctx, id)
}

func (m *MemStore) GetLatestProof(_ context.Context) (*types.Proof, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.latestProof == nil {
		return nil, ErrNotFound
	}

	p := *m.latestProof
	return &p, nil
}

func (m *MemStore) GetTransactionByHash(_ context.Context, h types.Hash) (*types.SignedTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.txs[h]
	if !ok {
		return nil, ErrNotFound
	}

	tx := &types.SignedTransaction{}
	if err := m.getObj(c, tx); err != nil {
		return nil, err
	}

	return tx, nil
}

func (m *MemStore) GetReceiptByTxHash(_ context.Context, h types.Hash) (*types.Receipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.receipts[h]
	if !ok {
		return nil, ErrNotFound
	}

	r := &types.Receipt{}
	if err := m.getObj(c, r); err != nil {
		return nil, err
	}

	return r, nil
}
