package mempool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aeonchain/aeon/pkg/types"
)

func newTx(timeout, cyclesLimit uint64) *types.SignedTransaction {
	tx := &types.SignedTransaction{
		Raw: types.RawTransaction{
			Timeout:     timeout,
			CyclesLimit: cyclesLimit,
			Request:     types.TransactionRequest{ServiceName: "asset", Method: "transfer"},
		},
	}
	tx.TxHash = tx.Raw.Hash()
	return tx
}

func TestPackageOrdersByTimeout(t *testing.T) {
	ctx := context.Background()
	m := NewHashMemPool()

	late := newTx(30, 10)
	early := newTx(10, 10)
	mid := newTx(20, 10)

	for _, tx := range []*types.SignedTransaction{late, early, mid} {
		if err := m.Insert(ctx, tx); err != nil {
			t.Fatal(err)
		}
	}

	mixed, err := m.Package(ctx, 100)
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, []types.Hash{early.TxHash, mid.TxHash, late.TxHash}, mixed.OrderTxHashes)
}

func TestPackageRespectsCycleLimit(t *testing.T) {
	ctx := context.Background()
	m := NewHashMemPool()

	for i := uint64(1); i <= 5; i++ {
		if err := m.Insert(ctx, newTx(i, 10)); err != nil {
			t.Fatal(err)
		}
	}

	mixed, err := m.Package(ctx, 25)
	if err != nil {
		t.Fatal(err)
	}

	assert.Len(t, mixed.OrderTxHashes, 2)

	// packaging does not consume; only Flush does
	mixed, err = m.Package(ctx, 1000)
	if err != nil {
		t.Fatal(err)
	}
	assert.Len(t, mixed.OrderTxHashes, 5)
}

func TestProposeHashes(t *testing.T) {
	ctx := context.Background()
	m := NewHashMemPool()

	remote := types.Digest([]byte("remote"))
	if err := m.SyncProposeTxs(ctx, []types.Hash{remote}); err != nil {
		t.Fatal(err)
	}

	mixed, err := m.Package(ctx, 100)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, []types.Hash{remote}, mixed.ProposeTxHashes)

	err = m.EnsureOrderTxs(ctx, []types.Hash{remote})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFlushRemoves(t *testing.T) {
	ctx := context.Background()
	m := NewHashMemPool()

	a := newTx(1, 10)
	b := newTx(2, 10)
	for _, tx := range []*types.SignedTransaction{a, b} {
		if err := m.Insert(ctx, tx); err != nil {
			t.Fatal(err)
		}
	}

	if err := m.Flush(ctx, []types.Hash{a.TxHash}); err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, 1, m.Len())

	txs, err := m.GetFullTxs(ctx, []types.Hash{b.TxHash})
	if err != nil {
		t.Fatal(err)
	}
	assert.Len(t, txs, 1)

	_, err = m.GetFullTxs(ctx, []types.Hash{a.TxHash})
	assert.Error(t, err)
}

func TestInsertDuplicate(t *testing.T) {
	ctx := context.Background()
	m := NewHashMemPool()

	tx := newTx(1, 10)
	if err := m.Insert(ctx, tx); err != nil {
		t.Fatal(err)
	}

	assert.ErrorIs(t, m.Insert(ctx, tx), ErrDuplicate)
}
