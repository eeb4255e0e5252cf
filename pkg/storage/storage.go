package storage

import (
	"context"

	"github.com/aeonchain/aeon/pkg/types"
)

const (
	// MaxEpochTxCount bounds the ordered tx list of a single epoch.
	MaxEpochTxCount = 1000
)

// Storage persists committed chain data. Writes are idempotent; the
// consensus engine is responsible for calling them in commit order.
type Storage interface {
	InsertEpoch(context.Context, *types.Epoch) error
	InsertTransactions(context.Context, []*types.SignedTransaction) error
	InsertReceipts(context.Context, []*types.Receipt) error
	UpdateLatestProof(context.Context, types.Proof) error

	GetEpochByEpochID(context.Context, uint64) (*types.Epoch, error)
	GetLatestEpoch(context.Context) (*types.Epoch, error)
	GetLatestProof(context.Context) (*types.Proof, error)
	GetTransactionByHash(context.Context, types.Hash) (*types.SignedTransaction, error)
	GetReceiptByTxHash(context.Context, types.Hash) (*types.Receipt, error)
}
