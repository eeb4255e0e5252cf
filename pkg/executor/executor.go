package executor

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/aeonchain/aeon/internal/utils/logging"
	"github.com/aeonchain/aeon/pkg/trie"
	"github.com/aeonchain/aeon/pkg/types"
)

// ExecResp is the aggregate outcome of executing one epoch's batch.
type ExecResp struct {
	Receipts      []*types.Receipt
	StateRoot     types.Hash
	AllCyclesUsed uint64
}

type Executor interface {
	Exec(ctx context.Context, txs []*types.SignedTransaction) (*ExecResp, error)
}

// Factory constructs an executor bound to a chain, a state root and a
// coinbase address.
type Factory interface {
	FromRoot(chainID types.Hash, root types.Hash, epochID, cyclesPrice uint64, coinbase types.Address) (Executor, error)
}

var (
	_ Executor = (*ServiceExecutor)(nil)
	_ Factory  = (*ServiceExecutorFactory)(nil)
)

type ServiceExecutorFactory struct {
	db       trie.TrieDB
	registry *Registry
}

func NewServiceExecutorFactory(db trie.TrieDB, registry *Registry) *ServiceExecutorFactory {
	return &ServiceExecutorFactory{db: db, registry: registry}
}

func (f *ServiceExecutorFactory) FromRoot(chainID types.Hash, root types.Hash, epochID, cyclesPrice uint64, coinbase types.Address) (Executor, error) {
	state, err := f.db.StateAt(root)
	if err != nil {
		return nil, errors.Wrapf(err, "opening state at %s", root)
	}

	return &ServiceExecutor{
		chainID:     chainID,
		state:       state,
		epochID:     epochID,
		cyclesPrice: cyclesPrice,
		coinbase:    coinbase,
		registry:    f.registry,
		logger:      logging.Entry().WithField("epoch", epochID),
	}, nil
}

// ServiceExecutor runs a batch of signed transactions against one state
// view. Transaction-level failures become error receipts; only trie or
// storage failures abort the batch.
type ServiceExecutor struct {
	chainID     types.Hash
	state       trie.State
	epochID     uint64
	cyclesPrice uint64
	coinbase    types.Address
	registry    *Registry
	logger      *logrus.Entry
}

func (e *ServiceExecutor) Exec(_ context.Context, txs []*types.SignedTransaction) (*ExecResp, error) {
	receipts := make([]*types.Receipt, 0, len(txs))

	var allCycles uint64
	for _, tx := range txs {
		r := e.execOne(tx)
		allCycles += r.CyclesUsed
		receipts = append(receipts, r)
	}

	root, err := e.state.Commit()
	if err != nil {
		return nil, errors.Wrap(err, "committing batch state")
	}

	for _, r := range receipts {
		r.StateRoot = root
		r.EpochID = e.epochID
	}

	return &ExecResp{
		Receipts:      receipts,
		StateRoot:     root,
		AllCyclesUsed: allCycles,
	}, nil
}

func (e *ServiceExecutor) execOne(tx *types.SignedTransaction) *types.Receipt {
	req := tx.Raw.Request

	receipt := &types.Receipt{
		TxHash: tx.TxHash,
		Response: types.ReceiptResponse{
			ServiceName: req.ServiceName,
			Method:      req.Method,
		},
	}

	var cyclesUsed uint64
	events := []types.Event{}

	buf := newBufferedState(e.state)

	sctx := &ServiceContext{
		registry:    e.registry,
		state:       buf,
		service:     req.ServiceName,
		payload:     req.Payload,
		epochID:     e.epochID,
		caller:      types.AddressFromPubKey(tx.PubKey),
		txHash:      tx.TxHash,
		cyclesPrice: e.cyclesPrice,
		cyclesLimit: tx.Raw.CyclesLimit,
		cyclesUsed:  &cyclesUsed,
		events:      &events,
	}

	h, err := e.registry.handler(req.ServiceName, req.Method)
	if err != nil {
		return errReceipt(receipt, cyclesUsed, err)
	}

	ret, err := h(sctx)
	if err != nil {
		e.logger.WithError(err).
			WithField("tx", tx.TxHash).
			Debug("tx execution failed")
		return errReceipt(receipt, cyclesUsed, err)
	}

	buf.flush()

	receipt.CyclesUsed = cyclesUsed
	receipt.Events = events
	receipt.Response.Ret = ret

	return receipt
}

func errReceipt(r *types.Receipt, cycles uint64, err error) *types.Receipt {
	r.CyclesUsed = cycles
	r.Response.IsError = true
	r.Response.Ret = []byte(err.Error())
	return r
}

// CreateGenesis runs every registered service genesis hook against the
// empty state and returns the genesis state root.
func CreateGenesis(db trie.TrieDB, registry *Registry, services []types.ServiceGenesis) (types.Hash, error) {
	state, err := db.StateAt(types.NilHash)
	if err != nil {
		return types.NilHash, errors.Wrap(err, "opening empty state")
	}

	for _, svc := range services {
		h, ok := registry.genesis[svc.Name]
		if !ok {
			return types.NilHash, errors.Wrap(ErrServiceNotFound, svc.Name)
		}

		if err := h(state, svc.Payload); err != nil {
			return types.NilHash, errors.Wrapf(err, "genesis for %s", svc.Name)
		}
	}

	root, err := state.Commit()
	if err != nil {
		return types.NilHash, errors.Wrap(err, "committing genesis state")
	}

	return root, nil
}
