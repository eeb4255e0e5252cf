package consensus

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aeonchain/aeon/internal/utils/logging"
	"github.com/aeonchain/aeon/pkg/storage"
	"github.com/aeonchain/aeon/pkg/types"
)

// Gossip endpoints.
const (
	EndGossipSignedProposal = "/consensus/proposal"
	EndGossipSignedVote     = "/consensus/vote"
	EndGossipAggregatedVote = "/consensus/qc"
	EndGossipRichEpochID    = "/consensus/rich_epoch_id"
)

// RPC endpoints used by the synchronization driver.
const (
	EndRPCSyncPullEpoch = "/consensus/pull_epoch"
	EndRPCSyncPullTxs   = "/consensus/pull_txs"
)

// RichEpochID announces the sender's most recently committed epoch.
type RichEpochID struct {
	Inner uint64 `msgpack:"i"`
}

type PullEpochRequest struct {
	EpochID uint64 `msgpack:"e"`
}

type PullTxsRequest struct {
	Hashes []types.Hash `msgpack:"h"`
}

// GossipHandler consumes one gossip endpoint's payloads. Malformed
// payloads are logged and dropped; they never affect liveness.
type GossipHandler interface {
	Endpoint() string
	Process(ctx context.Context, raw []byte)
}

// RpcHandler answers one RPC endpoint from local storage.
type RpcHandler interface {
	Endpoint() string
	Serve(ctx context.Context, req []byte) ([]byte, error)
}

// RichEpochIDHandler feeds peer announcements into the synchronization
// driver.
type RichEpochIDHandler struct {
	sync   *Synchronizer
	logger *logrus.Entry
}

func NewRichEpochIDHandler(sync *Synchronizer) *RichEpochIDHandler {
	return &RichEpochIDHandler{
		sync:   sync,
		logger: logging.WithField("handler", EndGossipRichEpochID),
	}
}

func (h *RichEpochIDHandler) Endpoint() string {
	return EndGossipRichEpochID
}

func (h *RichEpochIDHandler) Process(ctx context.Context, raw []byte) {
	msg := &RichEpochID{}
	if err := msgpack.Unmarshal(raw, msg); err != nil {
		h.logger.WithError(err).Error("dropping malformed rich epoch id")
		return
	}

	// sync failures are retried on the next announcement, not here
	if err := h.sync.OnRichEpochID(ctx, msg.Inner); err != nil {
		h.logger.WithError(err).
			WithField("rich", msg.Inner).
			Error("synchronization pass failed")
	}
}

// PullEpochHandler serves full epochs to lagging peers.
type PullEpochHandler struct {
	store storage.Storage
}

func NewPullEpochHandler(store storage.Storage) *PullEpochHandler {
	return &PullEpochHandler{store: store}
}

func (h *PullEpochHandler) Endpoint() string {
	return EndRPCSyncPullEpoch
}

func (h *PullEpochHandler) Serve(ctx context.Context, req []byte) ([]byte, error) {
	msg := &PullEpochRequest{}
	if err := msgpack.Unmarshal(req, msg); err != nil {
		return nil, errors.Wrap(ErrMsgDecode, err.Error())
	}

	e, err := h.store.GetEpochByEpochID(ctx, msg.EpochID)
	if err != nil {
		return nil, errors.Wrapf(err, "pulling epoch %d", msg.EpochID)
	}

	return e.Marshal()
}

// PullTxsHandler serves full transaction bodies to lagging peers.
type PullTxsHandler struct {
	store storage.Storage
}

func NewPullTxsHandler(store storage.Storage) *PullTxsHandler {
	return &PullTxsHandler{store: store}
}

func (h *PullTxsHandler) Endpoint() string {
	return EndRPCSyncPullTxs
}

func (h *PullTxsHandler) Serve(ctx context.Context, req []byte) ([]byte, error) {
	msg := &PullTxsRequest{}
	if err := msgpack.Unmarshal(req, msg); err != nil {
		return nil, errors.Wrap(ErrMsgDecode, err.Error())
	}

	txs := make([]*types.SignedTransaction, 0, len(msg.Hashes))
	for _, h2 := range msg.Hashes {
		tx, err := h.store.GetTransactionByHash(ctx, h2)
		if err != nil {
			return nil, errors.Wrapf(err, "pulling tx %s", h2)
		}
		txs = append(txs, tx)
	}

	return msgpack.Marshal(txs)
}
