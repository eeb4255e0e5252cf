package consensus

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/aeonchain/aeon/internal/utils/logging"
	"github.com/aeonchain/aeon/pkg/types"
)

// Bft is the narrow boundary to the pluggable agreement engine. The
// node delivers raw network messages; the engine's internal rounds,
// timers and vote bookkeeping stay behind it.
type Bft interface {
	Run(ctx context.Context) error

	DeliverProposal(ctx context.Context, raw []byte) error
	DeliverVote(ctx context.Context, raw []byte) error
	DeliverQC(ctx context.Context, raw []byte) error
}

// Application is the surface the agreement engine drives: build a
// proposal, verify a peer's, and commit the agreed one with its quorum
// proof.
type Application interface {
	BuildProposal(ctx context.Context) ([]byte, error)
	VerifyProposal(ctx context.Context, raw []byte) error
	Commit(ctx context.Context, raw []byte, proof types.Proof) error
}

var _ Application = (*ConsensusEngine)(nil)

func (e *ConsensusEngine) BuildProposal(ctx context.Context) ([]byte, error) {
	pill, err := e.BuildPill(ctx)
	if err != nil {
		return nil, err
	}

	return pill.Marshal()
}

func (e *ConsensusEngine) VerifyProposal(ctx context.Context, raw []byte) error {
	pill := &types.Pill{}
	if err := pill.Unmarshal(raw); err != nil {
		return errors.Wrap(ErrMsgDecode, err.Error())
	}

	return e.VerifyPill(ctx, pill)
}

func (e *ConsensusEngine) Commit(ctx context.Context, raw []byte, proof types.Proof) error {
	pill := &types.Pill{}
	if err := pill.Unmarshal(raw); err != nil {
		return errors.Wrap(ErrMsgDecode, err.Error())
	}

	return e.CommitEpoch(ctx, &pill.Epoch, proof)
}

// bftGossipHandler forwards one gossip endpoint's payloads into the
// agreement engine. Delivery failures are logged and dropped; the
// engine's own timeouts recover.
type bftGossipHandler struct {
	endpoint string
	deliver  func(ctx context.Context, raw []byte) error
	logger   *logrus.Entry
}

func newBftGossipHandler(endpoint string, deliver func(ctx context.Context, raw []byte) error) *bftGossipHandler {
	return &bftGossipHandler{
		endpoint: endpoint,
		deliver:  deliver,
		logger:   logging.WithField("handler", endpoint),
	}
}

func (h *bftGossipHandler) Endpoint() string {
	return h.endpoint
}

func (h *bftGossipHandler) Process(ctx context.Context, raw []byte) {
	if err := h.deliver(ctx, raw); err != nil {
		h.logger.WithError(err).Error("dropping message")
	}
}

func NewProposalHandler(bft Bft) GossipHandler {
	return newBftGossipHandler(EndGossipSignedProposal, bft.DeliverProposal)
}

func NewVoteHandler(bft Bft) GossipHandler {
	return newBftGossipHandler(EndGossipSignedVote, bft.DeliverVote)
}

func NewQCHandler(bft Bft) GossipHandler {
	return newBftGossipHandler(EndGossipAggregatedVote, bft.DeliverQC)
}
