package network

import (
	"context"
	"sync"

	"github.com/libp2p/go-libp2p-core/peer"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/aeonchain/aeon/internal/utils/logging"
	"github.com/aeonchain/aeon/pkg/consensus"
)

const pubsubBuf = 10

var _ consensus.Gossip = (*PubSubGossip)(nil)

// PubSubGossip maps consensus endpoints onto gossipsub topics. Unicast
// falls back to one-way stream frames.
type PubSubGossip struct {
	host *Host
	rpc  *StreamRpc

	mu     sync.Mutex
	topics map[string]*pubsub.Topic

	logger *logrus.Entry
}

func NewPubSubGossip(h *Host, rpc *StreamRpc) *PubSubGossip {
	return &PubSubGossip{
		host:   h,
		rpc:    rpc,
		topics: make(map[string]*pubsub.Topic),
		logger: logging.WithField("component", "gossip"),
	}
}

func (g *PubSubGossip) topic(end string) (*pubsub.Topic, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	t, ok := g.topics[end]
	if ok {
		return t, nil
	}

	t, err := g.host.pubsub.Join(end)
	if err != nil {
		return nil, errors.Wrapf(err, "joining topic %s", end)
	}

	g.topics[end] = t
	return t, nil
}

func (g *PubSubGossip) Broadcast(ctx context.Context, end string, payload []byte, p consensus.Priority) error {
	t, err := g.topic(end)
	if err != nil {
		return err
	}

	var opts []pubsub.PubOpt
	if p == consensus.PriorityHigh {
		opts = append(opts, pubsub.WithReadiness(pubsub.MinTopicSize(1)))
	}

	return t.Publish(ctx, payload, opts...)
}

func (g *PubSubGossip) Unicast(ctx context.Context, end string, peers []string, payload []byte, _ consensus.Priority) error {
	for _, ps := range peers {
		pid, err := peer.Decode(ps)
		if err != nil {
			return errors.Wrapf(err, "decoding peer id %s", ps)
		}

		if err := g.rpc.SendDirect(ctx, pid, end, payload); err != nil {
			// unreachable peers are gossipsub's problem to route around
			g.logger.WithError(err).WithField("peer", ps).Error("unicast failed")
		}
	}

	return nil
}

// Subscribe feeds a handler every payload published on its endpoint,
// skipping this node's own messages. The loop exits with the context.
func (g *PubSubGossip) Subscribe(ctx context.Context, h consensus.GossipHandler) error {
	t, err := g.topic(h.Endpoint())
	if err != nil {
		return err
	}

	sub, err := t.Subscribe()
	if err != nil {
		return errors.Wrapf(err, "subscribing to %s", h.Endpoint())
	}

	msgCh := make(chan *pubsub.Message, pubsubBuf)

	go func() {
		defer close(msgCh)
		for {
			m, err := sub.Next(ctx)
			if err != nil {
				g.logger.WithError(err).Errorf("sub %s closed", h.Endpoint())
				return
			}

			msgCh <- m
		}
	}()

	go func() {
		self := g.host.ID()
		for m := range msgCh {
			if m.ReceivedFrom == self {
				continue
			}

			h.Process(ctx, m.Data)
		}
	}()

	g.rpc.RegisterDirect(h)

	return nil
}
