package consensus

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aeonchain/aeon/internal/utils/logging"
)

// StatusBroadcaster periodically announces the latest committed epoch
// so lagging peers can notice and catch up.
type StatusBroadcaster struct {
	status   *CurrentConsensusStatus
	gossip   Gossip
	interval time.Duration

	logger *logrus.Entry
}

func NewStatusBroadcaster(status *CurrentConsensusStatus, gossip Gossip, interval time.Duration) *StatusBroadcaster {
	if interval <= 0 {
		interval = DefaultBroadcastInterval
	}

	return &StatusBroadcaster{
		status:   status,
		gossip:   gossip,
		interval: interval,
		logger:   logging.WithField("component", "status_broadcast"),
	}
}

func (b *StatusBroadcaster) Run(ctx context.Context) error {
	t := time.NewTicker(b.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if err := b.announce(ctx); err != nil {
				b.logger.WithError(err).Error("announcing tip")
			}
		}
	}
}

func (b *StatusBroadcaster) announce(ctx context.Context) error {
	snap := b.status.Snapshot()

	msg, err := msgpack.Marshal(&RichEpochID{Inner: snap.ExecEpochID})
	if err != nil {
		return err
	}

	return b.gossip.Broadcast(ctx, EndGossipRichEpochID, msg, PriorityLow)
}
