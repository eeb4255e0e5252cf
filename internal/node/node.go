package node

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/aeonchain/aeon/internal/config"
	"github.com/aeonchain/aeon/internal/network"
	"github.com/aeonchain/aeon/internal/utils/logging"
	"github.com/aeonchain/aeon/pkg/consensus"
	"github.com/aeonchain/aeon/pkg/cryptography"
	"github.com/aeonchain/aeon/pkg/executor"
	"github.com/aeonchain/aeon/pkg/mempool"
	"github.com/aeonchain/aeon/pkg/storage"
	"github.com/aeonchain/aeon/pkg/trie"
	"github.com/aeonchain/aeon/pkg/types"
)

// Node assembles storage, state, mempool, network transports and the
// consensus components into a running daemon.
type Node struct {
	cfg *config.Config

	host   *network.Host
	gossip *network.PubSubGossip
	rpc    *network.StreamRpc

	store    storage.Storage
	trieDB   trie.TrieDB
	registry *executor.Registry
	pool     mempool.MemPool

	status      *consensus.CurrentConsensusStatus
	engine      *consensus.ConsensusEngine
	sync        *consensus.Synchronizer
	broadcaster *consensus.StatusBroadcaster
	bft         consensus.Bft

	logger *logrus.Entry
}

func (n *Node) Storage() storage.Storage {
	return n.store
}

func (n *Node) MemPool() mempool.MemPool {
	return n.pool
}

func (n *Node) Engine() *consensus.ConsensusEngine {
	return n.engine
}

// chainID is the digest of the configured chain name; headers and
// transactions carry it.
func (n *Node) chainID() types.Hash {
	return types.Digest([]byte(n.cfg.Chain().Genesis.ChainID))
}

func NewNode(ctx context.Context, opts ...NodeOption) (*Node, error) {
	cfg, err := config.GetConfig()
	if err != nil {
		return nil, err
	}

	n := &Node{
		cfg:    cfg,
		logger: logging.WithField("component", "node"),
	}

	for _, opt := range opts {
		if err := opt(n); err != nil {
			return nil, err
		}
	}

	if err := n.ensureGenesis(ctx); err != nil {
		return nil, errors.Wrap(err, "ensuring genesis")
	}

	if err := n.buildStatus(ctx); err != nil {
		return nil, errors.Wrap(err, "building chain status")
	}

	if err := n.setupNetwork(ctx); err != nil {
		return nil, errors.Wrap(err, "setting up network")
	}

	if err := n.setupConsensus(ctx); err != nil {
		return nil, errors.Wrap(err, "setting up consensus")
	}

	return n, nil
}

// buildStatus reconstructs the chain-tip view from storage. A crash
// between the ordered persistence stages leaves the latest epoch as the
// recovery point; anything staged beyond it is re-derived by recommit.
func (n *Node) buildStatus(ctx context.Context) error {
	latest, err := n.store.GetLatestEpoch(ctx)
	if err != nil {
		return errors.Wrap(err, "loading latest epoch")
	}

	proof, err := n.store.GetLatestProof(ctx)
	if err != nil {
		return errors.Wrap(err, "loading latest proof")
	}

	genesis := n.cfg.Chain().Genesis

	validators := latest.Header.Validators
	if len(validators) == 0 {
		validators = genesis.Validators
	}

	n.status = consensus.NewCurrentConsensusStatus(consensus.Status{
		EpochID:           latest.Header.EpochID + 1,
		ExecEpochID:       latest.Header.EpochID,
		PreHash:           latest.Hash(),
		StateRoots:        []types.Hash{latest.Header.StateRoot},
		CyclesPrice:       genesis.CyclesPrice,
		CyclesLimit:       genesis.CyclesLimit,
		Validators:        validators,
		ValidatorVersion:  latest.Header.ValidatorVersion,
		Proof:             *proof,
		ConsensusInterval: genesis.ConsensusInterval,
	})

	return nil
}

func (n *Node) setupNetwork(ctx context.Context) error {
	var err error

	n.host, err = network.NewHost(ctx, n.cfg)
	if err != nil {
		return err
	}

	n.rpc = network.NewStreamRpc(n.host)
	n.gossip = network.NewPubSubGossip(n.host, n.rpc)

	return nil
}

func (n *Node) setupConsensus(ctx context.Context) error {
	factory := executor.NewServiceExecutorFactory(n.trieDB, n.registry)
	adapter := consensus.NewDefaultAdapter(n.rpc, n.gossip, n.pool, n.store, factory)

	n.engine = consensus.NewConsensusEngine(n.status, consensus.NodeInfo{ChainID: n.chainID()}, adapter)

	interval := time.Duration(n.cfg.Chain().Genesis.ConsensusInterval) * time.Millisecond
	if interval <= 0 {
		interval = consensus.DefaultBroadcastInterval
	}

	n.sync = consensus.NewSynchronizer(n.engine, adapter, consensus.WithSyncInterval(interval))
	n.broadcaster = consensus.NewStatusBroadcaster(n.status, n.gossip, interval)

	n.rpc.RegisterHandler(consensus.NewPullEpochHandler(n.store))
	n.rpc.RegisterHandler(consensus.NewPullTxsHandler(n.store))

	if err := n.gossip.Subscribe(ctx, consensus.NewRichEpochIDHandler(n.sync)); err != nil {
		return err
	}

	if n.bft != nil {
		handlers := []consensus.GossipHandler{
			consensus.NewProposalHandler(n.bft),
			consensus.NewVoteHandler(n.bft),
			consensus.NewQCHandler(n.bft),
		}

		for _, h := range handlers {
			if err := n.gossip.Subscribe(ctx, h); err != nil {
				return err
			}
		}
	}

	return nil
}

// SubmitTransaction admits a transaction into the mempool after basic
// admission checks.
func (n *Node) SubmitTransaction(ctx context.Context, tx *types.SignedTransaction) error {
	if !tx.Raw.ChainID.Equal(n.chainID()) {
		return errors.New("transaction for a different chain")
	}

	if err := cryptography.VerifyTransaction(tx); err != nil {
		return err
	}

	return n.pool.Insert(ctx, tx)
}

// ListenAndServe runs the status broadcast loop and, when an agreement
// engine is attached, the consensus rounds. Blocks until the context is
// cancelled.
func (n *Node) ListenAndServe(ctx context.Context) error {
	n.logger.WithField("id", n.host.ID().String()).Info("starting listening")

	errCh := make(chan error, 2)

	go func() {
		errCh <- n.broadcaster.Run(ctx)
	}()

	if n.bft != nil {
		go func() {
			errCh <- n.bft.Run(ctx)
		}()
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
}

func (n *Node) Stop() error {
	n.logger.Warn("shutting down")

	if err := n.host.Close(); err != nil {
		return errors.Wrap(err, "closing p2p host")
	}

	if c, ok := n.store.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			return errors.Wrap(err, "closing chain store")
		}
	}

	if c, ok := n.trieDB.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			return errors.Wrap(err, "closing state store")
		}
	}

	return nil
}
