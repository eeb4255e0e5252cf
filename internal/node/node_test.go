package node

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aeonchain/aeon/internal/config"
	"github.com/aeonchain/aeon/internal/utils/logging"
	"github.com/aeonchain/aeon/pkg/executor"
	"github.com/aeonchain/aeon/pkg/mempool"
	"github.com/aeonchain/aeon/pkg/storage"
	"github.com/aeonchain/aeon/pkg/trie"
	"github.com/aeonchain/aeon/pkg/types"
)

func testNode(t *testing.T) *Node {
	t.Helper()

	genesis, err := msgpack.Marshal(&types.Genesis{
		ChainID:           "testnet",
		Timestamp:         1700000000000,
		ConsensusInterval: 3000,
		CyclesPrice:       1,
		CyclesLimit:       1_000_000,
	})
	assert.NoError(t, err)

	viper.Set("chain.genesis", base64.StdEncoding.EncodeToString(genesis))
	t.Cleanup(func() { viper.Set("chain.genesis", "") })

	cfg, err := config.GetConfig()
	assert.NoError(t, err)

	return &Node{
		cfg:      cfg,
		store:    storage.NewMemStore(),
		trieDB:   trie.NewMemTrieDB(),
		registry: executor.NewRegistry(),
		pool:     mempool.NewHashMemPool(),
		logger:   logging.WithField("component", "node"),
	}
}

func TestEnsureGenesis(t *testing.T) {
	ctx := context.Background()
	n := testNode(t)

	assert.NoError(t, n.ensureGenesis(ctx))

	e, err := n.store.GetLatestEpoch(ctx)
	assert.NoError(t, err)
	assert.Equal(t, uint64(0), e.Header.EpochID)
	assert.True(t, e.Header.ChainID.Equal(n.chainID()))

	proof, err := n.store.GetLatestProof(ctx)
	assert.NoError(t, err)
	assert.Equal(t, e.Hash(), proof.EpochHash)

	// restarting must not mint a second genesis
	hash := e.Hash()
	assert.NoError(t, n.ensureGenesis(ctx))

	e, err = n.store.GetLatestEpoch(ctx)
	assert.NoError(t, err)
	assert.Equal(t, hash, e.Hash())
}

func TestBuildStatus(t *testing.T) {
	ctx := context.Background()
	n := testNode(t)

	assert.NoError(t, n.ensureGenesis(ctx))
	assert.NoError(t, n.buildStatus(ctx))

	e, err := n.store.GetLatestEpoch(ctx)
	assert.NoError(t, err)

	snap := n.status.Snapshot()
	assert.Equal(t, uint64(1), snap.EpochID)
	assert.Equal(t, uint64(0), snap.ExecEpochID)
	assert.Equal(t, e.Hash(), snap.PreHash)
	assert.Equal(t, e.Header.StateRoot, snap.LatestStateRoot())
	assert.Equal(t, uint64(1_000_000), snap.CyclesLimit)
	assert.Equal(t, uint64(3000), snap.ConsensusInterval)
}
