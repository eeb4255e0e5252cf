package node

import (
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/aeonchain/aeon/pkg/consensus"
	"github.com/aeonchain/aeon/pkg/executor"
	"github.com/aeonchain/aeon/pkg/mempool"
	"github.com/aeonchain/aeon/pkg/storage"
	"github.com/aeonchain/aeon/pkg/trie"
)

type NodeOption func(*Node) error

func WithStorage(s storage.Storage) NodeOption {
	return func(n *Node) error {
		n.store = s
		return nil
	}
}

func WithTrieDB(db trie.TrieDB) NodeOption {
	return func(n *Node) error {
		n.trieDB = db
		return nil
	}
}

func WithMemPool(p mempool.MemPool) NodeOption {
	return func(n *Node) error {
		n.pool = p
		return nil
	}
}

func WithServiceRegistry(r *executor.Registry) NodeOption {
	return func(n *Node) error {
		n.registry = r
		return nil
	}
}

// WithBft attaches a conforming agreement engine. Without one the node
// follows the chain through synchronization only.
func WithBft(b consensus.Bft) NodeOption {
	return func(n *Node) error {
		n.bft = b
		return nil
	}
}

// WithDefaultOptions wires pebble-backed chain and state stores under
// the configured data dir plus the standard mempool and registry.
func WithDefaultOptions() NodeOption {
	return func(n *Node) error {
		dataDir := n.cfg.Chain().DataDir

		store, err := storage.NewPebbleStore(filepath.Join(dataDir, "chain"))
		if err != nil {
			return errors.Wrap(err, "opening chain store")
		}
		n.store = store

		db, err := trie.NewPebbleTrieDB(filepath.Join(dataDir, "state"))
		if err != nil {
			return errors.Wrap(err, "opening state store")
		}
		n.trieDB = db

		n.pool = mempool.NewHashMemPool()
		n.registry = executor.NewRegistry()

		return nil
	}
}
