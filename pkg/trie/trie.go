package trie

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aeonchain/aeon/pkg/types"
)

var (
	ErrRootNotFound = errors.New("state root not found")
	ErrKeyNotFound  = errors.New("state key not found")
)

// TrieDB is a versioned key/value store addressable by a Merkle root.
// The node-level encoding is an implementation concern; callers only rely
// on roots being deterministic for identical lineage and writes.
type TrieDB interface {
	// StateAt opens a mutable view rooted at the given version.
	// types.NilHash opens the empty state.
	StateAt(root types.Hash) (State, error)
}

// State is a single-writer view over one root lineage. Writes are
// buffered until Commit, which persists a new version and returns its
// root.
type State interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte)
	Delete(key []byte)
	Commit() (types.Hash, error)
}

type change struct {
	Key     []byte `msgpack:"k"`
	Value   []byte `msgpack:"v"`
	Deleted bool   `msgpack:"d,omitempty"`
}

type versionSeed struct {
	Parent  types.Hash `msgpack:"p"`
	Changes []change   `msgpack:"c"`
}

// versionRoot derives the new root from the parent root and the sorted
// write set, so replaying the same writes against the same parent always
// yields the same root.
func versionRoot(parent types.Hash, dirty map[string][]byte, deleted map[string]struct{}) types.Hash {
	changes := make([]change, 0, len(dirty)+len(deleted))
	for k, v := range dirty {
		changes = append(changes, change{Key: []byte(k), Value: v})
	}
	for k := range deleted {
		changes = append(changes, change{Key: []byte(k), Deleted: true})
	}

	sort.Slice(changes, func(i, j int) bool {
		return string(changes[i].Key) < string(changes[j].Key)
	})

	b, _ := msgpack.Marshal(versionSeed{Parent: parent, Changes: changes})
	return types.Digest(b)
}
