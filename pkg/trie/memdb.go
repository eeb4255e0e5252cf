package trie

import (
	"sync"

	"github.com/aeonchain/aeon/pkg/types"
)

var _ TrieDB = (*MemTrieDB)(nil)

// MemTrieDB keeps every version as a full snapshot. Reference
// implementation used by tests and single-process tooling.
type MemTrieDB struct {
	mu       sync.RWMutex
	versions map[types.Hash]map[string][]byte
}

func NewMemTrieDB() *MemTrieDB {
	return &MemTrieDB{
		versions: map[types.Hash]map[string][]byte{
			types.NilHash: {},
		},
	}
}

func (m *MemTrieDB) StateAt(root types.Hash) (State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.versions[root]
	if !ok {
		return nil, ErrRootNotFound
	}

	return &memState{
		db:      m,
		parent:  root,
		base:    v,
		dirty:   make(map[string][]byte),
		deleted: make(map[string]struct{}),
	}, nil
}

type memState struct {
	db      *MemTrieDB
	parent  types.Hash
	base    map[string][]byte
	dirty   map[string][]byte
	deleted map[string]struct{}
}

func (s *memState) Get(key []byte) ([]byte, error) {
	if _, ok := s.deleted[string(key)]; ok {
		return nil, ErrKeyNotFound
	}

	if v, ok := s.dirty[string(key)]; ok {
		return v, nil
	}

	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	v, ok := s.base[string(key)]
	if !ok {
		return nil, ErrKeyNotFound
	}

	return v, nil
}

func (s *memState) Set(key, value []byte) {
	delete(s.deleted, string(key))
	s.dirty[string(key)] = value
}

func (s *memState) Delete(key []byte) {
	delete(s.dirty, string(key))
	s.deleted[string(key)] = struct{}{}
}

func (s *memState) Commit() (types.Hash, error) {
	root := versionRoot(s.parent, s.dirty, s.deleted)

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, ok := s.db.versions[root]; ok {
		// same parent and writes; version already persisted
		return root, nil
	}

	next := make(map[string][]byte, len(s.base)+len(s.dirty))
	for k, v := range s.base {
		next[k] = v
	}
	for k, v := range s.dirty {
		next[k] = v
	}
	for k := range s.deleted {
		delete(next, k)
	}

	s.db.versions[root] = next

	return root, nil
}
