package trie

import (
	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"

	"github.com/aeonchain/aeon/pkg/types"
)

var _ TrieDB = (*PebbleTrieDB)(nil)

const (
	versionTPrefix byte = iota + 1
	stateKeyTPrefix
)

const (
	tombstoneTag byte = iota
	valueTag
)

// PebbleTrieDB persists versions copy-on-write: each commit stores its
// write set under the new root plus a parent link, and reads walk the
// lineage back to the empty root.
type PebbleTrieDB struct {
	db *pebble.DB
}

func NewPebbleTrieDB(path string) (*PebbleTrieDB, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrap(err, "opening state store")
	}

	return &PebbleTrieDB{db: db}, nil
}

func (p *PebbleTrieDB) Close() error {
	return p.db.Close()
}

func (p *PebbleTrieDB) StateAt(root types.Hash) (State, error) {
	if !root.IsNil() {
		if _, err := p.parentOf(root); err != nil {
			return nil, err
		}
	}

	return &pebbleState{
		db:      p,
		parent:  root,
		dirty:   make(map[string][]byte),
		deleted: make(map[string]struct{}),
	}, nil
}

func (p *PebbleTrieDB) parentOf(root types.Hash) (types.Hash, error) {
	d, done, err := p.db.Get(versionKey(root))
	if err != nil {
		if err == pebble.ErrNotFound {
			return types.NilHash, ErrRootNotFound
		}
		return types.NilHash, errors.Wrap(err, "reading version link")
	}
	defer done.Close()

	return types.BytesToHash(d)
}

// lookup walks the version lineage until it finds the key or reaches
// the empty root.
func (p *PebbleTrieDB) lookup(root types.Hash, key []byte) ([]byte, error) {
	for r := root; !r.IsNil(); {
		d, done, err := p.db.Get(stateKey(r, key))
		if err == nil {
			tag := d[0]
			v := append([]byte(nil), d[1:]...)
			done.Close()

			if tag == tombstoneTag {
				return nil, ErrKeyNotFound
			}
			return v, nil
		}
		if err != pebble.ErrNotFound {
			return nil, errors.Wrap(err, "reading state key")
		}

		r, err = p.parentOf(r)
		if err != nil {
			return nil, err
		}
	}

	return nil, ErrKeyNotFound
}

type pebbleState struct {
	db      *PebbleTrieDB
	parent  types.Hash
	dirty   map[string][]byte
	deleted map[string]struct{}
}

func (s *pebbleState) Get(key []byte) ([]byte, error) {
	if _, ok := s.deleted[string(key)]; ok {
		return nil, ErrKeyNotFound
	}

	if v, ok := s.dirty[string(key)]; ok {
		return v, nil
	}

	return s.db.lookup(s.parent, key)
}

func (s *pebbleState) Set(key, value []byte) {
	delete(s.deleted, string(key))
	s.dirty[string(key)] = value
}

func (s *pebbleState) Delete(key []byte) {
	delete(s.dirty, string(key))
	s.deleted[string(key)] = struct{}{}
}

func (s *pebbleState) Commit() (types.Hash, error) {
	root := versionRoot(s.parent, s.dirty, s.deleted)

	b := s.db.db.NewBatch()
	defer b.Close()

	for k, v := range s.dirty {
		if err := b.Set(stateKey(root, []byte(k)), append([]byte{valueTag}, v...), nil); err != nil {
			return types.NilHash, errors.Wrap(err, "staging state key")
		}
	}
	for k := range s.deleted {
		if err := b.Set(stateKey(root, []byte(k)), []byte{tombstoneTag}, nil); err != nil {
			return types.NilHash, errors.Wrap(err, "staging state tombstone")
		}
	}
	if err := b.Set(versionKey(root), s.parent.Bytes(), nil); err != nil {
		return types.NilHash, errors.Wrap(err, "staging version link")
	}

	if err := b.Commit(&pebble.WriteOptions{Sync: true}); err != nil {
		return types.NilHash, errors.Wrap(err, "committing state version")
	}

	return root, nil
}

func versionKey(root types.Hash) []byte {
	return append([]byte{versionTPrefix}, root.Bytes()...)
}

func stateKey(root types.Hash, key []byte) []byte {
	k := append([]byte{stateKeyTPrefix}, root.Bytes()...)
	return append(k, key...)
}
