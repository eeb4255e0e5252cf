package trie

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aeonchain/aeon/pkg/types"
)

func TestMemTrieCommitAndRead(t *testing.T) {
	db := NewMemTrieDB()

	s, err := db.StateAt(types.NilHash)
	if err != nil {
		t.Fatal(err)
	}

	s.Set([]byte("a"), []byte("1"))
	s.Set([]byte("b"), []byte("2"))

	root, err := s.Commit()
	if err != nil {
		t.Fatal(err)
	}
	assert.False(t, root.IsNil())

	s2, err := db.StateAt(root)
	if err != nil {
		t.Fatal(err)
	}

	v, err := s2.Get([]byte("a"))
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, []byte("1"), v)
}

func TestMemTrieDeterministicRoot(t *testing.T) {
	db := NewMemTrieDB()

	commit := func() types.Hash {
		s, err := db.StateAt(types.NilHash)
		if err != nil {
			t.Fatal(err)
		}
		s.Set([]byte("b"), []byte("2"))
		s.Set([]byte("a"), []byte("1"))
		root, err := s.Commit()
		if err != nil {
			t.Fatal(err)
		}
		return root
	}

	assert.Equal(t, commit(), commit())
}

func TestMemTrieUnknownRoot(t *testing.T) {
	db := NewMemTrieDB()

	_, err := db.StateAt(types.Digest([]byte("missing")))
	assert.ErrorIs(t, err, ErrRootNotFound)
}

func TestMemTrieDelete(t *testing.T) {
	db := NewMemTrieDB()

	s, _ := db.StateAt(types.NilHash)
	s.Set([]byte("a"), []byte("1"))
	r1, err := s.Commit()
	if err != nil {
		t.Fatal(err)
	}

	s2, _ := db.StateAt(r1)
	s2.Delete([]byte("a"))
	r2, err := s2.Commit()
	if err != nil {
		t.Fatal(err)
	}

	s3, _ := db.StateAt(r2)
	_, err = s3.Get([]byte("a"))
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestPebbleTrieLineage(t *testing.T) {
	db, err := NewPebbleTrieDB(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	s, err := db.StateAt(types.NilHash)
	if err != nil {
		t.Fatal(err)
	}
	s.Set([]byte("a"), []byte("1"))
	r1, err := s.Commit()
	if err != nil {
		t.Fatal(err)
	}

	s2, err := db.StateAt(r1)
	if err != nil {
		t.Fatal(err)
	}
	s2.Set([]byte("b"), []byte("2"))
	r2, err := s2.Commit()
	if err != nil {
		t.Fatal(err)
	}

	// key written in the parent version is visible in the child
	s3, err := db.StateAt(r2)
	if err != nil {
		t.Fatal(err)
	}
	v, err := s3.Get([]byte("a"))
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, []byte("1"), v)

	// and the older root still reads its own view
	s4, err := db.StateAt(r1)
	if err != nil {
		t.Fatal(err)
	}
	_, err = s4.Get([]byte("b"))
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestPebbleAndMemRootsMatch(t *testing.T) {
	pdb, err := NewPebbleTrieDB(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer pdb.Close()

	mdb := NewMemTrieDB()

	ps, _ := pdb.StateAt(types.NilHash)
	ms, _ := mdb.StateAt(types.NilHash)

	for _, kv := range [][2]string{{"x", "1"}, {"y", "2"}} {
		ps.Set([]byte(kv[0]), []byte(kv[1]))
		ms.Set([]byte(kv[0]), []byte(kv[1]))
	}

	pr, err := ps.Commit()
	if err != nil {
		t.Fatal(err)
	}
	mr, err := ms.Commit()
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, mr, pr)
}
