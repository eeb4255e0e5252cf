package storage

import (
	"context"
	"encoding/binary"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aeonchain/aeon/pkg/types"
)

var _ Storage = (*PebbleStore)(nil)

const (
	cacheSize = 1 << 20 * 100
)

type chainKeyType byte

const (
	epochTPrefix chainKeyType = iota + 1
	txTPrefix
	receiptTPrefix
	latestProofTPrefix
	latestEpochTPrefix
)

// PebbleStore is the on-disk chain store used by the daemon. Commit
// ordering durability relies on Sync writes for every insert.
type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(path string) (*PebbleStore, error) {
	c := pebble.NewCache(cacheSize)
	defer c.Unref()

	db, err := pebble.Open(path, &pebble.Options{Cache: c})
	if err != nil {
		return nil, errors.Wrap(err, "opening chain store")
	}

	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Close() error {
	return s.db.Close()
}

func (s *PebbleStore) set(key []byte, obj interface{}) error {
	d, err := msgpack.Marshal(obj)
	if err != nil {
		return errors.Wrap(err, "marshaling object")
	}

	return s.db.Set(key, d, &pebble.WriteOptions{Sync: true})
}

func (s *PebbleStore) get(key []byte, into interface{}) error {
	d, done, err := s.db.Get(key)
	if err != nil {
		if err == pebble.ErrNotFound {
			return ErrNotFound
		}
		return errors.Wrap(err, "reading chain store")
	}
	defer done.Close()

	if err := msgpack.Unmarshal(d, into); err != nil {
		return errors.Wrap(err, "unmarshaling object")
	}

	return nil
}

func (s *PebbleStore) InsertEpoch(_ context.Context, e *types.Epoch) error {
	if len(e.OrderedTxHashes) > MaxEpochTxCount {
		return ErrEpochTooLarge
	}

	b := s.db.NewBatch()
	defer b.Close()

	d, err := e.Marshal()
	if err != nil {
		return err
	}

	if err := b.Set(epochKey(e.Header.EpochID), d, nil); err != nil {
		return errors.Wrap(err, "staging epoch")
	}

	// keep the latest pointer monotonic
	latest, err := s.latestEpochID()
	if err != nil && err != ErrNotFound {
		return err
	}
	if err == ErrNotFound || e.Header.EpochID >= latest {
		id := make([]byte, 8)
		binary.BigEndian.PutUint64(id, e.Header.EpochID)
		if err := b.Set(typedKey(latestEpochTPrefix), id, nil); err != nil {
			return errors.Wrap(err, "staging latest epoch pointer")
		}
	}

	return b.Commit(&pebble.WriteOptions{Sync: true})
}

func (s *PebbleStore) latestEpochID() (uint64, error) {
	d, done, err := s.db.Get(typedKey(latestEpochTPrefix))
	if err != nil {
		if err == pebble.ErrNotFound {
			return 0, ErrNotFound
		}
		return 0, errors.Wrap(err, "reading latest epoch pointer")
	}
	defer done.Close()

	return binary.BigEndian.Uint64(d), nil
}

func (s *PebbleStore) InsertTransactions(_ context.Context, txs []*types.SignedTransaction) error {
	b := s.db.NewBatch()
	defer b.Close()

	for _, tx := range txs {
		d, err := tx.Marshal()
		if err != nil {
			return err
		}

		if err := b.Set(typedKey(txTPrefix, tx.TxHash.Bytes()), d, nil); err != nil {
			return errors.Wrap(err, "staging tx")
		}
	}

	return b.Commit(&pebble.WriteOptions{Sync: true})
}

func (s *PebbleStore) InsertReceipts(_ context.Context, receipts []*types.Receipt) error {
	b := s.db.NewBatch()
	defer b.Close()

	for _, r := range receipts {
		d, err := r.Marshal()
		if err != nil {
			return err
		}

		if err := b.Set(typedKey(receiptTPrefix, r.TxHash.Bytes()), d, nil); err != nil {
			return errors.Wrap(err, "staging receipt")
		}
	}

	return b.Commit(&pebble.WriteOptions{Sync: true})
}

func (s *PebbleStore) UpdateLatestProof(_ context.Context, p types.Proof) error {
	return s.set(typedKey(latestProofTPrefix), &p)
}

func (s *PebbleStore) GetEpochByEpochID(_ context.Context, id uint64) (*types.Epoch, error) {
	e := &types.Epoch{}
	if err := s.get(epochKey(id), e); err != nil {
		return nil, err
	}

	return e, nil
}

func (s *PebbleStore) GetLatestEpoch(ctx context.Context) (*types.Epoch, error) {
	id, err := s.latestEpochID()
	if err != nil {
		return nil, err
	}

	return s.GetEpochByEpochID(ctx, id)
}

func (s *PebbleStore) GetLatestProof(_ context.Context) (*types.Proof, error) {
	p := &types.Proof{}
	if err := s.get(typedKey(latestProofTPrefix), p); err != nil {
		return nil, err
	}

	return p, nil
}

func (s *PebbleStore) GetTransactionByHash(_ context.Context, h types.Hash) (*types.SignedTransaction, error) {
	tx := &types.SignedTransaction{}
	if err := s.get(typedKey(txTPrefix, h.Bytes()), tx); err != nil {
		return nil, err
	}

	return tx, nil
}

func (s *PebbleStore) GetReceiptByTxHash(_ context.Context, h types.Hash) (*types.Receipt, error) {
	r := &types.Receipt{}
	if err := s.get(typedKey(receiptTPrefix, h.Bytes()), r); err != nil {
		return nil, err
	}

	return r, nil
}

func epochKey(id uint64) []byte {
	k := make([]byte, 9)
	k[0] = byte(epochTPrefix)
	binary.BigEndian.PutUint64(k[1:], id)
	return k
}

func typedKey(t chainKeyType, parts ...[]byte) []byte {
	k := []byte{byte(t)}
	for _, p := range parts {
		k = append(k, p...)
	}
	return k
}
