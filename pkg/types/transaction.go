package types

import (
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// TransactionRequest names the service call a transaction performs.
type TransactionRequest struct {
	ServiceName string `msgpack:"s"`
	Method      string `msgpack:"m"`
	Payload     []byte `msgpack:"p"`
}

type RawTransaction struct {
	ChainID     Hash               `msgpack:"c"`
	Nonce       Hash               `msgpack:"n"`
	Timeout     uint64             `msgpack:"to"`
	CyclesPrice uint64             `msgpack:"cp"`
	CyclesLimit uint64             `msgpack:"cl"`
	Request     TransactionRequest `msgpack:"r"`
}

// Hash identifies the transaction by the digest of its encoded raw form.
func (r *RawTransaction) Hash() Hash {
	b, _ := msgpack.Marshal(r)
	return Digest(b)
}

type SignedTransaction struct {
	Raw       RawTransaction `msgpack:"r"`
	TxHash    Hash           `msgpack:"h"`
	PubKey    []byte         `msgpack:"pk"`
	Signature []byte         `msgpack:"s"`
}

func (t *SignedTransaction) Marshal() ([]byte, error) {
	b, err := msgpack.Marshal(t)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling signed tx")
	}

	return b, nil
}

func (t *SignedTransaction) Unmarshal(b []byte) error {
	return msgpack.Unmarshal(b, t)
}
