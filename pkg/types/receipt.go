package types

import (
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// Event is emitted by a service during execution and carried in the
// transaction's receipt.
type Event struct {
	Service string `msgpack:"s"`
	Data    []byte `msgpack:"d"`
}

// ReceiptResponse is the service call outcome. IsError marks
// transaction-level failures (unknown service/method, payload decode)
// which do not abort the batch.
type ReceiptResponse struct {
	ServiceName string `msgpack:"s"`
	Method      string `msgpack:"m"`
	Ret         []byte `msgpack:"r"`
	IsError     bool   `msgpack:"e"`
}

// Receipt records one transaction's execution outcome within an epoch.
type Receipt struct {
	StateRoot  Hash            `msgpack:"sr"`
	EpochID    uint64          `msgpack:"e"`
	TxHash     Hash            `msgpack:"h"`
	CyclesUsed uint64          `msgpack:"c"`
	Events     []Event         `msgpack:"ev"`
	Response   ReceiptResponse `msgpack:"r"`
}

func (r *Receipt) Marshal() ([]byte, error) {
	b, err := msgpack.Marshal(r)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling receipt")
	}

	return b, nil
}

func (r *Receipt) Unmarshal(b []byte) error {
	return msgpack.Unmarshal(b, r)
}
