package storage

import (
	"github.com/bits-and-blooms/bloom/v3"

	"github.com/aeonchain/aeon/pkg/types"
)

const (
	falsePositive = 0.01
)

// MakeBloom builds the epoch header's logs bloom over the ordered tx
// hashes.
func MakeBloom(txs []types.Hash) ([]byte, error) {
	b := bloom.NewWithEstimates(MaxEpochTxCount, falsePositive)

	for _, t := range txs {
		b.Add(t.Bytes())
	}

	return b.GobEncode()
}

func BloomContains(b []byte, tx types.Hash) (bool, error) {
	bloom := bloom.NewWithEstimates(MaxEpochTxCount, falsePositive)

	if err := bloom.GobDecode(b); err != nil {
		return false, err
	}

	return bloom.Test(tx.Bytes()), nil
}
