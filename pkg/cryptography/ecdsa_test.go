package cryptography

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aeonchain/aeon/pkg/types"
)

func TestSecp256k1SignVerify(t *testing.T) {
	key, err := NewSecp256k1PrivateKey()
	assert.NoError(t, err)

	digest := types.Digest([]byte("payload"))

	sig, err := key.Sign(digest)
	assert.NoError(t, err)

	assert.True(t, VerifySecp256k1(key.PublicBytes(), digest, sig))
	assert.False(t, VerifySecp256k1(key.PublicBytes(), types.Digest([]byte("other")), sig))
}

func TestSecp256k1RoundTrip(t *testing.T) {
	key, err := NewSecp256k1PrivateKey()
	assert.NoError(t, err)

	restored, err := Secp256k1FromBytes(key.Bytes())
	assert.NoError(t, err)

	digest := types.Digest([]byte("payload"))
	sig, err := restored.Sign(digest)
	assert.NoError(t, err)

	assert.True(t, VerifySecp256k1(key.PublicBytes(), digest, sig))
}

func TestSignTransaction(t *testing.T) {
	key, err := NewSecp256k1PrivateKey()
	assert.NoError(t, err)

	raw := types.RawTransaction{
		ChainID:     types.Digest([]byte("testnet")),
		Nonce:       types.Digest([]byte("nonce")),
		Timeout:     100,
		CyclesLimit: 1000,
		Request: types.TransactionRequest{
			ServiceName: "counter",
			Method:      "add",
			Payload:     []byte("1"),
		},
	}

	tx, err := SignTransaction(key, raw)
	assert.NoError(t, err)
	assert.NoError(t, VerifyTransaction(tx))

	tampered := *tx
	tampered.Raw.Timeout = 200
	assert.Error(t, VerifyTransaction(&tampered))

	forged := *tx
	forged.Signature = append([]byte(nil), tx.Signature...)
	forged.Signature[10] ^= 0xff
	assert.Error(t, VerifyTransaction(&forged))
}
