package cryptography

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlsSignVerify(t *testing.T) {
	k := NewBlsKeyPair()
	msg := []byte("epoch hash")

	sig, err := k.Sign(msg)
	if err != nil {
		t.Fatal(err)
	}

	assert.NoError(t, k.Public().Verify(msg, sig))
	assert.Error(t, k.Public().Verify([]byte("other"), sig))
}

func TestBlsPublicKeyRoundTrip(t *testing.T) {
	k := NewBlsKeyPair()

	b, err := k.Public().Bytes()
	if err != nil {
		t.Fatal(err)
	}

	pk, err := PublicKeyFromBytes(b)
	if err != nil {
		t.Fatal(err)
	}

	assert.True(t, k.Public().Point.Equal(pk.Point))
}

func TestBlsAggregate(t *testing.T) {
	msg := []byte("epoch hash")

	keys := []*BlsPrivateKey{NewBlsKeyPair(), NewBlsKeyPair(), NewBlsKeyPair()}

	sigs := make([][]byte, 0, len(keys))
	pks := make([]*BlsPublicKey, 0, len(keys))
	for _, k := range keys {
		sig, err := k.Sign(msg)
		if err != nil {
			t.Fatal(err)
		}
		sigs = append(sigs, sig)
		pks = append(pks, k.Public())
	}

	aggSig, err := AggregateSignatures(sigs...)
	if err != nil {
		t.Fatal(err)
	}

	aggPk := AggregatePublicKeys(pks...)
	assert.NoError(t, aggPk.Verify(msg, aggSig))

	// a partial key set must not verify the full aggregate
	partial := AggregatePublicKeys(pks[:2]...)
	assert.Error(t, partial.Verify(msg, aggSig))
}
