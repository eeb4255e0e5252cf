package consensus

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aeonchain/aeon/pkg/types"
)

func TestBitmapRoundTrip(t *testing.T) {
	var bitmap []byte

	for _, i := range []int{0, 3, 7, 8, 21} {
		bitmap = BitmapSet(bitmap, i)
	}

	assert.Len(t, bitmap, 3)

	for _, i := range []int{0, 3, 7, 8, 21} {
		assert.True(t, BitmapHas(bitmap, i), "index %d", i)
	}

	for _, i := range []int{1, 6, 9, 20, 22, 100} {
		assert.False(t, BitmapHas(bitmap, i), "index %d", i)
	}
}

func TestVerifyProof(t *testing.T) {
	keys, vals := testValidators(t, 4)
	hash := types.Digest([]byte("epoch"))

	proof := quorumProof(t, keys, 7, hash)

	assert.NoError(t, VerifyProof(proof, 7, hash, vals))
}

func TestVerifyProofWrongBinding(t *testing.T) {
	keys, vals := testValidators(t, 4)
	hash := types.Digest([]byte("epoch"))

	proof := quorumProof(t, keys, 7, hash)

	err := VerifyProof(proof, 8, hash, vals)
	assert.ErrorIs(t, err, ErrProofInvalid)

	err = VerifyProof(proof, 7, types.Digest([]byte("other")), vals)
	assert.ErrorIs(t, err, ErrProofInvalid)
}

func TestVerifyProofBelowQuorum(t *testing.T) {
	keys, vals := testValidators(t, 4)
	hash := types.Digest([]byte("epoch"))

	// two of four voters is not more than two-thirds of the weight
	proof := quorumProof(t, keys[:2], 7, hash)

	err := VerifyProof(proof, 7, hash, vals)
	assert.ErrorIs(t, err, ErrProofInvalid)
}

func TestVerifyProofForgedSignature(t *testing.T) {
	_, vals := testValidators(t, 4)
	otherKeys, _ := testValidators(t, 4)
	hash := types.Digest([]byte("epoch"))

	// full bitmap, but signed by the wrong key set
	proof := quorumProof(t, otherKeys, 7, hash)

	err := VerifyProof(proof, 7, hash, vals)
	assert.ErrorIs(t, err, ErrProofInvalid)
}

func TestVerifyProofGenesisExemption(t *testing.T) {
	_, vals := testValidators(t, 4)
	hash := types.Digest([]byte("genesis"))

	proof := types.Proof{EpochID: 0, EpochHash: hash}

	assert.NoError(t, VerifyProof(proof, 0, hash, vals))

	// an empty signature is only tolerated at epoch zero
	proof.EpochID = 3
	err := VerifyProof(proof, 3, hash, vals)
	assert.ErrorIs(t, err, ErrProofInvalid)
}
