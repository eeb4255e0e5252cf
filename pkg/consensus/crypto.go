package consensus

import (
	"github.com/pkg/errors"

	"github.com/aeonchain/aeon/pkg/cryptography"
	"github.com/aeonchain/aeon/pkg/types"
)

// BitmapHas reports whether validator index i voted.
func BitmapHas(bitmap []byte, i int) bool {
	if i/8 >= len(bitmap) {
		return false
	}

	return bitmap[i/8]&(1<<(7-uint(i%8))) != 0
}

// BitmapSet marks validator index i as a voter, growing the bitmap as
// needed.
func BitmapSet(bitmap []byte, i int) []byte {
	for i/8 >= len(bitmap) {
		bitmap = append(bitmap, 0)
	}

	bitmap[i/8] |= 1 << (7 - uint(i%8))
	return bitmap
}

// VerifyProof authenticates an aggregated quorum proof against the
// validator set it claims to be signed by. The proof must bind the
// expected epoch id and hash, carry more than two-thirds of the total
// vote weight, and its aggregate signature must verify over the epoch
// hash.
func VerifyProof(proof types.Proof, expectID uint64, expectHash types.Hash, validators []types.Validator) error {
	if proof.EpochID != expectID {
		return errors.Wrapf(ErrProofInvalid, "proof for %d, expected %d", proof.EpochID, expectID)
	}

	if !proof.EpochHash.Equal(expectHash) {
		return errors.Wrap(ErrProofInvalid, "epoch hash binding mismatch")
	}

	// the genesis epoch carries an empty proof by construction
	if expectID == 0 && len(proof.Signature) == 0 {
		return nil
	}

	var total, voted uint64
	voters := make([]*cryptography.BlsPublicKey, 0, len(validators))

	for i, v := range validators {
		total += uint64(v.VoteWeight)

		if !BitmapHas(proof.Bitmap, i) {
			continue
		}

		pk, err := cryptography.PublicKeyFromBytes(v.PubKey)
		if err != nil {
			return errors.Wrap(ErrProofInvalid, err.Error())
		}

		voters = append(voters, pk)
		voted += uint64(v.VoteWeight)
	}

	if len(voters) == 0 || voted*3 <= total*2 {
		return errors.Wrapf(ErrProofInvalid, "vote weight %d of %d below quorum", voted, total)
	}

	agg := cryptography.AggregatePublicKeys(voters...)
	if err := agg.Verify(proof.EpochHash.Bytes(), proof.Signature); err != nil {
		return errors.Wrap(ErrProofInvalid, err.Error())
	}

	return nil
}
