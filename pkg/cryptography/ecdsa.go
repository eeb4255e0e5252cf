package cryptography

import (
	"crypto/ecdsa"
	"crypto/rand"

	ethCrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/aeonchain/aeon/pkg/types"
)

// Secp256k1PrivateKey signs transactions. Validators use BLS for
// quorum proofs; account holders use secp256k1.
type Secp256k1PrivateKey struct {
	*ecdsa.PrivateKey
}

func NewSecp256k1PrivateKey() (*Secp256k1PrivateKey, error) {
	pk, err := ecdsa.GenerateKey(ethCrypto.S256(), rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "generating secp256k1 key")
	}

	return &Secp256k1PrivateKey{pk}, nil
}

func Secp256k1FromBytes(b []byte) (*Secp256k1PrivateKey, error) {
	pk, err := ethCrypto.ToECDSA(b)
	if err != nil {
		return nil, errors.Wrap(err, "parsing secp256k1 key")
	}

	return &Secp256k1PrivateKey{pk}, nil
}

func (p *Secp256k1PrivateKey) Bytes() []byte {
	return ethCrypto.FromECDSA(p.PrivateKey)
}

func (p *Secp256k1PrivateKey) PublicBytes() []byte {
	return ethCrypto.FromECDSAPub(&p.PublicKey)
}

// Sign produces a recoverable signature over a 32-byte digest.
func (p *Secp256k1PrivateKey) Sign(digest types.Hash) ([]byte, error) {
	return ethCrypto.Sign(digest.Bytes(), p.PrivateKey)
}

// VerifySecp256k1 checks a signature over a digest. Recoverable
// signatures carry a trailing recovery id which is not part of the
// verification input.
func VerifySecp256k1(pubKey []byte, digest types.Hash, signature []byte) bool {
	if len(signature) == 65 {
		signature = signature[:64]
	}

	return ethCrypto.VerifySignature(pubKey, digest.Bytes(), signature)
}

// SignTransaction seals a raw transaction with its hash and signature.
func SignTransaction(key *Secp256k1PrivateKey, raw types.RawTransaction) (*types.SignedTransaction, error) {
	hash := raw.Hash()

	sig, err := key.Sign(hash)
	if err != nil {
		return nil, errors.Wrap(err, "signing tx")
	}

	return &types.SignedTransaction{
		Raw:       raw,
		TxHash:    hash,
		PubKey:    key.PublicBytes(),
		Signature: sig,
	}, nil
}

// VerifyTransaction checks the hash binding and signature of a signed
// transaction.
func VerifyTransaction(tx *types.SignedTransaction) error {
	if !tx.TxHash.Equal(tx.Raw.Hash()) {
		return errors.New("tx hash mismatch")
	}

	if !VerifySecp256k1(tx.PubKey, tx.TxHash, tx.Signature) {
		return errors.New("tx signature invalid")
	}

	return nil
}
