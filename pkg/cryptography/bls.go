package cryptography

import (
	"github.com/pkg/errors"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/pairing/bn256"
	"go.dedis.ch/kyber/v3/sign/bls"
	"go.dedis.ch/kyber/v3/util/random"
)

var suite = bn256.NewSuite()

type BlsPrivateKey struct {
	sk kyber.Scalar
	pk kyber.Point
}

type BlsPublicKey struct {
	kyber.Point
}

func NewBlsKeyPair() *BlsPrivateKey {
	sk, pk := bls.NewKeyPair(suite, random.New())
	return &BlsPrivateKey{sk: sk, pk: pk}
}

func (b *BlsPrivateKey) Sign(msg []byte) ([]byte, error) {
	return bls.Sign(suite, b.sk, msg)
}

func (b *BlsPrivateKey) Public() *BlsPublicKey {
	return &BlsPublicKey{b.pk}
}

func (b *BlsPrivateKey) Bytes() ([]byte, error) {
	return b.sk.MarshalBinary()
}

func (b *BlsPublicKey) Bytes() ([]byte, error) {
	return b.Point.MarshalBinary()
}

func (b *BlsPublicKey) Verify(msg, signature []byte) error {
	return bls.Verify(suite, b.Point, msg, signature)
}

func PublicKeyFromBytes(d []byte) (*BlsPublicKey, error) {
	p := suite.G2().Point()
	if err := p.UnmarshalBinary(d); err != nil {
		return nil, errors.Wrap(err, "unmarshaling bls public key")
	}

	return &BlsPublicKey{p}, nil
}

func AggregateSignatures(sigs ...[]byte) ([]byte, error) {
	return bls.AggregateSignatures(suite, sigs...)
}

func AggregatePublicKeys(pks ...*BlsPublicKey) *BlsPublicKey {
	points := make([]kyber.Point, 0, len(pks))
	for _, pk := range pks {
		points = append(points, pk.Point)
	}

	return &BlsPublicKey{bls.AggregatePublicKeys(suite, points...)}
}
