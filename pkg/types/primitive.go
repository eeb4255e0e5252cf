package types

import (
	"bytes"
	"encoding/hex"

	"github.com/multiformats/go-multihash"
	"github.com/pkg/errors"
)

const (
	HashLength    = 32
	AddressLength = 20
)

// Hash is a SHA3-256 digest identifying epochs, transactions and state roots.
type Hash [HashLength]byte

var (
	NilHash = Hash{}

	ErrHashLength    = errors.New("invalid hash length")
	ErrAddressLength = errors.New("invalid address length")
)

func Digest(b []byte) Hash {
	mh, _ := multihash.Sum(b, multihash.SHA3_256, multihash.DefaultLengths[multihash.SHA3_256])
	dh, _ := multihash.Decode(mh)

	var h Hash
	copy(h[:], dh.Digest)
	return h
}

func BytesToHash(b []byte) (Hash, error) {
	if len(b) != HashLength {
		return NilHash, ErrHashLength
	}

	var h Hash
	copy(h[:], b)
	return h, nil
}

func HexToHash(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return NilHash, errors.Wrap(err, "decoding hash hex")
	}

	return BytesToHash(b)
}

func (h Hash) Bytes() []byte {
	return h[:]
}

func (h Hash) Hex() string {
	return hex.EncodeToString(h[:])
}

func (h Hash) IsNil() bool {
	return h == NilHash
}

func (h Hash) Equal(o Hash) bool {
	return bytes.Equal(h[:], o[:])
}

func (h Hash) String() string {
	return h.Hex()
}

// Address identifies an account or validator.
type Address [AddressLength]byte

var NilAddress = Address{}

func BytesToAddress(b []byte) (Address, error) {
	if len(b) != AddressLength {
		return NilAddress, ErrAddressLength
	}

	var a Address
	copy(a[:], b)
	return a, nil
}

func HexToAddress(s string) (Address, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return NilAddress, errors.Wrap(err, "decoding address hex")
	}

	return BytesToAddress(b)
}

// AddressFromPubKey derives an address from the trailing bytes of the
// public key digest.
func AddressFromPubKey(pk []byte) Address {
	h := Digest(pk)

	var a Address
	copy(a[:], h[HashLength-AddressLength:])
	return a
}

func (a Address) Bytes() []byte {
	return a[:]
}

func (a Address) Hex() string {
	return hex.EncodeToString(a[:])
}

func (a Address) String() string {
	return a.Hex()
}
