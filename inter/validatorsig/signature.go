// Package validatorsig provides the signature type validators use to attest
// to peer state. A Signature is the 65-byte [R || S || V] secp256k1 form
// produced by wallets for personal_sign messages. V may be carried either in
// the Ethereum 27/28 convention or the raw 0/1 recovery id; Normalized maps
// it onto the latter, which is what go-ethereum's recovery routines expect.
package validatorsig

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Length is the size of a serialized signature in bytes.
const Length = crypto.SignatureLength

// ErrBadLength is returned when parsing input that is not exactly Length bytes.
var ErrBadLength = errors.New("signature must be 65 bytes")

// Signature is a recoverable secp256k1 signature.
type Signature [Length]byte

// Empty reports whether the signature is all zeroes.
func (s Signature) Empty() bool {
	return s == Signature{}
}

// Bytes returns a copy of the raw signature bytes.
func (s Signature) Bytes() []byte {
	return common.CopyBytes(s[:])
}

// String returns the 0x-prefixed hex form.
func (s Signature) String() string {
	return "0x" + common.Bytes2Hex(s[:])
}

// V returns the recovery byte as stored.
func (s Signature) V() byte {
	return s[Length-1]
}

// Normalized returns a copy whose V is 0 or 1.
func (s Signature) Normalized() Signature {
	cp := s
	if cp[Length-1] >= 27 {
		cp[Length-1] -= 27
	}
	return cp
}

// Ethereum returns a copy whose V is 27 or 28, the form wallets emit.
func (s Signature) Ethereum() Signature {
	cp := s
	if cp[Length-1] < 27 {
		cp[Length-1] += 27
	}
	return cp
}

// FromString parses a hex string, with or without the 0x prefix.
func FromString(str string) (Signature, error) {
	return FromBytes(common.FromHex(str))
}

// FromBytes copies b into a Signature.
func FromBytes(b []byte) (Signature, error) {
	var s Signature
	if len(b) != Length {
		return s, ErrBadLength
	}
	copy(s[:], b)
	return s, nil
}

// MustFromBytes is like FromBytes but panics on malformed input. Test helper.
func MustFromBytes(b []byte) Signature {
	s, err := FromBytes(b)
	if err != nil {
		panic(err)
	}
	return s
}

// MarshalText implements encoding.TextMarshaler.
func (s Signature) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Signature) UnmarshalText(input []byte) error {
	res, err := FromString(string(input))
	if err != nil {
		return err
	}
	*s = res
	return nil
}
