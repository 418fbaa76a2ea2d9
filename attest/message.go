// Package attest turns independent validator signatures into accepted facts.
//
// Validators sign the EIP-191 personal-sign hash of a canonical message:
//
//	report:   keccak256(bytes32 peerId)
//	network:  keccak256(abi.encodePacked(bytes32[] peerIds, uint256[] contributions, uint256 total))
//	toggle:   keccak256(abi.encodePacked(string name, bool target, uint256 nonce))
//
// Signatures are verified one slot at a time against a claimed signer list.
// A slot that does not recover to its claimed address, or recovers to an
// address that is not a registered validator, contributes zero weight; only
// failing to reach the quorum aborts the attestation.
package attest

import (
	"crypto/ecdsa"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/rony4d/go-peerz/inter"
	"github.com/rony4d/go-peerz/inter/validatorsig"
)

var (
	ErrInvalidSignature       = errors.New("invalid signature")
	ErrSignatureCountMismatch = errors.New("Signature count mismatch")
	ErrDataLengthMismatch     = errors.New("Data length mismatch")
	ErrNoValidators           = errors.New("No validators")
	ErrConsensusNotReached    = errors.New("Consensus not reached")
)

// PeerReportDigest is keccak256 of the 32-byte peer id.
func PeerReportDigest(id inter.PeerID) common.Hash {
	return crypto.Keccak256Hash(id[:])
}

// PeerReportHash is the EIP-191 hash validators sign to report a peer.
func PeerReportHash(id inter.PeerID) common.Hash {
	d := PeerReportDigest(id)
	return common.BytesToHash(accounts.TextHash(d[:]))
}

// NetworkStateDigest packs a network-state batch. The caller guarantees
// len(ids) == len(contributions).
func NetworkStateDigest(ids []inter.PeerID, contributions []uint64, total uint64) common.Hash {
	buf := make([]byte, 0, 32*(len(ids)+len(contributions)+1))
	for _, id := range ids {
		buf = append(buf, id[:]...)
	}
	for _, c := range contributions {
		buf = append(buf, uint256(c)...)
	}
	buf = append(buf, uint256(total)...)
	return crypto.Keccak256Hash(buf)
}

// NetworkStateHash is the EIP-191 hash validators sign for a batch.
func NetworkStateHash(ids []inter.PeerID, contributions []uint64, total uint64) common.Hash {
	d := NetworkStateDigest(ids, contributions, total)
	return common.BytesToHash(accounts.TextHash(d[:]))
}

// ToggleHash is the EIP-191 hash token holders sign to flip a governance toggle.
func ToggleHash(name string, target bool, nonce uint64) common.Hash {
	buf := append([]byte(name), 0)
	if target {
		buf[len(buf)-1] = 1
	}
	buf = append(buf, uint256(nonce)...)
	d := crypto.Keccak256(buf)
	return common.BytesToHash(accounts.TextHash(d))
}

// Sign produces the wallet-form (V = 27/28) signature of hash.
func Sign(hash common.Hash, key *ecdsa.PrivateKey) (validatorsig.Signature, error) {
	raw, err := crypto.Sign(hash[:], key)
	if err != nil {
		return validatorsig.Signature{}, err
	}
	sig, err := validatorsig.FromBytes(raw)
	if err != nil {
		return sig, err
	}
	return sig.Ethereum(), nil
}

// Recover returns the address that signed hash. Both V conventions are
// accepted; high-s (malleable) signatures are rejected.
func Recover(hash common.Hash, sig validatorsig.Signature) (common.Address, error) {
	n := sig.Normalized()
	r := new(big.Int).SetBytes(n[:32])
	s := new(big.Int).SetBytes(n[32:64])
	if !crypto.ValidateSignatureValues(n.V(), r, s, true) {
		return common.Address{}, ErrInvalidSignature
	}
	pub, err := crypto.SigToPub(hash[:], n.Bytes())
	if err != nil {
		return common.Address{}, ErrInvalidSignature
	}
	return crypto.PubkeyToAddress(*pub), nil
}

func uint256(v uint64) []byte {
	return math.U256Bytes(new(big.Int).SetUint64(v))
}
