// Package inter defines the data structures shared by every protocol
// component: peer identifiers, peer views and protocol timestamps.
//
// Key concepts:
//   - PeerID: a 32-byte identifier, derived from a libp2p peer ID string
//   - Peer: a read-only view combining registry and ledger fields
//   - Timestamp: protocol time in unix seconds
package inter

import (
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mr-tron/base58"
)

// PeerID identifies a peer across chains. The zero PeerID is reserved and
// addresses the caller's validator reward pool in claims.
type PeerID common.Hash

// ErrInvalidPeerID is returned when a textual peer identifier cannot be parsed.
var ErrInvalidPeerID = errors.New("invalid peer id")

// ZeroPeerID is the reserved identifier meaning "validator pool of the caller".
var ZeroPeerID = PeerID{}

// PeerIDFromString derives the protocol identifier from a libp2p peer ID
// string as keccak256 of its UTF-8 bytes.
func PeerIDFromString(libp2pID string) PeerID {
	return PeerID(crypto.Keccak256Hash([]byte(libp2pID)))
}

// ParsePeerID accepts either a 0x-prefixed 32-byte hex identifier or a
// base58-encoded libp2p peer ID (e.g. "12D3KooW..." or "Qm...").
// libp2p IDs are decoded to make sure they are well formed multihashes and
// then hashed with PeerIDFromString.
func ParsePeerID(s string) (PeerID, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		b, err := hexutil.Decode(s)
		if err != nil || len(b) != common.HashLength {
			return PeerID{}, ErrInvalidPeerID
		}
		return PeerID(common.BytesToHash(b)), nil
	}
	raw, err := base58.Decode(s)
	// a multihash is at least <code><length><digest byte>
	if err != nil || len(raw) < 3 || int(raw[1]) != len(raw)-2 {
		return PeerID{}, ErrInvalidPeerID
	}
	return PeerIDFromString(s), nil
}

// IsZero reports whether id is the reserved zero identifier.
func (id PeerID) IsZero() bool {
	return id == ZeroPeerID
}

// Hash returns the identifier as a common.Hash.
func (id PeerID) Hash() common.Hash {
	return common.Hash(id)
}

// Bytes returns a copy of the identifier bytes.
func (id PeerID) Bytes() []byte {
	return common.CopyBytes(id[:])
}

// String returns the 0x-prefixed hex form.
func (id PeerID) String() string {
	return common.Hash(id).Hex()
}

// MarshalText implements encoding.TextMarshaler.
func (id PeerID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *PeerID) UnmarshalText(input []byte) error {
	res, err := ParsePeerID(string(input))
	if err != nil {
		return err
	}
	*id = res
	return nil
}

// Peer is a point-in-time view of a registered peer. Registry fields
// (Beneficiary, Contribution, Active) and ledger fields (RewardDebt,
// AccruedReward) are owned by different components; this struct only
// carries copies of them.
type Peer struct {
	ID            PeerID
	Beneficiary   common.Address
	Contribution  uint64
	Active        bool
	RegisteredAt  Timestamp
	LastReported  Timestamp
	RewardDebt    *big.Int
	AccruedReward *big.Int
}

// Copy returns a deep copy of the peer view.
func (p Peer) Copy() Peer {
	cp := p
	if p.RewardDebt != nil {
		cp.RewardDebt = new(big.Int).Set(p.RewardDebt)
	}
	if p.AccruedReward != nil {
		cp.AccruedReward = new(big.Int).Set(p.AccruedReward)
	}
	return cp
}
