// Package ledger converts elapsed time and accepted attestations into
// claimable balances.
//
// It is a streaming-rewards accumulator generalized to the halving emission
// curve: each settlement spreads the reward emitted since the previous one
// over the total contribution, and every peer's share is the difference
// between the accumulator now and the snapshot taken when its contribution
// last changed.
package ledger

import (
	"crypto/sha256"
	"math/big"

	"github.com/Fantom-foundation/lachesis-base/hash"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/rony4d/go-peerz/inter"
)

// Precision is the fixed-point scale of RewardPerContribution.
var Precision = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// State is the global distribution state.
type State struct {
	Cap        *big.Int
	EpochStart inter.Timestamp
	// LastUpdate only moves forward.
	LastUpdate inter.Timestamp
	// RewardPerContribution is scaled by Precision and never decreases.
	RewardPerContribution *big.Int
	// TotalContribution is the total the last settlement distributed over.
	TotalContribution uint64
	// PendingValidatorReward is the validator share not yet assigned to signers.
	PendingValidatorReward *big.Int
	// Emitted is everything settled so far.
	Emitted *big.Int
	// Undistributed is emission that found no contribution to go to.
	Undistributed *big.Int
}

func newState(cap *big.Int, epochStart inter.Timestamp) State {
	return State{
		Cap:                    new(big.Int).Set(cap),
		EpochStart:             epochStart,
		RewardPerContribution:  new(big.Int),
		PendingValidatorReward: new(big.Int),
		Emitted:                new(big.Int),
		Undistributed:          new(big.Int),
	}
}

// Copy returns a deep copy.
func (s State) Copy() State {
	cp := s
	cp.Cap = new(big.Int).Set(s.Cap)
	cp.RewardPerContribution = new(big.Int).Set(s.RewardPerContribution)
	cp.PendingValidatorReward = new(big.Int).Set(s.PendingValidatorReward)
	cp.Emitted = new(big.Int).Set(s.Emitted)
	cp.Undistributed = new(big.Int).Set(s.Undistributed)
	return cp
}

// Hash fingerprints the state as SHA256 of its RLP encoding.
func (s State) Hash() hash.Hash {
	hasher := sha256.New()
	if err := rlp.Encode(hasher, &s); err != nil {
		panic("can't hash: " + err.Error())
	}
	return hash.BytesToHash(hasher.Sum(nil))
}
