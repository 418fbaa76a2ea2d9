package attest

import (
	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/Fantom-foundation/lachesis-base/inter/pos"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-peerz/inter/validatorsig"
	"github.com/rony4d/go-peerz/protocol"
)

// Membership maps validator addresses onto ids in a pos.Validators set.
type Membership interface {
	ValidatorID(addr common.Address) (idx.ValidatorID, bool)
}

// Result describes an accepted attestation.
type Result struct {
	// Signers are the distinct validators whose slot verified, in slot order.
	Signers []common.Address
	// Weights holds the weight of each signer.
	Weights []pos.Weight
	// Weight is the total weight of Signers.
	Weight pos.Weight
	// Total is the total weight of the validator set.
	Total pos.Weight
}

// Verifier checks signature sets against a quorum fraction.
type Verifier struct {
	Quorum protocol.Fraction
	Log    logrus.FieldLogger
}

// NewVerifier returns a verifier for quorum.
func NewVerifier(quorum protocol.Fraction, log logrus.FieldLogger) *Verifier {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Verifier{Quorum: quorum, Log: log.WithField("module", "attest")}
}

// Verify pairs sigs[i] with claimed[i], keeps the slots that recover to
// their claimed address and belong to set, and accepts when the kept weight
// meets the quorum of set's total weight. Duplicate signers count once.
func (v *Verifier) Verify(hash common.Hash, sigs []validatorsig.Signature, claimed []common.Address, members Membership, set *pos.Validators) (Result, error) {
	if set == nil || set.Len() == 0 {
		return Result{}, ErrNoValidators
	}
	if len(sigs) != len(claimed) {
		return Result{}, ErrSignatureCountMismatch
	}

	counter := set.NewCounter()
	res := Result{Total: set.TotalWeight()}
	for i, sig := range sigs {
		signer, err := Recover(hash, sig)
		if err != nil || signer != claimed[i] {
			v.Log.WithFields(logrus.Fields{"slot": i, "claimed": claimed[i]}).Debug("Signature does not match claimed signer")
			continue
		}
		id, ok := members.ValidatorID(signer)
		if !ok || !set.Exists(id) {
			v.Log.WithFields(logrus.Fields{"slot": i, "validator": signer}).Debug("Signer is not a validator")
			continue
		}
		if !counter.Count(id) {
			continue
		}
		res.Signers = append(res.Signers, signer)
		res.Weights = append(res.Weights, set.Get(id))
	}
	res.Weight = counter.Sum()

	if !v.Quorum.Met(uint64(res.Weight), uint64(res.Total)) {
		v.Log.WithFields(logrus.Fields{
			"weight": res.Weight,
			"total":  res.Total,
			"quorum": v.Quorum.String(),
		}).Debug("Attestation below quorum")
		return res, ErrConsensusNotReached
	}
	return res, nil
}
