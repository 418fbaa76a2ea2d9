package consensus

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-peerz/bridge"
	"github.com/rony4d/go-peerz/inter"
	"github.com/rony4d/go-peerz/ledger"
	"github.com/rony4d/go-peerz/metrics"
)

// ClaimReceipt describes a dispatched claim. The mint on the token chain
// happens later, when the bridge delivers message Nonce.
type ClaimReceipt struct {
	TaskID      uuid.UUID
	PeerID      inter.PeerID
	Beneficiary common.Address
	Amount      *big.Int
	Nonce       uint64
	Fee         *big.Int
}

// Claim pays out the reward of id to its beneficiary, or the caller's
// validator pool when id is zero. value pays the bridge fee; the excess is
// refunded to refund.
//
// The ledger is debited before the mint message is sent. If sending fails
// the debit is restored and the error returned; once sent, a failed mint is
// recovered on the token chain by retrying the stored message.
func (s *Service) Claim(ctx context.Context, caller common.Address, id inter.PeerID, value *big.Int, refund common.Address) (rec ClaimReceipt, err error) {
	kind := "peer"
	if id.IsZero() {
		kind = "validator"
	}
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.ClaimsTotal.WithLabelValues(kind, status).Inc()
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now < s.cfg.EpochStart {
		return ClaimReceipt{}, ErrRewardsNotStarted
	}

	var (
		beneficiary  common.Address
		amount       *big.Int
		contribution uint64
	)
	if id.IsZero() {
		beneficiary = caller
		amount = s.ledger.ValidatorReward(caller)
	} else {
		p, ok := s.registry.Peer(id)
		if !ok {
			return ClaimReceipt{}, ErrNothingToClaim
		}
		beneficiary = p.Beneficiary
		contribution = p.Contribution
		amount = s.earned(id, now)
	}
	if amount.Sign() == 0 {
		return ClaimReceipt{}, ErrNothingToClaim
	}

	fee, err := s.sender.QuoteMint(beneficiary, amount)
	if err != nil {
		return ClaimReceipt{}, wrapf(err, "quote mint")
	}
	if value == nil || value.Cmp(fee) < 0 {
		return ClaimReceipt{}, bridge.ErrInsufficientFee
	}

	// phase 1: debit
	s.settle(now)
	var committed *big.Int
	if id.IsZero() {
		committed = s.ledger.CommitValidatorClaim(caller)
	} else {
		committed = s.ledger.CommitClaim(id, contribution)
	}

	// phase 2: dispatch
	task := uuid.New()
	log := s.log.WithFields(logrus.Fields{"task": task, "peer": id, "beneficiary": beneficiary, "amount": committed})
	receipt, err := s.sender.SendMint(ctx, s.cfg.Address, beneficiary, committed, refund, value)
	if err != nil {
		if id.IsZero() {
			err2 := s.ledger.RefundValidator(caller, committed)
			logRefund(log, err2)
		} else {
			err2 := s.ledger.Refund(id, committed)
			logRefund(log, err2)
		}
		log.WithError(err).Warn("Claim dispatch failed, debit restored")
		return ClaimReceipt{}, err
	}

	metrics.ClaimedTokens.Add(wholeTokens(committed))
	log.WithFields(logrus.Fields{"nonce": receipt.Nonce, "fee": receipt.Fee}).Info("Reward claimed")
	return ClaimReceipt{
		TaskID:      task,
		PeerID:      id,
		Beneficiary: beneficiary,
		Amount:      committed,
		Nonce:       receipt.Nonce,
		Fee:         receipt.Fee,
	}, nil
}

func logRefund(log logrus.FieldLogger, err error) {
	if err != nil {
		log.WithError(err).Error("Failed to restore claim debit")
	}
}

func wholeTokens(amount *big.Int) float64 {
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(amount), new(big.Float).SetInt(ledger.Precision)).Float64()
	return f
}
