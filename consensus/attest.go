package consensus

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-peerz/attest"
	"github.com/rony4d/go-peerz/inter"
	"github.com/rony4d/go-peerz/inter/validatorsig"
	"github.com/rony4d/go-peerz/metrics"
	"github.com/rony4d/go-peerz/registry"
)

func observeAttestation(kind string, res attest.Result, err error) {
	status := "accepted"
	switch {
	case errors.Is(err, attest.ErrConsensusNotReached):
		status = "rejected"
	case err != nil:
		status = "invalid"
	default:
		metrics.AttestationSigners.Observe(float64(len(res.Signers)))
	}
	metrics.AttestationsTotal.WithLabelValues(kind, status).Inc()
}

func signerWeights(res attest.Result) []uint64 {
	weights := make([]uint64, len(res.Weights))
	for i, w := range res.Weights {
		weights[i] = uint64(w)
	}
	return weights
}

// ReportPeer accepts a validator report on the active peer id when enough
// registered validators signed PeerReportHash(id). Every registered
// validator counts once. Signers share the pending validator reward.
func (s *Service) ReportPeer(ctx context.Context, caller common.Address, sigs []validatorsig.Signature, validators []common.Address, id inter.PeerID) (res attest.Result, err error) {
	if err := ctx.Err(); err != nil {
		return attest.Result{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { observeAttestation("report", res, err) }()

	if s.registry.ValidatorCount() == 0 {
		return attest.Result{}, registry.ErrValidatorNotAuthorized
	}
	if len(sigs) != len(validators) {
		return attest.Result{}, attest.ErrSignatureCountMismatch
	}
	if !s.registry.IsActive(id) {
		return attest.Result{}, registry.ErrPeerNotActive
	}
	res, err = s.reports.Verify(attest.PeerReportHash(id), sigs, validators, s.registry, s.registry.ValidatorSet(false))
	if err != nil {
		return res, err
	}

	now := s.now()
	s.settle(now)
	s.ledger.Checkpoint(id, s.registry.Contribution(id))
	credited := s.ledger.CreditValidators(res.Signers, signerWeights(res))
	s.registry.MarkReported(id, now)

	s.log.WithFields(logrus.Fields{
		"peer":     id,
		"caller":   caller,
		"signers":  len(res.Signers),
		"credited": credited,
	}).Info("Peer report accepted")
	return res, nil
}

// ValidateNetworkState replaces the contributions of the listed peers with
// attested values. The validators' stake weights count towards the quorum,
// and signers share the pending validator reward pro-rata to stake.
func (s *Service) ValidateNetworkState(ctx context.Context, caller common.Address, ids []inter.PeerID, contributions []uint64, total uint64, sigs []validatorsig.Signature, validators []common.Address) (res attest.Result, err error) {
	if err := ctx.Err(); err != nil {
		return attest.Result{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { observeAttestation("network_state", res, err) }()

	if s.registry.ValidatorCount() == 0 {
		return attest.Result{}, attest.ErrNoValidators
	}
	if len(ids) != len(contributions) {
		return attest.Result{}, attest.ErrDataLengthMismatch
	}
	if err := s.checkBatch(ids, contributions, total); err != nil {
		return attest.Result{}, err
	}
	if len(sigs) != len(validators) {
		return attest.Result{}, attest.ErrSignatureCountMismatch
	}
	for _, id := range ids {
		if !s.registry.IsActive(id) {
			return attest.Result{}, wrapf(registry.ErrPeerNotActive, "peer %s", id)
		}
	}
	res, err = s.batches.Verify(attest.NetworkStateHash(ids, contributions, total), sigs, validators, s.registry, s.registry.ValidatorSet(true))
	if err != nil {
		return res, err
	}

	now := s.now()
	s.settle(now)
	for i, id := range ids {
		s.ledger.Checkpoint(id, s.registry.Contribution(id))
		if _, err := s.registry.SetAttestedContribution(id, contributions[i], now); err != nil {
			// unreachable after checkBatch; the registry would be half updated
			s.log.WithFields(logrus.Fields{"peer": id}).WithError(err).Error("Attested contribution rejected")
			return res, err
		}
	}
	credited := s.ledger.CreditValidators(res.Signers, signerWeights(res))

	s.log.WithFields(logrus.Fields{
		"peers":    len(ids),
		"total":    total,
		"caller":   caller,
		"weight":   res.Weight,
		"credited": credited,
	}).Info("Network state accepted")
	return res, nil
}

// checkBatch validates a batch before any mutation: nonzero contributions,
// a declared total equal to their sum, no repeated peer and no overflow of
// the resulting network total.
func (s *Service) checkBatch(ids []inter.PeerID, contributions []uint64, total uint64) error {
	var sum, replaced uint64
	seen := make(map[inter.PeerID]struct{}, len(ids))
	for i, c := range contributions {
		if c == 0 {
			return wrapf(registry.ErrInvalidContribution, "peer %s", ids[i])
		}
		if sum+c < sum {
			return ErrTotalMismatch
		}
		sum += c
		if _, ok := seen[ids[i]]; ok {
			return wrapf(ErrDuplicatePeer, "peer %s", ids[i])
		}
		seen[ids[i]] = struct{}{}
		replaced += s.registry.Contribution(ids[i])
	}
	if sum != total {
		return ErrTotalMismatch
	}
	rest := s.registry.TotalContribution() - replaced
	if rest+sum < rest {
		return wrapf(registry.ErrInvalidContribution, "total overflow")
	}
	return nil
}
