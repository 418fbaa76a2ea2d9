// Package consensus is the incentive chain's protocol service. It owns the
// peer registry, the reward ledger and the attestation verifiers, and turns
// claims into mint messages through a Dispatcher.
//
// Every exported method takes the service lock for its whole duration, so
// each call is one atomic state transition. The ledger is settled at the old
// totals before anything that changes contributions or validator count.
package consensus

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-peerz/attest"
	"github.com/rony4d/go-peerz/bridge"
	"github.com/rony4d/go-peerz/inter"
	"github.com/rony4d/go-peerz/ledger"
	"github.com/rony4d/go-peerz/metrics"
	"github.com/rony4d/go-peerz/protocol"
	"github.com/rony4d/go-peerz/registry"
)

var (
	ErrRewardsNotStarted = errors.New("rewards not started")
	ErrNothingToClaim    = errors.New("nothing to claim")
	ErrTotalMismatch     = errors.New("total contribution mismatch")
	ErrDuplicatePeer     = errors.New("duplicate peer in batch")
	ErrUnclaimedRewards  = errors.New("peer has unclaimed rewards")
)

// Dispatcher sends committed claims to the token chain.
type Dispatcher interface {
	QuoteMint(beneficiary common.Address, amount *big.Int) (*big.Int, error)
	SendMint(ctx context.Context, caller, beneficiary common.Address, amount *big.Int, refund common.Address, value *big.Int) (bridge.Receipt, error)
}

// Config describes one service instance.
type Config struct {
	// Address is the service's own address; the dispatcher only accepts
	// mints sent by it.
	Address    common.Address
	Owner      common.Address
	Rules      protocol.Rules
	EpochStart inter.Timestamp
}

// Service is safe for concurrent use.
type Service struct {
	mu sync.Mutex

	cfg      Config
	clock    clockwork.Clock
	registry *registry.Registry
	ledger   *ledger.Ledger
	reports  *attest.Verifier
	batches  *attest.Verifier
	sender   Dispatcher

	log logrus.FieldLogger
}

// New returns a service with empty registry and ledger.
func New(cfg Config, clock clockwork.Clock, sender Dispatcher, log logrus.FieldLogger) (*Service, error) {
	if err := cfg.Rules.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("network", cfg.Rules.Name)
	rules := cfg.Rules.Copy()
	cfg.Rules = rules
	return &Service{
		cfg:      cfg,
		clock:    clock,
		registry: registry.New(cfg.Owner, log),
		ledger:   ledger.New(rules.Schedule(cfg.EpochStart), rules.Attestation.ValidatorShareBps, log),
		reports:  attest.NewVerifier(rules.Attestation.ReportQuorum, log),
		batches:  attest.NewVerifier(rules.Attestation.BatchQuorum, log),
		sender:   sender,
		log:      log.WithField("module", "consensus"),
	}, nil
}

// Address returns the service address.
func (s *Service) Address() common.Address {
	return s.cfg.Address
}

// Rules returns a copy of the protocol rules.
func (s *Service) Rules() protocol.Rules {
	return s.cfg.Rules.Copy()
}

// EpochStart returns the moment rewards start accruing.
func (s *Service) EpochStart() inter.Timestamp {
	return s.cfg.EpochStart
}

func (s *Service) now() inter.Timestamp {
	return inter.FromTime(s.clock.Now())
}

func (s *Service) settle(now inter.Timestamp) {
	s.ledger.Settle(now, s.registry.TotalContribution(), s.registry.ValidatorCount())
}

func (s *Service) observe(op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.PeerOperationsTotal.WithLabelValues(op, status).Inc()
	count, total := s.registry.ActivePeers()
	metrics.ActivePeers.Set(float64(count))
	metrics.TotalContribution.Set(float64(total))
}

// Owner returns the registry owner.
func (s *Service) Owner() common.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.Owner()
}

// TransferOwnership hands the owner role to newOwner.
func (s *Service) TransferOwnership(caller, newOwner common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.TransferOwnership(caller, newOwner)
}

// RegisterPeer registers id with the caller as beneficiary.
func (s *Service) RegisterPeer(caller common.Address, id inter.PeerID, contribution uint64) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.observe("register", err) }()

	if err := s.registry.ValidateRegister(id, contribution); err != nil {
		return err
	}
	now := s.now()
	s.settle(now)
	// opens the account at the current accumulator with nothing owed
	s.ledger.Checkpoint(id, 0)
	if err := s.registry.Register(caller, id, contribution, now); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"peer": id, "beneficiary": caller, "contribution": contribution}).Info("Peer registered")
	return nil
}

// UpdatePeerContribution replaces the contribution of id. Beneficiary only.
func (s *Service) UpdatePeerContribution(caller common.Address, id inter.PeerID, contribution uint64) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.observe("update_contribution", err) }()

	if err := s.registry.ValidateContribution(caller, id, contribution); err != nil {
		return err
	}
	s.settle(s.now())
	s.ledger.Checkpoint(id, s.registry.Contribution(id))
	old, err := s.registry.UpdateContribution(caller, id, contribution)
	if err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"peer": id, "old": old, "contribution": contribution}).Debug("Contribution updated")
	return nil
}

// UpdatePeerAddress moves the payouts of id to beneficiary. Beneficiary only.
func (s *Service) UpdatePeerAddress(caller common.Address, id inter.PeerID, beneficiary common.Address) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.observe("update_address", err) }()

	return s.registry.UpdateBeneficiary(caller, id, beneficiary)
}

// DeactivatePeer freezes the accrued reward of id and removes its
// contribution. Beneficiary only.
func (s *Service) DeactivatePeer(caller common.Address, id inter.PeerID) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.observe("deactivate", err) }()

	if err := s.registry.Authorize(caller, id); err != nil {
		return err
	}
	s.settle(s.now())
	s.ledger.Checkpoint(id, s.registry.Contribution(id))
	if _, err := s.registry.Deactivate(caller, id); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"peer": id, "accrued": s.ledger.Accrued(id)}).Info("Peer deactivated")
	return nil
}

// UnregisterPeer deletes an inactive peer with nothing left to claim. The
// id can never be registered again.
func (s *Service) UnregisterPeer(caller common.Address, id inter.PeerID) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.observe("unregister", err) }()

	if err := s.registry.ValidateUnregister(caller, id); err != nil {
		return err
	}
	if s.ledger.Accrued(id).Sign() > 0 {
		return ErrUnclaimedRewards
	}
	if err := s.registry.Unregister(caller, id); err != nil {
		return err
	}
	s.ledger.Forget(id)
	return nil
}

// SetValidator adds or removes a validator. Owner only.
func (s *Service) SetValidator(caller, addr common.Address, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if caller != s.registry.Owner() {
		return registry.ErrNotOwner
	}
	if addr == (common.Address{}) {
		return registry.ErrInvalidValidator
	}
	// the validator share depends on the validator count
	s.settle(s.now())
	return s.registry.SetValidator(caller, addr, enabled)
}

// SetValidatorWeight sets the stake weight of a validator. Owner only.
func (s *Service) SetValidatorWeight(caller, addr common.Address, weight uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.SetValidatorWeight(caller, addr, weight)
}

// IsValidator reports whether addr is a registered validator.
func (s *Service) IsValidator(addr common.Address) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.IsValidator(addr)
}

// Validators returns validator addresses in registration order.
func (s *Service) Validators() []common.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.Validators()
}

// Earned returns what id could claim now.
func (s *Service) Earned(id inter.PeerID) *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.earned(id, s.now())
}

func (s *Service) earned(id inter.PeerID, now inter.Timestamp) *big.Int {
	return s.ledger.Earned(id, s.registry.Contribution(id), now, s.registry.TotalContribution(), s.registry.ValidatorCount())
}

// ValidatorReward returns the claimable pool of a validator.
func (s *Service) ValidatorReward(addr common.Address) *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.ValidatorReward(addr)
}

// GetActivePeers returns the number of active peers and their total contribution.
func (s *Service) GetActivePeers() (int, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.ActivePeers()
}

// GetActivePeersRange pages through active peers in registration order.
func (s *Service) GetActivePeersRange(offset, limit int) ([]inter.PeerID, []uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.ActivePeersRange(offset, limit)
}

// Peer returns the full record of id, ledger fields included.
func (s *Service) Peer(id inter.PeerID) (inter.Peer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.registry.Peer(id)
	if !ok {
		return inter.Peer{}, false
	}
	debt, accrued, ok := s.ledger.Account(id)
	if !ok {
		debt, accrued = new(big.Int), new(big.Int)
	}
	p.RewardDebt = debt
	p.AccruedReward = accrued
	return p, true
}

// State returns the distribution state with the live contribution total.
func (s *Service) State() ledger.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.ledger.State()
	st.TotalContribution = s.registry.TotalContribution()
	return st
}

// Emitted returns the schedule's emission over [from, to).
func (s *Service) Emitted(from, to inter.Timestamp) *big.Int {
	return s.ledger.Schedule().Emitted(from, to)
}

// PeerReportHash returns the hash validators sign to report id.
func (s *Service) PeerReportHash(id inter.PeerID) common.Hash {
	return attest.PeerReportHash(id)
}

// NetworkStateHash returns the hash validators sign for a batch.
func (s *Service) NetworkStateHash(ids []inter.PeerID, contributions []uint64, total uint64) common.Hash {
	return attest.NetworkStateHash(ids, contributions, total)
}

func wrapf(err error, format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
