// Package registry stores peer and validator records.
//
// The registry validates and applies membership changes. It does not know
// about rewards: the consensus service settles the reward ledger between
// validation (the Validate*/Authorize helpers) and mutation, so that every
// contribution change is preceded by a settlement at the old totals.
//
// A Registry is not safe for concurrent use; the owning service serializes
// access.
package registry

import (
	"errors"
	"fmt"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/Fantom-foundation/lachesis-base/inter/pos"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-peerz/inter"
)

var (
	ErrInvalidContribution    = errors.New("invalid contribution")
	ErrInvalidPeerID          = errors.New("invalid peer id")
	ErrPeerExists             = errors.New("peer exists")
	ErrPeerNotAuthorized      = errors.New("peer not authorized")
	ErrPeerNotActive          = errors.New("peer not active")
	ErrPeerStillActive        = errors.New("peer still active")
	ErrNotOwner               = errors.New("ownable: caller is not the owner")
	ErrInvalidValidator       = errors.New("invalid validator")
	ErrValidatorNotAuthorized = errors.New("validator not authorized")
)

type peerRecord struct {
	beneficiary  common.Address
	contribution uint64
	active       bool
	registeredAt inter.Timestamp
	lastReported inter.Timestamp
}

type validatorRecord struct {
	id     idx.ValidatorID
	weight uint32
}

// Registry holds peers in registration order and the validator set.
type Registry struct {
	owner common.Address

	peers      map[inter.PeerID]*peerRecord
	order      []inter.PeerID
	tombstones map[inter.PeerID]struct{}
	total      uint64

	validators     map[common.Address]*validatorRecord
	validatorOrder []common.Address
	lastID         idx.ValidatorID

	log logrus.FieldLogger
}

// New returns an empty registry owned by owner.
func New(owner common.Address, log logrus.FieldLogger) *Registry {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Registry{
		owner:      owner,
		peers:      make(map[inter.PeerID]*peerRecord),
		tombstones: make(map[inter.PeerID]struct{}),
		validators: make(map[common.Address]*validatorRecord),
		log:        log.WithField("module", "registry"),
	}
}

// Owner returns the current registry owner.
func (r *Registry) Owner() common.Address {
	return r.owner
}

// TransferOwnership hands the owner role to newOwner.
func (r *Registry) TransferOwnership(caller, newOwner common.Address) error {
	if caller != r.owner {
		return ErrNotOwner
	}
	if newOwner == (common.Address{}) {
		return fmt.Errorf("%w: zero address", ErrNotOwner)
	}
	r.log.WithFields(logrus.Fields{"from": r.owner, "to": newOwner}).Info("Ownership transferred")
	r.owner = newOwner
	return nil
}

// ValidateRegister checks that id can be registered with contribution.
func (r *Registry) ValidateRegister(id inter.PeerID, contribution uint64) error {
	if contribution == 0 {
		return ErrInvalidContribution
	}
	if id.IsZero() {
		return ErrInvalidPeerID
	}
	if _, ok := r.peers[id]; ok {
		return ErrPeerExists
	}
	if _, ok := r.tombstones[id]; ok {
		return ErrPeerExists
	}
	if r.total+contribution < r.total {
		return fmt.Errorf("%w: total overflow", ErrInvalidContribution)
	}
	return nil
}

// Register creates an active peer whose beneficiary is caller.
func (r *Registry) Register(caller common.Address, id inter.PeerID, contribution uint64, now inter.Timestamp) error {
	if err := r.ValidateRegister(id, contribution); err != nil {
		return err
	}
	r.peers[id] = &peerRecord{
		beneficiary:  caller,
		contribution: contribution,
		active:       true,
		registeredAt: now,
	}
	r.order = append(r.order, id)
	r.total += contribution
	r.log.WithFields(logrus.Fields{"peer": id, "beneficiary": caller, "contribution": contribution}).Debug("Peer registered")
	return nil
}

// Authorize returns nil if caller is the beneficiary of the active peer id.
// Unknown and inactive peers are reported as ErrPeerNotAuthorized.
func (r *Registry) Authorize(caller common.Address, id inter.PeerID) error {
	p, ok := r.peers[id]
	if !ok || !p.active || p.beneficiary != caller {
		return ErrPeerNotAuthorized
	}
	return nil
}

// ValidateContribution checks a replacement contribution for id.
func (r *Registry) ValidateContribution(caller common.Address, id inter.PeerID, contribution uint64) error {
	if err := r.Authorize(caller, id); err != nil {
		return err
	}
	return r.validateAmount(id, contribution)
}

func (r *Registry) validateAmount(id inter.PeerID, contribution uint64) error {
	if contribution == 0 {
		return ErrInvalidContribution
	}
	rest := r.total - r.peers[id].contribution
	if rest+contribution < rest {
		return fmt.Errorf("%w: total overflow", ErrInvalidContribution)
	}
	return nil
}

// UpdateContribution replaces the contribution of id and adjusts the total.
// It returns the previous contribution.
func (r *Registry) UpdateContribution(caller common.Address, id inter.PeerID, contribution uint64) (uint64, error) {
	if err := r.ValidateContribution(caller, id, contribution); err != nil {
		return 0, err
	}
	return r.setContribution(id, contribution), nil
}

// SetAttestedContribution replaces the contribution of an active peer with a
// value accepted by validator consensus. Only the consensus service calls it.
func (r *Registry) SetAttestedContribution(id inter.PeerID, contribution uint64, now inter.Timestamp) (uint64, error) {
	p, ok := r.peers[id]
	if !ok || !p.active {
		return 0, ErrPeerNotActive
	}
	if err := r.validateAmount(id, contribution); err != nil {
		return 0, err
	}
	p.lastReported = now
	return r.setContribution(id, contribution), nil
}

func (r *Registry) setContribution(id inter.PeerID, contribution uint64) uint64 {
	p := r.peers[id]
	old := p.contribution
	r.total = r.total - old + contribution
	p.contribution = contribution
	return old
}

// UpdateBeneficiary moves the peer's payouts to a new address.
func (r *Registry) UpdateBeneficiary(caller common.Address, id inter.PeerID, beneficiary common.Address) error {
	if err := r.Authorize(caller, id); err != nil {
		return err
	}
	if beneficiary == (common.Address{}) {
		return fmt.Errorf("%w: zero beneficiary", ErrPeerNotAuthorized)
	}
	r.peers[id].beneficiary = beneficiary
	return nil
}

// Deactivate removes the peer's contribution from the total and marks it
// inactive. It returns the contribution the peer had.
func (r *Registry) Deactivate(caller common.Address, id inter.PeerID) (uint64, error) {
	if err := r.Authorize(caller, id); err != nil {
		return 0, err
	}
	p := r.peers[id]
	old := p.contribution
	r.total -= old
	p.contribution = 0
	p.active = false
	r.log.WithFields(logrus.Fields{"peer": id}).Debug("Peer deactivated")
	return old, nil
}

// ValidateUnregister checks that caller may remove the inactive peer id.
func (r *Registry) ValidateUnregister(caller common.Address, id inter.PeerID) error {
	p, ok := r.peers[id]
	if !ok || p.beneficiary != caller {
		return ErrPeerNotAuthorized
	}
	if p.active {
		return ErrPeerStillActive
	}
	return nil
}

// Unregister deletes an inactive peer. The id stays reserved forever.
func (r *Registry) Unregister(caller common.Address, id inter.PeerID) error {
	if err := r.ValidateUnregister(caller, id); err != nil {
		return err
	}
	delete(r.peers, id)
	r.tombstones[id] = struct{}{}
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// MarkReported records an accepted validator report for id.
func (r *Registry) MarkReported(id inter.PeerID, now inter.Timestamp) {
	if p, ok := r.peers[id]; ok {
		p.lastReported = now
	}
}

// Peer returns the registry fields of id. Ledger fields are left nil.
func (r *Registry) Peer(id inter.PeerID) (inter.Peer, bool) {
	p, ok := r.peers[id]
	if !ok {
		return inter.Peer{}, false
	}
	return inter.Peer{
		ID:           id,
		Beneficiary:  p.beneficiary,
		Contribution: p.contribution,
		Active:       p.active,
		RegisteredAt: p.registeredAt,
		LastReported: p.lastReported,
	}, true
}

// IsActive reports whether id is registered and active.
func (r *Registry) IsActive(id inter.PeerID) bool {
	p, ok := r.peers[id]
	return ok && p.active
}

// Contribution returns the current contribution of id (zero if unknown).
func (r *Registry) Contribution(id inter.PeerID) uint64 {
	if p, ok := r.peers[id]; ok {
		return p.contribution
	}
	return 0
}

// TotalContribution returns the sum of active contributions.
func (r *Registry) TotalContribution() uint64 {
	return r.total
}

// ActivePeers returns the number of active peers and their total contribution.
func (r *Registry) ActivePeers() (count int, total uint64) {
	for _, id := range r.order {
		if r.peers[id].active {
			count++
		}
	}
	return count, r.total
}

// ActivePeersRange pages through active peers in registration order.
func (r *Registry) ActivePeersRange(offset, limit int) ([]inter.PeerID, []uint64) {
	ids := []inter.PeerID{}
	contributions := []uint64{}
	if offset < 0 || limit <= 0 {
		return ids, contributions
	}
	seen := 0
	for _, id := range r.order {
		p := r.peers[id]
		if !p.active {
			continue
		}
		if seen >= offset {
			ids = append(ids, id)
			contributions = append(contributions, p.contribution)
			if len(ids) == limit {
				break
			}
		}
		seen++
	}
	return ids, contributions
}

// SetValidator adds or removes a validator. Owner only.
func (r *Registry) SetValidator(caller, addr common.Address, enabled bool) error {
	if caller != r.owner {
		return ErrNotOwner
	}
	if addr == (common.Address{}) {
		return ErrInvalidValidator
	}
	_, exists := r.validators[addr]
	switch {
	case enabled && !exists:
		r.lastID++
		r.validators[addr] = &validatorRecord{id: r.lastID, weight: 1}
		r.validatorOrder = append(r.validatorOrder, addr)
	case !enabled && exists:
		delete(r.validators, addr)
		for i, v := range r.validatorOrder {
			if v == addr {
				r.validatorOrder = append(r.validatorOrder[:i], r.validatorOrder[i+1:]...)
				break
			}
		}
	}
	r.log.WithFields(logrus.Fields{"validator": addr, "enabled": enabled}).Info("Validator updated")
	return nil
}

// SetValidatorWeight sets the stake weight used by batch attestations. Owner only.
func (r *Registry) SetValidatorWeight(caller, addr common.Address, weight uint32) error {
	if caller != r.owner {
		return ErrNotOwner
	}
	v, ok := r.validators[addr]
	if !ok || weight == 0 {
		return ErrInvalidValidator
	}
	v.weight = weight
	return nil
}

// IsValidator reports whether addr is a registered validator.
func (r *Registry) IsValidator(addr common.Address) bool {
	_, ok := r.validators[addr]
	return ok
}

// ValidatorCount returns the number of registered validators.
func (r *Registry) ValidatorCount() int {
	return len(r.validators)
}

// Validators returns validator addresses in registration order.
func (r *Registry) Validators() []common.Address {
	return append([]common.Address(nil), r.validatorOrder...)
}

// ValidatorID returns the stable consensus id assigned to addr.
func (r *Registry) ValidatorID(addr common.Address) (idx.ValidatorID, bool) {
	v, ok := r.validators[addr]
	if !ok {
		return 0, false
	}
	return v.id, true
}

// ValidatorSet builds the weighted validator set. With weighted=false every
// validator counts as 1, which gives count-based quorums.
func (r *Registry) ValidatorSet(weighted bool) *pos.Validators {
	builder := pos.NewBuilder()
	for _, addr := range r.validatorOrder {
		v := r.validators[addr]
		w := pos.Weight(1)
		if weighted {
			w = pos.Weight(v.weight)
		}
		builder.Set(v.id, w)
	}
	return builder.Build()
}
