package ledger

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-peerz/emission"
	"github.com/rony4d/go-peerz/inter"
)

// ErrNegativeAmount is returned when refunding a negative amount.
var ErrNegativeAmount = errors.New("negative amount")

type account struct {
	rewardDebt    *big.Int
	accruedReward *big.Int
}

// Ledger owns the global distribution state, every peer's reward debt and
// accrued reward, and the per-validator reward pools.
//
// A Ledger is not safe for concurrent use; the owning service serializes access.
type Ledger struct {
	schedule emission.Schedule
	shareBps uint64

	state    State
	accounts map[inter.PeerID]*account
	pools    map[common.Address]*big.Int

	log logrus.FieldLogger
}

// New returns a ledger following schedule. shareBps of every settlement is
// set aside for validators while at least one validator is registered.
func New(schedule emission.Schedule, shareBps uint64, log logrus.FieldLogger) *Ledger {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Ledger{
		schedule: schedule,
		shareBps: shareBps,
		state:    newState(schedule.Cap, schedule.EpochStart),
		accounts: make(map[inter.PeerID]*account),
		pools:    make(map[common.Address]*big.Int),
		log:      log.WithField("module", "ledger"),
	}
}

// Schedule returns the emission schedule the ledger follows.
func (l *Ledger) Schedule() emission.Schedule {
	return l.schedule
}

// State returns a copy of the global distribution state.
func (l *Ledger) State() State {
	return l.state.Copy()
}

// Settle brings the accumulator up to now, distributing over total and
// reserving the validator share when validators > 0. It returns the amount
// newly emitted. A now at or before LastUpdate is a no-op.
func (l *Ledger) Settle(now inter.Timestamp, total uint64, validators int) *big.Int {
	if now <= l.state.LastUpdate {
		return new(big.Int)
	}
	peerPart, validatorPart, newly := l.split(l.state.LastUpdate, now, validators)
	l.state.LastUpdate = now
	l.state.TotalContribution = total
	l.state.Emitted.Add(l.state.Emitted, newly)
	l.state.PendingValidatorReward.Add(l.state.PendingValidatorReward, validatorPart)
	if total > 0 {
		l.state.RewardPerContribution.Add(l.state.RewardPerContribution, perContribution(peerPart, total))
	} else {
		l.state.Undistributed.Add(l.state.Undistributed, peerPart)
	}
	if newly.Sign() > 0 {
		l.log.WithFields(logrus.Fields{"now": now, "amount": newly, "total": total}).Trace("Settled")
	}
	return newly
}

// split divides the emission of [from, to) into the peer and validator parts.
func (l *Ledger) split(from, to inter.Timestamp, validators int) (peerPart, validatorPart, newly *big.Int) {
	newly = l.schedule.Emitted(from, to)
	validatorPart = new(big.Int)
	if validators > 0 && l.shareBps > 0 {
		validatorPart.Mul(newly, new(big.Int).SetUint64(l.shareBps))
		validatorPart.Quo(validatorPart, big.NewInt(10_000))
	}
	peerPart = new(big.Int).Sub(newly, validatorPart)
	return peerPart, validatorPart, newly
}

func perContribution(amount *big.Int, total uint64) *big.Int {
	v := new(big.Int).Mul(amount, Precision)
	return v.Quo(v, new(big.Int).SetUint64(total))
}

// accumulatorAt returns the accumulator a settlement at now would produce,
// without mutating state.
func (l *Ledger) accumulatorAt(now inter.Timestamp, total uint64, validators int) *big.Int {
	acc := new(big.Int).Set(l.state.RewardPerContribution)
	if now <= l.state.LastUpdate || total == 0 {
		return acc
	}
	peerPart, _, _ := l.split(l.state.LastUpdate, now, validators)
	return acc.Add(acc, perContribution(peerPart, total))
}

func (l *Ledger) account(id inter.PeerID) *account {
	a, ok := l.accounts[id]
	if !ok {
		a = &account{
			rewardDebt:    new(big.Int).Set(l.state.RewardPerContribution),
			accruedReward: new(big.Int),
		}
		l.accounts[id] = a
	}
	return a
}

func pending(contribution uint64, acc, debt *big.Int) *big.Int {
	v := new(big.Int).Sub(acc, debt)
	v.Mul(v, new(big.Int).SetUint64(contribution))
	return v.Quo(v, Precision)
}

// Earned returns what id could claim if the ledger were settled at now with
// the given totals. contribution is the peer's current contribution.
func (l *Ledger) Earned(id inter.PeerID, contribution uint64, now inter.Timestamp, total uint64, validators int) *big.Int {
	acc := l.accumulatorAt(now, total, validators)
	a, ok := l.accounts[id]
	if !ok {
		return new(big.Int)
	}
	earned := pending(contribution, acc, a.rewardDebt)
	return earned.Add(earned, a.accruedReward)
}

// Checkpoint moves the reward id earned with contribution since its last
// checkpoint into its accrued reward and snapshots the accumulator. Call it
// after Settle and before the contribution changes. A first checkpoint with
// zero contribution opens the account.
func (l *Ledger) Checkpoint(id inter.PeerID, contribution uint64) {
	a := l.account(id)
	a.accruedReward.Add(a.accruedReward, pending(contribution, l.state.RewardPerContribution, a.rewardDebt))
	a.rewardDebt.Set(l.state.RewardPerContribution)
}

// Accrued returns the materialized reward of id.
func (l *Ledger) Accrued(id inter.PeerID) *big.Int {
	if a, ok := l.accounts[id]; ok {
		return new(big.Int).Set(a.accruedReward)
	}
	return new(big.Int)
}

// Account returns the reward debt and accrued reward of id.
func (l *Ledger) Account(id inter.PeerID) (rewardDebt, accrued *big.Int, ok bool) {
	a, ok := l.accounts[id]
	if !ok {
		return nil, nil, false
	}
	return new(big.Int).Set(a.rewardDebt), new(big.Int).Set(a.accruedReward), true
}

// Forget drops the account of an unregistered peer.
func (l *Ledger) Forget(id inter.PeerID) {
	delete(l.accounts, id)
}

// CreditValidators splits the pending validator reward among signers
// pro-rata to weights. Truncation dust stays pending. It returns the amount
// credited.
func (l *Ledger) CreditValidators(signers []common.Address, weights []uint64) *big.Int {
	credited := new(big.Int)
	pot := l.state.PendingValidatorReward
	if pot.Sign() == 0 || len(signers) == 0 || len(signers) != len(weights) {
		return credited
	}
	var totalWeight uint64
	for _, w := range weights {
		totalWeight += w
	}
	if totalWeight == 0 {
		return credited
	}
	tw := new(big.Int).SetUint64(totalWeight)
	for i, addr := range signers {
		share := new(big.Int).Mul(pot, new(big.Int).SetUint64(weights[i]))
		share.Quo(share, tw)
		if share.Sign() == 0 {
			continue
		}
		pool, ok := l.pools[addr]
		if !ok {
			pool = new(big.Int)
			l.pools[addr] = pool
		}
		pool.Add(pool, share)
		credited.Add(credited, share)
	}
	pot.Sub(pot, credited)
	return credited
}

// ValidatorReward returns the claimable pool of addr.
func (l *Ledger) ValidatorReward(addr common.Address) *big.Int {
	if p, ok := l.pools[addr]; ok {
		return new(big.Int).Set(p)
	}
	return new(big.Int)
}

// CommitClaim checkpoints id and zeroes its accrued reward, returning the
// amount debited. The caller must have settled first.
func (l *Ledger) CommitClaim(id inter.PeerID, contribution uint64) *big.Int {
	l.Checkpoint(id, contribution)
	a := l.accounts[id]
	amount := new(big.Int).Set(a.accruedReward)
	a.accruedReward.SetUint64(0)
	return amount
}

// CommitValidatorClaim zeroes the pool of addr and returns it.
func (l *Ledger) CommitValidatorClaim(addr common.Address) *big.Int {
	p, ok := l.pools[addr]
	if !ok {
		return new(big.Int)
	}
	amount := new(big.Int).Set(p)
	p.SetUint64(0)
	return amount
}

// Refund restores a committed peer claim that could not be dispatched.
func (l *Ledger) Refund(id inter.PeerID, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	a := l.account(id)
	a.accruedReward.Add(a.accruedReward, amount)
	return nil
}

// RefundValidator restores a committed validator claim.
func (l *Ledger) RefundValidator(addr common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	p, ok := l.pools[addr]
	if !ok {
		p = new(big.Int)
		l.pools[addr] = p
	}
	p.Add(p, amount)
	return nil
}
