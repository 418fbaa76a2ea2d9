package attest

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-peerz/inter/validatorsig"
)

var (
	ErrUnknownToggle           = errors.New("unknown toggle")
	ErrAlreadyInState          = errors.New("toggle already in requested state")
	ErrSupermajorityNotReached = errors.New("not enough votes")
)

// BalanceSource weighs governance votes by token holdings.
type BalanceSource interface {
	BalanceOf(addr common.Address) *big.Int
	TotalSupply() *big.Int
}

type toggle struct {
	state    bool
	nonce    uint64
	onToggle func(bool)
}

// Governor flips named protocol switches once holders of more than
// thresholdPct of the token supply have signed the proposal. The threshold is
// independent of the validator report quorum.
type Governor struct {
	mu           sync.Mutex
	tokens       BalanceSource
	thresholdPct uint64
	toggles      map[string]*toggle
	log          logrus.FieldLogger
}

// NewGovernor returns a governor weighing votes with tokens.
func NewGovernor(tokens BalanceSource, thresholdPct uint64, log logrus.FieldLogger) *Governor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Governor{
		tokens:       tokens,
		thresholdPct: thresholdPct,
		toggles:      make(map[string]*toggle),
		log:          log.WithField("module", "governor"),
	}
}

// Register declares a toggle with its initial state. onToggle runs after
// every accepted flip, while the governor lock is held.
func (g *Governor) Register(name string, initial bool, onToggle func(bool)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.toggles[name] = &toggle{state: initial, onToggle: onToggle}
}

// State returns the current value of the toggle.
func (g *Governor) State(name string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	t, ok := g.toggles[name]
	if !ok {
		return false, ErrUnknownToggle
	}
	return t.state, nil
}

// ProposalHash returns the hash holders must sign to move name to target.
// It changes after every accepted flip, so votes cannot be replayed.
func (g *Governor) ProposalHash(name string, target bool) (common.Hash, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	t, ok := g.toggles[name]
	if !ok {
		return common.Hash{}, ErrUnknownToggle
	}
	return ToggleHash(name, target, t.nonce), nil
}

// Toggle moves name to target when the distinct, correctly signing voters
// hold strictly more than the threshold share of total supply. Requesting
// the state the toggle is already in fails.
func (g *Governor) Toggle(name string, target bool, sigs []validatorsig.Signature, voters []common.Address) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	t, ok := g.toggles[name]
	if !ok {
		return ErrUnknownToggle
	}
	if t.state == target {
		return fmt.Errorf("%w: %s=%v", ErrAlreadyInState, name, target)
	}
	if len(sigs) != len(voters) {
		return ErrSignatureCountMismatch
	}

	hash := ToggleHash(name, target, t.nonce)
	seen := make(map[common.Address]struct{}, len(voters))
	weight := new(big.Int)
	for i, sig := range sigs {
		signer, err := Recover(hash, sig)
		if err != nil || signer != voters[i] {
			continue
		}
		if _, dup := seen[signer]; dup {
			continue
		}
		seen[signer] = struct{}{}
		weight.Add(weight, g.tokens.BalanceOf(signer))
	}

	supply := g.tokens.TotalSupply()
	// weight * 100 > supply * thresholdPct
	lhs := new(big.Int).Mul(weight, big.NewInt(100))
	rhs := new(big.Int).Mul(supply, new(big.Int).SetUint64(g.thresholdPct))
	if supply.Sign() == 0 || lhs.Cmp(rhs) <= 0 {
		return ErrSupermajorityNotReached
	}

	t.state = target
	t.nonce++
	if t.onToggle != nil {
		t.onToggle(target)
	}
	g.log.WithFields(logrus.Fields{"toggle": name, "state": target, "weight": weight, "supply": supply}).Info("Governance toggle applied")
	return nil
}
