// Package genesis defines the initial state of a deployment: who owns the
// registry, which validators are registered from the start, when reward
// emission begins and which rules apply.
//
// Usage:
//
//	g := genesis.FakeGenesis(3, time.Now())
//	d, err := integration.NewDeployment(integration.DeploymentConfig{Genesis: g})
//
// The launcher reads the genesis from its TOML config; keys are hex strings.
package genesis

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/rony4d/go-peerz/inter"
	"github.com/rony4d/go-peerz/protocol"
)

var (
	// ErrNoOwner is returned when the genesis has no registry owner.
	ErrNoOwner = errors.New("genesis: owner is not set")
	// ErrDuplicateValidator is returned when a validator address is listed twice.
	ErrDuplicateValidator = errors.New("genesis: duplicate validator")
)

// Validator is a validator registered at genesis.
type Validator struct {
	Address common.Address
	// Weight is the validator's stake weight for batch attestations. Zero means 1.
	Weight uint32
}

// Genesis is the initial state of a deployment.
type Genesis struct {
	Rules protocol.Rules
	// Owner controls validator membership and relay configuration.
	Owner common.Address
	// Time is the deployment instant. Rewards start at Time + Rules.Emission.StartDelay.
	Time inter.Timestamp
	// Validators registered from the start.
	Validators []Validator
}

// EpochStart returns the instant reward emission begins.
func (g Genesis) EpochStart() inter.Timestamp {
	return g.Time + g.Rules.Emission.StartDelay
}

// Validate checks rules, owner and validator uniqueness.
func (g Genesis) Validate() error {
	if err := g.Rules.Validate(); err != nil {
		return err
	}
	if g.Owner == (common.Address{}) {
		return ErrNoOwner
	}
	seen := make(map[common.Address]struct{}, len(g.Validators))
	for _, v := range g.Validators {
		if _, ok := seen[v.Address]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateValidator, v.Address)
		}
		seen[v.Address] = struct{}{}
	}
	return nil
}

// Copy returns a deep copy.
func (g Genesis) Copy() Genesis {
	cp := g
	cp.Rules = g.Rules.Copy()
	cp.Validators = append([]Validator(nil), g.Validators...)
	return cp
}

// FakeKey returns the deterministic private key of fake validator n (1-based).
// Fake keys are for local simulation only.
func FakeKey(n int) *ecdsa.PrivateKey {
	seed := new(big.Int).SetUint64(uint64(n) + 0x7a03_0000)
	key, err := crypto.ToECDSA(common.LeftPadBytes(seed.Bytes(), 32))
	if err != nil {
		panic(err)
	}
	return key
}

// FakeGenesis returns a fakenet genesis owned by fake key 0 with n fake
// validators (keys 1..n) deployed at t.
func FakeGenesis(n int, t time.Time) Genesis {
	g := Genesis{
		Rules: protocol.FakeNetRules(),
		Owner: crypto.PubkeyToAddress(FakeKey(0).PublicKey),
		Time:  inter.FromTime(t),
	}
	for i := 1; i <= n; i++ {
		g.Validators = append(g.Validators, Validator{
			Address: crypto.PubkeyToAddress(FakeKey(i).PublicKey),
			Weight:  1,
		})
	}
	return g
}
