// Package protocol defines the consensus-critical parameters of a peerz
// deployment.
//
// This package provides:
//   - Network identification constants (MainNet, TestNet, FakeNet)
//   - Emission rules (cap and curve shape)
//   - Attestation rules (report quorum, batch quorum, governance threshold)
//   - Reward split between peers and validators
//   - Bridge rules (chain ids and fee schedule)
//
// The Rules type is the single configuration structure every component is
// constructed from, so two nodes running the same Rules compute the same
// balances.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/rony4d/go-peerz/emission"
	"github.com/rony4d/go-peerz/inter"
)

// Network identification constants
const (
	// MainNetworkID identifies the production deployment.
	MainNetworkID uint64 = 0x7a01
	// TestNetworkID identifies the public test deployment.
	TestNetworkID uint64 = 0x7a02
	// FakeNetworkID identifies local and simulated deployments.
	FakeNetworkID uint64 = 0x7a03

	// BpsDenominator is the denominator of basis-point shares.
	BpsDenominator uint64 = 10_000
)

// Bridge chain ids, in the message-bridge numbering rather than EVM chain ids.
const (
	EthereumChainID   uint16 = 101
	ArbitrumChainID   uint16 = 110
	SepoliaChainID    uint16 = 10161
	ArbSepoliaChainID uint16 = 10231
	FakeL1ChainID     uint16 = 1
	FakeL2ChainID     uint16 = 2
)

// ErrInvalidRules is wrapped by every Validate failure.
var ErrInvalidRules = errors.New("invalid rules")

// Fraction is a quorum threshold Num/Den. A weight w out of total T meets it
// when w*Den >= T*Num.
type Fraction struct {
	Num uint64
	Den uint64
}

// Met reports whether weight reaches the fraction of total.
func (f Fraction) Met(weight, total uint64) bool {
	if total == 0 || f.Den == 0 {
		return false
	}
	lhs := new(big.Int).Mul(new(big.Int).SetUint64(weight), new(big.Int).SetUint64(f.Den))
	rhs := new(big.Int).Mul(new(big.Int).SetUint64(total), new(big.Int).SetUint64(f.Num))
	return lhs.Cmp(rhs) >= 0
}

// String renders the fraction as "num/den".
func (f Fraction) String() string {
	return fmt.Sprintf("%d/%d", f.Num, f.Den)
}

// EmissionRules fixes the reward supply curve.
type EmissionRules struct {
	// Cap is the maximum token supply, in the token's smallest unit.
	Cap *big.Int
	// Curve is the shape of the halving schedule.
	Curve emission.Params
	// StartDelay is how long after genesis rewards begin to accrue.
	StartDelay inter.Timestamp
}

// AttestationRules governs how validator signatures become accepted facts.
type AttestationRules struct {
	// ReportQuorum is the count-based fraction of registered validators
	// needed to accept a single-peer report.
	ReportQuorum Fraction
	// BatchQuorum is the stake-weighted fraction needed to accept a
	// network-state batch.
	BatchQuorum Fraction
	// GovernanceThresholdPct is the share of token supply a toggle vote must
	// strictly exceed. Independent of the validator quorums.
	GovernanceThresholdPct uint64
	// ValidatorShareBps is the share of newly emitted reward reserved for
	// validators while at least one validator is registered.
	ValidatorShareBps uint64
}

// BridgeRules describes the two ends of the reward bridge.
type BridgeRules struct {
	// L2ChainID hosts the consensus contract that accrues rewards.
	L2ChainID uint16
	// L1ChainID hosts the reward token and the message receiver.
	L1ChainID uint16
	// BaseFee is charged per message.
	BaseFee *big.Int
	// PerByteFee is charged per payload byte.
	PerByteFee *big.Int
}

// Rules describes the complete configuration of a deployment.
//
// Note: Rules contains *big.Int fields; use Copy before mutating a shared value.
type Rules struct {
	Name      string
	NetworkID uint64

	Emission    EmissionRules
	Attestation AttestationRules
	Bridge      BridgeRules
}

// MainNetRules returns the production configuration: 10M token cap, 2/3
// report quorum, 66% governance threshold, 10% of emission to validators
// and an Arbitrum to Ethereum bridge.
func MainNetRules() Rules {
	return Rules{
		Name:        "main",
		NetworkID:   MainNetworkID,
		Emission:    DefaultEmissionRules(),
		Attestation: DefaultAttestationRules(),
		Bridge: BridgeRules{
			L2ChainID:  ArbitrumChainID,
			L1ChainID:  EthereumChainID,
			BaseFee:    big.NewInt(2e14), // 0.0002 native
			PerByteFee: big.NewInt(1e10),
		},
	}
}

// TestNetRules mirrors mainnet economics on the public test chains.
func TestNetRules() Rules {
	r := MainNetRules()
	r.Name = "test"
	r.NetworkID = TestNetworkID
	r.Bridge.L2ChainID = ArbSepoliaChainID
	r.Bridge.L1ChainID = SepoliaChainID
	r.Bridge.BaseFee = big.NewInt(1e12)
	r.Bridge.PerByteFee = big.NewInt(1e6)
	return r
}

// FakeNetRules returns parameters for local simulation: rewards start
// immediately and bridge fees are nominal.
func FakeNetRules() Rules {
	r := MainNetRules()
	r.Name = "fake"
	r.NetworkID = FakeNetworkID
	r.Emission.StartDelay = 0
	r.Bridge = BridgeRules{
		L2ChainID:  FakeL2ChainID,
		L1ChainID:  FakeL1ChainID,
		BaseFee:    big.NewInt(1_000),
		PerByteFee: big.NewInt(1),
	}
	return r
}

// DefaultEmissionRules returns the deployed supply curve.
func DefaultEmissionRules() EmissionRules {
	return EmissionRules{
		Cap:        new(big.Int).Mul(big.NewInt(10_000_000), big.NewInt(1e18)),
		Curve:      emission.DefaultParams(),
		StartDelay: inter.Day / 2,
	}
}

// DefaultAttestationRules returns the deployed quorum settings.
func DefaultAttestationRules() AttestationRules {
	return AttestationRules{
		ReportQuorum:           Fraction{Num: 2, Den: 3},
		BatchQuorum:            Fraction{Num: 2, Den: 3},
		GovernanceThresholdPct: 66,
		ValidatorShareBps:      1_000,
	}
}

// Schedule binds the emission rules to a concrete start time.
func (r Rules) Schedule(epochStart inter.Timestamp) emission.Schedule {
	return emission.Schedule{
		Cap:        new(big.Int).Set(r.Emission.Cap),
		EpochStart: epochStart,
		Params:     r.Emission.Curve,
	}
}

// Validate checks internal consistency.
func (r Rules) Validate() error {
	if r.Emission.Cap == nil || r.Emission.Cap.Sign() <= 0 {
		return fmt.Errorf("%w: cap must be positive", ErrInvalidRules)
	}
	if err := r.Emission.Curve.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}
	for name, q := range map[string]Fraction{"report": r.Attestation.ReportQuorum, "batch": r.Attestation.BatchQuorum} {
		if q.Den == 0 || q.Num == 0 || q.Num > q.Den {
			return fmt.Errorf("%w: %s quorum %s", ErrInvalidRules, name, q)
		}
	}
	if r.Attestation.GovernanceThresholdPct == 0 || r.Attestation.GovernanceThresholdPct >= 100 {
		return fmt.Errorf("%w: governance threshold %d%%", ErrInvalidRules, r.Attestation.GovernanceThresholdPct)
	}
	if r.Attestation.ValidatorShareBps > BpsDenominator {
		return fmt.Errorf("%w: validator share %d bps", ErrInvalidRules, r.Attestation.ValidatorShareBps)
	}
	if r.Bridge.L1ChainID == r.Bridge.L2ChainID {
		return fmt.Errorf("%w: bridge chains must differ", ErrInvalidRules)
	}
	if r.Bridge.BaseFee == nil || r.Bridge.PerByteFee == nil || r.Bridge.BaseFee.Sign() < 0 || r.Bridge.PerByteFee.Sign() < 0 {
		return fmt.Errorf("%w: bridge fees", ErrInvalidRules)
	}
	return nil
}

// Copy creates a deep copy of Rules so callers can mutate the big.Int fields.
func (r Rules) Copy() Rules {
	cp := r
	cp.Emission.Cap = copyBig(r.Emission.Cap)
	cp.Bridge.BaseFee = copyBig(r.Bridge.BaseFee)
	cp.Bridge.PerByteFee = copyBig(r.Bridge.PerByteFee)
	return cp
}

// String returns a JSON representation of Rules for logging.
func (r Rules) String() string {
	b, _ := json.Marshal(&r)
	return string(b)
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
