package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-peerz/attest"
	"github.com/rony4d/go-peerz/bridge"
	"github.com/rony4d/go-peerz/consensus"
	"github.com/rony4d/go-peerz/protocol/genesis"
	"github.com/rony4d/go-peerz/relay"
	"github.com/rony4d/go-peerz/token"
)

// TransfersToggle is the governance switch that enables token transfers.
const TransfersToggle = "transfers"

// Token metadata.
const (
	TokenName   = "Peerz"
	TokenSymbol = "PRZ"
)

// Addresses are the contract addresses of a deployment.
type Addresses struct {
	Consensus  common.Address
	Sender     common.Address
	L2Endpoint common.Address
	L1Endpoint common.Address
	Token      common.Address
	Receiver   common.Address
}

// DeployedAddresses derives contract addresses the way the owner's first
// deployment transactions would create them.
func DeployedAddresses(owner common.Address) Addresses {
	return Addresses{
		L2Endpoint: crypto.CreateAddress(owner, 0),
		Consensus:  crypto.CreateAddress(owner, 1),
		Sender:     crypto.CreateAddress(owner, 2),
		L1Endpoint: crypto.CreateAddress(owner, 3),
		Token:      crypto.CreateAddress(owner, 4),
		Receiver:   crypto.CreateAddress(owner, 5),
	}
}

// DeploymentConfig is the input of NewDeployment.
type DeploymentConfig struct {
	Genesis genesis.Genesis
	// Clock defaults to the real clock.
	Clock clockwork.Clock
	// Store keeps failed relay messages. Defaults to an in-memory store.
	Store *relay.FailedStore
	Log   logrus.FieldLogger
}

// Deployment is a complete two-chain deployment running in process.
type Deployment struct {
	Addresses Addresses

	Network    *bridge.Network
	L2Endpoint *bridge.Endpoint
	L1Endpoint *bridge.Endpoint

	Consensus *consensus.Service
	Sender    *relay.Sender

	Token    *token.Token
	Receiver *relay.Receiver
	Governor *attest.Governor
	Store    *relay.FailedStore

	clock clockwork.Clock
	log   logrus.FieldLogger
}

// NewDeployment builds and wires every component of cfg.Genesis.
func NewDeployment(cfg DeploymentConfig) (*Deployment, error) {
	g := cfg.Genesis
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Store == nil {
		cfg.Store = relay.NewMemoryFailedStore()
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	rules := g.Rules
	addrs := DeployedAddresses(g.Owner)
	d := &Deployment{
		Addresses: addrs,
		Network:   bridge.NewNetwork(cfg.Log),
		Store:     cfg.Store,
		clock:     cfg.Clock,
		log:       cfg.Log.WithField("module", "deployment"),
	}

	fees := bridge.Fees{Base: rules.Bridge.BaseFee, PerByte: rules.Bridge.PerByteFee}
	var err error
	if d.L2Endpoint, err = d.Network.NewEndpoint(rules.Bridge.L2ChainID, addrs.L2Endpoint, fees); err != nil {
		return nil, err
	}
	if d.L1Endpoint, err = d.Network.NewEndpoint(rules.Bridge.L1ChainID, addrs.L1Endpoint, fees); err != nil {
		return nil, err
	}

	// incentive chain
	d.Sender = relay.NewSender(relay.SenderConfig{
		Address:    addrs.Sender,
		Authority:  addrs.Consensus,
		DstChain:   rules.Bridge.L1ChainID,
		DstAddress: addrs.Receiver,
	}, d.L2Endpoint, cfg.Log)
	d.Consensus, err = consensus.New(consensus.Config{
		Address:    addrs.Consensus,
		Owner:      g.Owner,
		Rules:      rules,
		EpochStart: g.EpochStart(),
	}, cfg.Clock, d.Sender, cfg.Log)
	if err != nil {
		return nil, err
	}
	for _, v := range g.Validators {
		if err := d.Consensus.SetValidator(g.Owner, v.Address, true); err != nil {
			return nil, fmt.Errorf("genesis validator %s: %w", v.Address, err)
		}
		if v.Weight > 1 {
			if err := d.Consensus.SetValidatorWeight(g.Owner, v.Address, v.Weight); err != nil {
				return nil, fmt.Errorf("genesis validator %s: %w", v.Address, err)
			}
		}
	}

	// token chain
	d.Token = token.New(TokenName, TokenSymbol, rules.Emission.Cap, g.Owner, cfg.Log)
	if err := d.Token.TransferOwnership(g.Owner, addrs.Receiver); err != nil {
		return nil, err
	}
	d.Receiver = relay.NewReceiver(relay.ReceiverConfig{
		Address:    addrs.Receiver,
		Owner:      g.Owner,
		Gateway:    addrs.L1Endpoint,
		SrcChain:   rules.Bridge.L2ChainID,
		SrcAddress: addrs.Sender,
	}, d.Token, cfg.Store, cfg.Log)
	d.L1Endpoint.Register(addrs.Receiver, d.Receiver)

	d.Governor = attest.NewGovernor(d.Token, rules.Attestation.GovernanceThresholdPct, cfg.Log)
	d.Governor.Register(TransfersToggle, false, d.Token.SetTransfersEnabled)

	d.log.WithFields(logrus.Fields{
		"network":    rules.Name,
		"validators": len(g.Validators),
		"epoch":      g.EpochStart().Time(),
	}).Info("Deployment ready")
	return d, nil
}

// Clock returns the deployment clock.
func (d *Deployment) Clock() clockwork.Clock {
	return d.clock
}

// RelayPath is the source path the receiver sees for mint messages.
func (d *Deployment) RelayPath() []byte {
	return bridge.PackPath(d.Addresses.Sender, d.Addresses.Receiver)
}

// Flush delivers every queued packet now.
func (d *Deployment) Flush(ctx context.Context) (int, error) {
	return d.Network.Flush(ctx)
}

// Pump delivers queued packets every interval until ctx is cancelled.
func (d *Deployment) Pump(ctx context.Context, interval time.Duration) error {
	return d.Network.Run(ctx, d.clock, interval)
}
