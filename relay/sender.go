package relay

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-peerz/bridge"
	"github.com/rony4d/go-peerz/metrics"
)

var ErrInvalidSender = errors.New("L2S: invalid sender")

// SenderConfig addresses both ends of the mint path.
type SenderConfig struct {
	// Address is the sender contract on the incentive chain.
	Address common.Address
	// Authority is the only caller allowed to send mints.
	Authority common.Address
	DstChain  uint16
	// DstAddress is the receiver contract on the token chain.
	DstAddress common.Address
}

// Sender dispatches mint messages.
type Sender struct {
	cfg      SenderConfig
	endpoint *bridge.Endpoint
	log      logrus.FieldLogger
}

// NewSender returns a sender sending through endpoint.
func NewSender(cfg SenderConfig, endpoint *bridge.Endpoint, log logrus.FieldLogger) *Sender {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Sender{
		cfg:      cfg,
		endpoint: endpoint,
		log:      log.WithField("module", "relay-sender"),
	}
}

// Address returns the sender contract address.
func (s *Sender) Address() common.Address {
	return s.cfg.Address
}

// QuoteMint returns the native fee for minting amount to beneficiary.
func (s *Sender) QuoteMint(beneficiary common.Address, amount *big.Int) (*big.Int, error) {
	payload, err := EncodeMint(beneficiary, amount)
	if err != nil {
		return nil, err
	}
	return s.endpoint.QuoteFee(s.cfg.DstChain, payload), nil
}

// SendMint sends a mint of amount to beneficiary. value pays the bridge fee
// and any excess goes to refund.
func (s *Sender) SendMint(ctx context.Context, caller, beneficiary common.Address, amount *big.Int, refund common.Address, value *big.Int) (bridge.Receipt, error) {
	if caller != s.cfg.Authority {
		return bridge.Receipt{}, ErrInvalidSender
	}
	payload, err := EncodeMint(beneficiary, amount)
	if err != nil {
		return bridge.Receipt{}, err
	}
	receipt, err := s.endpoint.Send(ctx, s.cfg.Address, s.cfg.DstChain, s.cfg.DstAddress, payload, value, refund)
	if err != nil {
		metrics.RelayMessagesTotal.WithLabelValues("send", "error").Inc()
		return bridge.Receipt{}, fmt.Errorf("send mint: %w", err)
	}
	metrics.RelayMessagesTotal.WithLabelValues("send", "ok").Inc()
	s.log.WithFields(logrus.Fields{
		"beneficiary": beneficiary,
		"amount":      amount,
		"nonce":       receipt.Nonce,
		"guid":        receipt.GUID,
	}).Info("Mint message sent")
	return receipt, nil
}
