package relay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-peerz/metrics"
)

var (
	ErrInvalidGateway       = errors.New("L1MR: invalid gateway")
	ErrNoStoredMessage      = errors.New("L1MR: no stored message")
	ErrInvalidSenderChain   = errors.New("L1MR: invalid sender chain ID")
	ErrInvalidSenderAddress = errors.New("L1MR: invalid sender address")
	ErrNotOwner             = errors.New("L1MR: caller is not the owner")
)

// Minter is the token side of the receiver.
type Minter interface {
	Mint(caller, to common.Address, amount *big.Int) error
}

// ReceiverConfig describes the receiver contract and its trusted source.
type ReceiverConfig struct {
	Address common.Address
	Owner   common.Address
	// Gateway is the bridge endpoint, the only caller of OnMessage.
	Gateway    common.Address
	SrcChain   uint16
	SrcAddress common.Address
}

// Receiver applies mint messages to the token.
type Receiver struct {
	mu sync.Mutex

	cfg   ReceiverConfig
	token Minter
	store *FailedStore

	log logrus.FieldLogger
}

// NewReceiver returns a receiver minting on token. The receiver must be the
// token's owner for mints to succeed.
func NewReceiver(cfg ReceiverConfig, token Minter, store *FailedStore, log logrus.FieldLogger) *Receiver {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Receiver{
		cfg:   cfg,
		token: token,
		store: store,
		log:   log.WithField("module", "relay-receiver"),
	}
}

// Address returns the receiver contract address.
func (r *Receiver) Address() common.Address {
	return r.cfg.Address
}

// SetTrustedSource replaces the source chain and sender accepted by RetryMessage.
func (r *Receiver) SetTrustedSource(caller common.Address, chain uint16, addr common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.cfg.Owner {
		return ErrNotOwner
	}
	r.cfg.SrcChain = chain
	r.cfg.SrcAddress = addr
	r.log.WithFields(logrus.Fields{"chain": chain, "address": addr}).Info("Trusted source updated")
	return nil
}

// OnMessage is called by the gateway for every delivered packet. Apply
// failures are recorded for retry and do not fail the delivery.
func (r *Receiver) OnMessage(ctx context.Context, caller common.Address, srcChain uint16, srcAddress []byte, nonce uint64, payload []byte) error {
	if caller != r.cfg.Gateway {
		return ErrInvalidGateway
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	log := r.log.WithFields(logrus.Fields{"chain": srcChain, "nonce": nonce})
	if err := r.apply(payload); err != nil {
		hash := crypto.Keccak256Hash(payload)
		if serr := r.store.Put(srcChain, srcAddress, nonce, hash); serr != nil {
			return fmt.Errorf("store failed message: %w", serr)
		}
		metrics.RelayMessagesTotal.WithLabelValues("receive", "failed").Inc()
		log.WithError(err).WithField("payload", hash).Warn("Message failed, stored for retry")
		return nil
	}
	metrics.RelayMessagesTotal.WithLabelValues("receive", "ok").Inc()
	log.Debug("Message applied")
	return nil
}

// RetryMessage replays a stored failed message. The payload must be the
// original one, and the message must come from the trusted source.
func (r *Receiver) RetryMessage(ctx context.Context, srcChain uint16, srcAddress []byte, nonce uint64, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, err := r.store.Get(srcChain, srcAddress, nonce)
	if err != nil {
		return err
	}
	if stored == (common.Hash{}) {
		return ErrNoStoredMessage
	}
	if crypto.Keccak256Hash(payload) != stored {
		return fmt.Errorf("L1MR: %w", ErrInvalidPayload)
	}
	if srcChain != r.cfg.SrcChain {
		return ErrInvalidSenderChain
	}
	if len(srcAddress) < common.AddressLength || !bytes.Equal(srcAddress[:common.AddressLength], r.cfg.SrcAddress.Bytes()) {
		return ErrInvalidSenderAddress
	}

	if err := r.store.Delete(srcChain, srcAddress, nonce); err != nil {
		return err
	}
	if err := r.apply(payload); err != nil {
		if serr := r.store.Put(srcChain, srcAddress, nonce, stored); serr != nil {
			return fmt.Errorf("restore failed message: %w", serr)
		}
		metrics.RelayMessagesTotal.WithLabelValues("retry", "failed").Inc()
		return err
	}
	metrics.RelayMessagesTotal.WithLabelValues("retry", "ok").Inc()
	r.log.WithFields(logrus.Fields{"chain": srcChain, "nonce": nonce}).Info("Message retried")
	return nil
}

// FailedMessage returns the stored payload hash, zero if there is none.
func (r *Receiver) FailedMessage(srcChain uint16, srcAddress []byte, nonce uint64) (common.Hash, error) {
	return r.store.Get(srcChain, srcAddress, nonce)
}

func (r *Receiver) apply(payload []byte) error {
	to, amount, err := DecodeMint(payload)
	if err != nil {
		return err
	}
	return r.token.Mint(r.cfg.Address, to, amount)
}
