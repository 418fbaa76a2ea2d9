// Package bridge models the cross-chain message transport the relay runs on.
//
// Every chain has one Endpoint. Sending charges a quoted native fee, assigns
// a per-path sequence number (starting at 1) and queues a Packet at the
// destination endpoint. Delivery is a separate step, driven by Flush or by
// the Run pump, and hands each packet to the Receiver registered for its
// destination address with the endpoint itself as the caller. Receiver
// errors are logged and counted; the transport never retries or reorders
// on its own.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-peerz/metrics"
)

var (
	ErrInsufficientFee = errors.New("not enough native for fees")
	ErrUnknownChain    = errors.New("unknown destination chain")
	ErrEndpointExists  = errors.New("endpoint already exists")
)

// Receiver is implemented by contracts that accept bridge messages.
type Receiver interface {
	OnMessage(ctx context.Context, caller common.Address, srcChain uint16, srcAddress []byte, nonce uint64, payload []byte) error
}

// Fees is the fee schedule of an endpoint: Base + PerByte * len(payload).
type Fees struct {
	Base    *big.Int
	PerByte *big.Int
}

// Packet is a message in flight.
type Packet struct {
	GUID     uuid.UUID
	SrcChain uint16
	Sender   common.Address
	DstChain uint16
	Receiver common.Address
	Nonce    uint64
	Payload  []byte
}

// Path returns the source address bytes the destination sees: the remote
// sender followed by the local receiver, 20 bytes each.
func (p Packet) Path() []byte {
	return PackPath(p.Sender, p.Receiver)
}

// PackPath concatenates remote and local addresses.
func PackPath(remote, local common.Address) []byte {
	out := make([]byte, 0, 2*common.AddressLength)
	out = append(out, remote.Bytes()...)
	return append(out, local.Bytes()...)
}

// Receipt describes an accepted send.
type Receipt struct {
	GUID   uuid.UUID
	Nonce  uint64
	Fee    *big.Int
	Refund *big.Int
}

type pathKey struct {
	sender   common.Address
	dstChain uint16
	receiver common.Address
}

// Endpoint is the bridge contract of one chain.
type Endpoint struct {
	mu sync.Mutex

	chain   uint16
	address common.Address
	fees    Fees
	network *Network

	nonces    map[pathKey]uint64
	inbound   []Packet
	receivers map[common.Address]Receiver
	refunds   map[common.Address]*big.Int
	collected *big.Int

	log logrus.FieldLogger
}

// ChainID returns the endpoint's bridge chain id.
func (e *Endpoint) ChainID() uint16 {
	return e.chain
}

// Address returns the endpoint's on-chain address, the caller receivers see.
func (e *Endpoint) Address() common.Address {
	return e.address
}

// QuoteFee returns the native fee for sending payload to dstChain.
func (e *Endpoint) QuoteFee(dstChain uint16, payload []byte) *big.Int {
	fee := new(big.Int).Mul(e.fees.PerByte, big.NewInt(int64(len(payload))))
	return fee.Add(fee, e.fees.Base)
}

// Send queues payload for receiver on dstChain. value pays the fee; the
// excess is credited to refund.
func (e *Endpoint) Send(ctx context.Context, sender common.Address, dstChain uint16, receiver common.Address, payload []byte, value *big.Int, refund common.Address) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	dst, ok := e.network.Endpoint(dstChain)
	if !ok {
		return Receipt{}, fmt.Errorf("%w: %d", ErrUnknownChain, dstChain)
	}
	fee := e.QuoteFee(dstChain, payload)
	if value == nil || value.Cmp(fee) < 0 {
		return Receipt{}, ErrInsufficientFee
	}

	e.mu.Lock()
	key := pathKey{sender: sender, dstChain: dstChain, receiver: receiver}
	e.nonces[key]++
	nonce := e.nonces[key]
	change := new(big.Int).Sub(value, fee)
	if change.Sign() > 0 {
		r, ok := e.refunds[refund]
		if !ok {
			r = new(big.Int)
			e.refunds[refund] = r
		}
		r.Add(r, change)
	}
	e.collected.Add(e.collected, fee)
	e.mu.Unlock()

	pkt := Packet{
		GUID:     uuid.New(),
		SrcChain: e.chain,
		Sender:   sender,
		DstChain: dstChain,
		Receiver: receiver,
		Nonce:    nonce,
		Payload:  common.CopyBytes(payload),
	}
	dst.enqueue(pkt)
	metrics.BridgePacketsTotal.WithLabelValues(chainLabel(e.chain), "sent").Inc()
	e.log.WithFields(logrus.Fields{"guid": pkt.GUID, "chain": dstChain, "nonce": nonce, "fee": fee}).Debug("Packet sent")

	return Receipt{GUID: pkt.GUID, Nonce: nonce, Fee: fee, Refund: change}, nil
}

// Register routes packets addressed to addr to r.
func (e *Endpoint) Register(addr common.Address, r Receiver) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.receivers[addr] = r
}

func (e *Endpoint) enqueue(pkt Packet) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inbound = append(e.inbound, pkt)
	metrics.BridgeQueueDepth.WithLabelValues(chainLabel(e.chain)).Set(float64(len(e.inbound)))
}

// Pending returns the number of packets waiting for delivery here.
func (e *Endpoint) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.inbound)
}

// Deliver hands every queued packet to its receiver and returns how many
// were handed over. Receivers run without the endpoint lock held, so they
// may send further packets.
func (e *Endpoint) Deliver(ctx context.Context) (int, error) {
	e.mu.Lock()
	batch := e.inbound
	e.inbound = nil
	e.mu.Unlock()

	delivered := 0
	for i, pkt := range batch {
		if err := ctx.Err(); err != nil {
			e.requeue(batch[i:])
			return delivered, err
		}
		e.mu.Lock()
		r, ok := e.receivers[pkt.Receiver]
		e.mu.Unlock()
		delivered++
		if !ok {
			e.log.WithFields(logrus.Fields{"guid": pkt.GUID, "receiver": pkt.Receiver}).Warn("No receiver for packet, dropping")
			metrics.BridgePacketsTotal.WithLabelValues(chainLabel(e.chain), "dropped").Inc()
			continue
		}
		if err := r.OnMessage(ctx, e.address, pkt.SrcChain, pkt.Path(), pkt.Nonce, pkt.Payload); err != nil {
			e.log.WithFields(logrus.Fields{"guid": pkt.GUID, "chain": pkt.SrcChain, "nonce": pkt.Nonce}).WithError(err).Warn("Receiver rejected packet")
			metrics.BridgePacketsTotal.WithLabelValues(chainLabel(e.chain), "rejected").Inc()
			continue
		}
		metrics.BridgePacketsTotal.WithLabelValues(chainLabel(e.chain), "delivered").Inc()
	}
	metrics.BridgeQueueDepth.WithLabelValues(chainLabel(e.chain)).Set(float64(e.Pending()))
	return delivered, nil
}

func (e *Endpoint) requeue(pkts []Packet) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inbound = append(append([]Packet(nil), pkts...), e.inbound...)
}

// Refunds returns the fee change credited to addr so far.
func (e *Endpoint) Refunds(addr common.Address) *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if r, ok := e.refunds[addr]; ok {
		return new(big.Int).Set(r)
	}
	return new(big.Int)
}

// Collected returns the total fees charged.
func (e *Endpoint) Collected() *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return new(big.Int).Set(e.collected)
}

func chainLabel(chain uint16) string {
	return strconv.Itoa(int(chain))
}
