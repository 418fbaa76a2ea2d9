package bridge

import (
	"context"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// Network connects the endpoints of every chain in a deployment.
type Network struct {
	mu        sync.RWMutex
	endpoints map[uint16]*Endpoint
	log       logrus.FieldLogger
}

// NewNetwork returns an empty network.
func NewNetwork(log logrus.FieldLogger) *Network {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Network{
		endpoints: make(map[uint16]*Endpoint),
		log:       log.WithField("module", "bridge"),
	}
}

// NewEndpoint creates and attaches the endpoint of chain.
func (n *Network) NewEndpoint(chain uint16, address common.Address, fees Fees) (*Endpoint, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.endpoints[chain]; ok {
		return nil, ErrEndpointExists
	}
	if fees.Base == nil {
		fees.Base = new(big.Int)
	}
	if fees.PerByte == nil {
		fees.PerByte = new(big.Int)
	}
	e := &Endpoint{
		chain:     chain,
		address:   address,
		fees:      Fees{Base: new(big.Int).Set(fees.Base), PerByte: new(big.Int).Set(fees.PerByte)},
		network:   n,
		nonces:    make(map[pathKey]uint64),
		receivers: make(map[common.Address]Receiver),
		refunds:   make(map[common.Address]*big.Int),
		collected: new(big.Int),
		log:       n.log.WithField("chain", chain),
	}
	n.endpoints[chain] = e
	return e, nil
}

// Endpoint looks up the endpoint of chain.
func (n *Network) Endpoint(chain uint16) (*Endpoint, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	e, ok := n.endpoints[chain]
	return e, ok
}

func (n *Network) sorted() []*Endpoint {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]*Endpoint, 0, len(n.endpoints))
	for _, e := range n.endpoints {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].chain < out[j].chain })
	return out
}

// Flush delivers until every queue is empty, including packets sent by
// receivers during delivery. It returns the number of packets delivered.
func (n *Network) Flush(ctx context.Context) (int, error) {
	total := 0
	for {
		round := 0
		for _, e := range n.sorted() {
			d, err := e.Deliver(ctx)
			round += d
			if err != nil {
				return total + round, err
			}
		}
		total += round
		if round == 0 {
			return total, nil
		}
	}
}

// Run flushes the network every interval until ctx is cancelled.
func (n *Network) Run(ctx context.Context, clock clockwork.Clock, interval time.Duration) error {
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			if d, err := n.Flush(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			} else if d > 0 {
				n.log.WithField("packets", d).Debug("Delivered packets")
			}
		}
	}
}
