package launcher

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gopkg.in/urfave/cli.v1"

	"github.com/rony4d/go-peerz/attest"
	"github.com/rony4d/go-peerz/consensus"
	"github.com/rony4d/go-peerz/integration"
	"github.com/rony4d/go-peerz/inter"
	"github.com/rony4d/go-peerz/inter/validatorsig"
	"github.com/rony4d/go-peerz/metrics"
	"github.com/rony4d/go-peerz/protocol/genesis"
	"github.com/rony4d/go-peerz/relay"
)

// batchEvery is the number of rounds between network-state batches.
const batchEvery = 7

type simPeer struct {
	id   inter.PeerID
	key  *ecdsa.PrivateKey
	addr common.Address
}

// Simulation drives a deployment on a fake clock: peers register, validators
// report them every step, everyone claims and the bridge is flushed.
type Simulation struct {
	cfg        SimulationConfig
	d          *integration.Deployment
	clock      *clockwork.FakeClock
	validators []*ecdsa.PrivateKey
	peers      []simPeer
	log        logrus.FieldLogger
}

// SimulationResult summarizes a finished run.
type SimulationResult struct {
	Rounds  int
	Claims  int
	Emitted *big.Int
	Minted  *big.Int
	Failed  int
}

// NewSimulation deploys preset with sim.Validators fake validators and
// registers sim.Peers peers.
func NewSimulation(preset integration.PresetConfig, sim SimulationConfig, store *relay.FailedStore, log logrus.FieldLogger) (*Simulation, error) {
	if sim.Peers <= 0 || sim.Validators <= 0 || sim.Days <= 0 || sim.Step < time.Second {
		return nil, fmt.Errorf("invalid simulation size: %d peers, %d validators, %d days, step %v", sim.Peers, sim.Validators, sim.Days, sim.Step)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	start := time.Now().UTC().Truncate(time.Second)
	clock := clockwork.NewFakeClockAt(start)

	g := genesis.FakeGenesis(sim.Validators, start)
	g.Rules = preset.Rules.Copy()
	d, err := integration.NewDeployment(integration.DeploymentConfig{
		Genesis: g,
		Clock:   clock,
		Store:   store,
		Log:     log,
	})
	if err != nil {
		return nil, err
	}

	s := &Simulation{
		cfg:   sim,
		d:     d,
		clock: clock,
		log:   log.WithField("module", "simulation"),
	}
	for i := 1; i <= sim.Validators; i++ {
		s.validators = append(s.validators, genesis.FakeKey(i))
	}
	for i := 0; i < sim.Peers; i++ {
		key := genesis.FakeKey(1000 + i)
		p := simPeer{
			id:   inter.PeerIDFromString("sim-peer-" + strconv.Itoa(i)),
			key:  key,
			addr: crypto.PubkeyToAddress(key.PublicKey),
		}
		if err := d.Consensus.RegisterPeer(p.addr, p.id, uint64(100*(i+1))); err != nil {
			return nil, err
		}
		s.peers = append(s.peers, p)
	}
	return s, nil
}

// Deployment returns the simulated deployment.
func (s *Simulation) Deployment() *integration.Deployment {
	return s.d
}

// Run advances the clock step by step until the configured number of days
// has passed. At the end token holders vote transfers on.
func (s *Simulation) Run(ctx context.Context) (SimulationResult, error) {
	res := SimulationResult{}
	begin := s.d.Consensus.EpochStart()
	end := s.clock.Now().Add(time.Duration(s.cfg.Days) * 24 * time.Hour)

	for s.clock.Now().Before(end) {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		s.clock.Advance(s.cfg.Step)
		res.Rounds++

		if res.Rounds%batchEvery == 0 {
			if err := s.validateBatch(ctx); err != nil {
				return res, err
			}
		}
		for _, p := range s.peers {
			if err := s.report(ctx, p.id); err != nil {
				return res, err
			}
		}
		claims, err := s.claimAll(ctx)
		if err != nil {
			return res, err
		}
		res.Claims += claims
		if _, err := s.d.Flush(ctx); err != nil {
			return res, err
		}
	}

	if err := s.enableTransfers(); err != nil {
		return res, err
	}

	res.Emitted = s.d.Consensus.Emitted(begin, inter.FromTime(s.clock.Now()))
	res.Minted = s.d.Token.TotalSupply()
	if err := s.d.Store.ForEach(func(relay.FailedRecord) error {
		res.Failed++
		return nil
	}); err != nil {
		return res, err
	}
	for _, p := range s.peers {
		s.log.WithFields(logrus.Fields{"peer": p.id, "beneficiary": p.addr, "balance": s.d.Token.BalanceOf(p.addr)}).Info("Peer balance")
	}
	s.log.WithFields(logrus.Fields{
		"rounds":  res.Rounds,
		"claims":  res.Claims,
		"emitted": res.Emitted,
		"minted":  res.Minted,
		"failed":  res.Failed,
	}).Info("Simulation finished")
	return res, nil
}

func (s *Simulation) sign(hash common.Hash) ([]validatorsig.Signature, []common.Address, error) {
	sigs := make([]validatorsig.Signature, 0, len(s.validators))
	addrs := make([]common.Address, 0, len(s.validators))
	for _, k := range s.validators {
		sig, err := attest.Sign(hash, k)
		if err != nil {
			return nil, nil, err
		}
		sigs = append(sigs, sig)
		addrs = append(addrs, crypto.PubkeyToAddress(k.PublicKey))
	}
	return sigs, addrs, nil
}

func (s *Simulation) report(ctx context.Context, id inter.PeerID) error {
	sigs, addrs, err := s.sign(s.d.Consensus.PeerReportHash(id))
	if err != nil {
		return err
	}
	_, err = s.d.Consensus.ReportPeer(ctx, addrs[0], sigs, addrs, id)
	return err
}

// validateBatch re-attests every active peer with a contribution that grows
// by one percent.
func (s *Simulation) validateBatch(ctx context.Context) error {
	count, _ := s.d.Consensus.GetActivePeers()
	ids, contributions := s.d.Consensus.GetActivePeersRange(0, count)
	var total uint64
	for i := range contributions {
		contributions[i] += contributions[i]/100 + 1
		total += contributions[i]
	}
	sigs, addrs, err := s.sign(s.d.Consensus.NetworkStateHash(ids, contributions, total))
	if err != nil {
		return err
	}
	_, err = s.d.Consensus.ValidateNetworkState(ctx, addrs[0], ids, contributions, total, sigs, addrs)
	return err
}

func (s *Simulation) claimAll(ctx context.Context) (int, error) {
	claims := 0
	claim := func(caller common.Address, id inter.PeerID, amount *big.Int) error {
		if amount.Sign() == 0 {
			return nil
		}
		fee, err := s.d.Sender.QuoteMint(caller, amount)
		if err != nil {
			return err
		}
		_, err = s.d.Consensus.Claim(ctx, caller, id, fee, caller)
		switch {
		case err == nil:
			claims++
			return nil
		case errors.Is(err, consensus.ErrRewardsNotStarted), errors.Is(err, consensus.ErrNothingToClaim):
			return nil
		default:
			return err
		}
	}
	for _, p := range s.peers {
		if err := claim(p.addr, p.id, s.d.Consensus.Earned(p.id)); err != nil {
			return claims, err
		}
	}
	for _, k := range s.validators {
		addr := crypto.PubkeyToAddress(k.PublicKey)
		if err := claim(addr, inter.ZeroPeerID, s.d.Consensus.ValidatorReward(addr)); err != nil {
			return claims, err
		}
	}
	return claims, nil
}

// enableTransfers has every peer vote the transfers toggle on. The vote
// passes when peers hold more than the governance threshold.
func (s *Simulation) enableTransfers() error {
	if s.d.Token.TotalSupply().Sign() == 0 || s.d.Token.TransfersEnabled() {
		return nil
	}
	hash, err := s.d.Governor.ProposalHash(integration.TransfersToggle, true)
	if err != nil {
		return err
	}
	var (
		sigs   []validatorsig.Signature
		voters []common.Address
	)
	for _, p := range s.peers {
		sig, err := attest.Sign(hash, p.key)
		if err != nil {
			return err
		}
		sigs = append(sigs, sig)
		voters = append(voters, p.addr)
	}
	err = s.d.Governor.Toggle(integration.TransfersToggle, true, sigs, voters)
	if errors.Is(err, attest.ErrSupermajorityNotReached) {
		s.log.Warn("Peers lack the supermajority to enable transfers")
		return nil
	}
	return err
}

func simulate(ctx *cli.Context) error {
	cfg, err := MakeAllConfigs(ctx)
	if err != nil {
		return err
	}
	log, err := setupLogging(cfg.Node.Logging)
	if err != nil {
		return err
	}
	preset, err := cfg.Preset()
	if err != nil {
		return err
	}
	metrics.BuildInfo.WithLabelValues(ctx.App.Version, preset.Name).Set(1)

	if err := ensureDir(cfg.Node.DataDir); err != nil {
		return err
	}
	store, err := relay.OpenFailedStore(cfg.StorePath(), preset.StoreCacheMB, preset.StoreHandles)
	if err != nil {
		return fmt.Errorf("open relay store: %w", err)
	}
	defer store.Close()

	sim, err := NewSimulation(preset, cfg.Simulation, store, log)
	if err != nil {
		return err
	}

	base, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	runCtx, cancel := context.WithCancel(base)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	if cfg.Metrics.Enable {
		srv := &http.Server{
			Addr:              net.JoinHostPort(cfg.Metrics.HTTPAddr, strconv.Itoa(cfg.Metrics.HTTPPort)),
			Handler:           promhttp.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			log.WithField("addr", srv.Addr).Info("Serving metrics")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
	}

	var res SimulationResult
	g.Go(func() error {
		defer cancel()
		var err error
		res, err = sim.Run(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Fprintf(ctx.App.Writer, "rounds=%d claims=%d emitted=%s minted=%s failed=%d\n",
		res.Rounds, res.Claims, res.Emitted, res.Minted, res.Failed)
	return nil
}
