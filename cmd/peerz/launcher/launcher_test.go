package launcher

import (
	"bytes"
	"context"
	"encoding/hex"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-peerz/attest"
	"github.com/rony4d/go-peerz/integration"
	"github.com/rony4d/go-peerz/inter"
	"github.com/rony4d/go-peerz/inter/validatorsig"
	"github.com/rony4d/go-peerz/protocol/genesis"
	"github.com/rony4d/go-peerz/relay"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	a := newApp()
	var out bytes.Buffer
	a.Writer = &out
	err := a.Run(append([]string{"peerz"}, args...))
	return out.String(), err
}

func TestPeerIDCommand(t *testing.T) {
	require := require.New(t)
	const libp2p = "QmYyQSo1c1Ym7orWxLYvCrM2EmxFTANf8wXmmE7DWjhx5N"

	out, err := run(t, "peerid", libp2p)
	require.NoError(err)
	require.Equal(inter.PeerIDFromString(libp2p).String(), strings.TrimSpace(out))

	_, err = run(t, "peerid", "not-base58-0OIl")
	require.ErrorIs(err, inter.ErrInvalidPeerID)

	_, err = run(t, "peerid")
	require.Error(err)
}

func TestSignCommand(t *testing.T) {
	require := require.New(t)
	key := genesis.FakeKey(1)
	peer := "QmYyQSo1c1Ym7orWxLYvCrM2EmxFTANf8wXmmE7DWjhx5N"

	out, err := run(t, "sign", "--key", "0x"+hex.EncodeToString(crypto.FromECDSA(key)), "--peer", peer)
	require.NoError(err)

	var sigHex string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "signature:") {
			sigHex = strings.TrimSpace(strings.TrimPrefix(line, "signature:"))
		}
	}
	sig, err := validatorsig.FromString(sigHex)
	require.NoError(err)
	signer, err := attest.Recover(attest.PeerReportHash(inter.PeerIDFromString(peer)), sig)
	require.NoError(err)
	require.Equal(crypto.PubkeyToAddress(key.PublicKey), signer)
	require.Contains(out, signer.Hex())

	_, err = run(t, "sign", "--key", "zz", "--peer", peer)
	require.Error(err)
}

func TestEmissionCommand(t *testing.T) {
	require := require.New(t)
	out, err := run(t, "emission", "--from", "0", "--to", "455")
	require.NoError(err)

	sched := integration.FakenetPreset().Rules.Schedule(0)
	require.Contains(out, "emitted:  "+sched.Emitted(0, 455*inter.Day).String())
	// initial period, then the first halving epoch
	require.Equal(2, strings.Count(out, "\nday "))

	_, err = run(t, "emission", "--from", "10", "--to", "10")
	require.Error(err)
}

func TestDumpConfigCommand(t *testing.T) {
	out, err := run(t, "dumpconfig", "--datadir", t.TempDir(), "--network", "test")
	require.NoError(t, err)
	require.Contains(t, out, "[Protocol]")
	require.Contains(t, out, `Network = "test"`)
}

// TestSimulation runs a short simulation and checks the supply bound.
func TestSimulation(t *testing.T) {
	require := require.New(t)
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	sim, err := NewSimulation(integration.FakenetPreset(), SimulationConfig{
		Peers:      3,
		Validators: 3,
		Days:       14,
		Step:       24 * time.Hour,
	}, relay.NewMemoryFailedStore(), log)
	require.NoError(err)

	res, err := sim.Run(context.Background())
	require.NoError(err)
	require.Equal(14, res.Rounds)
	require.True(res.Claims > 0)
	require.Zero(res.Failed)
	require.True(res.Minted.Sign() > 0)
	require.True(res.Minted.Cmp(res.Emitted) <= 0, "minted %s > emitted %s", res.Minted, res.Emitted)

	d := sim.Deployment()
	sum := new(big.Int)
	for _, p := range sim.peers {
		sum.Add(sum, d.Token.BalanceOf(p.addr))
	}
	for _, k := range sim.validators {
		sum.Add(sum, d.Token.BalanceOf(crypto.PubkeyToAddress(k.PublicKey)))
	}
	require.Equal(0, sum.Cmp(res.Minted))
	require.True(d.Token.TransfersEnabled())
	require.Zero(d.L2Endpoint.Pending())
}

func TestNewSimulationRejectsEmpty(t *testing.T) {
	_, err := NewSimulation(integration.FakenetPreset(), SimulationConfig{Peers: 0, Validators: 1, Days: 1, Step: time.Hour}, nil, nil)
	require.Error(t, err)
}

func TestSetupLogging(t *testing.T) {
	require := require.New(t)
	log, err := setupLogging(LoggingConfig{Verbosity: 6, Format: "json"})
	require.NoError(err)
	require.Equal(logrus.TraceLevel, log.GetLevel())
	_, ok := log.Formatter.(*logrus.JSONFormatter)
	require.True(ok)

	_, err = setupLogging(LoggingConfig{Verbosity: 9})
	require.Error(err)
	_, err = setupLogging(LoggingConfig{Verbosity: 3, Format: "xml"})
	require.Error(err)
}
