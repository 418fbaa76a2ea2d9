package genesis

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-peerz/inter"
)

// TestFakeGenesis verifies the fake genesis is valid, deterministic and
// uses distinct validator keys.
func TestFakeGenesis(t *testing.T) {
	require := require.New(t)

	now := time.Unix(1_700_000_000, 0)
	g := FakeGenesis(3, now)
	require.NoError(g.Validate())
	require.Len(g.Validators, 3)
	require.Equal(inter.FromTime(now), g.Time)
	require.Equal(g.Time, g.EpochStart(), "fakenet starts emission at deployment")

	again := FakeGenesis(3, now)
	require.Equal(g.Owner, again.Owner)
	require.Equal(g.Validators, again.Validators)

	require.Equal(crypto.PubkeyToAddress(FakeKey(2).PublicKey), g.Validators[1].Address)
	require.NotEqual(g.Validators[0].Address, g.Validators[1].Address)
}

// TestValidate covers the genesis-level checks on top of the rules checks.
func TestValidate(t *testing.T) {
	require := require.New(t)

	g := FakeGenesis(2, time.Unix(0, 0))
	g.Owner = common.Address{}
	require.ErrorIs(g.Validate(), ErrNoOwner)

	g = FakeGenesis(2, time.Unix(0, 0))
	g.Validators = append(g.Validators, g.Validators[0])
	require.ErrorIs(g.Validate(), ErrDuplicateValidator)
}

// TestCopy ensures the validator slice and rules are not shared.
func TestCopy(t *testing.T) {
	require := require.New(t)

	g := FakeGenesis(1, time.Unix(0, 0))
	cp := g.Copy()
	cp.Validators[0].Weight = 9
	cp.Rules.Emission.Cap.SetInt64(1)

	require.Equal(uint32(1), g.Validators[0].Weight)
	require.NotEqual(int64(1), g.Rules.Emission.Cap.Int64())
}

// TestMainnetEpochStart checks the start delay is applied.
func TestMainnetEpochStart(t *testing.T) {
	g := FakeGenesis(0, time.Unix(1000, 0))
	g.Rules.Emission.StartDelay = inter.Day / 2
	require.Equal(t, inter.Timestamp(1000)+inter.Day/2, g.EpochStart())
}
