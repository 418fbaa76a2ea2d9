package consensus

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-peerz/attest"
	"github.com/rony4d/go-peerz/bridge"
	"github.com/rony4d/go-peerz/emission"
	"github.com/rony4d/go-peerz/inter"
	"github.com/rony4d/go-peerz/inter/validatorsig"
	"github.com/rony4d/go-peerz/protocol"
	"github.com/rony4d/go-peerz/registry"
)

var (
	start   = time.Unix(1_700_000_000, 0).UTC()
	svcAddr = common.HexToAddress("0x000000000000000000000000000000000000c0de")
	owner   = common.HexToAddress("0x0000000000000000000000000000000000000111")
	second  = common.HexToAddress("0x0000000000000000000000000000000000000222")
	third   = common.HexToAddress("0x0000000000000000000000000000000000000333")
)

type mint struct {
	beneficiary common.Address
	amount      *big.Int
}

type fakeDispatcher struct {
	fee   *big.Int
	fail  error
	mints []mint
}

func (d *fakeDispatcher) QuoteMint(common.Address, *big.Int) (*big.Int, error) {
	return new(big.Int).Set(d.fee), nil
}

func (d *fakeDispatcher) SendMint(_ context.Context, caller, beneficiary common.Address, amount *big.Int, _ common.Address, value *big.Int) (bridge.Receipt, error) {
	if caller != svcAddr {
		return bridge.Receipt{}, errors.New("unexpected caller")
	}
	if d.fail != nil {
		return bridge.Receipt{}, d.fail
	}
	d.mints = append(d.mints, mint{beneficiary, new(big.Int).Set(amount)})
	return bridge.Receipt{Nonce: uint64(len(d.mints)), Fee: d.fee, Refund: new(big.Int).Sub(value, d.fee)}, nil
}

type env struct {
	svc   *Service
	clock *clockwork.FakeClock
	disp  *fakeDispatcher
	cap   *big.Int
}

func newEnv(t *testing.T, shareBps uint64) *env {
	rules := protocol.FakeNetRules()
	rules.Attestation.ValidatorShareBps = shareBps
	clock := clockwork.NewFakeClockAt(start)
	disp := &fakeDispatcher{fee: big.NewInt(100)}
	svc, err := New(Config{
		Address:    svcAddr,
		Owner:      owner,
		Rules:      rules,
		EpochStart: inter.FromTime(start),
	}, clock, disp, nil)
	require.NoError(t, err)
	return &env{svc: svc, clock: clock, disp: disp, cap: rules.Emission.Cap}
}

// at moves the clock to start+d.
func (e *env) at(d time.Duration) {
	e.clock.Advance(start.Add(d).Sub(e.clock.Now()))
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

func newKeys(t *testing.T, n int) ([]*ecdsa.PrivateKey, []common.Address) {
	keys := make([]*ecdsa.PrivateKey, n)
	addrs := make([]common.Address, n)
	for i := range keys {
		k, err := crypto.GenerateKey()
		require.NoError(t, err)
		keys[i] = k
		addrs[i] = crypto.PubkeyToAddress(k.PublicKey)
	}
	return keys, addrs
}

func signAll(t *testing.T, hash common.Hash, keys ...*ecdsa.PrivateKey) ([]validatorsig.Signature, []common.Address) {
	sigs := make([]validatorsig.Signature, len(keys))
	addrs := make([]common.Address, len(keys))
	for i, k := range keys {
		sig, err := attest.Sign(hash, k)
		require.NoError(t, err)
		sigs[i] = sig
		addrs[i] = crypto.PubkeyToAddress(k.PublicKey)
	}
	return sigs, addrs
}

func requireClose(t *testing.T, a, b *big.Int, eps int64) {
	t.Helper()
	d := new(big.Int).Sub(a, b)
	require.True(t, d.CmpAbs(big.NewInt(eps)) <= 0, "%s vs %s (diff %s)", a, b, d)
}

// TestRegisterPeer checks registration validation and bookkeeping.
func TestRegisterPeer(t *testing.T) {
	require := require.New(t)
	e := newEnv(t, 0)
	id := inter.PeerIDFromString("12D3KooWPeerOne")

	require.ErrorIs(e.svc.RegisterPeer(second, id, 0), registry.ErrInvalidContribution)
	require.NoError(e.svc.RegisterPeer(second, id, 250))
	require.ErrorIs(e.svc.RegisterPeer(third, id, 100), registry.ErrPeerExists)

	count, total := e.svc.GetActivePeers()
	require.Equal(1, count)
	require.Equal(uint64(250), total)

	p, ok := e.svc.Peer(id)
	require.True(ok)
	require.Equal(second, p.Beneficiary)
	require.True(p.Active)
	require.Zero(p.RewardDebt.Sign())
	require.Equal(inter.FromTime(start), p.RegisteredAt)

	require.ErrorIs(e.svc.UpdatePeerContribution(third, id, 10), registry.ErrPeerNotAuthorized)
	require.ErrorIs(e.svc.UpdatePeerContribution(second, id, 0), registry.ErrInvalidContribution)
	require.NoError(e.svc.UpdatePeerContribution(second, id, 300))
	require.Equal(uint64(300), e.svc.State().TotalContribution)

	require.ErrorIs(e.svc.UpdatePeerAddress(third, id, third), registry.ErrPeerNotAuthorized)
	require.NoError(e.svc.UpdatePeerAddress(second, id, third))
	require.ErrorIs(e.svc.DeactivatePeer(second, id), registry.ErrPeerNotAuthorized)
	require.NoError(e.svc.DeactivatePeer(third, id))
	require.ErrorIs(e.svc.DeactivatePeer(third, id), registry.ErrPeerNotAuthorized)

	count, total = e.svc.GetActivePeers()
	require.Zero(count)
	require.Zero(total)
}

// TestInitialPeriodPayout registers a peer at the epoch start and
// deactivates it when the initial period ends: it holds exactly ninety
// days of the initial daily reward.
func TestInitialPeriodPayout(t *testing.T) {
	require := require.New(t)
	e := newEnv(t, 0)
	ctx := context.Background()
	id := inter.PeerIDFromString("12D3KooWInitial")
	daily := emission.InitialDailyReward(e.cap)
	want := new(big.Int).Mul(daily, big.NewInt(90))

	require.NoError(e.svc.RegisterPeer(second, id, 250))
	e.at(days(90))
	require.NoError(e.svc.DeactivatePeer(second, id))

	p, ok := e.svc.Peer(id)
	require.True(ok)
	require.False(p.Active)
	require.Equal(want, p.AccruedReward)

	// inactive peers stop earning
	e.at(days(120))
	require.Equal(want, e.svc.Earned(id))

	require.ErrorIs(e.svc.UnregisterPeer(second, id), ErrUnclaimedRewards)

	rec, err := e.svc.Claim(ctx, third, id, big.NewInt(100), third)
	require.NoError(err)
	require.Equal(want, rec.Amount)
	require.Equal(second, rec.Beneficiary)
	require.Equal(uint64(1), rec.Nonce)
	require.Len(e.disp.mints, 1)
	require.Equal(second, e.disp.mints[0].beneficiary)
	require.Zero(e.svc.Earned(id).Sign())

	_, err = e.svc.Claim(ctx, second, id, big.NewInt(100), second)
	require.ErrorIs(err, ErrNothingToClaim)

	require.NoError(e.svc.UnregisterPeer(second, id))
	_, ok = e.svc.Peer(id)
	require.False(ok)
	require.ErrorIs(e.svc.RegisterPeer(second, id, 1), registry.ErrPeerExists)
}

// TestJoinAtBoundary checks that a peer joining at the end of the initial
// period earns the same as an equal peer that was there all along, from the
// moment it joined.
func TestJoinAtBoundary(t *testing.T) {
	require := require.New(t)
	e := newEnv(t, 0)
	p1 := inter.PeerIDFromString("12D3KooWEarly")
	p2 := inter.PeerIDFromString("12D3KooWBoundary")
	p3 := inter.PeerIDFromString("12D3KooWLate")

	require.NoError(e.svc.RegisterPeer(second, p1, 250))
	e.at(days(90) - time.Second)
	require.NoError(e.svc.RegisterPeer(second, p2, 250))
	before := e.svc.Earned(p1)

	e.at(days(365))
	gained := new(big.Int).Sub(e.svc.Earned(p1), before)
	requireClose(t, gained, e.svc.Earned(p2), 2)

	require.NoError(e.svc.RegisterPeer(second, p3, 200))
	e.at(days(730))

	sum := new(big.Int)
	for _, id := range []inter.PeerID{p1, p2, p3} {
		sum.Add(sum, e.svc.Earned(id))
	}
	daily := emission.InitialDailyReward(e.cap)
	half := new(big.Int).Rsh(daily, 1)
	quarter := new(big.Int).Rsh(daily, 2)
	want := new(big.Int).Mul(daily, big.NewInt(90))
	want.Add(want, new(big.Int).Mul(half, big.NewInt(365)))
	want.Add(want, new(big.Int).Mul(quarter, big.NewInt(275)))
	requireClose(t, e.svc.Emitted(inter.FromTime(start), inter.FromTime(e.clock.Now())), want, 0)
	requireClose(t, sum, want, 10)
}

// TestReportPeer walks the report checks in order and the validator credit.
func TestReportPeer(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	e := newEnv(t, 1_000)
	id := inter.PeerIDFromString("12D3KooWReported")
	keys, addrs := newKeys(t, 3)

	require.NoError(e.svc.RegisterPeer(second, id, 250))
	sigs, claimed := signAll(t, attest.PeerReportHash(id), keys[0], keys[1])

	_, err := e.svc.ReportPeer(ctx, owner, sigs, claimed, id)
	require.ErrorIs(err, registry.ErrValidatorNotAuthorized)

	require.ErrorIs(e.svc.SetValidator(second, addrs[0], true), registry.ErrNotOwner)
	for _, a := range addrs {
		require.NoError(e.svc.SetValidator(owner, a, true))
	}
	require.True(e.svc.IsValidator(addrs[2]))
	require.Equal(addrs, e.svc.Validators())

	_, err = e.svc.ReportPeer(ctx, owner, sigs, claimed[:1], id)
	require.ErrorIs(err, attest.ErrSignatureCountMismatch)

	other := inter.PeerIDFromString("12D3KooWUnknown")
	_, err = e.svc.ReportPeer(ctx, owner, sigs, claimed, other)
	require.ErrorIs(err, registry.ErrPeerNotActive)

	e.at(days(1))

	_, err = e.svc.ReportPeer(ctx, owner, sigs[:1], claimed[:1], id)
	require.ErrorIs(err, attest.ErrConsensusNotReached)
	require.Zero(e.svc.ValidatorReward(addrs[0]).Sign())

	res, err := e.svc.ReportPeer(ctx, owner, sigs, claimed, id)
	require.NoError(err)
	require.Equal(addrs[:2], res.Signers)

	emitted := e.svc.Emitted(inter.FromTime(start), inter.FromTime(start.Add(days(1))))
	pot := new(big.Int).Div(emitted, big.NewInt(10))
	share := new(big.Int).Div(pot, big.NewInt(2))
	require.Equal(share, e.svc.ValidatorReward(addrs[0]))
	require.Equal(share, e.svc.ValidatorReward(addrs[1]))
	require.Zero(e.svc.ValidatorReward(addrs[2]).Sign())
	requireClose(t, e.svc.Earned(id), new(big.Int).Sub(emitted, pot), 250)

	p, _ := e.svc.Peer(id)
	require.Equal(inter.FromTime(start.Add(days(1))), p.LastReported)
}

// TestBadSignaturesNeverCredit checks that mismatched or non-validator
// signatures leave every balance untouched.
func TestBadSignaturesNeverCredit(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	e := newEnv(t, 1_000)
	id := inter.PeerIDFromString("12D3KooWTarget")
	keys, addrs := newKeys(t, 3)
	outsiders, _ := newKeys(t, 3)

	require.NoError(e.svc.RegisterPeer(second, id, 250))
	for _, a := range addrs {
		require.NoError(e.svc.SetValidator(owner, a, true))
	}
	e.at(days(3))
	before := e.svc.State()
	earned := e.svc.Earned(id)

	cases := map[string]func() ([]validatorsig.Signature, []common.Address){
		"non-validators": func() ([]validatorsig.Signature, []common.Address) {
			return signAll(t, attest.PeerReportHash(id), outsiders...)
		},
		"swapped slots": func() ([]validatorsig.Signature, []common.Address) {
			sigs, claimed := signAll(t, attest.PeerReportHash(id), keys...)
			claimed[0], claimed[1] = claimed[1], claimed[0]
			return sigs, claimed
		},
		"wrong message": func() ([]validatorsig.Signature, []common.Address) {
			return signAll(t, attest.PeerReportHash(inter.PeerIDFromString("other")), keys...)
		},
		"one valid repeated": func() ([]validatorsig.Signature, []common.Address) {
			return signAll(t, attest.PeerReportHash(id), keys[0], keys[0], keys[0])
		},
	}
	for name, build := range cases {
		t.Run(name, func(t *testing.T) {
			sigs, claimed := build()
			_, err := e.svc.ReportPeer(ctx, owner, sigs, claimed, id)
			require.ErrorIs(err, attest.ErrConsensusNotReached)
		})
	}

	for _, a := range addrs {
		require.Zero(e.svc.ValidatorReward(a).Sign())
	}
	require.Equal(earned, e.svc.Earned(id))
	require.Equal(before.Hash(), e.svc.State().Hash())
}

// TestValidateNetworkState walks the batch checks and the stake-weighted quorum.
func TestValidateNetworkState(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	e := newEnv(t, 1_000)
	keys, addrs := newKeys(t, 3)
	p1 := inter.PeerIDFromString("12D3KooWBatchOne")
	p2 := inter.PeerIDFromString("12D3KooWBatchTwo")
	ids := []inter.PeerID{p1, p2}
	contributions := []uint64{400, 600}

	require.NoError(e.svc.RegisterPeer(second, p1, 100))
	require.NoError(e.svc.RegisterPeer(third, p2, 100))

	hash := attest.NetworkStateHash(ids, contributions, 1000)
	sigs, claimed := signAll(t, hash, keys[0])

	_, err := e.svc.ValidateNetworkState(ctx, owner, ids, contributions, 1000, sigs, claimed)
	require.ErrorIs(err, attest.ErrNoValidators)

	for _, a := range addrs {
		require.NoError(e.svc.SetValidator(owner, a, true))
	}
	require.NoError(e.svc.SetValidatorWeight(owner, addrs[0], 5))

	_, err = e.svc.ValidateNetworkState(ctx, owner, ids, contributions[:1], 1000, sigs, claimed)
	require.ErrorIs(err, attest.ErrDataLengthMismatch)
	_, err = e.svc.ValidateNetworkState(ctx, owner, ids, contributions, 999, sigs, claimed)
	require.ErrorIs(err, ErrTotalMismatch)
	_, err = e.svc.ValidateNetworkState(ctx, owner, ids, contributions, 1000, sigs, nil)
	require.ErrorIs(err, attest.ErrSignatureCountMismatch)
	_, err = e.svc.ValidateNetworkState(ctx, owner, []inter.PeerID{p1, p1}, contributions, 1000, sigs, claimed)
	require.ErrorIs(err, ErrDuplicatePeer)

	light, lightClaimed := signAll(t, hash, keys[1], keys[2])
	_, err = e.svc.ValidateNetworkState(ctx, owner, ids, contributions, 1000, light, lightClaimed)
	require.ErrorIs(err, attest.ErrConsensusNotReached)

	e.at(days(2))
	res, err := e.svc.ValidateNetworkState(ctx, owner, ids, contributions, 1000, sigs, claimed)
	require.NoError(err)
	require.Equal(addrs[:1], res.Signers)
	require.EqualValues(5, res.Weight)
	require.EqualValues(7, res.Total)

	count, total := e.svc.GetActivePeers()
	require.Equal(2, count)
	require.Equal(uint64(1000), total)
	gotIDs, gotContribs := e.svc.GetActivePeersRange(0, 10)
	require.Equal(ids, gotIDs)
	require.Equal(contributions, gotContribs)

	// the two days before the batch were split evenly
	requireClose(t, e.svc.Earned(p1), e.svc.Earned(p2), 2)
	require.True(e.svc.ValidatorReward(addrs[0]).Sign() > 0)

	require.NoError(e.svc.DeactivatePeer(third, p2))
	_, err = e.svc.ValidateNetworkState(ctx, owner, ids, contributions, 1000, sigs, claimed)
	require.ErrorIs(err, registry.ErrPeerNotActive)
}

// TestClaimFailures checks every failing claim leaves the ledger as it was.
func TestClaimFailures(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	rules := protocol.FakeNetRules()
	clock := clockwork.NewFakeClockAt(start.Add(-time.Hour))
	disp := &fakeDispatcher{fee: big.NewInt(100)}
	svc, err := New(Config{Address: svcAddr, Owner: owner, Rules: rules, EpochStart: inter.FromTime(start)}, clock, disp, nil)
	require.NoError(err)

	id := inter.PeerIDFromString("12D3KooWClaimer")
	require.NoError(svc.RegisterPeer(second, id, 10))
	_, err = svc.Claim(ctx, second, id, big.NewInt(100), second)
	require.ErrorIs(err, ErrRewardsNotStarted)

	clock.Advance(time.Hour + 24*time.Hour)
	_, err = svc.Claim(ctx, second, inter.PeerIDFromString("nobody"), big.NewInt(100), second)
	require.ErrorIs(err, ErrNothingToClaim)
	_, err = svc.Claim(ctx, second, inter.ZeroPeerID, big.NewInt(100), second)
	require.ErrorIs(err, ErrNothingToClaim)

	earned := svc.Earned(id)
	require.True(earned.Sign() > 0)

	_, err = svc.Claim(ctx, second, id, big.NewInt(99), second)
	require.ErrorIs(err, bridge.ErrInsufficientFee)
	require.Equal(earned, svc.Earned(id))

	disp.fail = errors.New("endpoint down")
	_, err = svc.Claim(ctx, second, id, big.NewInt(100), second)
	require.ErrorIs(err, disp.fail)
	require.Equal(earned, svc.Earned(id))
	require.Empty(disp.mints)

	disp.fail = nil
	rec, err := svc.Claim(ctx, second, id, big.NewInt(150), second)
	require.NoError(err)
	require.Equal(earned, rec.Amount)
	require.Equal(id, rec.PeerID)
	require.NotEqual([16]byte{}, [16]byte(rec.TaskID))
}

// TestValidatorPoolClaim checks the zero id claims the caller's pool.
func TestValidatorPoolClaim(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	e := newEnv(t, 1_000)
	keys, addrs := newKeys(t, 1)
	id := inter.PeerIDFromString("12D3KooWPool")

	require.NoError(e.svc.RegisterPeer(second, id, 250))
	require.NoError(e.svc.SetValidator(owner, addrs[0], true))
	e.at(days(1))
	sigs, claimed := signAll(t, attest.PeerReportHash(id), keys[0])
	_, err := e.svc.ReportPeer(ctx, owner, sigs, claimed, id)
	require.NoError(err)

	pool := e.svc.ValidatorReward(addrs[0])
	require.True(pool.Sign() > 0)

	rec, err := e.svc.Claim(ctx, addrs[0], inter.ZeroPeerID, big.NewInt(100), addrs[0])
	require.NoError(err)
	require.Equal(pool, rec.Amount)
	require.Equal(addrs[0], rec.Beneficiary)
	require.Zero(e.svc.ValidatorReward(addrs[0]).Sign())

	disp := e.disp
	disp.fail = errors.New("down")
	e.at(days(2))
	_, err = e.svc.ReportPeer(ctx, owner, sigs, claimed, id)
	require.NoError(err)
	pool = e.svc.ValidatorReward(addrs[0])
	_, err = e.svc.Claim(ctx, addrs[0], inter.ZeroPeerID, big.NewInt(100), addrs[0])
	require.Error(err)
	require.Equal(pool, e.svc.ValidatorReward(addrs[0]))
}

// TestDistributionBound runs a busy schedule across the halving boundary
// and checks nothing more than was emitted is ever handed out.
func TestDistributionBound(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	e := newEnv(t, 500)
	keys, addrs := newKeys(t, 3)
	for _, a := range addrs {
		require.NoError(e.svc.SetValidator(owner, a, true))
	}

	var ids []inter.PeerID
	for i := 0; i < 5; i++ {
		id := inter.PeerIDFromString(string(rune('a' + i)))
		ids = append(ids, id)
		require.NoError(e.svc.RegisterPeer(second, id, uint64(100*(i+1))))
	}

	claimed := new(big.Int)
	for day := 1; day <= 200; day += 7 {
		e.at(days(day) + time.Duration(day)*time.Minute)
		id := ids[day%len(ids)]
		sigs, signers := signAll(t, attest.PeerReportHash(id), keys[0], keys[day%2+1])
		_, err := e.svc.ReportPeer(ctx, owner, sigs, signers, id)
		require.NoError(err)
		if day%3 == 0 {
			require.NoError(e.svc.UpdatePeerContribution(second, id, uint64(day)))
		}
		if day%5 == 0 {
			rec, err := e.svc.Claim(ctx, second, id, big.NewInt(100), second)
			require.NoError(err)
			claimed.Add(claimed, rec.Amount)
		}
	}

	now := inter.FromTime(e.clock.Now())
	emitted := e.svc.Emitted(inter.FromTime(start), now)
	out := new(big.Int).Set(claimed)
	for _, id := range ids {
		out.Add(out, e.svc.Earned(id))
	}
	for _, a := range addrs {
		out.Add(out, e.svc.ValidatorReward(a))
	}
	st := e.svc.State()
	require.Equal(now, st.LastUpdate)
	out.Add(out, st.PendingValidatorReward)

	require.True(out.Cmp(emitted) <= 0, "handed out %s of %s", out, emitted)
	requireClose(t, out, emitted, 1_000)
}

// TestMainNetValidatorShare checks the production rules pay a signer after a
// single accepted report.
func TestMainNetValidatorShare(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(start)
	svc, err := New(Config{
		Address:    svcAddr,
		Owner:      owner,
		Rules:      protocol.MainNetRules(),
		EpochStart: inter.FromTime(start),
	}, clock, &fakeDispatcher{fee: big.NewInt(100)}, nil)
	require.NoError(err)

	id := inter.PeerIDFromString("12D3KooWMainNetPeer")
	keys, addrs := newKeys(t, 1)
	require.NoError(svc.RegisterPeer(second, id, 100))
	require.NoError(svc.SetValidator(owner, addrs[0], true))

	clock.Advance(days(1))
	sigs, claimed := signAll(t, attest.PeerReportHash(id), keys[0])
	_, err = svc.ReportPeer(ctx, addrs[0], sigs, claimed, id)
	require.NoError(err)

	reward := svc.ValidatorReward(addrs[0])
	require.True(reward.Sign() > 0, "validator reward %s", reward)

	emitted := svc.Emitted(inter.FromTime(start), inter.FromTime(clock.Now()))
	tenth := new(big.Int).Div(emitted, big.NewInt(10))
	requireClose(t, reward, tenth, 1)
	sum := new(big.Int).Add(reward, svc.Earned(id))
	require.True(sum.Cmp(emitted) <= 0, "%s > %s", sum, emitted)
}

// TestSetValidatorRejectsBeforeSettling checks a rejected validator change
// leaves the accumulator untouched.
func TestSetValidatorRejectsBeforeSettling(t *testing.T) {
	require := require.New(t)
	e := newEnv(t, 1_000)
	require.NoError(e.svc.RegisterPeer(second, inter.PeerIDFromString("12D3KooWSettle"), 100))

	e.at(days(3))
	before := e.svc.State().LastUpdate
	require.ErrorIs(e.svc.SetValidator(owner, common.Address{}, true), registry.ErrInvalidValidator)
	require.Equal(before, e.svc.State().LastUpdate)

	_, addrs := newKeys(t, 1)
	require.NoError(e.svc.SetValidator(owner, addrs[0], true))
	require.Equal(inter.FromTime(start)+3*inter.Day, e.svc.State().LastUpdate)
}
