package inter

import (
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

// TestPeerIDFromString verifies that peer identifiers are the keccak256 hash
// of the textual libp2p ID, so every chain derives the same identifier.
func TestPeerIDFromString(t *testing.T) {
	require := require.New(t)

	libp2pID := "QmYyQSo1c1Ym7orWxLYvCrM2EmxFTANf8wXmmE7DWjhx5N"
	id := PeerIDFromString(libp2pID)

	require.Equal(crypto.Keccak256Hash([]byte(libp2pID)), id.Hash())
	require.False(id.IsZero())
	require.True(ZeroPeerID.IsZero())
}

// TestParsePeerID covers both accepted textual forms and the malformed inputs
// that must be rejected.
func TestParsePeerID(t *testing.T) {
	known := PeerIDFromString("QmYyQSo1c1Ym7orWxLYvCrM2EmxFTANf8wXmmE7DWjhx5N")

	tests := []struct {
		name    string
		input   string
		want    PeerID
		wantErr bool
	}{
		{name: "hex", input: known.String(), want: known},
		{name: "base58 libp2p id", input: "QmYyQSo1c1Ym7orWxLYvCrM2EmxFTANf8wXmmE7DWjhx5N", want: known},
		{name: "short hex", input: "0x1234", wantErr: true},
		{name: "bad hex", input: "0xzz", wantErr: true},
		{name: "not base58", input: "0OIl", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePeerID(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidPeerID)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

// TestPeerIDJSON checks that PeerID travels through JSON as a hex string.
func TestPeerIDJSON(t *testing.T) {
	require := require.New(t)

	id := PeerIDFromString("peer-1")
	b, err := json.Marshal(id)
	require.NoError(err)
	require.Equal(`"`+id.String()+`"`, string(b))

	var decoded PeerID
	require.NoError(json.Unmarshal(b, &decoded))
	require.Equal(id, decoded)
}

// TestPeerCopy ensures the big.Int fields are not shared between copies.
func TestPeerCopy(t *testing.T) {
	require := require.New(t)

	p := Peer{RewardDebt: big.NewInt(1), AccruedReward: big.NewInt(2)}
	cp := p.Copy()
	cp.RewardDebt.SetInt64(100)
	cp.AccruedReward.SetInt64(200)

	require.Equal(int64(1), p.RewardDebt.Int64())
	require.Equal(int64(2), p.AccruedReward.Int64())
}

// TestTimestamp exercises the conversions between wall-clock time and
// protocol seconds.
func TestTimestamp(t *testing.T) {
	require := require.New(t)

	now := time.Date(2024, 3, 1, 12, 0, 0, 500, time.UTC)
	ts := FromTime(now)
	require.Equal(uint64(now.Unix()), uint64(ts))
	require.Equal(now.Truncate(time.Second), ts.Time())
	require.Equal(ts+Day, ts.Add(24*time.Hour))
	require.Equal(uint64(365), Year.Days())
	require.Equal(Timestamp(0), FromTime(time.Unix(-5, 0)))
}
