package token

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var (
	minter = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	alice  = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	bob    = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

func newToken() *Token {
	return New("Peerz", "PRZ", big.NewInt(1_000), minter, nil)
}

// TestMintCap checks owner gating and the supply cap.
func TestMintCap(t *testing.T) {
	require := require.New(t)
	tok := newToken()

	require.ErrorIs(tok.Mint(alice, alice, big.NewInt(1)), ErrNotOwner)
	require.ErrorIs(tok.Mint(minter, common.Address{}, big.NewInt(1)), ErrInvalidReceiver)

	require.NoError(tok.Mint(minter, alice, big.NewInt(600)))
	require.ErrorIs(tok.Mint(minter, bob, big.NewInt(401)), ErrExceededCap)
	require.NoError(tok.Mint(minter, bob, big.NewInt(400)))

	require.Equal(big.NewInt(1_000), tok.TotalSupply())
	require.Equal(big.NewInt(1_000), tok.Cap())
	require.Equal(big.NewInt(600), tok.BalanceOf(alice))
	require.Equal("PRZ", tok.Symbol())
	require.Equal("Peerz", tok.Name())
}

// TestBurn checks burning frees room under the cap.
func TestBurn(t *testing.T) {
	require := require.New(t)
	tok := newToken()

	require.NoError(tok.Mint(minter, alice, big.NewInt(1_000)))
	require.ErrorIs(tok.Burn(bob, big.NewInt(1)), ErrInsufficientBalance)
	require.NoError(tok.Burn(alice, big.NewInt(100)))
	require.Equal(big.NewInt(900), tok.TotalSupply())
	require.NoError(tok.Mint(minter, bob, big.NewInt(100)))
}

// TestBurnFrom checks allowance accounting.
func TestBurnFrom(t *testing.T) {
	require := require.New(t)
	tok := newToken()

	require.NoError(tok.Mint(minter, alice, big.NewInt(100)))
	require.ErrorIs(tok.BurnFrom(bob, alice, big.NewInt(10)), ErrInsufficientAllowance)

	require.NoError(tok.Approve(alice, bob, big.NewInt(30)))
	require.NoError(tok.BurnFrom(bob, alice, big.NewInt(10)))
	require.Equal(big.NewInt(20), tok.Allowance(alice, bob))
	require.Equal(big.NewInt(90), tok.BalanceOf(alice))
	require.ErrorIs(tok.BurnFrom(bob, alice, big.NewInt(21)), ErrInsufficientAllowance)
}

// TestTransferToggle checks transfers are gated by the governance toggle.
func TestTransferToggle(t *testing.T) {
	require := require.New(t)
	tok := newToken()
	require.NoError(tok.Mint(minter, alice, big.NewInt(100)))

	require.False(tok.TransfersEnabled())
	require.ErrorIs(tok.Transfer(alice, bob, big.NewInt(1)), ErrTransfersDisabled)

	tok.SetTransfersEnabled(true)
	require.NoError(tok.Transfer(alice, bob, big.NewInt(40)))
	require.ErrorIs(tok.Transfer(alice, bob, big.NewInt(61)), ErrInsufficientBalance)
	require.Equal(big.NewInt(60), tok.BalanceOf(alice))
	require.Equal(big.NewInt(40), tok.BalanceOf(bob))
}

// TestTransferOwnership moves the minter role.
func TestTransferOwnership(t *testing.T) {
	require := require.New(t)
	tok := newToken()

	require.ErrorIs(tok.TransferOwnership(alice, alice), ErrNotOwner)
	require.NoError(tok.TransferOwnership(minter, alice))
	require.Equal(alice, tok.Owner())
	require.ErrorIs(tok.Mint(minter, bob, big.NewInt(1)), ErrNotOwner)
	require.NoError(tok.Mint(alice, bob, big.NewInt(1)))
}
