// Package token is the reward token: a capped, owner-minted ERC20-style
// ledger. The relay receiver owns it and mints claimed rewards; token
// holders can burn, and plain transfers stay disabled until a governance
// vote enables them.
package token

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotOwner              = errors.New("ownable: caller is not the owner")
	ErrExceededCap           = errors.New("ERC20ExceededCap")
	ErrInsufficientBalance   = errors.New("ERC20InsufficientBalance")
	ErrInsufficientAllowance = errors.New("ERC20InsufficientAllowance")
	ErrInvalidReceiver       = errors.New("ERC20InvalidReceiver")
	ErrTransfersDisabled     = errors.New("transfers disabled")
	ErrInvalidAmount         = errors.New("invalid amount")
)

type allowanceKey struct {
	owner, spender common.Address
}

// Token is safe for concurrent use.
type Token struct {
	mu sync.RWMutex

	name, symbol string
	owner        common.Address
	cap          *big.Int
	supply       *big.Int
	balances     map[common.Address]*big.Int
	allowances   map[allowanceKey]*big.Int
	transfers    bool

	log logrus.FieldLogger
}

// New returns an empty token with the given cap, owned by owner.
func New(name, symbol string, cap *big.Int, owner common.Address, log logrus.FieldLogger) *Token {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Token{
		name:       name,
		symbol:     symbol,
		owner:      owner,
		cap:        new(big.Int).Set(cap),
		supply:     new(big.Int),
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[allowanceKey]*big.Int),
		log:        log.WithFields(logrus.Fields{"module": "token", "symbol": symbol}),
	}
}

func (t *Token) Name() string   { return t.name }
func (t *Token) Symbol() string { return t.symbol }

// Cap returns the maximum supply.
func (t *Token) Cap() *big.Int {
	return new(big.Int).Set(t.cap)
}

// Owner returns the minter.
func (t *Token) Owner() common.Address {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.owner
}

// TransferOwnership hands the minter role to newOwner.
func (t *Token) TransferOwnership(caller, newOwner common.Address) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if caller != t.owner {
		return ErrNotOwner
	}
	t.owner = newOwner
	return nil
}

// TotalSupply returns the minted, unburned supply.
func (t *Token) TotalSupply() *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return new(big.Int).Set(t.supply)
}

// BalanceOf returns the balance of addr.
func (t *Token) BalanceOf(addr common.Address) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.balanceOf(addr)
}

func (t *Token) balanceOf(addr common.Address) *big.Int {
	if b, ok := t.balances[addr]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// Mint creates amount for to. Owner only; fails if the supply would exceed the cap.
func (t *Token) Mint(caller, to common.Address, amount *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if caller != t.owner {
		return ErrNotOwner
	}
	if to == (common.Address{}) {
		return ErrInvalidReceiver
	}
	if amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	next := new(big.Int).Add(t.supply, amount)
	if next.Cmp(t.cap) > 0 {
		return fmt.Errorf("%w: supply %s + %s > cap %s", ErrExceededCap, t.supply, amount, t.cap)
	}
	t.supply = next
	t.credit(to, amount)
	t.log.WithFields(logrus.Fields{"to": to, "amount": amount}).Debug("Minted")
	return nil
}

// Burn destroys amount of the caller's balance.
func (t *Token) Burn(caller common.Address, amount *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.burn(caller, amount)
}

// BurnFrom destroys amount of from's balance using the caller's allowance.
func (t *Token) BurnFrom(caller, from common.Address, amount *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.spendAllowance(from, caller, amount); err != nil {
		return err
	}
	return t.burn(from, amount)
}

func (t *Token) burn(from common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if t.balanceOf(from).Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	t.debit(from, amount)
	t.supply.Sub(t.supply, amount)
	return nil
}

// Approve sets the allowance of spender over the caller's balance.
func (t *Token) Approve(caller, spender common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.allowances[allowanceKey{caller, spender}] = new(big.Int).Set(amount)
	return nil
}

// Allowance returns what spender may still spend from owner.
func (t *Token) Allowance(owner, spender common.Address) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if a, ok := t.allowances[allowanceKey{owner, spender}]; ok {
		return new(big.Int).Set(a)
	}
	return new(big.Int)
}

func (t *Token) spendAllowance(owner, spender common.Address, amount *big.Int) error {
	a, ok := t.allowances[allowanceKey{owner, spender}]
	if !ok || a.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	a.Sub(a, amount)
	return nil
}

// Transfer moves amount from the caller to to. Fails while transfers are disabled.
func (t *Token) Transfer(caller, to common.Address, amount *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.transfers {
		return ErrTransfersDisabled
	}
	if to == (common.Address{}) {
		return ErrInvalidReceiver
	}
	if amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if t.balanceOf(caller).Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	t.debit(caller, amount)
	t.credit(to, amount)
	return nil
}

// TransfersEnabled reports the transfer toggle.
func (t *Token) TransfersEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.transfers
}

// SetTransfersEnabled is driven by the governance toggle.
func (t *Token) SetTransfersEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.transfers = enabled
	t.log.WithField("enabled", enabled).Info("Transfers toggled")
}

func (t *Token) credit(to common.Address, amount *big.Int) {
	b, ok := t.balances[to]
	if !ok {
		b = new(big.Int)
		t.balances[to] = b
	}
	b.Add(b, amount)
}

func (t *Token) debit(from common.Address, amount *big.Int) {
	t.balances[from].Sub(t.balances[from], amount)
}
