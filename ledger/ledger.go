// Package ledger defines the fungible-token capability the sale engine
// delegates balance movements to. The engine never owns token logic; it only
// instructs a TokenLedger to move amounts between accounts.
package ledger

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrInsufficientBalance is returned when a transfer exceeds the source balance.
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
	// ErrInvalidAmount is returned for nil or negative amounts.
	ErrInvalidAmount = errors.New("ledger: invalid amount")
)

// TokenLedger is the external capability holding balance state for a single
// fungible token. Transfer moves funds out of the engine's own account;
// TransferFrom pulls funds from a third party (payment collection).
type TokenLedger interface {
	Transfer(from, to common.Address, amount *big.Int) error
	TransferFrom(from, to common.Address, amount *big.Int) error
	BalanceOf(addr common.Address) *big.Int
	Mint(to common.Address, amount *big.Int) error
}

// Memory is an in-process TokenLedger used by tests and the daemon's local
// mode. It satisfies the capability with plain balance bookkeeping.
type Memory struct {
	mu       sync.RWMutex
	symbol   string
	decimals uint8
	balances map[common.Address]*big.Int
}

// NewMemory constructs an empty in-memory ledger.
func NewMemory(symbol string, decimals uint8) *Memory {
	return &Memory{
		symbol:   symbol,
		decimals: decimals,
		balances: make(map[common.Address]*big.Int),
	}
}

// Symbol returns the token symbol the ledger was created with.
func (m *Memory) Symbol() string { return m.symbol }

// Decimals returns the token's base-unit precision.
func (m *Memory) Decimals() uint8 { return m.decimals }

func (m *Memory) balance(addr common.Address) *big.Int {
	if bal, ok := m.balances[addr]; ok {
		return bal
	}
	zero := big.NewInt(0)
	m.balances[addr] = zero
	return zero
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m *Memory) move(from, to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if amount.Sign() == 0 {
		return nil
	}
	src := m.balance(from)
	if src.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, from.Hex(), src, amount)
	}
	m.balances[from] = new(big.Int).Sub(src, amount)
	m.balances[to] = new(big.Int).Add(m.balance(to), amount)
	return nil
}

// Transfer moves amount from the engine's account to the recipient.
func (m *Memory) Transfer(from, to common.Address, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.move(from, to, amount)
}

// TransferFrom pulls amount from a third-party account.
func (m *Memory) TransferFrom(from, to common.Address, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.move(from, to, amount)
}

// BalanceOf returns a defensive copy of the account balance.
func (m *Memory) BalanceOf(addr common.Address) *big.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if bal, ok := m.balances[addr]; ok {
		return new(big.Int).Set(bal)
	}
	return big.NewInt(0)
}

// Mint credits freshly created units to the recipient.
func (m *Memory) Mint(to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[to] = new(big.Int).Add(m.balance(to), amount)
	return nil
}
