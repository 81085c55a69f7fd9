package ledger

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0xA1")
	bob   = common.HexToAddress("0xB2")
)

func TestMintAndTransfer(t *testing.T) {
	m := NewMemory("SALE", 18)
	require.Equal(t, "SALE", m.Symbol())
	require.Equal(t, uint8(18), m.Decimals())

	require.NoError(t, m.Mint(alice, big.NewInt(100)))
	require.Equal(t, big.NewInt(100), m.BalanceOf(alice))

	require.NoError(t, m.Transfer(alice, bob, big.NewInt(40)))
	require.Equal(t, big.NewInt(60), m.BalanceOf(alice))
	require.Equal(t, big.NewInt(40), m.BalanceOf(bob))

	require.NoError(t, m.TransferFrom(bob, alice, big.NewInt(10)))
	require.Equal(t, big.NewInt(70), m.BalanceOf(alice))
}

func TestTransferRejectsOverdraft(t *testing.T) {
	m := NewMemory("SALE", 18)
	require.NoError(t, m.Mint(alice, big.NewInt(10)))

	err := m.Transfer(alice, bob, big.NewInt(11))
	require.ErrorIs(t, err, ErrInsufficientBalance)
	// Balances unchanged after the failed move.
	require.Equal(t, big.NewInt(10), m.BalanceOf(alice))
	require.Equal(t, big.NewInt(0), m.BalanceOf(bob))
}

func TestInvalidAmounts(t *testing.T) {
	m := NewMemory("SALE", 18)
	require.ErrorIs(t, m.Mint(alice, nil), ErrInvalidAmount)
	require.ErrorIs(t, m.Transfer(alice, bob, big.NewInt(-1)), ErrInvalidAmount)

	// Zero-amount transfers are no-ops.
	require.NoError(t, m.Transfer(alice, bob, big.NewInt(0)))
}

func TestBalanceOfReturnsCopy(t *testing.T) {
	m := NewMemory("SALE", 18)
	require.NoError(t, m.Mint(alice, big.NewInt(100)))

	bal := m.BalanceOf(alice)
	bal.SetInt64(0)
	require.Equal(t, big.NewInt(100), m.BalanceOf(alice))
}
