package sale

import (
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"tokensale/core/types"
	"tokensale/native/oracle"
)

type mockState struct {
	params  *Params
	funded  bool
	counter uint64
	rounds  map[uint64]*Round
	allocs  map[string]*Allocation
	exempt  map[common.Address]bool
	vault   *big.Int
	events  []*types.Event
}

func newMockState(params *Params) *mockState {
	return &mockState{
		params: params,
		rounds: make(map[uint64]*Round),
		allocs: make(map[string]*Allocation),
		exempt: make(map[common.Address]bool),
		vault:  big.NewInt(0),
	}
}

func allocID(user common.Address, roundID uint64) string {
	return fmt.Sprintf("%s/%d", user.Hex(), roundID)
}

func (m *mockState) SaleParams() (*Params, error)    { return m.params.Clone(), nil }
func (m *mockState) SetSaleParams(p *Params) error   { m.params = p.Clone(); return nil }
func (m *mockState) SaleFunded() (bool, error)       { return m.funded, nil }
func (m *mockState) SetSaleFunded(funded bool) error { m.funded = funded; return nil }
func (m *mockState) RoundCounter() (uint64, error)   { return m.counter, nil }
func (m *mockState) SetRoundCounter(id uint64) error { m.counter = id; return nil }
func (m *mockState) RoundPut(round *Round) error     { m.rounds[round.ID] = round.Clone(); return nil }
func (m *mockState) NativeVault() (*big.Int, error)  { return new(big.Int).Set(m.vault), nil }
func (m *mockState) SetNativeVault(balance *big.Int) error {
	m.vault = new(big.Int).Set(balance)
	return nil
}
func (m *mockState) AppendEvent(evt *types.Event) { m.events = append(m.events, evt) }

func (m *mockState) RoundGet(id uint64) (*Round, bool, error) {
	round, ok := m.rounds[id]
	if !ok {
		return nil, false, nil
	}
	return round.Clone(), true, nil
}

func (m *mockState) AllocationGet(user common.Address, roundID uint64) (*Allocation, error) {
	if alloc, ok := m.allocs[allocID(user, roundID)]; ok {
		return alloc.Clone(), nil
	}
	return &Allocation{TotalAmount: big.NewInt(0), ClaimedAmount: big.NewInt(0)}, nil
}

func (m *mockState) AllocationPut(user common.Address, roundID uint64, alloc *Allocation) error {
	m.allocs[allocID(user, roundID)] = alloc.Clone()
	return nil
}

func (m *mockState) MinimumExcluded(addr common.Address) (bool, error) {
	return m.exempt[addr], nil
}

func (m *mockState) SetMinimumExcluded(addr common.Address, excluded bool) error {
	m.exempt[addr] = excluded
	return nil
}

func tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), pow10(18))
}

func usd(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), pow10(6))
}

func testParams() *Params {
	return &Params{
		Owner:          common.HexToAddress("0x01"),
		MinTokensToBuy: tokens(10),
		TotalSupply:    tokens(1_000_000_000),
		TokenDecimals:  18,
		StableDecimals: 6,
		NativeDecimals: 18,
	}
}

type staticOracle struct {
	quote oracle.Quote
	err   error
}

func (s staticOracle) LatestPrice() (oracle.Quote, error) {
	if s.err != nil {
		return oracle.Quote{}, s.err
	}
	return s.quote, nil
}

func newTestEngine(t *testing.T) (*Engine, *mockState) {
	t.Helper()
	state := newMockState(testParams())
	engine := NewEngine()
	engine.SetState(state)
	// $3000 per native unit, Chainlink-style 8 decimal quote.
	engine.SetOracle(staticOracle{quote: oracle.Quote{
		Price:     big.NewInt(300_000_000_000),
		Decimals:  8,
		Timestamp: time.Now(),
	}})
	return engine, state
}

func fundAndOpenRound(t *testing.T, engine *Engine, state *mockState) *Round {
	t.Helper()
	require.NoError(t, engine.PreFund(state.params.RequiredFunding()))
	// $0.01 per token, one million tokens for sale, $10,000 hardcap.
	round, err := engine.CreateRound(big.NewInt(10_000), big.NewInt(20_000), tokens(1_000_000), usd(10_000))
	require.NoError(t, err)
	require.NoError(t, engine.StartRound())
	return round
}

func TestPreFundGatesRoundCreation(t *testing.T) {
	engine, state := newTestEngine(t)

	_, err := engine.CreateRound(big.NewInt(10_000), big.NewInt(20_000), tokens(1_000_000), usd(10_000))
	require.ErrorIs(t, err, ErrNotFunded)

	short := new(big.Int).Sub(state.params.RequiredFunding(), big.NewInt(1))
	require.ErrorIs(t, engine.PreFund(short), ErrNotFunded)

	require.NoError(t, engine.PreFund(state.params.RequiredFunding()))
	require.ErrorIs(t, engine.PreFund(state.params.RequiredFunding()), ErrAlreadyFunded)

	round, err := engine.CreateRound(big.NewInt(10_000), big.NewInt(20_000), tokens(1_000_000), usd(10_000))
	require.NoError(t, err)
	require.Equal(t, uint64(1), round.ID)
	require.False(t, round.Active)
}

func TestRoundLifecycleOperatesOnLatest(t *testing.T) {
	engine, state := newTestEngine(t)
	require.NoError(t, engine.PreFund(state.params.RequiredFunding()))

	first, err := engine.CreateRound(big.NewInt(10_000), big.NewInt(20_000), tokens(1_000_000), usd(10_000))
	require.NoError(t, err)
	second, err := engine.CreateRound(big.NewInt(20_000), big.NewInt(40_000), tokens(500_000), usd(10_000))
	require.NoError(t, err)
	require.Equal(t, first.ID+1, second.ID)

	require.NoError(t, engine.StartRound())
	require.True(t, state.rounds[second.ID].Active)
	require.False(t, state.rounds[first.ID].Active)

	require.NoError(t, engine.UpdatePrice(big.NewInt(30_000)))
	require.Equal(t, big.NewInt(30_000), state.rounds[second.ID].Price)
	require.Equal(t, big.NewInt(10_000), state.rounds[first.ID].Price)

	require.NoError(t, engine.PauseRound())
	require.False(t, state.rounds[second.ID].Active)

	// Idempotent on an already paused round, no extra event.
	emitted := len(state.events)
	require.NoError(t, engine.PauseRound())
	require.Len(t, state.events, emitted)
}

func TestQuoteStablePayment(t *testing.T) {
	engine, state := newTestEngine(t)
	fundAndOpenRound(t, engine, state)

	// $100 at $0.01 per token buys 10,000 tokens.
	tokensOut, usdValue, err := engine.Quote(usd(100), false)
	require.NoError(t, err)
	require.Equal(t, usd(100), usdValue)
	require.Equal(t, tokens(10_000), tokensOut)
}

func TestQuoteNativePayment(t *testing.T) {
	engine, state := newTestEngine(t)
	fundAndOpenRound(t, engine, state)

	// 1 native unit at $3000 buys 300,000 tokens at $0.01.
	one := pow10(18)
	tokensOut, usdValue, err := engine.Quote(one, true)
	require.NoError(t, err)
	require.Equal(t, usd(3000), usdValue)
	require.Equal(t, tokens(300_000), tokensOut)
}

func TestQuoteFloorsTowardZero(t *testing.T) {
	engine, state := newTestEngine(t)
	fundAndOpenRound(t, engine, state)

	// 333,333,333,333 wei at $3000 is worth 999.99... micro-USD; the
	// conversion truncates to 999 before pricing tokens.
	tokensOut, usdValue, err := engine.Quote(big.NewInt(333_333_333_333), true)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(999), usdValue)
	// 999 micro-USD at 10,000 micro-USD per token is 0.0999 tokens.
	expected, _ := new(big.Int).SetString("99900000000000000", 10)
	require.Equal(t, expected, tokensOut)
}

func TestNativeToUSDScalesUpForFinerStable(t *testing.T) {
	// Quote and native precision together fall short of the stablecoin's,
	// so the conversion multiplies instead of dividing.
	quote := oracle.Quote{Price: big.NewInt(300), Decimals: 2}
	got := NativeToUSD(big.NewInt(1), quote, 0, 6)
	require.Equal(t, big.NewInt(3_000_000), got)

	// The default precisions still divide.
	quote = oracle.Quote{Price: big.NewInt(300_000_000_000), Decimals: 8}
	got = NativeToUSD(pow10(18), quote, 18, 6)
	require.Equal(t, big.NewInt(3_000_000_000), got)
}

func TestQuoteOracleUnavailable(t *testing.T) {
	engine, state := newTestEngine(t)
	fundAndOpenRound(t, engine, state)
	engine.SetOracle(staticOracle{err: oracle.ErrNoFreshQuote})

	_, _, err := engine.Quote(pow10(18), true)
	require.ErrorIs(t, err, ErrOracleUnavailable)

	// Stable payments never touch the oracle.
	_, _, err = engine.Quote(usd(100), false)
	require.NoError(t, err)
}

func TestPreparePurchaseEnforcesMinimum(t *testing.T) {
	engine, state := newTestEngine(t)
	fundAndOpenRound(t, engine, state)
	buyer := common.HexToAddress("0xB1")

	// $0.05 buys 5 tokens, below the 10 token minimum.
	_, err := engine.PreparePurchase(buyer, big.NewInt(50_000), false)
	require.ErrorIs(t, err, ErrBelowMinimum)

	require.NoError(t, engine.ExcludeFromMinimum(buyer, true))
	intent, err := engine.PreparePurchase(buyer, big.NewInt(50_000), false)
	require.NoError(t, err)
	require.Equal(t, tokens(5), intent.TokenAmount)

	require.NoError(t, engine.ExcludeFromMinimum(buyer, false))
	_, err = engine.PreparePurchase(buyer, big.NewInt(50_000), false)
	require.ErrorIs(t, err, ErrBelowMinimum)
}

func TestPreparePurchaseSupplyAndHardcap(t *testing.T) {
	engine, state := newTestEngine(t)
	fundAndOpenRound(t, engine, state)
	buyer := common.HexToAddress("0xB1")

	// The round sells 1,000,000 tokens; $10,001 would buy 1,000,100.
	_, err := engine.PreparePurchase(buyer, usd(10_001), false)
	require.ErrorIs(t, err, ErrSoldOut)

	// Shrink supply so the hardcap binds first.
	round := state.rounds[1]
	round.TokensToSell = tokens(10_000_000)
	state.rounds[1] = round
	_, err = engine.PreparePurchase(buyer, usd(10_001), false)
	require.ErrorIs(t, err, ErrHardcapReached)

	// Exactly at the caps succeeds.
	intent, err := engine.PreparePurchase(buyer, usd(10_000), false)
	require.NoError(t, err)
	require.Equal(t, tokens(1_000_000), intent.TokenAmount)
}

func TestPreparePurchaseRequiresActiveRound(t *testing.T) {
	engine, state := newTestEngine(t)
	fundAndOpenRound(t, engine, state)
	require.NoError(t, engine.PauseRound())

	_, err := engine.PreparePurchase(common.HexToAddress("0xB1"), usd(100), false)
	require.ErrorIs(t, err, ErrRoundInactive)
}

func TestApplyPurchaseUpdatesRoundAndAllocation(t *testing.T) {
	engine, state := newTestEngine(t)
	fundAndOpenRound(t, engine, state)
	buyer := common.HexToAddress("0xB1")

	intent, err := engine.PreparePurchase(buyer, usd(100), false)
	require.NoError(t, err)
	require.NoError(t, engine.ApplyPurchase(intent, common.HexToAddress("0x05"), false))

	round := state.rounds[1]
	require.Equal(t, tokens(10_000), round.TokensSold)
	require.Equal(t, usd(100), round.AmountRaised)

	alloc, err := engine.Allocation(buyer, 1)
	require.NoError(t, err)
	require.Equal(t, tokens(10_000), alloc.TotalAmount)
	require.Equal(t, big.NewInt(0), alloc.ClaimedAmount)
}

func TestApplyPurchaseStakedSkipsAllocation(t *testing.T) {
	engine, state := newTestEngine(t)
	fundAndOpenRound(t, engine, state)
	buyer := common.HexToAddress("0xB1")

	intent, err := engine.PreparePurchase(buyer, usd(100), false)
	require.NoError(t, err)
	require.NoError(t, engine.ApplyPurchase(intent, common.HexToAddress("0x05"), true))

	alloc, err := engine.Allocation(buyer, 1)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(0), alloc.TotalAmount)
	// Round counters still advance for staked purchases.
	require.Equal(t, tokens(10_000), state.rounds[1].TokensSold)
}

func TestApplyPurchaseNativeCreditsVault(t *testing.T) {
	engine, state := newTestEngine(t)
	fundAndOpenRound(t, engine, state)
	buyer := common.HexToAddress("0xB1")
	half := new(big.Int).Div(pow10(18), big.NewInt(2))

	intent, err := engine.PreparePurchase(buyer, half, true)
	require.NoError(t, err)
	require.NoError(t, engine.ApplyPurchase(intent, common.Address{}, false))
	require.Equal(t, half, state.vault)
}

func TestClaimLifecycle(t *testing.T) {
	engine, state := newTestEngine(t)
	fundAndOpenRound(t, engine, state)
	buyer := common.HexToAddress("0xB1")

	intent, err := engine.PreparePurchase(buyer, usd(100), false)
	require.NoError(t, err)
	require.NoError(t, engine.ApplyPurchase(intent, common.HexToAddress("0x05"), false))

	_, err = engine.Claim(buyer, 1)
	require.ErrorIs(t, err, ErrClaimDisabled)

	require.NoError(t, engine.EnableClaim(1, true))
	amount, err := engine.Claim(buyer, 1)
	require.NoError(t, err)
	require.Equal(t, tokens(10_000), amount)

	// Second claim is a successful no-op.
	amount, err = engine.Claim(buyer, 1)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(0), amount)

	_, err = engine.Claim(buyer, 9)
	require.ErrorIs(t, err, ErrRoundNotFound)
}

func TestTransferOwnership(t *testing.T) {
	engine, state := newTestEngine(t)
	next := common.HexToAddress("0x02")
	require.NoError(t, engine.TransferOwnership(next))
	require.Equal(t, next, state.params.Owner)
}

func TestSweepNative(t *testing.T) {
	engine, state := newTestEngine(t)
	state.vault = pow10(18)

	swept, err := engine.SweepNative()
	require.NoError(t, err)
	require.Equal(t, pow10(18), swept)
	require.Equal(t, big.NewInt(0), state.vault)
}

func TestRequiredFundingSplit(t *testing.T) {
	params := testParams()
	require.Equal(t, tokens(300_000_000), params.SaleAllocation())
	require.Equal(t, tokens(50_000_000), params.ReferralBudget())
	require.Equal(t, tokens(200_000_000), params.StakingBudget())
	require.Equal(t, tokens(550_000_000), params.RequiredFunding())
}
