package sale

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"tokensale/core/events"
	"tokensale/core/types"
	"tokensale/native/oracle"
)

// State is the minimal functionality the sale engine needs from the
// surrounding state implementation. All accessors return defensive copies;
// mutations only become visible once the enclosing transaction commits.
type State interface {
	SaleParams() (*Params, error)
	SetSaleParams(*Params) error
	SaleFunded() (bool, error)
	SetSaleFunded(funded bool) error
	RoundCounter() (uint64, error)
	SetRoundCounter(id uint64) error
	RoundGet(id uint64) (*Round, bool, error)
	RoundPut(round *Round) error
	AllocationGet(user common.Address, roundID uint64) (*Allocation, error)
	AllocationPut(user common.Address, roundID uint64, alloc *Allocation) error
	MinimumExcluded(addr common.Address) (bool, error)
	SetMinimumExcluded(addr common.Address, excluded bool) error
	NativeVault() (*big.Int, error)
	SetNativeVault(balance *big.Int) error
	AppendEvent(evt *types.Event)
}

// Engine validates purchases against the active round, maintains the round
// ledger and claimable allocations, and owns the funding gate. It performs no
// token movements itself; callers settle payments through the token ledgers
// once the engine has accepted the mutation.
type Engine struct {
	state State
	feed  oracle.PriceOracle
}

// NewEngine creates a sale engine without state or oracle wired; callers
// configure both before use.
func NewEngine() *Engine {
	return &Engine{}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state State) { e.state = state }

// SetOracle configures the native-currency price feed.
func (e *Engine) SetOracle(feed oracle.PriceOracle) { e.feed = feed }

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return fmt.Errorf("sale: engine state not configured")
	}
	return nil
}

func (e *Engine) params() (*Params, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	params, err := e.state.SaleParams()
	if err != nil {
		return nil, err
	}
	if params == nil {
		return nil, fmt.Errorf("sale: params not initialised")
	}
	return params, nil
}

// Params returns the current sale parameters.
func (e *Engine) Params() (*Params, error) {
	return e.params()
}

// Funded reports whether the committed token allocation has been received.
func (e *Engine) Funded() (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	return e.state.SaleFunded()
}

// PreFund verifies that the engine's sale-token account holds the committed
// allocation (sale + referral + staking shares of the supply) and arms the
// funding gate. The transition is one-way.
func (e *Engine) PreFund(contractBalance *big.Int) error {
	params, err := e.params()
	if err != nil {
		return err
	}
	funded, err := e.state.SaleFunded()
	if err != nil {
		return err
	}
	if funded {
		return ErrAlreadyFunded
	}
	required := params.RequiredFunding()
	if contractBalance == nil || contractBalance.Cmp(required) < 0 {
		return fmt.Errorf("%w: need %s, have %s", ErrNotFunded, required, cloneBig(contractBalance))
	}
	if err := e.state.SetSaleFunded(true); err != nil {
		return err
	}
	e.state.AppendEvent(events.SaleFunded{
		SaleAllocation:  params.SaleAllocation(),
		ReferralBudget:  params.ReferralBudget(),
		StakingBudget:   params.StakingBudget(),
		ContractBalance: cloneBig(contractBalance),
	}.Event())
	return nil
}

// CreateRound registers the next presale round. Rounds start paused and are
// never deleted; identifiers are sequential starting at 1.
func (e *Engine) CreateRound(price, nextStagePrice, tokensToSell, usdHardcap *big.Int) (*Round, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	funded, err := e.state.SaleFunded()
	if err != nil {
		return nil, err
	}
	if !funded {
		return nil, ErrNotFunded
	}
	if price == nil || price.Sign() <= 0 || tokensToSell == nil || tokensToSell.Sign() <= 0 ||
		usdHardcap == nil || usdHardcap.Sign() <= 0 {
		return nil, ErrInvalidParams
	}
	counter, err := e.state.RoundCounter()
	if err != nil {
		return nil, err
	}
	round := &Round{
		ID:             counter + 1,
		Price:          cloneBig(price),
		NextStagePrice: cloneBig(nextStagePrice),
		TokensToSell:   cloneBig(tokensToSell),
		TokensSold:     big.NewInt(0),
		UsdHardcap:     cloneBig(usdHardcap),
		AmountRaised:   big.NewInt(0),
	}
	if err := e.state.RoundPut(round); err != nil {
		return nil, err
	}
	if err := e.state.SetRoundCounter(round.ID); err != nil {
		return nil, err
	}
	e.state.AppendEvent(events.RoundCreated{
		RoundID:        round.ID,
		Price:          round.Price,
		NextStagePrice: round.NextStagePrice,
		TokensToSell:   round.TokensToSell,
		UsdHardcap:     round.UsdHardcap,
	}.Event())
	return round.Clone(), nil
}

func (e *Engine) latestRound() (*Round, error) {
	counter, err := e.state.RoundCounter()
	if err != nil {
		return nil, err
	}
	if counter == 0 {
		return nil, ErrRoundNotFound
	}
	round, ok, err := e.state.RoundGet(counter)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRoundNotFound
	}
	return round, nil
}

// StartRound activates the latest round for purchases.
func (e *Engine) StartRound() error {
	if err := e.ready(); err != nil {
		return err
	}
	round, err := e.latestRound()
	if err != nil {
		return err
	}
	if round.Active {
		return nil
	}
	round.Active = true
	if err := e.state.RoundPut(round); err != nil {
		return err
	}
	e.state.AppendEvent(events.RoundStarted{RoundID: round.ID}.Event())
	return nil
}

// PauseRound suspends purchases on the latest round.
func (e *Engine) PauseRound() error {
	if err := e.ready(); err != nil {
		return err
	}
	round, err := e.latestRound()
	if err != nil {
		return err
	}
	if !round.Active {
		return nil
	}
	round.Active = false
	if err := e.state.RoundPut(round); err != nil {
		return err
	}
	e.state.AppendEvent(events.RoundPaused{RoundID: round.ID}.Event())
	return nil
}

// UpdatePrice changes the latest round's per-token price, recording the old
// value for audit.
func (e *Engine) UpdatePrice(newPrice *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if newPrice == nil || newPrice.Sign() <= 0 {
		return ErrInvalidParams
	}
	round, err := e.latestRound()
	if err != nil {
		return err
	}
	oldPrice := cloneBig(round.Price)
	round.Price = cloneBig(newPrice)
	if err := e.state.RoundPut(round); err != nil {
		return err
	}
	e.state.AppendEvent(events.PriceUpdated{RoundID: round.ID, OldPrice: oldPrice, NewPrice: round.Price}.Event())
	return nil
}

// EnableClaim toggles the claim gate for a specific round.
func (e *Engine) EnableClaim(roundID uint64, enabled bool) error {
	if err := e.ready(); err != nil {
		return err
	}
	round, ok, err := e.state.RoundGet(roundID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrRoundNotFound
	}
	round.ClaimEnabled = enabled
	if err := e.state.RoundPut(round); err != nil {
		return err
	}
	e.state.AppendEvent(events.ClaimEnabled{RoundID: roundID, Enabled: enabled}.Event())
	return nil
}

// Round returns a copy of the identified round.
func (e *Engine) Round(id uint64) (*Round, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	round, ok, err := e.state.RoundGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRoundNotFound
	}
	return round, nil
}

// ActiveRound returns the latest round if it is accepting purchases.
func (e *Engine) ActiveRound() (*Round, error) {
	round, err := e.latestRound()
	if err != nil {
		if err == ErrRoundNotFound {
			return nil, ErrRoundInactive
		}
		return nil, err
	}
	if !round.Active {
		return nil, ErrRoundInactive
	}
	return round, nil
}

// Quote converts a payment amount into the token amount it buys at the
// active round's price, along with the USD value of the payment in stablecoin
// precision. Native payments consult the price oracle and fail with
// ErrOracleUnavailable when no fresh quote exists. Quote performs no
// mutation.
func (e *Engine) Quote(paymentAmount *big.Int, payingInNative bool) (tokens, usdValue *big.Int, err error) {
	if err := e.ready(); err != nil {
		return nil, nil, err
	}
	if paymentAmount == nil || paymentAmount.Sign() <= 0 {
		return nil, nil, ErrInvalidAmount
	}
	params, err := e.params()
	if err != nil {
		return nil, nil, err
	}
	round, err := e.ActiveRound()
	if err != nil {
		return nil, nil, err
	}
	if payingInNative {
		if e.feed == nil {
			return nil, nil, ErrOracleUnavailable
		}
		quote, ferr := e.feed.LatestPrice()
		if ferr != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrOracleUnavailable, ferr)
		}
		usdValue = NativeToUSD(paymentAmount, quote, params.NativeDecimals, params.StableDecimals)
	} else {
		usdValue = cloneBig(paymentAmount)
	}
	tokens = TokensForUSD(usdValue, round.Price, params.TokenDecimals)
	return tokens, usdValue, nil
}

// PreparePurchase validates a payment against the active round and returns a
// side-effect-free intent the caller can commit later. Validation order
// mirrors the purchase pipeline: active round, quote, minimum, supply cap,
// USD hardcap.
func (e *Engine) PreparePurchase(buyer common.Address, paymentAmount *big.Int, payingInNative bool) (*PurchaseIntent, error) {
	tokens, usdValue, err := e.Quote(paymentAmount, payingInNative)
	if err != nil {
		return nil, err
	}
	params, err := e.params()
	if err != nil {
		return nil, err
	}
	round, err := e.ActiveRound()
	if err != nil {
		return nil, err
	}
	if tokens.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	excluded, err := e.state.MinimumExcluded(buyer)
	if err != nil {
		return nil, err
	}
	if !excluded && params.MinTokensToBuy != nil && tokens.Cmp(params.MinTokensToBuy) < 0 {
		return nil, ErrBelowMinimum
	}
	sold := new(big.Int).Add(cloneBig(round.TokensSold), tokens)
	if sold.Cmp(round.TokensToSell) > 0 {
		return nil, ErrSoldOut
	}
	raised := new(big.Int).Add(cloneBig(round.AmountRaised), usdValue)
	if raised.Cmp(round.UsdHardcap) > 0 {
		return nil, ErrHardcapReached
	}
	return &PurchaseIntent{
		Buyer:       buyer,
		RoundID:     round.ID,
		Native:      payingInNative,
		AmountPaid:  cloneBig(paymentAmount),
		UsdValue:    usdValue,
		TokenAmount: tokens,
	}, nil
}

// ApplyPurchase records a prepared purchase: round counters advance, the
// native vault absorbs native payments, and unless the tokens were routed to
// a stake the buyer's claimable allocation grows. The caps are re-checked so
// a stale intent can never overshoot them.
func (e *Engine) ApplyPurchase(intent *PurchaseIntent, paymentToken common.Address, staked bool) error {
	if err := e.ready(); err != nil {
		return err
	}
	if intent == nil {
		return ErrInvalidAmount
	}
	round, ok, err := e.state.RoundGet(intent.RoundID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrRoundNotFound
	}
	if !round.Active {
		return ErrRoundInactive
	}
	sold := new(big.Int).Add(cloneBig(round.TokensSold), intent.TokenAmount)
	if sold.Cmp(round.TokensToSell) > 0 {
		return ErrSoldOut
	}
	raised := new(big.Int).Add(cloneBig(round.AmountRaised), intent.UsdValue)
	if raised.Cmp(round.UsdHardcap) > 0 {
		return ErrHardcapReached
	}
	round.TokensSold = sold
	round.AmountRaised = raised
	if err := e.state.RoundPut(round); err != nil {
		return err
	}
	if intent.Native {
		vault, err := e.state.NativeVault()
		if err != nil {
			return err
		}
		if err := e.state.SetNativeVault(new(big.Int).Add(vault, intent.AmountPaid)); err != nil {
			return err
		}
	}
	if !staked {
		alloc, err := e.state.AllocationGet(intent.Buyer, intent.RoundID)
		if err != nil {
			return err
		}
		if alloc == nil {
			alloc = &Allocation{TotalAmount: big.NewInt(0), ClaimedAmount: big.NewInt(0)}
		}
		alloc.TotalAmount = new(big.Int).Add(cloneBig(alloc.TotalAmount), intent.TokenAmount)
		if err := e.state.AllocationPut(intent.Buyer, intent.RoundID, alloc); err != nil {
			return err
		}
	}
	e.state.AppendEvent(events.TokensBought{
		Buyer:        intent.Buyer,
		RoundID:      intent.RoundID,
		PaymentToken: paymentToken,
		AmountPaid:   cloneBig(intent.AmountPaid),
		UsdValue:     cloneBig(intent.UsdValue),
		TokensBought: cloneBig(intent.TokenAmount),
	}.Event())
	return nil
}

// Claim marks the caller's unclaimed allocation for the round as claimed and
// returns the amount the caller must receive from the token reserve. Claiming
// with nothing outstanding is a no-op success returning zero.
func (e *Engine) Claim(user common.Address, roundID uint64) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	round, ok, err := e.state.RoundGet(roundID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRoundNotFound
	}
	if !round.ClaimEnabled {
		return nil, ErrClaimDisabled
	}
	alloc, err := e.state.AllocationGet(user, roundID)
	if err != nil {
		return nil, err
	}
	claimable := alloc.Claimable()
	if claimable.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	alloc.ClaimedAmount = cloneBig(alloc.TotalAmount)
	if err := e.state.AllocationPut(user, roundID, alloc); err != nil {
		return nil, err
	}
	e.state.AppendEvent(events.TokensClaimed{User: user, RoundID: roundID, Amount: claimable}.Event())
	return claimable, nil
}

// Allocation returns a copy of the user's allocation in the round.
func (e *Engine) Allocation(user common.Address, roundID uint64) (*Allocation, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.state.AllocationGet(user, roundID)
}

// TransferOwnership hands the admin role to a new owner address.
func (e *Engine) TransferOwnership(newOwner common.Address) error {
	params, err := e.params()
	if err != nil {
		return err
	}
	oldOwner := params.Owner
	params.Owner = newOwner
	if err := e.state.SetSaleParams(params); err != nil {
		return err
	}
	e.state.AppendEvent(events.OwnershipTransferred{OldOwner: oldOwner, NewOwner: newOwner}.Event())
	return nil
}

// ExcludeFromMinimum adds or removes an account from the minimum-purchase
// exclusion list.
func (e *Engine) ExcludeFromMinimum(account common.Address, excluded bool) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.state.SetMinimumExcluded(account, excluded); err != nil {
		return err
	}
	e.state.AppendEvent(events.MinimumExclusionUpdated{Account: account, Excluded: excluded}.Event())
	return nil
}

// SweepNative empties the native-currency vault to the owner, returning the
// swept amount.
func (e *Engine) SweepNative() (*big.Int, error) {
	params, err := e.params()
	if err != nil {
		return nil, err
	}
	vault, err := e.state.NativeVault()
	if err != nil {
		return nil, err
	}
	if err := e.state.SetNativeVault(big.NewInt(0)); err != nil {
		return nil, err
	}
	e.state.AppendEvent(events.FundsWithdrawn{Owner: params.Owner, Token: common.Address{}, Amount: cloneBig(vault)}.Event())
	return vault, nil
}
