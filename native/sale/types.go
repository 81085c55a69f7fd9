package sale

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Round captures one presale stage. Price fields use stablecoin precision;
// token amounts use sale-token base units. Counters only ever grow and are
// bounded by their caps.
type Round struct {
	ID             uint64   `json:"id"`
	Price          *big.Int `json:"price"`
	NextStagePrice *big.Int `json:"nextStagePrice"`
	TokensToSell   *big.Int `json:"tokensToSell"`
	TokensSold     *big.Int `json:"tokensSold"`
	UsdHardcap     *big.Int `json:"usdHardcap"`
	AmountRaised   *big.Int `json:"amountRaised"`
	Active         bool     `json:"active"`
	ClaimEnabled   bool     `json:"claimEnabled"`
}

// Clone returns a deep copy of the round.
func (r *Round) Clone() *Round {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Price = cloneBig(r.Price)
	clone.NextStagePrice = cloneBig(r.NextStagePrice)
	clone.TokensToSell = cloneBig(r.TokensToSell)
	clone.TokensSold = cloneBig(r.TokensSold)
	clone.UsdHardcap = cloneBig(r.UsdHardcap)
	clone.AmountRaised = cloneBig(r.AmountRaised)
	return &clone
}

// TokensRemaining reports the unsold supply of the round.
func (r *Round) TokensRemaining() *big.Int {
	if r == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Sub(cloneBig(r.TokensToSell), cloneBig(r.TokensSold))
}

// Allocation tracks a user's purchases and claims within a single round.
type Allocation struct {
	TotalAmount   *big.Int `json:"totalAmount"`
	ClaimedAmount *big.Int `json:"claimedAmount"`
}

// Clone returns a deep copy of the allocation.
func (a *Allocation) Clone() *Allocation {
	if a == nil {
		return nil
	}
	return &Allocation{
		TotalAmount:   cloneBig(a.TotalAmount),
		ClaimedAmount: cloneBig(a.ClaimedAmount),
	}
}

// Claimable reports the unclaimed remainder of the allocation.
func (a *Allocation) Claimable() *big.Int {
	if a == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Sub(cloneBig(a.TotalAmount), cloneBig(a.ClaimedAmount))
}

// Params is the owner-gated global configuration of the sale. Every mutation
// goes through a typed admin operation with an actor check; the struct itself
// never leaks as shared mutable state.
type Params struct {
	Owner          common.Address `json:"owner"`
	MinTokensToBuy *big.Int       `json:"minTokensToBuy"`
	TotalSupply    *big.Int       `json:"totalSupply"`
	TokenDecimals  uint8          `json:"tokenDecimals"`
	StableDecimals uint8          `json:"stableDecimals"`
	NativeDecimals uint8          `json:"nativeDecimals"`
}

// Clone returns a deep copy of the parameters.
func (p *Params) Clone() *Params {
	if p == nil {
		return nil
	}
	clone := *p
	clone.MinTokensToBuy = cloneBig(p.MinTokensToBuy)
	clone.TotalSupply = cloneBig(p.TotalSupply)
	return &clone
}

// Funding allocation shares of the total supply, in percent. The contract
// must hold the sum of all three before rounds can be created.
const (
	SaleAllocationPercent     = 30
	ReferralAllocationPercent = 5
	StakingAllocationPercent  = 20
)

// SaleAllocation returns the share of the supply reserved for the presale.
func (p *Params) SaleAllocation() *big.Int {
	return percentOf(p.TotalSupply, SaleAllocationPercent)
}

// ReferralBudget returns the share of the supply reserved for referral rewards.
func (p *Params) ReferralBudget() *big.Int {
	return percentOf(p.TotalSupply, ReferralAllocationPercent)
}

// StakingBudget returns the share of the supply reserved for staking rewards.
func (p *Params) StakingBudget() *big.Int {
	return percentOf(p.TotalSupply, StakingAllocationPercent)
}

// RequiredFunding returns the total pre-funding requirement.
func (p *Params) RequiredFunding() *big.Int {
	total := p.SaleAllocation()
	total.Add(total, p.ReferralBudget())
	total.Add(total, p.StakingBudget())
	return total
}

// PurchaseIntent is the validated outcome of quoting a payment against the
// active round. It carries no side effects; the engine applies it separately
// so the caller can interleave referral and staking checks first.
type PurchaseIntent struct {
	Buyer       common.Address
	RoundID     uint64
	Native      bool
	AmountPaid  *big.Int
	UsdValue    *big.Int
	TokenAmount *big.Int
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func percentOf(v *big.Int, pct int64) *big.Int {
	out := new(big.Int).Mul(cloneBig(v), big.NewInt(pct))
	return out.Quo(out, big.NewInt(100))
}
