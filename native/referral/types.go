package referral

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Record tracks a user's position in the referral program. The referrer link
// is a weak back-reference: set at most once, immutable thereafter, and only
// ever used for upward lookups. Reward counters are monotonic with
// ClaimedRewards bounded by TotalRewards.
type Record struct {
	Referrer          common.Address `json:"referrer"`
	HasReferrer       bool           `json:"hasReferrer"`
	TotalRewards      *big.Int       `json:"totalRewards"`
	ClaimedRewards    *big.Int       `json:"claimedRewards"`
	LifetimePurchased *big.Int       `json:"lifetimePurchased"`
	Qualified         bool           `json:"qualified"`
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	clone.TotalRewards = cloneBig(r.TotalRewards)
	clone.ClaimedRewards = cloneBig(r.ClaimedRewards)
	clone.LifetimePurchased = cloneBig(r.LifetimePurchased)
	return &clone
}

// Claimable reports the unclaimed reward remainder.
func (r *Record) Claimable() *big.Int {
	if r == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Sub(cloneBig(r.TotalRewards), cloneBig(r.ClaimedRewards))
}

func newRecord() *Record {
	return &Record{
		TotalRewards:      big.NewInt(0),
		ClaimedRewards:    big.NewInt(0),
		LifetimePurchased: big.NewInt(0),
	}
}

// Program holds the referral configuration and the running distribution
// total used to enforce the reward budget.
type Program struct {
	RewardPercent   uint32   `json:"rewardPercent"`
	MinimumPurchase *big.Int `json:"minimumPurchase"`
	RewardBudget    *big.Int `json:"rewardBudget"`
	Distributed     *big.Int `json:"distributed"`
}

// Clone returns a deep copy of the program.
func (p *Program) Clone() *Program {
	if p == nil {
		return nil
	}
	clone := *p
	clone.MinimumPurchase = cloneBig(p.MinimumPurchase)
	clone.RewardBudget = cloneBig(p.RewardBudget)
	clone.Distributed = cloneBig(p.Distributed)
	return &clone
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
