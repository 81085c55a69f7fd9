package staking

import "math/big"

// LockDuration is the fixed stake lock applied at admission.
const LockDuration uint64 = 365 * 24 * 60 * 60 // 365 days

// Position captures a single stake. A user holds at most one live position;
// Withdrawn transitions one way from false to true.
type Position struct {
	StakedAmount     *big.Int `json:"stakedAmount"`
	PotentialReward  *big.Int `json:"potentialReward"`
	StakingTimestamp uint64   `json:"stakingTimestamp"`
	UnlockTimestamp  uint64   `json:"unlockTimestamp"`
	Withdrawn        bool     `json:"withdrawn"`
}

// Clone returns a deep copy of the position.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := *p
	clone.StakedAmount = cloneBig(p.StakedAmount)
	clone.PotentialReward = cloneBig(p.PotentialReward)
	return &clone
}

// Live reports whether the position still holds funds.
func (p *Position) Live() bool {
	return p != nil && !p.Withdrawn
}

// Pool is the process-wide staking pool. TotalStaked never exceeds Cap and
// CommittedRewards never exceeds RewardBudget; an admission that would break
// either bound deactivates the whole pool instead of rejecting just the
// offending stake.
type Pool struct {
	TotalStaked      *big.Int `json:"totalStaked"`
	Cap              *big.Int `json:"cap"`
	ApyPercent       uint32   `json:"apyPercent"`
	Active           bool     `json:"active"`
	RewardBudget     *big.Int `json:"rewardBudget"`
	CommittedRewards *big.Int `json:"committedRewards"`
}

// Clone returns a deep copy of the pool.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	clone := *p
	clone.TotalStaked = cloneBig(p.TotalStaked)
	clone.Cap = cloneBig(p.Cap)
	clone.RewardBudget = cloneBig(p.RewardBudget)
	clone.CommittedRewards = cloneBig(p.CommittedRewards)
	return &clone
}

// Reward computes the fixed reward for a principal at the pool's APY. There
// is no proration: the full reward is owed at any point at or after unlock.
func (p *Pool) Reward(principal *big.Int) *big.Int {
	reward := new(big.Int).Mul(cloneBig(principal), big.NewInt(int64(p.ApyPercent)))
	return reward.Quo(reward, big.NewInt(100))
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
