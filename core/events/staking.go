package events

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"tokensale/core/types"
)

const (
	// TypeTokensStaked captures a new stake position opened by a purchase.
	TypeTokensStaked = "staking.tokensStaked"
	// TypeStakeWithdrawn captures the payout of principal plus fixed reward.
	TypeStakeWithdrawn = "staking.stakeWithdrawn"
	// TypeStakingStatusChanged records admin toggles of the pool.
	TypeStakingStatusChanged = "staking.statusChanged"
	// TypeStakingCapUpdated records changes to the pool cap.
	TypeStakingCapUpdated = "staking.capUpdated"
	// TypeStakingRewardBudgetUpdated records changes to the reward budget.
	TypeStakingRewardBudgetUpdated = "staking.rewardBudgetUpdated"
	// TypeStakingPoolDisabled signals the automatic shutdown triggered when an
	// admission would breach the cap or the reward budget.
	TypeStakingPoolDisabled = "staking.poolDisabled"
)

// TokensStaked captures a freshly opened stake position.
type TokensStaked struct {
	User            common.Address
	Amount          *big.Int
	PotentialReward *big.Int
	UnlockTimestamp uint64
}

// EventType satisfies the Event interface.
func (TokensStaked) EventType() string { return TypeTokensStaked }

// Event converts the payload into a broadcastable event.
func (e TokensStaked) Event() *types.Event {
	return &types.Event{Type: TypeTokensStaked, Attributes: map[string]string{
		"user":            formatAddress(e.User),
		"amount":          formatAmount(e.Amount),
		"potentialReward": formatAmount(e.PotentialReward),
		"unlockTimestamp": strconv.FormatUint(e.UnlockTimestamp, 10),
	}}
}

// StakeWithdrawn captures a completed withdrawal.
type StakeWithdrawn struct {
	User      common.Address
	Principal *big.Int
	Reward    *big.Int
}

// EventType satisfies the Event interface.
func (StakeWithdrawn) EventType() string { return TypeStakeWithdrawn }

// Event converts the payload into a broadcastable event.
func (e StakeWithdrawn) Event() *types.Event {
	total := new(big.Int).Add(cloneOrZero(e.Principal), cloneOrZero(e.Reward))
	return &types.Event{Type: TypeStakeWithdrawn, Attributes: map[string]string{
		"user":      formatAddress(e.User),
		"principal": formatAmount(e.Principal),
		"reward":    formatAmount(e.Reward),
		"total":     total.String(),
	}}
}

// StakingStatusChanged records an admin toggle of the pool.
type StakingStatusChanged struct {
	Active bool
}

// EventType satisfies the Event interface.
func (StakingStatusChanged) EventType() string { return TypeStakingStatusChanged }

// Event converts the payload into a broadcastable event.
func (e StakingStatusChanged) Event() *types.Event {
	return &types.Event{Type: TypeStakingStatusChanged, Attributes: map[string]string{
		"active": strconv.FormatBool(e.Active),
	}}
}

// StakingCapUpdated records a change to the pool cap.
type StakingCapUpdated struct {
	OldCap *big.Int
	NewCap *big.Int
}

// EventType satisfies the Event interface.
func (StakingCapUpdated) EventType() string { return TypeStakingCapUpdated }

// Event converts the payload into a broadcastable event.
func (e StakingCapUpdated) Event() *types.Event {
	return &types.Event{Type: TypeStakingCapUpdated, Attributes: map[string]string{
		"oldCap": formatAmount(e.OldCap),
		"newCap": formatAmount(e.NewCap),
	}}
}

// StakingRewardBudgetUpdated records a change to the reward budget.
type StakingRewardBudgetUpdated struct {
	OldBudget *big.Int
	NewBudget *big.Int
}

// EventType satisfies the Event interface.
func (StakingRewardBudgetUpdated) EventType() string { return TypeStakingRewardBudgetUpdated }

// Event converts the payload into a broadcastable event.
func (e StakingRewardBudgetUpdated) Event() *types.Event {
	return &types.Event{Type: TypeStakingRewardBudgetUpdated, Attributes: map[string]string{
		"oldBudget": formatAmount(e.OldBudget),
		"newBudget": formatAmount(e.NewBudget),
	}}
}

// StakingPoolDisabled signals an automatic pool shutdown. Reason names the
// bound that would have been breached by the rejected admission.
type StakingPoolDisabled struct {
	Reason string
	User   common.Address
	Amount *big.Int
}

// EventType satisfies the Event interface.
func (StakingPoolDisabled) EventType() string { return TypeStakingPoolDisabled }

// Event converts the payload into a broadcastable event.
func (e StakingPoolDisabled) Event() *types.Event {
	return &types.Event{Type: TypeStakingPoolDisabled, Attributes: map[string]string{
		"reason": e.Reason,
		"user":   formatAddress(e.User),
		"amount": formatAmount(e.Amount),
	}}
}

func cloneOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
