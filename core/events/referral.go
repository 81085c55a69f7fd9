package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"tokensale/core/types"
)

const (
	// TypeReferralRecorded captures a new referrer/referee relationship.
	TypeReferralRecorded = "referral.recorded"
	// TypeReferralRewardsAdded captures the symmetric reward credit.
	TypeReferralRewardsAdded = "referral.rewardsAdded"
	// TypeReferralRewardSkipped signals a reward dropped by the budget cap
	// while the relationship itself was still recorded.
	TypeReferralRewardSkipped = "referral.rewardSkipped"
	// TypeReferralRewardsClaimed captures a payout of accrued rewards.
	TypeReferralRewardsClaimed = "referral.rewardsClaimed"
	// TypeReferralQualified marks a buyer crossing the qualification threshold.
	TypeReferralQualified = "referral.qualified"
)

// ReferralRecorded captures a new referral relationship.
type ReferralRecorded struct {
	Referrer common.Address
	Referee  common.Address
}

// EventType satisfies the Event interface.
func (ReferralRecorded) EventType() string { return TypeReferralRecorded }

// Event converts the payload into a broadcastable event.
func (e ReferralRecorded) Event() *types.Event {
	return &types.Event{Type: TypeReferralRecorded, Attributes: map[string]string{
		"referrer": formatAddress(e.Referrer),
		"referee":  formatAddress(e.Referee),
	}}
}

// ReferralRewardsAdded captures the two-sided reward credit.
type ReferralRewardsAdded struct {
	Referrer       common.Address
	Referee        common.Address
	ReferrerReward *big.Int
	RefereeReward  *big.Int
}

// EventType satisfies the Event interface.
func (ReferralRewardsAdded) EventType() string { return TypeReferralRewardsAdded }

// Event converts the payload into a broadcastable event.
func (e ReferralRewardsAdded) Event() *types.Event {
	return &types.Event{Type: TypeReferralRewardsAdded, Attributes: map[string]string{
		"referrer":       formatAddress(e.Referrer),
		"referee":        formatAddress(e.Referee),
		"referrerReward": formatAmount(e.ReferrerReward),
		"refereeReward":  formatAmount(e.RefereeReward),
	}}
}

// ReferralRewardSkipped signals graceful degradation under the reward budget.
type ReferralRewardSkipped struct {
	Referrer common.Address
	Referee  common.Address
	Reward   *big.Int
	Reason   string
}

// EventType satisfies the Event interface.
func (ReferralRewardSkipped) EventType() string { return TypeReferralRewardSkipped }

// Event converts the payload into a broadcastable event.
func (e ReferralRewardSkipped) Event() *types.Event {
	return &types.Event{Type: TypeReferralRewardSkipped, Attributes: map[string]string{
		"referrer": formatAddress(e.Referrer),
		"referee":  formatAddress(e.Referee),
		"reward":   formatAmount(e.Reward),
		"reason":   e.Reason,
	}}
}

// ReferralRewardsClaimed captures a payout of accrued referral rewards.
type ReferralRewardsClaimed struct {
	User   common.Address
	Amount *big.Int
}

// EventType satisfies the Event interface.
func (ReferralRewardsClaimed) EventType() string { return TypeReferralRewardsClaimed }

// Event converts the payload into a broadcastable event.
func (e ReferralRewardsClaimed) Event() *types.Event {
	return &types.Event{Type: TypeReferralRewardsClaimed, Attributes: map[string]string{
		"user":   formatAddress(e.User),
		"amount": formatAmount(e.Amount),
	}}
}

// ReferralQualified marks a buyer crossing the lifetime purchase threshold
// that makes them eligible to act as a referrer. The flag never resets.
type ReferralQualified struct {
	User          common.Address
	LifetimeTotal *big.Int
}

// EventType satisfies the Event interface.
func (ReferralQualified) EventType() string { return TypeReferralQualified }

// Event converts the payload into a broadcastable event.
func (e ReferralQualified) Event() *types.Event {
	return &types.Event{Type: TypeReferralQualified, Attributes: map[string]string{
		"user":          formatAddress(e.User),
		"lifetimeTotal": formatAmount(e.LifetimeTotal),
	}}
}
