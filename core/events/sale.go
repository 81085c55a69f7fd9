package events

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"tokensale/core/types"
)

const (
	// TypeSaleFunded is emitted once the committed token allocation lands.
	TypeSaleFunded = "sale.funded"
	// TypeRoundCreated captures a freshly registered presale round.
	TypeRoundCreated = "sale.roundCreated"
	// TypeRoundStarted is emitted when a round begins accepting purchases.
	TypeRoundStarted = "sale.roundStarted"
	// TypeRoundPaused is emitted when purchases are suspended.
	TypeRoundPaused = "sale.roundPaused"
	// TypePriceUpdated records an admin price change with the old value for audit.
	TypePriceUpdated = "sale.priceUpdated"
	// TypeClaimEnabled records toggling of the claim gate for a round.
	TypeClaimEnabled = "sale.claimEnabled"
	// TypeTokensBought captures a settled purchase.
	TypeTokensBought = "sale.tokensBought"
	// TypeTokensClaimed captures a claim of a non-staked allocation.
	TypeTokensClaimed = "sale.tokensClaimed"
	// TypeOwnershipTransferred records a change of the engine owner.
	TypeOwnershipTransferred = "sale.ownershipTransferred"
	// TypeFundsWithdrawn records an owner sweep of collected funds.
	TypeFundsWithdrawn = "sale.fundsWithdrawn"
	// TypeMinimumExclusionUpdated records exclusion-list changes.
	TypeMinimumExclusionUpdated = "sale.minimumExclusionUpdated"
)

// SaleFunded is emitted exactly once when pre-funding succeeds.
type SaleFunded struct {
	SaleAllocation  *big.Int
	ReferralBudget  *big.Int
	StakingBudget   *big.Int
	ContractBalance *big.Int
}

// EventType satisfies the Event interface.
func (SaleFunded) EventType() string { return TypeSaleFunded }

// Event converts the payload into a broadcastable event.
func (e SaleFunded) Event() *types.Event {
	return &types.Event{Type: TypeSaleFunded, Attributes: map[string]string{
		"saleAllocation":  formatAmount(e.SaleAllocation),
		"referralBudget":  formatAmount(e.ReferralBudget),
		"stakingBudget":   formatAmount(e.StakingBudget),
		"contractBalance": formatAmount(e.ContractBalance),
	}}
}

// RoundCreated captures the immutable parameters of a new round.
type RoundCreated struct {
	RoundID        uint64
	Price          *big.Int
	NextStagePrice *big.Int
	TokensToSell   *big.Int
	UsdHardcap     *big.Int
}

// EventType satisfies the Event interface.
func (RoundCreated) EventType() string { return TypeRoundCreated }

// Event converts the payload into a broadcastable event.
func (e RoundCreated) Event() *types.Event {
	return &types.Event{Type: TypeRoundCreated, Attributes: map[string]string{
		"roundId":        strconv.FormatUint(e.RoundID, 10),
		"price":          formatAmount(e.Price),
		"nextStagePrice": formatAmount(e.NextStagePrice),
		"tokensToSell":   formatAmount(e.TokensToSell),
		"usdHardcap":     formatAmount(e.UsdHardcap),
	}}
}

// RoundStarted marks a round as accepting purchases.
type RoundStarted struct {
	RoundID uint64
}

// EventType satisfies the Event interface.
func (RoundStarted) EventType() string { return TypeRoundStarted }

// Event converts the payload into a broadcastable event.
func (e RoundStarted) Event() *types.Event {
	return &types.Event{Type: TypeRoundStarted, Attributes: map[string]string{
		"roundId": strconv.FormatUint(e.RoundID, 10),
	}}
}

// RoundPaused marks a round as suspended.
type RoundPaused struct {
	RoundID uint64
}

// EventType satisfies the Event interface.
func (RoundPaused) EventType() string { return TypeRoundPaused }

// Event converts the payload into a broadcastable event.
func (e RoundPaused) Event() *types.Event {
	return &types.Event{Type: TypeRoundPaused, Attributes: map[string]string{
		"roundId": strconv.FormatUint(e.RoundID, 10),
	}}
}

// PriceUpdated records an audit trail of admin price changes.
type PriceUpdated struct {
	RoundID  uint64
	OldPrice *big.Int
	NewPrice *big.Int
}

// EventType satisfies the Event interface.
func (PriceUpdated) EventType() string { return TypePriceUpdated }

// Event converts the payload into a broadcastable event.
func (e PriceUpdated) Event() *types.Event {
	return &types.Event{Type: TypePriceUpdated, Attributes: map[string]string{
		"roundId":  strconv.FormatUint(e.RoundID, 10),
		"oldPrice": formatAmount(e.OldPrice),
		"newPrice": formatAmount(e.NewPrice),
	}}
}

// ClaimEnabled records toggling of a round's claim gate.
type ClaimEnabled struct {
	RoundID uint64
	Enabled bool
}

// EventType satisfies the Event interface.
func (ClaimEnabled) EventType() string { return TypeClaimEnabled }

// Event converts the payload into a broadcastable event.
func (e ClaimEnabled) Event() *types.Event {
	return &types.Event{Type: TypeClaimEnabled, Attributes: map[string]string{
		"roundId": strconv.FormatUint(e.RoundID, 10),
		"enabled": strconv.FormatBool(e.Enabled),
	}}
}

// TokensBought captures a settled purchase. PaymentToken is the zero address
// for native-currency purchases, mirroring the wire convention of the sale.
type TokensBought struct {
	Buyer        common.Address
	RoundID      uint64
	PaymentToken common.Address
	AmountPaid   *big.Int
	UsdValue     *big.Int
	TokensBought *big.Int
}

// EventType satisfies the Event interface.
func (TokensBought) EventType() string { return TypeTokensBought }

// Event converts the payload into a broadcastable event.
func (e TokensBought) Event() *types.Event {
	return &types.Event{Type: TypeTokensBought, Attributes: map[string]string{
		"buyer":        formatAddress(e.Buyer),
		"roundId":      strconv.FormatUint(e.RoundID, 10),
		"paymentToken": formatAddress(e.PaymentToken),
		"amountPaid":   formatAmount(e.AmountPaid),
		"usdValue":     formatAmount(e.UsdValue),
		"tokensBought": formatAmount(e.TokensBought),
	}}
}

// TokensClaimed captures a claim of a round allocation.
type TokensClaimed struct {
	User    common.Address
	RoundID uint64
	Amount  *big.Int
}

// EventType satisfies the Event interface.
func (TokensClaimed) EventType() string { return TypeTokensClaimed }

// Event converts the payload into a broadcastable event.
func (e TokensClaimed) Event() *types.Event {
	return &types.Event{Type: TypeTokensClaimed, Attributes: map[string]string{
		"user":    formatAddress(e.User),
		"roundId": strconv.FormatUint(e.RoundID, 10),
		"amount":  formatAmount(e.Amount),
	}}
}

// OwnershipTransferred records a change of engine ownership.
type OwnershipTransferred struct {
	OldOwner common.Address
	NewOwner common.Address
}

// EventType satisfies the Event interface.
func (OwnershipTransferred) EventType() string { return TypeOwnershipTransferred }

// Event converts the payload into a broadcastable event.
func (e OwnershipTransferred) Event() *types.Event {
	return &types.Event{Type: TypeOwnershipTransferred, Attributes: map[string]string{
		"oldOwner": formatAddress(e.OldOwner),
		"newOwner": formatAddress(e.NewOwner),
	}}
}

// FundsWithdrawn records an owner sweep. Token is the zero address when the
// native balance was swept.
type FundsWithdrawn struct {
	Owner  common.Address
	Token  common.Address
	Amount *big.Int
}

// EventType satisfies the Event interface.
func (FundsWithdrawn) EventType() string { return TypeFundsWithdrawn }

// Event converts the payload into a broadcastable event.
func (e FundsWithdrawn) Event() *types.Event {
	return &types.Event{Type: TypeFundsWithdrawn, Attributes: map[string]string{
		"owner":  formatAddress(e.Owner),
		"token":  formatAddress(e.Token),
		"amount": formatAmount(e.Amount),
	}}
}

// MinimumExclusionUpdated records changes to the minimum-purchase exclusion list.
type MinimumExclusionUpdated struct {
	Account  common.Address
	Excluded bool
}

// EventType satisfies the Event interface.
func (MinimumExclusionUpdated) EventType() string { return TypeMinimumExclusionUpdated }

// Event converts the payload into a broadcastable event.
func (e MinimumExclusionUpdated) Event() *types.Event {
	return &types.Event{Type: TypeMinimumExclusionUpdated, Attributes: map[string]string{
		"account":  formatAddress(e.Account),
		"excluded": strconv.FormatBool(e.Excluded),
	}}
}
