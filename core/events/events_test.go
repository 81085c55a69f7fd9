package events

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestTokensBoughtAttributes(t *testing.T) {
	buyer := common.HexToAddress("0xB1")
	stable := common.HexToAddress("0x1002")

	evt := TokensBought{
		Buyer:        buyer,
		RoundID:      3,
		PaymentToken: stable,
		AmountPaid:   big.NewInt(100),
		UsdValue:     big.NewInt(100),
		TokensBought: big.NewInt(10_000),
	}.Event()

	require.Equal(t, TypeTokensBought, evt.Type)
	require.Equal(t, buyer.Hex(), evt.Attributes["buyer"])
	require.Equal(t, "3", evt.Attributes["roundId"])
	require.Equal(t, "10000", evt.Attributes["tokensBought"])
}

func TestEventPayloadsSatisfyInterface(t *testing.T) {
	payloads := []Event{
		SaleFunded{},
		RoundCreated{},
		RoundStarted{},
		RoundPaused{},
		PriceUpdated{},
		ClaimEnabled{},
		TokensBought{},
		TokensClaimed{},
		OwnershipTransferred{},
		FundsWithdrawn{},
		MinimumExclusionUpdated{},
		ReferralRecorded{},
		ReferralRewardsAdded{},
		ReferralRewardSkipped{},
		ReferralRewardsClaimed{},
		ReferralQualified{},
		TokensStaked{},
		StakeWithdrawn{},
		StakingStatusChanged{},
		StakingCapUpdated{},
		StakingRewardBudgetUpdated{},
		StakingPoolDisabled{},
	}
	seen := make(map[string]bool)
	for _, payload := range payloads {
		require.NotEmpty(t, payload.EventType())
		require.False(t, seen[payload.EventType()], "duplicate event type %s", payload.EventType())
		seen[payload.EventType()] = true
	}
}

func TestNilAmountsFormatAsZero(t *testing.T) {
	evt := StakeWithdrawn{User: common.HexToAddress("0x51")}.Event()
	require.Equal(t, "0", evt.Attributes["principal"])
	require.Equal(t, "0", evt.Attributes["reward"])
}
