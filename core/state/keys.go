package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

const (
	keySaleParams      = "sale/params"
	keySaleFunded      = "sale/funded"
	keyRoundCounter    = "sale/counter"
	keyNativeVault     = "sale/vault/native"
	keyReferralProgram = "referral/program"
	keyStakingPool     = "staking/pool"

	prefixRound    = "sale/round/"
	prefixAlloc    = "sale/alloc/"
	prefixExcluded = "sale/excluded/"
	prefixReferral = "referral/record/"
	prefixStake    = "staking/stake/"
)

func roundKey(id uint64) string {
	return fmt.Sprintf("%s%020d", prefixRound, id)
}

func allocKey(user common.Address, roundID uint64) string {
	return fmt.Sprintf("%s%s/%020d", prefixAlloc, user.Hex(), roundID)
}

func excludedKey(user common.Address) string {
	return prefixExcluded + user.Hex()
}

func referralKey(user common.Address) string {
	return prefixReferral + user.Hex()
}

func stakeKey(user common.Address) string {
	return prefixStake + user.Hex()
}
