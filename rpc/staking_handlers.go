package rpc

import (
	"math/big"
	"net/http"

	"tokensale/observability/metrics"
)

type stakingPoolResult struct {
	TotalStaked      string `json:"totalStaked"`
	Cap              string `json:"cap"`
	ApyPercent       uint32 `json:"apyPercent"`
	Active           bool   `json:"active"`
	RewardBudget     string `json:"rewardBudget"`
	CommittedRewards string `json:"committedRewards"`
}

func (s *Server) handleStakingPool(w http.ResponseWriter, req *RPCRequest) {
	pool, err := s.node.StakingPool()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, stakingPoolResult{
		TotalStaked:      formatBig(pool.TotalStaked),
		Cap:              formatBig(pool.Cap),
		ApyPercent:       pool.ApyPercent,
		Active:           pool.Active,
		RewardBudget:     formatBig(pool.RewardBudget),
		CommittedRewards: formatBig(pool.CommittedRewards),
	})
}

type stakingPositionResult struct {
	StakedAmount     string `json:"stakedAmount"`
	PotentialReward  string `json:"potentialReward"`
	StakingTimestamp uint64 `json:"stakingTimestamp"`
	UnlockTimestamp  uint64 `json:"unlockTimestamp"`
	Withdrawn        bool   `json:"withdrawn"`
}

func (s *Server) handleStakingPosition(w http.ResponseWriter, req *RPCRequest) {
	var params userParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	user, err := parseAddress("user", params.User)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	position, ok, err := s.node.StakePosition(user)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	if !ok {
		writeResult(w, req.ID, nil)
		return
	}
	writeResult(w, req.ID, stakingPositionResult{
		StakedAmount:     formatBig(position.StakedAmount),
		PotentialReward:  formatBig(position.PotentialReward),
		StakingTimestamp: position.StakingTimestamp,
		UnlockTimestamp:  position.UnlockTimestamp,
		Withdrawn:        position.Withdrawn,
	})
}

type stakeWithdrawResult struct {
	Principal string `json:"principal"`
	Reward    string `json:"reward"`
	Total     string `json:"total"`
}

func (s *Server) handleStakingWithdraw(w http.ResponseWriter, req *RPCRequest) {
	var params userParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	user, err := parseAddress("user", params.User)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	principal, reward, err := s.node.WithdrawStake(user)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	metrics.Sale().ObserveStakeWithdrawal()
	writeResult(w, req.ID, stakeWithdrawResult{
		Principal: formatBig(principal),
		Reward:    formatBig(reward),
		Total:     formatBig(new(big.Int).Add(principal, reward)),
	})
}
