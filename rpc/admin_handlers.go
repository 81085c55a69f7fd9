package rpc

import (
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
)

type callerParams struct {
	Caller string `json:"caller"`
}

func (s *Server) callerAddress(w http.ResponseWriter, req *RPCRequest, raw string) (common.Address, bool) {
	parsed, err := parseAddress("caller", raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return common.Address{}, false
	}
	return parsed, true
}

func (s *Server) handleAdminPreFund(w http.ResponseWriter, req *RPCRequest) {
	var params callerParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, ok := s.callerAddress(w, req, params.Caller)
	if !ok {
		return
	}
	if err := s.node.PreFund(caller); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"funded": true})
}

type createRoundParams struct {
	Caller         string `json:"caller"`
	Price          string `json:"price"`
	NextStagePrice string `json:"nextStagePrice"`
	TokensToSell   string `json:"tokensToSell"`
	UsdHardcap     string `json:"usdHardcap"`
}

func (s *Server) handleAdminCreateRound(w http.ResponseWriter, req *RPCRequest) {
	var params createRoundParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, ok := s.callerAddress(w, req, params.Caller)
	if !ok {
		return
	}
	price, err := parseAmount("price", params.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	nextPrice, err := parseAmount("nextStagePrice", params.NextStagePrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	tokensToSell, err := parseAmount("tokensToSell", params.TokensToSell)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	hardcap, err := parseAmount("usdHardcap", params.UsdHardcap)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	round, err := s.node.CreateRound(caller, price, nextPrice, tokensToSell, hardcap)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, roundToResult(round))
}

func (s *Server) handleAdminStartRound(w http.ResponseWriter, req *RPCRequest) {
	s.handleCallerOnly(w, req, s.node.StartRound)
}

func (s *Server) handleAdminPauseRound(w http.ResponseWriter, req *RPCRequest) {
	s.handleCallerOnly(w, req, s.node.PauseRound)
}

func (s *Server) handleCallerOnly(w http.ResponseWriter, req *RPCRequest, op func(caller common.Address) error) {
	var params callerParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, ok := s.callerAddress(w, req, params.Caller)
	if !ok {
		return
	}
	if err := op(caller); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

type updatePriceParams struct {
	Caller string `json:"caller"`
	Price  string `json:"price"`
}

func (s *Server) handleAdminUpdatePrice(w http.ResponseWriter, req *RPCRequest) {
	var params updatePriceParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, ok := s.callerAddress(w, req, params.Caller)
	if !ok {
		return
	}
	price, err := parseAmount("price", params.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.node.UpdatePrice(caller, price); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

type enableClaimParams struct {
	Caller  string `json:"caller"`
	RoundID uint64 `json:"roundId"`
	Enabled bool   `json:"enabled"`
}

func (s *Server) handleAdminEnableClaim(w http.ResponseWriter, req *RPCRequest) {
	var params enableClaimParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, ok := s.callerAddress(w, req, params.Caller)
	if !ok {
		return
	}
	if err := s.node.EnableClaim(caller, params.RoundID, params.Enabled); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

type exclusionParams struct {
	Caller   string `json:"caller"`
	Account  string `json:"account"`
	Excluded bool   `json:"excluded"`
}

func (s *Server) handleAdminExcludeFromMinimum(w http.ResponseWriter, req *RPCRequest) {
	var params exclusionParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, ok := s.callerAddress(w, req, params.Caller)
	if !ok {
		return
	}
	account, err := parseAddress("account", params.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.node.ExcludeFromMinimum(caller, account, params.Excluded); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

type transferOwnershipParams struct {
	Caller   string `json:"caller"`
	NewOwner string `json:"newOwner"`
}

func (s *Server) handleAdminTransferOwnership(w http.ResponseWriter, req *RPCRequest) {
	var params transferOwnershipParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, ok := s.callerAddress(w, req, params.Caller)
	if !ok {
		return
	}
	newOwner, err := parseAddress("newOwner", params.NewOwner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.node.TransferOwnership(caller, newOwner); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

type stakingStatusParams struct {
	Caller string `json:"caller"`
	Active bool   `json:"active"`
}

func (s *Server) handleAdminSetStakingStatus(w http.ResponseWriter, req *RPCRequest) {
	var params stakingStatusParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, ok := s.callerAddress(w, req, params.Caller)
	if !ok {
		return
	}
	if err := s.node.SetStakingStatus(caller, params.Active); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

type stakingAmountParams struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

func (s *Server) handleAdminSetStakingCap(w http.ResponseWriter, req *RPCRequest) {
	s.handleStakingAmount(w, req, s.node.SetStakingCap)
}

func (s *Server) handleAdminSetStakingRewardBudget(w http.ResponseWriter, req *RPCRequest) {
	s.handleStakingAmount(w, req, s.node.SetStakingRewardBudget)
}

func (s *Server) handleStakingAmount(w http.ResponseWriter, req *RPCRequest, op func(caller common.Address, amount *big.Int) error) {
	var params stakingAmountParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, ok := s.callerAddress(w, req, params.Caller)
	if !ok {
		return
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := op(caller, amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleAdminWithdrawNative(w http.ResponseWriter, req *RPCRequest) {
	var params callerParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, ok := s.callerAddress(w, req, params.Caller)
	if !ok {
		return
	}
	amount, err := s.node.WithdrawNative(caller)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: formatBig(amount)})
}

type withdrawTokenParams struct {
	Caller string `json:"caller"`
	Token  string `json:"token"`
}

func (s *Server) handleAdminWithdrawToken(w http.ResponseWriter, req *RPCRequest) {
	var params withdrawTokenParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, ok := s.callerAddress(w, req, params.Caller)
	if !ok {
		return
	}
	token, err := parseAddress("token", params.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := s.node.WithdrawToken(caller, token)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: formatBig(amount)})
}
