package rpc

import (
	"net/http"

	"tokensale/core/types"
	"tokensale/native/sale"
	"tokensale/observability/metrics"
)

type quoteParams struct {
	Amount string `json:"amount"`
	Native bool   `json:"native"`
}

type quoteResult struct {
	Tokens   string `json:"tokens"`
	UsdValue string `json:"usdValue"`
}

func (s *Server) handleQuote(w http.ResponseWriter, req *RPCRequest) {
	var params quoteParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	tokens, usd, err := s.node.Quote(amount, params.Native)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, quoteResult{Tokens: formatBig(tokens), UsdValue: formatBig(usd)})
}

type buyParams struct {
	Buyer    string `json:"buyer"`
	Amount   string `json:"amount"`
	Native   bool   `json:"native"`
	Referrer string `json:"referrer,omitempty"`
	Stake    bool   `json:"stake,omitempty"`
}

type buyResult struct {
	ReceiptID    string        `json:"receiptId"`
	RoundID      uint64        `json:"roundId"`
	Payment      string        `json:"payment"`
	AmountPaid   string        `json:"amountPaid"`
	UsdValue     string        `json:"usdValue"`
	TokensBought string        `json:"tokensBought"`
	Staked       bool          `json:"staked"`
	Events       []types.Event `json:"events"`
}

func (s *Server) handleBuy(w http.ResponseWriter, req *RPCRequest) {
	var params buyParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	buyer, err := parseAddress("buyer", params.Buyer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	referrer, err := parseOptionalAddress("referrer", params.Referrer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	receipt, err := s.node.Buy(buyer, amount, params.Native, referrer, params.Stake)
	if err != nil {
		metrics.Sale().ObservePurchaseError(err.Error())
		writeEngineError(w, req.ID, err)
		return
	}
	metrics.Sale().ObservePurchase(string(receipt.Payment), receipt.Staked)
	if round, err := s.node.Round(receipt.RoundID); err == nil {
		metrics.Sale().SetRoundProgress(bigFloat(round.TokensSold), bigFloat(round.AmountRaised))
	}
	writeResult(w, req.ID, buyResult{
		ReceiptID:    receipt.ID,
		RoundID:      receipt.RoundID,
		Payment:      string(receipt.Payment),
		AmountPaid:   formatBig(receipt.AmountPaid),
		UsdValue:     formatBig(receipt.UsdValue),
		TokensBought: formatBig(receipt.TokensBought),
		Staked:       receipt.Staked,
		Events:       receipt.Events,
	})
}

type claimParams struct {
	User    string `json:"user"`
	RoundID uint64 `json:"roundId"`
}

type amountResult struct {
	Amount string `json:"amount"`
}

func (s *Server) handleClaim(w http.ResponseWriter, req *RPCRequest) {
	var params claimParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	user, err := parseAddress("user", params.User)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := s.node.Claim(user, params.RoundID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	if amount.Sign() > 0 {
		metrics.Sale().ObserveClaim()
	}
	writeResult(w, req.ID, amountResult{Amount: formatBig(amount)})
}

type paramsResult struct {
	Owner          string `json:"owner"`
	MinTokensToBuy string `json:"minTokensToBuy"`
	TotalSupply    string `json:"totalSupply"`
	TokenDecimals  uint8  `json:"tokenDecimals"`
	StableDecimals uint8  `json:"stableDecimals"`
	NativeDecimals uint8  `json:"nativeDecimals"`
}

func (s *Server) handleGetParams(w http.ResponseWriter, req *RPCRequest) {
	params, err := s.node.Params()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, paramsResult{
		Owner:          params.Owner.Hex(),
		MinTokensToBuy: formatBig(params.MinTokensToBuy),
		TotalSupply:    formatBig(params.TotalSupply),
		TokenDecimals:  params.TokenDecimals,
		StableDecimals: params.StableDecimals,
		NativeDecimals: params.NativeDecimals,
	})
}

func (s *Server) handleIsFunded(w http.ResponseWriter, req *RPCRequest) {
	funded, err := s.node.Funded()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"funded": funded})
}

type roundResult struct {
	ID             uint64 `json:"id"`
	Price          string `json:"price"`
	NextStagePrice string `json:"nextStagePrice"`
	TokensToSell   string `json:"tokensToSell"`
	TokensSold     string `json:"tokensSold"`
	UsdHardcap     string `json:"usdHardcap"`
	AmountRaised   string `json:"amountRaised"`
	Active         bool   `json:"active"`
	ClaimEnabled   bool   `json:"claimEnabled"`
}

func roundToResult(round *sale.Round) roundResult {
	return roundResult{
		ID:             round.ID,
		Price:          formatBig(round.Price),
		NextStagePrice: formatBig(round.NextStagePrice),
		TokensToSell:   formatBig(round.TokensToSell),
		TokensSold:     formatBig(round.TokensSold),
		UsdHardcap:     formatBig(round.UsdHardcap),
		AmountRaised:   formatBig(round.AmountRaised),
		Active:         round.Active,
		ClaimEnabled:   round.ClaimEnabled,
	}
}

type roundQueryParams struct {
	RoundID uint64 `json:"roundId"`
}

func (s *Server) handleGetRound(w http.ResponseWriter, req *RPCRequest) {
	var params roundQueryParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	round, err := s.node.Round(params.RoundID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, roundToResult(round))
}

func (s *Server) handleGetActiveRound(w http.ResponseWriter, req *RPCRequest) {
	round, err := s.node.ActiveRound()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, roundToResult(round))
}

type allocationParams struct {
	User    string `json:"user"`
	RoundID uint64 `json:"roundId"`
}

type allocationResult struct {
	TotalAmount   string `json:"totalAmount"`
	ClaimedAmount string `json:"claimedAmount"`
	Claimable     string `json:"claimable"`
}

func (s *Server) handleGetAllocation(w http.ResponseWriter, req *RPCRequest) {
	var params allocationParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	user, err := parseAddress("user", params.User)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	alloc, err := s.node.Allocation(user, params.RoundID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, allocationResult{
		TotalAmount:   formatBig(alloc.TotalAmount),
		ClaimedAmount: formatBig(alloc.ClaimedAmount),
		Claimable:     formatBig(alloc.Claimable()),
	})
}

func (s *Server) handleGetEvents(w http.ResponseWriter, req *RPCRequest) {
	writeResult(w, req.ID, s.node.Events())
}
