package rpc

import (
	"net/http"

	"tokensale/observability/metrics"
)

type userParams struct {
	User string `json:"user"`
}

type referralInfoResult struct {
	Referrer          string `json:"referrer,omitempty"`
	TotalRewards      string `json:"totalRewards"`
	ClaimedRewards    string `json:"claimedRewards"`
	LifetimePurchased string `json:"lifetimePurchased"`
	Qualified         bool   `json:"qualified"`
}

func (s *Server) handleReferralInfo(w http.ResponseWriter, req *RPCRequest) {
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
	record, err := s.node.ReferralInfo(user)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	result := referralInfoResult{
		TotalRewards:      formatBig(record.TotalRewards),
		ClaimedRewards:    formatBig(record.ClaimedRewards),
		LifetimePurchased: formatBig(record.LifetimePurchased),
		Qualified:         record.Qualified,
	}
	if record.HasReferrer {
		result.Referrer = record.Referrer.Hex()
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleReferralClaimable(w http.ResponseWriter, req *RPCRequest) {
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
	claimable, err := s.node.ReferralClaimable(user)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: formatBig(claimable)})
}

func (s *Server) handleReferralClaim(w http.ResponseWriter, req *RPCRequest) {
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
	amount, err := s.node.ClaimReferralRewards(user)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	if amount.Sign() > 0 {
		metrics.Sale().ObserveReferralClaim()
	}
	writeResult(w, req.ID, amountResult{Amount: formatBig(amount)})
}
