// Package rpc exposes the sale node over a JSON-RPC 2.0 HTTP endpoint, with
// health and Prometheus metrics endpoints alongside.
package rpc

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tokensale/core"
	"tokensale/native/referral"
	"tokensale/native/sale"
	"tokensale/native/staking"
	"tokensale/observability/metrics"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRejected       = -32030
)

// Server serves the node's operations over HTTP.
type Server struct {
	node      *core.Node
	logger    *slog.Logger
	authToken string
}

// NewServer builds a Server. Admin methods require the bearer token from the
// SALED_RPC_TOKEN environment variable when one is set.
func NewServer(node *core.Node, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		node:      node,
		logger:    logger,
		authToken: strings.TrimSpace(os.Getenv("SALED_RPC_TOKEN")),
	}
}

// Router assembles the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/", s.handle)
	return r
}

// Start serves until the listener fails.
func (s *Server) Start(addr string) error {
	s.logger.Info("rpc listening", "addr", addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv.ListenAndServe()
}

// RPCRequest is the inbound JSON-RPC envelope.
type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

// RPCResponse is the outbound JSON-RPC envelope.
type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError carries a failed call's code and message.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj})
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

// errorCode maps the engines' sentinel errors to stable RPC codes.
func errorCode(err error) int {
	switch {
	case errors.Is(err, sale.ErrNotOwner):
		return codeUnauthorized
	case errors.Is(err, sale.ErrInvalidAmount),
		errors.Is(err, sale.ErrInvalidParams),
		errors.Is(err, referral.ErrInvalidReferrer):
		return codeInvalidParams
	case errors.Is(err, sale.ErrNotFunded),
		errors.Is(err, sale.ErrAlreadyFunded),
		errors.Is(err, sale.ErrRoundNotFound),
		errors.Is(err, sale.ErrRoundInactive),
		errors.Is(err, sale.ErrBelowMinimum),
		errors.Is(err, sale.ErrSoldOut),
		errors.Is(err, sale.ErrHardcapReached),
		errors.Is(err, sale.ErrOracleUnavailable),
		errors.Is(err, sale.ErrClaimDisabled),
		errors.Is(err, referral.ErrUnqualifiedReferrer),
		errors.Is(err, referral.ErrCircularReferral),
		errors.Is(err, referral.ErrAlreadyReferred),
		errors.Is(err, staking.ErrStakingInactive),
		errors.Is(err, staking.ErrAlreadyStaked),
		errors.Is(err, staking.ErrNoActivePosition),
		errors.Is(err, staking.ErrStakeLocked),
		errors.Is(err, staking.ErrAlreadyWithdrawn),
		errors.Is(err, staking.ErrPoolBounds):
		return codeRejected
	default:
		return codeServerError
	}
}

func writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	writeError(w, http.StatusOK, id, errorCode(err), err.Error(), nil)
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return nil
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid or missing bearer token"}
	}
	return nil
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() { _ = reader.Close() }()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "failed to read request body", err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}
	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}
	defer func() {
		metrics.Sale().ObserveRPC(req.Method, time.Since(started).Seconds())
	}()

	if strings.HasPrefix(req.Method, "admin_") {
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
	}

	switch req.Method {
	case "sale_quote":
		s.handleQuote(w, req)
	case "sale_buy":
		s.handleBuy(w, req)
	case "sale_claim":
		s.handleClaim(w, req)
	case "sale_getParams":
		s.handleGetParams(w, req)
	case "sale_isFunded":
		s.handleIsFunded(w, req)
	case "sale_getRound":
		s.handleGetRound(w, req)
	case "sale_getActiveRound":
		s.handleGetActiveRound(w, req)
	case "sale_getAllocation":
		s.handleGetAllocation(w, req)
	case "sale_getEvents":
		s.handleGetEvents(w, req)
	case "referral_getInfo":
		s.handleReferralInfo(w, req)
	case "referral_getClaimable":
		s.handleReferralClaimable(w, req)
	case "referral_claim":
		s.handleReferralClaim(w, req)
	case "staking_getPool":
		s.handleStakingPool(w, req)
	case "staking_getPosition":
		s.handleStakingPosition(w, req)
	case "staking_withdraw":
		s.handleStakingWithdraw(w, req)
	case "admin_preFund":
		s.handleAdminPreFund(w, req)
	case "admin_createRound":
		s.handleAdminCreateRound(w, req)
	case "admin_startRound":
		s.handleAdminStartRound(w, req)
	case "admin_pauseRound":
		s.handleAdminPauseRound(w, req)
	case "admin_updatePrice":
		s.handleAdminUpdatePrice(w, req)
	case "admin_enableClaim":
		s.handleAdminEnableClaim(w, req)
	case "admin_excludeFromMinimum":
		s.handleAdminExcludeFromMinimum(w, req)
	case "admin_transferOwnership":
		s.handleAdminTransferOwnership(w, req)
	case "admin_setStakingStatus":
		s.handleAdminSetStakingStatus(w, req)
	case "admin_setStakingCap":
		s.handleAdminSetStakingCap(w, req)
	case "admin_setStakingRewardBudget":
		s.handleAdminSetStakingRewardBudget(w, req)
	case "admin_withdrawNative":
		s.handleAdminWithdrawNative(w, req)
	case "admin_withdrawToken":
		s.handleAdminWithdrawToken(w, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("method %q not found", req.Method), nil)
	}
}
