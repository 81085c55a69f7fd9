package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"tokensale/core"
	"tokensale/core/state"
	"tokensale/ledger"
	"tokensale/native/oracle"
	"tokensale/native/referral"
	"tokensale/native/sale"
	"tokensale/native/staking"
	"tokensale/storage"
)

var (
	testOwner   = common.HexToAddress("0x0A")
	testReserve = common.HexToAddress("0x0B")
	testBuyer   = common.HexToAddress("0xB1")

	testStableAddr = common.HexToAddress("0x1002")
)

func scaled(n int64, decimals int64) *big.Int {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(decimals), nil)
	return new(big.Int).Mul(big.NewInt(n), scale)
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	params := &sale.Params{
		Owner:          testOwner,
		MinTokensToBuy: scaled(10, 18),
		TotalSupply:    scaled(1_000_000_000, 18),
		TokenDecimals:  18,
		StableDecimals: 6,
		NativeDecimals: 18,
	}
	manager, err := state.NewManager(storage.NewMemDB(), state.Genesis{
		SaleParams: params,
		ReferralProgram: &referral.Program{
			RewardPercent:   20,
			MinimumPurchase: scaled(1000, 18),
			RewardBudget:    params.ReferralBudget(),
			Distributed:     big.NewInt(0),
		},
		StakingPool: &staking.Pool{
			TotalStaked:      big.NewInt(0),
			Cap:              scaled(200_000_000, 18),
			ApyPercent:       200,
			Active:           true,
			RewardBudget:     params.StakingBudget(),
			CommittedRewards: big.NewInt(0),
		},
	})
	require.NoError(t, err)

	saleToken := ledger.NewMemory("SALE", 18)
	stableToken := ledger.NewMemory("USDT", 6)
	require.NoError(t, saleToken.Mint(testReserve, params.RequiredFunding()))
	require.NoError(t, stableToken.Mint(testBuyer, scaled(1_000_000, 6)))

	feed := oracle.NewManual()
	feed.Set(big.NewInt(300_000_000_000), 8, time.Now())

	node, err := core.NewNode(core.Config{
		State:       manager,
		SaleToken:   core.TokenRef{Address: common.HexToAddress("0x1001"), Ledger: saleToken},
		StableToken: core.TokenRef{Address: testStableAddr, Ledger: stableToken},
		Oracle:      feed,
		Account:     testReserve,
	})
	require.NoError(t, err)

	server := NewServer(node, nil)
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)
	return server, ts
}

func call(t *testing.T, ts *httptest.Server, method string, params interface{}) *RPCResponse {
	t.Helper()
	payload := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		payload["params"] = []interface{}{params}
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+"/", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	out := &RPCResponse{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return out
}

func decodeResult(t *testing.T, resp *RPCResponse, out interface{}) {
	t.Helper()
	require.Nil(t, resp.Error, "unexpected rpc error: %+v", resp.Error)
	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func prepareRound(t *testing.T, ts *httptest.Server) {
	t.Helper()
	resp := call(t, ts, "admin_preFund", map[string]string{"caller": testOwner.Hex()})
	require.Nil(t, resp.Error)
	resp = call(t, ts, "admin_createRound", map[string]string{
		"caller":         testOwner.Hex(),
		"price":          "10000",
		"nextStagePrice": "20000",
		"tokensToSell":   scaled(1_000_000, 18).String(),
		"usdHardcap":     scaled(10_000, 6).String(),
	})
	require.Nil(t, resp.Error)
	resp = call(t, ts, "admin_startRound", map[string]string{"caller": testOwner.Hex()})
	require.Nil(t, resp.Error)
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRoundProgressGaugesTrackPurchases(t *testing.T) {
	_, ts := newTestServer(t)
	prepareRound(t, ts)

	resp := call(t, ts, "sale_buy", map[string]interface{}{
		"buyer":  testBuyer.Hex(),
		"amount": scaled(100, 6).String(),
		"native": false,
	})
	require.Nil(t, resp.Error)

	metricsResp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(metricsResp.Body)
	metricsResp.Body.Close()
	require.NoError(t, err)

	text := string(body)
	require.Contains(t, text, "sale_round_tokens_sold")
	require.Contains(t, text, "sale_round_usd_raised")
	require.NotContains(t, text, "sale_round_tokens_sold 0\n")
	require.NotContains(t, text, "sale_round_usd_raised 0\n")
}

func TestMethodNotFound(t *testing.T) {
	_, ts := newTestServer(t)
	resp := call(t, ts, "sale_noSuchMethod", map[string]string{})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestQuoteAndBuyOverRPC(t *testing.T) {
	_, ts := newTestServer(t)
	prepareRound(t, ts)

	resp := call(t, ts, "sale_quote", map[string]interface{}{
		"amount": scaled(100, 6).String(),
		"native": false,
	})
	var quote quoteResult
	decodeResult(t, resp, &quote)
	require.Equal(t, scaled(10_000, 18).String(), quote.Tokens)
	require.Equal(t, scaled(100, 6).String(), quote.UsdValue)

	resp = call(t, ts, "sale_buy", map[string]interface{}{
		"buyer":  testBuyer.Hex(),
		"amount": scaled(100, 6).String(),
		"native": false,
	})
	var bought buyResult
	decodeResult(t, resp, &bought)
	require.NotEmpty(t, bought.ReceiptID)
	require.Equal(t, "stable", bought.Payment)
	require.Equal(t, scaled(10_000, 18).String(), bought.TokensBought)
	require.NotEmpty(t, bought.Events)

	resp = call(t, ts, "sale_getAllocation", map[string]interface{}{
		"user":    testBuyer.Hex(),
		"roundId": bought.RoundID,
	})
	var alloc allocationResult
	decodeResult(t, resp, &alloc)
	require.Equal(t, scaled(10_000, 18).String(), alloc.TotalAmount)
	require.Equal(t, scaled(10_000, 18).String(), alloc.Claimable)
}

func TestBuyErrorsSurfaceSentinelCodes(t *testing.T) {
	_, ts := newTestServer(t)

	// No active round yet.
	resp := call(t, ts, "sale_buy", map[string]interface{}{
		"buyer":  testBuyer.Hex(),
		"amount": scaled(100, 6).String(),
		"native": false,
	})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeRejected, resp.Error.Code)

	prepareRound(t, ts)

	// Below the purchase minimum.
	resp = call(t, ts, "sale_buy", map[string]interface{}{
		"buyer":  testBuyer.Hex(),
		"amount": "50000",
		"native": false,
	})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeRejected, resp.Error.Code)
	require.Equal(t, sale.ErrBelowMinimum.Error(), resp.Error.Message)

	// Malformed address.
	resp = call(t, ts, "sale_buy", map[string]interface{}{
		"buyer":  "not-an-address",
		"amount": "1",
		"native": false,
	})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeInvalidParams, resp.Error.Code)
}

func TestAdminRejectsNonOwner(t *testing.T) {
	_, ts := newTestServer(t)
	prepareRound(t, ts)

	resp := call(t, ts, "admin_pauseRound", map[string]string{"caller": testBuyer.Hex()})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)
}

func TestAdminBearerToken(t *testing.T) {
	server, ts := newTestServer(t)
	server.authToken = "secret"

	payload := fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":"admin_preFund","params":[{"caller":%q}]}`, testOwner.Hex())

	resp, err := http.Post(ts.URL+"/", "application/json", bytes.NewBufferString(payload))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/", bytes.NewBufferString(payload))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out := &RPCResponse{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	require.Nil(t, out.Error)
}

func TestStakingAndReferralViews(t *testing.T) {
	_, ts := newTestServer(t)
	prepareRound(t, ts)

	resp := call(t, ts, "staking_getPool", nil)
	var pool stakingPoolResult
	decodeResult(t, resp, &pool)
	require.True(t, pool.Active)
	require.Equal(t, uint32(200), pool.ApyPercent)

	resp = call(t, ts, "staking_getPosition", map[string]string{"user": testBuyer.Hex()})
	require.Nil(t, resp.Error)
	require.Nil(t, resp.Result)

	resp = call(t, ts, "referral_getInfo", map[string]string{"user": testBuyer.Hex()})
	var info referralInfoResult
	decodeResult(t, resp, &info)
	require.False(t, info.Qualified)
	require.Equal(t, "0", info.TotalRewards)
}
