package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"tokensale/config"
	"tokensale/core"
	"tokensale/core/state"
	"tokensale/core/types"
	"tokensale/ledger"
	"tokensale/native/oracle"
	"tokensale/native/referral"
	"tokensale/native/sale"
	"tokensale/native/staking"
	"tokensale/observability/logging"
	"tokensale/rpc"
	"tokensale/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	bootLogger := slog.Default()
	cfg, err := config.Load(*configFile)
	if err != nil {
		bootLogger.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := logging.Setup("saled", cfg.LogLevel, cfg.LogFile)

	db, err := openDatabase(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	genesis, err := buildGenesis(cfg)
	if err != nil {
		logger.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}
	manager, err := state.NewManager(db, genesis)
	if err != nil {
		logger.Error("failed to load state", slog.Any("error", err))
		os.Exit(1)
	}

	feed, err := buildOracle(cfg)
	if err != nil {
		logger.Error("failed to configure oracle", slog.Any("error", err))
		os.Exit(1)
	}

	saleToken := ledger.NewMemory("SALE", cfg.Sale.TokenDecimals)
	stableToken := ledger.NewMemory("USDT", cfg.Sale.StableDecimals)
	reserve := common.HexToAddress(cfg.Sale.ReserveAccount)

	node, err := core.NewNode(core.Config{
		State:       manager,
		SaleToken:   core.TokenRef{Address: common.HexToAddress(cfg.Sale.SaleTokenAddress), Ledger: saleToken},
		StableToken: core.TokenRef{Address: common.HexToAddress(cfg.Sale.StableTokenAddress), Ledger: stableToken},
		Oracle:      feed,
		Account:     reserve,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("failed to assemble node", slog.Any("error", err))
		os.Exit(1)
	}
	node.SetEmitter(eventLogger{log: logger})

	server := rpc.NewServer(node, logger)
	if err := server.Start(cfg.RPCAddress); err != nil && err != http.ErrServerClosed {
		logger.Error("rpc server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

// eventLogger mirrors every committed event into the structured log.
type eventLogger struct {
	log *slog.Logger
}

func (e eventLogger) Emit(evt types.Event) {
	attrs := make([]any, 0, len(evt.Attributes)*2)
	for k, v := range evt.Attributes {
		attrs = append(attrs, k, v)
	}
	e.log.Debug("event "+evt.Type, attrs...)
}

func openDatabase(dataDir string) (storage.Database, error) {
	if dataDir == ":memory:" {
		return storage.NewMemDB(), nil
	}
	return storage.NewLevelDB(dataDir)
}

func buildGenesis(cfg *config.Config) (state.Genesis, error) {
	owner, err := cfg.OwnerAddress()
	if err != nil {
		return state.Genesis{}, err
	}
	totalSupply, err := config.Amount("Sale.TotalSupply", cfg.Sale.TotalSupply)
	if err != nil {
		return state.Genesis{}, err
	}
	minTokens, err := config.Amount("Sale.MinTokensToBuy", cfg.Sale.MinTokensToBuy)
	if err != nil {
		return state.Genesis{}, err
	}
	referralMinimum, err := config.Amount("Referral.MinimumPurchase", cfg.Referral.MinimumPurchase)
	if err != nil {
		return state.Genesis{}, err
	}
	stakingCap, err := config.Amount("Staking.Cap", cfg.Staking.Cap)
	if err != nil {
		return state.Genesis{}, err
	}
	params := &sale.Params{
		Owner:          owner,
		MinTokensToBuy: minTokens,
		TotalSupply:    totalSupply,
		TokenDecimals:  cfg.Sale.TokenDecimals,
		StableDecimals: cfg.Sale.StableDecimals,
		NativeDecimals: cfg.Sale.NativeDecimals,
	}
	stakingBudget := params.StakingBudget()
	return state.Genesis{
		SaleParams: params,
		ReferralProgram: &referral.Program{
			RewardPercent:   cfg.Referral.RewardPercent,
			MinimumPurchase: referralMinimum,
			RewardBudget:    params.ReferralBudget(),
			Distributed:     big.NewInt(0),
		},
		StakingPool: &staking.Pool{
			TotalStaked:      big.NewInt(0),
			Cap:              stakingCap,
			ApyPercent:       cfg.Staking.ApyPercent,
			Active:           cfg.Staking.Active,
			RewardBudget:     stakingBudget,
			CommittedRewards: big.NewInt(0),
		},
	}, nil
}

func buildOracle(cfg *config.Config) (oracle.PriceOracle, error) {
	maxAge := time.Duration(cfg.Oracle.MaxAgeSeconds) * time.Second
	agg := oracle.NewAggregator(nil, maxAge)
	registered := false
	for i, endpoint := range cfg.Oracle.FeedURLs {
		name := fmt.Sprintf("feed-%d", i)
		agg.Register(name, oracle.NewHTTPFeed(http.DefaultClient, endpoint, "NATIVE/USD", cfg.Oracle.ManualDecimals))
		registered = true
	}
	if manual := cfg.Oracle.ManualPrice; manual != "" {
		price, err := config.Amount("Oracle.ManualPrice", manual)
		if err != nil {
			return nil, err
		}
		if price.Sign() > 0 {
			static := oracle.NewManual()
			static.Set(price, cfg.Oracle.ManualDecimals, time.Now())
			agg.Register("manual", static)
			registered = true
		}
	}
	if !registered {
		return nil, fmt.Errorf("no price feed configured")
	}
	return agg, nil
}
