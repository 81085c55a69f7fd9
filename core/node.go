// Package core wires the sale, referral and staking engines over a single
// state manager and serialises every public operation. One operation runs at
// a time; each runs inside a staged transaction that commits in full or not
// at all.
package core

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"tokensale/core/events"
	"tokensale/core/state"
	"tokensale/core/types"
	"tokensale/ledger"
	"tokensale/native/oracle"
	"tokensale/native/referral"
	"tokensale/native/sale"
	"tokensale/native/staking"
)

// TokenRef pairs a token ledger with the address it is known by on the wire.
type TokenRef struct {
	Address common.Address
	Ledger  ledger.TokenLedger
}

// Config carries the collaborators a Node needs.
type Config struct {
	State       *state.Manager
	SaleToken   TokenRef
	StableToken TokenRef
	Oracle      oracle.PriceOracle
	// Account is the address holding the sale's token reserves on both
	// ledgers. Payments flow into it, claims and stake withdrawals out.
	Account common.Address
	Logger  *slog.Logger
}

// Node executes sale operations. All exported methods are safe for
// concurrent use; internally they are serialised by a single mutex so that
// every operation observes the state left by the previous one.
type Node struct {
	mu sync.Mutex

	state       *state.Manager
	saleToken   TokenRef
	stableToken TokenRef
	account     common.Address
	logger      *slog.Logger
	emitter     events.Emitter

	saleEngine     *sale.Engine
	referralEngine *referral.Engine
	stakingEngine  *staking.Engine

	log []types.Event
}

// NewNode validates the config and assembles the engines.
func NewNode(cfg Config) (*Node, error) {
	if cfg.State == nil {
		return nil, fmt.Errorf("core: state manager required")
	}
	if cfg.SaleToken.Ledger == nil || cfg.StableToken.Ledger == nil {
		return nil, fmt.Errorf("core: token ledgers required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	n := &Node{
		state:          cfg.State,
		saleToken:      cfg.SaleToken,
		stableToken:    cfg.StableToken,
		account:        cfg.Account,
		logger:         logger,
		emitter:        events.NoopEmitter{},
		saleEngine:     sale.NewEngine(),
		referralEngine: referral.NewEngine(),
		stakingEngine:  staking.NewEngine(),
	}
	n.saleEngine.SetOracle(cfg.Oracle)
	return n, nil
}

// SetNowFunc overrides the staking clock, for deterministic tests.
func (n *Node) SetNowFunc(now func() int64) {
	n.stakingEngine.SetNowFunc(now)
}

// SetEmitter installs a subscriber for committed events. Discarded
// transactions never reach it.
func (n *Node) SetEmitter(e events.Emitter) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if e == nil {
		e = events.NoopEmitter{}
	}
	n.emitter = e
}

func (n *Node) bind(txn *state.Txn) {
	n.saleEngine.SetState(txn)
	n.referralEngine.SetState(txn)
	n.stakingEngine.SetState(txn)
}

func (n *Node) commit(txn *state.Txn) ([]types.Event, error) {
	evts := txn.Events()
	if err := txn.Commit(); err != nil {
		return nil, err
	}
	n.log = append(n.log, evts...)
	for _, evt := range evts {
		n.emitter.Emit(evt)
	}
	return evts, nil
}

// commitSettled commits a transaction whose ledger settlement has already
// run. A commit failure reverses the transfer so ledger balances and engine
// state never diverge.
func (n *Node) commitSettled(txn *state.Txn, book ledger.TokenLedger, from, to common.Address, amount *big.Int) ([]types.Event, error) {
	evts, err := n.commit(txn)
	if err != nil {
		if amount != nil && amount.Sign() > 0 {
			if uerr := book.Transfer(to, from, amount); uerr != nil {
				n.logger.Error("settlement unwind failed", "error", uerr)
			}
		}
		return nil, err
	}
	return evts, nil
}

func (n *Node) requireOwner(txn *state.Txn, caller common.Address) error {
	params, err := txn.SaleParams()
	if err != nil {
		return err
	}
	if params.Owner != caller {
		return sale.ErrNotOwner
	}
	return nil
}

// Events returns a copy of the committed event log in emission order.
func (n *Node) Events() []types.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]types.Event, len(n.log))
	copy(out, n.log)
	return out
}

// PreFund arms the sale after verifying the reserve account holds the full
// committed allocation. Owner only; one-way.
func (n *Node) PreFund(caller common.Address) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	txn := n.state.Begin()
	defer txn.Discard()
	if err := n.requireOwner(txn, caller); err != nil {
		return err
	}
	n.bind(txn)
	balance := n.saleToken.Ledger.BalanceOf(n.account)
	if err := n.saleEngine.PreFund(balance); err != nil {
		return err
	}
	_, err := n.commit(txn)
	if err == nil {
		n.logger.Info("sale funded", "balance", balance.String())
	}
	return err
}

// CreateRound registers the next round. Owner only; requires funding.
func (n *Node) CreateRound(caller common.Address, price, nextStagePrice, tokensToSell, usdHardcap *big.Int) (*sale.Round, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	txn := n.state.Begin()
	defer txn.Discard()
	if err := n.requireOwner(txn, caller); err != nil {
		return nil, err
	}
	n.bind(txn)
	round, err := n.saleEngine.CreateRound(price, nextStagePrice, tokensToSell, usdHardcap)
	if err != nil {
		return nil, err
	}
	if _, err := n.commit(txn); err != nil {
		return nil, err
	}
	n.logger.Info("round created", "round", round.ID, "price", round.Price.String())
	return round, nil
}

// StartRound activates the latest round. Owner only.
func (n *Node) StartRound(caller common.Address) error {
	return n.adminOp(caller, func() error { return n.saleEngine.StartRound() })
}

// PauseRound deactivates the latest round. Owner only.
func (n *Node) PauseRound(caller common.Address) error {
	return n.adminOp(caller, func() error { return n.saleEngine.PauseRound() })
}

// UpdatePrice changes the latest round's token price. Owner only.
func (n *Node) UpdatePrice(caller common.Address, newPrice *big.Int) error {
	return n.adminOp(caller, func() error { return n.saleEngine.UpdatePrice(newPrice) })
}

// EnableClaim toggles claiming for a round. Owner only.
func (n *Node) EnableClaim(caller common.Address, roundID uint64, enabled bool) error {
	return n.adminOp(caller, func() error { return n.saleEngine.EnableClaim(roundID, enabled) })
}

// ExcludeFromMinimum updates the minimum-purchase exemption list. Owner only.
func (n *Node) ExcludeFromMinimum(caller, account common.Address, excluded bool) error {
	return n.adminOp(caller, func() error { return n.saleEngine.ExcludeFromMinimum(account, excluded) })
}

// TransferOwnership hands the admin role to newOwner. Owner only.
func (n *Node) TransferOwnership(caller, newOwner common.Address) error {
	return n.adminOp(caller, func() error { return n.saleEngine.TransferOwnership(newOwner) })
}

// SetStakingStatus toggles whether new stakes are accepted. Owner only.
func (n *Node) SetStakingStatus(caller common.Address, active bool) error {
	return n.adminOp(caller, func() error { return n.stakingEngine.SetActive(active) })
}

// SetStakingCap updates the staking pool's principal cap. Owner only.
func (n *Node) SetStakingCap(caller common.Address, cap *big.Int) error {
	return n.adminOp(caller, func() error { return n.stakingEngine.SetCap(cap) })
}

// SetStakingRewardBudget updates the pool's reward budget. Owner only.
func (n *Node) SetStakingRewardBudget(caller common.Address, budget *big.Int) error {
	return n.adminOp(caller, func() error { return n.stakingEngine.SetRewardBudget(budget) })
}

func (n *Node) adminOp(caller common.Address, op func() error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	txn := n.state.Begin()
	defer txn.Discard()
	if err := n.requireOwner(txn, caller); err != nil {
		return err
	}
	n.bind(txn)
	if err := op(); err != nil {
		return err
	}
	_, err := n.commit(txn)
	return err
}

// Quote prices a payment against the active round without mutating anything.
func (n *Node) Quote(paymentAmount *big.Int, payingInNative bool) (tokens, usdValue *big.Int, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	txn := n.state.Begin()
	defer txn.Discard()
	n.bind(txn)
	return n.saleEngine.Quote(paymentAmount, payingInNative)
}

// Buy executes a purchase end to end: validation, optional referral link and
// rewards, optional immediate stake, round accounting and payment
// settlement. Any failure rolls the whole operation back, with one
// exception: a stake that would breach the pool's cap or reward budget
// disables the pool in its own committed transition before the purchase is
// rejected with ErrStakingInactive.
func (n *Node) Buy(buyer common.Address, paymentAmount *big.Int, payingInNative bool, referrer common.Address, stakeImmediately bool) (*types.PurchaseReceipt, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	txn := n.state.Begin()
	defer txn.Discard()
	n.bind(txn)

	intent, err := n.saleEngine.PreparePurchase(buyer, paymentAmount, payingInNative)
	if err != nil {
		return nil, err
	}
	if referrer != (common.Address{}) {
		if err := n.referralEngine.Record(buyer, referrer, intent.TokenAmount); err != nil {
			return nil, err
		}
	}
	if err := n.referralEngine.RecordPurchase(buyer, intent.TokenAmount); err != nil {
		return nil, err
	}
	if stakeImmediately {
		if err := n.stakingEngine.Open(buyer, intent.TokenAmount); err != nil {
			if errors.Is(err, staking.ErrPoolBounds) {
				txn.Discard()
				n.disablePool(err.Error(), buyer, intent.TokenAmount)
				return nil, staking.ErrStakingInactive
			}
			return nil, err
		}
	}
	paymentToken := common.Address{}
	kind := types.PaymentNative
	if !payingInNative {
		paymentToken = n.stableToken.Address
		kind = types.PaymentStable
	}
	if err := n.saleEngine.ApplyPurchase(intent, paymentToken, stakeImmediately); err != nil {
		return nil, err
	}
	var evts []types.Event
	if payingInNative {
		evts, err = n.commit(txn)
	} else {
		if err := n.stableToken.Ledger.TransferFrom(buyer, n.account, intent.AmountPaid); err != nil {
			return nil, fmt.Errorf("core: collect payment: %w", err)
		}
		evts, err = n.commitSettled(txn, n.stableToken.Ledger, buyer, n.account, intent.AmountPaid)
	}
	if err != nil {
		return nil, err
	}
	receipt := &types.PurchaseReceipt{
		ID:           uuid.NewString(),
		Buyer:        buyer,
		RoundID:      intent.RoundID,
		Payment:      kind,
		PaymentToken: paymentToken,
		AmountPaid:   intent.AmountPaid,
		UsdValue:     intent.UsdValue,
		TokensBought: intent.TokenAmount,
		Staked:       stakeImmediately,
		Referrer:     referrer,
		Events:       evts,
	}
	n.logger.Info("purchase committed",
		"buyer", buyer.Hex(),
		"round", intent.RoundID,
		"tokens", intent.TokenAmount.String(),
		"usd", intent.UsdValue.String(),
		"staked", stakeImmediately,
	)
	return receipt, nil
}

// disablePool flips the staking pool inactive in its own transaction so the
// shutdown survives the rollback of the purchase that triggered it.
func (n *Node) disablePool(reason string, user common.Address, amount *big.Int) {
	txn := n.state.Begin()
	defer txn.Discard()
	n.bind(txn)
	if err := n.stakingEngine.Disable(reason, user, amount); err != nil {
		n.logger.Error("staking pool shutdown failed", "error", err)
		return
	}
	if _, err := n.commit(txn); err != nil {
		n.logger.Error("staking pool shutdown commit failed", "error", err)
		return
	}
	n.logger.Warn("staking pool disabled", "reason", reason, "user", user.Hex())
}

// Claim pays out the caller's unclaimed allocation for a round. A zero
// claimable balance is a successful no-op.
func (n *Node) Claim(user common.Address, roundID uint64) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	txn := n.state.Begin()
	defer txn.Discard()
	n.bind(txn)
	amount, err := n.saleEngine.Claim(user, roundID)
	if err != nil {
		return nil, err
	}
	if amount.Sign() > 0 {
		if err := n.saleToken.Ledger.Transfer(n.account, user, amount); err != nil {
			return nil, fmt.Errorf("core: pay claim: %w", err)
		}
	}
	if _, err := n.commitSettled(txn, n.saleToken.Ledger, n.account, user, amount); err != nil {
		return nil, err
	}
	return amount, nil
}

// ClaimReferralRewards pays out the caller's accrued referral rewards. A zero
// balance is a successful no-op.
func (n *Node) ClaimReferralRewards(user common.Address) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	txn := n.state.Begin()
	defer txn.Discard()
	n.bind(txn)
	amount, err := n.referralEngine.Claim(user)
	if err != nil {
		return nil, err
	}
	if amount.Sign() > 0 {
		if err := n.saleToken.Ledger.Transfer(n.account, user, amount); err != nil {
			return nil, fmt.Errorf("core: pay referral rewards: %w", err)
		}
	}
	if _, err := n.commitSettled(txn, n.saleToken.Ledger, n.account, user, amount); err != nil {
		return nil, err
	}
	return amount, nil
}

// WithdrawStake closes the caller's matured stake and pays principal plus
// the locked-in reward.
func (n *Node) WithdrawStake(user common.Address) (principal, reward *big.Int, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	txn := n.state.Begin()
	defer txn.Discard()
	n.bind(txn)
	principal, reward, err = n.stakingEngine.Withdraw(user)
	if err != nil {
		return nil, nil, err
	}
	total := new(big.Int).Add(principal, reward)
	if err := n.saleToken.Ledger.Transfer(n.account, user, total); err != nil {
		return nil, nil, fmt.Errorf("core: pay stake withdrawal: %w", err)
	}
	if _, err := n.commitSettled(txn, n.saleToken.Ledger, n.account, user, total); err != nil {
		return nil, nil, err
	}
	return principal, reward, nil
}

// WithdrawNative empties the native-currency vault to the owner. Owner only.
func (n *Node) WithdrawNative(caller common.Address) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	txn := n.state.Begin()
	defer txn.Discard()
	if err := n.requireOwner(txn, caller); err != nil {
		return nil, err
	}
	n.bind(txn)
	amount, err := n.saleEngine.SweepNative()
	if err != nil {
		return nil, err
	}
	if _, err := n.commit(txn); err != nil {
		return nil, err
	}
	return amount, nil
}

// WithdrawToken moves the reserve account's full balance on the given token
// to the owner. Owner only. The token must be one of the configured ledgers.
func (n *Node) WithdrawToken(caller, token common.Address) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	txn := n.state.Begin()
	defer txn.Discard()
	if err := n.requireOwner(txn, caller); err != nil {
		return nil, err
	}
	var ref TokenRef
	switch token {
	case n.saleToken.Address:
		ref = n.saleToken
	case n.stableToken.Address:
		ref = n.stableToken
	default:
		return nil, fmt.Errorf("core: unknown token %s", token.Hex())
	}
	params, err := txn.SaleParams()
	if err != nil {
		return nil, err
	}
	balance := ref.Ledger.BalanceOf(n.account)
	if balance.Sign() > 0 {
		if err := ref.Ledger.Transfer(n.account, params.Owner, balance); err != nil {
			return nil, fmt.Errorf("core: withdraw token: %w", err)
		}
	}
	txn.AppendEvent(events.FundsWithdrawn{Owner: params.Owner, Token: token, Amount: balance}.Event())
	if _, err := n.commitSettled(txn, ref.Ledger, n.account, params.Owner, balance); err != nil {
		return nil, err
	}
	return balance, nil
}

// Params returns the current sale parameters.
func (n *Node) Params() (*sale.Params, error) {
	return viewNode(n, func() (*sale.Params, error) { return n.saleEngine.Params() })
}

// Funded reports whether the sale has been pre-funded.
func (n *Node) Funded() (bool, error) {
	return viewNode(n, func() (bool, error) { return n.saleEngine.Funded() })
}

// Round returns the round with the given id.
func (n *Node) Round(id uint64) (*sale.Round, error) {
	return viewNode(n, func() (*sale.Round, error) { return n.saleEngine.Round(id) })
}

// ActiveRound returns the latest round if it is accepting purchases.
func (n *Node) ActiveRound() (*sale.Round, error) {
	return viewNode(n, func() (*sale.Round, error) { return n.saleEngine.ActiveRound() })
}

// Allocation returns the user's claim allocation in a round.
func (n *Node) Allocation(user common.Address, roundID uint64) (*sale.Allocation, error) {
	return viewNode(n, func() (*sale.Allocation, error) { return n.saleEngine.Allocation(user, roundID) })
}

// ReferralInfo returns the user's referral record.
func (n *Node) ReferralInfo(user common.Address) (*referral.Record, error) {
	return viewNode(n, func() (*referral.Record, error) { return n.referralEngine.Info(user) })
}

// ReferralClaimable returns the user's unclaimed referral rewards.
func (n *Node) ReferralClaimable(user common.Address) (*big.Int, error) {
	return viewNode(n, func() (*big.Int, error) { return n.referralEngine.Claimable(user) })
}

// StakingPool returns the staking pool ledger.
func (n *Node) StakingPool() (*staking.Pool, error) {
	return viewNode(n, func() (*staking.Pool, error) { return n.stakingEngine.Pool() })
}

// StakePosition returns the user's stake position, if any.
func (n *Node) StakePosition(user common.Address) (*staking.Position, bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	txn := n.state.Begin()
	defer txn.Discard()
	n.bind(txn)
	return n.stakingEngine.Position(user)
}

func viewNode[T any](n *Node, view func() (T, error)) (T, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	txn := n.state.Begin()
	defer txn.Discard()
	n.bind(txn)
	return view()
}
