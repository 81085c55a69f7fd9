package staking

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"tokensale/core/events"
	"tokensale/core/types"
)

// State is the minimal functionality the staking engine needs from the
// surrounding state implementation.
type State interface {
	StakingPool() (*Pool, error)
	SetStakingPool(pool *Pool) error
	StakeGet(user common.Address) (*Position, bool, error)
	StakePut(user common.Address, position *Position) error
	AppendEvent(evt *types.Event)
}

// Engine manages time-locked stake positions against a bounded reward pool.
type Engine struct {
	state State
	nowFn func() int64
}

// NewEngine creates a staking engine with the wall clock as time source.
func NewEngine() *Engine {
	return &Engine{nowFn: func() int64 { return time.Now().Unix() }}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state State) { e.state = state }

// SetNowFunc overrides the time source. Primarily intended for tests to
// provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return fmt.Errorf("staking: engine state not configured")
	}
	return nil
}

// Pool returns a copy of the current pool state.
func (e *Engine) Pool() (*Pool, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.state.StakingPool()
}

// Position returns a copy of the user's stake position, if any.
func (e *Engine) Position(user common.Address) (*Position, bool, error) {
	if err := e.ready(); err != nil {
		return nil, false, err
	}
	return e.state.StakeGet(user)
}

// Open admits a new stake position for the user. When admitting the stake
// would breach the pool cap or the reward budget, ErrPoolBounds is returned;
// the caller is expected to flip the pool inactive (a transition that
// survives the aborted purchase) and surface ErrStakingInactive.
func (e *Engine) Open(user common.Address, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	pool, err := e.state.StakingPool()
	if err != nil {
		return err
	}
	if !pool.Active {
		return ErrStakingInactive
	}
	position, ok, err := e.state.StakeGet(user)
	if err != nil {
		return err
	}
	if ok && position.Live() {
		return ErrAlreadyStaked
	}
	reward := pool.Reward(amount)
	staked := new(big.Int).Add(cloneBig(pool.TotalStaked), amount)
	committed := new(big.Int).Add(cloneBig(pool.CommittedRewards), reward)
	if staked.Cmp(pool.Cap) > 0 {
		return fmt.Errorf("%w: cap", ErrPoolBounds)
	}
	if committed.Cmp(pool.RewardBudget) > 0 {
		return fmt.Errorf("%w: reward budget", ErrPoolBounds)
	}
	now := uint64(e.now())
	next := &Position{
		StakedAmount:     cloneBig(amount),
		PotentialReward:  reward,
		StakingTimestamp: now,
		UnlockTimestamp:  now + LockDuration,
	}
	if err := e.state.StakePut(user, next); err != nil {
		return err
	}
	pool.TotalStaked = staked
	pool.CommittedRewards = committed
	if err := e.state.SetStakingPool(pool); err != nil {
		return err
	}
	e.state.AppendEvent(events.TokensStaked{
		User:            user,
		Amount:          cloneBig(amount),
		PotentialReward: cloneBig(reward),
		UnlockTimestamp: next.UnlockTimestamp,
	}.Event())
	return nil
}

// Disable flips the pool inactive and records the admission that triggered
// the shutdown. Used both for the automatic bound-breach shutdown and kept
// idempotent so repeated calls are harmless.
func (e *Engine) Disable(reason string, user common.Address, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	pool, err := e.state.StakingPool()
	if err != nil {
		return err
	}
	if !pool.Active {
		return nil
	}
	pool.Active = false
	if err := e.state.SetStakingPool(pool); err != nil {
		return err
	}
	e.state.AppendEvent(events.StakingPoolDisabled{Reason: reason, User: user, Amount: cloneBig(amount)}.Event())
	return nil
}

// Withdraw pays out a matured position: principal plus the fixed reward,
// regardless of how long after unlock the call happens. It returns the two
// components for the caller to settle from the staking reserve.
func (e *Engine) Withdraw(user common.Address) (principal, reward *big.Int, err error) {
	if err := e.ready(); err != nil {
		return nil, nil, err
	}
	position, ok, err := e.state.StakeGet(user)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, ErrNoActivePosition
	}
	if position.Withdrawn {
		return nil, nil, ErrAlreadyWithdrawn
	}
	if uint64(e.now()) < position.UnlockTimestamp {
		return nil, nil, ErrStakeLocked
	}
	position.Withdrawn = true
	if err := e.state.StakePut(user, position); err != nil {
		return nil, nil, err
	}
	principal = cloneBig(position.StakedAmount)
	reward = cloneBig(position.PotentialReward)
	e.state.AppendEvent(events.StakeWithdrawn{User: user, Principal: principal, Reward: reward}.Event())
	return principal, reward, nil
}

// SetActive toggles the pool by admin decision.
func (e *Engine) SetActive(active bool) error {
	if err := e.ready(); err != nil {
		return err
	}
	pool, err := e.state.StakingPool()
	if err != nil {
		return err
	}
	if pool.Active == active {
		return nil
	}
	pool.Active = active
	if err := e.state.SetStakingPool(pool); err != nil {
		return err
	}
	e.state.AppendEvent(events.StakingStatusChanged{Active: active}.Event())
	return nil
}

// SetCap updates the pool cap.
func (e *Engine) SetCap(cap *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if cap == nil || cap.Sign() < 0 {
		return ErrInvalidAmount
	}
	pool, err := e.state.StakingPool()
	if err != nil {
		return err
	}
	oldCap := cloneBig(pool.Cap)
	pool.Cap = cloneBig(cap)
	if err := e.state.SetStakingPool(pool); err != nil {
		return err
	}
	e.state.AppendEvent(events.StakingCapUpdated{OldCap: oldCap, NewCap: cloneBig(cap)}.Event())
	return nil
}

// SetRewardBudget updates the maximum committed reward total.
func (e *Engine) SetRewardBudget(budget *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if budget == nil || budget.Sign() < 0 {
		return ErrInvalidAmount
	}
	pool, err := e.state.StakingPool()
	if err != nil {
		return err
	}
	oldBudget := cloneBig(pool.RewardBudget)
	pool.RewardBudget = cloneBig(budget)
	if err := e.state.SetStakingPool(pool); err != nil {
		return err
	}
	e.state.AppendEvent(events.StakingRewardBudgetUpdated{OldBudget: oldBudget, NewBudget: cloneBig(budget)}.Event())
	return nil
}
