package referral

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"tokensale/core/events"
	"tokensale/core/types"
)

// State is the minimal functionality the referral engine needs from the
// surrounding state implementation.
type State interface {
	ReferralProgram() (*Program, error)
	SetReferralProgram(program *Program) error
	ReferralGet(user common.Address) (*Record, bool, error)
	ReferralPut(user common.Address, record *Record) error
	AppendEvent(evt *types.Event)
}

// Engine maintains the referral graph and reward ledgers. The graph is kept
// acyclic: each user points at most once to a single referrer and upward
// traversal rejects any link that would make the referee its own ancestor.
type Engine struct {
	state State
}

// NewEngine creates a referral engine without state wired.
func NewEngine() *Engine {
	return &Engine{}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state State) { e.state = state }

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return fmt.Errorf("referral: engine state not configured")
	}
	return nil
}

func (e *Engine) record(user common.Address) (*Record, error) {
	rec, ok, err := e.state.ReferralGet(user)
	if err != nil {
		return nil, err
	}
	if !ok || rec == nil {
		return newRecord(), nil
	}
	return rec, nil
}

// Info returns a copy of the user's referral record.
func (e *Engine) Info(user common.Address) (*Record, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.record(user)
}

// Qualified reports whether the user may act as a referrer.
func (e *Engine) Qualified(user common.Address) (bool, error) {
	rec, err := e.Info(user)
	if err != nil {
		return false, err
	}
	return rec.Qualified, nil
}

// RecordPurchase accumulates the buyer's lifetime purchased tokens and flips
// the qualification flag once the threshold is crossed. The flag never
// resets. Called on every purchase, referred or not.
func (e *Engine) RecordPurchase(buyer common.Address, tokenAmount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if tokenAmount == nil || tokenAmount.Sign() <= 0 {
		return nil
	}
	program, err := e.state.ReferralProgram()
	if err != nil {
		return err
	}
	rec, err := e.record(buyer)
	if err != nil {
		return err
	}
	rec.LifetimePurchased = new(big.Int).Add(cloneBig(rec.LifetimePurchased), tokenAmount)
	if !rec.Qualified && program.MinimumPurchase != nil &&
		rec.LifetimePurchased.Cmp(program.MinimumPurchase) >= 0 {
		rec.Qualified = true
		e.state.AppendEvent(events.ReferralQualified{
			User:          buyer,
			LifetimeTotal: cloneBig(rec.LifetimePurchased),
		}.Event())
	}
	return e.state.ReferralPut(buyer, rec)
}

// isAncestor walks the referrer chain upward from start and reports whether
// needle appears. The visited set bounds the traversal by the total user
// count, so a corrupted chain can never loop forever.
func (e *Engine) isAncestor(needle, start common.Address) (bool, error) {
	visited := make(map[common.Address]struct{})
	current := start
	for {
		if _, seen := visited[current]; seen {
			return false, nil
		}
		visited[current] = struct{}{}
		rec, ok, err := e.state.ReferralGet(current)
		if err != nil {
			return false, err
		}
		if !ok || rec == nil || !rec.HasReferrer {
			return false, nil
		}
		if rec.Referrer == needle {
			return true, nil
		}
		current = rec.Referrer
	}
}

// Record links the referee to the referrer (first time only) and credits the
// symmetric reward to both sides. A repeat purchase through the established
// referrer accrues rewards again without re-recording the link. When the
// reward budget would be exceeded the reward is skipped but the relationship
// is still recorded; the degradation is observable through the skip event.
func (e *Engine) Record(referee, referrer common.Address, purchaseTokenAmount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if referrer == (common.Address{}) || referrer == referee {
		return ErrInvalidReferrer
	}
	referrerRec, err := e.record(referrer)
	if err != nil {
		return err
	}
	if !referrerRec.Qualified {
		return ErrUnqualifiedReferrer
	}
	refereeRec, err := e.record(referee)
	if err != nil {
		return err
	}
	if refereeRec.HasReferrer && refereeRec.Referrer != referrer {
		return ErrAlreadyReferred
	}
	if !refereeRec.HasReferrer {
		circular, err := e.isAncestor(referee, referrer)
		if err != nil {
			return err
		}
		if circular {
			return ErrCircularReferral
		}
		refereeRec.Referrer = referrer
		refereeRec.HasReferrer = true
		e.state.AppendEvent(events.ReferralRecorded{Referrer: referrer, Referee: referee}.Event())
	}

	program, err := e.state.ReferralProgram()
	if err != nil {
		return err
	}
	reward := new(big.Int).Mul(cloneBig(purchaseTokenAmount), big.NewInt(int64(program.RewardPercent)))
	reward.Quo(reward, big.NewInt(100))
	if reward.Sign() > 0 {
		// Both sides receive the reward, so the budget is debited twice.
		payout := new(big.Int).Lsh(reward, 1)
		spent := new(big.Int).Add(cloneBig(program.Distributed), payout)
		if program.RewardBudget != nil && spent.Cmp(program.RewardBudget) > 0 {
			e.state.AppendEvent(events.ReferralRewardSkipped{
				Referrer: referrer,
				Referee:  referee,
				Reward:   reward,
				Reason:   "budget_exhausted",
			}.Event())
		} else {
			referrerRec.TotalRewards = new(big.Int).Add(cloneBig(referrerRec.TotalRewards), reward)
			refereeRec.TotalRewards = new(big.Int).Add(cloneBig(refereeRec.TotalRewards), reward)
			program.Distributed = spent
			if err := e.state.SetReferralProgram(program); err != nil {
				return err
			}
			e.state.AppendEvent(events.ReferralRewardsAdded{
				Referrer:       referrer,
				Referee:        referee,
				ReferrerReward: cloneBig(reward),
				RefereeReward:  cloneBig(reward),
			}.Event())
		}
	}

	if err := e.state.ReferralPut(referrer, referrerRec); err != nil {
		return err
	}
	return e.state.ReferralPut(referee, refereeRec)
}

// Claimable reports the user's unclaimed reward balance.
func (e *Engine) Claimable(user common.Address) (*big.Int, error) {
	rec, err := e.Info(user)
	if err != nil {
		return nil, err
	}
	return rec.Claimable(), nil
}

// Claim marks the user's accrued rewards as claimed and returns the amount
// the caller must transfer from the referral reserve. Claiming with nothing
// outstanding is a no-op success returning zero.
func (e *Engine) Claim(user common.Address) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	rec, err := e.record(user)
	if err != nil {
		return nil, err
	}
	claimable := rec.Claimable()
	if claimable.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	rec.ClaimedRewards = cloneBig(rec.TotalRewards)
	if err := e.state.ReferralPut(user, rec); err != nil {
		return nil, err
	}
	e.state.AppendEvent(events.ReferralRewardsClaimed{User: user, Amount: claimable}.Event())
	return claimable, nil
}
