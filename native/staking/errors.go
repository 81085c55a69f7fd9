package staking

import "errors"

var (
	// ErrStakingInactive rejects admissions while the pool is disabled.
	ErrStakingInactive = errors.New("staking: staking inactive")
	// ErrAlreadyStaked rejects a second live position for the same user.
	ErrAlreadyStaked = errors.New("staking: user already staked")
	// ErrNoActivePosition rejects withdrawals without a position.
	ErrNoActivePosition = errors.New("staking: no active position")
	// ErrStakeLocked rejects withdrawals before the unlock timestamp.
	ErrStakeLocked = errors.New("staking: stake still locked")
	// ErrAlreadyWithdrawn rejects repeated withdrawals of the same position.
	ErrAlreadyWithdrawn = errors.New("staking: stake already withdrawn")
	// ErrPoolBounds signals that admitting a stake would breach the pool cap
	// or the reward budget. The pool must be flipped inactive when this is
	// returned; callers surface ErrStakingInactive to the user.
	ErrPoolBounds = errors.New("staking: pool bounds exceeded")
	// ErrInvalidAmount rejects nil, zero or negative stake amounts.
	ErrInvalidAmount = errors.New("staking: invalid amount")
)
