package sale

import "errors"

var (
	// ErrNotOwner rejects admin mutations from anyone but the configured owner.
	ErrNotOwner = errors.New("sale: caller is not the owner")
	// ErrNotFunded rejects round creation before the committed token
	// allocation has been received.
	ErrNotFunded = errors.New("sale: contract not funded")
	// ErrAlreadyFunded rejects a second pre-funding attempt.
	ErrAlreadyFunded = errors.New("sale: contract already funded")
	// ErrRoundNotFound is returned for lookups of unknown round identifiers.
	ErrRoundNotFound = errors.New("sale: round not found")
	// ErrRoundInactive rejects purchases while no round accepts them.
	ErrRoundInactive = errors.New("sale: presale not active")
	// ErrBelowMinimum rejects purchases under the minimum token amount.
	ErrBelowMinimum = errors.New("sale: min amount not met")
	// ErrSoldOut rejects purchases that would exceed the round supply.
	ErrSoldOut = errors.New("sale: tokens sold out")
	// ErrHardcapReached rejects purchases that would exceed the USD hardcap.
	ErrHardcapReached = errors.New("sale: hardcap limit")
	// ErrOracleUnavailable surfaces stale or invalid oracle quotes.
	ErrOracleUnavailable = errors.New("sale: price oracle unavailable")
	// ErrClaimDisabled rejects claims while the round's claim gate is closed.
	ErrClaimDisabled = errors.New("sale: claim not enabled")
	// ErrInvalidAmount rejects nil, zero or negative payment amounts.
	ErrInvalidAmount = errors.New("sale: invalid amount")
	// ErrInvalidParams rejects malformed round parameters.
	ErrInvalidParams = errors.New("sale: invalid round parameters")
)
