package state

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"tokensale/core/types"
	"tokensale/native/referral"
	"tokensale/native/sale"
	"tokensale/native/staking"
)

// Txn stages mutations against a Manager. Reads see the manager's committed
// state overlaid with the transaction's own writes. Commit persists every
// staged entry to the database before applying it to the in-memory copy, so
// an operation either lands in full or not at all. A discarded transaction
// leaves no trace.
//
// Txn satisfies the state interfaces of the sale, referral and staking
// engines, which lets one transaction span all three ledgers.
type Txn struct {
	m    *Manager
	done bool

	params       *sale.Params
	funded       *bool
	roundCounter *uint64
	nativeVault  *big.Int
	rounds       map[uint64]*sale.Round
	allocations  map[allocationKey]*sale.Allocation
	excluded     map[common.Address]bool

	referralProgram *referral.Program
	referrals       map[common.Address]*referral.Record

	pool   *staking.Pool
	stakes map[common.Address]*staking.Position

	events []types.Event
}

func newTxn(m *Manager) *Txn {
	return &Txn{
		m:           m,
		rounds:      make(map[uint64]*sale.Round),
		allocations: make(map[allocationKey]*sale.Allocation),
		excluded:    make(map[common.Address]bool),
		referrals:   make(map[common.Address]*referral.Record),
		stakes:      make(map[common.Address]*staking.Position),
	}
}

func (t *Txn) ensureOpen() error {
	if t == nil || t.m == nil {
		return fmt.Errorf("state: transaction not initialised")
	}
	if t.done {
		return fmt.Errorf("state: transaction already finished")
	}
	return nil
}

// SaleParams returns the sale parameters visible to this transaction.
func (t *Txn) SaleParams() (*sale.Params, error) {
	if err := t.ensureOpen(); err != nil {
		return nil, err
	}
	if t.params != nil {
		return t.params.Clone(), nil
	}
	t.m.mu.RLock()
	defer t.m.mu.RUnlock()
	return t.m.params.Clone(), nil
}

// SetSaleParams stages new sale parameters.
func (t *Txn) SetSaleParams(params *sale.Params) error {
	if err := t.ensureOpen(); err != nil {
		return err
	}
	if params == nil {
		return fmt.Errorf("state: nil sale params")
	}
	t.params = params.Clone()
	return nil
}

// SaleFunded reports whether the sale has been pre-funded.
func (t *Txn) SaleFunded() (bool, error) {
	if err := t.ensureOpen(); err != nil {
		return false, err
	}
	if t.funded != nil {
		return *t.funded, nil
	}
	t.m.mu.RLock()
	defer t.m.mu.RUnlock()
	return t.m.funded, nil
}

// SetSaleFunded stages the funding flag.
func (t *Txn) SetSaleFunded(funded bool) error {
	if err := t.ensureOpen(); err != nil {
		return err
	}
	t.funded = &funded
	return nil
}

// RoundCounter returns the identifier of the most recently created round.
func (t *Txn) RoundCounter() (uint64, error) {
	if err := t.ensureOpen(); err != nil {
		return 0, err
	}
	if t.roundCounter != nil {
		return *t.roundCounter, nil
	}
	t.m.mu.RLock()
	defer t.m.mu.RUnlock()
	return t.m.roundCounter, nil
}

// SetRoundCounter stages the round counter.
func (t *Txn) SetRoundCounter(id uint64) error {
	if err := t.ensureOpen(); err != nil {
		return err
	}
	t.roundCounter = &id
	return nil
}

// RoundGet looks up a round by id.
func (t *Txn) RoundGet(id uint64) (*sale.Round, bool, error) {
	if err := t.ensureOpen(); err != nil {
		return nil, false, err
	}
	if round, ok := t.rounds[id]; ok {
		return round.Clone(), true, nil
	}
	t.m.mu.RLock()
	defer t.m.mu.RUnlock()
	round, ok := t.m.rounds[id]
	if !ok {
		return nil, false, nil
	}
	return round.Clone(), true, nil
}

// RoundPut stages a round write.
func (t *Txn) RoundPut(round *sale.Round) error {
	if err := t.ensureOpen(); err != nil {
		return err
	}
	if round == nil {
		return fmt.Errorf("state: nil round")
	}
	t.rounds[round.ID] = round.Clone()
	return nil
}

// AllocationGet returns the claim allocation for user in the given round. A
// missing allocation reads as zero.
func (t *Txn) AllocationGet(user common.Address, roundID uint64) (*sale.Allocation, error) {
	if err := t.ensureOpen(); err != nil {
		return nil, err
	}
	key := allocationKey{user: user, roundID: roundID}
	if alloc, ok := t.allocations[key]; ok {
		return alloc.Clone(), nil
	}
	t.m.mu.RLock()
	defer t.m.mu.RUnlock()
	if alloc, ok := t.m.allocations[key]; ok {
		return alloc.Clone(), nil
	}
	return &sale.Allocation{TotalAmount: big.NewInt(0), ClaimedAmount: big.NewInt(0)}, nil
}

// AllocationPut stages an allocation write.
func (t *Txn) AllocationPut(user common.Address, roundID uint64, alloc *sale.Allocation) error {
	if err := t.ensureOpen(); err != nil {
		return err
	}
	if alloc == nil {
		return fmt.Errorf("state: nil allocation")
	}
	t.allocations[allocationKey{user: user, roundID: roundID}] = alloc.Clone()
	return nil
}

// MinimumExcluded reports whether addr is exempt from the minimum purchase.
func (t *Txn) MinimumExcluded(addr common.Address) (bool, error) {
	if err := t.ensureOpen(); err != nil {
		return false, err
	}
	if excluded, ok := t.excluded[addr]; ok {
		return excluded, nil
	}
	t.m.mu.RLock()
	defer t.m.mu.RUnlock()
	return t.m.excluded[addr], nil
}

// SetMinimumExcluded stages a minimum-purchase exemption.
func (t *Txn) SetMinimumExcluded(addr common.Address, excluded bool) error {
	if err := t.ensureOpen(); err != nil {
		return err
	}
	t.excluded[addr] = excluded
	return nil
}

// NativeVault returns the native currency balance held by the sale.
func (t *Txn) NativeVault() (*big.Int, error) {
	if err := t.ensureOpen(); err != nil {
		return nil, err
	}
	if t.nativeVault != nil {
		return new(big.Int).Set(t.nativeVault), nil
	}
	t.m.mu.RLock()
	defer t.m.mu.RUnlock()
	return new(big.Int).Set(t.m.nativeVault), nil
}

// SetNativeVault stages the native vault balance.
func (t *Txn) SetNativeVault(balance *big.Int) error {
	if err := t.ensureOpen(); err != nil {
		return err
	}
	if balance == nil || balance.Sign() < 0 {
		return fmt.Errorf("state: invalid vault balance")
	}
	t.nativeVault = new(big.Int).Set(balance)
	return nil
}

// ReferralProgram returns the referral program configuration.
func (t *Txn) ReferralProgram() (*referral.Program, error) {
	if err := t.ensureOpen(); err != nil {
		return nil, err
	}
	if t.referralProgram != nil {
		return t.referralProgram.Clone(), nil
	}
	t.m.mu.RLock()
	defer t.m.mu.RUnlock()
	return t.m.referralProgram.Clone(), nil
}

// SetReferralProgram stages the referral program configuration.
func (t *Txn) SetReferralProgram(program *referral.Program) error {
	if err := t.ensureOpen(); err != nil {
		return err
	}
	if program == nil {
		return fmt.Errorf("state: nil referral program")
	}
	t.referralProgram = program.Clone()
	return nil
}

// ReferralGet looks up a user's referral record.
func (t *Txn) ReferralGet(user common.Address) (*referral.Record, bool, error) {
	if err := t.ensureOpen(); err != nil {
		return nil, false, err
	}
	if record, ok := t.referrals[user]; ok {
		return record.Clone(), true, nil
	}
	t.m.mu.RLock()
	defer t.m.mu.RUnlock()
	record, ok := t.m.referrals[user]
	if !ok {
		return nil, false, nil
	}
	return record.Clone(), true, nil
}

// ReferralPut stages a referral record write.
func (t *Txn) ReferralPut(user common.Address, record *referral.Record) error {
	if err := t.ensureOpen(); err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("state: nil referral record")
	}
	t.referrals[user] = record.Clone()
	return nil
}

// StakingPool returns the staking pool ledger.
func (t *Txn) StakingPool() (*staking.Pool, error) {
	if err := t.ensureOpen(); err != nil {
		return nil, err
	}
	if t.pool != nil {
		return t.pool.Clone(), nil
	}
	t.m.mu.RLock()
	defer t.m.mu.RUnlock()
	return t.m.pool.Clone(), nil
}

// SetStakingPool stages the staking pool ledger.
func (t *Txn) SetStakingPool(pool *staking.Pool) error {
	if err := t.ensureOpen(); err != nil {
		return err
	}
	if pool == nil {
		return fmt.Errorf("state: nil staking pool")
	}
	t.pool = pool.Clone()
	return nil
}

// StakeGet looks up a user's stake position.
func (t *Txn) StakeGet(user common.Address) (*staking.Position, bool, error) {
	if err := t.ensureOpen(); err != nil {
		return nil, false, err
	}
	if position, ok := t.stakes[user]; ok {
		return position.Clone(), true, nil
	}
	t.m.mu.RLock()
	defer t.m.mu.RUnlock()
	position, ok := t.m.stakes[user]
	if !ok {
		return nil, false, nil
	}
	return position.Clone(), true, nil
}

// StakePut stages a stake position write.
func (t *Txn) StakePut(user common.Address, position *staking.Position) error {
	if err := t.ensureOpen(); err != nil {
		return err
	}
	if position == nil {
		return fmt.Errorf("state: nil stake position")
	}
	t.stakes[user] = position.Clone()
	return nil
}

// AppendEvent records an event emitted during the transaction. Events are
// only surfaced once the transaction commits.
func (t *Txn) AppendEvent(evt *types.Event) {
	if t == nil || evt == nil || t.done {
		return
	}
	t.events = append(t.events, *evt)
}

// Events returns the events staged so far.
func (t *Txn) Events() []types.Event {
	if t == nil {
		return nil
	}
	out := make([]types.Event, len(t.events))
	copy(out, t.events)
	return out
}

// Discard drops all staged writes.
func (t *Txn) Discard() {
	if t != nil {
		t.done = true
	}
}

type stagedWrite struct {
	key   string
	value interface{}
	apply func(m *Manager)
}

// Commit persists every staged write to the database and then applies it to
// the manager's in-memory state. The database write happens first; if it
// fails the in-memory state is untouched and the error is returned.
func (t *Txn) Commit() error {
	if err := t.ensureOpen(); err != nil {
		return err
	}
	t.done = true

	var writes []stagedWrite
	if t.params != nil {
		params := t.params
		writes = append(writes, stagedWrite{keySaleParams, params, func(m *Manager) { m.params = params }})
	}
	if t.funded != nil {
		funded := *t.funded
		writes = append(writes, stagedWrite{keySaleFunded, funded, func(m *Manager) { m.funded = funded }})
	}
	if t.roundCounter != nil {
		counter := *t.roundCounter
		writes = append(writes, stagedWrite{keyRoundCounter, counter, func(m *Manager) { m.roundCounter = counter }})
	}
	if t.nativeVault != nil {
		vault := t.nativeVault
		writes = append(writes, stagedWrite{keyNativeVault, vault, func(m *Manager) { m.nativeVault = vault }})
	}
	for id, round := range t.rounds {
		id, round := id, round
		writes = append(writes, stagedWrite{roundKey(id), round, func(m *Manager) { m.rounds[id] = round }})
	}
	for key, alloc := range t.allocations {
		key, alloc := key, alloc
		writes = append(writes, stagedWrite{allocKey(key.user, key.roundID), alloc, func(m *Manager) { m.allocations[key] = alloc }})
	}
	for addr, excluded := range t.excluded {
		addr, excluded := addr, excluded
		writes = append(writes, stagedWrite{excludedKey(addr), excluded, func(m *Manager) { m.excluded[addr] = excluded }})
	}
	if t.referralProgram != nil {
		program := t.referralProgram
		writes = append(writes, stagedWrite{keyReferralProgram, program, func(m *Manager) { m.referralProgram = program }})
	}
	for addr, record := range t.referrals {
		addr, record := addr, record
		writes = append(writes, stagedWrite{referralKey(addr), record, func(m *Manager) { m.referrals[addr] = record }})
	}
	if t.pool != nil {
		pool := t.pool
		writes = append(writes, stagedWrite{keyStakingPool, pool, func(m *Manager) { m.pool = pool }})
	}
	for addr, position := range t.stakes {
		addr, position := addr, position
		writes = append(writes, stagedWrite{stakeKey(addr), position, func(m *Manager) { m.stakes[addr] = position }})
	}

	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	for _, w := range writes {
		raw, err := json.Marshal(w.value)
		if err != nil {
			return fmt.Errorf("state: encode %s: %w", w.key, err)
		}
		if err := t.m.db.Put([]byte(w.key), raw); err != nil {
			return fmt.Errorf("state: persist %s: %w", w.key, err)
		}
	}
	for _, w := range writes {
		w.apply(t.m)
	}
	return nil
}
