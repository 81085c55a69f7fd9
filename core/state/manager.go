// Package state persists the sale engine's ledgers over a key-value store
// and provides the staged transaction every public operation runs inside.
// All entity accessors hand out deep copies; nothing escapes by reference.
package state

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"tokensale/native/referral"
	"tokensale/native/sale"
	"tokensale/native/staking"
	"tokensale/storage"
)

// Genesis seeds a fresh store with the initial configuration. Existing
// persisted values take precedence on load.
type Genesis struct {
	SaleParams      *sale.Params
	ReferralProgram *referral.Program
	StakingPool     *staking.Pool
}

type allocationKey struct {
	user    common.Address
	roundID uint64
}

// Manager holds the authoritative in-memory copy of every ledger and writes
// committed mutations through to the backing database.
type Manager struct {
	mu sync.RWMutex
	db storage.Database

	params       *sale.Params
	funded       bool
	roundCounter uint64
	rounds       map[uint64]*sale.Round
	allocations  map[allocationKey]*sale.Allocation
	excluded     map[common.Address]bool
	nativeVault  *big.Int

	referralProgram *referral.Program
	referrals       map[common.Address]*referral.Record

	pool   *staking.Pool
	stakes map[common.Address]*staking.Position
}

// NewManager loads all persisted entities from db, falling back to the
// genesis values for anything not yet written.
func NewManager(db storage.Database, genesis Genesis) (*Manager, error) {
	if db == nil {
		return nil, fmt.Errorf("state: database required")
	}
	m := &Manager{
		db:              db,
		rounds:          make(map[uint64]*sale.Round),
		allocations:     make(map[allocationKey]*sale.Allocation),
		excluded:        make(map[common.Address]bool),
		nativeVault:     big.NewInt(0),
		referrals:       make(map[common.Address]*referral.Record),
		stakes:          make(map[common.Address]*staking.Position),
		params:          genesis.SaleParams.Clone(),
		referralProgram: genesis.ReferralProgram.Clone(),
		pool:            genesis.StakingPool.Clone(),
	}
	if m.params == nil || m.referralProgram == nil || m.pool == nil {
		return nil, fmt.Errorf("state: incomplete genesis")
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) load() error {
	if raw, err := m.db.Get([]byte(keySaleParams)); err == nil {
		var params sale.Params
		if err := json.Unmarshal(raw, &params); err != nil {
			return fmt.Errorf("state: decode sale params: %w", err)
		}
		m.params = &params
	}
	if raw, err := m.db.Get([]byte(keySaleFunded)); err == nil {
		if err := json.Unmarshal(raw, &m.funded); err != nil {
			return fmt.Errorf("state: decode funded flag: %w", err)
		}
	}
	if raw, err := m.db.Get([]byte(keyRoundCounter)); err == nil {
		if err := json.Unmarshal(raw, &m.roundCounter); err != nil {
			return fmt.Errorf("state: decode round counter: %w", err)
		}
	}
	if raw, err := m.db.Get([]byte(keyNativeVault)); err == nil {
		vault := new(big.Int)
		if err := json.Unmarshal(raw, vault); err != nil {
			return fmt.Errorf("state: decode native vault: %w", err)
		}
		m.nativeVault = vault
	}
	if raw, err := m.db.Get([]byte(keyReferralProgram)); err == nil {
		var program referral.Program
		if err := json.Unmarshal(raw, &program); err != nil {
			return fmt.Errorf("state: decode referral program: %w", err)
		}
		m.referralProgram = &program
	}
	if raw, err := m.db.Get([]byte(keyStakingPool)); err == nil {
		var pool staking.Pool
		if err := json.Unmarshal(raw, &pool); err != nil {
			return fmt.Errorf("state: decode staking pool: %w", err)
		}
		m.pool = &pool
	}

	var loadErr error
	_ = m.db.IteratePrefix([]byte(prefixRound), func(key, value []byte) bool {
		var round sale.Round
		if err := json.Unmarshal(value, &round); err != nil {
			loadErr = fmt.Errorf("state: decode round %s: %w", key, err)
			return false
		}
		m.rounds[round.ID] = &round
		return true
	})
	if loadErr != nil {
		return loadErr
	}
	_ = m.db.IteratePrefix([]byte(prefixAlloc), func(key, value []byte) bool {
		user, roundID, err := parseAllocKey(string(key))
		if err != nil {
			loadErr = err
			return false
		}
		var alloc sale.Allocation
		if err := json.Unmarshal(value, &alloc); err != nil {
			loadErr = fmt.Errorf("state: decode allocation %s: %w", key, err)
			return false
		}
		m.allocations[allocationKey{user: user, roundID: roundID}] = &alloc
		return true
	})
	if loadErr != nil {
		return loadErr
	}
	_ = m.db.IteratePrefix([]byte(prefixExcluded), func(key, value []byte) bool {
		addr := common.HexToAddress(strings.TrimPrefix(string(key), prefixExcluded))
		var excluded bool
		if err := json.Unmarshal(value, &excluded); err != nil {
			loadErr = fmt.Errorf("state: decode exclusion %s: %w", key, err)
			return false
		}
		m.excluded[addr] = excluded
		return true
	})
	if loadErr != nil {
		return loadErr
	}
	_ = m.db.IteratePrefix([]byte(prefixReferral), func(key, value []byte) bool {
		addr := common.HexToAddress(strings.TrimPrefix(string(key), prefixReferral))
		var record referral.Record
		if err := json.Unmarshal(value, &record); err != nil {
			loadErr = fmt.Errorf("state: decode referral record %s: %w", key, err)
			return false
		}
		m.referrals[addr] = &record
		return true
	})
	if loadErr != nil {
		return loadErr
	}
	_ = m.db.IteratePrefix([]byte(prefixStake), func(key, value []byte) bool {
		addr := common.HexToAddress(strings.TrimPrefix(string(key), prefixStake))
		var position staking.Position
		if err := json.Unmarshal(value, &position); err != nil {
			loadErr = fmt.Errorf("state: decode stake %s: %w", key, err)
			return false
		}
		m.stakes[addr] = &position
		return true
	})
	return loadErr
}

func parseAllocKey(key string) (common.Address, uint64, error) {
	rest := strings.TrimPrefix(key, prefixAlloc)
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 {
		return common.Address{}, 0, fmt.Errorf("state: malformed allocation key %q", key)
	}
	roundID, err := strconv.ParseUint(strings.TrimLeft(parts[1], "0"), 10, 64)
	if err != nil {
		// All-zero round id trims to the empty string.
		if strings.Trim(parts[1], "0") == "" {
			roundID = 0
		} else {
			return common.Address{}, 0, fmt.Errorf("state: malformed allocation key %q: %w", key, err)
		}
	}
	return common.HexToAddress(parts[0]), roundID, nil
}

// Begin opens a staged transaction over the manager. Reads see committed
// state plus the transaction's own writes; nothing is visible to other
// readers until Commit.
func (m *Manager) Begin() *Txn {
	return newTxn(m)
}
