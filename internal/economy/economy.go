// Package economy implements the pre-admission token budget enforcer
// consulted before any paid dispatch path.
package economy

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrLowBattery is returned by Check/Deduct when the requested amount would
// drive the balance negative. Never retried automatically by callers.
var ErrLowBattery = errors.New("LOW_BATTERY")

// SpendEntry is one append-only line in the spend log.
type SpendEntry struct {
	At       time.Time `json:"at"`
	AmountUSD float64  `json:"amount_usd"`
	Reason   string    `json:"reason"`
}

// Economy tracks a monotonically non-increasing balance and an append-only
// spend log. Check and Deduct are serialized with respect to each other so
// concurrent dispatches never observe or cause an overdraft.
type Economy struct {
	mu          sync.Mutex
	balance     float64
	initial     float64
	spendLog    []SpendEntry
	persistPath string
}

// New creates an Economy seeded with the given budget. The spend log is not
// persisted to disk; use NewPersistent for that.
func New(budgetUSD float64) *Economy {
	return &Economy{balance: budgetUSD, initial: budgetUSD}
}

// NewPersistent creates an Economy that rewrites spendLogPath (write-temp +
// atomic rename) after every successful Deduct, matching the append-only
// spend_log.json layout.
func NewPersistent(budgetUSD float64, spendLogPath string) *Economy {
	e := New(budgetUSD)
	e.persistPath = spendLogPath
	return e
}

func (e *Economy) persistLocked() {
	if e.persistPath == "" {
		return
	}
	b, err := json.MarshalIndent(e.spendLog, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("economy_marshal_spend_log_failed")
		return
	}
	if err := os.MkdirAll(filepath.Dir(e.persistPath), 0o755); err != nil {
		log.Error().Err(err).Msg("economy_mkdir_spend_log_failed")
		return
	}
	tmp := e.persistPath + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		log.Error().Err(err).Msg("economy_write_spend_log_failed")
		return
	}
	if err := os.Rename(tmp, e.persistPath); err != nil {
		log.Error().Err(err).Msg("economy_rename_spend_log_failed")
	}
}

// Balance returns the current balance.
func (e *Economy) Balance() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balance
}

// SpendLog returns a copy of the append-only spend log.
func (e *Economy) SpendLog() []SpendEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]SpendEntry, len(e.spendLog))
	copy(out, e.spendLog)
	return out
}

// Check reports whether amountUSD could currently be deducted, without
// mutating the balance. Returns ErrLowBattery if balance < amountUSD.
func (e *Economy) Check(amountUSD float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.balance < amountUSD {
		return fmt.Errorf("check %.4f against balance %.4f: %w", amountUSD, e.balance, ErrLowBattery)
	}
	return nil
}

// Deduct atomically subtracts amountUSD and appends a spend log entry.
// Returns ErrLowBattery (leaving the balance unchanged) if the deduction
// would drive the balance negative.
func (e *Economy) Deduct(amountUSD float64, reason string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.balance-amountUSD < 0 {
		return fmt.Errorf("deduct %.4f against balance %.4f: %w", amountUSD, e.balance, ErrLowBattery)
	}
	e.balance -= amountUSD
	e.spendLog = append(e.spendLog, SpendEntry{At: time.Now().UTC(), AmountUSD: amountUSD, Reason: reason})
	e.persistLocked()
	return nil
}

// Reconcile confirms the invariant that spend + balance equals the initial
// budget; used by tests and diagnostics, never by the hot path.
func (e *Economy) Reconcile() (spent, balance, initial float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range e.spendLog {
		spent += s.AmountUSD
	}
	return spent, e.balance, e.initial
}
