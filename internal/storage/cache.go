// Package storage keeps the local fallback copy of the ledger snapshot.
//
// Each collection is stored under its own stable key, matching the entity
// kinds the remote store exchanges.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"presupuesto/internal/core"
)

const (
	KeyTransactions = "transactions"
	KeyBudgets      = "budgets"
	KeyDebts        = "debts"
	KeySavingsGoal  = "savingsGoal"
	KeyRecurring    = "recurring"
	KeyCategories   = "categories"
)

// EntityKeys lists every key written by Save.
var EntityKeys = []string{KeyTransactions, KeyBudgets, KeyDebts, KeySavingsGoal, KeyRecurring, KeyCategories}

// Cache is a local snapshot store with a pending-sync marker.
type Cache interface {
	// Load returns the cached snapshot; found is false when nothing was saved yet.
	Load(ctx context.Context) (s core.Snapshot, found bool, err error)
	Save(ctx context.Context, s core.Snapshot) error
	// MarkPending flags the cached copy as newer than the remote store.
	MarkPending(ctx context.Context, at time.Time) error
	ClearPending(ctx context.Context, at time.Time) error
	Pending(ctx context.Context) (bool, error)
	Close() error
}

func encodeSnapshot(s core.Snapshot) (map[string][]byte, error) {
	values := map[string]any{
		KeyTransactions: s.Transactions,
		KeyBudgets:      s.Budgets,
		KeyDebts:        s.Debts,
		KeySavingsGoal:  s.SavingsGoal,
		KeyRecurring:    s.Recurring,
		KeyCategories:   s.Categories,
	}
	out := make(map[string][]byte, len(values))
	for key, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", key, err)
		}
		out[key] = data
	}
	return out, nil
}

func decodeSnapshot(entries map[string][]byte) (core.Snapshot, error) {
	var s core.Snapshot
	targets := map[string]any{
		KeyTransactions: &s.Transactions,
		KeyBudgets:      &s.Budgets,
		KeyDebts:        &s.Debts,
		KeySavingsGoal:  &s.SavingsGoal,
		KeyRecurring:    &s.Recurring,
		KeyCategories:   &s.Categories,
	}
	for key, data := range entries {
		target, ok := targets[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(data, target); err != nil {
			return core.Snapshot{}, fmt.Errorf("decode %s: %w", key, err)
		}
	}
	return s, nil
}
