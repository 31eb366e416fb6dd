package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MockRepository is an in-memory implementation of Repository for testing.
// It stores all data in maps and slices, making tests fast and isolated.
type MockRepository struct {
	mu           sync.Mutex
	runs         map[string]*RunRecord
	runOrder     []string
	settlements  []Settlement
	nextSettleID int64

	// Hooks for test assertions
	SaveRunCalled           bool
	LastSavedRun            *RunRecord
	LastSavedSettlements    []Settlement
	GetSettledAmountsCalled bool

	// Error injection for testing error paths
	SaveRunErr           error
	GetRunErr            error
	ListRunsErr          error
	GetSettledAmountsErr error
	ListSettlementsErr   error
}

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{
		runs:         make(map[string]*RunRecord),
		settlements:  make([]Settlement, 0),
		nextSettleID: 1,
	}
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

// Close does nothing for mock
func (m *MockRepository) Close() error {
	return nil
}

// SaveRun stores the run and settlements in memory
func (m *MockRepository) SaveRun(_ context.Context, run *RunRecord, settlements []Settlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SaveRunCalled = true
	m.LastSavedRun = run
	m.LastSavedSettlements = settlements
	if m.SaveRunErr != nil {
		return m.SaveRunErr
	}
	if _, exists := m.runs[run.ID]; exists {
		return fmt.Errorf("run %s already exists", run.ID)
	}

	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	// Deep copy to avoid test mutations
	copied := *run
	m.runs[run.ID] = &copied
	m.runOrder = append(m.runOrder, run.ID)

	for _, st := range settlements {
		if m.hasSettlement(st.LedgerID, st.BankTxnID) {
			continue
		}
		st.ID = m.nextSettleID
		st.RunID = run.ID
		st.CreatedAt = run.CreatedAt
		m.nextSettleID++
		m.settlements = append(m.settlements, st)
	}
	return nil
}

// GetRun retrieves a run from memory
func (m *MockRepository) GetRun(_ context.Context, id string) (*RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.GetRunErr != nil {
		return nil, m.GetRunErr
	}
	run, ok := m.runs[id]
	if !ok {
		return nil, nil
	}
	copied := *run
	return &copied, nil
}

// ListRuns returns runs newest first (most recently saved first on ties)
func (m *MockRepository) ListRuns(_ context.Context, filters RunFilters) (*RunListResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ListRunsErr != nil {
		return nil, m.ListRunsErr
	}

	matched := make([]*RunRecord, 0, len(m.runOrder))
	for i := len(m.runOrder) - 1; i >= 0; i-- {
		run := m.runs[m.runOrder[i]]
		if filters.Kind != "" && run.Kind != filters.Kind {
			continue
		}
		copied := *run
		copied.ResultJSON = ""
		matched = append(matched, &copied)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	result := &RunListResult{
		Runs:       make([]*RunRecord, 0),
		TotalCount: len(matched),
		Limit:      filters.limit(),
		Offset:     filters.Offset,
	}
	if filters.Offset < len(matched) {
		end := min(filters.Offset+result.Limit, len(matched))
		result.Runs = append(result.Runs, matched[filters.Offset:end]...)
	}
	return result, nil
}

func (m *MockRepository) hasSettlement(ledgerID, bankTxnID string) bool {
	for _, st := range m.settlements {
		if st.LedgerID == ledgerID && st.BankTxnID == bankTxnID {
			return true
		}
	}
	return false
}

// GetSettledAmounts sums in-memory settlements per ledger id
func (m *MockRepository) GetSettledAmounts(_ context.Context, ledgerIDs, excludeBankTxnIDs []string) (map[string]decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetSettledAmountsCalled = true
	if m.GetSettledAmountsErr != nil {
		return nil, m.GetSettledAmountsErr
	}

	wanted := make(map[string]bool, len(ledgerIDs))
	for _, id := range ledgerIDs {
		wanted[id] = true
	}
	excluded := make(map[string]bool, len(excludeBankTxnIDs))
	for _, id := range excludeBankTxnIDs {
		excluded[id] = true
	}
	totals := make(map[string]decimal.Decimal)
	for _, st := range m.settlements {
		if wanted[st.LedgerID] && !excluded[st.BankTxnID] {
			totals[st.LedgerID] = totals[st.LedgerID].Add(st.Amount)
		}
	}
	return totals, nil
}

// ListSettlements returns in-memory settlements for one ledger entry
func (m *MockRepository) ListSettlements(_ context.Context, ledgerID string) ([]Settlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ListSettlementsErr != nil {
		return nil, m.ListSettlementsErr
	}
	out := make([]Settlement, 0)
	for _, st := range m.settlements {
		if st.LedgerID == ledgerID {
			out = append(out, st)
		}
	}
	return out, nil
}

// AddSettlement seeds a settlement directly, for tests that need prior history
func (m *MockRepository) AddSettlement(st Settlement) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st.ID = m.nextSettleID
	m.nextSettleID++
	m.settlements = append(m.settlements, st)
}
