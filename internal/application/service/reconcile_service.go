package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/eshaffer321/ledgermatch/internal/domain/matcher"
	"github.com/eshaffer321/ledgermatch/internal/domain/records"
	"github.com/eshaffer321/ledgermatch/internal/domain/register"
	"github.com/eshaffer321/ledgermatch/internal/infrastructure/storage"
)

// DefaultRunTimeout bounds a single reconciliation when none is configured.
const DefaultRunTimeout = 60 * time.Second

// ErrPersistenceDisabled is returned when a run asks to be stored but the
// service has no repository.
var ErrPersistenceDisabled = errors.New("run persistence is not configured")

// RunRequest holds the input of one bank reconciliation.
type RunRequest struct {
	BankTransactions []records.RawTransaction
	LedgerEntries    []records.RawLedgerEntry
	Settings         *matcher.Settings // nil uses the service defaults
	Persist          bool              // store the run and carry settlements forward
}

// RunResult is a finished bank reconciliation.
type RunResult struct {
	RunID     string
	Result    *matcher.Result
	Settings  matcher.Settings
	Persisted bool
	Duration  time.Duration
}

// VendorRunRequest holds the input of one vendor register reconciliation.
type VendorRunRequest struct {
	register.Request
	Settings *matcher.Settings
	Persist  bool
}

// VendorRunResult is a finished vendor register reconciliation.
type VendorRunResult struct {
	RunID     string
	Report    *register.Report
	Settings  matcher.Settings
	Persisted bool
	Duration  time.Duration
}

// ReconcileService runs reconciliations and records their history.
type ReconcileService struct {
	defaults matcher.Settings
	storage  storage.Repository // nil disables persistence
	logger   *slog.Logger
	timeout  time.Duration
	newID    func() string
	now      func() time.Time
}

// Option customizes a ReconcileService.
type Option func(*ReconcileService)

// WithRunTimeout bounds each run. Zero or negative keeps the default.
func WithRunTimeout(d time.Duration) Option {
	return func(s *ReconcileService) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithIDGenerator replaces uuid run ids, for tests.
func WithIDGenerator(fn func() string) Option {
	return func(s *ReconcileService) {
		s.newID = fn
	}
}

// NewReconcileService creates a service. defaults are validated up front so
// a bad config fails at startup rather than on the first request.
func NewReconcileService(defaults matcher.Settings, store storage.Repository, logger *slog.Logger, opts ...Option) (*ReconcileService, error) {
	if err := defaults.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &ReconcileService{
		defaults: defaults,
		storage:  store,
		logger:   logger,
		timeout:  DefaultRunTimeout,
		newID:    uuid.NewString,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Defaults returns the settings used when a request carries none.
func (s *ReconcileService) Defaults() matcher.Settings {
	return s.defaults
}

// PersistenceEnabled reports whether runs can be stored.
func (s *ReconcileService) PersistenceEnabled() bool {
	return s.storage != nil
}

func (s *ReconcileService) settingsFor(override *matcher.Settings) matcher.Settings {
	if override != nil {
		return *override
	}
	return s.defaults
}

// Run executes one bank reconciliation. Stored settlements are added to the
// ledger entries' settled amounts when the run is persisted, so partially
// paid invoices are matched against their remaining balance.
func (s *ReconcileService) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	if req.Persist && s.storage == nil {
		return nil, ErrPersistenceDisabled
	}

	settings := s.settingsFor(req.Settings)
	engine, err := matcher.NewEngine(settings, s.logger.With("system", "engine"))
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	entries := req.LedgerEntries
	if req.Persist {
		entries, err = s.applySettlements(ctx, entries, req.BankTransactions)
		if err != nil {
			return nil, err
		}
	}

	runID := s.newID()
	started := s.now()
	result, err := engine.Reconcile(ctx, matcher.Request{
		BankTransactions: req.BankTransactions,
		LedgerEntries:    entries,
	})
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	duration := s.now().Sub(started)

	out := &RunResult{
		RunID:    runID,
		Result:   result,
		Settings: settings,
		Duration: duration,
	}

	if req.Persist {
		run, err := newRunRecord(runID, storage.KindBankReconciliation, started, duration, settings, result, result)
		if err != nil {
			return nil, err
		}
		if err := s.storage.SaveRun(ctx, run, settlementsFrom(result)); err != nil {
			return nil, fmt.Errorf("save run %s: %w", runID, err)
		}
		out.Persisted = true
	}

	s.logger.Info("run complete",
		"run_id", runID,
		"persisted", out.Persisted,
		"duration_ms", duration.Milliseconds(),
		"truncated", result.Truncated,
	)
	return out, nil
}

// ReconcileVendorRegister matches a vendor-reported invoice feed against the
// purchase register. Vendor records are not payments, so nothing is settled.
func (s *ReconcileService) ReconcileVendorRegister(ctx context.Context, req VendorRunRequest) (*VendorRunResult, error) {
	if req.Persist && s.storage == nil {
		return nil, ErrPersistenceDisabled
	}

	settings := register.Settings(s.settingsFor(req.Settings))
	reconciler, err := register.NewReconciler(settings, s.logger.With("system", "register"))
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	runID := s.newID()
	started := s.now()
	report, err := reconciler.Reconcile(ctx, req.Request)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	duration := s.now().Sub(started)

	out := &VendorRunResult{
		RunID:    runID,
		Report:   report,
		Settings: settings,
		Duration: duration,
	}

	if req.Persist {
		run, err := newRunRecord(runID, storage.KindVendorRegister, started, duration, settings, report.Result, report)
		if err != nil {
			return nil, err
		}
		if err := s.storage.SaveRun(ctx, run, nil); err != nil {
			return nil, fmt.Errorf("save run %s: %w", runID, err)
		}
		out.Persisted = true
	}

	s.logger.Info("vendor register run complete",
		"run_id", runID,
		"persisted", out.Persisted,
		"vendors_at_risk", len(report.VendorsAtRisk),
		"amount_at_risk", report.AmountAtRisk.StringFixed(2),
	)
	return out, nil
}

// GetRun returns a stored run, or nil when it does not exist.
func (s *ReconcileService) GetRun(ctx context.Context, id string) (*storage.RunRecord, error) {
	if s.storage == nil {
		return nil, ErrPersistenceDisabled
	}
	return s.storage.GetRun(ctx, id)
}

// ListRuns returns stored runs, newest first.
func (s *ReconcileService) ListRuns(ctx context.Context, filters storage.RunFilters) (*storage.RunListResult, error) {
	if s.storage == nil {
		return nil, ErrPersistenceDisabled
	}
	return s.storage.ListRuns(ctx, filters)
}

// ListSettlements returns the settlements recorded against one ledger entry.
func (s *ReconcileService) ListSettlements(ctx context.Context, ledgerID string) ([]storage.Settlement, error) {
	if s.storage == nil {
		return nil, ErrPersistenceDisabled
	}
	return s.storage.ListSettlements(ctx, ledgerID)
}

// applySettlements returns a copy of entries with stored settlements added to
// each entry's settled amount. Settlements made by transactions in this run
// are left out so repeating a statement does not settle it twice. Entries
// whose settled field does not parse are left alone for the normalizer to
// reject.
func (s *ReconcileService) applySettlements(ctx context.Context, entries []records.RawLedgerEntry, txns []records.RawTransaction) ([]records.RawLedgerEntry, error) {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if id := strings.TrimSpace(e.ID); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return entries, nil
	}

	txnIDs := make([]string, 0, len(txns))
	for _, t := range txns {
		if id := strings.TrimSpace(t.ID); id != "" {
			txnIDs = append(txnIDs, id)
		}
	}

	settled, err := s.storage.GetSettledAmounts(ctx, ids, txnIDs)
	if err != nil {
		return nil, fmt.Errorf("load settlements: %w", err)
	}
	if len(settled) == 0 {
		return entries, nil
	}

	out := make([]records.RawLedgerEntry, len(entries))
	copy(out, entries)
	for i := range out {
		extra, ok := settled[strings.TrimSpace(out[i].ID)]
		if !ok {
			continue
		}
		prior := decimal.Zero
		if strings.TrimSpace(out[i].Settled) != "" {
			parsed, err := records.ParseAmount(out[i].Settled)
			if err != nil {
				continue
			}
			prior = parsed
		}
		out[i].Settled = prior.Add(extra).StringFixed(records.AmountPlaces)
		s.logger.Debug("applied stored settlements",
			"ledger_id", out[i].ID,
			"stored", extra.StringFixed(records.AmountPlaces),
			"settled", out[i].Settled,
		)
	}
	return out, nil
}

// settlementsFrom records the allocations of auto-matched matches. Suggested
// and manual review matches are not applied until a reviewer accepts them.
func settlementsFrom(result *matcher.Result) []storage.Settlement {
	var out []storage.Settlement
	for _, m := range result.AutoMatched {
		for _, a := range m.Allocations {
			if !a.Amount.IsPositive() {
				continue
			}
			out = append(out, storage.Settlement{
				LedgerID:  a.LedgerID,
				BankTxnID: m.BankTxnID,
				Amount:    a.Amount,
				MatchType: string(m.MatchType),
			})
		}
	}
	return out
}

func newRunRecord(id, kind string, started time.Time, duration time.Duration, settings matcher.Settings, result *matcher.Result, payload any) (*storage.RunRecord, error) {
	settingsJSON, err := json.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}
	summaryJSON, err := json.Marshal(result.Summary)
	if err != nil {
		return nil, fmt.Errorf("encode summary: %w", err)
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}

	return &storage.RunRecord{
		ID:                  id,
		Kind:                kind,
		CreatedAt:           started,
		DurationMs:          duration.Milliseconds(),
		AutoMatched:         len(result.AutoMatched),
		Suggested:           len(result.Suggested),
		ManualReview:        len(result.ManualReview),
		UnmatchedBank:       len(result.UnmatchedBank),
		UnmatchedInvoices:   len(result.UnmatchedInvoices),
		NormalizationErrors: len(result.NormalizationErrors),
		Truncated:           result.Truncated,
		SettingsJSON:        string(settingsJSON),
		SummaryJSON:         string(summaryJSON),
		ResultJSON:          string(payloadJSON),
	}, nil
}
