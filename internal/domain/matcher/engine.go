// Package matcher pairs bank transactions with open ledger entries and
// tiers the result for review.
//
// A run moves through fixed phases:
//   - normalize raw records and enforce input limits
//   - generate and score candidates per transaction (one-to-one, partial
//     payments, bulk groups) and per ledger entry (split payments)
//   - resolve conflicts with a Solver (GreedySolver by default)
//   - tier accepted matches and aggregate the summary
//
// Output is a deterministic function of the input and Settings: worker
// count and scheduling never change it.
//
// Example usage:
//
//	engine, err := matcher.NewEngine(matcher.DefaultSettings(), logger)
//	if err != nil {
//		return err // *ConfigurationError
//	}
//	result, err := engine.Reconcile(ctx, matcher.Request{
//		BankTransactions: txns,
//		LedgerEntries:    invoices,
//	})
package matcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/eshaffer321/ledgermatch/internal/domain/records"
	"golang.org/x/sync/errgroup"
)

// Engine runs reconciliations with fixed settings. It holds no state between
// runs and is safe for concurrent use.
type Engine struct {
	settings Settings
	solver   Solver
	logger   *slog.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithSolver replaces the default GreedySolver.
func WithSolver(s Solver) Option {
	return func(e *Engine) {
		e.solver = s
	}
}

// NewEngine validates settings and creates an engine.
func NewEngine(settings Settings, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		settings: settings,
		solver:   GreedySolver{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Settings returns the engine's settings.
func (e *Engine) Settings() Settings {
	return e.settings
}

// Reconcile normalizes the request and matches it. Malformed records are
// reported in the result and never abort the run. The only errors returned
// come from ctx.
func (e *Engine) Reconcile(ctx context.Context, req Request) (*Result, error) {
	batch, recordErrs := records.Normalize(req.BankTransactions, req.LedgerEntries)
	return e.ReconcileBatch(ctx, batch, recordErrs)
}

// ReconcileBatch matches already normalized records. recordErrs are carried
// into the result unchanged.
func (e *Engine) ReconcileBatch(ctx context.Context, batch records.Batch, recordErrs []records.RecordError) (*Result, error) {
	start := time.Now()
	result := newResult(recordErrs)

	batch = e.enforceLimits(batch, result)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}

	ix := newIndex(e.settings, batch)
	txnOutcomes, entryOutcomes, err := e.generate(ctx, ix)
	if err != nil {
		return nil, fmt.Errorf("reconcile: candidate generation: %w", err)
	}

	var candidates []Candidate
	withCandidate := make(map[string]bool)
	for _, group := range [][]outcome{txnOutcomes, entryOutcomes} {
		for _, o := range group {
			for _, c := range o.candidates {
				for _, id := range c.TransactionIDs {
					withCandidate[id] = true
				}
			}
			candidates = append(candidates, o.candidates...)
			if len(o.capacity) > 0 {
				result.Truncated = true
				result.CapacityNotices = append(result.CapacityNotices, o.capacity...)
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}

	accepted := e.solver.Solve(candidates)

	claimed := make(map[string]bool)
	for _, c := range accepted {
		for _, id := range c.TransactionIDs {
			claimed[id] = true
		}
	}
	for ti, t := range ix.txns {
		if claimed[t.ID] || withCandidate[t.ID] {
			continue
		}
		if c, ok := ix.bankChargeCandidate(ti); ok {
			accepted = append(accepted, c)
		}
	}

	bucket(result, accepted, e.settings)
	summarize(result, ix)

	e.logger.Info("reconciliation complete",
		"transactions", len(ix.txns),
		"ledger_entries", len(ix.entries),
		"candidates", len(candidates),
		"auto_matched", len(result.AutoMatched),
		"suggested", len(result.Suggested),
		"manual_review", len(result.ManualReview),
		"unmatched_bank", len(result.UnmatchedBank),
		"unmatched_invoices", len(result.UnmatchedInvoices),
		"rejected", len(result.NormalizationErrors),
		"truncated", result.Truncated,
		"duration", time.Since(start),
	)
	return result, nil
}

// generate evaluates every transaction, and every ledger entry when bulk
// matching is on, on a bounded worker pool. Outcomes are stored by position
// so their order does not depend on scheduling.
func (e *Engine) generate(ctx context.Context, ix *index) ([]outcome, []outcome, error) {
	txnOutcomes := make([]outcome, len(ix.txns))
	var entryOutcomes []outcome

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.settings.workers())

	for i := range ix.txns {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			txnOutcomes[i] = ix.evaluateTransaction(i)
			return nil
		})
	}

	if e.settings.EnableBulkPaymentMatching {
		entryOutcomes = make([]outcome, len(ix.entries))
		for i := range ix.entries {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				entryOutcomes[i] = ix.evaluateEntry(i)
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return txnOutcomes, entryOutcomes, nil
}

// enforceLimits drops records beyond the configured input limits, reporting
// each one as a capacity record error.
func (e *Engine) enforceLimits(batch records.Batch, result *Result) records.Batch {
	if limit := e.settings.MaxTransactions; limit > 0 && len(batch.Transactions) > limit {
		for _, t := range batch.Transactions[limit:] {
			result.NormalizationErrors = append(result.NormalizationErrors, records.RecordError{
				RecordID:   t.ID,
				RecordType: records.RecordTransaction,
				Kind:       records.KindCapacity,
				Reason:     fmt.Sprintf("exceeds max_transactions (%d)", limit),
			})
		}
		result.Truncated = true
		result.CapacityNotices = append(result.CapacityNotices, CapacityError{
			Limit:  "max_transactions",
			Detail: fmt.Sprintf("processed %d of %d transactions", limit, len(batch.Transactions)),
		})
		batch.Transactions = batch.Transactions[:limit]
	}

	if limit := e.settings.MaxLedgerEntries; limit > 0 && len(batch.Entries) > limit {
		for _, le := range batch.Entries[limit:] {
			result.NormalizationErrors = append(result.NormalizationErrors, records.RecordError{
				RecordID:   le.ID,
				RecordType: records.RecordLedgerEntry,
				Kind:       records.KindCapacity,
				Reason:     fmt.Sprintf("exceeds max_ledger_entries (%d)", limit),
			})
		}
		result.Truncated = true
		result.CapacityNotices = append(result.CapacityNotices, CapacityError{
			Limit:  "max_ledger_entries",
			Detail: fmt.Sprintf("processed %d of %d ledger entries", limit, len(batch.Entries)),
		})
		batch.Entries = batch.Entries[:limit]
	}

	if result.Truncated {
		e.logger.Warn("input exceeds configured limits",
			"max_transactions", e.settings.MaxTransactions,
			"max_ledger_entries", e.settings.MaxLedgerEntries,
		)
	}
	return batch
}

func newResult(recordErrs []records.RecordError) *Result {
	errs := make([]records.RecordError, 0, len(recordErrs))
	errs = append(errs, recordErrs...)
	return &Result{
		AutoMatched:         []Match{},
		Suggested:           []Match{},
		ManualReview:        []Match{},
		UnmatchedBank:       []records.Transaction{},
		UnmatchedInvoices:   []records.LedgerEntry{},
		NormalizationErrors: errs,
		UnmatchedExposure:   []Exposure{},
	}
}
