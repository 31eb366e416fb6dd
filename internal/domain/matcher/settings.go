package matcher

import (
	"runtime"

	"github.com/shopspring/decimal"
)

// ApprovalLevel controls how accepted matches are tiered.
type ApprovalLevel string

const (
	// ApprovalHigh auto-approves only high confidence matches.
	ApprovalHigh ApprovalLevel = "high"
	// ApprovalAll auto-approves everything at or above the suggest threshold.
	ApprovalAll ApprovalLevel = "all"
	// ApprovalManual sends every match to manual review.
	ApprovalManual ApprovalLevel = "manual"
)

// Settings holds matcher configuration for one run.
type Settings struct {
	DateToleranceDays int             `json:"date_tolerance_days"` // Default: 3
	AmountTolerance   decimal.Decimal `json:"amount_tolerance"`    // Absolute currency units (default: 100)

	EnableReferenceMatching      bool          `json:"enable_reference_matching"`
	EnableNameMatching           bool          `json:"enable_name_matching"`
	EnablePartialPaymentMatching bool          `json:"enable_partial_payment_matching"`
	EnableBulkPaymentMatching    bool          `json:"enable_bulk_payment_matching"`
	AutoMatchBankCharges         bool          `json:"auto_match_bank_charges"`
	AutoApprovalLevel            ApprovalLevel `json:"auto_approval_level"`

	MaxGroupSize         int             `json:"max_group_size"`          // Largest bulk group (default: 10)
	MaxGroupSearch       int             `json:"max_group_search"`        // DFS nodes per bulk search (default: 20000)
	BankChargeThreshold  decimal.Decimal `json:"bank_charge_threshold"`   // Largest debit absorbed as a bank charge (default: 1000)
	ExactAmountGraceDays int             `json:"exact_amount_grace_days"` // Extra days an exact amount may sit outside the window (default: 12)

	AutoThreshold    float64 `json:"auto_threshold"`    // Default: 90
	SuggestThreshold float64 `json:"suggest_threshold"` // Default: 70
	MinConfidence    float64 `json:"min_confidence"`    // Candidates below this are discarded (default: 50)
	NameSimilarity   float64 `json:"name_similarity"`   // Minimum fuzzy name similarity, 0-1 (default: 0.8)

	MaxTransactions  int `json:"max_transactions"`   // 0 = unbounded
	MaxLedgerEntries int `json:"max_ledger_entries"` // 0 = unbounded
	Workers          int `json:"workers"`            // 0 = GOMAXPROCS
}

// DefaultSettings returns sensible defaults
func DefaultSettings() Settings {
	return Settings{
		DateToleranceDays:            3,
		AmountTolerance:              decimal.NewFromInt(100),
		EnableReferenceMatching:      true,
		EnableNameMatching:           true,
		EnablePartialPaymentMatching: true,
		EnableBulkPaymentMatching:    true,
		AutoMatchBankCharges:         true,
		AutoApprovalLevel:            ApprovalHigh,
		MaxGroupSize:                 10,
		MaxGroupSearch:               20000,
		BankChargeThreshold:          decimal.NewFromInt(1000),
		ExactAmountGraceDays:         12,
		AutoThreshold:                90,
		SuggestThreshold:             70,
		MinConfidence:                50,
		NameSimilarity:               0.8,
	}
}

// Validate checks every field and returns a *ConfigurationError for the
// first invalid one.
func (s Settings) Validate() error {
	switch {
	case s.DateToleranceDays < 0:
		return configError("date_tolerance_days", "must not be negative")
	case s.DateToleranceDays > 366:
		return configError("date_tolerance_days", "must not exceed 366")
	case s.AmountTolerance.IsNegative():
		return configError("amount_tolerance", "must not be negative")
	case !s.AutoApprovalLevel.valid():
		return configError("auto_approval_level", "must be one of high, all, manual")
	case s.MaxGroupSize < 2 || s.MaxGroupSize > 20:
		return configError("max_group_size", "must be between 2 and 20")
	case s.MaxGroupSearch <= 0:
		return configError("max_group_search", "must be positive")
	case s.BankChargeThreshold.IsNegative():
		return configError("bank_charge_threshold", "must not be negative")
	case s.ExactAmountGraceDays < 0:
		return configError("exact_amount_grace_days", "must not be negative")
	case s.AutoThreshold < 0 || s.AutoThreshold > 100:
		return configError("auto_threshold", "must be between 0 and 100")
	case s.SuggestThreshold < 0 || s.SuggestThreshold > s.AutoThreshold:
		return configError("suggest_threshold", "must be between 0 and auto_threshold")
	case s.MinConfidence < 0 || s.MinConfidence > 100:
		return configError("min_confidence", "must be between 0 and 100")
	case s.NameSimilarity <= 0 || s.NameSimilarity > 1:
		return configError("name_similarity", "must be in (0, 1]")
	case s.MaxTransactions < 0:
		return configError("max_transactions", "must not be negative")
	case s.MaxLedgerEntries < 0:
		return configError("max_ledger_entries", "must not be negative")
	case s.Workers < 0:
		return configError("workers", "must not be negative")
	}
	return nil
}

func (s Settings) workers() int {
	if s.Workers > 0 {
		return s.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func (l ApprovalLevel) valid() bool {
	switch l {
	case ApprovalHigh, ApprovalAll, ApprovalManual:
		return true
	}
	return false
}

// ParseApprovalLevel converts a string into an ApprovalLevel.
func ParseApprovalLevel(s string) (ApprovalLevel, error) {
	l := ApprovalLevel(s)
	if !l.valid() {
		return "", configError("auto_approval_level", "must be one of high, all, manual")
	}
	return l, nil
}
