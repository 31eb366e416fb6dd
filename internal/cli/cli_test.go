package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/ledgermatch/internal/api/dto"
	"github.com/eshaffer321/ledgermatch/internal/infrastructure/config"
)

const bankRequest = `{
  "bank_transactions": [
    {"id": 1, "date": "2024-04-01", "ref": "INV-9", "description": "Acme", "debit": 0, "credit": 250},
    {"id": 2, "date": "2024-04-03", "ref": "", "description": "Unknown deposit", "debit": 0, "credit": 99999}
  ],
  "invoices": [
    {"id": "INV-9", "invoice_no": "INV-9", "customer": "Acme", "date": "2024-04-01", "amount": 250}
  ]
}`

const vendorRequest = `{
  "vendor_records": [
    {"id": "V1", "vendor_name": "PQR Traders", "invoice_no": "INV-101", "date": "2024-04-05", "amount": 5000}
  ],
  "purchase_invoices": [
    {"id": "P1", "vendor_name": "PQR Traders", "invoice_no": "INV-101", "date": "2024-04-05", "amount": 5000},
    {"id": "P2", "vendor_name": "RST Enterprises", "gstin": "09AABCR9012T1ZC", "invoice_no": "INV-303", "date": "2024-04-12", "amount": 7000}
  ]
}`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.DatabasePath = filepath.Join(t.TempDir(), "cli.db")
	cfg.Observability.Logging.Level = "error"
	return cfg
}

func TestParseReconcileFlags(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		flags, err := ParseReconcileFlags(nil, io.Discard)

		require.NoError(t, err)
		assert.Equal(t, "-", flags.Input)
		assert.Equal(t, ModeBank, flags.Mode)
		assert.False(t, flags.Persist)
	})

	t.Run("all flags", func(t *testing.T) {
		flags, err := ParseReconcileFlags([]string{
			"-config", "c.yaml", "-input", "in.json", "-output", "out.json",
			"-mode", "vendor", "-persist", "-verbose", "-quiet",
		}, io.Discard)

		require.NoError(t, err)
		assert.Equal(t, "c.yaml", flags.ConfigPath)
		assert.Equal(t, "in.json", flags.Input)
		assert.Equal(t, "out.json", flags.Output)
		assert.Equal(t, ModeVendor, flags.Mode)
		assert.True(t, flags.Persist)
		assert.True(t, flags.Verbose)
		assert.True(t, flags.Quiet)
	})

	t.Run("rejects unknown mode", func(t *testing.T) {
		_, err := ParseReconcileFlags([]string{"-mode", "payroll"}, io.Discard)

		assert.ErrorContains(t, err, "unknown mode")
	})

	t.Run("rejects positional arguments", func(t *testing.T) {
		_, err := ParseReconcileFlags([]string{"extra"}, io.Discard)

		assert.Error(t, err)
	})
}

func TestParseServeFlags(t *testing.T) {
	flags, err := ParseServeFlags([]string{"-port", "9000", "-verbose"}, io.Discard)

	require.NoError(t, err)
	assert.Equal(t, 9000, flags.Port)
	assert.True(t, flags.Verbose)
}

func TestRunReconcile_Bank(t *testing.T) {
	// Arrange
	cfg := testConfig(t)
	flags, err := ParseReconcileFlags(nil, io.Discard)
	require.NoError(t, err)
	var stdout, stderr bytes.Buffer

	// Act
	err = RunReconcile(context.Background(), cfg, flags, strings.NewReader(bankRequest), &stdout, &stderr)

	// Assert
	require.NoError(t, err)

	var response dto.RunMatchingResponse
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &response))
	assert.True(t, response.Success)
	assert.False(t, response.Persisted)
	require.Len(t, response.Data.AutoMatched, 1)
	assert.Equal(t, "1", response.Data.AutoMatched[0].BankTxnID)
	require.Len(t, response.Data.UnmatchedBank, 1)
	assert.Equal(t, "2", response.Data.UnmatchedBank[0].ID)

	assert.Contains(t, stderr.String(), "Auto matched")
	assert.Contains(t, stderr.String(), "Unmatched bank")
	_, statErr := os.Stat(cfg.Storage.DatabasePath)
	assert.True(t, os.IsNotExist(statErr), "database is only opened with -persist")
}

func TestRunReconcile_PersistAndFiles(t *testing.T) {
	// Arrange
	cfg := testConfig(t)
	dir := t.TempDir()
	input := filepath.Join(dir, "in.json")
	output := filepath.Join(dir, "out.json")
	require.NoError(t, os.WriteFile(input, []byte(bankRequest), 0o600))
	flags, err := ParseReconcileFlags([]string{"-input", input, "-output", output, "-persist", "-quiet"}, io.Discard)
	require.NoError(t, err)
	var stdout, stderr bytes.Buffer

	// Act
	err = RunReconcile(context.Background(), cfg, flags, nil, &stdout, &stderr)

	// Assert
	require.NoError(t, err)
	assert.Empty(t, stdout.String())
	assert.NotContains(t, stderr.String(), "Auto matched")

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	var response dto.RunMatchingResponse
	require.NoError(t, json.Unmarshal(data, &response))
	assert.True(t, response.Persisted)
	assert.FileExists(t, cfg.Storage.DatabasePath)
}

func TestRunReconcile_Vendor(t *testing.T) {
	cfg := testConfig(t)
	flags, err := ParseReconcileFlags([]string{"-mode", "vendor"}, io.Discard)
	require.NoError(t, err)
	var stdout, stderr bytes.Buffer

	err = RunReconcile(context.Background(), cfg, flags, strings.NewReader(vendorRequest), &stdout, &stderr)

	require.NoError(t, err)
	var response dto.VendorRegisterResponse
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &response))
	require.Len(t, response.Data.VendorsAtRisk, 1)
	assert.Equal(t, "09AABCR9012T1ZC", response.Data.VendorsAtRisk[0].VendorTaxID)
	assert.Contains(t, stderr.String(), "RST Enterprises [09AABCR9012T1ZC]")
	assert.Contains(t, stderr.String(), "MissingInFeed=1")
}

func TestRunReconcile_Errors(t *testing.T) {
	t.Run("invalid JSON", func(t *testing.T) {
		cfg := testConfig(t)
		flags, _ := ParseReconcileFlags(nil, io.Discard)

		err := RunReconcile(context.Background(), cfg, flags, strings.NewReader("{"), io.Discard, io.Discard)

		assert.ErrorContains(t, err, "decode request")
	})

	t.Run("missing input file", func(t *testing.T) {
		cfg := testConfig(t)
		flags, _ := ParseReconcileFlags([]string{"-input", filepath.Join(t.TempDir(), "nope.json")}, io.Discard)

		err := RunReconcile(context.Background(), cfg, flags, nil, io.Discard, io.Discard)

		assert.ErrorContains(t, err, "open input")
	})

	t.Run("invalid matching config", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Matching.AutoApprovalLevel = "sometimes"
		flags, _ := ParseReconcileFlags(nil, io.Discard)

		err := RunReconcile(context.Background(), cfg, flags, strings.NewReader(bankRequest), io.Discard, io.Discard)

		assert.ErrorContains(t, err, "auto_approval_level")
	})

	t.Run("persist without database path", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Storage.DatabasePath = ""
		flags, _ := ParseReconcileFlags([]string{"-persist"}, io.Discard)

		err := RunReconcile(context.Background(), cfg, flags, strings.NewReader(bankRequest), io.Discard, io.Discard)

		assert.ErrorContains(t, err, "database path")
	})
}

func TestPrintSummary_Truncated(t *testing.T) {
	var buf bytes.Buffer
	data := dto.ReconciliationResponse{
		Truncated:       true,
		CapacityNotices: []dto.CapacityNoticeResponse{{Limit: "max_transactions", Detail: "kept 10 of 12"}},
		NormalizationErrors: []dto.RecordErrorResponse{
			{RecordID: "X", RecordType: "ledger_entry", Kind: "validation", Reason: "invalid date"},
		},
	}

	PrintSummary(&buf, "run-1", true, data)

	out := buf.String()
	assert.Contains(t, out, "Run run-1 (saved)")
	assert.Contains(t, out, "max_transactions: kept 10 of 12")
	assert.Contains(t, out, "ledger_entry X: invalid date")
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9999\n"), 0o600))

	cfg, err := LoadConfig(path)

	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
