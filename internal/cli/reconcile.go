package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/eshaffer321/ledgermatch/internal/api/dto"
	"github.com/eshaffer321/ledgermatch/internal/application/service"
	"github.com/eshaffer321/ledgermatch/internal/infrastructure/config"
	"github.com/eshaffer321/ledgermatch/internal/infrastructure/logging"
	"github.com/eshaffer321/ledgermatch/internal/infrastructure/storage"
)

// RunReconcile reads one request in the HTTP API's JSON shape, runs it and
// writes the response in the same shape. A summary goes to stderr. The
// request's persist field is ignored in favour of -persist.
func RunReconcile(ctx context.Context, cfg *config.Config, flags *ReconcileFlags, stdin io.Reader, stdout, stderr io.Writer) error {
	logger := logging.NewLoggerTo(loggingConfig(cfg, flags.Verbose), stderr).With("system", "reconcile")

	settings, err := cfg.Matching.Settings()
	if err != nil {
		return err
	}

	var repo storage.Repository
	if flags.Persist {
		if cfg.Storage.DatabasePath == "" {
			return fmt.Errorf("-persist needs a database path")
		}
		store, err := storage.NewStorage(cfg.Storage.DatabasePath, logger.With("system", "storage"))
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		repo = store
	}

	svc, err := service.NewReconcileService(settings, repo, logger, service.WithRunTimeout(cfg.Server.RunTimeout))
	if err != nil {
		return err
	}

	in, closeIn, err := openInput(flags.Input, stdin)
	if err != nil {
		return err
	}
	defer closeIn()

	var response any
	switch flags.Mode {
	case ModeVendor:
		response, err = reconcileVendor(ctx, svc, in, flags)
	default:
		response, err = reconcileBank(ctx, svc, in, flags)
	}
	if err != nil {
		return err
	}

	if err := writeOutput(flags.Output, stdout, response); err != nil {
		return err
	}

	if !flags.Quiet {
		switch r := response.(type) {
		case dto.RunMatchingResponse:
			PrintSummary(stderr, r.RunID, r.Persisted, r.Data)
		case dto.VendorRegisterResponse:
			PrintVendorSummary(stderr, r.RunID, r.Persisted, r.Data)
		}
	}
	return nil
}

func reconcileBank(ctx context.Context, svc *service.ReconcileService, in io.Reader, flags *ReconcileFlags) (dto.RunMatchingResponse, error) {
	var body dto.RunMatchingRequest
	if err := json.NewDecoder(in).Decode(&body); err != nil {
		return dto.RunMatchingResponse{}, fmt.Errorf("decode request: %w", err)
	}

	settings := body.Settings.Apply(svc.Defaults())
	result, err := svc.Run(ctx, service.RunRequest{
		BankTransactions: body.Transactions(),
		LedgerEntries:    body.LedgerEntries(),
		Settings:         &settings,
		Persist:          flags.Persist,
	})
	if err != nil {
		return dto.RunMatchingResponse{}, err
	}
	return dto.RunMatchingResponse{
		Success:    true,
		RunID:      result.RunID,
		Persisted:  result.Persisted,
		DurationMs: result.Duration.Milliseconds(),
		Data:       dto.NewReconciliationResponse(result.Result),
	}, nil
}

func reconcileVendor(ctx context.Context, svc *service.ReconcileService, in io.Reader, flags *ReconcileFlags) (dto.VendorRegisterResponse, error) {
	var body dto.VendorRegisterRequest
	if err := json.NewDecoder(in).Decode(&body); err != nil {
		return dto.VendorRegisterResponse{}, fmt.Errorf("decode request: %w", err)
	}

	settings := body.Settings.Apply(svc.Defaults())
	result, err := svc.ReconcileVendorRegister(ctx, service.VendorRunRequest{
		Request:  body.ToRegister(),
		Settings: &settings,
		Persist:  flags.Persist,
	})
	if err != nil {
		return dto.VendorRegisterResponse{}, err
	}
	return dto.VendorRegisterResponse{
		Success:    true,
		RunID:      result.RunID,
		Persisted:  result.Persisted,
		DurationMs: result.Duration.Milliseconds(),
		Data:       dto.NewVendorRegisterData(result.Report),
	}, nil
}

func openInput(path string, stdin io.Reader) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func writeOutput(path string, stdout io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	data = append(data, '\n')

	if path == "" {
		_, err = stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
