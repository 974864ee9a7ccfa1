package backend

import (
	"context"
	"fmt"
	"log/slog"

	"walletize/internal/core"
	"walletize/internal/sheets"
	gsheet "walletize/internal/sheets/google"
	"walletize/internal/sheets/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config)
	case MemoryBackend:
		f.logger.Info("Initialized memory ledger backend")
		return &BackendResult{Ledger: memory.New()}, nil
	case NoneBackend:
		f.logger.Info("Ledger mirror disabled, events will be acknowledged and dropped")
		return &BackendResult{Ledger: discardLedger{}}, nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	cli, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		SheetName:       config.GoogleSheetName,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets ledger backend",
		"spreadsheet_id", config.GoogleSpreadsheetID)

	return &BackendResult{
		Ledger:  cli,
		Cleanup: nil, // No cleanup needed for sheets backend
	}, nil
}

type discardLedger struct{}

var _ sheets.Ledger = discardLedger{}

func (discardLedger) AppendEntries(_ context.Context, entries []core.LedgerEntry) (int, error) {
	return len(entries), nil
}

func (discardLedger) ListEntries(context.Context, string) ([]core.LedgerEntry, error) {
	return nil, nil
}
