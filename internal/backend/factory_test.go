package backend

import (
	"context"
	"strings"
	"testing"

	"walletize/internal/config"
	"walletize/internal/core"
	"walletize/internal/sheets/memory"
)

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
	if _, err := FromAppConfig(&config.Config{LedgerBackend: "sqlite"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
	cfg, err := FromAppConfig(&config.Config{LedgerBackend: "sheets", GoogleSpreadsheetID: "abc", GoogleSheetName: "Audit"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Type != SheetsBackend || cfg.GoogleSpreadsheetID != "abc" || cfg.GoogleSheetName != "Audit" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"memory", Config{Type: MemoryBackend}, ""},
		{"none", Config{Type: NoneBackend}, ""},
		{"unknown", Config{Type: "postgres"}, "invalid backend type"},
		{"sheets without id", Config{Type: SheetsBackend, GoogleServiceAccountJSON: "{}"}, "Spreadsheet ID is required"},
		{"sheets without creds", Config{Type: SheetsBackend, GoogleSpreadsheetID: "x"}, "must be provided"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestCreateBackend(t *testing.T) {
	f := NewFactory(nil)
	ctx := context.Background()

	res, err := f.CreateBackend(ctx, Config{Type: MemoryBackend})
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := res.Ledger.(*memory.Store); !ok {
		t.Fatalf("expected memory store, got %T", res.Ledger)
	}

	res, err = f.CreateBackend(ctx, Config{Type: NoneBackend})
	if err != nil {
		t.Fatalf("none: %v", err)
	}
	n, err := res.Ledger.AppendEntries(ctx, []core.LedgerEntry{{TransactionID: "a"}, {TransactionID: "b"}})
	if err != nil || n != 2 {
		t.Fatalf("discard append: n=%d err=%v", n, err)
	}

	if _, err := f.CreateBackend(ctx, Config{Type: SheetsBackend}); err == nil {
		t.Fatal("expected validation error for sheets without spreadsheet")
	}
}
