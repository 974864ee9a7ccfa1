package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"walletize/internal/core"
	ports "walletize/internal/sheets"
)

// DefaultSheetName is the base tab name; the entry year is prefixed to it.
const DefaultSheetName = "Ledger"

// ledgerColumns is the A1 column span of one ledger row.
const ledgerColumns = "A:K"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
	now           func() time.Time

	// Appends are serialized so rows of one event stay contiguous.
	mu sync.Mutex
}

// Ensure interface conformance
var _ ports.Ledger = (*Client)(nil)

// Config selects the spreadsheet and the service account used to write it.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// New creates a ledger client. Extra options replace the service account
// credentials, which lets tests point the client at a fake endpoint.
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if cfg.SheetName == "" {
		cfg.SheetName = DefaultSheetName
	}

	if len(opts) == 0 {
		creds, err := readCredentials(ctx, cfg)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets ledger client created",
		"spreadsheet_id", cfg.SpreadsheetID,
		"sheet", cfg.SheetName)

	return &Client{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheetBase:     cfg.SheetName,
		now:           time.Now,
	}, nil
}

func readCredentials(ctx context.Context, cfg Config) ([]byte, error) {
	switch {
	case cfg.CredentialsJSON != "":
		slog.InfoContext(ctx, "Using inline service account credentials")
		return []byte(cfg.CredentialsJSON), nil
	case cfg.CredentialsFile != "":
		slog.InfoContext(ctx, "Reading service account credentials", "path", cfg.CredentialsFile)
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// AppendEntries writes the entries at the bottom of the tab of the year
// they were recorded in. Entries spanning a year boundary are split.
func (c *Client) AppendEntries(ctx context.Context, entries []core.LedgerEntry) (int, error) {
	if c.svc == nil {
		return 0, errors.New("sheets service not initialized")
	}
	if len(entries) == 0 {
		return 0, nil
	}

	byYear := map[int][][]any{}
	var years []int
	for _, e := range entries {
		y := e.RecordedAt.Year()
		if _, ok := byYear[y]; !ok {
			years = append(years, y)
		}
		byYear[y] = append(byYear[y], formatLedgerRow(e))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	written := 0
	for _, y := range years {
		sheet := yearPrefixedName(c.sheetBase, y)
		rng := fmt.Sprintf("%s!%s", sheet, ledgerColumns)
		vr := &gsheet.ValueRange{Values: byYear[y]}
		resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
			ValueInputOption("RAW").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).Do()
		if err != nil {
			return written, fmt.Errorf("append to %s: %w", sheet, err)
		}
		n := len(byYear[y])
		if resp.Updates != nil && resp.Updates.UpdatedRows > 0 {
			n = int(resp.Updates.UpdatedRows)
		}
		written += n
	}
	return written, nil
}

// ListEntries scans the current year's tab for rows of one transaction.
// Rows that do not parse (headers, hand edits) are skipped.
func (c *Client) ListEntries(ctx context.Context, transactionID string) ([]core.LedgerEntry, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	sheet := yearPrefixedName(c.sheetBase, c.now().Year())
	rng := fmt.Sprintf("%s!%s", sheet, ledgerColumns)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}

	var out []core.LedgerEntry
	for i, row := range resp.Values {
		e, err := parseLedgerRow(row)
		if err != nil {
			if i > 0 {
				slog.DebugContext(ctx, "Skipping ledger row", "sheet", sheet, "row", i+1, "error", err)
			}
			continue
		}
		if e.TransactionID == transactionID {
			out = append(out, e)
		}
	}
	return out, nil
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
