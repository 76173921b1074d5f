// Package export appends ledger records to a Google Sheets spreadsheet.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"finledger/internal/config"
	"finledger/internal/core"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// SheetsClient writes records as rows of a single sheet.
type SheetsClient struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// NewSheetsClient creates a Sheets client authenticated with a service
// account. Credentials come from the inline JSON when set, otherwise from
// the credentials file.
func NewSheetsClient(ctx context.Context, cfg *config.Config) (*SheetsClient, error) {
	if cfg.GoogleSpreadsheetID == "" {
		return nil, errors.New("missing Google spreadsheet id")
	}
	sheetName := cfg.GoogleSheetName
	if sheetName == "" {
		sheetName = "Records"
	}

	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &SheetsClient{
		svc:           svc,
		spreadsheetID: cfg.GoogleSpreadsheetID,
		sheetName:     sheetName,
	}, nil
}

func newSheetsService(ctx context.Context, cfg *config.Config) (*gsheet.Service, error) {
	var credentialsJSON []byte
	switch {
	case strings.TrimSpace(cfg.GoogleServiceAccountJSON) != "":
		credentialsJSON = []byte(cfg.GoogleServiceAccountJSON)
	case strings.TrimSpace(cfg.GoogleServiceAccountFile) != "":
		data, err := os.ReadFile(cfg.GoogleServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = data
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// AppendRecord appends one row: date, kind, category, amount, description.
func (c *SheetsClient) AppendRecord(ctx context.Context, rec *core.Record) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	rng := fmt.Sprintf("%s!A:E", c.sheetName)
	vr := &gsheet.ValueRange{Values: [][]any{{
		rec.Date.String(),
		string(rec.Kind),
		rec.Category,
		rec.Amount.String(),
		rec.Description,
	}}}

	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to sheet %s: %w", c.sheetName, err)
	}

	slog.InfoContext(ctx, "Record exported to sheet",
		"sheet", c.sheetName,
		"kind", rec.Kind,
		"id", rec.ID)
	return nil
}
