// Package sheets pushes exported invoice rows to a Google Sheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
	"restodash/internal/logger"
)

// ErrNoCredentials is returned when no Google credentials are configured.
var ErrNoCredentials = errors.New("sheets: neither GOOGLE_APPLICATION_CREDENTIALS nor GOOGLE_CREDENTIALS is set")

var spreadsheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)

// Service appends rows to one worksheet of a spreadsheet.
type Service struct {
	sheetsService *sheets.Service
	spreadsheetID string
	worksheet     string
	log           zerolog.Logger
}

// NewService creates a service writing to the worksheet of the spreadsheet at
// sheetURL. Without client options, credentials are read from
// GOOGLE_APPLICATION_CREDENTIALS (a file) or GOOGLE_CREDENTIALS (inline JSON).
func NewService(ctx context.Context, sheetURL, worksheet string, opts ...option.ClientOption) (*Service, error) {
	const op = "sheets.NewService"

	log := logger.WithComponent("sheets")

	spreadsheetID, err := extractSpreadsheetID(sheetURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	log.Debug().Str("spreadsheet_id", spreadsheetID).Msg("Extracted spreadsheet ID")

	if len(opts) == 0 {
		creds, err := credentials()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		config, err := google.JWTConfigFromJSON(creds, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to parse credentials: %w", op, err)
		}
		opts = append(opts, option.WithHTTPClient(config.Client(ctx)))
	}

	sheetsService, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create sheets service: %w", op, err)
	}

	return &Service{
		sheetsService: sheetsService,
		spreadsheetID: spreadsheetID,
		worksheet:     worksheet,
		log:           log,
	}, nil
}

func credentials() ([]byte, error) {
	if file := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); file != "" {
		creds, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		return creds, nil
	}
	if inline := os.Getenv("GOOGLE_CREDENTIALS"); inline != "" {
		return []byte(inline), nil
	}
	return nil, ErrNoCredentials
}

// extractSpreadsheetID extracts the spreadsheet ID from a Google Sheets URL
func extractSpreadsheetID(url string) (string, error) {
	matches := spreadsheetIDPattern.FindStringSubmatch(url)
	if len(matches) < 2 {
		return "", fmt.Errorf("invalid Google Sheets URL format: %q", url)
	}
	return matches[1], nil
}

// WriteInvoices appends rows to the worksheet, creating it with a bold
// header row when needed.
func (s *Service) WriteInvoices(ctx context.Context, header []string, rows [][]any) error {
	const op = "sheets.WriteInvoices"

	if len(header) == 0 {
		return fmt.Errorf("%s: empty header", op)
	}
	lastColumn, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info().
		Str("sheet", s.worksheet).
		Int("rows", len(rows)).
		Msg("Writing invoices to Google Sheet")

	if err := s.ensureSheetWithHeaders(ctx, header, lastColumn); err != nil {
		return fmt.Errorf("%s: failed to ensure sheet exists: %w", op, err)
	}

	valueRange := &sheets.ValueRange{Values: rows}
	_, err = s.sheetsService.Spreadsheets.Values.Append(
		s.spreadsheetID,
		fmt.Sprintf("%s!A:%s", s.worksheet, lastColumn),
		valueRange,
	).ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to append values to sheet: %w", op, err)
	}

	s.log.Info().Int("rows_written", len(rows)).Msg("Successfully wrote invoices to Google Sheet")
	return nil
}

// ensureSheetWithHeaders ensures the worksheet exists and has a header row
func (s *Service) ensureSheetWithHeaders(ctx context.Context, header []string, lastColumn string) error {
	const op = "ensureSheetWithHeaders"

	spreadsheet, err := s.sheetsService.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to get spreadsheet: %w", op, err)
	}

	var (
		sheetExists bool
		sheetID     int64
	)
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == s.worksheet {
			sheetExists = true
			sheetID = sheet.Properties.SheetId
			break
		}
	}

	if !sheetExists {
		s.log.Info().Str("sheet", s.worksheet).Msg("Creating new sheet")

		resp, err := s.sheetsService.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{
				{AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: s.worksheet}}},
			},
		}).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("%s: failed to create sheet: %w", op, err)
		}
		if len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil {
			sheetID = resp.Replies[0].AddSheet.Properties.SheetId
		}
	}

	headerRange := fmt.Sprintf("%s!A1:%s1", s.worksheet, lastColumn)
	resp, err := s.sheetsService.Spreadsheets.Values.Get(s.spreadsheetID, headerRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to get headers: %w", op, err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}

	s.log.Info().Str("sheet", s.worksheet).Msg("Adding headers to sheet")

	values := make([]any, len(header))
	for i, h := range header {
		values[i] = h
	}
	_, err = s.sheetsService.Spreadsheets.Values.Update(
		s.spreadsheetID,
		headerRange,
		&sheets.ValueRange{Values: [][]any{values}},
	).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to add headers: %w", op, err)
	}

	if err := s.formatHeaders(ctx, sheetID, int64(len(header))); err != nil {
		s.log.Warn().Err(err).Msg("Failed to format headers, continuing anyway")
	}
	return nil
}

// formatHeaders makes the header row bold and resizes the columns
func (s *Service) formatHeaders(ctx context.Context, sheetID, columns int64) error {
	const op = "formatHeaders"

	requests := []*sheets.Request{
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   columns,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat:      &sheets.TextFormat{Bold: true},
						BackgroundColor: &sheets.Color{Red: 0.9, Green: 0.9, Blue: 0.9},
					},
				},
				Fields: "userEnteredFormat(textFormat,backgroundColor)",
			},
		},
		{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "COLUMNS",
					StartIndex: 0,
					EndIndex:   columns,
				},
			},
		},
	}

	_, err := s.sheetsService.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{Requests: requests}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to format headers: %w", op, err)
	}
	return nil
}
