package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"fintrack/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Credentials selects the service account used to reach the Sheets API.
// JSON wins over File; when both are empty GOOGLE_APPLICATION_CREDENTIALS is tried.
type Credentials struct {
	JSON string
	File string
}

// Journal appends audit rows to one sheet of a spreadsheet.
type Journal struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string

	headerOnce sync.Once
	headerErr  error
}

var _ sheets.JournalWriter = (*Journal)(nil)

// NewJournal builds a Sheets-backed journal with service account credentials.
func NewJournal(ctx context.Context, spreadsheetID, sheetName string, creds Credentials) (*Journal, error) {
	svc, err := newSheetsService(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newJournal(svc, spreadsheetID, sheetName)
}

func newJournal(svc *gsheet.Service, spreadsheetID, sheetName string) (*Journal, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheetName = strings.TrimSpace(sheetName)
	if sheetName == "" {
		sheetName = "Journal"
	}
	return &Journal{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}, nil
}

func newSheetsService(ctx context.Context, creds Credentials) (*gsheet.Service, error) {
	file := strings.TrimSpace(creds.File)
	if strings.TrimSpace(creds.JSON) == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var (
		credentialsJSON []byte
		err             error
	)
	switch {
	case strings.TrimSpace(creds.JSON) != "":
		slog.InfoContext(ctx, "Using inline service account credentials")
		credentialsJSON = []byte(creds.JSON)
	case file != "":
		slog.InfoContext(ctx, "Reading service account credentials", "path", file)
		credentialsJSON, err = os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// AppendEntry adds one row below the existing data and returns its A1 range.
func (j *Journal) AppendEntry(ctx context.Context, e sheets.Entry) (string, error) {
	if j.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	j.headerOnce.Do(func() { j.headerErr = j.ensureHeader(ctx) })
	if j.headerErr != nil {
		return "", j.headerErr
	}

	ref, err := j.append(ctx, e.Row())
	if err != nil {
		return "", fmt.Errorf("append journal row: %w", err)
	}
	slog.DebugContext(ctx, "Journal row appended", "range", ref, "event", e.Event)
	return ref, nil
}

// ensureHeader writes the header row when the sheet is empty.
func (j *Journal) ensureHeader(ctx context.Context) error {
	rng := fmt.Sprintf("%s!A1:J1", j.sheetName)
	resp, err := j.svc.Spreadsheets.Values.Get(j.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read %s: %w", rng, err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}
	if _, err := j.append(ctx, sheets.Header); err != nil {
		return fmt.Errorf("write journal header: %w", err)
	}
	return nil
}

func (j *Journal) append(ctx context.Context, row []any) (string, error) {
	rng := fmt.Sprintf("%s!A:J", j.sheetName)
	vr := &gsheet.ValueRange{Values: [][]any{row}}
	resp, err := j.svc.Spreadsheets.Values.Append(j.spreadsheetID, rng, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", err
	}
	if resp.Updates != nil {
		return resp.Updates.UpdatedRange, nil
	}
	return rng, nil
}
