package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type fakeSheets struct {
	mu       sync.Mutex
	existing [][]any
	appended [][]any
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/values/"):
		json.NewEncoder(w).Encode(map[string]any{"values": f.existing})
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":append"):
		var body struct {
			Values [][]any `json:"values"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.appended = append(f.appended, body.Values...)
		f.existing = append(f.existing, body.Values...)
		n := len(f.existing)
		json.NewEncoder(w).Encode(map[string]any{
			"updates": map[string]any{"updatedRange": "Journal!A" + strconv.Itoa(n) + ":J" + strconv.Itoa(n)},
		})
	default:
		http.NotFound(w, r)
	}
}

func newTestJournal(t *testing.T, fake *fakeSheets) *Journal {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	j, err := newJournal(svc, "sheet-id", "")
	if err != nil {
		t.Fatalf("new journal: %v", err)
	}
	return j
}

func TestNewJournal_MissingSpreadsheetID(t *testing.T) {
	if _, err := newJournal(nil, "  ", "Journal"); err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
}

func TestNewSheetsService_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := newSheetsService(context.Background(), Credentials{})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("expected missing credentials error, got %v", err)
	}
}

func TestNewSheetsService_UnreadableFile(t *testing.T) {
	_, err := newSheetsService(context.Background(), Credentials{File: "/nonexistent/creds.json"})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestAppendEntry_WritesHeaderOnce(t *testing.T) {
	fake := &fakeSheets{}
	j := newTestJournal(t, fake)
	ctx := context.Background()
	tx := &core.Transaction{ID: 3, Date: "2024-03-01", Description: "Salary", Category: "Income", Account: "Checking", Amount: 5000}

	for i := 0; i < 2; i++ {
		ref, err := j.AppendEntry(ctx, sheets.Entry{At: time.Now(), Event: "transaction.created", TransactionID: 3, Transaction: tx})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		if !strings.HasPrefix(ref, "Journal!A") {
			t.Fatalf("unexpected ref %q", ref)
		}
	}

	if len(fake.appended) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(fake.appended))
	}
	if fake.appended[0][0] != "logged_at" {
		t.Fatalf("first row should be the header: %v", fake.appended[0])
	}
	if fake.appended[1][4] != "Salary" {
		t.Fatalf("unexpected data row: %v", fake.appended[1])
	}
}

func TestAppendEntry_ExistingHeader(t *testing.T) {
	fake := &fakeSheets{existing: [][]any{sheets.Header}}
	j := newTestJournal(t, fake)

	if _, err := j.AppendEntry(context.Background(), sheets.Entry{At: time.Now(), Event: "transaction.deleted", TransactionID: 1}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(fake.appended) != 1 {
		t.Fatalf("header should not be rewritten, got %d appends", len(fake.appended))
	}
}

func TestAppendEntry_NilService(t *testing.T) {
	j := &Journal{spreadsheetID: "x", sheetName: "Journal"}
	if _, err := j.AppendEntry(context.Background(), sheets.Entry{}); err == nil {
		t.Fatal("expected error with nil service")
	}
}
