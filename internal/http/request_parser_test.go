package http

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"fintrack/internal/core"
)

func TestParseFilter(t *testing.T) {
	q := url.Values{
		"from":     {" 2024-03-01 "},
		"to":       {"2024-03-31"},
		"category": {""},
		"q":        {"rent"},
		"other":    {"ignored"},
	}
	got := ParseFilter(q)
	want := core.Filter{From: "2024-03-01", To: "2024-03-31", Q: "rent"}
	if got != want {
		t.Fatalf("ParseFilter = %+v, want %+v", got, want)
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		value   string
		want    int64
		wantErr bool
	}{
		{"42", 42, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/transactions/"+tt.value, nil)
			r.SetPathValue("id", tt.value)
			got, err := parseID(r)
			if tt.wantErr {
				if !errors.Is(err, core.ErrNotFound) {
					t.Fatalf("expected ErrNotFound, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("parseID = %d, %v", got, err)
			}
		})
	}
}

func TestDecodeInput(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantPresent bool
	}{
		{"object", `{"date":"2024-03-01"}`, true},
		{"empty body", ``, false},
		{"array", `[1,2]`, false},
		{"broken json", `{"date":`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader(tt.body))
			in, err := decodeInput(r)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if in.Date.Present != tt.wantPresent {
				t.Fatalf("date present = %v, want %v", in.Date.Present, tt.wantPresent)
			}
		})
	}
}

func TestOpenUpload(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "tx.csv")
	part.Write([]byte("date,description,category,account,amount,tags\n"))
	mw.Close()

	r := httptest.NewRequest(http.MethodPost, "/api/import", bytes.NewReader(buf.Bytes()))
	r.Header.Set("Content-Type", mw.FormDataContentType())
	file, cleanup, err := openUpload(httptest.NewRecorder(), r, 1<<20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cleanup()
	_ = file

	missing := httptest.NewRequest(http.MethodPost, "/api/import", strings.NewReader("x=1"))
	missing.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if _, _, err := openUpload(httptest.NewRecorder(), missing, 1<<20); !errors.Is(err, core.ErrUpload) {
		t.Fatalf("expected ErrUpload, got %v", err)
	}

	big := httptest.NewRequest(http.MethodPost, "/api/import", bytes.NewReader(buf.Bytes()))
	big.Header.Set("Content-Type", mw.FormDataContentType())
	if _, _, err := openUpload(httptest.NewRecorder(), big, 16); !errors.Is(err, core.ErrUpload) {
		t.Fatalf("expected ErrUpload for oversize body, got %v", err)
	}
}
