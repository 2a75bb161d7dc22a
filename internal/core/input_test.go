package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func decodeInput(t *testing.T, body string) Input {
	t.Helper()
	var in Input
	if err := json.Unmarshal([]byte(body), &in); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
	return in
}

func TestValueUnmarshal(t *testing.T) {
	in := decodeInput(t, `{"date":"2024-03-01","amount":-12.5,"tags":null,"account":true}`)

	if !in.Date.Present || in.Date.Text != "2024-03-01" {
		t.Fatalf("unexpected date: %+v", in.Date)
	}
	if !in.Amount.Present || in.Amount.Text != "-12.5" {
		t.Fatalf("unexpected amount: %+v", in.Amount)
	}
	if !in.Tags.Present || !in.Tags.Null {
		t.Fatalf("expected explicit null tags: %+v", in.Tags)
	}
	if !in.Account.Malformed {
		t.Fatalf("expected malformed account: %+v", in.Account)
	}
	if in.Description.Present {
		t.Fatalf("description should be absent")
	}
}

func TestParseDraft(t *testing.T) {
	in := decodeInput(t, `{"date":"2024-03-01","description":" Salary ","category":"Income","account":"Checking","amount":5000,"tags":null}`)
	d, err := ParseDraft(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Description != "Salary" || d.Amount != 5000 || d.Tags != nil {
		t.Fatalf("unexpected draft: %+v", d)
	}

	noTags := decodeInput(t, `{"date":"2024-03-01","description":"a","category":"c","account":"x","amount":"-3"}`)
	if _, err := ParseDraft(noTags); err != nil {
		t.Fatalf("tags should be optional: %v", err)
	}
}

func TestParseDraftCollectsAllErrors(t *testing.T) {
	in := decodeInput(t, `{"date":"03/01/2024","description":"  ","account":"x","amount":"abc"}`)
	_, err := ParseDraft(in)

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	want := map[string]string{
		"date":        MsgDateFormat,
		"description": MsgEmpty,
		"category":    MsgRequired,
		"amount":      MsgNumeric,
	}
	if len(verr.Fields) != len(want) {
		t.Fatalf("expected %d field errors, got %v", len(want), verr.Fields)
	}
	for k, msg := range want {
		if verr.Fields[k] != msg {
			t.Fatalf("field %s: expected %q, got %q", k, msg, verr.Fields[k])
		}
	}
}

func TestParsePatch(t *testing.T) {
	p, err := ParsePatch(decodeInput(t, `{"tags":"x"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tags, ok := p.Tags.Get()
	if !ok || tags == nil || *tags != "x" {
		t.Fatalf("expected tags=x, got %v %v", tags, ok)
	}
	if p.Date.IsSet() || p.Amount.IsSet() || p.Description.IsSet() {
		t.Fatalf("only tags should be set: %+v", p)
	}

	cleared, err := ParsePatch(decodeInput(t, `{"tags":null}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, ok := cleared.Tags.Get(); !ok || v != nil {
		t.Fatalf("expected tags cleared, got %v %v", v, ok)
	}
}

func TestParsePatchErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
		want error
		keys []string
	}{
		{"empty object", `{}`, ErrNothingToUpdate, nil},
		{"unknown fields only", `{"foo":1}`, ErrNothingToUpdate, nil},
		{"bad date", `{"date":"2024-02-30"}`, nil, []string{"date"}},
		{"null required", `{"category":null,"amount":null}`, nil, []string{"category", "amount"}},
		{"blank account", `{"account":"   ","amount":"1e2"}`, nil, []string{"account"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParsePatch(decodeInput(t, tc.body))
			if tc.want != nil {
				if !errors.Is(err, tc.want) {
					t.Fatalf("expected %v, got %v", tc.want, err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if len(verr.Fields) != len(tc.keys) {
				t.Fatalf("expected fields %v, got %v", tc.keys, verr.Fields)
			}
			for _, k := range tc.keys {
				if _, ok := verr.Fields[k]; !ok {
					t.Fatalf("missing error for %s: %v", k, verr.Fields)
				}
			}
		})
	}
}
