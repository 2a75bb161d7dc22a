package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Field error messages returned to API clients.
const (
	MsgRequired   = "Required"
	MsgDateFormat = "Use YYYY-MM-DD"
	MsgEmpty      = "Cannot be empty"
	MsgNumeric    = "Must be numeric (positive=income, negative=expense)"
	MsgNotAString = "Must be a string"
)

// Value is a JSON field that remembers whether it was sent at all and whether
// it was an explicit null. Strings and numbers are kept as text.
type Value struct {
	Present   bool
	Null      bool
	Text      string
	Malformed bool // object, array or boolean
}

// Text returns a present, non-null Value holding s.
func Text(s string) Value {
	return Value{Present: true, Text: s}
}

// Null returns a present Value holding JSON null.
func Null() Value {
	return Value{Present: true, Null: true}
}

func (v *Value) UnmarshalJSON(b []byte) error {
	v.Present = true
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		v.Null = true
	case len(b) > 0 && b[0] == '"':
		return json.Unmarshal(b, &v.Text)
	case len(b) > 0 && (b[0] == '-' || (b[0] >= '0' && b[0] <= '9')):
		v.Text = string(b)
	default:
		v.Malformed = true
	}
	return nil
}

// Input is the raw create/update payload.
type Input struct {
	Date        Value `json:"date"`
	Description Value `json:"description"`
	Category    Value `json:"category"`
	Account     Value `json:"account"`
	Amount      Value `json:"amount"`
	Tags        Value `json:"tags"`
}

// Optional holds a value that may be absent.
type Optional[T any] struct {
	value T
	set   bool
}

// Some returns an Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, set: true}
}

// Get returns the value and whether it is set.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.set
}

// IsSet reports whether a value is present.
func (o Optional[T]) IsSet() bool {
	return o.set
}

// Draft is a validated transaction ready to be inserted.
type Draft struct {
	Date        string
	Description string
	Category    string
	Account     string
	Amount      float64
	Tags        *string
}

// Patch is a validated partial update. Tags may be set to nil to clear them.
type Patch struct {
	Date        Optional[string]
	Description Optional[string]
	Category    Optional[string]
	Account     Optional[string]
	Amount      Optional[float64]
	Tags        Optional[*string]
}

// IsEmpty returns true when the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return !p.Date.IsSet() && !p.Description.IsSet() && !p.Category.IsSet() &&
		!p.Account.IsSet() && !p.Amount.IsSet() && !p.Tags.IsSet()
}

// ValidationError collects one message per offending field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = msg
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// ParseDraft validates a create payload. Every field except tags is required.
func ParseDraft(in Input) (Draft, error) {
	var (
		d    Draft
		verr ValidationError
	)
	required := map[string]Value{
		"date":        in.Date,
		"description": in.Description,
		"category":    in.Category,
		"account":     in.Account,
		"amount":      in.Amount,
	}
	for name, v := range required {
		if !v.Present || v.Null {
			verr.add(name, MsgRequired)
		}
	}

	if date, ok := parseDate(in.Date, &verr); ok {
		d.Date = date
	}
	if s, ok := parseText("description", in.Description, &verr); ok {
		d.Description = s
	}
	if s, ok := parseText("category", in.Category, &verr); ok {
		d.Category = s
	}
	if s, ok := parseText("account", in.Account, &verr); ok {
		d.Account = s
	}
	if a, ok := parseAmount(in.Amount, &verr); ok {
		d.Amount = a
	}
	if tags, ok := parseTags(in.Tags, &verr); ok {
		d.Tags = tags
	}

	if err := verr.orNil(); err != nil {
		return Draft{}, err
	}
	return d, nil
}

// ParsePatch validates an update payload. Only present fields are checked.
// It returns ErrNothingToUpdate when no field was sent.
func ParsePatch(in Input) (Patch, error) {
	var (
		p    Patch
		verr ValidationError
	)
	if in.Date.Present && in.Date.Null {
		verr.add("date", MsgDateFormat)
	} else if date, ok := parseDate(in.Date, &verr); ok {
		p.Date = Some(date)
	}
	for _, f := range []struct {
		name string
		v    Value
		dst  *Optional[string]
	}{
		{"description", in.Description, &p.Description},
		{"category", in.Category, &p.Category},
		{"account", in.Account, &p.Account},
	} {
		if f.v.Present && f.v.Null {
			verr.add(f.name, MsgEmpty)
			continue
		}
		if s, ok := parseText(f.name, f.v, &verr); ok {
			*f.dst = Some(s)
		}
	}
	if in.Amount.Present && in.Amount.Null {
		verr.add("amount", MsgNumeric)
	} else if a, ok := parseAmount(in.Amount, &verr); ok {
		p.Amount = Some(a)
	}
	if tags, ok := parseTags(in.Tags, &verr); ok {
		p.Tags = Some(tags)
	}

	if err := verr.orNil(); err != nil {
		return Patch{}, err
	}
	if p.IsEmpty() {
		return Patch{}, ErrNothingToUpdate
	}
	return p, nil
}

// The parse helpers return ok=false when the field is absent, null or invalid.

func parseDate(v Value, verr *ValidationError) (string, bool) {
	if !v.Present || v.Null {
		return "", false
	}
	if v.Malformed || !ValidDate(v.Text) {
		verr.add("date", MsgDateFormat)
		return "", false
	}
	return v.Text, true
}

func parseText(name string, v Value, verr *ValidationError) (string, bool) {
	if !v.Present || v.Null {
		return "", false
	}
	if v.Malformed {
		verr.add(name, MsgNotAString)
		return "", false
	}
	s := strings.TrimSpace(v.Text)
	if s == "" {
		verr.add(name, MsgEmpty)
		return "", false
	}
	return s, true
}

func parseAmount(v Value, verr *ValidationError) (float64, bool) {
	if !v.Present || v.Null {
		return 0, false
	}
	if v.Malformed {
		verr.add("amount", MsgNumeric)
		return 0, false
	}
	a, err := ParseAmount(v.Text)
	if err != nil {
		verr.add("amount", MsgNumeric)
		return 0, false
	}
	return a, true
}

func parseTags(v Value, verr *ValidationError) (*string, bool) {
	if !v.Present {
		return nil, false
	}
	if v.Null {
		return nil, true
	}
	if v.Malformed {
		verr.add("tags", MsgNotAString)
		return nil, false
	}
	s := v.Text
	return &s, true
}
