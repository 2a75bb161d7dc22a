package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"fintrack/internal/core"
)

const maxJSONBody = 1 << 20

// ParseFilter reads from, to, category and q from the query string.
func ParseFilter(query url.Values) core.Filter {
	return core.Filter{
		From:     query.Get("from"),
		To:       query.Get("to"),
		Category: query.Get("category"),
		Q:        query.Get("q"),
	}.Normalize()
}

// parseID returns the {id} path value. A non-numeric id yields ErrNotFound so
// it answers exactly like an id that does not exist.
func parseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, core.ErrNotFound
	}
	return id, nil
}

// decodeInput reads a JSON object body. A body that is empty, not JSON or
// not an object decodes as an empty payload, which validation then reports
// field by field.
func decodeInput(r *http.Request) (core.Input, error) {
	var in core.Input
	body, err := io.ReadAll(io.LimitReader(r.Body, maxJSONBody+1))
	if err != nil {
		return in, fmt.Errorf("read request body: %w", err)
	}
	if len(body) > maxJSONBody {
		return in, &core.ValidationError{Fields: map[string]string{"body": "Too large"}}
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return core.Input{}, nil
	}
	if err := json.Unmarshal(body, &in); err != nil {
		return core.Input{}, nil
	}
	return in, nil
}

// openUpload returns the multipart "file" part, capping the request at
// maxBytes. Any failure is reported as core.ErrUpload.
func openUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) (multipart.File, func(), error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, fmt.Errorf("%w: file exceeds %d bytes", core.ErrUpload, tooLarge.Limit)
		}
		return nil, nil, fmt.Errorf("%w: %v", core.ErrUpload, err)
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		_ = r.MultipartForm.RemoveAll()
		return nil, nil, fmt.Errorf("%w: %v", core.ErrUpload, err)
	}
	cleanup := func() {
		file.Close()
		_ = r.MultipartForm.RemoveAll()
	}
	return file, cleanup, nil
}
