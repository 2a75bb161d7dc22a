package http

import (
	"bytes"
	"net/http"
	"strings"

	"fintrack/internal/csvio"
	"fintrack/internal/log"
	"fintrack/internal/xlsxio"
)

var headerMismatchMessage = "CSV header must be: " + strings.Join(csvio.Header, ",")

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	items, err := s.svc.List(r.Context(), ParseFilter(r.URL.Query()))
	if err != nil {
		writeError(r.Context(), w, log.OpList, err)
		return
	}
	NewJSONResponse().Body(map[string]any{"items": items}).Write(r.Context(), w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(r.Context(), w, log.OpRead, err)
		return
	}
	tx, err := s.svc.Get(r.Context(), id)
	if err != nil {
		writeError(r.Context(), w, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(map[string]any{"item": tx}).Write(r.Context(), w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	in, err := decodeInput(r)
	if err != nil {
		writeError(ctx, w, log.OpCreate, err)
		return
	}
	tx, err := s.svc.Create(ctx, in)
	if err != nil {
		writeError(ctx, w, log.OpCreate, err)
		return
	}
	log.NewStructuredLogger(log.FromContext(ctx)).LogTransaction(ctx, log.OpCreate, tx)
	NewJSONResponse().
		Status(http.StatusCreated).
		Body(map[string]any{"item": tx}).
		Write(ctx, w)
}

// handleUpdateTransaction answers {"item": null} when the id does not exist.
func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := parseID(r)
	if err != nil {
		writeError(ctx, w, log.OpUpdate, err)
		return
	}
	in, err := decodeInput(r)
	if err != nil {
		writeError(ctx, w, log.OpUpdate, err)
		return
	}
	tx, err := s.svc.Update(ctx, id, in)
	if err != nil {
		writeError(ctx, w, log.OpUpdate, err)
		return
	}
	if tx != nil {
		log.NewStructuredLogger(log.FromContext(ctx)).LogTransaction(ctx, log.OpUpdate, *tx)
	}
	NewJSONResponse().Body(map[string]any{"item": tx}).Write(ctx, w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := parseID(r)
	if err != nil {
		writeError(ctx, w, log.OpDelete, err)
		return
	}
	deleted, err := s.svc.Delete(ctx, id)
	if err != nil {
		writeError(ctx, w, log.OpDelete, err)
		return
	}
	log.FromContext(ctx).Info("Transaction deleted", log.FieldTransactionID, deleted)
	NewJSONResponse().Body(map[string]int64{"deleted": deleted}).Write(ctx, w)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Stats(r.Context(), ParseFilter(r.URL.Query()))
	if err != nil {
		writeError(r.Context(), w, log.OpStats, err)
		return
	}
	NewJSONResponse().Body(st).Write(r.Context(), w)
}

// handleExportCSV buffers the file so a database error can still produce a
// JSON 500 instead of a truncated download.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.svc.ExportCSV(r.Context(), ParseFilter(r.URL.Query()), &buf); err != nil {
		writeError(r.Context(), w, log.OpExport, err)
		return
	}
	writeAttachment(w, "text/csv; charset=utf-8", "transactions.csv", buf.Bytes())
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.svc.ExportXLSX(r.Context(), ParseFilter(r.URL.Query()), &buf); err != nil {
		writeError(r.Context(), w, log.OpExport, err)
		return
	}
	writeAttachment(w, xlsxio.ContentType, "transactions.xlsx", buf.Bytes())
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	file, cleanup, err := openUpload(w, r, s.opts.ImportMaxBytes)
	if err != nil {
		log.FromContext(ctx).Warn("Upload rejected", log.FieldError, err)
		writeError(ctx, w, log.OpImport, err)
		return
	}
	defer cleanup()

	n, err := s.svc.Import(ctx, file)
	if err != nil {
		writeError(ctx, w, log.OpImport, err)
		return
	}
	log.FromContext(ctx).Info("Transactions imported", log.FieldCount, n)
	NewJSONResponse().Body(map[string]int{"imported": n}).Write(ctx, w)
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
