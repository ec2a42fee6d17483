package http

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	applog "remanejo/internal/log"
	"remanejo/internal/services"
	"remanejo/internal/sheets/xlsx"
	"remanejo/internal/storage"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type errorResponse struct {
	Error string `json:"error"`
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleCreateRun handles POST /runs with a multipart workbook upload.
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	up, err := parseUpload(w, r)
	switch {
	case errors.Is(err, ErrFileTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rules, err := parseRules(r.Form, s.rules)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	sum := sha256.Sum256(up.data)
	key := hex.EncodeToString(sum[:]) + "|" + up.name + "|" + services.RulesKey(rules)

	// detached so one client going away does not fail the others
	runCtx := services.WithRequestID(context.WithoutCancel(ctx), middleware.GetReqID(ctx))
	v, err, shared := s.inflight.Do(key, func() (any, error) {
		wb, err := xlsx.FromReader(up.name, bytes.NewReader(up.data))
		if err != nil {
			return nil, err
		}
		return s.runs.Execute(runCtx, wb, up.name, rules)
	})
	if err != nil {
		if errors.Is(err, services.ErrInvalidInput) {
			logger.WarnContext(ctx, "Budget rejected", applog.FieldSource, up.name, applog.FieldError, err)
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		logger.ErrorContext(ctx, "Run failed", applog.FieldSource, up.name, applog.FieldError, err)
		writeError(w, http.StatusInternalServerError, "run failed")
		return
	}

	out := v.(*services.RunOutcome)
	if shared {
		logger.DebugContext(ctx, "Upload shared an in-flight run", applog.FieldRunID, out.ID)
	}
	w.Header().Set("Location", "/runs/"+out.ID)
	writeJSON(w, http.StatusCreated, out)
}

// handleGetRun handles GET /runs/{id}: the full result while cached, the
// stored summary afterwards.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if out, ok := s.runs.Get(id); ok {
		writeJSON(w, http.StatusOK, out)
		return
	}
	stored, err := s.runs.Lookup(r.Context(), id)
	if err != nil {
		s.writeLookupError(w, r, id, err)
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

// handleWorkbook handles GET /runs/{id}/workbook. Workbooks are kept in
// memory only.
func (s *Server) handleWorkbook(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	out, ok := s.runs.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("workbook of run %s is not available", id))
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", out.OutputName()))
	w.Header().Set("Content-Length", strconv.Itoa(len(out.Workbook)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Workbook)
}

// handleHistory handles GET /history?limit=N.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	runs, err := s.runs.History(r.Context(), parseLimit(r.URL.Query()))
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "History query failed", applog.FieldError, err)
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) writeLookupError(w http.ResponseWriter, r *http.Request, id string, err error) {
	if errors.Is(err, storage.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("run %s not found", id))
		return
	}
	applog.FromContext(r.Context()).ErrorContext(r.Context(), "Run lookup failed", applog.FieldRunID, id, applog.FieldError, err)
	writeError(w, http.StatusInternalServerError, "lookup failed")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
