package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/qrscan/internal/codec"
	"github.com/MeKo-Tech/qrscan/internal/scan"
	"github.com/MeKo-Tech/qrscan/internal/source"
	"github.com/MeKo-Tech/qrscan/internal/version"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	response := HealthResponse{
		Status:     "healthy",
		Version:    version.Version,
		Time:       time.Now().UTC().Format(time.RFC3339),
		LivePaused: s.gate.Suspended(),
	}
	if t := s.orch.Active(); t != nil {
		response.ActiveScan = t.ID
	}
	writeJSON(w, http.StatusOK, response)
}

// scanHandler runs one uploaded image through the pipeline and returns the
// outcome. The request context cancels the scan if the client goes away.
func (s *Server) scanHandler(w http.ResponseWriter, r *http.Request) {
	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
			return
		}
		s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeErrorResponse(w, "No image file provided", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeErrorResponse(w, "Could not get image data.", http.StatusBadRequest)
		return
	}
	uploadSizeBytes.Observe(float64(len(data)))

	declared, err := declaredFormat(r.FormValue("format"), header.Filename, header.Header.Get("Content-Type"))
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if raw := r.FormValue("timeout_ms"); raw != "" {
		ms, err := strconv.Atoi(raw)
		if err != nil || ms <= 0 {
			s.writeErrorResponse(w, fmt.Sprintf("invalid timeout_ms: %q", raw), http.StatusBadRequest)
			return
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(ms)*time.Millisecond)
		defer cancel()
	}

	out, err := s.orch.Run(ctx, source.FromBytes(header.Filename, data, declared))
	switch {
	case errors.Is(err, scan.ErrBusy):
		s.writeErrorResponse(w, "A scan is already in progress", http.StatusConflict)
		return
	case err != nil:
		s.writeErrorResponse(w, fmt.Sprintf("Scan could not start: %v", err), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, ScanResponse{
		Success: out.Status == scan.StateSucceeded,
		Outcome: &out,
	})
}

// declaredFormat picks the format hint from the form field, the file name or
// the part's content type, in that order. An unknown hint is not an error.
func declaredFormat(field, filename, contentType string) (codec.Format, error) {
	if field != "" {
		f, ok := codec.ParseFormat(field)
		if !ok {
			return codec.FormatUnknown, fmt.Errorf("unsupported format: %s", field)
		}
		return f, nil
	}
	if f := codec.FormatFromPath(filename); f != codec.FormatUnknown {
		return f, nil
	}
	mt, _, _ := strings.Cut(contentType, ";")
	if f, ok := codec.ParseFormat(mt); ok {
		return f, nil
	}
	return codec.FormatUnknown, nil
}

// cancelHandler cancels the running scan, if any.
func (s *Server) cancelHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, CancelResponse{Cancelled: s.orch.Cancel()})
}

// historyHandler lists recorded scans.
func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeErrorResponse(w, "History is disabled", http.StatusNotFound)
		return
	}
	entries, err := s.history.List(r.Context())
	if err != nil {
		slog.Error("Failed to list history", "error", err)
		s.writeErrorResponse(w, "Failed to read history", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Entries: entries, Count: len(entries)})
}

// clearHistoryHandler removes all recorded scans.
func (s *Server) clearHistoryHandler(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeErrorResponse(w, "History is disabled", http.StatusNotFound)
		return
	}
	if err := s.history.Clear(r.Context()); err != nil {
		slog.Error("Failed to clear history", "error", err)
		s.writeErrorResponse(w, "Failed to clear history", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, ScanResponse{Success: false, Error: message})
}
