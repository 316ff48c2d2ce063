package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/AugmentOS-Community/convoscope/internal/catalog"
	"github.com/AugmentOS-Community/convoscope/internal/observe"
	"github.com/AugmentOS-Community/convoscope/internal/session"
	"github.com/AugmentOS-Community/convoscope/internal/transcript"
)

// ingestRequest is the body of POST /transcripts.
type ingestRequest struct {
	Text      string     `json:"text"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	IsFinal   bool       `json:"is_final"`
}

// defaultRecentWindow applies when GET /transcripts has no window parameter.
const defaultRecentWindow = 30 * time.Second

// recentResponse lists the final segments of a time window.
type recentResponse struct {
	Window   string               `json:"window"`
	Segments []transcript.Segment `json:"segments"`
}

// catalogResponse lists a user's catalog.
type catalogResponse struct {
	Entries []catalog.Entry `json:"entries"`
}

// uploadResponse reports how many entries an upload stored.
type uploadResponse struct {
	Entries int    `json:"entries"`
	Error   string `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req ingestRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decode body: %v", err))
		return
	}
	ts := s.now()
	if req.Timestamp != nil {
		ts = *req.Timestamp
	}

	seg, err := s.sessions.Ingest(r.Context(), userID, req.Text, ts, req.IsFinal)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if seg.ID == "" {
		// Blank text is accepted and ignored.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusCreated, seg)
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	window := defaultRecentWindow
	if raw := r.URL.Query().Get("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("window must be a positive duration such as 30s, got %q", raw))
			return
		}
		window = d
	}

	segs, err := s.sessions.Recent(r.Context(), chi.URLParam(r, "userID"), window)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if segs == nil {
		segs = []transcript.Segment{}
	}
	writeJSON(w, http.StatusOK, recentResponse{Window: window.String(), Segments: segs})
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	in, err := s.sessions.Process(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, in)
}

func (s *Server) handleGetCatalog(w http.ResponseWriter, r *http.Request) {
	entries, err := s.catalogs.Catalog(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []catalog.Entry{}
	}

	if strings.Contains(r.Header.Get("Accept"), "text/csv") {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		if err := catalog.WriteCSV(w, entries); err != nil {
			observe.Logger(r.Context()).Error("api: write catalog csv", "err", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, catalogResponse{Entries: entries})
}

func (s *Server) handleReplaceCatalog(w http.ResponseWriter, r *http.Request) {
	entries, ok := s.parseUpload(w, r)
	if !ok {
		return
	}
	if err := s.catalogs.Replace(r.Context(), chi.URLParam(r, "userID"), entries); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{Entries: len(entries)})
}

func (s *Server) handleAppendCatalog(w http.ResponseWriter, r *http.Request) {
	entries, ok := s.parseUpload(w, r)
	if !ok {
		return
	}
	added, err := s.catalogs.Append(r.Context(), chi.URLParam(r, "userID"), entries)
	if errors.Is(err, catalog.ErrDuplicateID) {
		writeJSON(w, http.StatusConflict, uploadResponse{Entries: added, Error: err.Error()})
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{Entries: added})
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	e, err := s.catalogs.Get(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "entryID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleRemoveEntry(w http.ResponseWriter, r *http.Request) {
	if err := s.catalogs.Remove(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "entryID")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	err := errors.Join(
		s.sessions.Evict(r.Context(), userID),
		s.catalogs.Delete(r.Context(), userID),
	)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// parseUpload reads and validates a CSV catalog upload. On failure it writes
// a 400 response and returns false.
func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request) ([]catalog.Entry, bool) {
	entries, err := catalog.ParseCSV(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	var errs []error
	for i, e := range entries {
		if err := catalog.Validate(e); err != nil {
			errs = append(errs, fmt.Errorf("row %d: %w", i+1, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return entries, true
}

// fail maps err to a status code and writes it. Unexpected errors are logged
// and reported as 500 without details.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrEmptyUserID), errors.Is(err, catalog.ErrInvalidUpload):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, catalog.ErrDuplicateID):
		writeError(w, http.StatusConflict, err.Error())
	default:
		observe.Logger(r.Context()).Error("api: request failed", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encode response"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
