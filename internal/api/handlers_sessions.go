package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docanchor/internal/anchor"
	"github.com/dgallion1/docanchor/internal/annotation"
	"github.com/dgallion1/docanchor/internal/parser"
	"github.com/dgallion1/docanchor/internal/session"
	"github.com/dgallion1/docanchor/internal/surgeon"
	"github.com/go-chi/chi/v5"
)

// handleOpenSession parses an uploaded document into a new editing session.
func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !parser.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	sess, err := s.sessions.Open(filename, data, r.FormValue("doc_id"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Location", "/api/sessions/"+sess.ID)
	writeJSON(w, http.StatusCreated, sess.Snapshot())
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": s.sessions.List()})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionFrom(r).Snapshot())
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	s.sessions.Close(sessionFrom(r).ID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSessionXML(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	io.WriteString(w, sessionFrom(r).XML())
}

// replaceBody is the body for subtree and document replacement.
type replaceBody struct {
	Format string `json:"format"`
	Rule   string `json:"rule"`
	Text   string `json:"text"`
	Origin string `json:"origin"`
}

func (s *Server) handleReplaceNode(w http.ResponseWriter, r *http.Request) {
	s.replace(w, r, chi.URLParam(r, "nodeID"))
}

func (s *Server) handleReplaceDocument(w http.ResponseWriter, r *http.Request) {
	s.replace(w, r, "")
}

func (s *Server) replace(w http.ResponseWriter, r *http.Request, nodeID string) {
	var body replaceBody
	if !decodeBody(w, r, &body) {
		return
	}
	res, err := sessionFrom(r).Replace(session.ReplaceRequest{
		NodeID: nodeID,
		Format: body.Format,
		Rule:   body.Rule,
		Text:   body.Text,
		Origin: body.Origin,
	})
	if err != nil {
		jsonError(w, err.Error(), errorStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDeleteNode(w http.ResponseWriter, r *http.Request) {
	res, err := sessionFrom(r).Delete(chi.URLParam(r, "nodeID"), r.URL.Query().Get("origin"))
	if err != nil {
		jsonError(w, err.Error(), errorStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSetAttribute(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Value  string `json:"value"`
		Origin string `json:"origin"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	err := sessionFrom(r).SetAttribute(chi.URLParam(r, "nodeID"), chi.URLParam(r, "name"), body.Value, body.Origin)
	if err != nil {
		jsonError(w, err.Error(), errorStatus(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// errorStatus maps domain errors to HTTP status codes. Anything not
// recognized is treated as a bad request, since edits only fail on input.
func errorStatus(err error) int {
	var invalid *surgeon.InvalidReplacementError
	var outOfRange *anchor.OutOfRangeError
	switch {
	case errors.Is(err, session.ErrNodeNotFound), errors.Is(err, annotation.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &invalid), errors.Is(err, surgeon.ErrCannotDeleteRoot), errors.Is(err, parser.ErrRuleMismatch):
		return http.StatusUnprocessableEntity
	case errors.As(err, &outOfRange), errors.Is(err, anchor.ErrInvalidSpan), errors.Is(err, anchor.ErrNoAnchor), errors.Is(err, anchor.ErrOutsideScope):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		jsonError(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

const maxJSONBody = 8 << 20

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	// Remove any path separators that might have survived.
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
