package api

import (
	"net/http"

	"github.com/dgallion1/docanchor/internal/anchor"
	"github.com/dgallion1/docanchor/internal/annotation"
	"github.com/dgallion1/docanchor/internal/session"
	"github.com/go-chi/chi/v5"
)

// resolvedAnnotation is an annotation with its current location, if any.
type resolvedAnnotation struct {
	annotation.Annotation
	Location *session.Located `json:"location"`
}

func resolve(sess *session.Session, a annotation.Annotation) resolvedAnnotation {
	out := resolvedAnnotation{Annotation: a}
	if loc, ok := sess.Decode(a.Target); ok {
		out.Location = &loc
	}
	return out
}

// createAnnotationBody takes either a ready target or a node range to encode.
type createAnnotationBody struct {
	Target *anchor.Target `json:"target"`
	NodeID string         `json:"node_id"`
	Start  int            `json:"start"`
	End    int            `json:"end"`
	Body   string         `json:"body"`
}

func (s *Server) handleCreateAnnotation(w http.ResponseWriter, r *http.Request) {
	var body createAnnotationBody
	if !decodeBody(w, r, &body) {
		return
	}
	sess := sessionFrom(r)

	var target anchor.Target
	switch {
	case body.Target != nil:
		target = *body.Target
	case body.NodeID != "":
		t, err := sess.Encode(body.NodeID, body.Start, body.End)
		if err != nil {
			jsonError(w, err.Error(), errorStatus(err))
			return
		}
		target = t
	default:
		jsonError(w, "target or node_id is required", http.StatusBadRequest)
		return
	}

	a, err := annotation.New(sess.DocID, target, body.Body)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.annotations.Put(r.Context(), a); err != nil {
		s.log.Error("store annotation", "doc_id", sess.DocID, "error", err)
		jsonError(w, "failed to store annotation", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, resolve(sess, a))
}

func (s *Server) handleListAnnotations(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	list, err := s.annotations.List(r.Context(), sess.DocID)
	if err != nil {
		s.log.Error("list annotations", "doc_id", sess.DocID, "error", err)
		jsonError(w, "failed to list annotations", http.StatusInternalServerError)
		return
	}

	out := make([]resolvedAnnotation, 0, len(list))
	orphaned := 0
	for _, a := range list {
		ra := resolve(sess, a)
		if ra.Location == nil {
			orphaned++
		}
		out = append(out, ra)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"annotations": out,
		"orphaned":    orphaned,
	})
}

func (s *Server) handleGetAnnotation(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	a, err := s.annotations.Get(r.Context(), sess.DocID, chi.URLParam(r, "annotationID"))
	if err != nil {
		s.annotationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resolve(sess, a))
}

func (s *Server) handleDeleteAnnotation(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if err := s.annotations.Delete(r.Context(), sess.DocID, chi.URLParam(r, "annotationID")); err != nil {
		s.annotationError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) annotationError(w http.ResponseWriter, err error) {
	if code := errorStatus(err); code == http.StatusNotFound {
		jsonError(w, err.Error(), code)
		return
	}
	s.log.Error("annotation store", "error", err)
	jsonError(w, "annotation store unavailable", http.StatusInternalServerError)
}
