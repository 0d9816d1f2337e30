package api

import (
	"net/http"

	"github.com/dgallion1/docanchor/internal/anchor"
)

// encodeBody selects [start, end) of the visible text of a node.
type encodeBody struct {
	NodeID string `json:"node_id"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
}

func (s *Server) handleEncode(w http.ResponseWriter, r *http.Request) {
	var body encodeBody
	if !decodeBody(w, r, &body) {
		return
	}
	if body.NodeID == "" {
		jsonError(w, "node_id is required", http.StatusBadRequest)
		return
	}
	target, err := sessionFrom(r).Encode(body.NodeID, body.Start, body.End)
	if err != nil {
		jsonError(w, err.Error(), errorStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, target)
}

func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	var target anchor.Target
	if !decodeBody(w, r, &target) {
		return
	}
	if err := target.Validate(); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	loc, ok := sessionFrom(r).Decode(target)
	if !ok {
		jsonError(w, "target cannot be located", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}
