package api

import (
	"net/http"
	"strings"

	"github.com/dgallion1/docanchor/internal/metrics"
	"github.com/dgallion1/docanchor/internal/session"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const streamBuffer = 64

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
}

// streamMessage is sent to stream clients. Type is "hello", "batch" or
// "result".
type streamMessage struct {
	Type     string                 `json:"type"`
	ClientID string                 `json:"client_id,omitempty"`
	Batch    *session.Batch         `json:"batch,omitempty"`
	Result   *session.ReplaceResult `json:"result,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

// streamRequest is an edit sent by a stream client. Action is "replace",
// "delete" or "set_attribute". Edits made here are not echoed back to the
// client that made them.
type streamRequest struct {
	Action string `json:"action"`
	NodeID string `json:"node_id"`
	Format string `json:"format"`
	Rule   string `json:"rule"`
	Text   string `json:"text"`
	Name   string `json:"name"`
	Value  string `json:"value"`
}

// handleStream upgrades to a websocket that mirrors the session's content
// mutations. Query parameters: client_id (optional) and watch, a comma
// separated list of node ids whose impact is reported per batch.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		clientID = uuid.NewString()
	}
	var watch []string
	if v := r.URL.Query().Get("watch"); v != "" {
		watch = strings.Split(v, ",")
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("failed to upgrade the websocket", "error", err)
		return
	}
	defer ws.Close()
	log := s.log.With("session_id", sess.ID, "client_id", clientID)
	log.Info("stream client connected")

	out := make(chan streamMessage, streamBuffer)
	done := make(chan struct{})
	stop := make(chan struct{})
	defer close(stop)

	// Listeners run under the session lock, so never block here.
	unsubscribe := sess.Stream(clientID, watch, func(b session.Batch) {
		select {
		case out <- streamMessage{Type: "batch", Batch: &b}:
		default:
			metrics.RecordStreamDrop()
			log.Warn("stream client too slow, batch dropped")
		}
	})
	defer unsubscribe()

	go func() {
		defer close(done)
		for {
			var req streamRequest
			if err := ws.ReadJSON(&req); err != nil {
				log.Info("stream client disconnected", "error", err.Error())
				return
			}
			if !deliverResult(out, stop, s.applyStreamEdit(sess, clientID, req)) {
				return
			}
		}
	}()

	if err := ws.WriteJSON(streamMessage{Type: "hello", ClientID: clientID}); err != nil {
		return
	}
	for {
		select {
		case msg := <-out:
			if err := ws.WriteJSON(msg); err != nil {
				log.Warn("failed to write websocket JSON", "error", err)
				return
			}
		case <-done:
			return
		}
	}
}

// deliverResult queues the reply to a client's own edit. Unlike batches it
// waits for room, giving up only once the writer has stopped.
func deliverResult(out chan<- streamMessage, stop <-chan struct{}, msg streamMessage) bool {
	select {
	case out <- msg:
		return true
	case <-stop:
		return false
	}
}

func (s *Server) applyStreamEdit(sess *session.Session, clientID string, req streamRequest) streamMessage {
	var (
		res session.ReplaceResult
		err error
	)
	switch req.Action {
	case "replace":
		res, err = sess.Replace(session.ReplaceRequest{
			NodeID: req.NodeID,
			Format: req.Format,
			Rule:   req.Rule,
			Text:   req.Text,
			Origin: clientID,
		})
	case "delete":
		res, err = sess.Delete(req.NodeID, clientID)
	case "set_attribute":
		err = sess.SetAttribute(req.NodeID, req.Name, req.Value, clientID)
	default:
		return streamMessage{Type: "result", Error: "unknown action: " + req.Action}
	}
	if err != nil {
		return streamMessage{Type: "result", Error: err.Error()}
	}
	return streamMessage{Type: "result", Result: &res}
}
