package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"charmstudio/internal/apperr"
	"charmstudio/internal/editor"
)

const (
	editorWSWriteWait = 10 * time.Second
	editorWSPongWait  = 60 * time.Second
	editorWSPingEvery = (editorWSPongWait * 9) / 10
	editorWSMaxFrame  = 16 << 20
)

var editorWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type editorWSOutbound struct {
	Type  string        `json:"type"`
	State *editor.State `json:"state,omitempty"`
	Error *errorBody    `json:"error,omitempty"`
}

// EditorWS streams gestures for one session. Every accepted gesture is
// answered with the full state; rejected ones with an error frame. The socket
// is closed when the session is torn down.
func (h *Handler) EditorWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		h.writeError(w, r, apperr.Validation("handler.EditorWS", "session_id is required"))
		return
	}
	ws, err := h.workspace(r, sessionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	conn, err := editorWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	conn.SetReadLimit(editorWSMaxFrame)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(editorWSPongWait)); err != nil {
		h.log.Debug("editor ws set read deadline failed", zap.Error(err))
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(editorWSPongWait))
	})

	writeCh := make(chan editorWSOutbound, 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(editorWSPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ws.Done():
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"),
					time.Now().Add(editorWSWriteWait))
				_ = conn.Close()
				return
			case out := <-writeCh:
				if err := conn.SetWriteDeadline(time.Now().Add(editorWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(out); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(editorWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	if st, err := h.editor.State(ctx, ws); err == nil {
		pushEditorWS(writeCh, editorWSOutbound{Type: "state", State: &st})
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			cancel()
			<-writerDone
			return
		}
		g, err := editor.Decode(raw)
		if err == nil {
			var st editor.State
			st, err = h.editor.Apply(ctx, ws, g)
			if err == nil {
				pushEditorWS(writeCh, editorWSOutbound{Type: "state", State: &st})
				continue
			}
		}
		body := errorPayload(err)
		pushEditorWS(writeCh, editorWSOutbound{Type: "error", Error: &body})
	}
}

// pushEditorWS never blocks the reader. When the writer lags, the oldest
// queued frame is dropped; states are full snapshots so the newest wins.
func pushEditorWS(writeCh chan editorWSOutbound, out editorWSOutbound) {
	select {
	case writeCh <- out:
		return
	default:
	}
	select {
	case <-writeCh:
	default:
	}
	select {
	case writeCh <- out:
	default:
	}
}
