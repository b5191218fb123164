// pattern: Imperative Shell

package web

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"worktreehub/internal/session"
)

// ResizeMessage is sent from the browser when the terminal viewport changes.
type ResizeMessage struct {
	Type string `json:"type"` // "resize"
	Cols uint16 `json:"cols"`
	Rows uint16 `json:"rows"`
}

// handleAgentTerminal bridges a websocket to the worktree's agent session.
func (s *Server) handleAgentTerminal(w http.ResponseWriter, r *http.Request) {
	s.serveTerminal(w, r, "")
}

// handlePreviewTerminal bridges a websocket to one preview session.
func (s *Server) handlePreviewTerminal(w http.ResponseWriter, r *http.Request) {
	s.serveTerminal(w, r, r.PathValue("id"))
}

func (s *Server) serveTerminal(w http.ResponseWriter, r *http.Request, serviceID string) {
	p, wt, ok := s.lookupWorktree(w, r)
	if !ok {
		return
	}
	sess := s.agentOrPreview(p, wt.Path, serviceID)
	if sess == nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	// Upgrade to websocket. Do NOT use r.Context() after this.
	// Restrict to localhost origins to prevent cross-origin WebSocket attacks.
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"127.0.0.1:*", "localhost:*"},
	})
	if err != nil {
		s.logger.Error("websocket accept failed", "error", err)
		return
	}
	defer func() { _ = conn.CloseNow() }()
	conn.SetReadLimit(1 << 20)

	s.logger.Info("terminal connected", "worktree", wt.Name, "session", sess.ID())
	bridgeTerminal(context.Background(), conn, sess)
	s.logger.Info("terminal disconnected", "worktree", wt.Name, "session", sess.ID())
}

// outbox queues session output for the websocket writer so the session's
// output lock is never held across network writes.
type outbox struct {
	mu     sync.Mutex
	buf    []byte
	notify chan struct{}
}

func newOutbox() *outbox {
	return &outbox{notify: make(chan struct{}, 1)}
}

func (o *outbox) push(chunk []byte) {
	o.mu.Lock()
	o.buf = append(o.buf, chunk...)
	o.mu.Unlock()
	select {
	case o.notify <- struct{}{}:
	default:
	}
}

func (o *outbox) take() []byte {
	o.mu.Lock()
	defer o.mu.Unlock()
	b := o.buf
	o.buf = nil
	return b
}

// bridgeTerminal replays the session's history to conn, then streams live
// output until the session exits or the peer goes away. Binary frames from
// the peer are keystrokes; text frames may carry a resize.
func bridgeTerminal(ctx context.Context, conn *websocket.Conn, sess *session.Session) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := newOutbox()
	unsubscribe := sess.Subscribe(true, out.push)
	defer unsubscribe()

	// WebSocket → session input.
	go func() {
		defer cancel()
		for {
			msgType, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			if msgType == websocket.MessageText {
				var msg ResizeMessage
				if json.Unmarshal(data, &msg) == nil && msg.Type == "resize" {
					sess.Resize(int(msg.Cols), int(msg.Rows))
					continue
				}
			}
			sess.Send(data)
		}
	}()

	flush := func() bool {
		if b := out.take(); len(b) > 0 {
			if err := conn.Write(ctx, websocket.MessageBinary, b); err != nil {
				return false
			}
		}
		return true
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-out.notify:
			if !flush() {
				return
			}
		case <-sess.Done():
			flush()
			_ = conn.Close(websocket.StatusNormalClosure, "session exited")
			return
		}
	}
}
