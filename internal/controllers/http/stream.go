package httpctrl

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// streamClient serialises writes; a websocket.Conn allows one writer at a time.
type streamClient struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *streamClient) send(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "err", err)
		return
	}
	c := &streamClient{conn: conn}
	s.clients.Store(c, struct{}{})
	s.log.Debug("stream client connected", "remote", r.RemoteAddr)

	defer func() {
		s.clients.Delete(c)
		conn.Close()
		s.log.Debug("stream client disconnected", "remote", r.RemoteAddr)
	}()

	if msg, err := json.Marshal(s.toDTO(s.svc.Get())); err == nil {
		if err := c.send(msg); err != nil {
			return
		}
	}

	// Drain reads so close frames and pings are handled.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("stream read ended", "err", err)
			}
			return
		}
	}
}

type streamState struct {
	runs, running int
	selected      string
}

// watch polls the service and pushes the snapshot to every stream client
// whenever the run count, the running count or the selection changes.
func (s *Server) watch(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	prev := streamState{runs: -1}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := s.svc.Get()
			cur := streamState{runs: snap.Runs, running: snap.Running, selected: snap.Selected}
			if cur == prev {
				continue
			}
			prev = cur
			msg, err := json.Marshal(s.toDTO(snap))
			if err != nil {
				s.log.Error("marshal snapshot", "err", err)
				continue
			}
			s.broadcast(msg)
		}
	}
}

func (s *Server) broadcast(msg []byte) {
	s.clients.Range(func(key, _ any) bool {
		c := key.(*streamClient)
		if err := c.send(msg); err != nil {
			s.log.Debug("stream write failed", "err", err)
			c.conn.Close()
			s.clients.Delete(c)
		}
		return true
	})
}

func (s *Server) closeClients() {
	s.clients.Range(func(key, _ any) bool {
		key.(*streamClient).conn.Close()
		s.clients.Delete(key)
		return true
	})
}
