package rpc

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tolelom/pazaak/events"
)

const (
	wsSendBuffer   = 64
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// wsClient is one websocket subscriber. A zero filter receives every room event.
type wsClient struct {
	conn   *websocket.Conn
	send   chan []byte
	roomID *uint64
	player string
}

func (c *wsClient) wants(ev events.Event) bool {
	if c.roomID != nil {
		id, _ := ev.Data["room_id"].(uint64)
		if id != *c.roomID {
			return false
		}
	}
	if c.player != "" {
		p1, _ := ev.Data["player1"].(string)
		p2, _ := ev.Data["player2"].(string)
		if c.player != p1 && c.player != p2 {
			return false
		}
	}
	return true
}

// eventStream fans room events out to websocket clients. Slow clients whose
// buffer fills are disconnected rather than blocking block execution.
type eventStream struct {
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	unsubs  []func()
}

func newEventStream(emitter *events.Emitter) *eventStream {
	s := &eventStream{clients: make(map[*wsClient]struct{})}
	if emitter != nil {
		for _, typ := range events.RoomEvents {
			s.unsubs = append(s.unsubs, emitter.Subscribe(typ, s.broadcast))
		}
	}
	return s
}

func (s *eventStream) broadcast(ev events.Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		log.Errorf("marshal event: %v", err)
		return
	}
	var slow []*wsClient
	s.mu.RLock()
	for c := range s.clients {
		if !c.wants(ev) {
			continue
		}
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	s.mu.RUnlock()
	for _, c := range slow {
		log.WithField("remote", c.conn.RemoteAddr().String()).Warn("dropping slow websocket client")
		s.remove(c)
	}
}

func (s *eventStream) add(c *wsClient) {
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
}

func (s *eventStream) remove(c *wsClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; !ok {
		return
	}
	delete(s.clients, c)
	close(c.send)
}

func (s *eventStream) close() {
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		delete(s.clients, c)
		close(c.send)
	}
}

// serveWS upgrades the connection and streams room events as JSON text
// frames. Optional query parameters room_id and player narrow the stream.
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	c := &wsClient{send: make(chan []byte, wsSendBuffer), player: r.URL.Query().Get("player")}
	if v := r.URL.Query().Get("room_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			http.Error(w, "invalid room_id", http.StatusBadRequest)
			return
		}
		c.roomID = &id
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("websocket upgrade: %v", err)
		return
	}
	c.conn = conn
	s.stream.add(c)
	go s.writePump(c)
	go s.readPump(c)
}

// readPump discards inbound frames; it exists to notice the peer going away.
func (s *Server) readPump(c *wsClient) {
	defer s.stream.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debugf("websocket read: %v", err)
			}
			return
		}
	}
}

func (s *Server) writePump(c *wsClient) {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
