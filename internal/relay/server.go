package relay

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 70 * time.Second
	wsPingPeriod = 30 * time.Second
)

// Server is the relay's websocket endpoint. One connection per room
// member; frames are routed or rebroadcast per the envelope type.
type Server struct {
	store    *RoomStore
	hub      *Hub
	fanout   *Fanout // nil when single-instance
	upgrader websocket.Upgrader
	logger   *slog.Logger
	nowFn    func() time.Time
}

func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store: NewRoomStore(),
		hub:   NewHub(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger.With("component", "relay"),
		nowFn:  time.Now,
	}
}

// Hub exposes the connection registry, mainly for the redis fanout.
func (s *Server) Hub() *Hub { return s.hub }

// SetFanout enables cross-instance rebroadcast.
func (s *Server) SetFanout(f *Fanout) { s.fanout = f }

// HandleWebSocket joins the caller into the room named by session_id. The
// optional data query parameter is the JSON identity blob announced to
// the other members.
func (s *Server) HandleWebSocket(c *gin.Context) {
	roomID := c.Query("session_id")
	if roomID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}
	data := c.Query("data")

	connID, peers, streams, err := s.store.Join(roomID, data, s.nowFn())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.store.Leave(roomID, connID, s.nowFn())
		s.logger.Warn("ws upgrade failed", "room_id", roomID, "error", err)
		return
	}

	client := &wsClient{
		conn:   conn,
		send:   make(chan []byte, 32),
		roomID: roomID,
		connID: connID,
	}
	s.hub.Add(client)
	s.logger.Debug("relay connect", "room_id", roomID, "connection_id", connID, "peers", len(peers))

	welcome := welcomeData{ConnectionID: connID, Peers: make([]PeerInfo, 0, len(peers)), Streams: streams}
	for _, p := range peers {
		welcome.Peers = append(welcome.Peers, PeerInfo{ID: p.ID, Data: p.Data})
	}
	if welcome.Streams == nil {
		welcome.Streams = []StreamInfo{}
	}
	msg, _ := marshalEnvelope(MsgWelcome, "", "", welcome)
	if !client.trySend(msg) {
		_ = conn.Close()
		s.cleanupClient(client)
		return
	}

	announce, _ := marshalEnvelope(MsgConnectionCreated, connID, "", PeerInfo{ID: connID, Data: data})
	s.deliver(roomID, connID, announce)

	go s.writePump(client)
	s.readPump(client)
}

func (s *Server) readPump(client *wsClient) {
	defer func() {
		_ = client.conn.Close()
		s.cleanupClient(client)
	}()

	_ = client.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	client.conn.SetPongHandler(func(string) error {
		_ = client.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		_, payload, err := client.conn.ReadMessage()
		if err != nil {
			s.logger.Debug("relay read error", "room_id", client.roomID, "connection_id", client.connID, "error", err)
			return
		}

		var msg Envelope
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.logger.Debug("relay bad json", "room_id", client.roomID, "connection_id", client.connID, "error", err)
			continue
		}

		msg.From = client.connID
		switch msg.Type {
		case MsgStreamCreated:
			var st StreamInfo
			if err := json.Unmarshal(msg.Data, &st); err != nil || st.ID == "" {
				continue
			}
			if err := s.store.AddStream(client.roomID, client.connID, st, s.nowFn()); err != nil {
				continue
			}
			st.ConnectionID = client.connID
			forward, _ := marshalEnvelope(MsgStreamCreated, client.connID, "", st)
			s.deliver(client.roomID, client.connID, forward)

		case MsgStreamDestroyed:
			var st StreamInfo
			if err := json.Unmarshal(msg.Data, &st); err != nil || st.ID == "" {
				continue
			}
			if !s.store.RemoveStream(client.roomID, client.connID, st.ID, s.nowFn()) {
				continue
			}
			st.ConnectionID = client.connID
			forward, _ := marshalEnvelope(MsgStreamDestroyed, client.connID, "", st)
			s.deliver(client.roomID, client.connID, forward)

		case MsgSignal:
			forward, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			if msg.To != "" {
				if !s.hub.SendTo(client.roomID, msg.To, forward) {
					s.logger.Debug("relay direct signal not delivered", "room_id", client.roomID, "to", msg.To)
				}
				continue
			}
			// Signals are echoed to the sender too, matching the hosted
			// platform's broadcast semantics.
			s.deliver(client.roomID, "", forward)

		default:
			s.logger.Debug("relay unknown frame", "room_id", client.roomID, "type", msg.Type)
		}
	}
}

func (s *Server) writePump(client *wsClient) {
	defer func() {
		_ = client.conn.Close()
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-client.send:
			if !ok {
				return
			}
			_ = client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// cleanupClient tears down room state for a gone connection and announces
// the departure.
func (s *Server) cleanupClient(client *wsClient) {
	removed := s.store.Leave(client.roomID, client.connID, s.nowFn())
	s.hub.Remove(client.roomID, client.connID)

	for _, st := range removed {
		msg, _ := marshalEnvelope(MsgStreamDestroyed, client.connID, "", st)
		s.deliver(client.roomID, client.connID, msg)
	}
	msg, _ := marshalEnvelope(MsgConnectionDestroyed, client.connID, "", PeerInfo{ID: client.connID})
	s.deliver(client.roomID, client.connID, msg)
	s.logger.Debug("relay disconnect", "room_id", client.roomID, "connection_id", client.connID)
}

// deliver broadcasts locally and, when fanout is configured, to the other
// relay instances.
func (s *Server) deliver(roomID, exceptConnID string, payload []byte) {
	s.hub.Broadcast(roomID, exceptConnID, payload)
	if s.fanout != nil {
		s.fanout.Publish(roomID, exceptConnID, payload)
	}
}
