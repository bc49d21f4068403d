package gateway

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/mcdev12/claimline/go/internal/game/events"
)

// MessageHandler receives what connections read off the wire.
type MessageHandler interface {
	Dispatch(client Client, raw []byte)
	RateLimited(client Client, raw []byte)
	Disconnect(client Client)
}

// Client identifies the sender of a frame.
type Client struct {
	ID   string
	Name string
}

// ConnectionManager owns every WebSocket connection and the room membership used for
// broadcasts. Membership changes and outbound frames go through one channel so they are
// applied in the order the round engine produced them.
type ConnectionManager struct {
	connections map[string]*Connection
	rooms       map[string]map[string]bool
	mu          sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
	handler  MessageHandler

	broadcastCh chan outbound
	dropped     atomic.Uint64
}

// Connection represents a WebSocket connection to a client
type Connection struct {
	ID      string
	Name    string
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	limiter *rate.Limiter

	ConnectedAt time.Time
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBuffer      int
	BroadcastBuffer int
	// EnqueueTimeout is how long a producer waits on a full broadcast queue before the frame
	// is dropped and its recipients are disconnected.
	EnqueueTimeout time.Duration
	// CommandRate and CommandBurst bound inbound commands per connection.
	CommandRate  float64
	CommandBurst int
	CheckOrigin  func(r *http.Request) bool
}

type opKind int

const (
	opJoin opKind = iota
	opLeave
	opRoom
	opConn
)

type outbound struct {
	kind   opKind
	roomID string
	connID string
	event  events.Name
	data   []byte
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  16 * 1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBuffer:      256,
		BroadcastBuffer: 4096,
		EnqueueTimeout:  250 * time.Millisecond,
		CommandRate:     20,
		CommandBurst:    40,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*Connection),
		rooms:       make(map[string]map[string]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan outbound, config.BroadcastBuffer),
	}
}

// SetHandler installs the receiver of inbound frames. Must be called before connections are
// accepted.
func (cm *ConnectionManager) SetHandler(h MessageHandler) {
	cm.handler = h
}

// Start applies queued membership changes and frames until ctx is done.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			cm.closeAll()
			log.Info().Msg("connection manager shutting down")
			return
		case msg := <-cm.broadcastCh:
			cm.apply(msg)
		}
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, name string) (*Connection, error) {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		Name:        name,
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBuffer),
		Manager:     cm,
		limiter:     rate.NewLimiter(rate.Limit(cm.config.CommandRate), cm.config.CommandBurst),
		ConnectedAt: time.Now(),
	}
	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("name", name).
		Msg("WebSocket connection established")
	return connection, nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.connections[conn.ID] = conn
	log.Debug().
		Str("connection_id", conn.ID).
		Int("total_connections", len(cm.connections)).
		Msg("connection registered")
}

// unregisterConnection removes a connection and reports whether it was still registered.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if _, exists := cm.connections[conn.ID]; !exists {
		return false
	}
	delete(cm.connections, conn.ID)
	close(conn.Send)
	for roomID, members := range cm.rooms {
		delete(members, conn.ID)
		if len(members) == 0 {
			delete(cm.rooms, roomID)
		}
	}
	log.Info().Str("connection_id", conn.ID).Msg("connection unregistered")
	return true
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.connections))
	for _, c := range cm.connections {
		conns = append(conns, c)
	}
	cm.mu.RUnlock()
	for _, c := range conns {
		c.Conn.Close()
	}
}

func (cm *ConnectionManager) enqueue(msg outbound) {
	select {
	case cm.broadcastCh <- msg:
		return
	default:
	}

	wait := time.NewTimer(cm.config.EnqueueTimeout)
	defer wait.Stop()
	select {
	case cm.broadcastCh <- msg:
	case <-wait.C:
		cm.dropped.Add(1)
		closed := cm.closeRecipients(msg)
		log.Error().
			Str("room_id", msg.roomID).
			Str("connection_id", msg.connID).
			Str("event", string(msg.event)).
			Int("closed_connections", closed).
			Msg("broadcast channel full, frame dropped")
	}
}

// closeRecipients closes the connections that would have received msg. Their clients
// reconnect and resync instead of continuing with a gap in the event order.
func (cm *ConnectionManager) closeRecipients(msg outbound) int {
	cm.mu.RLock()
	var targets []*Connection
	if msg.kind == opRoom {
		for id := range cm.rooms[msg.roomID] {
			if c, ok := cm.connections[id]; ok {
				targets = append(targets, c)
			}
		}
	} else if c, ok := cm.connections[msg.connID]; ok {
		targets = append(targets, c)
	}
	cm.mu.RUnlock()

	for _, c := range targets {
		go c.Conn.Close()
	}
	return len(targets)
}

func (cm *ConnectionManager) JoinRoom(roomID, connID string) {
	cm.enqueue(outbound{kind: opJoin, roomID: roomID, connID: connID})
}

func (cm *ConnectionManager) LeaveRoom(roomID, connID string) {
	cm.enqueue(outbound{kind: opLeave, roomID: roomID, connID: connID})
}

// BroadcastToRoom sends an event to every connection in a room.
func (cm *ConnectionManager) BroadcastToRoom(roomID string, event events.Name, payload any) {
	data, err := Encode(event, nil, payload)
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("failed to encode broadcast")
		return
	}
	cm.enqueue(outbound{kind: opRoom, roomID: roomID, event: event, data: data})
}

// SendToConnection sends an event to one connection.
func (cm *ConnectionManager) SendToConnection(connID string, event events.Name, payload any) {
	data, err := Encode(event, nil, payload)
	if err != nil {
		log.Error().Err(err).Str("connection_id", connID).Msg("failed to encode message")
		return
	}
	cm.enqueue(outbound{kind: opConn, connID: connID, event: event, data: data})
}

// SendAck answers the command that carried ackID.
func (cm *ConnectionManager) SendAck(connID string, ackID int64, payload any) {
	data, err := Encode(events.Ack, &ackID, payload)
	if err != nil {
		log.Error().Err(err).Str("connection_id", connID).Msg("failed to encode ack")
		return
	}
	cm.enqueue(outbound{kind: opConn, connID: connID, event: events.Ack, data: data})
}

func (cm *ConnectionManager) apply(msg outbound) {
	switch msg.kind {
	case opJoin:
		cm.mu.Lock()
		if _, ok := cm.connections[msg.connID]; ok {
			if cm.rooms[msg.roomID] == nil {
				cm.rooms[msg.roomID] = make(map[string]bool)
			}
			cm.rooms[msg.roomID][msg.connID] = true
		}
		cm.mu.Unlock()
	case opLeave:
		cm.mu.Lock()
		if members, ok := cm.rooms[msg.roomID]; ok {
			delete(members, msg.connID)
			if len(members) == 0 {
				delete(cm.rooms, msg.roomID)
			}
		}
		cm.mu.Unlock()
	case opRoom:
		cm.mu.RLock()
		targets := make([]*Connection, 0, len(cm.rooms[msg.roomID]))
		for id := range cm.rooms[msg.roomID] {
			if c, ok := cm.connections[id]; ok {
				targets = append(targets, c)
			}
		}
		cm.mu.RUnlock()
		for _, c := range targets {
			cm.deliver(c, msg.data)
		}
		log.Debug().
			Str("event", string(msg.event)).
			Str("room_id", msg.roomID).
			Int("connections", len(targets)).
			Msg("event broadcasted")
	case opConn:
		cm.mu.RLock()
		c, ok := cm.connections[msg.connID]
		cm.mu.RUnlock()
		if ok {
			cm.deliver(c, msg.data)
		}
	}
}

// deliver hands a frame to a connection's writer. A connection that cannot keep up is closed.
func (cm *ConnectionManager) deliver(c *Connection, data []byte) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	if _, ok := cm.connections[c.ID]; !ok {
		return
	}
	select {
	case c.Send <- data:
	default:
		log.Warn().Str("connection_id", c.ID).Msg("connection send buffer full, closing connection")
		go c.Conn.Close()
	}
}

// ConnectionStats summarizes live connections.
type ConnectionStats struct {
	TotalConnections int            `json:"totalConnections"`
	Rooms            int            `json:"rooms"`
	RoomConnections  map[string]int `json:"roomConnections"`
	DroppedFrames    uint64         `json:"droppedFrames"`
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	counts := make(map[string]int, len(cm.rooms))
	for roomID, members := range cm.rooms {
		counts[roomID] = len(members)
	}
	return ConnectionStats{
		TotalConnections: len(cm.connections),
		Rooms:            len(cm.rooms),
		RoomConnections:  counts,
		DroppedFrames:    cm.dropped.Load(),
	}
}

func (c *Connection) client() Client {
	return Client{ID: c.ID, Name: c.Name}
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump reads frames until the connection fails, then reports the disconnect.
func (c *Connection) readPump() {
	defer func() {
		if c.Manager.unregisterConnection(c) && c.Manager.handler != nil {
			c.Manager.handler.Disconnect(c.client())
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("unexpected WebSocket close error")
			}
			break
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))

		if c.Manager.handler == nil {
			continue
		}
		if !c.limiter.Allow() {
			c.Manager.handler.RateLimited(c.client(), message)
			continue
		}
		c.Manager.handler.Dispatch(c.client(), message)
	}
}
