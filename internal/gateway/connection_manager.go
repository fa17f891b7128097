package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizarena/internal/errors"
	"github.com/mcdev12/quizarena/internal/protocol"
)

// MessageHandler processes one inbound envelope from a connection.
type MessageHandler func(conn *Connection, env *protocol.Envelope)

// ConnectionManager owns all WebSocket connections and the room pools used
// for per-game broadcasting. It implements game.Broadcaster.
type ConnectionManager struct {
	mu    sync.RWMutex
	conns map[*Connection]bool
	// rooms is keyed by join code; players indexes bound identities within a
	// room for direct sends.
	rooms   map[string]map[*Connection]bool
	players map[string]*Connection

	upgrader websocket.Upgrader
	config   ConnectionConfig

	broadcastCh chan broadcastMessage

	relay *Relay

	// handler and onDisconnect are set once during wiring, before any
	// connection is accepted.
	handler      MessageHandler
	onDisconnect func(gameCode, playerID string)
}

// Connection represents one WebSocket client. GameCode and PlayerID are set
// on a successful join and guarded by the manager's mutex.
type Connection struct {
	ID       string
	GameCode string
	PlayerID string

	conn    *websocket.Conn
	send    chan []byte
	manager *ConnectionManager

	ConnectedAt time.Time
	LastPing    time.Time
}

// ConnectionConfig holds WebSocket tuning knobs.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendQueueSize   int
	CheckOrigin     func(r *http.Request) bool
}

type broadcastMessage struct {
	gameCode string
	playerID string // if set, deliver to this player only
	env      *protocol.Envelope
}

// DefaultConnectionConfig returns the default WebSocket configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendQueueSize:   64,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// NewConnectionManager creates a connection manager. relay may be nil.
func NewConnectionManager(config ConnectionConfig, relay *Relay) *ConnectionManager {
	return &ConnectionManager{
		conns:   make(map[*Connection]bool),
		rooms:   make(map[string]map[*Connection]bool),
		players: make(map[string]*Connection),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan broadcastMessage, 1000),
		relay:       relay,
	}
}

// SetHandler installs the inbound message handler. Must be called before
// connections are accepted.
func (cm *ConnectionManager) SetHandler(h MessageHandler) {
	cm.handler = h
}

// SetDisconnectHook installs the callback fired when a bound connection
// drops, so the session can mark the player offline.
func (cm *ConnectionManager) SetDisconnectHook(f func(gameCode, playerID string)) {
	cm.onDisconnect = f
}

// Start drains the broadcast channel until ctx is cancelled.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP request to a WebSocket connection and
// starts its pumps. The connection belongs to no room until it joins a game.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		conn:        conn,
		send:        make(chan []byte, cm.config.SendQueueSize),
		manager:     cm,
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
	}

	cm.mu.Lock()
	cm.conns[connection] = true
	cm.mu.Unlock()

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("remote", r.RemoteAddr).
		Msg("WebSocket connection established")

	return nil
}

// BindPlayer attaches a connection to a game room under a player identity.
// A reconnect rebinds the identity to the new connection; the stale one no
// longer receives direct sends.
func (cm *ConnectionManager) BindPlayer(conn *Connection, gameCode, playerID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if conn.GameCode != "" {
		cm.leaveRoomLocked(conn)
	}

	conn.GameCode = gameCode
	conn.PlayerID = playerID

	if cm.rooms[gameCode] == nil {
		cm.rooms[gameCode] = make(map[*Connection]bool)
	}
	cm.rooms[gameCode][conn] = true
	cm.players[playerKey(gameCode, playerID)] = conn

	log.Debug().
		Str("connection_id", conn.ID).
		Str("game_code", gameCode).
		Str("player_id", playerID).
		Int("room_connections", len(cm.rooms[gameCode])).
		Msg("connection bound to player")
}

// Binding returns the connection's game and player, if joined.
func (cm *ConnectionManager) Binding(conn *Connection) (gameCode, playerID string, ok bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return conn.GameCode, conn.PlayerID, conn.PlayerID != ""
}

// BroadcastToGame queues an event for every connection in a room.
func (cm *ConnectionManager) BroadcastToGame(gameCode string, env *protocol.Envelope) {
	select {
	case cm.broadcastCh <- broadcastMessage{gameCode: gameCode, env: env}:
	default:
		log.Warn().Str("game_code", gameCode).Msg("broadcast channel full, dropping message")
	}
}

// SendToPlayer queues an event for one player in a room.
func (cm *ConnectionManager) SendToPlayer(gameCode, playerID string, env *protocol.Envelope) {
	select {
	case cm.broadcastCh <- broadcastMessage{gameCode: gameCode, playerID: playerID, env: env}:
	default:
		log.Warn().
			Str("game_code", gameCode).
			Str("player_id", playerID).
			Msg("broadcast channel full, dropping player message")
	}
}

func (cm *ConnectionManager) handleBroadcast(message broadcastMessage) {
	cm.mu.RLock()
	var targets []*Connection
	if message.playerID != "" {
		if conn, ok := cm.players[playerKey(message.gameCode, message.playerID)]; ok {
			targets = append(targets, conn)
		}
	} else {
		for conn := range cm.rooms[message.gameCode] {
			targets = append(targets, conn)
		}
	}
	cm.mu.RUnlock()

	data, err := json.Marshal(message.env)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	for _, conn := range targets {
		select {
		case conn.send <- data:
		default:
			// Connection is slow or dead; drop it rather than stall the room.
			log.Warn().
				Str("connection_id", conn.ID).
				Str("player_id", conn.PlayerID).
				Msg("connection send buffer full, closing connection")
			cm.unregisterConnection(conn)
		}
	}

	// Room broadcasts are mirrored to NATS for external observers.
	if message.playerID == "" && cm.relay != nil {
		cm.relay.Publish(message.gameCode, message.env)
	}

	log.Debug().
		Str("event_type", string(message.env.Type)).
		Str("game_code", message.gameCode).
		Int("connections", len(targets)).
		Msg("event broadcasted")
}

func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()

	if _, exists := cm.conns[conn]; !exists {
		cm.mu.Unlock()
		return
	}
	delete(cm.conns, conn)
	gameCode, playerID := conn.GameCode, conn.PlayerID
	cm.leaveRoomLocked(conn)

	cm.mu.Unlock()

	// The send channel is never closed: broadcasts may race with unregister
	// and a send on a closed channel panics. Closing the socket wakes both
	// pumps instead; anything still queued is simply never written.
	conn.conn.Close()

	log.Info().
		Str("connection_id", conn.ID).
		Str("player_id", playerID).
		Msg("connection unregistered")

	if playerID != "" && cm.onDisconnect != nil {
		cm.onDisconnect(gameCode, playerID)
	}
}

// leaveRoomLocked removes a connection from its room and player index.
// Caller holds cm.mu.
func (cm *ConnectionManager) leaveRoomLocked(conn *Connection) {
	if conn.GameCode == "" {
		return
	}

	if room, ok := cm.rooms[conn.GameCode]; ok {
		delete(room, conn)
		if len(room) == 0 {
			delete(cm.rooms, conn.GameCode)
		}
	}

	// A reconnect may already have rebound the identity to a newer
	// connection; only clear the index if it still points at this one.
	key := playerKey(conn.GameCode, conn.PlayerID)
	if cm.players[key] == conn {
		delete(cm.players, key)
	}
}

// Stats reports active connection counts per room.
type Stats struct {
	TotalConnections int            `json:"totalConnections"`
	ActiveRooms      int            `json:"activeRooms"`
	RoomConnections  map[string]int `json:"roomConnections"`
}

// GetStats returns statistics about active connections.
func (cm *ConnectionManager) GetStats() Stats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	s := Stats{
		TotalConnections: len(cm.conns),
		ActiveRooms:      len(cm.rooms),
		RoomConnections:  make(map[string]int, len(cm.rooms)),
	}
	for code, room := range cm.rooms {
		s.RoomConnections[code] = len(room)
	}
	return s
}

func playerKey(gameCode, playerID string) string {
	return gameCode + "/" + playerID
}

// SendEnvelope queues an event directly on this connection.
func (c *Connection) SendEnvelope(env *protocol.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to marshal envelope")
		return
	}

	select {
	case c.send <- data:
	default:
		log.Warn().Str("connection_id", c.ID).Msg("send buffer full, dropping message")
	}
}

// SendError queues a typed error event on this connection.
func (c *Connection) SendError(err error) {
	c.SendEnvelope(protocol.ErrorEnvelope(err))
}

// writePump sends queued messages and pings to the WebSocket connection.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.manager.unregisterConnection(c)
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			c.LastPing = time.Now()
		}
	}
}

// readPump reads envelopes from the WebSocket connection and hands them to
// the message handler.
func (c *Connection) readPump() {
	defer c.manager.unregisterConnection(c)

	c.conn.SetReadLimit(c.manager.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
		c.LastPing = time.Now()
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		var env protocol.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			c.SendError(errors.New(errors.CodeBadEnvelope,
				errors.WithMessagef("message is not a {type, data} envelope"),
				errors.WithCause(err)))
		} else {
			c.manager.handler(c, &env)
		}
		c.conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
	}
}
