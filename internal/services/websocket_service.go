package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"pitch-deck/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 16
)

// Message types pushed to renderers
const (
	MessageSession = "session"
	MessageError   = "error"
)

// IntentDispatcher applies renderer intents to the session
type IntentDispatcher interface {
	Dispatch(ctx context.Context, in models.Intent) (models.SessionSnapshot, error)
	Snapshot() models.SessionSnapshot
}

// ServerMessage is a frame sent to a renderer
type ServerMessage struct {
	Type    string                  `json:"type"`
	Session *models.SessionSnapshot `json:"session,omitempty"`
	Error   string                  `json:"error,omitempty"`
	Intent  models.IntentType       `json:"intent,omitempty"`
}

// Client is one connected renderer
type Client struct {
	ID   string
	conn *websocket.Conn
	send chan []byte

	version uint64 // newest snapshot queued to this client; owned by Run
}

// WebSocketService fans session snapshots out to renderers and feeds their
// intents back into the session
type WebSocketService struct {
	upgrader   websocket.Upgrader
	dispatcher IntentDispatcher
	logger     *zap.Logger

	register   chan *Client
	unregister chan *Client

	// pending holds only the newest snapshot not yet fanned out
	pendingMu sync.Mutex
	pending   *models.SessionSnapshot
	wake      chan struct{}

	mu      sync.RWMutex
	clients map[*Client]bool
	stopped chan struct{}
}

// NewWebSocketService creates a hub. allowedOrigins empty means same-host only.
func NewWebSocketService(allowedOrigins []string, logger *zap.Logger) *WebSocketService {
	if logger == nil {
		logger = zap.NewNop()
	}
	ws := &WebSocketService{
		logger:     logger,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		wake:       make(chan struct{}, 1),
		clients:    make(map[*Client]bool),
		stopped:    make(chan struct{}),
	}
	ws.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	if len(allowedOrigins) > 0 {
		ws.upgrader.CheckOrigin = originChecker(allowedOrigins)
	}
	return ws
}

// SetDispatcher wires the session that receives client intents
func (ws *WebSocketService) SetDispatcher(d IntentDispatcher) {
	ws.dispatcher = d
}

// SessionChanged queues a snapshot for all clients. It never blocks the session;
// snapshots not yet sent are replaced by newer ones.
func (ws *WebSocketService) SessionChanged(snap models.SessionSnapshot) {
	ws.pendingMu.Lock()
	if ws.pending == nil || snap.Version > ws.pending.Version {
		ws.pending = &snap
	}
	ws.pendingMu.Unlock()

	select {
	case ws.wake <- struct{}{}:
	default:
	}
}

func (ws *WebSocketService) takePending() (models.SessionSnapshot, bool) {
	ws.pendingMu.Lock()
	defer ws.pendingMu.Unlock()
	if ws.pending == nil {
		return models.SessionSnapshot{}, false
	}
	snap := *ws.pending
	ws.pending = nil
	return snap, true
}

// ClientCount returns the number of connected renderers
func (ws *WebSocketService) ClientCount() int {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return len(ws.clients)
}

// Run processes registrations and broadcasts until ctx is done
func (ws *WebSocketService) Run(ctx context.Context) {
	defer close(ws.stopped)
	var last models.SessionSnapshot

	for {
		select {
		case <-ctx.Done():
			ws.mu.Lock()
			for client := range ws.clients {
				delete(ws.clients, client)
				close(client.send)
			}
			ws.mu.Unlock()
			return

		case client := <-ws.register:
			ws.mu.Lock()
			ws.clients[client] = true
			ws.mu.Unlock()
			ws.logger.Info("Renderer connected", zap.String("client", client.ID))

			// the current state goes first so a fresh renderer can draw immediately
			current, known := last, last.Version > 0
			if ws.dispatcher != nil {
				if snap := ws.dispatcher.Snapshot(); !known || snap.Version >= current.Version {
					current, known = snap, true
				}
			}
			if known {
				ws.sendSnapshot(client, current)
			}

		case client := <-ws.unregister:
			ws.mu.Lock()
			if _, ok := ws.clients[client]; ok {
				delete(ws.clients, client)
				close(client.send)
			}
			ws.mu.Unlock()
			ws.logger.Info("Renderer disconnected", zap.String("client", client.ID))

		case <-ws.wake:
			snap, ok := ws.takePending()
			// snapshots can arrive out of order from concurrent operations
			if !ok || snap.Version <= last.Version {
				continue
			}
			last = snap

			ws.mu.RLock()
			clients := make([]*Client, 0, len(ws.clients))
			for client := range ws.clients {
				clients = append(clients, client)
			}
			ws.mu.RUnlock()
			for _, client := range clients {
				ws.sendSnapshot(client, snap)
			}
		}
	}
}

// sendSnapshot queues snap for client unless it already has that version or a
// newer one. A client whose queue is full is disconnected. Only Run calls it.
func (ws *WebSocketService) sendSnapshot(client *Client, snap models.SessionSnapshot) {
	if client.version != 0 && snap.Version <= client.version {
		return
	}
	data, err := encodeSession(snap)
	if err != nil {
		ws.logger.Error("Failed to encode snapshot", zap.Error(err))
		return
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()
	if !ws.clients[client] {
		return
	}
	select {
	case client.send <- data:
		client.version = snap.Version
	default:
		ws.logger.Warn("Renderer too slow, disconnecting", zap.String("client", client.ID))
		delete(ws.clients, client)
		close(client.send)
	}
}

// ServeWS upgrades the request and attaches the renderer to the hub
func (ws *WebSocketService) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		ID:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	select {
	case ws.register <- client:
	case <-ws.stopped:
		conn.Close()
		return
	}

	go ws.writePump(client)
	go ws.readPump(client)
}

func (ws *WebSocketService) readPump(client *Client) {
	defer func() {
		select {
		case ws.unregister <- client:
		case <-ws.stopped:
		}
		client.conn.Close()
	}()

	client.conn.SetReadLimit(maxMessageSize)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var in models.Intent
		if err := client.conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ws.logger.Debug("Renderer read error", zap.String("client", client.ID), zap.Error(err))
			}
			return
		}
		if ws.dispatcher == nil {
			continue
		}

		if _, err := ws.dispatcher.Dispatch(context.Background(), in); err != nil {
			ws.replyError(client, in.Type, err)
		}
	}
}

func (ws *WebSocketService) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case data, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// replyError sends err to a single client only
func (ws *WebSocketService) replyError(client *Client, intent models.IntentType, err error) {
	data, encErr := json.Marshal(ServerMessage{Type: MessageError, Error: err.Error(), Intent: intent})
	if encErr != nil {
		return
	}

	ws.mu.RLock()
	defer ws.mu.RUnlock()
	if !ws.clients[client] {
		return
	}
	select {
	case client.send <- data:
	default:
	}
}

func encodeSession(snap models.SessionSnapshot) ([]byte, error) {
	return json.Marshal(ServerMessage{Type: MessageSession, Session: &snap})
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		set[strings.TrimRight(strings.ToLower(origin), "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return set[strings.ToLower(u.Scheme+"://"+u.Host)]
	}
}
