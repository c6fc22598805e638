package transport

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"soundviz/internal/analysis"
	applog "soundviz/internal/log"
)

// wsFrame is the JSON wire shape of one analysis frame.
type wsFrame struct {
	Type       string    `json:"type"`
	Bands      []float64 `json:"bands"`
	BassFast   float64   `json:"bass_fast"`
	BassSmooth float64   `json:"bass_smooth"`
}

// WebSocketTransport broadcasts analysis frames to connected renderer
// clients with rate limiting so a fast render loop cannot flood the
// network.
//
// Thread Safety:
// - Mutex around the client map
// - Handles concurrent connects/disconnects
type WebSocketTransport struct {
	clients      map[*websocket.Conn]bool
	clientsMutex sync.Mutex
	upgrader     websocket.Upgrader
	server       *http.Server

	lastSend        time.Time
	minSendInterval time.Duration
}

var _ Transport = (*WebSocketTransport)(nil)

// NewWebSocketTransport starts a WebSocket server on the given port
// serving frames at /bands. The server runs in its own goroutine.
func NewWebSocketTransport(port string) *WebSocketTransport {
	t := &WebSocketTransport{
		clients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // local visualizer clients only
			},
		},
		minSendInterval: 16 * time.Millisecond, // ~60Hz ceiling
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/bands", t.handleWebSocket)
	t.server = &http.Server{
		Addr:    ":" + port,
		Handler: mux,
	}

	go func() {
		applog.Infof("Transport: band WebSocket server listening on port %s", port)
		if err := t.server.ListenAndServe(); err != http.ErrServerClosed {
			applog.Errorf("Transport: WebSocket server error: %v", err)
		}
	}()

	return t
}

// handleWebSocket upgrades the connection, registers the client, and
// removes it again when the read side fails (client went away).
func (t *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Errorf("Transport: WebSocket upgrade error: %v", err)
		return
	}

	t.clientsMutex.Lock()
	t.clients[conn] = true
	t.clientsMutex.Unlock()

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				t.clientsMutex.Lock()
				delete(t.clients, conn)
				t.clientsMutex.Unlock()
				conn.Close()
				return
			}
		}
	}()
}

// Send broadcasts the frame to all connected clients. Frames arriving
// faster than the rate limit are dropped, never queued.
func (t *WebSocketTransport) Send(frame analysis.Frame) error {
	now := time.Now()
	if now.Sub(t.lastSend) < t.minSendInterval {
		return nil
	}
	t.lastSend = now

	jsonData, err := json.Marshal(wsFrame{
		Type:       "bands",
		Bands:      frame.Bands,
		BassFast:   frame.BassFast,
		BassSmooth: frame.BassSmooth,
	})
	if err != nil {
		return err
	}

	t.clientsMutex.Lock()
	for client := range t.clients {
		if err := client.WriteMessage(websocket.TextMessage, jsonData); err != nil {
			client.Close()
			delete(t.clients, client)
		}
	}
	t.clientsMutex.Unlock()

	return nil
}

// Close disconnects all clients and shuts down the server. Idempotent.
func (t *WebSocketTransport) Close() error {
	t.clientsMutex.Lock()
	for client := range t.clients {
		client.Close()
		delete(t.clients, client)
	}
	t.clientsMutex.Unlock()

	return t.server.Close()
}
