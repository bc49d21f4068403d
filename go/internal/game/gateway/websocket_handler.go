package gateway

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/claimline/go/internal/models"
)

// WebSocketHandler serves the WebSocket endpoint and the small HTTP surface around it.
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	engine            Engine

	mu     sync.RWMutex
	extras map[string]func() any
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(cm *ConnectionManager, engine Engine) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		engine:            engine,
		extras:            make(map[string]func() any),
	}
}

// AddInfo adds a named section to GET /info, evaluated on every request.
func (h *WebSocketHandler) AddInfo(name string, fn func() any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.extras[name] = fn
}

// HandleConnection upgrades GET /ws. An optional ?name= becomes the default player name.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if _, err := h.connectionManager.UpgradeConnection(w, r, name); err != nil {
		// The upgrader has already written the HTTP error.
		log.Error().Err(err).Str("remote_addr", r.RemoteAddr).Msg("failed to upgrade WebSocket connection")
	}
}

// RoomsResponse is the body of GET /api/rooms.
type RoomsResponse struct {
	Rooms []models.RoomSummary `json:"rooms"`
}

// HandleListRooms handles GET /api/rooms
func (h *WebSocketHandler) HandleListRooms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, RoomsResponse{Rooms: h.engine.ListJoinableRooms()})
}

// InfoResponse is the body of GET /info.
type InfoResponse struct {
	Service string          `json:"service"`
	Version string          `json:"version"`
	Stats   ConnectionStats `json:"stats"`
	Extra   map[string]any  `json:"extra,omitempty"`
}

// HandleInfo handles GET /info
func (h *WebSocketHandler) HandleInfo(w http.ResponseWriter, r *http.Request) {
	resp := InfoResponse{
		Service: "claimline",
		Version: "1.0.0",
		Stats:   h.connectionManager.GetConnectionStats(),
	}
	h.mu.RLock()
	if len(h.extras) > 0 {
		resp.Extra = make(map[string]any, len(h.extras))
		for name, fn := range h.extras {
			resp.Extra[name] = fn()
		}
	}
	h.mu.RUnlock()
	writeJSON(w, resp)
}

// HandleHealth handles GET /health
func (h *WebSocketHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// RegisterRoutes registers WebSocket and HTTP routes with a mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.HandleConnection)
	mux.HandleFunc("/api/rooms", h.HandleListRooms)
	mux.HandleFunc("/info", h.HandleInfo)
	mux.HandleFunc("/health", h.HandleHealth)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
