package gateway

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Service ties the connection manager, the command dispatcher and the HTTP routes together.
type Service struct {
	connectionManager *ConnectionManager
	dispatcher        *Dispatcher
	wsHandler         *WebSocketHandler
}

// NewService wires cm to engine. The engine should already broadcast through cm (directly or
// wrapped), so its events reach the connections cm owns.
func NewService(cm *ConnectionManager, engine Engine) *Service {
	dispatcher := NewDispatcher(engine, cm)
	cm.SetHandler(dispatcher)
	return &Service{
		connectionManager: cm,
		dispatcher:        dispatcher,
		wsHandler:         NewWebSocketHandler(cm, engine),
	}
}

// Start runs the connection manager until ctx is done.
func (s *Service) Start(ctx context.Context) {
	log.Info().Msg("starting game gateway service")
	s.connectionManager.Start(ctx)
	log.Info().Msg("game gateway service stopped")
}

// RegisterRoutes registers the WebSocket and HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	log.Info().Msg("game gateway routes registered")
}

// AddInfo exposes fn's result under name in GET /info.
func (s *Service) AddInfo(name string, fn func() any) {
	s.wsHandler.AddInfo(name, fn)
}

// Stats returns statistics about live connections.
func (s *Service) Stats() ConnectionStats {
	return s.connectionManager.GetConnectionStats()
}
