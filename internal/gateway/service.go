package gateway

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizarena/internal/quiz"
	"github.com/mcdev12/quizarena/internal/registry"
)

// Service ties the connection manager, the inbound dispatcher and the HTTP
// surface together.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	apiHandler        *APIHandler
	dispatcher        *Dispatcher
	relay             *Relay
}

// NewService wires the gateway around an already-constructed connection
// manager and registry. The manager must be the registry's Broadcaster.
func NewService(cm *ConnectionManager, reg *registry.Registry, quizzes map[string]*quiz.Quiz, relay *Relay) *Service {
	dispatcher := NewDispatcher(reg, cm)
	cm.SetHandler(dispatcher.Handle)
	cm.SetDisconnectHook(dispatcher.Disconnected)

	return &Service{
		connectionManager: cm,
		wsHandler:         NewWebSocketHandler(cm),
		apiHandler:        NewAPIHandler(reg, quizzes),
		dispatcher:        dispatcher,
		relay:             relay,
	}
}

// Start runs the broadcast loop until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	s.connectionManager.Start(ctx)

	if s.relay != nil {
		s.relay.Close()
	}
	log.Info().Msg("gateway service stopped")
}

// RegisterRoutes registers the WebSocket and HTTP API routes.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/game", s.wsHandler.HandleGameConnection)
	mux.HandleFunc("/ws/stats", s.wsHandler.HandleConnectionStats)
	mux.HandleFunc("POST /api/games", s.apiHandler.HandleCreateGame)
	mux.HandleFunc("GET /api/games/{code}", s.apiHandler.HandleGameState)
	log.Info().Msg("gateway routes registered")
}
