package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	errs "github.com/mcdev12/quizarena/internal/errors"
	"github.com/mcdev12/quizarena/internal/quiz"
	"github.com/mcdev12/quizarena/internal/registry"
)

// WebSocketHandler handles WebSocket upgrade requests for game connections.
type WebSocketHandler struct {
	connectionManager *ConnectionManager
}

func NewWebSocketHandler(cm *ConnectionManager) *WebSocketHandler {
	return &WebSocketHandler{connectionManager: cm}
}

// HandleGameConnection upgrades the request; joining a specific game happens
// over the socket via a join-game message.
func (h *WebSocketHandler) HandleGameConnection(w http.ResponseWriter, r *http.Request) {
	if err := h.connectionManager.UpgradeConnection(w, r); err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		http.Error(w, "failed to upgrade connection", http.StatusBadRequest)
	}
}

// HandleConnectionStats returns statistics about active connections.
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.connectionManager.GetStats())
}

// APIHandler exposes the session lifecycle over plain HTTP: creating games
// and reading authoritative state snapshots.
type APIHandler struct {
	registry *registry.Registry
	quizzes  map[string]*quiz.Quiz
}

func NewAPIHandler(reg *registry.Registry, quizzes map[string]*quiz.Quiz) *APIHandler {
	return &APIHandler{registry: reg, quizzes: quizzes}
}

type createGameRequest struct {
	// Quiz names a preloaded quiz; Questions supplies one inline.
	Quiz      string               `json:"quiz,omitempty"`
	Title     string               `json:"title,omitempty"`
	Questions []createGameQuestion `json:"questions,omitempty"`
}

// createGameQuestion is the inbound question shape. It exists because
// quiz.Question never serializes its correct label; the create request is the
// one place a client is allowed to send it.
type createGameQuestion struct {
	ID        string        `json:"id,omitempty"`
	Prompt    string        `json:"prompt"`
	Options   []quiz.Option `json:"options"`
	Correct   string        `json:"correct"`
	BudgetSec int           `json:"budgetSec,omitempty"`
}

func (q createGameQuestion) toQuestion() quiz.Question {
	return quiz.Question{
		ID:        q.ID,
		Prompt:    q.Prompt,
		Options:   q.Options,
		Correct:   q.Correct,
		BudgetSec: q.BudgetSec,
	}
}

type createGameResponse struct {
	GameCode string `json:"gameCode"`
}

// HandleCreateGame starts a new session and returns its join code.
func (h *APIHandler) HandleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req createGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.New(errs.CodeBadEnvelope,
			errs.WithMessagef("invalid request body"),
			errs.WithCause(err)))
		return
	}

	var qz *quiz.Quiz
	switch {
	case req.Quiz != "":
		loaded, ok := h.quizzes[req.Quiz]
		if !ok {
			writeError(w, errs.New(errs.CodeBadEnvelope,
				errs.WithMessagef("unknown quiz %q", req.Quiz)))
			return
		}
		qz = loaded
	case len(req.Questions) > 0:
		questions := make([]quiz.Question, len(req.Questions))
		for i, q := range req.Questions {
			questions[i] = q.toQuestion()
		}
		qz = &quiz.Quiz{Title: req.Title, Questions: questions}
	default:
		writeError(w, errs.New(errs.CodeBadEnvelope,
			errs.WithMessagef("either quiz or questions is required")))
		return
	}

	g, err := h.registry.Create(qz)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createGameResponse{GameCode: g.Code()})
}

// HandleGameState returns the authoritative observer snapshot for a game.
func (h *APIHandler) HandleGameState(w http.ResponseWriter, r *http.Request) {
	g, err := h.registry.Lookup(r.PathValue("code"))
	if err != nil {
		writeError(w, err)
		return
	}

	state, err := g.Snapshot(r.Context(), "")
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, state)
}

var code2http = map[errs.Code]int{
	errs.CodeBadEnvelope: http.StatusBadRequest,
	errs.CodeUnknownGame: http.StatusNotFound,
	errs.CodeGameEnded:   http.StatusGone,
}

func writeError(w http.ResponseWriter, err error) {
	e := errs.Convert(err)
	status, ok := code2http[e.Code]
	if !ok {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, e)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}
