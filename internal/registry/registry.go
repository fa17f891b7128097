// Package registry owns the set of live games, keyed by join code, and is
// the only state shared between sessions.
package registry

import (
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizarena/internal/errors"
	"github.com/mcdev12/quizarena/internal/game"
	"github.com/mcdev12/quizarena/internal/quiz"
)

// codeAlphabet avoids characters players confuse when typing a join code.
const (
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength   = 6
)

// Config holds collaborators handed to every created game.
type Config struct {
	Clock       clockwork.Clock
	Broadcaster game.Broadcaster
	Game        game.Config
}

// Registry maps join codes to running game actors. Creation, lookup and
// removal race with high-frequency joins, so the map is guarded here and
// nowhere else.
type Registry struct {
	cfg Config

	mu    sync.RWMutex
	games map[string]*game.Game
}

func New(cfg Config) *Registry {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Registry{
		cfg:   cfg,
		games: make(map[string]*game.Game),
	}
}

// Create starts a new session for the given quiz and returns it with its
// join code.
func (r *Registry) Create(qz *quiz.Quiz) (*game.Game, error) {
	if err := qz.Validate(); err != nil {
		return nil, errors.New(errors.CodeBadEnvelope,
			errors.WithMessagef("invalid quiz: %v", err),
			errors.WithCause(err))
	}

	gameCfg := r.cfg.Game
	gameCfg.Clock = r.cfg.Clock
	gameCfg.Broadcaster = r.cfg.Broadcaster
	gameCfg.OnClose = r.remove

	r.mu.Lock()
	defer r.mu.Unlock()

	code, err := r.newCodeLocked()
	if err != nil {
		return nil, err
	}

	g := game.New(code, qz, gameCfg)
	r.games[code] = g

	log.Info().
		Str("game_code", code).
		Int("active_games", len(r.games)).
		Msg("game registered")

	return g, nil
}

// Lookup resolves a join code to its session.
func (r *Registry) Lookup(code string) (*game.Game, error) {
	r.mu.RLock()
	g, ok := r.games[code]
	r.mu.RUnlock()

	if !ok {
		return nil, errors.New(errors.CodeUnknownGame,
			errors.WithMessagef("no game with code %s", code))
	}
	return g, nil
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.games)
}

// Close tears down every live session.
func (r *Registry) Close() {
	r.mu.RLock()
	games := make([]*game.Game, 0, len(r.games))
	for _, g := range r.games {
		games = append(games, g)
	}
	r.mu.RUnlock()

	for _, g := range games {
		g.Close()
	}
}

// remove is handed to each game as its OnClose hook.
func (r *Registry) remove(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.games[code]; ok {
		delete(r.games, code)
		log.Info().
			Str("game_code", code).
			Int("active_games", len(r.games)).
			Msg("game removed")
	}
}

func (r *Registry) newCodeLocked() (string, error) {
	for attempt := 0; attempt < 10; attempt++ {
		buf := make([]byte, codeLength)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generate join code: %w", err)
		}
		for i, b := range buf {
			buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
		}
		code := string(buf)
		if _, taken := r.games[code]; !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not find a free join code")
}
