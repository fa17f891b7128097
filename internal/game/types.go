package game

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/quizarena/internal/protocol"
)

// Phase is the session state machine position.
type Phase string

const (
	PhaseLobby          Phase = "LOBBY"
	PhaseQuestionActive Phase = "QUESTION_ACTIVE"
	PhaseReveal         Phase = "REVEAL"
	PhaseEnded          Phase = "ENDED"
)

// Broadcaster delivers outbound events. Implementations must be
// fire-and-forget per connection: a slow or dead client must not stall
// delivery to the rest of the room nor the session's own progression.
type Broadcaster interface {
	BroadcastToGame(code string, env *protocol.Envelope)
	SendToPlayer(code, playerID string, env *protocol.Envelope)
}

// Answer is one accepted submission. Immutable once recorded; at most one
// exists per (player, question), enforced at acceptance time.
type Answer struct {
	PlayerID   string
	QuestionID string
	Label      string
	// Remaining is the server-observed seconds left at acceptance. Scoring
	// uses this value, never the client-reported countdown.
	Remaining int
}

// PlayerState is a player's standing within one session. All fields are
// owned by the session's run loop; nothing outside it reads or writes them.
type PlayerState struct {
	ID        string
	Name      string
	Avatar    string
	Score     int
	JoinOrder int
	Connected bool
	Kicked    bool

	// Answers and Awards are keyed by question ID. Awards records the points
	// granted at each reveal, including zero-point rows for non-answers, so
	// the cumulative score is always reproducible as their sum.
	Answers map[string]Answer
	Awards  map[string]int
}

func (p *PlayerState) info(hostID string) protocol.PlayerInfo {
	return protocol.PlayerInfo{
		PlayerID: p.ID,
		Name:     p.Name,
		Avatar:   p.Avatar,
		Score:    p.Score,
		Host:     p.ID == hostID,
	}
}

// Config holds per-session settings and collaborators.
type Config struct {
	Clock       clockwork.Clock
	Broadcaster Broadcaster

	// AutoAdvance moves Reveal to the next question after RevealDwell
	// without waiting for the host.
	AutoAdvance bool
	RevealDwell time.Duration

	// EndGrace is how long an ended or fully disconnected session lingers
	// before teardown.
	EndGrace time.Duration

	// OnClose is invoked once, after the run loop has stopped, so the
	// registry can drop the join code.
	OnClose func(code string)
}

const (
	defaultRevealDwell = 5 * time.Second
	defaultEndGrace    = 30 * time.Second

	mailboxSize = 256
)

func (c Config) withDefaults() Config {
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.RevealDwell <= 0 {
		c.RevealDwell = defaultRevealDwell
	}
	if c.EndGrace <= 0 {
		c.EndGrace = defaultEndGrace
	}
	return c
}
