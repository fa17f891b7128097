// Package protocol defines the wire messages exchanged with game clients.
// Every message in both directions is a {type, data} envelope.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/mcdev12/quizarena/internal/errors"
	"github.com/mcdev12/quizarena/internal/leaderboard"
	"github.com/mcdev12/quizarena/internal/quiz"
)

// MessageType discriminates envelope payloads.
type MessageType string

// Inbound message types (client to server).
const (
	TypeJoinGame     MessageType = "join-game"
	TypeSubmitAnswer MessageType = "submit-answer"
	TypeStartGame    MessageType = "start-game"
	TypeNextQuestion MessageType = "next-question"
	TypeKickPlayer   MessageType = "kick-player"
)

// Outbound message types (server to client).
const (
	TypeGameState       MessageType = "game-state"
	TypeGameStarted     MessageType = "game-started"
	TypeTimerUpdate     MessageType = "timer-update"
	TypeAnswerSubmitted MessageType = "answer-submitted"
	TypeShowAnswer      MessageType = "show-answer"
	TypeNextQuestionOut MessageType = "next-question"
	TypePlayerJoined    MessageType = "player-joined"
	TypePlayerLeft      MessageType = "player-left"
	TypeGameEnded       MessageType = "game-ended"
	TypeError           MessageType = "error"
)

// Envelope is the wire frame for every message in both directions.
type Envelope struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

// NewEnvelope wraps a payload into an envelope.
func NewEnvelope(t MessageType, payload any) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return &Envelope{Type: t, Data: data}, nil
}

// MustEnvelope is NewEnvelope for payload types the server controls.
func MustEnvelope(t MessageType, payload any) *Envelope {
	env, err := NewEnvelope(t, payload)
	if err != nil {
		panic(err)
	}
	return env
}

// Decode unmarshals the envelope payload into v.
func (e *Envelope) Decode(v any) error {
	if err := json.Unmarshal(e.Data, v); err != nil {
		return errors.New(errors.CodeBadEnvelope,
			errors.WithMessagef("malformed %s payload", e.Type),
			errors.WithCause(err),
		)
	}
	return nil
}

// JoinGame joins or rejoins a session. PlayerID is empty on a first join and
// carries the previously issued identity on a reconnect.
type JoinGame struct {
	GameCode   string `json:"gameCode"`
	PlayerName string `json:"playerName"`
	PlayerID   string `json:"playerId,omitempty"`
	Avatar     string `json:"avatar,omitempty"`
}

// SubmitAnswer submits a choice for the active question. TimeRemaining is the
// client-observed countdown and is advisory only; the server scores from its
// own timer.
type SubmitAnswer struct {
	QuestionID    string `json:"questionId"`
	Answer        string `json:"answer"`
	TimeRemaining int    `json:"timeRemaining"`
}

// KickPlayer removes a player from the session. Host only.
type KickPlayer struct {
	PlayerID string `json:"playerId"`
}

// PlayerInfo identifies a player to clients.
type PlayerInfo struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar,omitempty"`
	Score    int    `json:"score"`
	Host     bool   `json:"host,omitempty"`
}

// Leaderboard is the ranked projection sent with reveals and final results.
type Leaderboard struct {
	Players []leaderboard.Entry `json:"players"`
}

// GameState is the authoritative resume snapshot sent on every (re)join.
type GameState struct {
	GameCode       string         `json:"gameCode"`
	Phase          string         `json:"phase"`
	QuestionNumber int            `json:"questionNumber"`
	TotalQuestions int            `json:"totalQuestions"`
	Question       *quiz.Question `json:"question,omitempty"`
	TimeRemaining  int            `json:"timeRemaining"`
	You            PlayerInfo     `json:"you"`
	Leaderboard    Leaderboard    `json:"leaderboard"`
}

// GameStarted announces the first question.
type GameStarted struct {
	FirstQuestion  quiz.Question `json:"firstQuestion"`
	QuestionNumber int           `json:"questionNumber"`
	TotalQuestions int           `json:"totalQuestions"`
}

// TimerUpdate is the per-second authoritative countdown tick.
type TimerUpdate struct {
	TimeRemaining int `json:"timeRemaining"`
}

// AnswerSubmitted acknowledges that an answer was recorded. Points are not
// revealed until show-answer; the field stays zero in the acknowledgment and
// a duplicate submission receives the identical ack.
type AnswerSubmitted struct {
	Points int `json:"points"`
}

// PlayerResult is one player's outcome for a revealed question.
type PlayerResult struct {
	PlayerID string `json:"playerId"`
	Correct  bool   `json:"correct"`
	Points   int    `json:"points"`
	NewScore int    `json:"newScore"`
}

// ShowAnswer reveals the correct option, per-player results and the ranking.
type ShowAnswer struct {
	CorrectAnswer string         `json:"correctAnswer"`
	PlayerResults []PlayerResult `json:"playerResults"`
	Leaderboard   Leaderboard    `json:"leaderboard"`
}

// NextQuestion announces the next active question.
type NextQuestion struct {
	Question       quiz.Question `json:"question"`
	QuestionNumber int           `json:"questionNumber"`
}

// PlayerJoined notifies the lobby and host views.
type PlayerJoined struct {
	Player PlayerInfo `json:"player"`
}

// PlayerLeft notifies that a player disconnected or was kicked.
type PlayerLeft struct {
	PlayerID string `json:"playerId"`
	Kicked   bool   `json:"kicked,omitempty"`
}

// GameEnded carries the final ranking. The session tears down afterwards.
type GameEnded struct {
	FinalLeaderboard Leaderboard `json:"finalLeaderboard"`
}

// ErrorEnvelope wraps a typed error for the offending client only.
func ErrorEnvelope(err error) *Envelope {
	return MustEnvelope(TypeError, errors.Convert(err))
}
