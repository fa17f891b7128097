package game

import (
	"context"

	"github.com/mcdev12/quizarena/internal/errors"
	"github.com/mcdev12/quizarena/internal/protocol"
	"github.com/mcdev12/quizarena/internal/timer"
)

// command is a message into the session mailbox. Every state transition,
// including timer ticks and expiry, goes through the same single-consumer
// queue so exactly one event can close an answer window.
type command interface{}

type joinCmd struct {
	req   JoinRequest
	reply chan joinReply
}

type joinReply struct {
	player protocol.PlayerInfo
	state  protocol.GameState
	err    error
}

type submitCmd struct {
	playerID string
	req      protocol.SubmitAnswer
}

type startCmd struct {
	playerID string
}

type advanceCmd struct {
	playerID string
	// auto advances are tagged with the question they were scheduled for;
	// a stale one is dropped instead of advancing twice.
	auto     bool
	question int
}

type kickCmd struct {
	playerID string
	targetID string
}

type disconnectCmd struct {
	playerID string
}

type timerCmd struct {
	ev timer.Event
}

// reapCmd fires after the end-of-game or empty-room grace period.
type reapCmd struct {
	ended bool
}

type snapshotCmd struct {
	playerID string
	reply    chan protocol.GameState
}

// JoinRequest carries a (re)join attempt resolved by the gateway.
type JoinRequest struct {
	PlayerName string
	// PlayerID is the claimed identity on a reconnect, empty on first join.
	PlayerID string
	Avatar   string
}

// JoinReply is the successful join outcome: the issued (or rebound) identity
// plus the authoritative resume snapshot.
type JoinReply struct {
	Player protocol.PlayerInfo
	State  protocol.GameState
}

// Join joins or rejoins the session. Rejoining with a known identity rebinds
// to the existing PlayerState; score and answer history are untouched.
func (g *Game) Join(ctx context.Context, req JoinRequest) (*JoinReply, error) {
	cmd := joinCmd{req: req, reply: make(chan joinReply, 1)}
	if err := g.post(cmd); err != nil {
		return nil, err
	}

	select {
	case r := <-cmd.reply:
		if r.err != nil {
			return nil, r.err
		}
		return &JoinReply{Player: r.player, State: r.state}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-g.ctx.Done():
		return nil, errors.New(errors.CodeGameEnded)
	}
}

// Submit hands an answer to the session. The outcome (ack or typed error)
// reaches the player as an event; nothing here blocks on it.
func (g *Game) Submit(playerID string, req protocol.SubmitAnswer) {
	g.postOrReject(playerID, submitCmd{playerID: playerID, req: req})
}

// Start begins question zero. Host only.
func (g *Game) Start(playerID string) {
	g.postOrReject(playerID, startCmd{playerID: playerID})
}

// Advance moves Reveal to the next question or ends the game. Host only.
func (g *Game) Advance(playerID string) {
	g.postOrReject(playerID, advanceCmd{playerID: playerID})
}

// Kick terminates a player's membership. Host only.
func (g *Game) Kick(playerID, targetID string) {
	g.postOrReject(playerID, kickCmd{playerID: playerID, targetID: targetID})
}

// Disconnect marks a player's transport as gone. Accumulated score stays.
func (g *Game) Disconnect(playerID string) {
	_ = g.post(disconnectCmd{playerID: playerID})
}

// Snapshot returns the authoritative session state. playerID may be empty
// for observer views such as the HTTP state endpoint.
func (g *Game) Snapshot(ctx context.Context, playerID string) (*protocol.GameState, error) {
	cmd := snapshotCmd{playerID: playerID, reply: make(chan protocol.GameState, 1)}
	if err := g.post(cmd); err != nil {
		return nil, err
	}

	select {
	case s := <-cmd.reply:
		return &s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-g.ctx.Done():
		return nil, errors.New(errors.CodeGameEnded)
	}
}

func (g *Game) post(cmd command) error {
	select {
	case g.mailbox <- cmd:
		return nil
	case <-g.ctx.Done():
		return errors.New(errors.CodeGameEnded,
			errors.WithMessagef("game %s is no longer running", g.code))
	}
}

// postOrReject posts a fire-and-forget command; if the session is already
// terminal the typed rejection goes straight back to the player.
func (g *Game) postOrReject(playerID string, cmd command) {
	if err := g.post(cmd); err != nil {
		g.cfg.Broadcaster.SendToPlayer(g.code, playerID, protocol.ErrorEnvelope(err))
	}
}
