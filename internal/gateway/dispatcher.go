package gateway

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizarena/internal/errors"
	"github.com/mcdev12/quizarena/internal/game"
	"github.com/mcdev12/quizarena/internal/protocol"
	"github.com/mcdev12/quizarena/internal/registry"
)

const joinTimeout = 5 * time.Second

// Dispatcher resolves inbound envelopes to the right game actor. Everything
// except join-game requires the connection to have (re)joined first, since
// per-connection context is lost across a transport drop.
type Dispatcher struct {
	registry *registry.Registry
	manager  *ConnectionManager
}

func NewDispatcher(reg *registry.Registry, cm *ConnectionManager) *Dispatcher {
	return &Dispatcher{registry: reg, manager: cm}
}

// Handle is the ConnectionManager's MessageHandler.
func (d *Dispatcher) Handle(conn *Connection, env *protocol.Envelope) {
	if env.Type == protocol.TypeJoinGame {
		d.handleJoin(conn, env)
		return
	}

	gameCode, playerID, joined := d.manager.Binding(conn)
	if !joined {
		conn.SendError(errors.New(errors.CodeNotJoined,
			errors.WithMessagef("join a game before sending %s", env.Type)))
		return
	}

	g, err := d.registry.Lookup(gameCode)
	if err != nil {
		conn.SendError(err)
		return
	}

	switch env.Type {
	case protocol.TypeSubmitAnswer:
		var req protocol.SubmitAnswer
		if err := env.Decode(&req); err != nil {
			conn.SendError(err)
			return
		}
		g.Submit(playerID, req)

	case protocol.TypeStartGame:
		g.Start(playerID)

	case protocol.TypeNextQuestion:
		g.Advance(playerID)

	case protocol.TypeKickPlayer:
		var req protocol.KickPlayer
		if err := env.Decode(&req); err != nil {
			conn.SendError(err)
			return
		}
		g.Kick(playerID, req.PlayerID)

	default:
		conn.SendError(errors.New(errors.CodeUnknownType,
			errors.WithMessagef("unknown message type %q", env.Type)))
	}
}

func (d *Dispatcher) handleJoin(conn *Connection, env *protocol.Envelope) {
	var req protocol.JoinGame
	if err := env.Decode(&req); err != nil {
		conn.SendError(err)
		return
	}

	g, err := d.registry.Lookup(req.GameCode)
	if err != nil {
		conn.SendError(err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), joinTimeout)
	defer cancel()

	reply, err := g.Join(ctx, game.JoinRequest{
		PlayerName: req.PlayerName,
		PlayerID:   req.PlayerID,
		Avatar:     req.Avatar,
	})
	if err != nil {
		conn.SendError(err)
		return
	}

	// Bind before replying so the snapshot is the first room event the
	// client sees on this connection.
	d.manager.BindPlayer(conn, req.GameCode, reply.Player.PlayerID)
	conn.SendEnvelope(protocol.MustEnvelope(protocol.TypeGameState, reply.State))
}

// Disconnected is the ConnectionManager's disconnect hook.
func (d *Dispatcher) Disconnected(gameCode, playerID string) {
	g, err := d.registry.Lookup(gameCode)
	if err != nil {
		// The game tore down first; nothing left to notify.
		log.Debug().
			Str("game_code", gameCode).
			Str("player_id", playerID).
			Msg("disconnect for missing game")
		return
	}

	g.Disconnect(playerID)
}
