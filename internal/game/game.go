// Package game holds the authoritative per-session quiz state machine.
//
// Each session is one actor: a single goroutine drains a mailbox of commands
// (player actions, timer ticks, grace expirations) and applies them in
// arrival order. Different sessions share nothing and run fully in parallel.
package game

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizarena/internal/errors"
	"github.com/mcdev12/quizarena/internal/leaderboard"
	"github.com/mcdev12/quizarena/internal/protocol"
	"github.com/mcdev12/quizarena/internal/quiz"
	"github.com/mcdev12/quizarena/internal/scoring"
	"github.com/mcdev12/quizarena/internal/timer"
)

// Game is one live session. All fields below cfg are owned by the run loop.
type Game struct {
	code   string
	quiz   *quiz.Quiz
	cfg    Config
	logger zerolog.Logger

	mailbox chan command
	ctx     context.Context
	cancel  context.CancelFunc

	timers *timer.Service

	phase     Phase
	current   int
	remaining int
	players   map[string]*PlayerState
	joinSeq   int
	hostID    string
}

// New creates a session in Lobby and starts its run loop. The caller owns
// the join code's uniqueness.
func New(code string, qz *quiz.Quiz, cfg Config) *Game {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	g := &Game{
		code:    code,
		quiz:    qz,
		cfg:     cfg,
		logger:  log.With().Str("game_code", code).Logger(),
		mailbox: make(chan command, mailboxSize),
		ctx:     ctx,
		cancel:  cancel,
		phase:   PhaseLobby,
		current: -1,
		players: make(map[string]*PlayerState),
	}
	g.timers = timer.NewService(cfg.Clock, func(ev timer.Event) {
		_ = g.post(timerCmd{ev: ev})
	})

	go g.run()
	return g
}

// Code returns the session's join code.
func (g *Game) Code() string {
	return g.code
}

// Close terminates the session. Pending and future commands are rejected.
func (g *Game) Close() {
	g.cancel()
}

// Done is closed once the session is terminal.
func (g *Game) Done() <-chan struct{} {
	return g.ctx.Done()
}

func (g *Game) run() {
	g.logger.Info().
		Str("quiz", g.quiz.Title).
		Int("questions", len(g.quiz.Questions)).
		Msg("game created")

	defer func() {
		g.timers.Stop()
		if g.cfg.OnClose != nil {
			g.cfg.OnClose(g.code)
		}
		g.logger.Info().Msg("game closed")
	}()

	for {
		select {
		case <-g.ctx.Done():
			return
		case cmd := <-g.mailbox:
			g.handle(cmd)
		}
	}
}

func (g *Game) handle(cmd command) {
	switch c := cmd.(type) {
	case joinCmd:
		g.handleJoin(c)
	case submitCmd:
		g.handleSubmit(c)
	case startCmd:
		g.handleStart(c)
	case advanceCmd:
		g.handleAdvance(c)
	case kickCmd:
		g.handleKick(c)
	case disconnectCmd:
		g.handleDisconnect(c)
	case timerCmd:
		g.handleTimer(c.ev)
	case reapCmd:
		g.handleReap(c)
	case snapshotCmd:
		c.reply <- g.snapshot(c.playerID)
	default:
		g.logger.Error().Msgf("unhandled command %T", cmd)
	}
}

func (g *Game) handleJoin(cmd joinCmd) {
	req := cmd.req

	if req.PlayerID != "" {
		if p, ok := g.players[req.PlayerID]; ok {
			if p.Kicked {
				cmd.reply <- joinReply{err: errors.New(errors.CodeKicked,
					errors.WithMessagef("player was removed from game %s", g.code))}
				return
			}

			p.Connected = true
			g.logger.Info().Str("player_id", p.ID).Msg("player reconnected")

			// Peers saw player-left on the drop; tell them the player is back.
			g.broadcast(protocol.MustEnvelope(protocol.TypePlayerJoined, protocol.PlayerJoined{
				Player: p.info(g.hostID),
			}))

			cmd.reply <- joinReply{player: p.info(g.hostID), state: g.snapshot(p.ID)}
			return
		}
		// Unknown claimed identity: fall through to a fresh join. The old
		// session it belonged to is gone, so issuing a new identity is the
		// only honest answer.
	}

	if req.PlayerName == "" {
		cmd.reply <- joinReply{err: errors.New(errors.CodeBadEnvelope,
			errors.WithMessagef("playerName is required"))}
		return
	}

	if g.phase != PhaseLobby {
		cmd.reply <- joinReply{err: errors.New(errors.CodeBadState,
			errors.WithMessagef("game %s has already started", g.code))}
		return
	}

	p := &PlayerState{
		ID:        uuid.New().String(),
		Name:      req.PlayerName,
		Avatar:    req.Avatar,
		JoinOrder: g.joinSeq,
		Connected: true,
		Answers:   make(map[string]Answer),
		Awards:    make(map[string]int),
	}
	g.joinSeq++
	g.players[p.ID] = p
	if g.hostID == "" {
		g.hostID = p.ID
	}

	g.logger.Info().
		Str("player_id", p.ID).
		Str("player_name", p.Name).
		Bool("host", p.ID == g.hostID).
		Int("players", len(g.players)).
		Msg("player joined")

	g.broadcast(protocol.MustEnvelope(protocol.TypePlayerJoined, protocol.PlayerJoined{
		Player: p.info(g.hostID),
	}))

	cmd.reply <- joinReply{player: p.info(g.hostID), state: g.snapshot(p.ID)}
}

func (g *Game) handleSubmit(cmd submitCmd) {
	p, err := g.actor(cmd.playerID)
	if err != nil {
		g.sendErr(cmd.playerID, err)
		return
	}

	if g.phase != PhaseQuestionActive {
		g.sendErr(p.ID, errors.New(errors.CodeWindowClosed,
			errors.WithMessagef("no question is accepting answers")))
		return
	}

	q := g.question()
	if cmd.req.QuestionID != q.ID {
		g.sendErr(p.ID, errors.New(errors.CodeUnknownQuestion,
			errors.WithMessagef("question %s is not active", cmd.req.QuestionID),
			errors.WithDetail("activeQuestionId", q.ID)))
		return
	}
	if !q.HasOption(cmd.req.Answer) {
		g.sendErr(p.ID, errors.New(errors.CodeUnknownOption,
			errors.WithMessagef("option %q does not exist on question %s", cmd.req.Answer, q.ID)))
		return
	}

	ack := protocol.MustEnvelope(protocol.TypeAnswerSubmitted, protocol.AnswerSubmitted{})

	if _, dup := p.Answers[q.ID]; dup {
		// Idempotent: a second submission gets the same ack as the first
		// and changes nothing.
		g.cfg.Broadcaster.SendToPlayer(g.code, p.ID, ack)
		return
	}

	p.Answers[q.ID] = Answer{
		PlayerID:   p.ID,
		QuestionID: q.ID,
		Label:      cmd.req.Answer,
		Remaining:  g.remaining,
	}

	g.logger.Debug().
		Str("player_id", p.ID).
		Str("question_id", q.ID).
		Int("remaining", g.remaining).
		Int("claimed_remaining", cmd.req.TimeRemaining).
		Msg("answer accepted")

	g.cfg.Broadcaster.SendToPlayer(g.code, p.ID, ack)

	if g.allAnswered() {
		g.closeWindow()
	}
}

func (g *Game) handleStart(cmd startCmd) {
	p, err := g.actor(cmd.playerID)
	if err != nil {
		g.sendErr(cmd.playerID, err)
		return
	}
	if p.ID != g.hostID {
		g.sendErr(p.ID, errors.New(errors.CodeNotHost,
			errors.WithMessagef("only the host can start the game")))
		return
	}
	if g.phase != PhaseLobby {
		g.sendErr(p.ID, errors.New(errors.CodeBadState,
			errors.WithMessagef("game is already running")))
		return
	}

	g.openQuestion(0)
}

func (g *Game) handleAdvance(cmd advanceCmd) {
	if cmd.auto {
		if g.phase != PhaseReveal || cmd.question != g.current {
			return // dwell timer from a superseded reveal
		}
	} else {
		p, err := g.actor(cmd.playerID)
		if err != nil {
			g.sendErr(cmd.playerID, err)
			return
		}
		if p.ID != g.hostID {
			g.sendErr(p.ID, errors.New(errors.CodeNotHost,
				errors.WithMessagef("only the host can advance the game")))
			return
		}
		if g.phase != PhaseReveal {
			g.sendErr(p.ID, errors.New(errors.CodeBadState,
				errors.WithMessagef("no revealed question to advance from")))
			return
		}
	}

	if g.current == len(g.quiz.Questions)-1 {
		g.end()
		return
	}

	g.openQuestion(g.current + 1)
}

func (g *Game) handleKick(cmd kickCmd) {
	p, err := g.actor(cmd.playerID)
	if err != nil {
		g.sendErr(cmd.playerID, err)
		return
	}
	if p.ID != g.hostID {
		g.sendErr(p.ID, errors.New(errors.CodeNotHost,
			errors.WithMessagef("only the host can kick players")))
		return
	}

	target, ok := g.players[cmd.targetID]
	if !ok {
		g.sendErr(p.ID, errors.New(errors.CodeUnknownPlayer,
			errors.WithMessagef("player %s is not in this game", cmd.targetID)))
		return
	}
	if target.Kicked {
		return
	}

	target.Kicked = true
	target.Connected = false

	g.logger.Info().
		Str("player_id", target.ID).
		Str("kicked_by", p.ID).
		Msg("player kicked")

	g.cfg.Broadcaster.SendToPlayer(g.code, target.ID, protocol.ErrorEnvelope(
		errors.New(errors.CodeKicked,
			errors.WithMessagef("you were removed from game %s", g.code))))
	g.broadcast(protocol.MustEnvelope(protocol.TypePlayerLeft, protocol.PlayerLeft{
		PlayerID: target.ID,
		Kicked:   true,
	}))

	if g.phase == PhaseQuestionActive && g.allAnswered() {
		g.closeWindow()
	}
	if !g.anyConnected() {
		g.scheduleAfter(g.cfg.EndGrace, reapCmd{})
	}
}

func (g *Game) handleDisconnect(cmd disconnectCmd) {
	p, ok := g.players[cmd.playerID]
	if !ok || !p.Connected {
		return
	}

	p.Connected = false
	g.logger.Info().Str("player_id", p.ID).Msg("player disconnected")

	g.broadcast(protocol.MustEnvelope(protocol.TypePlayerLeft, protocol.PlayerLeft{
		PlayerID: p.ID,
	}))

	if g.phase == PhaseQuestionActive && g.allAnswered() {
		g.closeWindow()
	}
	if !g.anyConnected() {
		g.scheduleAfter(g.cfg.EndGrace, reapCmd{})
	}
}

func (g *Game) handleTimer(ev timer.Event) {
	if g.phase != PhaseQuestionActive || ev.Question != g.current {
		return // stale event from a replaced countdown
	}

	if ev.Expired {
		g.closeWindow()
		return
	}

	g.remaining = ev.Remaining
	g.broadcast(protocol.MustEnvelope(protocol.TypeTimerUpdate, protocol.TimerUpdate{
		TimeRemaining: ev.Remaining,
	}))
}

func (g *Game) handleReap(cmd reapCmd) {
	if cmd.ended {
		g.cancel()
		return
	}
	if !g.anyConnected() {
		g.logger.Info().Msg("all players gone, tearing down")
		g.cancel()
	}
}

// openQuestion transitions to QuestionActive for the given index, broadcasts
// it and starts the authoritative countdown.
func (g *Game) openQuestion(idx int) {
	g.phase = PhaseQuestionActive
	g.current = idx
	q := g.question()
	g.remaining = q.BudgetSec

	if idx == 0 {
		g.broadcast(protocol.MustEnvelope(protocol.TypeGameStarted, protocol.GameStarted{
			FirstQuestion:  *q,
			QuestionNumber: 1,
			TotalQuestions: len(g.quiz.Questions),
		}))
	} else {
		g.broadcast(protocol.MustEnvelope(protocol.TypeNextQuestionOut, protocol.NextQuestion{
			Question:       *q,
			QuestionNumber: idx + 1,
		}))
	}

	g.timers.Start(idx, q.BudgetSec)

	g.logger.Info().
		Str("question_id", q.ID).
		Int("question", idx+1).
		Int("budget_sec", q.BudgetSec).
		Msg("question opened")
}

// closeWindow scores the current question for every player, answered or not,
// recomputes the leaderboard and broadcasts the reveal. Runs at most once per
// question: it is only reachable from QuestionActive and leaves Reveal.
func (g *Game) closeWindow() {
	g.timers.Stop()
	q := g.question()

	results := make([]protocol.PlayerResult, 0, len(g.players))
	for _, p := range g.roster() {
		ans, answered := p.Answers[q.ID]
		correct := answered && ans.Label == q.Correct
		points := 0
		if answered {
			points = scoring.Score(correct, ans.Remaining, q.BudgetSec)
		}
		p.Score += points
		p.Awards[q.ID] = points
		results = append(results, protocol.PlayerResult{
			PlayerID: p.ID,
			Correct:  correct,
			Points:   points,
			NewScore: p.Score,
		})
	}

	g.phase = PhaseReveal

	g.broadcast(protocol.MustEnvelope(protocol.TypeShowAnswer, protocol.ShowAnswer{
		CorrectAnswer: q.Correct,
		PlayerResults: results,
		Leaderboard:   g.leaderboard(),
	}))

	g.logger.Info().
		Str("question_id", q.ID).
		Int("answers", len(results)).
		Msg("question revealed")

	if g.cfg.AutoAdvance {
		g.scheduleAfter(g.cfg.RevealDwell, advanceCmd{auto: true, question: g.current})
	}
}

func (g *Game) end() {
	g.phase = PhaseEnded

	g.broadcast(protocol.MustEnvelope(protocol.TypeGameEnded, protocol.GameEnded{
		FinalLeaderboard: g.leaderboard(),
	}))

	g.logger.Info().Msg("game ended")

	g.scheduleAfter(g.cfg.EndGrace, reapCmd{ended: true})
}

// scheduleAfter posts cmd into the mailbox after d, unless the session
// terminates first.
func (g *Game) scheduleAfter(d time.Duration, cmd command) {
	t := g.cfg.Clock.NewTimer(d)
	go func() {
		defer t.Stop()
		select {
		case <-t.Chan():
			_ = g.post(cmd)
		case <-g.ctx.Done():
		}
	}()
}

func (g *Game) actor(playerID string) (*PlayerState, error) {
	p, ok := g.players[playerID]
	if !ok {
		return nil, errors.New(errors.CodeUnknownPlayer,
			errors.WithMessagef("player %s is not in game %s", playerID, g.code))
	}
	if p.Kicked {
		return nil, errors.New(errors.CodeKicked,
			errors.WithMessagef("player was removed from game %s", g.code))
	}
	return p, nil
}

// allAnswered reports whether every connected, non-kicked player has answered
// the current question. False while nobody is connected so an empty room
// never force-closes a window.
func (g *Game) allAnswered() bool {
	q := g.question()
	connected := 0
	for _, p := range g.players {
		if p.Kicked || !p.Connected {
			continue
		}
		connected++
		if _, ok := p.Answers[q.ID]; !ok {
			return false
		}
	}
	return connected > 0
}

func (g *Game) anyConnected() bool {
	for _, p := range g.players {
		if p.Connected && !p.Kicked {
			return true
		}
	}
	return false
}

// roster returns non-kicked players ordered by join time.
func (g *Game) roster() []*PlayerState {
	ps := make([]*PlayerState, 0, len(g.players))
	for _, p := range g.players {
		if p.Kicked {
			continue
		}
		ps = append(ps, p)
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i].JoinOrder < ps[j].JoinOrder })
	return ps
}

func (g *Game) leaderboard() protocol.Leaderboard {
	standings := make([]leaderboard.Standing, 0, len(g.players))
	for _, p := range g.players {
		if p.Kicked {
			continue
		}
		standings = append(standings, leaderboard.Standing{
			PlayerID:  p.ID,
			Name:      p.Name,
			Avatar:    p.Avatar,
			Score:     p.Score,
			JoinOrder: p.JoinOrder,
			Connected: p.Connected,
		})
	}
	return protocol.Leaderboard{Players: leaderboard.Compute(standings)}
}

// snapshot builds the authoritative resume state for one player (or an
// observer when playerID is empty).
func (g *Game) snapshot(playerID string) protocol.GameState {
	s := protocol.GameState{
		GameCode:       g.code,
		Phase:          string(g.phase),
		TotalQuestions: len(g.quiz.Questions),
		Leaderboard:    g.leaderboard(),
	}

	if g.current >= 0 {
		s.QuestionNumber = g.current + 1
	}
	if g.phase == PhaseQuestionActive || g.phase == PhaseReveal {
		q := *g.question()
		s.Question = &q
	}
	if g.phase == PhaseQuestionActive {
		s.TimeRemaining = g.remaining
	}
	if p, ok := g.players[playerID]; ok {
		s.You = p.info(g.hostID)
	}

	return s
}

func (g *Game) question() *quiz.Question {
	return &g.quiz.Questions[g.current]
}

func (g *Game) broadcast(env *protocol.Envelope) {
	g.cfg.Broadcaster.BroadcastToGame(g.code, env)
}

func (g *Game) sendErr(playerID string, err error) {
	g.logger.Debug().
		Str("player_id", playerID).
		Str("code", string(errors.Convert(err).Code)).
		Msg("rejected player action")
	g.cfg.Broadcaster.SendToPlayer(g.code, playerID, protocol.ErrorEnvelope(err))
}
