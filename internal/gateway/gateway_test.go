package gateway_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	errs "github.com/mcdev12/quizarena/internal/errors"
	"github.com/mcdev12/quizarena/internal/gateway"
	"github.com/mcdev12/quizarena/internal/protocol"
	"github.com/mcdev12/quizarena/internal/quiz"
	"github.com/mcdev12/quizarena/internal/registry"
)

func testQuiz() *quiz.Quiz {
	return &quiz.Quiz{
		Title: "capitals",
		Questions: []quiz.Question{
			{
				ID:     "q1",
				Prompt: "Capital of France?",
				Options: []quiz.Option{
					{Label: "a", Text: "Lyon"},
					{Label: "b", Text: "Paris"},
				},
				Correct:   "b",
				BudgetSec: 20,
			},
		},
	}
}

type testGateway struct {
	manager  *gateway.ConnectionManager
	registry *registry.Registry
	server   *httptest.Server
}

func newTestGateway(t *testing.T) *testGateway {
	t.Helper()

	manager := gateway.NewConnectionManager(gateway.DefaultConnectionConfig(), nil)
	reg := registry.New(registry.Config{Broadcaster: manager})
	t.Cleanup(reg.Close)

	svc := gateway.NewService(manager, reg, map[string]*quiz.Quiz{"capitals": testQuiz()}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go svc.Start(ctx)

	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &testGateway{manager: manager, registry: reg, server: server}
}

func (tg *testGateway) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(tg.server.URL, "http") + "/ws/game"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readEnvelope reads frames until one of the wanted type arrives. Room
// broadcasts (player-joined and friends) may interleave with direct replies.
func readEnvelope(t *testing.T, conn *websocket.Conn, want protocol.MessageType) *protocol.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var env protocol.Envelope
		require.NoError(t, conn.ReadJSON(&env))
		if env.Type == want {
			return &env
		}
	}
}

func readError(t *testing.T, conn *websocket.Conn, code errs.Code) {
	t.Helper()
	env := readEnvelope(t, conn, protocol.TypeError)
	var e errs.Error
	require.NoError(t, env.Decode(&e))
	require.Equal(t, code, e.Code)
}

func TestCreateGameWithInlineQuestions(t *testing.T) {
	tg := newTestGateway(t)

	const body = `{
		"title": "inline",
		"questions": [{
			"prompt": "Capital of France?",
			"options": [{"label": "a", "text": "Lyon"}, {"label": "b", "text": "Paris"}],
			"correct": "b",
			"budgetSec": 15
		}]
	}`

	resp, err := http.Post(tg.server.URL+"/api/games", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		GameCode string `json:"gameCode"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.Len(t, created.GameCode, 6)

	// The inline correct label must survive the request decode; validation
	// rejects a question whose correct label is missing, so a registered game
	// means the answer key made it through.
	g, err := tg.registry.Lookup(created.GameCode)
	require.NoError(t, err)

	state, err := g.Snapshot(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, 1, state.TotalQuestions)
	require.Equal(t, "LOBBY", state.Phase)
}

func TestCreateGameByName(t *testing.T) {
	tg := newTestGateway(t)

	resp, err := http.Post(tg.server.URL+"/api/games", "application/json",
		strings.NewReader(`{"quiz": "capitals"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestCreateGameRejectsBadRequests(t *testing.T) {
	tg := newTestGateway(t)

	tests := []struct {
		name string
		body string
	}{
		{"unknown named quiz", `{"quiz": "nope"}`},
		{"neither quiz nor questions", `{}`},
		{"not json", `not json`},
		{
			"inline correct label not an option",
			`{"questions": [{"prompt": "?", "options": [{"label": "a", "text": "1"}, {"label": "b", "text": "2"}], "correct": "z"}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(tg.server.URL+"/api/games", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var e errs.Error
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
			require.Equal(t, errs.CodeBadEnvelope, e.Code)
		})
	}
}

func TestGameStateEndpoint(t *testing.T) {
	tg := newTestGateway(t)

	g, err := tg.registry.Create(testQuiz())
	require.NoError(t, err)

	resp, err := http.Get(tg.server.URL + "/api/games/" + g.Code())
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var state protocol.GameState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	require.Equal(t, g.Code(), state.GameCode)
	require.Equal(t, "LOBBY", state.Phase)
}

func TestGameStateUnknownCode(t *testing.T) {
	tg := newTestGateway(t)

	resp, err := http.Get(tg.server.URL + "/api/games/NOPE42")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestActionBeforeJoinIsForcedToRejoin(t *testing.T) {
	tg := newTestGateway(t)
	conn := tg.dial(t)

	require.NoError(t, conn.WriteJSON(protocol.MustEnvelope(protocol.TypeStartGame, struct{}{})))
	readError(t, conn, errs.CodeNotJoined)
}

func TestMalformedFrameRejected(t *testing.T) {
	tg := newTestGateway(t)
	conn := tg.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not an envelope")))
	readError(t, conn, errs.CodeBadEnvelope)
}

func TestJoinOverWebSocket(t *testing.T) {
	tg := newTestGateway(t)

	g, err := tg.registry.Create(testQuiz())
	require.NoError(t, err)

	conn := tg.dial(t)
	require.NoError(t, conn.WriteJSON(protocol.MustEnvelope(protocol.TypeJoinGame, protocol.JoinGame{
		GameCode:   g.Code(),
		PlayerName: "P1",
	})))

	env := readEnvelope(t, conn, protocol.TypeGameState)
	var state protocol.GameState
	require.NoError(t, env.Decode(&state))
	require.Equal(t, g.Code(), state.GameCode)
	require.Equal(t, "LOBBY", state.Phase)
	require.Equal(t, "P1", state.You.Name)
	require.True(t, state.You.Host)

	// Joining an unknown code on the same connection fails cleanly.
	require.NoError(t, conn.WriteJSON(protocol.MustEnvelope(protocol.TypeJoinGame, protocol.JoinGame{
		GameCode:   "NOPE42",
		PlayerName: "P1",
	})))
	readError(t, conn, errs.CodeUnknownGame)

	// A joined connection sending an unknown type gets the protocol error.
	require.NoError(t, conn.WriteJSON(&protocol.Envelope{
		Type: protocol.MessageType("dance"),
		Data: json.RawMessage(`{}`),
	}))
	readError(t, conn, errs.CodeUnknownType)
}

func TestBroadcastAfterDisconnectIsHarmless(t *testing.T) {
	tg := newTestGateway(t)

	g, err := tg.registry.Create(testQuiz())
	require.NoError(t, err)

	conn := tg.dial(t)
	require.NoError(t, conn.WriteJSON(protocol.MustEnvelope(protocol.TypeJoinGame, protocol.JoinGame{
		GameCode:   g.Code(),
		PlayerName: "P1",
	})))
	readEnvelope(t, conn, protocol.TypeGameState)
	require.Equal(t, 1, tg.manager.GetStats().TotalConnections)

	conn.Close()
	require.Eventually(t, func() bool {
		return tg.manager.GetStats().TotalConnections == 0
	}, 2*time.Second, 5*time.Millisecond, "dropped connection must unregister")

	// Broadcasts racing the unregister must not blow up the loop; they are
	// simply delivered to nobody.
	tg.manager.BroadcastToGame(g.Code(), protocol.MustEnvelope(protocol.TypeTimerUpdate, protocol.TimerUpdate{
		TimeRemaining: 5,
	}))
	tg.manager.SendToPlayer(g.Code(), "gone", protocol.MustEnvelope(protocol.TypeTimerUpdate, protocol.TimerUpdate{
		TimeRemaining: 5,
	}))
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 0, tg.manager.GetStats().TotalConnections)
}
