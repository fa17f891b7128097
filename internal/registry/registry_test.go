package registry_test

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mcdev12/quizarena/internal/errors"
	"github.com/mcdev12/quizarena/internal/game"
	"github.com/mcdev12/quizarena/internal/protocol"
	"github.com/mcdev12/quizarena/internal/quiz"
	"github.com/mcdev12/quizarena/internal/registry"
)

type nopBroadcaster struct{}

func (nopBroadcaster) BroadcastToGame(string, *protocol.Envelope)      {}
func (nopBroadcaster) SendToPlayer(string, string, *protocol.Envelope) {}

func testQuiz() *quiz.Quiz {
	return &quiz.Quiz{
		Title: "capitals",
		Questions: []quiz.Question{
			{
				Prompt: "Capital of France?",
				Options: []quiz.Option{
					{Label: "a", Text: "Lyon"},
					{Label: "b", Text: "Paris"},
				},
				Correct: "b",
			},
		},
	}
}

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r := registry.New(registry.Config{Broadcaster: nopBroadcaster{}})
	t.Cleanup(r.Close)
	return r
}

func TestCreateAndLookup(t *testing.T) {
	r := newRegistry(t)

	g, err := r.Create(testQuiz())
	require.NoError(t, err)
	require.Len(t, g.Code(), 6)
	require.Equal(t, strings.ToUpper(g.Code()), g.Code())

	got, err := r.Lookup(g.Code())
	require.NoError(t, err)
	require.Same(t, g, got)
	require.Equal(t, 1, r.Count())
}

func TestLookupUnknownCode(t *testing.T) {
	r := newRegistry(t)

	_, err := r.Lookup("NOPE42")
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.CodeUnknownGame))
}

func TestCreateRejectsInvalidQuiz(t *testing.T) {
	r := newRegistry(t)

	_, err := r.Create(&quiz.Quiz{Title: "empty"})
	require.Error(t, err)
	require.Equal(t, 0, r.Count())
}

func TestClosedGameIsRemoved(t *testing.T) {
	r := newRegistry(t)

	g, err := r.Create(testQuiz())
	require.NoError(t, err)
	code := g.Code()

	g.Close()

	require.Eventually(t, func() bool {
		_, err := r.Lookup(code)
		return errors.Is(err, errors.CodeUnknownGame) && r.Count() == 0
	}, 2*time.Second, 5*time.Millisecond, "closed game must release its join code")
}

func TestCodesAreUnique(t *testing.T) {
	r := newRegistry(t)

	codes := make(map[string]bool)
	for i := 0; i < 50; i++ {
		g, err := r.Create(testQuiz())
		require.NoError(t, err)
		require.False(t, codes[g.Code()], "join code %s issued twice", g.Code())
		codes[g.Code()] = true
	}
	require.Equal(t, 50, r.Count())
}

func TestConcurrentCreateAndLookup(t *testing.T) {
	r := newRegistry(t)

	var wg sync.WaitGroup
	games := make([]*game.Game, 10)
	for i := range games {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			g, err := r.Create(testQuiz())
			require.NoError(t, err)
			games[i] = g
		}(i)
	}
	wg.Wait()

	for _, g := range games {
		got, err := r.Lookup(g.Code())
		require.NoError(t, err)
		require.Same(t, g, got)
	}
	require.Equal(t, len(games), r.Count())
}
