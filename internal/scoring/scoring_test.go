package scoring_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mcdev12/quizarena/internal/scoring"
)

func TestScore(t *testing.T) {
	tests := map[string]struct {
		correct   bool
		remaining int
		budget    int
		want      int
	}{
		"incorrect answers score zero":          {correct: false, remaining: 19, budget: 20, want: 0},
		"instant correct answer gets max bonus": {correct: true, remaining: 20, budget: 20, want: 200},
		"last-second correct answer gets base":  {correct: true, remaining: 0, budget: 20, want: 100},
		"mid-window correct answer":             {correct: true, remaining: 15, budget: 20, want: 175},
		"negative remaining clamps to base":     {correct: true, remaining: -3, budget: 20, want: 100},
		"remaining above budget clamps to max":  {correct: true, remaining: 25, budget: 20, want: 200},
		"zero budget scores zero":               {correct: true, remaining: 5, budget: 0, want: 0},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, tt.want, scoring.Score(tt.correct, tt.remaining, tt.budget))
		})
	}
}

func TestScoreSpeedBonusMonotonic(t *testing.T) {
	const budget = 20

	prev := scoring.Score(true, budget, budget)
	for remaining := budget - 1; remaining >= 0; remaining-- {
		got := scoring.Score(true, remaining, budget)
		require.LessOrEqual(t, got, prev,
			"answering later must never score more, remaining=%d", remaining)
		prev = got
	}
}

func TestScoreDeterministic(t *testing.T) {
	for i := 0; i < 100; i++ {
		require.Equal(t, scoring.Score(true, 7, 20), scoring.Score(true, 7, 20))
	}
}
