package quiz_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mcdev12/quizarena/internal/quiz"
)

func validQuiz() *quiz.Quiz {
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

func TestValidate(t *testing.T) {
	t.Run("valid quiz passes", func(t *testing.T) {
		require.NoError(t, validQuiz().Validate())
	})

	t.Run("empty quiz rejected", func(t *testing.T) {
		require.Error(t, (&quiz.Quiz{Title: "empty"}).Validate())
	})

	t.Run("defaults applied", func(t *testing.T) {
		qz := validQuiz()
		qz.Questions[0].ID = ""
		qz.Questions[0].BudgetSec = 0

		require.NoError(t, qz.Validate())
		require.Equal(t, "q1", qz.Questions[0].ID)
		require.Equal(t, 20, qz.Questions[0].BudgetSec)
	})

	t.Run("correct label must be an option", func(t *testing.T) {
		qz := validQuiz()
		qz.Questions[0].Correct = "z"
		require.Error(t, qz.Validate())
	})

	t.Run("too few options rejected", func(t *testing.T) {
		qz := validQuiz()
		qz.Questions[0].Options = qz.Questions[0].Options[:1]
		qz.Questions[0].Correct = "a"
		require.Error(t, qz.Validate())
	})
}

func TestLoadFile(t *testing.T) {
	const content = `
title: capitals
questions:
  - id: q1
    prompt: Capital of France?
    options:
      - {label: a, text: Lyon}
      - {label: b, text: Paris}
    correct: b
    budget_sec: 15
`

	path := filepath.Join(t.TempDir(), "capitals.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	qz, err := quiz.LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, "capitals", qz.Title)
	require.Len(t, qz.Questions, 1)
	require.Equal(t, 15, qz.Questions[0].BudgetSec)
	require.True(t, qz.Questions[0].HasOption("a"))
	require.False(t, qz.Questions[0].HasOption("z"))
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	const content = `
title: one
questions:
  - prompt: "1+1?"
    options:
      - {label: a, text: "2"}
      - {label: b, text: "3"}
    correct: a
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "one.yaml"), []byte(content), 0o644))

	quizzes, err := quiz.LoadDir(dir)
	require.NoError(t, err)
	require.Contains(t, quizzes, "one")
	require.Equal(t, "one", quizzes["one"].Title)
}
