package leaderboard_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mcdev12/quizarena/internal/leaderboard"
)

func TestComputeOrdersByScoreDescending(t *testing.T) {
	entries := leaderboard.Compute([]leaderboard.Standing{
		{PlayerID: "p1", Name: "ann", Score: 100, JoinOrder: 0},
		{PlayerID: "p2", Name: "bob", Score: 300, JoinOrder: 1},
		{PlayerID: "p3", Name: "cat", Score: 200, JoinOrder: 2},
	})

	require.Len(t, entries, 3)
	require.Equal(t, "p2", entries[0].PlayerID)
	require.Equal(t, "p3", entries[1].PlayerID)
	require.Equal(t, "p1", entries[2].PlayerID)
	for i, e := range entries {
		require.Equal(t, i+1, e.Rank)
	}
}

func TestComputeBreaksTiesByEarliestJoin(t *testing.T) {
	entries := leaderboard.Compute([]leaderboard.Standing{
		{PlayerID: "late", Score: 150, JoinOrder: 5},
		{PlayerID: "early", Score: 150, JoinOrder: 1},
	})

	require.Equal(t, "early", entries[0].PlayerID)
	require.Equal(t, 1, entries[0].Rank)
	require.Equal(t, "late", entries[1].PlayerID)
	require.Equal(t, 2, entries[1].Rank)
}

func TestComputeDeterministicRegardlessOfInputOrder(t *testing.T) {
	standings := []leaderboard.Standing{
		{PlayerID: "p1", Score: 100, JoinOrder: 0},
		{PlayerID: "p2", Score: 100, JoinOrder: 1},
		{PlayerID: "p3", Score: 250, JoinOrder: 2},
		{PlayerID: "p4", Score: 0, JoinOrder: 3},
		{PlayerID: "p5", Score: 250, JoinOrder: 4},
	}

	want := leaderboard.Compute(standings)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		shuffled := make([]leaderboard.Standing, len(standings))
		copy(shuffled, standings)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})

		require.Equal(t, want, leaderboard.Compute(shuffled))
	}
}

func TestComputeKeepsDisconnectedPlayers(t *testing.T) {
	entries := leaderboard.Compute([]leaderboard.Standing{
		{PlayerID: "gone", Score: 500, JoinOrder: 0, Connected: false},
		{PlayerID: "here", Score: 100, JoinOrder: 1, Connected: true},
	})

	require.Equal(t, "gone", entries[0].PlayerID)
	require.False(t, entries[0].Connected)
	require.Equal(t, 500, entries[0].Score)
}
