// Package leaderboard ranks players by cumulative score. Rankings are always
// recomputed from the full set of player standings rather than patched
// incrementally, so they can never drift from the true scores.
package leaderboard

import "sort"

// Standing is one player's input to the ranking.
type Standing struct {
	PlayerID  string
	Name      string
	Avatar    string
	Score     int
	JoinOrder int
	Connected bool
}

// Entry is one ranked row. Disconnected players keep their place; Connected
// lets clients grey them out.
type Entry struct {
	Rank      int    `json:"rank"`
	PlayerID  string `json:"playerId"`
	Player    string `json:"player"`
	Avatar    string `json:"avatar,omitempty"`
	Score     int    `json:"score"`
	Connected bool   `json:"connected"`
}

// Compute returns the ranking for the given standings: descending score,
// ties broken by earliest join. The input order is irrelevant; identical
// standings always produce an identical ranking.
func Compute(standings []Standing) []Entry {
	sorted := make([]Standing, len(standings))
	copy(sorted, standings)

	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].JoinOrder < sorted[j].JoinOrder
	})

	entries := make([]Entry, len(sorted))
	for i, s := range sorted {
		entries[i] = Entry{
			Rank:      i + 1,
			PlayerID:  s.PlayerID,
			Player:    s.Name,
			Avatar:    s.Avatar,
			Score:     s.Score,
			Connected: s.Connected,
		}
	}

	return entries
}
