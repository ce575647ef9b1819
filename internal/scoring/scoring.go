// Package scoring computes vote tallies, round point awards, and the
// cumulative leaderboard. Everything here is a pure function over state
// passed in; nothing holds state of its own.
package scoring

import (
	"math"
	"sort"

	"github.com/prettylittleliars/backend/internal/game"
)

const basePoints = 1000

type Distribution struct {
	Truth int `json:"truth"`
	Lie   int `json:"lie"`
	Total int `json:"total"`
}

type LeaderboardEntry struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	TotalScore int    `json:"totalScore"`
	Rank       int    `json:"rank"`
}

// VoteDistribution partitions the round's votes into truth and lie counts.
func VoteDistribution(votes map[string]game.Vote) Distribution {
	var d Distribution
	for _, v := range votes {
		if v == game.VoteTruth {
			d.Truth++
		} else {
			d.Lie++
		}
		d.Total++
	}
	return d
}

// CalculateScores awards points for one story. Correct voters split nothing:
// each receives round(1000 * (1 - percentCorrect)), so a hard truth that
// only one player saw through pays near 1000 and a unanimous crowd pays 0.
// When nobody is correct everyone scores 0. Rounding is math.Round, so
// halves go away from zero.
func CalculateScores(votes map[string]game.Vote, correctAnswer bool) map[string]int {
	scores := map[string]int{}
	if len(votes) == 0 {
		return scores
	}

	correct := func(v game.Vote) bool {
		return (v == game.VoteTruth && correctAnswer) || (v == game.VoteLie && !correctAnswer)
	}

	correctCount := 0
	for _, v := range votes {
		if correct(v) {
			correctCount++
		}
	}

	if correctCount == 0 {
		for playerID := range votes {
			scores[playerID] = 0
		}
		return scores
	}

	percentCorrect := float64(correctCount) / float64(len(votes))
	points := int(math.Round(basePoints * (1 - percentCorrect)))

	for playerID, v := range votes {
		if correct(v) {
			scores[playerID] = points
		} else {
			scores[playerID] = 0
		}
	}
	return scores
}

// ApplyScores is the sole path through which TotalScore changes. Entries for
// players no longer in the session are skipped; the round scores replace the
// previous round's wholesale.
func ApplyScores(state *game.State, roundScores map[string]int) {
	for playerID, points := range roundScores {
		if p, ok := state.Players[playerID]; ok {
			p.TotalScore += points
		}
	}
	state.RoundScores = roundScores
}

// rankedPlayers sorts by score descending with insertion order preserved for
// ties (sort.SliceStable over a deterministically ordered base).
func rankedPlayers(state *game.State) []*game.Player {
	ids := make([]string, 0, len(state.Players))
	for id := range state.Players {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	players := make([]*game.Player, 0, len(ids))
	for _, id := range ids {
		players = append(players, state.Players[id])
	}
	sort.SliceStable(players, func(i, j int) bool {
		return players[i].TotalScore > players[j].TotalScore
	})
	return players
}

// Leaderboard returns the top limit players with dense 1-based ranks.
func Leaderboard(state *game.State, limit int) []LeaderboardEntry {
	players := rankedPlayers(state)

	entries := make([]LeaderboardEntry, 0, len(players))
	for i, p := range players {
		entries = append(entries, LeaderboardEntry{
			PlayerID:   p.ID,
			PlayerName: p.Name,
			TotalScore: p.TotalScore,
			Rank:       i + 1,
		})
	}
	if limit >= 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// PlayerRank returns a player's 1-based standing and the player count. An
// absent player ranks 0.
func PlayerRank(state *game.State, playerID string) (rank, total int) {
	players := rankedPlayers(state)
	for i, p := range players {
		if p.ID == playerID {
			return i + 1, len(players)
		}
	}
	return 0, len(players)
}
