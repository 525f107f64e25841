package views

import (
	"sort"

	"github.com/AdamBeresnev/cup-bracket-bot/internal/bracket"
	"github.com/google/uuid"
)

type BracketData struct {
	UpperRounds    map[int][]bracket.Match
	UpperRoundNums []int
	LowerRounds    map[int][]bracket.Match
	LowerRoundNums []int
	TeamMap        map[uuid.UUID]bracket.Team
}

// PrepareBracketData groups matches by bracket side and round. Lower bracket
// rounds are keyed by their depth, so round -2 ends up under 2.
func PrepareBracketData(teams []bracket.Team, matches []bracket.Match) BracketData {
	teamMap := make(map[uuid.UUID]bracket.Team)
	for _, t := range teams {
		teamMap[t.ID] = t
	}

	upper := make(map[int][]bracket.Match)
	lower := make(map[int][]bracket.Match)

	var upperNums []int
	var lowerNums []int

	for _, m := range matches {
		if m.LowerBracket() {
			depth := -m.Round
			if _, exists := lower[depth]; !exists {
				lowerNums = append(lowerNums, depth)
			}
			lower[depth] = append(lower[depth], m)
			continue
		}
		if _, exists := upper[m.Round]; !exists {
			upperNums = append(upperNums, m.Round)
		}
		upper[m.Round] = append(upper[m.Round], m)
	}

	sort.Ints(upperNums)
	sort.Ints(lowerNums)

	sortRounds(upper, upperNums)
	sortRounds(lower, lowerNums)

	return BracketData{
		UpperRounds:    upper,
		UpperRoundNums: upperNums,
		LowerRounds:    lower,
		LowerRoundNums: lowerNums,
		TeamMap:        teamMap,
	}
}

func sortRounds(rounds map[int][]bracket.Match, roundNums []int) {
	for _, r := range roundNums {
		sort.Slice(rounds[r], func(i, j int) bool {
			return rounds[r][i].RemoteMatchID < rounds[r][j].RemoteMatchID
		})
	}
}

// TeamName falls back to "TBD" for slots the remote service has not filled.
func (d BracketData) TeamName(id *uuid.UUID) string {
	if id == nil {
		return "TBD"
	}
	if t, ok := d.TeamMap[*id]; ok {
		return t.Name
	}
	return "?"
}
