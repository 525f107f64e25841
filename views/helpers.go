package views

import (
	"fmt"
	"strings"

	"github.com/AdamBeresnev/cup-bracket-bot/internal/bracket"
	"github.com/AdamBeresnev/cup-bracket-bot/internal/service"
	"github.com/AdamBeresnev/cup-bracket-bot/internal/session"
	"github.com/a-h/templ"
)

// nl breaks a chat line. templ folds source line breaks into spaces.
const nl = "\n"

func formatLabel(f bracket.TournamentFormat) string {
	switch f {
	case bracket.DoubleElimination:
		return "double elimination"
	case bracket.RoundRobin:
		return "round robin"
	default:
		return "single elimination"
	}
}

func statusLabel(s bracket.TournamentStatus) string {
	return strings.ReplaceAll(string(s), "_", " ")
}

func stateLabel(s bracket.BracketState) string {
	switch s {
	case bracket.StateBracketCreated:
		return "bracket created, not started"
	case bracket.StateStarted:
		return "started, matches not pulled yet"
	case bracket.StateSynced:
		return "running"
	default:
		return "no bracket"
	}
}

func roundTitle(round int, lower bool, last bool) string {
	switch {
	case lower:
		return fmt.Sprintf("Lower round %d", round)
	case last:
		return "Final"
	default:
		return fmt.Sprintf("Round %d", round)
	}
}

func matchResult(bd BracketData, m bracket.Match) string {
	result := ""
	if m.Score != nil {
		result = " " + *m.Score
	}
	if m.WinnerTeamID != nil {
		result += ", winner " + bd.TeamName(m.WinnerTeamID)
	}
	return result
}

func scoreText(m *bracket.Match) string {
	if m == nil || m.Score == nil {
		return ""
	}
	return *m.Score
}

func pendingMarker(pending *session.SwapSelection, participantID int64) string {
	if pending != nil && pending.ParticipantID == participantID {
		return " ◀"
	}
	return ""
}

// ErrorText renders err for a chat user without leaking internals.
func ErrorText(err error) templ.Component {
	return Notice(service.UserMessage(err))
}
