package bracket

import (
	"time"

	"github.com/google/uuid"
)

type MatchState string

const (
	MatchPending  MatchState = "pending"
	MatchOpen     MatchState = "open"
	MatchComplete MatchState = "complete"
)

// Match mirrors one remote match. Team references stay nil until the remote
// service places a participant in the slot.
type Match struct {
	ID            uuid.UUID `db:"id" json:"id"`
	TournamentID  uuid.UUID `db:"tournament_id" json:"tournament_id"`
	RemoteMatchID int64     `db:"remote_match_id" json:"remote_match_id"`

	// Negative rounds belong to the lower bracket of a double elimination.
	Round int `db:"round" json:"round"`

	Team1ID      *uuid.UUID `db:"team1_id" json:"team1_id,omitempty"`
	Team2ID      *uuid.UUID `db:"team2_id" json:"team2_id,omitempty"`
	WinnerTeamID *uuid.UUID `db:"winner_team_id" json:"winner_team_id,omitempty"`
	Score        *string    `db:"score" json:"score,omitempty"`
	State        MatchState `db:"state" json:"state"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func (m *Match) Resolved() bool {
	return m.Team1ID != nil && m.Team2ID != nil
}

func (m *Match) LowerBracket() bool {
	return m.Round < 0
}

func (m *Match) HasTeam(id uuid.UUID) bool {
	return (m.Team1ID != nil && *m.Team1ID == id) || (m.Team2ID != nil && *m.Team2ID == id)
}
