package bracket

import (
	"time"

	"github.com/google/uuid"
)

type TournamentStatus string

const (
	TournamentRegistration TournamentStatus = "registration"
	TournamentInProgress   TournamentStatus = "in_progress"
	TournamentCompleted    TournamentStatus = "completed"
)

type TournamentFormat string

const (
	SingleElimination TournamentFormat = "single_elimination"
	DoubleElimination TournamentFormat = "double_elimination"
	RoundRobin        TournamentFormat = "round_robin"
)

// ParseFormat accepts the short forms used in bot commands as well as the stored values.
func ParseFormat(s string) (TournamentFormat, bool) {
	switch s {
	case "single", "se", string(SingleElimination):
		return SingleElimination, true
	case "double", "de", string(DoubleElimination):
		return DoubleElimination, true
	case "rr", "roundrobin", "round_robin":
		return RoundRobin, true
	}
	return "", false
}

// BracketState is the position of a tournament in the remote bracket lifecycle.
type BracketState string

const (
	StateNoBracket      BracketState = "NO_BRACKET"
	StateBracketCreated BracketState = "BRACKET_CREATED"
	StateStarted        BracketState = "STARTED"
	StateSynced         BracketState = "SYNCED"
)

type Tournament struct {
	ID                 uuid.UUID        `db:"id" json:"id"`
	Name               string           `db:"name" json:"name"`
	Format             TournamentFormat `db:"format" json:"format"`
	Status             TournamentStatus `db:"status" json:"status"`
	RemoteBracketID    *string          `db:"remote_bracket_id" json:"remote_bracket_id,omitempty"`
	RemoteURL          *string          `db:"remote_url" json:"remote_url,omitempty"`
	ManualStartPending bool             `db:"manual_start_pending" json:"manual_start_pending"`
	RemoteStartedAt    *time.Time       `db:"remote_started_at" json:"remote_started_at,omitempty"`
	CreatedAt          time.Time        `db:"created_at" json:"created_at"`
}

func (t *Tournament) HasBracket() bool {
	return t.RemoteBracketID != nil && *t.RemoteBracketID != ""
}

// BracketState derives the lifecycle state from the stored columns. A tournament
// that left registration has had its matches pulled at least once.
func (t *Tournament) BracketState() BracketState {
	switch {
	case !t.HasBracket():
		return StateNoBracket
	case t.Status != TournamentRegistration:
		return StateSynced
	case t.RemoteStartedAt != nil:
		return StateStarted
	default:
		return StateBracketCreated
	}
}

// Editable reports whether seeds may still change on the remote bracket.
func (t *Tournament) Editable() bool {
	return t.BracketState() == StateBracketCreated
}
