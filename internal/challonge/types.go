package challonge

import "strconv"

type TournamentType string

const (
	SingleElimination TournamentType = "single elimination"
	DoubleElimination TournamentType = "double elimination"
	RoundRobin        TournamentType = "round robin"
)

type TournamentState string

const (
	StatePending             TournamentState = "pending"
	StateCheckingIn          TournamentState = "checking_in"
	StateUnderway            TournamentState = "underway"
	StateGroupStagesUnderway TournamentState = "group_stages_underway"
	StateAwaitingReview      TournamentState = "awaiting_review"
	StateComplete            TournamentState = "complete"
)

// Started reports whether matches exist remotely.
func (s TournamentState) Started() bool {
	switch s {
	case StateUnderway, StateGroupStagesUnderway, StateAwaitingReview, StateComplete:
		return true
	}
	return false
}

type Tournament struct {
	ID                int64           `json:"id"`
	Name              string          `json:"name"`
	URL               string          `json:"url"`
	FullURL           string          `json:"full_challonge_url"`
	State             TournamentState `json:"state"`
	TournamentType    TournamentType  `json:"tournament_type"`
	Description       string          `json:"description"`
	ParticipantsCount int             `json:"participants_count"`
}

// RemoteID is the identifier stored locally and used in every later call.
func (t *Tournament) RemoteID() string {
	return strconv.FormatInt(t.ID, 10)
}

// PublicURL falls back to the slug when the full url is not part of the answer.
func (t *Tournament) PublicURL() string {
	if t.FullURL != "" {
		return t.FullURL
	}
	if t.URL != "" {
		return "https://challonge.com/" + t.URL
	}
	return ""
}

type Participant struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Seed        int    `json:"seed"`
}

func (p *Participant) Label() string {
	if p.Name != "" {
		return p.Name
	}
	return p.DisplayName
}

type MatchState string

const (
	MatchPending  MatchState = "pending"
	MatchOpen     MatchState = "open"
	MatchComplete MatchState = "complete"
)

// Match slots stay nil until the feeder matches are decided.
type Match struct {
	ID         int64      `json:"id"`
	Round      int        `json:"round"`
	Identifier string     `json:"identifier"`
	State      MatchState `json:"state"`
	Player1ID  *int64     `json:"player1_id"`
	Player2ID  *int64     `json:"player2_id"`
	WinnerID   *int64     `json:"winner_id"`
	LoserID    *int64     `json:"loser_id"`
	ScoresCSV  string     `json:"scores_csv"`
}

func (m *Match) BothSlotsFilled() bool {
	return m.Player1ID != nil && m.Player2ID != nil
}
