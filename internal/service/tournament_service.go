package service

import (
	"context"
	"strings"

	"github.com/AdamBeresnev/cup-bracket-bot/internal/bracket"
	"github.com/AdamBeresnev/cup-bracket-bot/internal/store"
	"github.com/google/uuid"
)

// TournamentService covers registration: tournaments and their teams.
type TournamentService struct {
	store *store.TournamentStore
}

func NewTournamentService(store *store.TournamentStore) *TournamentService {
	return &TournamentService{store: store}
}

type TournamentData struct {
	Tournament  *bracket.Tournament
	Teams       []bracket.Team
	Matches     []bracket.Match
	NextMatchID *uuid.UUID
}

// ApprovedCount counts teams eligible for the bracket.
func (d *TournamentData) ApprovedCount() int {
	n := 0
	for i := range d.Teams {
		if d.Teams[i].Approved() {
			n++
		}
	}
	return n
}

// TeamName resolves a team id from the loaded teams.
func (d *TournamentData) TeamName(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	for i := range d.Teams {
		if d.Teams[i].ID == *id {
			return d.Teams[i].Name
		}
	}
	return ""
}

func (s *TournamentService) GetTournamentData(ctx context.Context, id uuid.UUID) (*TournamentData, error) {
	tournament, err := s.store.GetTournament(ctx, id)
	if err != nil {
		return nil, err
	}

	teams, err := s.store.ListTeams(ctx, id, nil)
	if err != nil {
		return nil, err
	}

	matches, err := s.store.ListMatches(ctx, id)
	if err != nil {
		return nil, err
	}

	var nextMatchID *uuid.UUID
	for _, m := range matches {
		if m.State != bracket.MatchComplete && m.Resolved() {
			id := m.ID
			nextMatchID = &id
			break
		}
	}

	return &TournamentData{
		Tournament:  tournament,
		Teams:       teams,
		Matches:     matches,
		NextMatchID: nextMatchID,
	}, nil
}

func (s *TournamentService) ListTournaments(ctx context.Context, statuses ...bracket.TournamentStatus) ([]bracket.Tournament, error) {
	return s.store.ListTournaments(ctx, statuses...)
}

func (s *TournamentService) CreateTournament(ctx context.Context, name string, format bracket.TournamentFormat) (*bracket.Tournament, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}

	t := &bracket.Tournament{
		Name:   name,
		Format: format,
		Status: bracket.TournamentRegistration,
	}
	if err := s.store.CreateTournament(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// RegisterTeam adds a pending team. Teams can join until the bracket starts;
// late teams reach Challonge through a participant sync.
func (s *TournamentService) RegisterTeam(ctx context.Context, tournamentID uuid.UUID, name string) (*bracket.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}

	t, err := s.store.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if t.Status != bracket.TournamentRegistration || t.BracketState() == bracket.StateStarted {
		return nil, ErrTournamentClosed
	}

	team := &bracket.Team{
		TournamentID: tournamentID,
		Name:         name,
		Status:       bracket.TeamPending,
	}
	if err := s.store.CreateTeam(ctx, team); err != nil {
		return nil, err
	}
	return team, nil
}

func (s *TournamentService) ApproveTeam(ctx context.Context, tournamentID uuid.UUID, name string) (*bracket.Team, error) {
	return s.setTeamStatus(ctx, tournamentID, name, bracket.TeamApproved)
}

func (s *TournamentService) RejectTeam(ctx context.Context, tournamentID uuid.UUID, name string) (*bracket.Team, error) {
	return s.setTeamStatus(ctx, tournamentID, name, bracket.TeamRejected)
}

func (s *TournamentService) setTeamStatus(ctx context.Context, tournamentID uuid.UUID, name string, status bracket.TeamStatus) (*bracket.Team, error) {
	t, err := s.store.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if t.Status != bracket.TournamentRegistration {
		return nil, ErrTournamentClosed
	}

	team, err := s.store.GetTeamByName(ctx, tournamentID, strings.TrimSpace(name))
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateTeamStatus(ctx, team.ID, status); err != nil {
		return nil, err
	}
	team.Status = status
	return team, nil
}

// MatchTeam finds the team called name inside the tournament of matchID.
func (s *TournamentService) MatchTeam(ctx context.Context, matchID uuid.UUID, name string) (*bracket.Team, error) {
	match, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	return s.store.GetTeamByName(ctx, match.TournamentID, strings.TrimSpace(name))
}
