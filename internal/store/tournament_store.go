package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/AdamBeresnev/cup-bracket-bot/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

var (
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrTeamNotFound       = errors.New("team not found")
	ErrMatchNotFound      = errors.New("match not found")
	ErrTeamNameConflict   = errors.New("team name already registered in this tournament")
	ErrRemoteBracketSet   = errors.New("remote bracket already set for tournament")
)

const (
	tournamentColumns = `id, name, format, status, remote_bracket_id, remote_url, manual_start_pending, remote_started_at, created_at`
	teamColumns       = `id, tournament_id, name, status, created_at`
	matchColumns      = `id, tournament_id, remote_match_id, round, team1_id, team2_id, winner_team_id, score, state, created_at, updated_at`

	createTournamentQuery = `
		INSERT INTO tournaments (id, name, format, status, created_at)
		VALUES (:id, :name, :format, :status, :created_at)`
	createTeamQuery = `
		INSERT INTO teams (id, tournament_id, name, status, created_at)
		VALUES (:id, :tournament_id, :name, :status, :created_at)`
	upsertMatchQuery = `
		INSERT INTO matches (id, tournament_id, remote_match_id, round, team1_id, team2_id, winner_team_id, score, state)
		VALUES (:id, :tournament_id, :remote_match_id, :round, :team1_id, :team2_id, :winner_team_id, :score, :state)
		ON CONFLICT (tournament_id, remote_match_id) DO UPDATE SET
			round = excluded.round,
			team1_id = excluded.team1_id,
			team2_id = excluded.team2_id,
			winner_team_id = excluded.winner_team_id,
			score = excluded.score,
			state = excluded.state,
			updated_at = CURRENT_TIMESTAMP`
)

type TournamentStore struct {
	db *sqlx.DB
}

func NewTournamentStore(db *sqlx.DB) *TournamentStore {
	return &TournamentStore{db: db}
}

func (s *TournamentStore) CreateTournament(ctx context.Context, t *bracket.Tournament) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Status == "" {
		t.Status = bracket.TournamentRegistration
	}
	if t.Format == "" {
		t.Format = bracket.SingleElimination
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.NamedExecContext(ctx, createTournamentQuery, t)
	return err
}

func (s *TournamentStore) GetTournament(ctx context.Context, id uuid.UUID) (*bracket.Tournament, error) {
	var t bracket.Tournament
	query := s.db.Rebind("SELECT " + tournamentColumns + " FROM tournaments WHERE id = ?")
	if err := s.db.GetContext(ctx, &t, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return &t, nil
}

// ListTournaments returns tournaments newest first. No statuses means all of them.
func (s *TournamentStore) ListTournaments(ctx context.Context, statuses ...bracket.TournamentStatus) ([]bracket.Tournament, error) {
	tournaments := []bracket.Tournament{}
	if len(statuses) == 0 {
		err := s.db.SelectContext(ctx, &tournaments, "SELECT "+tournamentColumns+" FROM tournaments ORDER BY created_at DESC")
		return tournaments, err
	}

	query, args, err := sqlx.In("SELECT "+tournamentColumns+" FROM tournaments WHERE status IN (?) ORDER BY created_at DESC", statuses)
	if err != nil {
		return nil, err
	}
	err = s.db.SelectContext(ctx, &tournaments, s.db.Rebind(query), args...)
	return tournaments, err
}

// ListAwaitingManualStart returns bracket-created tournaments whose remote start was refused.
func (s *TournamentStore) ListAwaitingManualStart(ctx context.Context) ([]bracket.Tournament, error) {
	tournaments := []bracket.Tournament{}
	query := s.db.Rebind(`SELECT ` + tournamentColumns + ` FROM tournaments
		WHERE manual_start_pending = ? AND status = ? AND remote_bracket_id IS NOT NULL
		ORDER BY created_at ASC`)
	err := s.db.SelectContext(ctx, &tournaments, query, true, bracket.TournamentRegistration)
	return tournaments, err
}

// SetRemoteBracket links the tournament to its remote bracket. The link is written once.
func (s *TournamentStore) SetRemoteBracket(ctx context.Context, id uuid.UUID, remoteID, remoteURL string) error {
	query := s.db.Rebind(`UPDATE tournaments SET remote_bracket_id = ?, remote_url = ?
		WHERE id = ? AND remote_bracket_id IS NULL`)
	result, err := s.db.ExecContext(ctx, query, remoteID, remoteURL, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if n == 0 {
		if _, err := s.GetTournament(ctx, id); err != nil {
			return err
		}
		return ErrRemoteBracketSet
	}
	return nil
}

func (s *TournamentStore) UpdateStatus(ctx context.Context, id uuid.UUID, status bracket.TournamentStatus) error {
	return s.execOne(ctx, ErrTournamentNotFound, "UPDATE tournaments SET status = ? WHERE id = ?", status, id)
}

func (s *TournamentStore) SetManualStartPending(ctx context.Context, id uuid.UUID, pending bool) error {
	return s.execOne(ctx, ErrTournamentNotFound, "UPDATE tournaments SET manual_start_pending = ? WHERE id = ?", pending, id)
}

// MarkRemoteStarted records when the remote bracket was first seen running.
func (s *TournamentStore) MarkRemoteStarted(ctx context.Context, id uuid.UUID, at time.Time) error {
	return s.execOne(ctx, ErrTournamentNotFound,
		"UPDATE tournaments SET remote_started_at = COALESCE(remote_started_at, ?), manual_start_pending = ? WHERE id = ?",
		at.UTC(), false, id)
}

func (s *TournamentStore) CreateTeam(ctx context.Context, team *bracket.Team) error {
	if team.ID == uuid.Nil {
		team.ID = uuid.New()
	}
	if team.Status == "" {
		team.Status = bracket.TeamPending
	}
	if team.CreatedAt.IsZero() {
		team.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.NamedExecContext(ctx, createTeamQuery, team)
	if isUniqueViolation(err) {
		return ErrTeamNameConflict
	}
	return err
}

func (s *TournamentStore) GetTeam(ctx context.Context, id uuid.UUID) (*bracket.Team, error) {
	var team bracket.Team
	query := s.db.Rebind("SELECT " + teamColumns + " FROM teams WHERE id = ?")
	if err := s.db.GetContext(ctx, &team, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}
	return &team, nil
}

// GetTeamByName looks a team up inside one tournament.
func (s *TournamentStore) GetTeamByName(ctx context.Context, tournamentID uuid.UUID, name string) (*bracket.Team, error) {
	var team bracket.Team
	query := s.db.Rebind("SELECT " + teamColumns + " FROM teams WHERE tournament_id = ? AND name = ?")
	if err := s.db.GetContext(ctx, &team, query, tournamentID, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}
	return &team, nil
}

// ListTeams returns the tournament's teams in registration order, optionally filtered by status.
func (s *TournamentStore) ListTeams(ctx context.Context, tournamentID uuid.UUID, status *bracket.TeamStatus) ([]bracket.Team, error) {
	teams := []bracket.Team{}
	query := "SELECT " + teamColumns + " FROM teams WHERE tournament_id = ?"
	args := []interface{}{tournamentID}
	if status != nil {
		query += " AND status = ?"
		args = append(args, *status)
	}
	query += " ORDER BY created_at ASC, name ASC"

	err := s.db.SelectContext(ctx, &teams, s.db.Rebind(query), args...)
	return teams, err
}

func (s *TournamentStore) UpdateTeamStatus(ctx context.Context, id uuid.UUID, status bracket.TeamStatus) error {
	return s.execOne(ctx, ErrTeamNotFound, "UPDATE teams SET status = ? WHERE id = ?", status, id)
}

func (s *TournamentStore) DeleteTeam(ctx context.Context, id uuid.UUID) error {
	return s.execOne(ctx, ErrTeamNotFound, "DELETE FROM teams WHERE id = ?", id)
}

func (s *TournamentStore) GetMatch(ctx context.Context, id uuid.UUID) (*bracket.Match, error) {
	var m bracket.Match
	query := s.db.Rebind("SELECT " + matchColumns + " FROM matches WHERE id = ?")
	if err := s.db.GetContext(ctx, &m, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return &m, nil
}

// ListMatches orders upper bracket rounds first, then lower bracket rounds by depth.
func (s *TournamentStore) ListMatches(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Match, error) {
	matches := []bracket.Match{}
	query := s.db.Rebind(`SELECT ` + matchColumns + ` FROM matches WHERE tournament_id = ?
		ORDER BY CASE WHEN round < 0 THEN 1 ELSE 0 END, ABS(round) ASC, remote_match_id ASC`)
	err := s.db.SelectContext(ctx, &matches, query, tournamentID)
	return matches, err
}

// SaveSync upserts the pulled matches and moves the tournament to status in one transaction.
func (s *TournamentStore) SaveSync(ctx context.Context, tournamentID uuid.UUID, matches []bracket.Match, status bracket.TournamentStatus) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i := range matches {
		m := &matches[i]
		m.TournamentID = tournamentID
		if m.ID == uuid.Nil {
			m.ID = uuid.New()
		}
		if m.State == "" {
			m.State = bracket.MatchPending
		}
		if _, err := tx.NamedExecContext(ctx, upsertMatchQuery, m); err != nil {
			return fmt.Errorf("upsert remote match %d: %w", m.RemoteMatchID, err)
		}
	}

	result, err := tx.ExecContext(ctx, tx.Rebind("UPDATE tournaments SET status = ?, manual_start_pending = ? WHERE id = ?"), status, false, tournamentID)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrTournamentNotFound
	}

	return tx.Commit()
}

func (s *TournamentStore) UpdateMatchResult(ctx context.Context, id uuid.UUID, winnerTeamID uuid.UUID, score string, state bracket.MatchState) error {
	return s.execOne(ctx, ErrMatchNotFound,
		"UPDATE matches SET winner_team_id = ?, score = ?, state = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		winnerTeamID, score, state, id)
}

func (s *TournamentStore) execOne(ctx context.Context, notFound error, query string, args ...interface{}) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
