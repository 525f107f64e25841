package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AdamBeresnev/cup-bracket-bot/internal/bracket"
	"github.com/AdamBeresnev/cup-bracket-bot/internal/challonge"
	"github.com/AdamBeresnev/cup-bracket-bot/internal/store"
	"github.com/AdamBeresnev/cup-bracket-bot/internal/utils"
	"github.com/google/uuid"
)

// BracketClient is the part of the Challonge API the bracket flow relies on.
type BracketClient interface {
	CreateTournament(ctx context.Context, params challonge.CreateTournamentParams) (*challonge.Tournament, error)
	GetTournamentInfo(ctx context.Context, tournamentID string) (*challonge.Tournament, error)
	StartTournament(ctx context.Context, tournamentID string) (*challonge.Tournament, error)
	FinalizeTournament(ctx context.Context, tournamentID string) (*challonge.Tournament, error)
	AddParticipant(ctx context.Context, tournamentID, name string) (*challonge.Participant, error)
	GetParticipants(ctx context.Context, tournamentID string) ([]challonge.Participant, error)
	SwapParticipants(ctx context.Context, tournamentID string, a, b int64) error
	GetMatches(ctx context.Context, tournamentID string) ([]challonge.Match, error)
	UpdateMatchScore(ctx context.Context, tournamentID string, matchID, winnerID int64, scoresCSV string) (*challonge.Match, error)
}

var _ BracketClient = (*challonge.Client)(nil)

// BracketSync drives a tournament through NO_BRACKET, BRACKET_CREATED, STARTED
// and SYNCED. Remote calls inside one operation are issued one after another.
type BracketSync struct {
	store   *store.TournamentStore
	remote  BracketClient
	logger  *slog.Logger
	private bool
	now     func() time.Time
}

func NewBracketSync(store *store.TournamentStore, remote BracketClient, logger *slog.Logger, private bool) *BracketSync {
	if logger == nil {
		logger = slog.Default()
	}
	return &BracketSync{
		store:   store,
		remote:  remote,
		logger:  logger,
		private: private,
		now:     time.Now,
	}
}

// ParticipantResult lists which team names made it to the remote bracket.
type ParticipantResult struct {
	Added  []string
	Failed []string
}

func (r *ParticipantResult) Complete() bool {
	return len(r.Failed) == 0
}

type CreateResult struct {
	ParticipantResult
	Tournament *bracket.Tournament
	RemoteID   string
	RemoteURL  string
}

type StartResult struct {
	Started             bool
	ManualStartRequired bool
	RemoteURL           string
	Sync                *SyncResult
}

type RefreshResult struct {
	RemoteState       challonge.TournamentState
	ParticipantsCount int
	RemoteURL         string
	Sync              *SyncResult
}

func (r *RefreshResult) Synced() bool {
	return r.Sync != nil
}

type SyncResult struct {
	Matches  []bracket.Match
	Resolved int
	// Remote participants whose name matched no approved team.
	Unmatched []string
}

// TeamsAssigned is false right after some starts, before the service fills
// any slot. That is a normal state, not a failure.
func (r *SyncResult) TeamsAssigned() bool {
	return r.Resolved > 0
}

func (s *BracketSync) CreateBracket(ctx context.Context, tournamentID uuid.UUID) (*CreateResult, error) {
	t, err := s.store.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if t.HasBracket() {
		return nil, ErrBracketExists
	}
	if t.Status != bracket.TournamentRegistration {
		return nil, ErrTournamentClosed
	}

	teams, err := s.approvedTeams(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	if len(teams) < 2 {
		return nil, ErrNotEnoughTeams
	}

	remote, err := s.remote.CreateTournament(ctx, challonge.CreateTournamentParams{
		Name:        t.Name,
		URL:         remoteSlug(t),
		Type:        remoteType(t.Format),
		Description: fmt.Sprintf("%s, %d teams", t.Name, len(teams)),
		Private:     s.private,
	})
	if err != nil {
		return nil, s.remoteFailed(t, "create_tournament", err)
	}

	if err := s.store.SetRemoteBracket(ctx, t.ID, remote.RemoteID(), remote.PublicURL()); err != nil {
		s.logger.Error("remote bracket created but not saved",
			"tournament_id", t.ID, "op", "create_tournament", "remote_id", remote.RemoteID(), "error", err)
		return nil, err
	}
	t.RemoteBracketID = utils.Ptr(remote.RemoteID())
	t.RemoteURL = utils.StringOrNil(remote.PublicURL())

	result := &CreateResult{
		Tournament: t,
		RemoteID:   remote.RemoteID(),
		RemoteURL:  remote.PublicURL(),
	}
	result.ParticipantResult = s.addParticipants(ctx, t, teamNames(teams))

	s.logger.Info("remote bracket created",
		"tournament_id", t.ID, "remote_id", result.RemoteID, "added", len(result.Added), "failed", len(result.Failed))
	return result, nil
}

// SyncParticipants re-adds only the approved teams missing on the remote side,
// so repeating it after a partial failure never duplicates a participant.
func (s *BracketSync) SyncParticipants(ctx context.Context, tournamentID uuid.UUID) (*ParticipantResult, error) {
	t, err := s.editableTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}

	teams, err := s.approvedTeams(ctx, t.ID)
	if err != nil {
		return nil, err
	}

	participants, err := s.remote.GetParticipants(ctx, *t.RemoteBracketID)
	if err != nil {
		return nil, s.remoteFailed(t, "get_participants", err)
	}
	present := make(map[string]struct{}, len(participants))
	for _, p := range participants {
		present[p.Label()] = struct{}{}
	}

	var missing []string
	for _, team := range teams {
		if _, ok := present[team.Name]; !ok {
			missing = append(missing, team.Name)
		}
	}

	result := s.addParticipants(ctx, t, missing)
	return &result, nil
}

func (s *BracketSync) StartBracket(ctx context.Context, tournamentID uuid.UUID) (*StartResult, error) {
	t, err := s.editableTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}

	if _, err := s.remote.StartTournament(ctx, *t.RemoteBracketID); err != nil {
		if errors.Is(err, challonge.ErrManualStartRequired) {
			if err := s.store.SetManualStartPending(ctx, t.ID, true); err != nil {
				return nil, err
			}
			s.logger.Info("automatic start refused, waiting for manual start",
				"tournament_id", t.ID, "op", "start_tournament", "reason", err)
			return &StartResult{ManualStartRequired: true, RemoteURL: utils.OrZero(t.RemoteURL)}, nil
		}
		return nil, s.remoteFailed(t, "start_tournament", err)
	}

	if err := s.store.MarkRemoteStarted(ctx, t.ID, s.now().UTC()); err != nil {
		return nil, err
	}

	result := &StartResult{Started: true, RemoteURL: utils.OrZero(t.RemoteURL)}
	sync, err := s.SyncMatches(ctx, t.ID)
	if err != nil {
		// The bracket is running remotely; a later refresh retries the pull.
		return result, err
	}
	result.Sync = sync
	return result, nil
}

// RefreshStatus polls the remote state and pulls matches once the bracket runs.
func (s *BracketSync) RefreshStatus(ctx context.Context, tournamentID uuid.UUID) (*RefreshResult, error) {
	t, err := s.store.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if !t.HasBracket() {
		return nil, ErrNoBracket
	}

	info, err := s.remote.GetTournamentInfo(ctx, *t.RemoteBracketID)
	if err != nil {
		return nil, s.remoteFailed(t, "get_tournament_info", err)
	}

	result := &RefreshResult{
		RemoteState:       info.State,
		ParticipantsCount: info.ParticipantsCount,
		RemoteURL:         info.PublicURL(),
	}
	if result.RemoteURL == "" {
		result.RemoteURL = utils.OrZero(t.RemoteURL)
	}
	if !info.State.Started() {
		return result, nil
	}

	if t.RemoteStartedAt == nil {
		if err := s.store.MarkRemoteStarted(ctx, t.ID, s.now().UTC()); err != nil {
			return nil, err
		}
	}
	sync, err := s.SyncMatches(ctx, t.ID)
	if err != nil {
		return result, err
	}
	result.Sync = sync
	return result, nil
}

// SyncMatches pulls matches and participants and maps participants to this
// tournament's approved teams by exact name. The first team with a name wins.
func (s *BracketSync) SyncMatches(ctx context.Context, tournamentID uuid.UUID) (*SyncResult, error) {
	t, err := s.store.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	switch t.BracketState() {
	case bracket.StateNoBracket:
		return nil, ErrNoBracket
	case bracket.StateBracketCreated:
		return nil, ErrBracketNotStarted
	}

	remoteMatches, err := s.remote.GetMatches(ctx, *t.RemoteBracketID)
	if err != nil {
		return nil, s.remoteFailed(t, "get_matches", err)
	}
	participants, err := s.remote.GetParticipants(ctx, *t.RemoteBracketID)
	if err != nil {
		return nil, s.remoteFailed(t, "get_participants", err)
	}
	teams, err := s.approvedTeams(ctx, t.ID)
	if err != nil {
		return nil, err
	}

	teamIDs, unmatched := mapParticipants(participants, teams)
	lookup := func(pid *int64) *uuid.UUID {
		if pid == nil {
			return nil
		}
		if id, ok := teamIDs[*pid]; ok {
			return &id
		}
		return nil
	}

	matches := make([]bracket.Match, 0, len(remoteMatches))
	for _, rm := range remoteMatches {
		matches = append(matches, bracket.Match{
			RemoteMatchID: rm.ID,
			Round:         rm.Round,
			Team1ID:       lookup(rm.Player1ID),
			Team2ID:       lookup(rm.Player2ID),
			WinnerTeamID:  lookup(rm.WinnerID),
			Score:         utils.StringOrNil(rm.ScoresCSV),
			State:         localMatchState(rm.State),
		})
	}

	status := bracket.TournamentInProgress
	if t.Status == bracket.TournamentCompleted {
		status = bracket.TournamentCompleted
	}
	if err := s.store.SaveSync(ctx, t.ID, matches, status); err != nil {
		return nil, err
	}

	saved, err := s.store.ListMatches(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	result := &SyncResult{Matches: saved, Unmatched: unmatched}
	for i := range saved {
		if saved[i].Resolved() {
			result.Resolved++
		}
	}

	s.logger.Info("matches synchronized",
		"tournament_id", t.ID, "matches", len(saved), "resolved", result.Resolved, "unmatched", len(unmatched))
	return result, nil
}

func (s *BracketSync) Finalize(ctx context.Context, tournamentID uuid.UUID) (*bracket.Tournament, error) {
	t, err := s.store.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	switch t.BracketState() {
	case bracket.StateNoBracket:
		return nil, ErrNoBracket
	case bracket.StateBracketCreated:
		return nil, ErrBracketNotStarted
	}
	if t.Status == bracket.TournamentCompleted {
		return t, nil
	}

	if _, err := s.remote.FinalizeTournament(ctx, *t.RemoteBracketID); err != nil {
		return nil, s.remoteFailed(t, "finalize_tournament", err)
	}
	if _, err := s.SyncMatches(ctx, t.ID); err != nil {
		s.logger.Warn("final match pull failed", "tournament_id", t.ID, "error", err)
	}
	if err := s.store.UpdateStatus(ctx, t.ID, bracket.TournamentCompleted); err != nil {
		return nil, err
	}
	t.Status = bracket.TournamentCompleted
	return t, nil
}

// editableTournament loads a tournament whose remote bracket exists and has not started.
func (s *BracketSync) editableTournament(ctx context.Context, tournamentID uuid.UUID) (*bracket.Tournament, error) {
	t, err := s.store.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	return t, checkEditable(t)
}

func checkEditable(t *bracket.Tournament) error {
	switch t.BracketState() {
	case bracket.StateNoBracket:
		return ErrNoBracket
	case bracket.StateBracketCreated:
		return nil
	default:
		return ErrBracketStarted
	}
}

func (s *BracketSync) addParticipants(ctx context.Context, t *bracket.Tournament, names []string) ParticipantResult {
	var result ParticipantResult
	for _, name := range names {
		if _, err := s.remote.AddParticipant(ctx, *t.RemoteBracketID, name); err != nil {
			s.remoteFailed(t, "add_participant", err, "team", name)
			result.Failed = append(result.Failed, name)
			continue
		}
		result.Added = append(result.Added, name)
	}
	return result
}

func (s *BracketSync) approvedTeams(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Team, error) {
	return s.store.ListTeams(ctx, tournamentID, utils.Ptr(bracket.TeamApproved))
}

func (s *BracketSync) remoteFailed(t *bracket.Tournament, op string, err error, attrs ...any) error {
	args := append([]any{"tournament_id", t.ID, "op", op, "error", err}, attrs...)
	s.logger.Error("challonge call failed", args...)
	return fmt.Errorf("%s: %w", op, err)
}

// mapParticipants joins remote participants to local teams by exact name.
func mapParticipants(participants []challonge.Participant, teams []bracket.Team) (map[int64]uuid.UUID, []string) {
	byName := make(map[string]uuid.UUID, len(teams))
	for _, team := range teams {
		if _, ok := byName[team.Name]; !ok {
			byName[team.Name] = team.ID
		}
	}

	ids := make(map[int64]uuid.UUID, len(participants))
	var unmatched []string
	for _, p := range participants {
		if id, ok := byName[p.Label()]; ok {
			ids[p.ID] = id
		} else {
			unmatched = append(unmatched, p.Label())
		}
	}
	return ids, unmatched
}

func teamNames(teams []bracket.Team) []string {
	names := make([]string, len(teams))
	for i, team := range teams {
		names[i] = team.Name
	}
	return names
}

func remoteType(f bracket.TournamentFormat) challonge.TournamentType {
	switch f {
	case bracket.DoubleElimination:
		return challonge.DoubleElimination
	case bracket.RoundRobin:
		return challonge.RoundRobin
	default:
		return challonge.SingleElimination
	}
}

// remoteSlug must be unique across the whole Challonge account, so the local id
// is appended to the readable part.
func remoteSlug(t *bracket.Tournament) string {
	suffix := strings.ReplaceAll(t.ID.String(), "-", "")[:8]
	if base := utils.Slug(t.Name); base != "" {
		return base + "_" + suffix
	}
	return "cup_" + suffix
}

func localMatchState(s challonge.MatchState) bracket.MatchState {
	switch s {
	case challonge.MatchOpen:
		return bracket.MatchOpen
	case challonge.MatchComplete:
		return bracket.MatchComplete
	default:
		return bracket.MatchPending
	}
}
