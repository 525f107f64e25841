package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/AdamBeresnev/cup-bracket-bot/internal/bracket"
	"github.com/AdamBeresnev/cup-bracket-bot/internal/challonge"
	"github.com/google/uuid"
)

type ScoreResult struct {
	Match  *bracket.Match
	Winner *bracket.Team
	Sync   *SyncResult
}

// ReportScore sends the result of a resolved match to Challonge and pulls the
// bracket again so the next round picks up the winner.
func (s *BracketSync) ReportScore(ctx context.Context, matchID, winnerTeamID uuid.UUID, score string) (*ScoreResult, error) {
	scoresCSV, err := normalizeScore(score)
	if err != nil {
		return nil, err
	}

	match, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	t, err := s.store.GetTournament(ctx, match.TournamentID)
	if err != nil {
		return nil, err
	}
	if t.Status != bracket.TournamentInProgress {
		return nil, ErrTournamentClosed
	}
	if !match.Resolved() {
		return nil, ErrMatchNotReady
	}
	if !match.HasTeam(winnerTeamID) {
		return nil, ErrNotInMatch
	}
	if match.State == bracket.MatchComplete {
		return nil, ErrMatchDecided
	}

	winner, err := s.store.GetTeam(ctx, winnerTeamID)
	if err != nil {
		return nil, err
	}

	participants, err := s.remote.GetParticipants(ctx, *t.RemoteBracketID)
	if err != nil {
		return nil, s.remoteFailed(t, "get_participants", err)
	}
	var winnerID int64
	for _, p := range participants {
		if p.Label() == winner.Name {
			winnerID = p.ID
			break
		}
	}
	if winnerID == 0 {
		return nil, fmt.Errorf("%w: %s", challonge.ErrParticipantNotFound, winner.Name)
	}

	if _, err := s.remote.UpdateMatchScore(ctx, *t.RemoteBracketID, match.RemoteMatchID, winnerID, scoresCSV); err != nil {
		return nil, s.remoteFailed(t, "update_match_score", err, "match_id", match.ID)
	}
	if err := s.store.UpdateMatchResult(ctx, match.ID, winner.ID, scoresCSV, bracket.MatchComplete); err != nil {
		return nil, err
	}

	result := &ScoreResult{Winner: winner}
	sync, err := s.SyncMatches(ctx, t.ID)
	if err != nil {
		s.logger.Warn("match pull after score failed", "tournament_id", t.ID, "error", err)
	} else {
		result.Sync = sync
	}

	result.Match, err = s.store.GetMatch(ctx, match.ID)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// normalizeScore accepts "2-1" or several comma separated games like "2-1, 1-2".
func normalizeScore(score string) (string, error) {
	score = strings.TrimSpace(score)
	if score == "" {
		return "", ErrInvalidScore
	}

	games := strings.Split(score, ",")
	for i, game := range games {
		left, right, ok := strings.Cut(strings.TrimSpace(game), "-")
		if !ok {
			return "", ErrInvalidScore
		}
		a, errA := strconv.Atoi(strings.TrimSpace(left))
		b, errB := strconv.Atoi(strings.TrimSpace(right))
		if errA != nil || errB != nil || a < 0 || b < 0 {
			return "", ErrInvalidScore
		}
		games[i] = strconv.Itoa(a) + "-" + strconv.Itoa(b)
	}
	return strings.Join(games, ","), nil
}
