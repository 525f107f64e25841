package service

import (
	"context"
	"errors"
	"strings"

	"github.com/AdamBeresnev/cup-bracket-bot/internal/challonge"
	"github.com/AdamBeresnev/cup-bracket-bot/internal/store"
)

var (
	ErrNoBracket         = errors.New("tournament has no remote bracket")
	ErrBracketExists     = errors.New("remote bracket already created")
	ErrBracketStarted    = errors.New("remote bracket already started")
	ErrBracketNotStarted = errors.New("remote bracket not started yet")
	ErrNotEnoughTeams    = errors.New("at least two approved teams are required")
	ErrSameParticipant   = errors.New("participant already selected")
	ErrTournamentClosed  = errors.New("tournament is not accepting changes")
	ErrEmptyName         = errors.New("name must not be empty")
	ErrInvalidScore      = errors.New("score must look like 2-1 or 2-1,1-2")
	ErrMatchNotReady     = errors.New("match does not have both teams yet")
	ErrNotInMatch        = errors.New("team does not play in this match")
	ErrMatchDecided      = errors.New("match already has a result")
)

// UserMessage turns any error coming out of this package into text that can be
// shown to a chat user.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, challonge.ErrMissingCredentials):
		return "Challonge is not configured. Ask the operator to set CHALLONGE_API_KEY."
	case errors.Is(err, ErrNoBracket):
		return "This tournament has no bracket yet. Create it first."
	case errors.Is(err, ErrBracketExists):
		return "A bracket already exists for this tournament. Use sync or start instead."
	case errors.Is(err, ErrBracketStarted):
		return "The bracket has already started and can no longer be edited."
	case errors.Is(err, ErrBracketNotStarted):
		return "The bracket has not started yet. Start it or refresh its status first."
	case errors.Is(err, ErrNotEnoughTeams):
		return "At least 2 approved teams are needed to create a bracket."
	case errors.Is(err, ErrSameParticipant), errors.Is(err, challonge.ErrSameParticipant):
		return "That participant is already selected. Pick a different one to swap with."
	case errors.Is(err, ErrTournamentClosed):
		return "Registration for this tournament is closed."
	case errors.Is(err, ErrEmptyName):
		return "Please provide a name."
	case errors.Is(err, ErrInvalidScore):
		return "Scores look like 2-1, or 2-1,1-2,2-0 for several games."
	case errors.Is(err, ErrMatchNotReady):
		return "Both teams of this match are not known yet."
	case errors.Is(err, ErrNotInMatch):
		return "That team does not play in this match."
	case errors.Is(err, ErrMatchDecided):
		return "This match already has a result."
	case errors.Is(err, challonge.ErrSlugTaken):
		return "Challonge already has a tournament with this URL. Rename the tournament and try again."
	case errors.Is(err, challonge.ErrParticipantNotFound):
		return "That participant is not part of the bracket anymore. Reload the list and try again."
	case errors.Is(err, challonge.ErrSwapIncomplete):
		return "The swap was only partly applied on Challonge. Check the bracket and repeat the swap."
	case errors.Is(err, store.ErrTournamentNotFound):
		return "Tournament not found."
	case errors.Is(err, store.ErrTeamNotFound):
		return "Team not found."
	case errors.Is(err, store.ErrMatchNotFound):
		return "Match not found."
	case errors.Is(err, store.ErrTeamNameConflict):
		return "A team with this name is already registered in this tournament."
	case errors.Is(err, context.DeadlineExceeded):
		return "Challonge did not answer in time. Please try again."
	}

	var apiErr *challonge.APIError
	if errors.As(err, &apiErr) {
		if len(apiErr.Messages) > 0 {
			return "Challonge rejected the request: " + strings.Join(apiErr.Messages, "; ")
		}
		return "Challonge rejected the request. Please try again later."
	}
	return "Something went wrong while talking to Challonge. Please try again."
}
