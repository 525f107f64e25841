package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/AdamBeresnev/cup-bracket-bot/internal/bracket"
	"github.com/AdamBeresnev/cup-bracket-bot/internal/challonge"
	"github.com/AdamBeresnev/cup-bracket-bot/internal/session"
	"github.com/AdamBeresnev/cup-bracket-bot/internal/store"
	"github.com/AdamBeresnev/cup-bracket-bot/internal/utils"
	"github.com/google/uuid"
)

type SwapOutcome string

const (
	SwapFirstSelected SwapOutcome = "first_selected"
	SwapDone          SwapOutcome = "swapped"
)

type SwapResult struct {
	Outcome SwapOutcome
	First   session.SwapSelection
	Second  *session.SwapSelection
}

// SwapEditor collects two participant picks per (user, tournament) and swaps
// their seeds on the remote bracket.
type SwapEditor struct {
	store    *store.TournamentStore
	sessions *session.Store
	remote   BracketClient
	logger   *slog.Logger

	// one Select/Cancel/Reset at a time per session key
	locks utils.KeyedMutex[string]
}

func NewSwapEditor(store *store.TournamentStore, sessions *session.Store, remote BracketClient, logger *slog.Logger) *SwapEditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &SwapEditor{store: store, sessions: sessions, remote: remote, logger: logger}
}

// Participants lists the remote participants in seed order for an editable bracket.
func (e *SwapEditor) Participants(ctx context.Context, tournamentID uuid.UUID) ([]challonge.Participant, error) {
	t, err := e.editable(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	participants, err := e.remote.GetParticipants(ctx, *t.RemoteBracketID)
	if err != nil {
		e.logger.Error("challonge call failed", "tournament_id", t.ID, "op", "get_participants", "error", err)
		return nil, err
	}
	return participants, nil
}

// Pending returns the first pick, or nil when none is stored.
func (e *SwapEditor) Pending(ctx context.Context, userID int64, tournamentID uuid.UUID) (*session.SwapSelection, error) {
	sel, err := e.sessions.GetSwap(ctx, userID, tournamentID)
	if errors.Is(err, session.ErrNoSelection) {
		return nil, nil
	}
	return sel, err
}

// Select records the first pick or, on the second distinct pick, swaps both
// seeds and clears the session. Picking the first participant again is
// rejected and keeps the session as it was. A failed remote swap also keeps it
// so the user can retry, unless Challonge no longer knows one of the picks.
func (e *SwapEditor) Select(ctx context.Context, userID int64, tournamentID uuid.UUID, participantID int64, label string) (*SwapResult, error) {
	defer e.locks.Lock(session.SwapKey(userID, tournamentID))()

	t, err := e.editable(ctx, tournamentID)
	if err != nil {
		return nil, err
	}

	pick := session.SwapSelection{ParticipantID: participantID, Label: label}

	first, err := e.sessions.GetSwap(ctx, userID, t.ID)
	if errors.Is(err, session.ErrNoSelection) {
		if err := e.sessions.PutSwap(ctx, userID, t.ID, pick); err != nil {
			return nil, err
		}
		return &SwapResult{Outcome: SwapFirstSelected, First: pick}, nil
	}
	if err != nil {
		return nil, err
	}

	if first.ParticipantID == participantID {
		return nil, ErrSameParticipant
	}

	if err := e.remote.SwapParticipants(ctx, *t.RemoteBracketID, first.ParticipantID, participantID); err != nil {
		e.logger.Error("challonge call failed",
			"tournament_id", t.ID, "op", "swap_participants", "a", first.ParticipantID, "b", participantID, "error", err)
		if errors.Is(err, challonge.ErrParticipantNotFound) {
			// A stale pick would fail every retry.
			if clearErr := e.sessions.ClearSwap(ctx, userID, t.ID); clearErr != nil {
				e.logger.Warn("stale swap pick not cleared", "tournament_id", t.ID, "user_id", userID, "error", clearErr)
			}
		}
		return nil, err
	}

	if err := e.sessions.ClearSwap(ctx, userID, t.ID); err != nil {
		e.logger.Warn("swap done but session not cleared", "tournament_id", t.ID, "user_id", userID, "error", err)
	}
	e.logger.Info("participants swapped",
		"tournament_id", t.ID, "user_id", userID, "a", first.ParticipantID, "b", participantID)
	return &SwapResult{Outcome: SwapDone, First: *first, Second: &pick}, nil
}

// Cancel drops the pending pick.
func (e *SwapEditor) Cancel(ctx context.Context, userID int64, tournamentID uuid.UUID) error {
	defer e.locks.Lock(session.SwapKey(userID, tournamentID))()
	return e.sessions.ClearSwap(ctx, userID, tournamentID)
}

// Reset is called when the user reloads the tournament; any half-done swap is abandoned.
func (e *SwapEditor) Reset(ctx context.Context, userID int64, tournamentID uuid.UUID) error {
	defer e.locks.Lock(session.SwapKey(userID, tournamentID))()
	if err := e.sessions.ClearSwap(ctx, userID, tournamentID); err != nil {
		e.logger.Warn("could not reset swap session", "tournament_id", tournamentID, "user_id", userID, "error", err)
		return err
	}
	return nil
}

func (e *SwapEditor) editable(ctx context.Context, tournamentID uuid.UUID) (*bracket.Tournament, error) {
	t, err := e.store.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	return t, checkEditable(t)
}
