package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/AdamBeresnev/cup-bracket-bot/internal/bracket"
	"github.com/AdamBeresnev/cup-bracket-bot/internal/challonge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminID int64 = 4242

func createdBracket(t *testing.T, env *testEnv, name string) (*bracket.Tournament, string, []challonge.Participant) {
	t.Helper()
	ctx := context.Background()

	cup := env.seedTournament(t, name, bracket.SingleElimination, "Team A", "Team B", "Team C", "Team D")
	created, err := env.sync.CreateBracket(ctx, cup.ID)
	require.NoError(t, err)

	participants, err := env.swaps.Participants(ctx, cup.ID)
	require.NoError(t, err)
	require.Len(t, participants, 4)
	return env.reload(t, cup), created.RemoteID, participants
}

func TestSwapRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cup, remoteID, participants := createdBracket(t, env, "Swap")
	a, b := participants[0], participants[2]
	before := env.remote.seeds(remoteID)

	swap := func() {
		res, err := env.swaps.Select(ctx, adminID, cup.ID, a.ID, a.Label())
		require.NoError(t, err)
		assert.Equal(t, SwapFirstSelected, res.Outcome)

		res, err = env.swaps.Select(ctx, adminID, cup.ID, b.ID, b.Label())
		require.NoError(t, err)
		assert.Equal(t, SwapDone, res.Outcome)
		assert.Equal(t, a.ID, res.First.ParticipantID)
		assert.Equal(t, b.ID, res.Second.ParticipantID)
	}

	swap()
	after := env.remote.seeds(remoteID)
	assert.Equal(t, before[a.ID], after[b.ID])
	assert.Equal(t, before[b.ID], after[a.ID])
	assert.Equal(t, before[participants[1].ID], after[participants[1].ID])
	assert.Equal(t, before[participants[3].ID], after[participants[3].ID])

	pending, err := env.swaps.Pending(ctx, adminID, cup.ID)
	require.NoError(t, err)
	assert.Nil(t, pending)

	swap()
	assert.Equal(t, before, env.remote.seeds(remoteID))
	assert.Equal(t, 2, env.remote.callCount("swap_participants"))
}

func TestSwapSameParticipantTwice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cup, _, participants := createdBracket(t, env, "Same")
	a := participants[1]

	_, err := env.swaps.Select(ctx, adminID, cup.ID, a.ID, a.Label())
	require.NoError(t, err)

	calls := env.remote.totalCalls()
	_, err = env.swaps.Select(ctx, adminID, cup.ID, a.ID, a.Label())
	assert.ErrorIs(t, err, ErrSameParticipant)
	assert.Equal(t, calls, env.remote.totalCalls())

	pending, err := env.swaps.Pending(ctx, adminID, cup.ID)
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, a.ID, pending.ParticipantID)
	assert.Equal(t, a.Label(), pending.Label)
}

func TestSwapSessionsArePerUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cup, _, participants := createdBracket(t, env, "PerUser")

	res, err := env.swaps.Select(ctx, 1, cup.ID, participants[0].ID, participants[0].Label())
	require.NoError(t, err)
	assert.Equal(t, SwapFirstSelected, res.Outcome)

	// Another admin starts their own selection instead of completing the first one.
	res, err = env.swaps.Select(ctx, 2, cup.ID, participants[1].ID, participants[1].Label())
	require.NoError(t, err)
	assert.Equal(t, SwapFirstSelected, res.Outcome)
	assert.Equal(t, 0, env.remote.callCount("swap_participants"))
}

func TestSwapCancelAndReset(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cup, _, participants := createdBracket(t, env, "Cancel")

	_, err := env.swaps.Select(ctx, adminID, cup.ID, participants[0].ID, participants[0].Label())
	require.NoError(t, err)
	require.NoError(t, env.swaps.Cancel(ctx, adminID, cup.ID))

	pending, err := env.swaps.Pending(ctx, adminID, cup.ID)
	require.NoError(t, err)
	assert.Nil(t, pending)

	// After a cancel the next pick is a first pick again.
	res, err := env.swaps.Select(ctx, adminID, cup.ID, participants[0].ID, participants[0].Label())
	require.NoError(t, err)
	assert.Equal(t, SwapFirstSelected, res.Outcome)

	require.NoError(t, env.swaps.Reset(ctx, adminID, cup.ID))
	pending, err = env.swaps.Pending(ctx, adminID, cup.ID)
	require.NoError(t, err)
	assert.Nil(t, pending)
	assert.Equal(t, 0, env.remote.callCount("swap_participants"))
}

func TestSwapFailureKeepsSelection(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cup, _, participants := createdBracket(t, env, "Failing")

	env.remote.swapErr = &challonge.APIError{StatusCode: 500, Messages: []string{"boom"}}

	_, err := env.swaps.Select(ctx, adminID, cup.ID, participants[0].ID, participants[0].Label())
	require.NoError(t, err)
	_, err = env.swaps.Select(ctx, adminID, cup.ID, participants[1].ID, participants[1].Label())
	var apiErr *challonge.APIError
	require.True(t, errors.As(err, &apiErr))

	pending, err := env.swaps.Pending(ctx, adminID, cup.ID)
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, participants[0].ID, pending.ParticipantID)
}

func TestStalePickIsDropped(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cup, _, participants := createdBracket(t, env, "Stale")

	// 999 is not a participant of the remote bracket, e.g. a button from an old message.
	_, err := env.swaps.Select(ctx, adminID, cup.ID, 999, "Gone")
	require.NoError(t, err)

	_, err = env.swaps.Select(ctx, adminID, cup.ID, participants[0].ID, participants[0].Label())
	assert.ErrorIs(t, err, challonge.ErrParticipantNotFound)

	pending, err := env.swaps.Pending(ctx, adminID, cup.ID)
	require.NoError(t, err)
	assert.Nil(t, pending)

	// The user can start over without /cancel.
	res, err := env.swaps.Select(ctx, adminID, cup.ID, participants[0].ID, participants[0].Label())
	require.NoError(t, err)
	assert.Equal(t, SwapFirstSelected, res.Outcome)
	res, err = env.swaps.Select(ctx, adminID, cup.ID, participants[1].ID, participants[1].Label())
	require.NoError(t, err)
	assert.Equal(t, SwapDone, res.Outcome)
}

func TestConcurrentSecondPicksSwapOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cup, _, participants := createdBracket(t, env, "DoubleTap")
	env.remote.swapDelay = 50 * time.Millisecond

	_, err := env.swaps.Select(ctx, adminID, cup.ID, participants[0].ID, participants[0].Label())
	require.NoError(t, err)

	results := make([]*SwapResult, 2)
	var wg sync.WaitGroup
	for i, p := range participants[1:3] {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := env.swaps.Select(ctx, adminID, cup.ID, p.ID, p.Label())
			assert.NoError(t, err)
			results[i] = res
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, env.remote.callCount("swap_participants"))
	outcomes := []SwapOutcome{results[0].Outcome, results[1].Outcome}
	assert.ElementsMatch(t, []SwapOutcome{SwapDone, SwapFirstSelected}, outcomes)
}

func TestSwapRequiresEditableBracket(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	noBracket := env.seedTournament(t, "NoBracket", bracket.SingleElimination, "Team A", "Team B")
	_, err := env.swaps.Select(ctx, adminID, noBracket.ID, 1, "Team A")
	assert.ErrorIs(t, err, ErrNoBracket)
	_, err = env.swaps.Participants(ctx, noBracket.ID)
	assert.ErrorIs(t, err, ErrNoBracket)
	assert.Equal(t, 0, env.remote.totalCalls())

	cup, _, participants := createdBracket(t, env, "Running")
	_, err = env.sync.StartBracket(ctx, cup.ID)
	require.NoError(t, err)

	calls := env.remote.totalCalls()
	_, err = env.swaps.Select(ctx, adminID, cup.ID, participants[0].ID, participants[0].Label())
	assert.ErrorIs(t, err, ErrBracketStarted)
	assert.Equal(t, calls, env.remote.totalCalls())
}
