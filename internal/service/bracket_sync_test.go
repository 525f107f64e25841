package service

import (
	"context"
	"testing"

	"github.com/AdamBeresnev/cup-bracket-bot/internal/bracket"
	"github.com/AdamBeresnev/cup-bracket-bot/internal/challonge"
	"github.com/AdamBeresnev/cup-bracket-bot/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCup8Scenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cup := env.seedTournament(t, "Cup8", bracket.SingleElimination, cup8Teams...)

	created, err := env.sync.CreateBracket(ctx, cup.ID)
	require.NoError(t, err)
	assert.True(t, created.Complete())
	assert.ElementsMatch(t, cup8Teams, created.Added)
	assert.Contains(t, created.RemoteURL, "https://challonge.com/cup8_")

	cup = env.reload(t, cup)
	assert.Equal(t, bracket.StateBracketCreated, cup.BracketState())
	assert.Equal(t, created.RemoteID, *cup.RemoteBracketID)

	participants, err := env.remote.GetParticipants(ctx, created.RemoteID)
	require.NoError(t, err)
	assert.Len(t, participants, 8)

	started, err := env.sync.StartBracket(ctx, cup.ID)
	require.NoError(t, err)
	assert.True(t, started.Started)
	assert.False(t, started.ManualStartRequired)

	info, err := env.remote.GetTournamentInfo(ctx, created.RemoteID)
	require.NoError(t, err)
	assert.Equal(t, challonge.StateUnderway, info.State)

	require.NotNil(t, started.Sync)
	assert.Len(t, started.Sync.Matches, 7)
	assert.Equal(t, 4, started.Sync.Resolved)
	assert.True(t, started.Sync.TeamsAssigned())
	assert.Empty(t, started.Sync.Unmatched)

	cup = env.reload(t, cup)
	assert.Equal(t, bracket.TournamentInProgress, cup.Status)
	assert.Equal(t, bracket.StateSynced, cup.BracketState())

	teams, err := env.store.ListTeams(ctx, cup.ID, nil)
	require.NoError(t, err)
	teamIDs := map[uuid.UUID]bool{}
	for _, team := range teams {
		teamIDs[team.ID] = true
	}

	matches, err := env.store.ListMatches(ctx, cup.ID)
	require.NoError(t, err)
	require.Len(t, matches, 7)
	for _, m := range matches {
		if m.Round == 1 {
			require.True(t, m.Resolved(), "round 1 match %d unresolved", m.RemoteMatchID)
			assert.True(t, teamIDs[*m.Team1ID])
			assert.True(t, teamIDs[*m.Team2ID])
		} else {
			assert.Nil(t, m.Team1ID)
			assert.Nil(t, m.Team2ID)
		}
	}
}

func TestResolvedMatchesFollowRemoteSlots(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cup := env.seedTournament(t, "Slots", bracket.SingleElimination, cup8Teams...)

	created, err := env.sync.CreateBracket(ctx, cup.ID)
	require.NoError(t, err)
	_, err = env.sync.StartBracket(ctx, cup.ID)
	require.NoError(t, err)

	// Report one quarterfinal so a semifinal gets a single filled slot.
	matches, err := env.store.ListMatches(ctx, cup.ID)
	require.NoError(t, err)
	first := matches[0]
	_, err = env.sync.ReportScore(ctx, first.ID, *first.Team1ID, "2-0")
	require.NoError(t, err)

	remoteMatches, err := env.remote.GetMatches(ctx, created.RemoteID)
	require.NoError(t, err)
	filled := map[int64]bool{}
	for _, rm := range remoteMatches {
		filled[rm.ID] = rm.BothSlotsFilled()
	}

	local, err := env.store.ListMatches(ctx, cup.ID)
	require.NoError(t, err)
	half := 0
	for _, m := range local {
		if filled[m.RemoteMatchID] {
			assert.True(t, m.Resolved())
		} else {
			assert.True(t, m.Team1ID == nil || m.Team2ID == nil)
			if m.Team1ID != nil || m.Team2ID != nil {
				half++
			}
		}
	}
	assert.Equal(t, 1, half)
}

func TestCreateBracketPartialFailureAndRetry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cup := env.seedTournament(t, "Partial", bracket.SingleElimination, cup8Teams...)

	env.remote.failAdd["Team C"] = true
	env.remote.failAdd["Team F"] = true

	created, err := env.sync.CreateBracket(ctx, cup.ID)
	require.NoError(t, err)
	assert.False(t, created.Complete())
	assert.Len(t, created.Added, 6)
	assert.Equal(t, []string{"Team C", "Team F"}, created.Failed)

	participants, err := env.remote.GetParticipants(ctx, created.RemoteID)
	require.NoError(t, err)
	assert.Len(t, participants, 6)

	// Remote tournament is kept even though some adds failed.
	assert.Equal(t, bracket.StateBracketCreated, env.reload(t, cup).BracketState())

	delete(env.remote.failAdd, "Team C")
	delete(env.remote.failAdd, "Team F")

	retry, err := env.sync.SyncParticipants(ctx, cup.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Team C", "Team F"}, retry.Added)
	assert.Empty(t, retry.Failed)

	again, err := env.sync.SyncParticipants(ctx, cup.ID)
	require.NoError(t, err)
	assert.Empty(t, again.Added)

	participants, err = env.remote.GetParticipants(ctx, created.RemoteID)
	require.NoError(t, err)
	assert.Len(t, participants, 8)
}

func TestSyncParticipantsAddsLateTeams(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cup := env.seedTournament(t, "Late", bracket.SingleElimination, "Team A", "Team B")

	_, err := env.sync.CreateBracket(ctx, cup.ID)
	require.NoError(t, err)

	_, err = env.tournaments.RegisterTeam(ctx, cup.ID, "Team C")
	require.NoError(t, err)
	_, err = env.tournaments.RegisterTeam(ctx, cup.ID, "Team D")
	require.NoError(t, err)
	_, err = env.tournaments.ApproveTeam(ctx, cup.ID, "Team C")
	require.NoError(t, err)

	result, err := env.sync.SyncParticipants(ctx, cup.ID)
	require.NoError(t, err)
	// Team D is still pending.
	assert.Equal(t, []string{"Team C"}, result.Added)
}

func TestPreconditionsRejectedWithoutRemoteCalls(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	noBracket := env.seedTournament(t, "NoBracket", bracket.SingleElimination, "Team A", "Team B")

	_, err := env.sync.SyncParticipants(ctx, noBracket.ID)
	assert.ErrorIs(t, err, ErrNoBracket)
	_, err = env.sync.StartBracket(ctx, noBracket.ID)
	assert.ErrorIs(t, err, ErrNoBracket)
	_, err = env.sync.RefreshStatus(ctx, noBracket.ID)
	assert.ErrorIs(t, err, ErrNoBracket)
	_, err = env.sync.SyncMatches(ctx, noBracket.ID)
	assert.ErrorIs(t, err, ErrNoBracket)
	_, err = env.sync.Finalize(ctx, noBracket.ID)
	assert.ErrorIs(t, err, ErrNoBracket)

	lonely := env.seedTournament(t, "Lonely", bracket.SingleElimination, "Team A")
	_, err = env.tournaments.RegisterTeam(ctx, lonely.ID, "Team Pending")
	require.NoError(t, err)
	_, err = env.sync.CreateBracket(ctx, lonely.ID)
	assert.ErrorIs(t, err, ErrNotEnoughTeams)

	_, err = env.sync.CreateBracket(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrTournamentNotFound)

	assert.Equal(t, 0, env.remote.totalCalls())
}

func TestCreateBracketOnlyOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cup := env.seedTournament(t, "Once", bracket.DoubleElimination, "Team A", "Team B")

	_, err := env.sync.CreateBracket(ctx, cup.ID)
	require.NoError(t, err)
	calls := env.remote.totalCalls()

	_, err = env.sync.CreateBracket(ctx, cup.ID)
	assert.ErrorIs(t, err, ErrBracketExists)
	assert.Equal(t, calls, env.remote.totalCalls())
	assert.Equal(t, 1, env.remote.callCount("create_tournament"))
}

func TestStartedBracketRejectsEdits(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cup := env.seedTournament(t, "Started", bracket.SingleElimination, "Team A", "Team B", "Team C", "Team D")

	_, err := env.sync.CreateBracket(ctx, cup.ID)
	require.NoError(t, err)
	_, err = env.sync.StartBracket(ctx, cup.ID)
	require.NoError(t, err)

	calls := env.remote.totalCalls()
	_, err = env.sync.StartBracket(ctx, cup.ID)
	assert.ErrorIs(t, err, ErrBracketStarted)
	_, err = env.sync.SyncParticipants(ctx, cup.ID)
	assert.ErrorIs(t, err, ErrBracketStarted)
	assert.Equal(t, calls, env.remote.totalCalls())
}

func TestManualStartFallback(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cup := env.seedTournament(t, "Manual", bracket.SingleElimination, "Team A", "Team B", "Team C", "Team D")

	created, err := env.sync.CreateBracket(ctx, cup.ID)
	require.NoError(t, err)

	env.remote.refuseStart = true
	started, err := env.sync.StartBracket(ctx, cup.ID)
	require.NoError(t, err)
	assert.True(t, started.ManualStartRequired)
	assert.False(t, started.Started)
	assert.Equal(t, created.RemoteURL, started.RemoteURL)

	cup = env.reload(t, cup)
	assert.True(t, cup.ManualStartPending)
	assert.Equal(t, bracket.StateBracketCreated, cup.BracketState())

	awaiting, err := env.store.ListAwaitingManualStart(ctx)
	require.NoError(t, err)
	require.Len(t, awaiting, 1)
	assert.Equal(t, cup.ID, awaiting[0].ID)

	refresh, err := env.sync.RefreshStatus(ctx, cup.ID)
	require.NoError(t, err)
	assert.False(t, refresh.Synced())
	assert.Equal(t, challonge.StatePending, refresh.RemoteState)
	assert.Equal(t, 4, refresh.ParticipantsCount)

	env.remote.startManually(created.RemoteID)

	refresh, err = env.sync.RefreshStatus(ctx, cup.ID)
	require.NoError(t, err)
	require.True(t, refresh.Synced())
	assert.Len(t, refresh.Sync.Matches, 3)
	assert.Equal(t, 2, refresh.Sync.Resolved)

	cup = env.reload(t, cup)
	assert.False(t, cup.ManualStartPending)
	assert.NotNil(t, cup.RemoteStartedAt)
	assert.Equal(t, bracket.TournamentInProgress, cup.Status)

	awaiting, err = env.store.ListAwaitingManualStart(ctx)
	require.NoError(t, err)
	assert.Empty(t, awaiting)
}

func TestSyncWithoutAssignedTeamsIsNotAnError(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cup := env.seedTournament(t, "Empty", bracket.DoubleElimination, "Team A", "Team B", "Team C", "Team D")

	_, err := env.sync.CreateBracket(ctx, cup.ID)
	require.NoError(t, err)

	env.remote.emptyStart = true
	started, err := env.sync.StartBracket(ctx, cup.ID)
	require.NoError(t, err)
	require.NotNil(t, started.Sync)
	assert.False(t, started.Sync.TeamsAssigned())
	assert.Len(t, started.Sync.Matches, 3)
	assert.Equal(t, bracket.TournamentInProgress, env.reload(t, cup).Status)
}

func TestSameTeamNamesDoNotCrossTournaments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := env.seedTournament(t, "First", bracket.SingleElimination, "Team A", "Team B")
	second := env.seedTournament(t, "Second", bracket.SingleElimination, "Team A", "Team B")

	for _, cup := range []*bracket.Tournament{first, second} {
		_, err := env.sync.CreateBracket(ctx, cup.ID)
		require.NoError(t, err)
		_, err = env.sync.StartBracket(ctx, cup.ID)
		require.NoError(t, err)
	}

	for _, cup := range []*bracket.Tournament{first, second} {
		teams, err := env.store.ListTeams(ctx, cup.ID, nil)
		require.NoError(t, err)
		own := map[uuid.UUID]bool{}
		for _, team := range teams {
			own[team.ID] = true
		}

		matches, err := env.store.ListMatches(ctx, cup.ID)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		require.True(t, matches[0].Resolved())
		assert.True(t, own[*matches[0].Team1ID])
		assert.True(t, own[*matches[0].Team2ID])
	}
}

func TestMapParticipantsFirstNameWins(t *testing.T) {
	a1 := bracket.Team{ID: uuid.New(), Name: "Team A"}
	a2 := bracket.Team{ID: uuid.New(), Name: "Team A"}
	b := bracket.Team{ID: uuid.New(), Name: "Team B"}

	ids, unmatched := mapParticipants([]challonge.Participant{
		{ID: 1, Name: "Team A"},
		{ID: 2, DisplayName: "Team B"},
		{ID: 3, Name: "team b"},
	}, []bracket.Team{a1, a2, b})

	assert.Equal(t, a1.ID, ids[1])
	assert.Equal(t, b.ID, ids[2])
	assert.NotContains(t, ids, int64(3))
	assert.Equal(t, []string{"team b"}, unmatched)
}

func TestMissingCredentialsSurfaceImmediately(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cup := env.seedTournament(t, "NoKey", bracket.SingleElimination, "Team A", "Team B")

	flow := NewBracketSync(env.store, challonge.NewClient(""), nil, false)
	_, err := flow.CreateBracket(ctx, cup.ID)
	assert.ErrorIs(t, err, challonge.ErrMissingCredentials)
	assert.Equal(t, bracket.StateNoBracket, env.reload(t, cup).BracketState())
	assert.Contains(t, UserMessage(err), "CHALLONGE_API_KEY")
}

func TestFinalize(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cup := env.seedTournament(t, "Final", bracket.SingleElimination, "Team A", "Team B")

	created, err := env.sync.CreateBracket(ctx, cup.ID)
	require.NoError(t, err)

	_, err = env.sync.Finalize(ctx, cup.ID)
	assert.ErrorIs(t, err, ErrBracketNotStarted)

	_, err = env.sync.StartBracket(ctx, cup.ID)
	require.NoError(t, err)

	finished, err := env.sync.Finalize(ctx, cup.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.TournamentCompleted, finished.Status)
	assert.Equal(t, bracket.TournamentCompleted, env.reload(t, cup).Status)

	info, err := env.remote.GetTournamentInfo(ctx, created.RemoteID)
	require.NoError(t, err)
	assert.Equal(t, challonge.StateComplete, info.State)

	// A second finalize does not call the remote service again.
	_, err = env.sync.Finalize(ctx, cup.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, env.remote.callCount("finalize_tournament"))
}

func TestRemoteSlug(t *testing.T) {
	id := uuid.MustParse("0a1b2c3d-0000-0000-0000-000000000000")

	assert.Equal(t, "spring_cup_2026_0a1b2c3d", remoteSlug(&bracket.Tournament{ID: id, Name: "Spring Cup 2026!"}))
	assert.Equal(t, "cup_0a1b2c3d", remoteSlug(&bracket.Tournament{ID: id, Name: "Кубок"}))
}
