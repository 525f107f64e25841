package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/AdamBeresnev/cup-bracket-bot/internal/bracket"
	"github.com/AdamBeresnev/cup-bracket-bot/internal/db"
	"github.com/AdamBeresnev/cup-bracket-bot/internal/session"
	"github.com/AdamBeresnev/cup-bracket-bot/internal/store"
	"github.com/alexedwards/scs/v2/memstore"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates an in-memory SQLite database and applies migrations
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := db.Connect(db.DriverSQLite, "file::memory:")
	require.NoError(t, err, "Failed to connect to in-memory DB")

	err = db.RunMigrations(database, "file://../../migrations/sqlite")
	require.NoError(t, err, "Failed to apply migrations")

	t.Cleanup(func() { database.Close() })
	return database
}

type testEnv struct {
	store       *store.TournamentStore
	remote      *fakeChallonge
	sync        *BracketSync
	tournaments *TournamentService
	swaps       *SwapEditor
	sessions    *session.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	tournamentStore := store.NewTournamentStore(setupTestDB(t))
	remote := newFakeChallonge()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := session.NewStore(memstore.NewWithCleanupInterval(0), 0)

	return &testEnv{
		store:       tournamentStore,
		remote:      remote,
		sync:        NewBracketSync(tournamentStore, remote, logger, true),
		tournaments: NewTournamentService(tournamentStore),
		swaps:       NewSwapEditor(tournamentStore, sessions, remote, logger),
		sessions:    sessions,
	}
}

// seedTournament creates a tournament with every listed team approved.
func (env *testEnv) seedTournament(t *testing.T, name string, format bracket.TournamentFormat, teams ...string) *bracket.Tournament {
	t.Helper()
	ctx := context.Background()

	tournament, err := env.tournaments.CreateTournament(ctx, name, format)
	require.NoError(t, err)
	for _, team := range teams {
		_, err := env.tournaments.RegisterTeam(ctx, tournament.ID, team)
		require.NoError(t, err)
		_, err = env.tournaments.ApproveTeam(ctx, tournament.ID, team)
		require.NoError(t, err)
	}
	return tournament
}

func (env *testEnv) reload(t *testing.T, tournament *bracket.Tournament) *bracket.Tournament {
	t.Helper()
	fresh, err := env.store.GetTournament(context.Background(), tournament.ID)
	require.NoError(t, err)
	return fresh
}

var cup8Teams = []string{"Team A", "Team B", "Team C", "Team D", "Team E", "Team F", "Team G", "Team H"}
