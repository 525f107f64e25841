package challonge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "test-key"

// seedServer keeps participants in seed order and reseeds the way Challonge does:
// moving one participant shifts everyone between its old and new position.
type seedServer struct {
	order  []Participant
	nested bool
	puts   int
}

func (s *seedServer) renumber() {
	for i := range s.order {
		s.order[i].Seed = i + 1
	}
}

func (s *seedServer) move(id int64, seed int) bool {
	idx := -1
	for i, p := range s.order {
		if p.ID == id {
			idx = i
		}
	}
	if idx < 0 {
		return false
	}
	p := s.order[idx]
	s.order = append(s.order[:idx], s.order[idx+1:]...)
	pos := seed - 1
	if pos > len(s.order) {
		pos = len(s.order)
	}
	s.order = append(s.order[:pos], append([]Participant{p}, s.order[pos:]...)...)
	s.renumber()
	return true
}

func (s *seedServer) seeds() map[int64]int {
	out := make(map[int64]int, len(s.order))
	for _, p := range s.order {
		out[p.ID] = p.Seed
	}
	return out
}

func (s *seedServer) handler(t *testing.T) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, testAPIKey, r.URL.Query().Get("api_key"))
			next.ServeHTTP(w, r)
		})
	})
	r.Get("/tournaments/{tid}/participants.json", func(w http.ResponseWriter, r *http.Request) {
		items := make([]interface{}, 0, len(s.order))
		for _, p := range s.order {
			if s.nested {
				items = append(items, map[string]Participant{"participant": p})
			} else {
				items = append(items, p)
			}
		}
		json.NewEncoder(w).Encode(items)
	})
	r.Put("/tournaments/{tid}/participants/{pid}.json", func(w http.ResponseWriter, r *http.Request) {
		s.puts++
		id, _ := strconv.ParseInt(chi.URLParam(r, "pid"), 10, 64)
		seed, err := strconv.Atoi(r.FormValue("participant[seed]"))
		if err != nil || !s.move(id, seed) {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string][]string{"errors": {"Participant not found"}})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"participant": map[string]interface{}{"id": id, "seed": seed}})
	})
	return r
}

func newSeedServer(nested bool, names ...string) *seedServer {
	s := &seedServer{nested: nested}
	for i, name := range names {
		s.order = append(s.order, Participant{ID: int64(100 + i), Name: name})
	}
	s.renumber()
	return s
}

func TestMissingCredentialsSkipsNetwork(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	client := NewClient("  ", WithBaseURL(srv.URL))
	assert.False(t, client.Configured())

	_, err := client.GetTournamentInfo(context.Background(), "1")
	assert.ErrorIs(t, err, ErrMissingCredentials)
	_, err = client.AddParticipant(context.Background(), "1", "Team A")
	assert.ErrorIs(t, err, ErrMissingCredentials)
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestCreateTournament(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{
			name: "nested under type key",
			body: `{"tournament":{"id":42,"name":"Cup8","url":"cup8","full_challonge_url":"https://challonge.com/cup8","state":"pending","tournament_type":"single elimination"}}`,
		},
		{
			name: "flat record",
			body: `{"id":42,"name":"Cup8","url":"cup8","full_challonge_url":"https://challonge.com/cup8","state":"pending","tournament_type":"single elimination"}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/tournaments.json", r.URL.Path)
				require.NoError(t, r.ParseForm())
				assert.Equal(t, "Cup8", r.PostForm.Get("tournament[name]"))
				assert.Equal(t, "single elimination", r.PostForm.Get("tournament[tournament_type]"))
				assert.Equal(t, "cup8", r.PostForm.Get("tournament[url]"))
				assert.Equal(t, "true", r.PostForm.Get("tournament[private]"))
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			client := NewClient(testAPIKey, WithBaseURL(srv.URL))
			tournament, err := client.CreateTournament(context.Background(), CreateTournamentParams{
				Name:    "Cup8",
				URL:     "cup8",
				Type:    SingleElimination,
				Private: true,
			})
			require.NoError(t, err)
			assert.Equal(t, "42", tournament.RemoteID())
			assert.Equal(t, "https://challonge.com/cup8", tournament.PublicURL())
			assert.Equal(t, StatePending, tournament.State)
		})
	}
}

func TestCreateTournamentSlugTaken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"errors":["URL has already been taken"]}`))
	}))
	defer srv.Close()

	client := NewClient(testAPIKey, WithBaseURL(srv.URL))
	_, err := client.CreateTournament(context.Background(), CreateTournamentParams{Name: "Cup8", URL: "cup8", Type: SingleElimination})
	assert.ErrorIs(t, err, ErrSlugTaken)
}

func TestGetParticipantsShapes(t *testing.T) {
	for _, nested := range []bool{true, false} {
		t.Run("nested="+strconv.FormatBool(nested), func(t *testing.T) {
			server := newSeedServer(nested, "Team A", "Team B", "Team C")
			server.move(102, 1) // Team C first
			srv := httptest.NewServer(server.handler(t))
			defer srv.Close()

			client := NewClient(testAPIKey, WithBaseURL(srv.URL))
			participants, err := client.GetParticipants(context.Background(), "7")
			require.NoError(t, err)
			require.Len(t, participants, 3)
			assert.Equal(t, "Team C", participants[0].Label())
			assert.Equal(t, 1, participants[0].Seed)
			assert.Equal(t, "Team A", participants[1].Label())
			assert.Equal(t, "Team B", participants[2].Label())
		})
	}
}

func TestGetParticipantsWrappedList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"participants":[{"participant":{"id":2,"display_name":"Beta","seed":2}},{"id":1,"name":"Alpha","seed":1}]}`))
	}))
	defer srv.Close()

	participants, err := NewClient(testAPIKey, WithBaseURL(srv.URL)).GetParticipants(context.Background(), "7")
	require.NoError(t, err)
	require.Len(t, participants, 2)
	assert.Equal(t, "Alpha", participants[0].Label())
	assert.Equal(t, "Beta", participants[1].Label())
}

func TestSwapParticipantsRoundTrip(t *testing.T) {
	server := newSeedServer(true, "A", "B", "C", "D", "E", "F")
	srv := httptest.NewServer(server.handler(t))
	defer srv.Close()

	client := NewClient(testAPIKey, WithBaseURL(srv.URL))
	ctx := context.Background()
	before := server.seeds()

	// B (seed 2) and E (seed 5)
	require.NoError(t, client.SwapParticipants(ctx, "9", 101, 104))
	after := server.seeds()
	assert.Equal(t, before[104], after[101])
	assert.Equal(t, before[101], after[104])
	for id, seed := range before {
		if id != 101 && id != 104 {
			assert.Equal(t, seed, after[id], "participant %d moved", id)
		}
	}

	// Same swap in the opposite argument order restores everything.
	require.NoError(t, client.SwapParticipants(ctx, "9", 104, 101))
	assert.Equal(t, before, server.seeds())

	require.NoError(t, client.SwapParticipants(ctx, "9", 101, 104))
	require.NoError(t, client.SwapParticipants(ctx, "9", 101, 104))
	assert.Equal(t, before, server.seeds())
}

func TestSwapParticipantsRejects(t *testing.T) {
	server := newSeedServer(false, "A", "B")
	srv := httptest.NewServer(server.handler(t))
	defer srv.Close()

	client := NewClient(testAPIKey, WithBaseURL(srv.URL))

	err := client.SwapParticipants(context.Background(), "9", 100, 100)
	assert.ErrorIs(t, err, ErrSameParticipant)

	err = client.SwapParticipants(context.Background(), "9", 100, 555)
	assert.ErrorIs(t, err, ErrParticipantNotFound)
	assert.Equal(t, 0, server.puts)
}

func TestStartTournament(t *testing.T) {
	testCases := []struct {
		name         string
		status       int
		body         string
		manualStart  bool
		expectAPIErr bool
	}{
		{name: "started", status: http.StatusOK, body: `{"tournament":{"id":5,"state":"underway"}}`},
		{name: "forbidden by api version", status: http.StatusForbidden, body: `{"errors":["Forbidden"]}`, manualStart: true},
		{name: "not supported message", status: http.StatusUnprocessableEntity, body: `{"errors":"Starting is not supported in this API version"}`, manualStart: true},
		{name: "validation failure", status: http.StatusUnprocessableEntity, body: `{"errors":["At least 2 participants are required"]}`, expectAPIErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/tournaments/5/start.json", r.URL.Path)
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			tournament, err := NewClient(testAPIKey, WithBaseURL(srv.URL)).StartTournament(context.Background(), "5")
			switch {
			case tc.manualStart:
				assert.ErrorIs(t, err, ErrManualStartRequired)
			case tc.expectAPIErr:
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, tc.status, apiErr.StatusCode)
				assert.NotErrorIs(t, err, ErrManualStartRequired)
			default:
				require.NoError(t, err)
				assert.True(t, tournament.State.Started())
			}
		})
	}
}

func TestGetMatches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"match":{"id":1,"round":1,"state":"open","player1_id":10,"player2_id":11,"winner_id":null,"scores_csv":""}},
			{"id":2,"round":2,"state":"pending","player1_id":null,"player2_id":null},
			{"match":{"id":3,"round":-1,"state":"pending","player1_id":12}}
		]`))
	}))
	defer srv.Close()

	matches, err := NewClient(testAPIKey, WithBaseURL(srv.URL)).GetMatches(context.Background(), "5")
	require.NoError(t, err)
	require.Len(t, matches, 3)

	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	assert.True(t, matches[0].BothSlotsFilled())
	assert.Equal(t, MatchOpen, matches[0].State)
	assert.False(t, matches[1].BothSlotsFilled())
	assert.Nil(t, matches[1].Player1ID)
	assert.Equal(t, -1, matches[2].Round)
	require.NotNil(t, matches[2].Player1ID)
	assert.Equal(t, int64(12), *matches[2].Player1ID)
}

func TestUpdateMatchScoreAndFinalize(t *testing.T) {
	r := chi.NewRouter()
	r.Put("/tournaments/{tid}/matches/{mid}.json", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "88", chi.URLParam(r, "mid"))
		assert.Equal(t, "10", r.FormValue("match[winner_id]"))
		assert.Equal(t, "2-1", r.FormValue("match[scores_csv]"))
		w.Write([]byte(`{"match":{"id":88,"state":"complete","winner_id":10,"scores_csv":"2-1"}}`))
	})
	r.Post("/tournaments/{tid}/finalize.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tournament":{"id":5,"state":"complete"}}`))
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	client := NewClient(testAPIKey, WithBaseURL(srv.URL))
	match, err := client.UpdateMatchScore(context.Background(), "5", 88, 10, "2-1")
	require.NoError(t, err)
	assert.Equal(t, MatchComplete, match.State)

	tournament, err := client.FinalizeTournament(context.Background(), "5")
	require.NoError(t, err)
	assert.Equal(t, StateComplete, tournament.State)
}

func TestTransportErrorIsNotAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := NewClient(testAPIKey, WithBaseURL(srv.URL)).GetTournamentInfo(context.Background(), "5")
	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}
