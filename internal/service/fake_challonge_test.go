package service

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/AdamBeresnev/cup-bracket-bot/internal/challonge"
)

type fakeTournament struct {
	info         challonge.Tournament
	participants []challonge.Participant
	matches      []challonge.Match
}

// fakeChallonge is an in-memory stand-in for the Challonge API. Started
// brackets are single elimination over a power-of-two field.
type fakeChallonge struct {
	mu          sync.Mutex
	nextID      int64
	tournaments map[string]*fakeTournament
	calls       map[string]int

	failAdd     map[string]bool
	refuseStart bool
	emptyStart  bool
	swapErr     error
	swapDelay   time.Duration
}

func newFakeChallonge() *fakeChallonge {
	return &fakeChallonge{
		nextID:      1000,
		tournaments: map[string]*fakeTournament{},
		calls:       map[string]int{},
		failAdd:     map[string]bool{},
	}
}

func (f *fakeChallonge) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeChallonge) record(op string) {
	f.calls[op]++
}

func (f *fakeChallonge) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeChallonge) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeChallonge) get(tid string) (*fakeTournament, error) {
	t, ok := f.tournaments[tid]
	if !ok {
		return nil, &challonge.APIError{StatusCode: http.StatusNotFound, Messages: []string{"Tournament not found"}}
	}
	return t, nil
}

func (f *fakeChallonge) CreateTournament(ctx context.Context, params challonge.CreateTournamentParams) (*challonge.Tournament, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("create_tournament")

	for _, t := range f.tournaments {
		if t.info.URL == params.URL {
			return nil, fmt.Errorf("%w: %s", challonge.ErrSlugTaken, params.URL)
		}
	}
	t := &fakeTournament{info: challonge.Tournament{
		ID:             f.id(),
		Name:           params.Name,
		URL:            params.URL,
		FullURL:        "https://challonge.com/" + params.URL,
		State:          challonge.StatePending,
		TournamentType: params.Type,
	}}
	f.tournaments[t.info.RemoteID()] = t
	info := t.info
	return &info, nil
}

func (f *fakeChallonge) AddParticipant(ctx context.Context, tid, name string) (*challonge.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("add_participant")

	t, err := f.get(tid)
	if err != nil {
		return nil, err
	}
	if f.failAdd[name] {
		return nil, &challonge.APIError{StatusCode: http.StatusInternalServerError, Messages: []string{"boom"}}
	}
	p := challonge.Participant{ID: f.id(), Name: name, Seed: len(t.participants) + 1}
	t.participants = append(t.participants, p)
	return &p, nil
}

func (f *fakeChallonge) GetParticipants(ctx context.Context, tid string) ([]challonge.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("get_participants")

	t, err := f.get(tid)
	if err != nil {
		return nil, err
	}
	out := append([]challonge.Participant(nil), t.participants...)
	sort.Slice(out, func(i, j int) bool { return out[i].Seed < out[j].Seed })
	return out, nil
}

func (f *fakeChallonge) SwapParticipants(ctx context.Context, tid string, a, b int64) error {
	time.Sleep(f.swapDelay)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("swap_participants")

	if f.swapErr != nil {
		return f.swapErr
	}
	t, err := f.get(tid)
	if err != nil {
		return err
	}
	ia, ib := -1, -1
	for i, p := range t.participants {
		switch p.ID {
		case a:
			ia = i
		case b:
			ib = i
		}
	}
	if ia < 0 || ib < 0 {
		return challonge.ErrParticipantNotFound
	}
	t.participants[ia].Seed, t.participants[ib].Seed = t.participants[ib].Seed, t.participants[ia].Seed
	return nil
}

func (f *fakeChallonge) StartTournament(ctx context.Context, tid string) (*challonge.Tournament, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("start_tournament")

	t, err := f.get(tid)
	if err != nil {
		return nil, err
	}
	if f.refuseStart {
		return nil, fmt.Errorf("%w: %v", challonge.ErrManualStartRequired,
			&challonge.APIError{StatusCode: http.StatusForbidden, Messages: []string{"not supported by this API version"}})
	}
	f.start(t)
	info := t.info
	return &info, nil
}

// startManually is what an organizer clicking "start" on the website does.
func (f *fakeChallonge) startManually(tid string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.start(f.tournaments[tid])
}

func (f *fakeChallonge) start(t *fakeTournament) {
	t.info.State = challonge.StateUnderway

	seeded := append([]challonge.Participant(nil), t.participants...)
	sort.Slice(seeded, func(i, j int) bool { return seeded[i].Seed < seeded[j].Seed })

	n := len(seeded)
	round := 1
	for size := n / 2; size >= 1; size /= 2 {
		for k := 0; k < size; k++ {
			m := challonge.Match{
				ID:         f.id(),
				Round:      round,
				Identifier: strconv.Itoa(len(t.matches) + 1),
				State:      challonge.MatchPending,
			}
			if round == 1 && !f.emptyStart {
				p1, p2 := seeded[k].ID, seeded[n-1-k].ID
				m.Player1ID, m.Player2ID = &p1, &p2
				m.State = challonge.MatchOpen
			}
			t.matches = append(t.matches, m)
		}
		round++
	}
}

func (f *fakeChallonge) GetTournamentInfo(ctx context.Context, tid string) (*challonge.Tournament, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("get_tournament_info")

	t, err := f.get(tid)
	if err != nil {
		return nil, err
	}
	info := t.info
	info.ParticipantsCount = len(t.participants)
	return &info, nil
}

func (f *fakeChallonge) GetMatches(ctx context.Context, tid string) ([]challonge.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("get_matches")

	t, err := f.get(tid)
	if err != nil {
		return nil, err
	}
	return append([]challonge.Match(nil), t.matches...), nil
}

func (f *fakeChallonge) UpdateMatchScore(ctx context.Context, tid string, matchID, winnerID int64, scoresCSV string) (*challonge.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("update_match_score")

	t, err := f.get(tid)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := range t.matches {
		if t.matches[i].ID == matchID {
			idx = i
		}
	}
	if idx < 0 {
		return nil, &challonge.APIError{StatusCode: http.StatusNotFound, Messages: []string{"Match not found"}}
	}
	m := &t.matches[idx]
	w := winnerID
	m.WinnerID = &w
	m.ScoresCSV = scoresCSV
	m.State = challonge.MatchComplete

	// Position inside the round decides the next match and its slot.
	pos := 0
	for i := 0; i < idx; i++ {
		if t.matches[i].Round == m.Round {
			pos++
		}
	}
	next := 0
	for i := range t.matches {
		if t.matches[i].Round != m.Round+1 {
			continue
		}
		if next == pos/2 {
			if pos%2 == 0 {
				t.matches[i].Player1ID = &w
			} else {
				t.matches[i].Player2ID = &w
			}
			if t.matches[i].BothSlotsFilled() {
				t.matches[i].State = challonge.MatchOpen
			}
			break
		}
		next++
	}

	out := *m
	return &out, nil
}

func (f *fakeChallonge) FinalizeTournament(ctx context.Context, tid string) (*challonge.Tournament, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("finalize_tournament")

	t, err := f.get(tid)
	if err != nil {
		return nil, err
	}
	t.info.State = challonge.StateComplete
	info := t.info
	return &info, nil
}

func (f *fakeChallonge) seeds(tid string) map[int64]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[int64]int{}
	for _, p := range f.tournaments[tid].participants {
		out[p.ID] = p.Seed
	}
	return out
}
