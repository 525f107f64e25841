package challonge

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
)

func participantsPath(tournamentID string) string {
	return "/tournaments/" + url.PathEscape(tournamentID) + "/participants"
}

// AddParticipant is not idempotent: calling it twice creates two participants.
func (c *Client) AddParticipant(ctx context.Context, tournamentID, name string) (*Participant, error) {
	form := url.Values{}
	form.Set("participant[name]", name)

	body, err := c.do(ctx, http.MethodPost, participantsPath(tournamentID)+".json", form)
	if err != nil {
		return nil, err
	}
	return decodeOne[Participant](body, "participant")
}

// GetParticipants returns the participants ordered by seed.
func (c *Client) GetParticipants(ctx context.Context, tournamentID string) ([]Participant, error) {
	body, err := c.do(ctx, http.MethodGet, participantsPath(tournamentID)+".json", nil)
	if err != nil {
		return nil, err
	}
	participants, err := decodeList[Participant](body, "participant")
	if err != nil {
		return nil, err
	}
	sort.SliceStable(participants, func(i, j int) bool {
		return participants[i].Seed < participants[j].Seed
	})
	return participants, nil
}

func (c *Client) setSeed(ctx context.Context, tournamentID string, participantID int64, seed int) error {
	form := url.Values{}
	form.Set("participant[seed]", strconv.Itoa(seed))
	path := participantsPath(tournamentID) + "/" + strconv.FormatInt(participantID, 10) + ".json"
	_, err := c.do(ctx, http.MethodPut, path, form)
	return err
}

// SwapParticipants exchanges the seeds of a and b. Challonge shifts the
// participants between old and new seed on every update, so moving a to b's
// seed and then b to a's original seed leaves every other seed where it was.
func (c *Client) SwapParticipants(ctx context.Context, tournamentID string, a, b int64) error {
	if a == b {
		return ErrSameParticipant
	}

	participants, err := c.GetParticipants(ctx, tournamentID)
	if err != nil {
		return err
	}
	seedA, seedB := -1, -1
	for _, p := range participants {
		switch p.ID {
		case a:
			seedA = p.Seed
		case b:
			seedB = p.Seed
		}
	}
	if seedA < 0 {
		return fmt.Errorf("%w: %d", ErrParticipantNotFound, a)
	}
	if seedB < 0 {
		return fmt.Errorf("%w: %d", ErrParticipantNotFound, b)
	}

	if err := c.setSeed(ctx, tournamentID, a, seedB); err != nil {
		return err
	}
	if err := c.setSeed(ctx, tournamentID, b, seedA); err != nil {
		return fmt.Errorf("%w: participant %d moved to seed %d: %v", ErrSwapIncomplete, a, seedB, err)
	}
	return nil
}
