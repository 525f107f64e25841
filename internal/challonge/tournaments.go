package challonge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

type CreateTournamentParams struct {
	Name        string
	URL         string
	Type        TournamentType
	Description string
	Private     bool
}

func (c *Client) CreateTournament(ctx context.Context, params CreateTournamentParams) (*Tournament, error) {
	form := url.Values{}
	form.Set("tournament[name]", params.Name)
	form.Set("tournament[tournament_type]", string(params.Type))
	form.Set("tournament[private]", strconv.FormatBool(params.Private))
	if params.URL != "" {
		form.Set("tournament[url]", params.URL)
	}
	if params.Description != "" {
		form.Set("tournament[description]", params.Description)
	}

	body, err := c.do(ctx, http.MethodPost, "/tournaments.json", form)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.contains("url") && apiErr.contains("taken") {
			return nil, fmt.Errorf("%w: %s", ErrSlugTaken, params.URL)
		}
		return nil, err
	}
	return decodeOne[Tournament](body, "tournament")
}

func (c *Client) GetTournamentInfo(ctx context.Context, tournamentID string) (*Tournament, error) {
	body, err := c.do(ctx, http.MethodGet, "/tournaments/"+url.PathEscape(tournamentID)+".json", nil)
	if err != nil {
		return nil, err
	}
	return decodeOne[Tournament](body, "tournament")
}

// StartTournament returns ErrManualStartRequired when the API refuses the
// operation outright, so the caller can fall back to a human starting it.
func (c *Client) StartTournament(ctx context.Context, tournamentID string) (*Tournament, error) {
	body, err := c.do(ctx, http.MethodPost, "/tournaments/"+url.PathEscape(tournamentID)+"/start.json", url.Values{})
	if err != nil {
		if refusesStart(err) {
			return nil, fmt.Errorf("%w: %v", ErrManualStartRequired, err)
		}
		return nil, err
	}
	return decodeOne[Tournament](body, "tournament")
}

func refusesStart(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.StatusCode {
	case http.StatusForbidden, http.StatusMethodNotAllowed, http.StatusNotImplemented:
		return true
	}
	return apiErr.contains("not supported") || apiErr.contains("api version")
}

func (c *Client) FinalizeTournament(ctx context.Context, tournamentID string) (*Tournament, error) {
	body, err := c.do(ctx, http.MethodPost, "/tournaments/"+url.PathEscape(tournamentID)+"/finalize.json", url.Values{})
	if err != nil {
		return nil, err
	}
	return decodeOne[Tournament](body, "tournament")
}
