package challonge

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

func (c *Client) GetMatches(ctx context.Context, tournamentID string) ([]Match, error) {
	body, err := c.do(ctx, http.MethodGet, "/tournaments/"+url.PathEscape(tournamentID)+"/matches.json", nil)
	if err != nil {
		return nil, err
	}
	return decodeList[Match](body, "match")
}

// UpdateMatchScore reports the result; scoresCSV looks like "2-1" or "3-1,1-3,3-0".
func (c *Client) UpdateMatchScore(ctx context.Context, tournamentID string, matchID, winnerID int64, scoresCSV string) (*Match, error) {
	form := url.Values{}
	form.Set("match[winner_id]", strconv.FormatInt(winnerID, 10))
	form.Set("match[scores_csv]", scoresCSV)

	path := "/tournaments/" + url.PathEscape(tournamentID) + "/matches/" + strconv.FormatInt(matchID, 10) + ".json"
	body, err := c.do(ctx, http.MethodPut, path, form)
	if err != nil {
		return nil, err
	}
	return decodeOne[Match](body, "match")
}
