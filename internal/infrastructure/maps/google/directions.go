package google

import (
	"context"
	"net/url"
	"strings"
)

type Directions struct {
	client *Client
}

func NewDirections(client *Client) *Directions {
	return &Directions{client: client}
}

type directionsResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Routes       []struct {
		Legs []struct {
			Distance struct {
				Value float64 `json:"value"`
			} `json:"distance"`
		} `json:"legs"`
	} `json:"routes"`
}

func (r directionsResponse) status() (string, string) { return r.Status, r.ErrorMessage }

// RouteMeters sums the leg distances of the first route in driving mode.
func (d *Directions) RouteMeters(ctx context.Context, origin, destination string, waypoints []string) (float64, error) {
	params := url.Values{}
	params.Set("origin", origin)
	params.Set("destination", destination)
	params.Set("mode", "driving")
	if len(waypoints) > 0 {
		params.Set("waypoints", strings.Join(waypoints, "|"))
	}

	resp, err := get[directionsResponse](ctx, d.client, "/maps/api/directions/json", "directions", params)
	if err != nil {
		return 0, err
	}
	if len(resp.Routes) == 0 {
		return 0, mapStatusError("maps directions", &StatusError{Operation: "directions", Status: "ZERO_RESULTS"})
	}

	var total float64
	for _, leg := range resp.Routes[0].Legs {
		total += leg.Distance.Value
	}
	return total, nil
}
