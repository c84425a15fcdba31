package google

import (
	"context"
	"net/url"
	"strings"

	"github.com/liliganster/tp-companion/internal/core/domain"
)

type Geocoder struct {
	client *Client
}

func NewGeocoder(client *Client) *Geocoder {
	return &Geocoder{client: client}
}

type geocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

func (r geocodeResponse) status() (string, string) { return r.Status, r.ErrorMessage }

// Geocode returns the first match. region is a ccTLD bias such as "de".
func (g *Geocoder) Geocode(ctx context.Context, query, region string) (domain.GeocodeResult, error) {
	params := url.Values{}
	params.Set("address", query)
	if region = strings.ToLower(strings.TrimSpace(region)); region != "" {
		params.Set("region", region)
	}

	resp, err := get[geocodeResponse](ctx, g.client, "/maps/api/geocode/json", "geocode", params)
	if err != nil {
		return domain.GeocodeResult{}, err
	}
	if len(resp.Results) == 0 {
		return domain.GeocodeResult{}, domain.WrapError(domain.ErrNotFound, "maps geocode", &StatusError{Operation: "geocode", Status: "ZERO_RESULTS"})
	}
	first := resp.Results[0]
	return domain.GeocodeResult{
		FormattedAddress: first.FormattedAddress,
		Lat:              first.Geometry.Location.Lat,
		Lng:              first.Geometry.Location.Lng,
	}, nil
}
