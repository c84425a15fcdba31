package domain

// UserProfile carries the per-user settings the pipeline reads.
type UserProfile struct {
	UserID      string `json:"userId"`
	City        string `json:"city,omitempty"`
	Country     string `json:"country,omitempty"`
	CountryCode string `json:"countryCode,omitempty"`
	BaseAddress string `json:"baseAddress,omitempty"`
	Plan        string `json:"plan,omitempty"`
}

// LocationCandidate is the outcome of resolving one raw location string.
// When UsedFallback is set the geocoder could not confirm the address and
// FormattedAddress equals RawText.
type LocationCandidate struct {
	RawText          string `json:"rawText"`
	Query            string `json:"query"`
	FormattedAddress string `json:"formattedAddress"`
	UsedFallback     bool   `json:"usedFallback"`
}

// Address returns the best available address for routing and display.
func (c LocationCandidate) Address() string {
	if c.FormattedAddress != "" {
		return c.FormattedAddress
	}
	return c.RawText
}

type GeocodeResult struct {
	FormattedAddress string
	Lat              float64
	Lng              float64
}

// RouteDistance is the round-trip distance base → waypoints → base.
// UsedFallback means routing failed and DistanceKm is the caller's value.
type RouteDistance struct {
	TotalMeters  float64  `json:"totalMeters"`
	DistanceKm   *float64 `json:"distanceKm"`
	UsedFallback bool     `json:"usedFallback"`
}
