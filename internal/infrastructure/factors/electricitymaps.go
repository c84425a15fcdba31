package factors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/liliganster/tp-companion/internal/core/domain"
	"github.com/liliganster/tp-companion/internal/core/ports"
	"github.com/liliganster/tp-companion/internal/infrastructure/resilience"
)

// GridClient reads the latest carbon intensity of a country's grid zone.
type GridClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	exec       *resilience.Executor
}

func NewGridClient(baseURL, apiKey string, timeout time.Duration, exec *resilience.Executor) *GridClient {
	return &GridClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		exec:       exec,
	}
}

type carbonIntensityResponse struct {
	Zone            string   `json:"zone"`
	CarbonIntensity *float64 `json:"carbonIntensity"`
}

func (c *GridClient) CarbonIntensity(ctx context.Context, countryCode string) (ports.FactorReading, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return ports.FactorReading{}, domain.WrapError(domain.ErrConfiguration, "grid intensity", errors.New("api key not set"))
	}

	endpoint := c.baseURL + "/v3/carbon-intensity/latest?" + url.Values{"zone": {countryCode}}.Encode()
	resp, err := resilience.Call(ctx, c.exec, "electricitymaps.latest", func(ctx context.Context) (carbonIntensityResponse, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return carbonIntensityResponse{}, fmt.Errorf("create grid request: %w", err)
		}
		req.Header.Set("auth-token", c.apiKey)

		var out carbonIntensityResponse
		err = resilience.DoJSON(c.httpClient, req, "electricitymaps", "latest", &out)
		return out, err
	}, resilience.ClassifyHTTPError)
	if err != nil {
		return ports.FactorReading{}, resilience.WrapUpstream("grid intensity", err)
	}
	if resp.CarbonIntensity == nil {
		return ports.FactorReading{}, domain.WrapError(domain.ErrUpstream, "grid intensity", errors.New("carbonIntensity missing"))
	}
	return ports.FactorReading{Value: *resp.CarbonIntensity, Unit: "g"}, nil
}
