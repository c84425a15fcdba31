package factors

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/liliganster/tp-companion/internal/core/domain"
	"github.com/liliganster/tp-companion/internal/core/ports"
	"github.com/liliganster/tp-companion/internal/infrastructure/resilience"
)

// ClimatiqClient estimates the emissions of one liter of fuel.
type ClimatiqClient struct {
	baseURL     string
	dataVersion string
	activityIDs map[domain.FuelType]string
	httpClient  *http.Client
	exec        *resilience.Executor
}

func NewClimatiqClient(baseURL, apiKey, dataVersion string, activityIDs map[domain.FuelType]string, timeout time.Duration, exec *resilience.Executor) *ClimatiqClient {
	c := &ClimatiqClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		dataVersion: dataVersion,
		activityIDs: activityIDs,
		exec:        exec,
	}
	if strings.TrimSpace(apiKey) != "" {
		c.httpClient = oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: apiKey,
			TokenType:   "Bearer",
		}))
		c.httpClient.Timeout = timeout
	}
	return c
}

type climatiqEstimateRequest struct {
	EmissionFactor struct {
		ActivityID  string `json:"activity_id"`
		DataVersion string `json:"data_version"`
	} `json:"emission_factor"`
	Parameters struct {
		Volume     float64 `json:"volume"`
		VolumeUnit string  `json:"volume_unit"`
	} `json:"parameters"`
}

type climatiqEstimateResponse struct {
	CO2e     float64 `json:"co2e"`
	CO2eUnit string  `json:"co2e_unit"`
}

func (c *ClimatiqClient) FuelFactorPerLiter(ctx context.Context, fuelType domain.FuelType) (ports.FactorReading, error) {
	if c.httpClient == nil {
		return ports.FactorReading{}, domain.WrapError(domain.ErrConfiguration, "climatiq estimate", errors.New("api key not set"))
	}
	activityID := c.activityIDs[fuelType]
	if activityID == "" {
		return ports.FactorReading{}, domain.WrapError(domain.ErrInvalidInput, "climatiq estimate", fmt.Errorf("no activity id for %s", fuelType))
	}

	var payload climatiqEstimateRequest
	payload.EmissionFactor.ActivityID = activityID
	payload.EmissionFactor.DataVersion = c.dataVersion
	payload.Parameters.Volume = 1
	payload.Parameters.VolumeUnit = "l"
	body, err := json.Marshal(payload)
	if err != nil {
		return ports.FactorReading{}, fmt.Errorf("marshal climatiq request: %w", err)
	}

	resp, err := resilience.Call(ctx, c.exec, "climatiq.estimate", func(ctx context.Context) (climatiqEstimateResponse, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/data/v1/estimate", bytes.NewReader(body))
		if err != nil {
			return climatiqEstimateResponse{}, fmt.Errorf("create climatiq request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		var out climatiqEstimateResponse
		err = resilience.DoJSON(c.httpClient, req, "climatiq", "estimate", &out)
		return out, err
	}, resilience.ClassifyHTTPError)
	if err != nil {
		return ports.FactorReading{}, resilience.WrapUpstream("climatiq estimate", err)
	}
	return ports.FactorReading{Value: resp.CO2e, Unit: resp.CO2eUnit}, nil
}
