package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/carsafe/carsafe/internal/pkg/infrastructure/tracing"
	"github.com/carsafe/carsafe/pkg/types"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("carsafe-client")

// Client talks to the carsafe REST API. It is used by the fleet simulator
// and is usable by any other service that reports on behalf of vehicles.
type Client interface {
	RegisterVehicle(ctx context.Context, v types.Vehicle) error
	SendTelemetry(ctx context.Context, t types.Telemetry) error
	ReportFault(ctx context.Context, f types.Fault) (types.Fault, error)
	LatestTelemetry(ctx context.Context, vehicleID string) (types.Telemetry, error)
}

type carsafeClient struct {
	url        string
	httpClient http.Client
}

func New(apiURL string) Client {
	return &carsafeClient{
		url: apiURL,
		httpClient: http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (c *carsafeClient) RegisterVehicle(ctx context.Context, v types.Vehicle) error {
	var err error
	ctx, span := tracer.Start(ctx, "register-vehicle")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	resp, err := c.post(ctx, "/api/v0/vehicles", v)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Conflicts are fine, the vehicle is already known.
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusConflict {
		err = fmt.Errorf("vehicle registration failed with status %d", resp.StatusCode)
		return err
	}

	return nil
}

func (c *carsafeClient) SendTelemetry(ctx context.Context, t types.Telemetry) error {
	var err error
	ctx, span := tracer.Start(ctx, "send-telemetry")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	resp, err := c.post(ctx, "/api/v0/telemetry", t)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		err = fmt.Errorf("telemetry ingestion failed with status %d", resp.StatusCode)
		return err
	}

	return nil
}

func (c *carsafeClient) ReportFault(ctx context.Context, f types.Fault) (types.Fault, error) {
	var err error
	ctx, span := tracer.Start(ctx, "report-fault")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	resp, err := c.post(ctx, "/api/v0/faults", f)
	if err != nil {
		return types.Fault{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		err = fmt.Errorf("fault report failed with status %d", resp.StatusCode)
		return types.Fault{}, err
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		err = fmt.Errorf("failed to read response body: %w", err)
		return types.Fault{}, err
	}

	reported := types.Fault{}
	err = json.Unmarshal(respBody, &reported)
	if err != nil {
		err = fmt.Errorf("failed to unmarshal response body: %w", err)
		return types.Fault{}, err
	}

	return reported, nil
}

func (c *carsafeClient) LatestTelemetry(ctx context.Context, vehicleID string) (types.Telemetry, error) {
	var err error
	ctx, span := tracer.Start(ctx, "latest-telemetry")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	url := c.url + "/api/v0/vehicles/" + vehicleID + "/telemetry/latest"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		err = fmt.Errorf("failed to create http request: %w", err)
		return types.Telemetry{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("failed to retrieve latest telemetry: %w", err)
		return types.Telemetry{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err = fmt.Errorf("request failed with status %d", resp.StatusCode)
		return types.Telemetry{}, err
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		err = fmt.Errorf("failed to read response body: %w", err)
		return types.Telemetry{}, err
	}

	t := types.Telemetry{}
	err = json.Unmarshal(respBody, &t)
	if err != nil {
		err = fmt.Errorf("failed to unmarshal response body: %w", err)
		return types.Telemetry{}, err
	}

	return t, nil
}

func (c *carsafeClient) post(ctx context.Context, path string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	return resp, nil
}
