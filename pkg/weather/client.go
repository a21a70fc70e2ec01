package weather

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/heliowatch/heliowatch-go/internal/config"
)

// Client is the HTTP client for the external weather service.
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
	timeout    time.Duration
}

// NewClient creates a new weather service client.
func NewClient(cfg *config.WeatherConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		BaseURL: strings.TrimSuffix(cfg.ServiceURL, "/"),
		timeout: timeout,
	}
}

// HealthCheck checks if the weather service is reachable.
func (c *Client) HealthCheck(ctx context.Context) (*HealthResponse, error) {
	var response HealthResponse
	err := c.makeRequest(ctx, "GET", "/health", nil, &response)
	if err != nil {
		return nil, err
	}
	return &response, nil
}

// GetCurrent retrieves the latest observation for a site.
func (c *Client) GetCurrent(ctx context.Context, systemID string) (*CurrentResponse, error) {
	path := fmt.Sprintf("/api/weather/%s/current", url.PathEscape(systemID))
	var response CurrentResponse
	err := c.makeRequest(ctx, "GET", path, nil, &response)
	return &response, err
}

// GetForecast retrieves hourly forecast samples for a site.
func (c *Client) GetForecast(ctx context.Context, systemID string, hours int) (*ForecastResponse, error) {
	path := fmt.Sprintf("/api/weather/%s/forecast", url.PathEscape(systemID))
	if hours > 0 {
		path += "?hours=" + strconv.Itoa(hours)
	}
	var response ForecastResponse
	err := c.makeRequest(ctx, "GET", path, nil, &response)
	return &response, err
}

// GetHistory retrieves observed samples between from and to.
func (c *Client) GetHistory(ctx context.Context, systemID string, from, to time.Time) (*HistoryResponse, error) {
	path := fmt.Sprintf("/api/weather/%s/history", url.PathEscape(systemID))
	params := url.Values{}
	params.Set("from", from.UTC().Format(time.RFC3339))
	params.Set("to", to.UTC().Format(time.RFC3339))
	path += "?" + params.Encode()

	var response HistoryResponse
	err := c.makeRequest(ctx, "GET", path, nil, &response)
	return &response, err
}

// makeRequest is a helper method to make HTTP requests to the weather service
func (c *Client) makeRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	url := c.BaseURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "HelioWatch-Go/1.0")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("Error closing response body: %v", err)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errorResp ErrorResponse
		if err := json.Unmarshal(respBody, &errorResp); err == nil && errorResp.Error != "" {
			return fmt.Errorf("weather service error (%d): %s", resp.StatusCode, errorResp.Error)
		}
		return fmt.Errorf("weather service error (%d): %s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}

// Close closes the HTTP client (if needed for cleanup)
func (c *Client) Close() error {
	return nil
}
