package sports

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/atmx/bet-consensus/internal/model"
)

const (
	DefaultBaseURL = "https://api-nba-v1.p.rapidapi.com"
	DefaultHost    = "api-nba-v1.p.rapidapi.com"
)

// Client fetches games from a RapidAPI-hosted basketball API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	host       string
}

// NewClient creates a lookup client. Empty baseURL or host fall back to the
// public NBA endpoint. timeout bounds each request.
func NewClient(baseURL, apiKey, host string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if host == "" {
		host = DefaultHost
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		host:       host,
	}
}

type gamesResponse struct {
	Response []Game `json:"response"`
}

// LookupEvents returns the resolved games on date (YYYY-MM-DD). Any
// transport, status or decoding failure is reported as model.ErrLookupFailed.
func (c *Client) LookupEvents(ctx context.Context, date string) ([]model.EventSummary, error) {
	u := fmt.Sprintf("%s/games?%s", c.baseURL, url.Values{"date": {date}}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", model.ErrLookupFailed, err)
	}
	req.Header.Set("x-rapidapi-key", c.apiKey)
	req.Header.Set("x-rapidapi-host", c.host)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrLookupFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: games API error: %d - %s", model.ErrLookupFailed, resp.StatusCode, string(body))
	}

	var result gamesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", model.ErrLookupFailed, err)
	}

	return Resolve(result.Response), nil
}
