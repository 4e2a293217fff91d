package fpl

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/tonglam/letletme-data-sub005/internal/config"
	"github.com/tonglam/letletme-data-sub005/internal/utils/retry"
)

type (
	httpClient struct {
		baseURL string
		client  *http.Client
		logger  *zap.Logger
	}

	eventsResponse struct {
		Events []struct {
			ID           int    `json:"id"`
			DeadlineTime string `json:"deadline_time"`
			IsCurrent    bool   `json:"is_current"`
			Finished     bool   `json:"finished"`
		} `json:"events"`
	}

	fixtureResponse struct {
		ID          int    `json:"id"`
		Event       int    `json:"event"`
		KickoffTime string `json:"kickoff_time"`
		Started     bool   `json:"started"`
		Finished    bool   `json:"finished"`
		Minutes     int    `json:"minutes"`
		FinishedPre bool   `json:"finished_provisional"`
	}
)

const (
	httpTimeout = 10 * time.Second
)

var _ Client = (*httpClient)(nil)

// NewHTTPClient returns a Client backed by the provider's public JSON API.
// It only implements the narrow round/fixture reads needed for scheduling
// gates; all other provider endpoints are consumed elsewhere.
func NewHTTPClient(cfg *config.Config, logger *zap.Logger) Client {
	return &httpClient{
		baseURL: cfg.Provider.BaseURL,
		client: &http.Client{
			Timeout: httpTimeout,
		},
		logger: logger,
	}
}

func (c *httpClient) GetCurrentRound(ctx context.Context) (*Round, error) {
	var res eventsResponse
	if err := c.getJSON(ctx, "/bootstrap-static/", &res); err != nil {
		return nil, xerrors.Errorf("failed to fetch events: %w", err)
	}

	for _, event := range res.Events {
		if !event.IsCurrent {
			continue
		}

		deadline, err := time.Parse(time.RFC3339, event.DeadlineTime)
		if err != nil {
			return nil, xerrors.Errorf("failed to parse deadline %v: %w", event.DeadlineTime, err)
		}

		return &Round{
			ID:        RoundID(event.ID),
			Deadline:  deadline,
			IsCurrent: true,
			Finished:  event.Finished,
		}, nil
	}

	return nil, ErrNotFound
}

func (c *httpClient) GetFixtures(ctx context.Context, roundID RoundID) ([]Fixture, error) {
	var res []fixtureResponse
	if err := c.getJSON(ctx, fmt.Sprintf("/fixtures/?event=%d", roundID), &res); err != nil {
		return nil, xerrors.Errorf("failed to fetch fixtures: %w", err)
	}

	fixtures := make([]Fixture, 0, len(res))
	for _, fr := range res {
		var kickoff time.Time
		if fr.KickoffTime != "" {
			parsed, err := time.Parse(time.RFC3339, fr.KickoffTime)
			if err != nil {
				return nil, xerrors.Errorf("failed to parse kickoff %v: %w", fr.KickoffTime, err)
			}
			kickoff = parsed
		}

		fixtures = append(fixtures, Fixture{
			ID:       fr.ID,
			RoundID:  RoundID(fr.Event),
			Kickoff:  kickoff,
			Started:  fr.Started,
			Finished: fr.Finished || fr.FinishedPre,
			Minutes:  fr.Minutes,
		})
	}

	return fixtures, nil
}

func (c *httpClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return xerrors.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return retry.Retryable(xerrors.Errorf("failed to execute request: %w", err))
	}
	defer resp.Body.Close()

	if statusCode := resp.StatusCode; statusCode != http.StatusOK {
		if statusCode == http.StatusTooManyRequests {
			return retry.RateLimit(xerrors.Errorf("received status code %v", statusCode))
		}
		if statusCode >= http.StatusInternalServerError {
			return retry.Retryable(xerrors.Errorf("received retryable status code %v", statusCode))
		}

		return xerrors.Errorf("received non-retryable status code %v", statusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return retry.Retryable(xerrors.Errorf("failed to decode response: %w", err))
	}

	return nil
}
