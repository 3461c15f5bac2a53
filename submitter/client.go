package submitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"repo-scan/analysis"

	"github.com/sony/gobreaker"
)

const RepoURLField = "repo_url"

type AnalyzerClient struct {
	Endpoint   string
	HTTPClient *http.Client

	cb *gobreaker.CircuitBreaker
}

func NewAnalyzerClient(endpoint string, timeout time.Duration) *AnalyzerClient {
	return &AnalyzerClient{
		Endpoint:   endpoint,
		HTTPClient: &http.Client{Timeout: timeout},
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "analyzer",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			// Cancelled requests are superseded submissions, not API failures.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
		}),
	}
}

// Analyze posts repoURL as form data and decodes the JSON body. The body is
// decoded whatever the status code, since the API reports "no dependencies"
// as a 400 carrying a message.
func (c *AnalyzerClient) Analyze(ctx context.Context, repoURL string) (*analysis.Response, error) {
	if c.cb == nil {
		return c.post(ctx, repoURL)
	}

	result, err := c.cb.Execute(func() (interface{}, error) {
		return c.post(ctx, repoURL)
	})
	if err != nil {
		return nil, err
	}
	return result.(*analysis.Response), nil
}

func (c *AnalyzerClient) post(ctx context.Context, repoURL string) (*analysis.Response, error) {
	form := url.Values{}
	form.Set(RepoURLField, repoURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to submit repository: %w", err)
	}
	defer resp.Body.Close()

	var out analysis.Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode analysis response (%s): %w", resp.Status, err)
	}
	return &out, nil
}
