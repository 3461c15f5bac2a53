package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

var ErrNotFound = errors.New("requirements file not found")

var ErrUnsupportedURL = errors.New("not a GitHub repository URL")

var repoURLPattern = regexp.MustCompile(`^https://github\.com/([^/]+)/([^/]+)`)

type Repository struct {
	Owner string
	Name  string
}

// ParseRepoURL extracts owner and repository name from a
// https://github.com/<owner>/<repo> URL. Trailing path segments are ignored.
func ParseRepoURL(repoURL string) (Repository, error) {
	m := repoURLPattern.FindStringSubmatch(repoURL)
	if m == nil {
		return Repository{}, ErrUnsupportedURL
	}
	return Repository{Owner: m[1], Name: strings.TrimSuffix(m[2], ".git")}, nil
}

type contentResponse struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client

	cb *gobreaker.CircuitBreaker
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		BaseURL:    baseURL,
		Token:      token,
		HTTPClient: &http.Client{Timeout: timeout},
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "github",
			MaxRequests: 5,
			Interval:    3 * time.Second,
			Timeout:     20 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled)
			},
		}),
	}
}

// GetRequirements returns the package names listed in the repository's
// requirements.txt.
func (c *Client) GetRequirements(ctx context.Context, repoURL string) ([]string, error) {
	repo, err := ParseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}

	content, err := c.getFileContent(ctx, repo, "requirements.txt")
	if err != nil {
		return nil, err
	}
	return ParseRequirements(content), nil
}

func (c *Client) getFileContent(ctx context.Context, repo Repository, path string) (string, error) {
	fetch := func() (interface{}, error) {
		return c.fetchFileContent(ctx, repo, path)
	}

	var (
		result interface{}
		err    error
	)
	if c.cb != nil {
		result, err = c.cb.Execute(fetch)
	} else {
		result, err = fetch()
	}
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (c *Client) fetchFileContent(ctx context.Context, repo Repository, path string) (string, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		c.BaseURL, url.PathEscape(repo.Owner), url.PathEscape(repo.Name), path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s for %s/%s: %w", path, repo.Owner, repo.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("contents request failed for %s/%s: %s", repo.Owner, repo.Name, resp.Status)
	}

	var body contentResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode contents response: %w", err)
	}

	// GitHub wraps the base64 payload at 60 columns.
	raw := strings.NewReplacer("\n", "", "\r", "").Replace(body.Content)
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", fmt.Errorf("failed to decode %s content: %w", path, err)
	}
	return string(decoded), nil
}
