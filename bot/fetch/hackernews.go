package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	contractx "github.com/witbridge/nestbot/bot/contract"
)

type HackerNewsConfig struct {
	BaseURL string        `envconfig:"BASE_URL" split_words:"true" default:"https://hacker-news.firebaseio.com/v0"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

// HackerNewsClient serves the rotating ranked headline feed.
type HackerNewsClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewHackerNewsClient(cfg HackerNewsConfig) (*HackerNewsClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("hackernews base url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &HackerNewsClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type hackerNewsItem struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// StoryAt formats the top story at the given rank as "<title> - <url>".
// Ranks past the end of the feed report ErrFeedExhausted; the cursor that
// produced them is unbounded.
func (c *HackerNewsClient) StoryAt(ctx context.Context, rank int) (string, error) {
	var ids []int64
	if err := getJSON(ctx, c.httpClient, c.baseURL+"/topstories.json", &ids); err != nil {
		return "", fmt.Errorf("fetch top stories: %w", err)
	}

	if rank < 0 || rank >= len(ids) {
		return "", fmt.Errorf("%w: rank=%d feed=%d", contractx.ErrFeedExhausted, rank, len(ids))
	}

	var item hackerNewsItem
	endpoint := fmt.Sprintf("%s/item/%d.json", c.baseURL, ids[rank])
	if err := getJSON(ctx, c.httpClient, endpoint, &item); err != nil {
		return "", fmt.Errorf("fetch story %d: %w", ids[rank], err)
	}

	return item.Title + " - " + item.URL, nil
}
