package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var ErrNoArticles = errors.New("news source carries no articles")

type NewsConfig struct {
	APIKey  string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	BaseURL string        `envconfig:"BASE_URL" split_words:"true" default:"https://newsapi.org/v1"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

// NewsClient lists available English-language sources and summarizes the top
// story of one source.
type NewsClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewNewsClient(cfg NewsConfig) (*NewsClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("news base url is required")
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("news api key is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &NewsClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type newsSourcesResponse struct {
	Sources []struct {
		ID string `json:"id"`
	} `json:"sources"`
}

type newsArticlesResponse struct {
	Articles []struct {
		Description string `json:"description"`
		URL         string `json:"url"`
	} `json:"articles"`
}

func (c *NewsClient) SourceIDs(ctx context.Context) ([]string, error) {
	var parsed newsSourcesResponse
	if err := getJSON(ctx, c.httpClient, c.baseURL+"/sources?language=en", &parsed); err != nil {
		return nil, fmt.Errorf("fetch news sources: %w", err)
	}

	ids := make([]string, 0, len(parsed.Sources))
	for _, source := range parsed.Sources {
		ids = append(ids, source.ID)
	}
	return ids, nil
}

// TopStory formats the first article of the source as "<description> - <url>".
func (c *NewsClient) TopStory(ctx context.Context, sourceID string) (string, error) {
	endpoint := fmt.Sprintf("%s/articles?source=%s&apiKey=%s",
		c.baseURL, url.QueryEscape(sourceID), url.QueryEscape(c.apiKey))

	var parsed newsArticlesResponse
	if err := getJSON(ctx, c.httpClient, endpoint, &parsed); err != nil {
		return "", fmt.Errorf("fetch articles from %q: %w", sourceID, err)
	}
	if len(parsed.Articles) == 0 {
		return "", fmt.Errorf("%w: source=%s", ErrNoArticles, sourceID)
	}

	first := parsed.Articles[0]
	return first.Description + " - " + first.URL, nil
}
