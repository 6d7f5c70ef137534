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

var ErrNoConditions = errors.New("weather response carries no conditions")

type WeatherConfig struct {
	APIKey  string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	BaseURL string        `envconfig:"BASE_URL" split_words:"true" default:"http://api.openweathermap.org/data/2.5"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

// WeatherClient summarizes current conditions for a city.
type WeatherClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewWeatherClient(cfg WeatherConfig) (*WeatherClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("weather base url is required")
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("weather api key is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &WeatherClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type weatherResponse struct {
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
}

// CurrentConditions returns the single-sentence description for the city,
// e.g. "clear sky".
func (c *WeatherClient) CurrentConditions(ctx context.Context, city string) (string, error) {
	endpoint := fmt.Sprintf("%s/weather?q=%s&appid=%s",
		c.baseURL, url.QueryEscape(city), url.QueryEscape(c.apiKey))

	var parsed weatherResponse
	if err := getJSON(ctx, c.httpClient, endpoint, &parsed); err != nil {
		return "", fmt.Errorf("fetch weather for %q: %w", city, err)
	}
	if len(parsed.Weather) == 0 || parsed.Weather[0].Description == "" {
		return "", ErrNoConditions
	}
	return parsed.Weather[0].Description, nil
}
