// Package engine drives one conversation turn against an external dialogue
// engine. The engine decides what happens next; this package dispatches the
// decisions through the action registry.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	actionx "github.com/witbridge/nestbot/bot/action"
	contractx "github.com/witbridge/nestbot/bot/contract"
	statex "github.com/witbridge/nestbot/bot/state"
)

var ErrTooManySteps = errors.New("conversation exceeded max steps")

const maxResponseSizeBytes = 2 << 20

type WitConfig struct {
	Token    string        `envconfig:"TOKEN" split_words:"true" required:"true"`
	BaseURL  string        `envconfig:"BASE_URL" split_words:"true" default:"https://api.wit.ai"`
	Version  string        `envconfig:"VERSION" split_words:"true" default:"20160526"`
	MaxSteps int           `envconfig:"MAX_STEPS" split_words:"true" default:"5"`
	Timeout  time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
	// Actions the engine configuration is allowed to reference. Checked
	// against the registry at construction so a missing handler fails at
	// startup, not mid-conversation.
	Actions []string `envconfig:"ACTIONS" split_words:"true" default:"send,getForecast,getNextTopNews,getNextTopNewsOnlyFromHackerNews"`
}

// Wit asks the converse endpoint "what next" in a loop, running one
// registered action per step until the engine signals stop.
type Wit struct {
	baseURL    string
	token      string
	version    string
	maxSteps   int
	httpClient *http.Client
	registry   *actionx.Registry
}

// WitOption customizes Wit.
type WitOption func(*Wit)

func WithHTTPClient(client *http.Client) WitOption {
	return func(w *Wit) {
		if client != nil {
			w.httpClient = client
		}
	}
}

func NewWit(cfg WitConfig, registry *actionx.Registry, opts ...WitOption) (*Wit, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("wit token is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("wit base url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid wit base url: %w", err)
	}
	if registry == nil {
		return nil, errors.New("action registry is required")
	}

	names := cfg.Actions
	if len(names) == 0 {
		names = []string{actionx.NameSend}
	}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if !registry.Has(name) {
			return nil, fmt.Errorf("%w: engine references %q", contractx.ErrUnknownAction, name)
		}
	}
	if !registry.Has(actionx.NameSend) {
		return nil, fmt.Errorf("%w: %s is mandatory", contractx.ErrUnknownAction, actionx.NameSend)
	}

	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = 5
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	wit := &Wit{
		baseURL:  baseURL,
		token:    token,
		version:  strings.TrimSpace(cfg.Version),
		maxSteps: maxSteps,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		registry: registry,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(wit)
		}
	}

	return wit, nil
}

type converseStep struct {
	Type       string         `json:"type"`
	Msg        string         `json:"msg"`
	Action     string         `json:"action"`
	Entities   map[string]any `json:"entities"`
	Confidence float64        `json:"confidence"`
}

// RunActions executes one full turn. The first converse call carries the
// user's utterance; follow-ups only feed the updated context back until the
// engine stops. Action failures propagate and leave the caller's stored
// context untouched.
func (w *Wit) RunActions(ctx context.Context, sessionID, message string, sc *statex.Context) (*statex.Context, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, statex.ErrInvalidSession
	}
	if sc == nil {
		sc = statex.NewContext()
	}

	query := message
	for step := 0; step < w.maxSteps; step++ {
		resp, err := w.converse(ctx, sessionID, query, sc)
		if err != nil {
			return nil, err
		}
		query = ""

		switch resp.Type {
		case "stop":
			return sc, nil

		case "msg":
			handler, err := w.registry.Resolve(actionx.NameSend)
			if err != nil {
				return nil, err
			}
			sc, err = handler(ctx, actionx.Request{
				SessionID: sessionID,
				Context:   sc,
				Message:   resp.Msg,
			})
			if err != nil {
				return nil, err
			}

		case "action":
			handler, err := w.registry.Resolve(resp.Action)
			if err != nil {
				return nil, err
			}
			sc, err = handler(ctx, actionx.Request{
				SessionID: sessionID,
				Context:   sc,
				Entities:  resp.Entities,
			})
			if err != nil {
				return nil, err
			}

		default:
			return nil, fmt.Errorf("%w: unexpected step type %q", contractx.ErrEngineInvoke, resp.Type)
		}
	}

	return nil, ErrTooManySteps
}

func (w *Wit) converse(ctx context.Context, sessionID, query string, sc *statex.Context) (*converseStep, error) {
	params := url.Values{}
	params.Set("v", w.version)
	params.Set("session_id", sessionID)
	if query != "" {
		params.Set("q", query)
	}

	body, err := json.Marshal(sc)
	if err != nil {
		return nil, fmt.Errorf("marshal context: %w", err)
	}

	endpoint := w.baseURL + "/converse?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build converse request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+w.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrEngineInvoke, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read converse response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: http status=%d body=%s", contractx.ErrEngineInvoke, resp.StatusCode, string(raw))
	}

	var step converseStep
	if err := json.Unmarshal(raw, &step); err != nil {
		return nil, fmt.Errorf("decode converse response: %w", err)
	}
	return &step, nil
}
