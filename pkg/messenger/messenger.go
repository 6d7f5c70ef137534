// Package messenger is a minimal client for the Messenger platform: the Send
// API for outbound text and HMAC signature verification for inbound webhooks.
package messenger

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	ErrMissingSignature = errors.New("request signature is missing")
	ErrBadSignature     = errors.New("request signature mismatch")
)

const maxResponseSizeBytes = 1 << 20

type Config struct {
	PageToken   string        `envconfig:"PAGE_TOKEN" split_words:"true" required:"true"`
	AppSecret   string        `envconfig:"APP_SECRET" split_words:"true" required:"true"`
	VerifyToken string        `envconfig:"VERIFY_TOKEN" split_words:"true" required:"true"`
	BaseURL     string        `envconfig:"BASE_URL" split_words:"true" default:"https://graph.facebook.com"`
	Timeout     time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

// ClientOption customizes Client.
type ClientOption func(*Client)

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// Client talks to the platform's send endpoint and checks webhook signatures.
type Client struct {
	baseURL     string
	pageToken   string
	appSecret   string
	verifyToken string
	httpClient  *http.Client
}

func NewClient(cfg Config, opts ...ClientOption) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("messenger base url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid messenger base url: %w", err)
	}

	pageToken := strings.TrimSpace(cfg.PageToken)
	if pageToken == "" {
		return nil, errors.New("messenger page token is required")
	}
	appSecret := strings.TrimSpace(cfg.AppSecret)
	if appSecret == "" {
		return nil, errors.New("messenger app secret is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &Client{
		baseURL:     baseURL,
		pageToken:   pageToken,
		appSecret:   appSecret,
		verifyToken: strings.TrimSpace(cfg.VerifyToken),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client, nil
}

func MustNew(cfg Config, opts ...ClientOption) *Client {
	client, err := NewClient(cfg, opts...)
	if err != nil {
		panic(err)
	}
	return client
}

// VerifyToken reports whether the webhook subscription verify token matches.
func (c *Client) VerifyToken(token string) bool {
	return c.verifyToken != "" && token == c.verifyToken
}

type sendPayload struct {
	Recipient struct {
		ID string `json:"id"`
	} `json:"recipient"`
	Message struct {
		Text string `json:"text"`
	} `json:"message"`
}

type sendResponse struct {
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Send delivers a single text message to the given recipient. A JSON error
// envelope in the platform response is reported as a delivery failure.
func (c *Client) Send(ctx context.Context, recipientID, text string) error {
	if strings.TrimSpace(recipientID) == "" {
		return errors.New("recipient id is empty")
	}

	var payload sendPayload
	payload.Recipient.ID = recipientID
	payload.Message.Text = text

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal send payload: %w", err)
	}

	endpoint := c.baseURL + "/me/messages?access_token=" + url.QueryEscape(c.pageToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return fmt.Errorf("read send response: %w", err)
	}

	var parsed sendResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("decode send response: %w", err)
	}
	if parsed.Error != nil && parsed.Error.Message != "" {
		return fmt.Errorf("send rejected: %s", parsed.Error.Message)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("send http status=%d body=%s", resp.StatusCode, string(raw))
	}

	return nil
}

// VerifySignature checks the X-Hub-Signature header ("sha1=hexdigest")
// against an HMAC-SHA1 of the raw request body keyed by the app secret.
func (c *Client) VerifySignature(body []byte, header string) error {
	header = strings.TrimSpace(header)
	if header == "" {
		return ErrMissingSignature
	}

	method, digest, ok := strings.Cut(header, "=")
	if !ok || method != "sha1" {
		return ErrBadSignature
	}

	mac := hmac.New(sha1.New, []byte(c.appSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(digest), []byte(expected)) {
		return ErrBadSignature
	}
	return nil
}
