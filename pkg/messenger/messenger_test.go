package messenger

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testConfig(baseURL string) Config {
	return Config{
		PageToken:   "page-token",
		AppSecret:   "app-secret",
		VerifyToken: "verify-me",
		BaseURL:     baseURL,
	}
}

func TestSendDeliversTextMessage(t *testing.T) {
	t.Parallel()

	var gotPath, gotToken string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.URL.Query().Get("access_token")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		fmt.Fprint(w, `{"recipient_id":"user-1","message_id":"mid.1"}`)
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(testConfig(server.URL))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	if err := client.Send(context.Background(), "user-1", "hello there"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if gotPath != "/me/messages" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotToken != "page-token" {
		t.Fatalf("access_token = %q", gotToken)
	}
	recipient, _ := gotBody["recipient"].(map[string]any)
	message, _ := gotBody["message"].(map[string]any)
	if recipient["id"] != "user-1" || message["text"] != "hello there" {
		t.Fatalf("payload = %v", gotBody)
	}
}

func TestSendReportsErrorEnvelope(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":{"message":"Invalid OAuth access token","code":190}}`)
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(testConfig(server.URL))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	err = client.Send(context.Background(), "user-1", "hello")
	if err == nil || !strings.Contains(err.Error(), "Invalid OAuth access token") {
		t.Fatalf("Send() error = %v, want error envelope surfaced", err)
	}
}

func TestSendRejectsEmptyRecipient(t *testing.T) {
	t.Parallel()

	client, err := NewClient(testConfig("https://graph.facebook.com"))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	if err := client.Send(context.Background(), "  ", "hello"); err == nil {
		t.Fatal("expected error for empty recipient")
	}
}

func TestVerifyToken(t *testing.T) {
	t.Parallel()

	client, err := NewClient(testConfig("https://graph.facebook.com"))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	if !client.VerifyToken("verify-me") {
		t.Fatal("expected matching token to verify")
	}
	if client.VerifyToken("wrong") {
		t.Fatal("expected mismatched token to fail")
	}
	if client.VerifyToken("") {
		t.Fatal("expected empty token to fail")
	}
}

func TestVerifySignature(t *testing.T) {
	t.Parallel()

	client, err := NewClient(testConfig("https://graph.facebook.com"))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	body := []byte(`{"object":"page"}`)
	mac := hmac.New(sha1.New, []byte("app-secret"))
	mac.Write(body)
	good := "sha1=" + hex.EncodeToString(mac.Sum(nil))

	if err := client.VerifySignature(body, good); err != nil {
		t.Fatalf("VerifySignature() with valid header error = %v", err)
	}

	if err := client.VerifySignature(body, ""); !errors.Is(err, ErrMissingSignature) {
		t.Fatalf("missing header error = %v, want ErrMissingSignature", err)
	}
	if err := client.VerifySignature(body, "sha1=deadbeef"); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("bad digest error = %v, want ErrBadSignature", err)
	}
	if err := client.VerifySignature(body, "sha256=deadbeef"); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("wrong method error = %v, want ErrBadSignature", err)
	}
	if err := client.VerifySignature([]byte(`tampered`), good); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("tampered body error = %v, want ErrBadSignature", err)
	}
}

func TestNewClientValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing page token", func(c *Config) { c.PageToken = "" }},
		{"missing app secret", func(c *Config) { c.AppSecret = "" }},
		{"missing base url", func(c *Config) { c.BaseURL = " " }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := testConfig("https://graph.facebook.com")
			tt.mutate(&cfg)
			if _, err := NewClient(cfg); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
