package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

type fakeVerifier struct {
	token  string
	sigErr error
}

func (f *fakeVerifier) VerifyToken(token string) bool {
	return token == f.token
}

func (f *fakeVerifier) VerifySignature(body []byte, header string) error {
	return f.sigErr
}

type fakeTurns struct {
	calls []struct {
		userID string
		text   string
	}
	err error
}

func (f *fakeTurns) HandleMessage(ctx context.Context, userID, text string) error {
	f.calls = append(f.calls, struct {
		userID string
		text   string
	}{userID, text})
	return f.err
}

type fakeResponder struct {
	sent []struct {
		recipientID string
		text        string
	}
}

func (f *fakeResponder) Send(ctx context.Context, recipientID, text string) error {
	f.sent = append(f.sent, struct {
		recipientID string
		text        string
	}{recipientID, text})
	return nil
}

func newTestGateway(t *testing.T, verifier *fakeVerifier, turns *fakeTurns, responder *fakeResponder) http.Handler {
	t.Helper()

	handler, err := NewHandler(verifier, turns, responder)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	router := chi.NewRouter()
	handler.Routes(router)
	return router
}

func TestVerifyEchoesChallenge(t *testing.T) {
	t.Parallel()

	router := newTestGateway(t, &fakeVerifier{token: "verify-me"}, &fakeTurns{}, &fakeResponder{})

	req := httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=challenge-42", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got, _ := io.ReadAll(rec.Body); string(got) != "challenge-42" {
		t.Fatalf("body = %q, want challenge echoed", got)
	}
}

func TestVerifyRejectsWrongToken(t *testing.T) {
	t.Parallel()

	router := newTestGateway(t, &fakeVerifier{token: "verify-me"}, &fakeTurns{}, &fakeResponder{})

	req := httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=challenge-42", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestReceiveRejectsBadSignature(t *testing.T) {
	t.Parallel()

	verifier := &fakeVerifier{sigErr: errors.New("signature mismatch")}
	turns := &fakeTurns{}
	router := newTestGateway(t, verifier, turns, &fakeResponder{})

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"object":"page"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if len(turns.calls) != 0 {
		t.Fatalf("turns ran despite rejected signature: %v", turns.calls)
	}
}

func TestReceiveDispatchesTextMessages(t *testing.T) {
	t.Parallel()

	turns := &fakeTurns{}
	router := newTestGateway(t, &fakeVerifier{}, turns, &fakeResponder{})

	payload := `{
		"object": "page",
		"entry": [
			{"messaging": [
				{"sender": {"id": "user-1"}, "message": {"text": "what is the weather"}},
				{"sender": {"id": "user-2"}, "message": {"text": "top news"}}
			]}
		]
	}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(turns.calls) != 2 {
		t.Fatalf("turn calls = %d, want 2", len(turns.calls))
	}
	if turns.calls[0].userID != "user-1" || turns.calls[0].text != "what is the weather" {
		t.Fatalf("first call = %+v", turns.calls[0])
	}
	if turns.calls[1].userID != "user-2" || turns.calls[1].text != "top news" {
		t.Fatalf("second call = %+v", turns.calls[1])
	}
}

func TestReceiveAcknowledgesDespiteTurnFailure(t *testing.T) {
	t.Parallel()

	turns := &fakeTurns{err: errors.New("engine down")}
	router := newTestGateway(t, &fakeVerifier{}, turns, &fakeResponder{})

	payload := `{"object":"page","entry":[{"messaging":[{"sender":{"id":"user-1"},"message":{"text":"hi"}}]}]}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 even when the turn fails", rec.Code)
	}
}

func TestReceiveRepliesToAttachments(t *testing.T) {
	t.Parallel()

	turns := &fakeTurns{}
	responder := &fakeResponder{}
	router := newTestGateway(t, &fakeVerifier{}, turns, responder)

	payload := `{"object":"page","entry":[{"messaging":[{"sender":{"id":"user-1"},"message":{"attachments":[{"type":"image"}]}}]}]}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(turns.calls) != 0 {
		t.Fatalf("attachment event reached the turn service: %v", turns.calls)
	}
	if len(responder.sent) != 1 || responder.sent[0].text != attachmentReply {
		t.Fatalf("sent = %+v, want attachment reply", responder.sent)
	}
	if responder.sent[0].recipientID != "user-1" {
		t.Fatalf("recipient = %q", responder.sent[0].recipientID)
	}
}

func TestReceiveSkipsEchoesAndNonMessages(t *testing.T) {
	t.Parallel()

	turns := &fakeTurns{}
	responder := &fakeResponder{}
	router := newTestGateway(t, &fakeVerifier{}, turns, responder)

	payload := `{"object":"page","entry":[{"messaging":[
		{"sender":{"id":"page-1"},"message":{"is_echo":true,"text":"echoed"}},
		{"sender":{"id":"user-1"},"delivery":{"mids":["m1"]}}
	]}]}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(turns.calls) != 0 || len(responder.sent) != 0 {
		t.Fatalf("echo or non-message event was handled: turns=%v sent=%v", turns.calls, responder.sent)
	}
}

func TestReceiveIgnoresNonPageObjects(t *testing.T) {
	t.Parallel()

	turns := &fakeTurns{}
	router := newTestGateway(t, &fakeVerifier{}, turns, &fakeResponder{})

	payload := `{"object":"user","entry":[{"messaging":[{"sender":{"id":"user-1"},"message":{"text":"hi"}}]}]}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(turns.calls) != 0 {
		t.Fatalf("non-page payload was dispatched: %v", turns.calls)
	}
}

func TestReceiveRejectsInvalidJSON(t *testing.T) {
	t.Parallel()

	router := newTestGateway(t, &fakeVerifier{}, &fakeTurns{}, &fakeResponder{})

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
