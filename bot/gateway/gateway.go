// Package gateway receives platform webhook events and feeds text messages
// into the turn service. Every POST is acknowledged regardless of internal
// outcome; the platform must never retry on our failures.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	contractx "github.com/witbridge/nestbot/bot/contract"
)

const attachmentReply = "Sorry I can only process text messages for now."

const maxBodySizeBytes = 1 << 20

// Verifier checks webhook subscription tokens and request signatures.
type Verifier interface {
	VerifyToken(token string) bool
	VerifySignature(body []byte, header string) error
}

// TurnRunner drives one conversation turn for an inbound utterance.
type TurnRunner interface {
	HandleMessage(ctx context.Context, userID, text string) error
}

type Handler struct {
	verifier  Verifier
	turns     TurnRunner
	responder contractx.Responder
}

func NewHandler(verifier Verifier, turns TurnRunner, responder contractx.Responder) (*Handler, error) {
	if verifier == nil {
		return nil, errors.New("verifier is required")
	}
	if turns == nil {
		return nil, errors.New("turn runner is required")
	}
	if responder == nil {
		return nil, errors.New("responder is required")
	}
	return &Handler{verifier: verifier, turns: turns, responder: responder}, nil
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/webhook", h.verify)
	r.Post("/webhook", h.receive)
}

// verify answers the platform's subscription challenge.
func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") == "subscribe" && h.verifier.VerifyToken(q.Get("hub.verify_token")) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(q.Get("hub.challenge")))
		return
	}
	http.Error(w, "verification failed", http.StatusBadRequest)
}

type webhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		Messaging []messagingEvent `json:"messaging"`
	} `json:"entry"`
}

type messagingEvent struct {
	Sender struct {
		ID string `json:"id"`
	} `json:"sender"`
	Message *struct {
		IsEcho      bool              `json:"is_echo"`
		Text        string            `json:"text"`
		Attachments []json.RawMessage `json:"attachments"`
	} `json:"message"`
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySizeBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	// Integrity failure rejects the call; it never terminates the process.
	if err := h.verifier.VerifySignature(body, r.Header.Get("X-Hub-Signature")); err != nil {
		log.Warn().Err(err).Msg("rejecting unsigned webhook call")
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	if payload.Object == "page" {
		for _, entry := range payload.Entry {
			for _, event := range entry.Messaging {
				h.handleEvent(r.Context(), event)
			}
		}
	}

	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleEvent(ctx context.Context, event messagingEvent) {
	if event.Message == nil {
		log.Debug().Str("sender_id", event.Sender.ID).Msg("received non-message event")
		return
	}
	if event.Message.IsEcho {
		return
	}

	sender := event.Sender.ID

	if len(event.Message.Attachments) > 0 {
		if err := h.responder.Send(ctx, sender, attachmentReply); err != nil {
			log.Error().Err(err).Str("recipient_id", sender).
				Msg("failed to send attachment reply")
		}
		return
	}

	if event.Message.Text == "" {
		return
	}

	if err := h.turns.HandleMessage(ctx, sender, event.Message.Text); err != nil {
		// The user sees silence; the webhook is still acknowledged.
		log.Error().Err(err).Str("sender_id", sender).Msg("turn failed")
	}
}
