package vapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/rotisserie/eris"
)

// SignatureHeader carries the webhook body's HMAC.
const SignatureHeader = "X-Vapi-Signature"

// ErrBadSignature rejects an unsigned or tampered webhook. Outcome events
// are never trusted without a valid signature.
var ErrBadSignature = eris.New("vapi: webhook signature mismatch")

// WebhookEvent is an inbound server message from the provider.
type WebhookEvent struct {
	Type        string `json:"type"`
	CallID      string `json:"callId"`
	Status      string `json:"status,omitempty"`
	EndedReason string `json:"endedReason,omitempty"`
}

// Event types the outreach pipeline reacts to.
const (
	EventStatusUpdate    = "status-update"
	EventEndOfCallReport = "end-of-call-report"
)

// Sign computes the hex HMAC-SHA256 of the body under the shared secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyWebhook checks the signature and decodes the event.
func VerifyWebhook(secret string, body []byte, signature string) (*WebhookEvent, error) {
	expected := Sign(secret, body)
	if signature == "" || !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, ErrBadSignature
	}

	var envelope struct {
		Message WebhookEvent `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, eris.Wrap(err, "vapi: decode webhook")
	}
	if envelope.Message.Type == "" {
		// Flat payloads (no message envelope) are accepted too.
		var flat WebhookEvent
		if err := json.Unmarshal(body, &flat); err == nil && flat.Type != "" {
			return &flat, nil
		}
		return nil, eris.New("vapi: webhook missing event type")
	}
	return &envelope.Message, nil
}
