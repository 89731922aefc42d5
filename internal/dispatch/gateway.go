package dispatch

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/resilience"
	"github.com/sells-group/outreach-cli/pkg/vapi"
)

// VapiGateway adapts the Vapi client to the scheduler's Gateway interface,
// classifying provider failures and retrying the transient ones.
type VapiGateway struct {
	client        vapi.Client
	assistantID   string
	phoneNumberID string
	retry         resilience.RetryConfig
}

// NewVapiGateway creates a gateway bound to the configured assistant and
// outbound number.
func NewVapiGateway(client vapi.Client, assistantID, phoneNumberID string) *VapiGateway {
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("vapi", "create_call")
	return &VapiGateway{
		client:        client,
		assistantID:   assistantID,
		phoneNumberID: phoneNumberID,
		retry:         retry,
	}
}

// PlaceCall issues the outbound call and returns the provider call id.
// Provider errors are classified so the scheduler can decide between retry
// and retirement; they never propagate as panics or crash the cycle.
func (g *VapiGateway) PlaceCall(ctx context.Context, req DialRequest) (string, error) {
	call, err := resilience.DoVal(ctx, g.retry, func(ctx context.Context) (*vapi.Call, error) {
		call, err := g.client.CreateCall(ctx, vapi.CallRequest{
			AssistantID:    g.assistantID,
			PhoneNumberID:  g.phoneNumberID,
			CustomerNumber: req.CustomerE164,
			Variables:      req.Variables,
		})
		return call, classify(err)
	})
	if err != nil {
		return "", eris.Wrap(err, "vapi: create call")
	}
	return call.ID, nil
}

// classify wraps a Vapi error so resilience and the outcome mapping can tell
// transient provider trouble from a permanently undialable request.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *vapi.APIError
	if errors.As(err, &apiErr) {
		if resilience.IsTransientHTTPStatus(apiErr.StatusCode) {
			return resilience.NewTransientError(err, apiErr.StatusCode)
		}
		return resilience.NewPermanentError(err, apiErr.StatusCode)
	}
	// Network-level failures fall through to the generic transient checks.
	return err
}

// OutcomeFromError maps a failed placement to the outcome recorded on the
// link: transient errors keep the business retryable, permanent ones retire
// it as unreachable or invalid.
func OutcomeFromError(err error) model.CallOutcome {
	var pe *resilience.PermanentError
	if errors.As(err, &pe) {
		if pe.StatusCode == 400 || pe.StatusCode == 404 {
			return model.OutcomeInvalidNumber
		}
		return model.OutcomeUnreachable
	}
	return model.OutcomeProviderError
}

// OutcomeFromEndedReason translates a provider end-of-call reason into the
// internal outcome vocabulary. Unknown reasons are treated as a transient
// provider error so the attempt mechanism decides what happens next.
func OutcomeFromEndedReason(reason string) model.CallOutcome {
	switch reason {
	case "customer-ended-call", "assistant-ended-call", "assistant-said-end-call-phrase":
		return model.OutcomeAnswered
	case "customer-did-not-answer":
		return model.OutcomeNoAnswer
	case "customer-busy":
		return model.OutcomeBusy
	case "voicemail":
		return model.OutcomeVoicemail
	case "customer-did-not-give-microphone-permission", "twilio-failed-to-connect-call":
		return model.OutcomeUnreachable
	default:
		return model.OutcomeProviderError
	}
}
