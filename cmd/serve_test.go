package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/campaign"
	"github.com/sells-group/outreach-cli/internal/compliance"
	"github.com/sells-group/outreach-cli/internal/dispatch"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/pkg/vapi"
)

type allowAllRegistry struct{}

func (allowAllRegistry) Lookup(context.Context, string) (bool, error) { return false, nil }

type stubGateway struct{ callID string }

func (g stubGateway) PlaceCall(context.Context, dispatch.DialRequest) (string, error) {
	return g.callID, nil
}

// newTestEnv wires a router environment onto a throwaway SQLite store with a
// permissive registry and a stub voice gateway.
func newTestEnv(t *testing.T) *outreachEnv {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "serve.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	screener := compliance.NewScreener(allowAllRegistry{}, st)
	scheduler := dispatch.NewScheduler(st, stubGateway{callID: "call-1"}, screener, nil)
	service := campaign.NewService(st, scheduler, screener)

	return &outreachEnv{Store: st, Service: service, Scheduler: scheduler, Screener: screener}
}

func seedServeCampaign(t *testing.T, env *outreachEnv, status model.CampaignStatus) *model.Campaign {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, env.Store.UpsertLocation(ctx, model.Location{
		ID: "loc-1", Name: "Riverside Car Park", Status: model.LocationLive,
	}))
	camp, err := env.Store.CreateCampaign(ctx, model.Campaign{
		ID:           "cafes-ec1",
		Name:         "EC1 cafes",
		BusinessType: "cafe",
		Postcode:     "EC1",
		LocationID:   "loc-1",
		Status:       status,
		CreatedAt:    time.Now().UTC(),
	})
	require.NoError(t, err)

	_, err = env.Store.InsertBusinesses(ctx, camp.ID, []model.Business{
		{ID: "biz-1", Name: "Jo's Cafe", Phone: "020 7946 0110"},
	})
	require.NoError(t, err)
	return camp
}

func setServeVoiceConfig(t *testing.T, env *outreachEnv, secret string) {
	t.Helper()
	require.NoError(t, env.Store.SetVoiceConfig(context.Background(), model.VoiceConfig{
		APIKey:         "key",
		AssistantID:    "asst-1",
		PhoneNumberID:  "pn-1",
		WebhookSecret:  secret,
		CallingEnabled: true,
		MaxConcurrent:  2,
		MaxAttempts:    2,
	}))
}

func TestRouter_Health(t *testing.T) {
	router := newRouter(newTestEnv(t))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRouter_GetCampaign_NotFound(t *testing.T) {
	router := newRouter(newTestEnv(t))

	req := httptest.NewRequest(http.MethodGet, "/campaigns/missing", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouter_Start_GuardViolation(t *testing.T) {
	env := newTestEnv(t)
	seedServeCampaign(t, env, model.CampaignEnriched)
	setServeVoiceConfig(t, env, "s3cret")

	// Close the car park: the transition guard must reject the start.
	require.NoError(t, env.Store.UpsertLocation(context.Background(), model.Location{
		ID: "loc-1", Name: "Riverside Car Park", Status: model.LocationClosed,
	}))

	req := httptest.NewRequest(http.MethodPost, "/campaigns/cafes-ec1/start", nil)
	rr := httptest.NewRecorder()
	newRouter(env).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "not live")
}

func TestRouter_StartAndPause(t *testing.T) {
	env := newTestEnv(t)
	seedServeCampaign(t, env, model.CampaignEnriched)
	setServeVoiceConfig(t, env, "s3cret")
	router := newRouter(env)

	req := httptest.NewRequest(http.MethodPost, "/campaigns/cafes-ec1/start", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), string(model.CampaignCalling))

	req = httptest.NewRequest(http.MethodPost, "/campaigns/cafes-ec1/pause", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), string(model.CampaignPaused))
}

func TestRouter_Screen(t *testing.T) {
	env := newTestEnv(t)
	seedServeCampaign(t, env, model.CampaignCreated)

	req := httptest.NewRequest(http.MethodPost, "/campaigns/cafes-ec1/screen", nil)
	rr := httptest.NewRecorder()
	newRouter(env).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var report compliance.Report
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	assert.Equal(t, 1, report.Checked)
	assert.Equal(t, 0, report.Blocked)
}

func TestRouter_Webhook_NoVoiceConfig(t *testing.T) {
	router := newRouter(newTestEnv(t))

	req := httptest.NewRequest(http.MethodPost, "/webhook/vapi", bytes.NewReader([]byte(`{}`)))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestRouter_Webhook_BadSignature(t *testing.T) {
	env := newTestEnv(t)
	setServeVoiceConfig(t, env, "s3cret")

	body := []byte(`{"message":{"type":"end-of-call-report","callId":"call-9"}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook/vapi", bytes.NewReader(body))
	req.Header.Set(vapi.SignatureHeader, "deadbeef")
	rr := httptest.NewRecorder()
	newRouter(env).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRouter_Webhook_IgnoresStatusUpdates(t *testing.T) {
	env := newTestEnv(t)
	setServeVoiceConfig(t, env, "s3cret")

	body := []byte(`{"message":{"type":"status-update","callId":"call-9","status":"ringing"}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook/vapi", bytes.NewReader(body))
	req.Header.Set(vapi.SignatureHeader, vapi.Sign("s3cret", body))
	rr := httptest.NewRecorder()
	newRouter(env).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Contains(t, rr.Body.String(), "ignored")
}

func TestRouter_Webhook_RecordsOutcome(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	camp := seedServeCampaign(t, env, model.CampaignCalling)
	setServeVoiceConfig(t, env, "s3cret")

	// Put the single business in flight with a known provider call id.
	reserved, err := env.Store.ReserveCallable(ctx, camp.ID, 2, 2, 0)
	require.NoError(t, err)
	require.Len(t, reserved, 1)
	require.NoError(t, env.Store.MarkDispatched(ctx, camp.ID, "biz-1", "call-9"))

	body := []byte(`{"message":{"type":"end-of-call-report","callId":"call-9","endedReason":"customer-ended-call"}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook/vapi", bytes.NewReader(body))
	req.Header.Set(vapi.SignatureHeader, vapi.Sign("s3cret", body))
	rr := httptest.NewRecorder()
	newRouter(env).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), string(model.OutcomeAnswered))

	link, err := env.Store.FindByCallID(ctx, "call-9")
	require.NoError(t, err)
	assert.False(t, link.InFlight)
	assert.Equal(t, model.OutcomeAnswered, link.LastOutcome)

	// The only business answered, so the campaign auto-completes.
	after, err := env.Store.GetCampaign(ctx, camp.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignCompleted, after.Status)
}
