package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// seedCampaign creates a live location, a campaign, and n linked businesses.
func seedCampaign(t *testing.T, st *SQLiteStore, n int) *model.Campaign {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, st.UpsertLocation(ctx, model.Location{
		ID: "loc-1", Name: "Riverside Car Park", Status: model.LocationLive,
	}))

	camp, err := st.CreateCampaign(ctx, model.Campaign{
		Name:         "cafes-ec1",
		BusinessType: "cafe",
		Postcode:     "EC1A",
		LocationID:   "loc-1",
	})
	require.NoError(t, err)

	var businesses []model.Business
	for i := 0; i < n; i++ {
		businesses = append(businesses, model.Business{
			ID:       "biz-" + string(rune('a'+i)),
			Name:     "Business " + string(rune('A'+i)),
			Phone:    "020 7946 0110",
			Website:  "https://example.co.uk",
			Postcode: "EC1A 1BB",
			Types:    []string{"cafe"},
		})
	}
	inserted, err := st.InsertBusinesses(ctx, camp.ID, businesses)
	require.NoError(t, err)
	require.Equal(t, n, inserted)

	return camp
}

// --- Campaigns ---

func TestSQLite_Campaign_CreateAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	camp := seedCampaign(t, st, 0)
	assert.NotEmpty(t, camp.ID)
	assert.Equal(t, model.CampaignCreated, camp.Status)

	got, err := st.GetCampaign(ctx, camp.ID)
	require.NoError(t, err)
	assert.Equal(t, "cafes-ec1", got.Name)
	assert.Equal(t, "cafe", got.BusinessType)
	assert.Equal(t, "loc-1", got.LocationID)
}

func TestSQLite_Campaign_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetCampaign(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestSQLite_Campaign_SetStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	camp := seedCampaign(t, st, 0)
	require.NoError(t, st.SetCampaignStatus(ctx, camp.ID, model.CampaignEnriching))

	got, err := st.GetCampaign(ctx, camp.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignEnriching, got.Status)

	err = st.SetCampaignStatus(ctx, "missing", model.CampaignFailed)
	require.Error(t, err)
}

func TestSQLite_Campaign_ListByStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	camp := seedCampaign(t, st, 0)
	require.NoError(t, st.SetCampaignStatus(ctx, camp.ID, model.CampaignCalling))

	calling, err := st.ListCampaigns(ctx, CampaignFilter{Status: model.CampaignCalling})
	require.NoError(t, err)
	require.Len(t, calling, 1)
	assert.Equal(t, camp.ID, calling[0].ID)

	created, err := st.ListCampaigns(ctx, CampaignFilter{Status: model.CampaignCreated})
	require.NoError(t, err)
	assert.Empty(t, created)
}

// --- Locations ---

func TestSQLite_Location_UpsertOverwrites(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertLocation(ctx, model.Location{ID: "loc-1", Name: "Old Name", Status: model.LocationDraft}))
	require.NoError(t, st.UpsertLocation(ctx, model.Location{ID: "loc-1", Name: "Riverside Car Park", Status: model.LocationLive}))

	loc, err := st.GetLocation(ctx, "loc-1")
	require.NoError(t, err)
	assert.Equal(t, "Riverside Car Park", loc.Name)
	assert.Equal(t, model.LocationLive, loc.Status)
}

// --- Businesses ---

func TestSQLite_InsertBusinesses_AssignsPositions(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	camp := seedCampaign(t, st, 3)

	list, err := st.ListCampaignBusinesses(ctx, camp.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "biz-a", list[0].ID)
	assert.Equal(t, "biz-c", list[2].ID)
}

func TestSQLite_InsertBusinesses_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	camp := seedCampaign(t, st, 2)

	// Re-importing the same leads links nothing new.
	inserted, err := st.InsertBusinesses(ctx, camp.ID, []model.Business{
		{ID: "biz-a", Name: "Business A"},
		{ID: "biz-d", Name: "Business D"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)

	list, err := st.ListCampaignBusinesses(ctx, camp.ID)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestSQLite_ApplyContactUpdate_Roundtrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	camp := seedCampaign(t, st, 1)
	now := time.Now().UTC().Truncate(time.Second)

	err := st.ApplyContactUpdate(ctx, model.ContactUpdate{
		BusinessID: "biz-a",
		Contacts: model.CombinedContacts{
			PrimaryEmail:  "hello@example.co.uk",
			PrimaryPhone:  "020 7946 0110",
			AllEmails:     []string{"hello@example.co.uk", "info@example.co.uk"},
			AllPhones:     []string{"020 7946 0110"},
			ContactPeople: []model.ContactPerson{{Name: "Jo Smith", Role: "Owner"}},
		},
		SocialLinks: map[string]string{"facebook": "https://facebook.com/example"},
		Status:      model.EnrichmentEnriched,
		EnrichedAt:  now,
	})
	require.NoError(t, err)

	biz, err := st.GetBusiness(ctx, "biz-a")
	require.NoError(t, err)
	assert.Equal(t, "hello@example.co.uk", biz.PrimaryEmail)
	assert.Equal(t, []string{"hello@example.co.uk", "info@example.co.uk"}, biz.AllEmails)
	require.Len(t, biz.ContactPeople, 1)
	assert.Equal(t, "Jo Smith", biz.ContactPeople[0].Name)
	assert.Equal(t, "https://facebook.com/example", biz.SocialLinks["facebook"])
	assert.Equal(t, model.EnrichmentEnriched, biz.EnrichmentStatus)
	require.NotNil(t, biz.EnrichedAt)

	enrichable, err := st.ListEnrichable(ctx, camp.ID)
	require.NoError(t, err)
	assert.Empty(t, enrichable)
}

func TestSQLite_ListEnrichable_SkipsEnriched(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	camp := seedCampaign(t, st, 2)
	require.NoError(t, st.ApplyContactUpdate(ctx, model.ContactUpdate{
		BusinessID: "biz-a",
		Contacts:   model.CombinedContacts{PrimaryEmail: "a@example.co.uk"},
		Status:     model.EnrichmentEnriched,
		EnrichedAt: time.Now().UTC(),
	}))

	enrichable, err := st.ListEnrichable(ctx, camp.ID)
	require.NoError(t, err)
	require.Len(t, enrichable, 1)
	assert.Equal(t, "biz-b", enrichable[0].ID)
}

func TestSQLite_ListEnrichable_SkipsWebsiteless(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	camp := seedCampaign(t, st, 1)

	// No website means no page to scrape: the lead sits out enrichment runs.
	inserted, err := st.InsertBusinesses(ctx, camp.ID, []model.Business{
		{ID: "biz-nosite", Name: "Walk-ups Only", Phone: "020 7946 0199"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, inserted)

	enrichable, err := st.ListEnrichable(ctx, camp.ID)
	require.NoError(t, err)
	require.Len(t, enrichable, 1)
	assert.Equal(t, "biz-a", enrichable[0].ID)
}

func TestSQLite_ApplyStatusUpdate_PreservesContacts(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	camp := seedCampaign(t, st, 1)
	require.NoError(t, st.ApplyContactUpdate(ctx, model.ContactUpdate{
		BusinessID: "biz-a",
		Contacts:   model.CombinedContacts{PrimaryEmail: "hello@example.co.uk"},
		Status:     model.EnrichmentEnriched,
		EnrichedAt: time.Now().UTC(),
	}))

	// A later failed attempt flips only the status group.
	require.NoError(t, st.ApplyStatusUpdate(ctx, model.StatusUpdate{
		BusinessID: "biz-a",
		Status:     model.EnrichmentFailed,
		EnrichedAt: time.Now().UTC(),
	}))

	biz, err := st.GetBusiness(ctx, "biz-a")
	require.NoError(t, err)
	assert.Equal(t, model.EnrichmentFailed, biz.EnrichmentStatus)
	assert.Equal(t, "hello@example.co.uk", biz.PrimaryEmail)

	// Failed businesses come back as enrichable for a manual re-run.
	enrichable, err := st.ListEnrichable(ctx, camp.ID)
	require.NoError(t, err)
	require.Len(t, enrichable, 1)
	assert.Equal(t, "biz-a", enrichable[0].ID)
}

func TestSQLite_ApplyStatusUpdate_MissingBusiness(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.ApplyStatusUpdate(context.Background(), model.StatusUpdate{
		BusinessID: "missing",
		Status:     model.EnrichmentFailed,
		EnrichedAt: time.Now().UTC(),
	})
	assert.True(t, eris.Is(err, ErrNotFound))
}

// --- Voice config ---

func TestSQLite_VoiceConfig_MissingIsNil(t *testing.T) {
	st := newTestSQLiteStore(t)

	vc, err := st.GetVoiceConfig(context.Background())
	require.NoError(t, err)
	assert.Nil(t, vc)
}

func TestSQLite_VoiceConfig_SetClampsAndUpserts(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetVoiceConfig(ctx, model.VoiceConfig{
		APIKey:         "key-1",
		AssistantID:    "asst-1",
		CallingEnabled: true,
		MaxConcurrent:  50,
		MaxAttempts:    0,
	}))

	vc, err := st.GetVoiceConfig(ctx)
	require.NoError(t, err)
	require.NotNil(t, vc)
	assert.Equal(t, model.LimitCeil, vc.MaxConcurrent)
	assert.Equal(t, model.LimitFloor, vc.MaxAttempts)
	assert.True(t, vc.CallingEnabled)

	// Second write updates the singleton in place.
	require.NoError(t, st.SetVoiceConfig(ctx, model.VoiceConfig{APIKey: "key-2", MaxConcurrent: 2, MaxAttempts: 3}))
	vc, err = st.GetVoiceConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, "key-2", vc.APIKey)
	assert.Equal(t, 2, vc.MaxConcurrent)
	assert.False(t, vc.CallingEnabled)
}

// --- Dispatch bookkeeping ---

func TestSQLite_ReserveCallable_RespectsConcurrency(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	camp := seedCampaign(t, st, 4)

	reserved, err := st.ReserveCallable(ctx, camp.ID, 2, 3, 0)
	require.NoError(t, err)
	require.Len(t, reserved, 2)
	assert.Equal(t, "biz-a", reserved[0].BusinessID)
	assert.Equal(t, "biz-b", reserved[1].BusinessID)
	assert.Equal(t, 1, reserved[0].Attempts)
	assert.True(t, reserved[0].InFlight)

	// Slots exhausted: nothing more until a release.
	again, err := st.ReserveCallable(ctx, camp.ID, 2, 3, 0)
	require.NoError(t, err)
	assert.Empty(t, again)

	inFlight, err := st.CountInFlight(ctx, camp.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, inFlight)
}

func TestSQLite_ReserveCallable_HonorsLimit(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	camp := seedCampaign(t, st, 3)

	reserved, err := st.ReserveCallable(ctx, camp.ID, 5, 3, 1)
	require.NoError(t, err)
	require.Len(t, reserved, 1)
	assert.Equal(t, "biz-a", reserved[0].BusinessID)
}

func TestSQLite_ReleaseInFlight_RecordsOutcome(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	camp := seedCampaign(t, st, 1)
	reserved, err := st.ReserveCallable(ctx, camp.ID, 1, 3, 0)
	require.NoError(t, err)
	require.Len(t, reserved, 1)

	require.NoError(t, st.ReleaseInFlight(ctx, camp.ID, "biz-a", model.OutcomeNoAnswer, false))

	// Attempt stays consumed and the link is eligible again.
	eligible, err := st.CountEligible(ctx, camp.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, eligible)

	reserved, err = st.ReserveCallable(ctx, camp.ID, 1, 3, 0)
	require.NoError(t, err)
	require.Len(t, reserved, 1)
	assert.Equal(t, 2, reserved[0].Attempts)
}

func TestSQLite_ReleaseInFlight_RefundsAttempt(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	camp := seedCampaign(t, st, 1)
	_, err := st.ReserveCallable(ctx, camp.ID, 1, 3, 0)
	require.NoError(t, err)

	// Registry outage path: outcome unchanged, attempt refunded.
	require.NoError(t, st.ReleaseInFlight(ctx, camp.ID, "biz-a", model.OutcomeNone, true))

	reserved, err := st.ReserveCallable(ctx, camp.ID, 1, 3, 0)
	require.NoError(t, err)
	require.Len(t, reserved, 1)
	assert.Equal(t, 1, reserved[0].Attempts)
	assert.Equal(t, model.OutcomeNone, reserved[0].LastOutcome)
}

func TestSQLite_TerminalOutcomeExcludes(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	camp := seedCampaign(t, st, 2)
	_, err := st.ReserveCallable(ctx, camp.ID, 2, 3, 0)
	require.NoError(t, err)

	require.NoError(t, st.ReleaseInFlight(ctx, camp.ID, "biz-a", model.OutcomeAnswered, false))
	require.NoError(t, st.ReleaseInFlight(ctx, camp.ID, "biz-b", model.OutcomeInvalidNumber, false))

	eligible, err := st.CountEligible(ctx, camp.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, eligible)

	reserved, err := st.ReserveCallable(ctx, camp.ID, 2, 3, 0)
	require.NoError(t, err)
	assert.Empty(t, reserved)
}

func TestSQLite_AttemptsExhaustionExcludes(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	camp := seedCampaign(t, st, 1)
	for i := 0; i < 2; i++ {
		reserved, err := st.ReserveCallable(ctx, camp.ID, 1, 2, 0)
		require.NoError(t, err)
		require.Len(t, reserved, 1)
		require.NoError(t, st.ReleaseInFlight(ctx, camp.ID, "biz-a", model.OutcomeNoAnswer, false))
	}

	eligible, err := st.CountEligible(ctx, camp.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, eligible)
}

func TestSQLite_MarkDispatchedAndFindByCallID(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	camp := seedCampaign(t, st, 1)
	_, err := st.ReserveCallable(ctx, camp.ID, 1, 3, 0)
	require.NoError(t, err)

	require.NoError(t, st.MarkDispatched(ctx, camp.ID, "biz-a", "call-77"))

	link, err := st.FindByCallID(ctx, "call-77")
	require.NoError(t, err)
	assert.Equal(t, "biz-a", link.BusinessID)
	assert.True(t, link.InFlight)
	assert.Equal(t, "call-77", link.LastCallID)

	_, err = st.FindByCallID(ctx, "call-unknown")
	require.Error(t, err)
}
