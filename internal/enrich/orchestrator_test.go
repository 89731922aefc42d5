package enrich

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/contacts"
	"github.com/sells-group/outreach-cli/internal/model"
)

type fakeSource struct {
	name     string
	priority int
	fn       func(biz model.Business) (contacts.SourceRecord, error)
	calls    atomic.Int64
}

func (f *fakeSource) Name() string  { return f.name }
func (f *fakeSource) Priority() int { return f.priority }

func (f *fakeSource) Discover(_ context.Context, biz model.Business) (contacts.SourceRecord, error) {
	f.calls.Add(1)
	return f.fn(biz)
}

func newOrchestrator(srcs ...Source) *Orchestrator {
	reg := NewRegistry()
	for _, s := range srcs {
		reg.Register(s)
	}
	return NewOrchestrator(reg, contacts.NewMerger(contacts.Config{}), 3)
}

func TestEnrich_PrimaryYieldSkipsFallback(t *testing.T) {
	primary := &fakeSource{name: "profile", priority: 0, fn: func(model.Business) (contacts.SourceRecord, error) {
		return contacts.SourceRecord{Emails: []string{"hello@x.com"}}, nil
	}}
	fallback := &fakeSource{name: "search", priority: 1, fn: func(model.Business) (contacts.SourceRecord, error) {
		return contacts.SourceRecord{Emails: []string{"found@x.com"}}, nil
	}}

	o := newOrchestrator(primary, fallback)
	results := o.Enrich(context.Background(), []model.Business{{ID: "b1", Website: "https://x.com"}})

	require.Len(t, results, 1)
	assert.Equal(t, model.EnrichmentEnriched, results[0].Status)
	assert.Equal(t, "hello@x.com", results[0].Contacts.PrimaryEmail)
	assert.EqualValues(t, 0, fallback.calls.Load())
}

func TestEnrich_PrimaryFailureFallsBack(t *testing.T) {
	primary := &fakeSource{name: "profile", priority: 0, fn: func(model.Business) (contacts.SourceRecord, error) {
		return contacts.SourceRecord{}, eris.New("profile api down")
	}}
	fallback := &fakeSource{name: "search", priority: 1, fn: func(model.Business) (contacts.SourceRecord, error) {
		return contacts.SourceRecord{Phones: []string{"020 7946 0111"}}, nil
	}}

	o := newOrchestrator(primary, fallback)
	results := o.Enrich(context.Background(), []model.Business{{ID: "b1", Website: "https://x.com"}})

	require.Len(t, results, 1)
	assert.Equal(t, model.EnrichmentEnriched, results[0].Status)
	assert.Equal(t, "020 7946 0111", results[0].Contacts.PrimaryPhone)
	require.Len(t, results[0].SourceErrs, 1)
}

func TestEnrich_PrimaryEmptyMergesBothSources(t *testing.T) {
	primary := &fakeSource{name: "profile", priority: 0, fn: func(model.Business) (contacts.SourceRecord, error) {
		return contacts.SourceRecord{SiteData: "site text", SocialLinks: map[string]string{"facebook": "fb.com/x"}}, nil
	}}
	fallback := &fakeSource{name: "search", priority: 1, fn: func(model.Business) (contacts.SourceRecord, error) {
		return contacts.SourceRecord{Emails: []string{"found@x.com"}}, nil
	}}

	o := newOrchestrator(primary, fallback)
	results := o.Enrich(context.Background(), []model.Business{{ID: "b1", Website: "https://x.com"}})

	require.Len(t, results, 1)
	assert.Equal(t, model.EnrichmentEnriched, results[0].Status)
	assert.Equal(t, "found@x.com", results[0].Contacts.PrimaryEmail)
	assert.Equal(t, "site text", results[0].SiteData)
	assert.Equal(t, "fb.com/x", results[0].SocialLinks["facebook"])
}

func TestEnrich_OneFailureDoesNotFailBatch(t *testing.T) {
	primary := &fakeSource{name: "profile", priority: 0, fn: func(biz model.Business) (contacts.SourceRecord, error) {
		if biz.ID == "bad" {
			return contacts.SourceRecord{}, eris.New("boom")
		}
		return contacts.SourceRecord{Emails: []string{biz.ID + "@x.com"}}, nil
	}}
	fallback := &fakeSource{name: "search", priority: 1, fn: func(model.Business) (contacts.SourceRecord, error) {
		return contacts.SourceRecord{}, eris.New("nothing found")
	}}

	o := newOrchestrator(primary, fallback)
	results := o.Enrich(context.Background(), []model.Business{
		{ID: "b1", Website: "https://a.com"},
		{ID: "bad", Website: "https://b.com"},
		{ID: "b3", Website: "https://c.com"},
	})

	require.Len(t, results, 3)
	assert.Equal(t, model.EnrichmentEnriched, results[0].Status)
	assert.Equal(t, model.EnrichmentFailed, results[1].Status)
	assert.Equal(t, model.EnrichmentEnriched, results[2].Status)
	assert.Equal(t, "b1@x.com", results[0].Contacts.PrimaryEmail)
	assert.Equal(t, "b3@x.com", results[2].Contacts.PrimaryEmail)
}

func TestContactUpdate_StampsEnrichedAt(t *testing.T) {
	o := newOrchestrator()
	res := Result{BusinessID: "b1", Status: model.EnrichmentEnriched}

	upd := o.ContactUpdate(res)
	assert.Equal(t, "b1", upd.BusinessID)
	assert.Equal(t, model.EnrichmentEnriched, upd.Status)
	assert.False(t, upd.EnrichedAt.IsZero())
}

func TestStatusUpdate_CarriesFailedStatus(t *testing.T) {
	o := newOrchestrator()
	res := Result{BusinessID: "b1", Status: model.EnrichmentFailed}

	upd := o.StatusUpdate(res)
	assert.Equal(t, "b1", upd.BusinessID)
	assert.Equal(t, model.EnrichmentFailed, upd.Status)
	assert.False(t, upd.EnrichedAt.IsZero())
}
