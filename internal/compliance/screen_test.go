package compliance

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/model"
)

type fakeRegistry struct {
	listed map[string]bool
	err    error
	calls  int
}

func (f *fakeRegistry) Lookup(_ context.Context, e164 string) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.listed[e164], nil
}

type fakeLister struct {
	businesses []model.Business
	err        error
}

func (f *fakeLister) ListCampaignBusinesses(context.Context, string) ([]model.Business, error) {
	return f.businesses, f.err
}

func TestScreen_Verdicts(t *testing.T) {
	registry := &fakeRegistry{listed: map[string]bool{"+441614960123": true}}
	lister := &fakeLister{businesses: []model.Business{
		{ID: "b1", Phone: "020 7946 0111"},
		{ID: "b2", Phone: "0161 496 0123"},
		{ID: "b3", Phone: "not-a-number"},
	}}

	s := NewScreener(registry, lister)
	report, err := s.Screen(context.Background(), "c1")
	require.NoError(t, err)

	assert.Equal(t, 3, report.Checked)
	assert.Equal(t, 2, report.Blocked)
	require.Len(t, report.Results, 3)

	assert.True(t, report.Results[0].Allowed)
	assert.False(t, report.Results[1].Allowed)
	assert.Equal(t, ReasonOptedOut, report.Results[1].Reason)
	assert.False(t, report.Results[2].Allowed)
	assert.Equal(t, ReasonInvalidFormat, report.Results[2].Reason)
}

func TestScreen_DuplicateNumbersCheckedOnce(t *testing.T) {
	registry := &fakeRegistry{}
	lister := &fakeLister{businesses: []model.Business{
		{ID: "b1", Phone: "020 7946 0111"},
		{ID: "b2", Phone: "+44 20 7946 0111"}, // same number, different format
	}}

	s := NewScreener(registry, lister)
	report, err := s.Screen(context.Background(), "c1")
	require.NoError(t, err)

	// Counts are per distinct number; verdicts per business.
	assert.Equal(t, 1, report.Checked)
	assert.Equal(t, 1, registry.calls)
	require.Len(t, report.Results, 2)
	assert.True(t, report.Results[0].Allowed)
	assert.True(t, report.Results[1].Allowed)
}

func TestScreen_DuplicateBlockedNumberCountedOnce(t *testing.T) {
	registry := &fakeRegistry{listed: map[string]bool{"+442079460111": true}}
	lister := &fakeLister{businesses: []model.Business{
		{ID: "b1", Phone: "020 7946 0111"},
		{ID: "b2", Phone: "020 7946 0111"},
		{ID: "b3", Phone: "0161 496 0123"},
	}}

	s := NewScreener(registry, lister)
	report, err := s.Screen(context.Background(), "c1")
	require.NoError(t, err)

	assert.Equal(t, 2, report.Checked)
	assert.Equal(t, 1, report.Blocked)
	require.Len(t, report.Results, 3)
	assert.Equal(t, ReasonOptedOut, report.Results[0].Reason)
	assert.Equal(t, ReasonOptedOut, report.Results[1].Reason)
	assert.True(t, report.Results[2].Allowed)
}

func TestScreen_LookupFailureFailsClosed(t *testing.T) {
	registry := &fakeRegistry{err: eris.New("registry timeout")}
	lister := &fakeLister{businesses: []model.Business{{ID: "b1", Phone: "020 7946 0111"}}}

	s := NewScreener(registry, lister)
	report, err := s.Screen(context.Background(), "c1")
	require.NoError(t, err)

	assert.Equal(t, 1, report.Blocked)
	assert.Equal(t, ReasonCheckFailed, report.Results[0].Reason)
}

func TestScreen_PrefersEnrichedPrimaryPhone(t *testing.T) {
	registry := &fakeRegistry{listed: map[string]bool{"+442079460111": true}}
	lister := &fakeLister{businesses: []model.Business{
		{ID: "b1", Phone: "0161 496 0123", PrimaryPhone: "020 7946 0111"},
	}}

	s := NewScreener(registry, lister)
	report, err := s.Screen(context.Background(), "c1")
	require.NoError(t, err)

	assert.Equal(t, ReasonOptedOut, report.Results[0].Reason)
}

func TestCheck_InvalidNeverHitsRegistry(t *testing.T) {
	registry := &fakeRegistry{}
	s := NewScreener(registry, nil)

	v := s.Check(context.Background(), "not-a-number")
	assert.False(t, v.Allowed)
	assert.Equal(t, ReasonInvalidFormat, v.Reason)
	assert.Zero(t, registry.calls)
}
