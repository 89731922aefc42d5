package enrich

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/pkg/outscraper"
	"github.com/sells-group/outreach-cli/pkg/serper"
)

type fakeOutscraper struct {
	res     *outscraper.ContactsResult
	err     error
	queries []string
}

func (f *fakeOutscraper) EmailsAndContacts(_ context.Context, domain string) (*outscraper.ContactsResult, error) {
	f.queries = append(f.queries, domain)
	if f.err != nil {
		return nil, f.err
	}
	return f.res, nil
}

type fakeSerper struct {
	res     *serper.SearchResponse
	err     error
	queries []string
}

func (f *fakeSerper) Search(_ context.Context, query string, _ ...serper.SearchOption) (*serper.SearchResponse, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.res, nil
}

func TestOutscraperSource_Discover(t *testing.T) {
	client := &fakeOutscraper{res: &outscraper.ContactsResult{
		Query:   "joscafe.co.uk",
		Emails:  []outscraper.ValueItem{{Value: "hello@joscafe.co.uk"}},
		Phones:  []outscraper.ValueItem{{Value: "020 7946 0110"}},
		Socials: map[string]string{"facebook": "https://facebook.com/joscafe"},
	}}
	src := NewOutscraperSource(client, 100)

	rec, err := src.Discover(context.Background(), model.Business{
		ID:      "biz-1",
		Name:    "Jo's Cafe",
		Website: "https://www.joscafe.co.uk/menu",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"joscafe.co.uk"}, client.queries)
	assert.Equal(t, []string{"hello@joscafe.co.uk"}, rec.Emails)
	assert.Equal(t, []string{"020 7946 0110"}, rec.Phones)
	assert.Equal(t, "https://facebook.com/joscafe", rec.SocialLinks["facebook"])
	assert.Equal(t, 0, rec.Priority)
}

func TestOutscraperSource_NoWebsiteYieldsNothing(t *testing.T) {
	client := &fakeOutscraper{}
	src := NewOutscraperSource(client, 100)

	rec, err := src.Discover(context.Background(), model.Business{ID: "biz-1", Name: "No Site Ltd"})
	require.NoError(t, err)
	assert.Empty(t, client.queries)
	assert.Empty(t, rec.Emails)
	assert.Empty(t, rec.Phones)
}

func TestWebsiteDomain(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.joscafe.co.uk/menu", "joscafe.co.uk"},
		{"http://joscafe.co.uk", "joscafe.co.uk"},
		{"joscafe.co.uk", "joscafe.co.uk"},
		{"WWW.JOSCAFE.CO.UK", "joscafe.co.uk"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, websiteDomain(tt.in), tt.in)
	}
}

func TestSerperSource_MinesSnippets(t *testing.T) {
	client := &fakeSerper{res: &serper.SearchResponse{Organic: []serper.OrganicResult{
		{
			Title:   "Jo's Cafe - Contact",
			Snippet: "Call us on 020 7946 0110 or email hello@joscafe.co.uk today.",
		},
		{
			Title:   "Jo's Cafe | Directory",
			Snippet: "Phone: +44 20 7946 0110. Email: HELLO@joscafe.co.uk",
		},
	}}}
	src := NewSerperSource(client, 100)

	rec, err := src.Discover(context.Background(), model.Business{
		ID:       "biz-1",
		Name:     "Jo's Cafe",
		Postcode: "EC1A 1BB",
	})
	require.NoError(t, err)
	require.Len(t, client.queries, 1)
	assert.Contains(t, client.queries[0], `"Jo's Cafe"`)
	assert.Contains(t, client.queries[0], "EC1A 1BB")

	// Duplicate email differs only by case and is collapsed.
	assert.Equal(t, []string{"hello@joscafe.co.uk"}, rec.Emails)
	require.NotEmpty(t, rec.Phones)
	assert.Contains(t, rec.Phones[0], "020 7946")
	assert.Equal(t, 1, rec.Priority)
}

func TestSerperSource_ErrorPropagates(t *testing.T) {
	client := &fakeSerper{err: assert.AnError}
	src := NewSerperSource(client, 100)

	_, err := src.Discover(context.Background(), model.Business{Name: "Jo's Cafe"})
	require.Error(t, err)
}
