package enrich

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/outreach-cli/internal/contacts"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/pkg/outscraper"
)

// outscraperConfidence reflects crawled-site data being first-party.
const outscraperConfidence = 0.9

// OutscraperSource discovers contacts by crawling the business website
// through the Outscraper profile API. It is the primary source in the
// cascade.
type OutscraperSource struct {
	client  outscraper.Client
	limiter *rate.Limiter
}

// NewOutscraperSource creates the primary discovery source. rateLimit is in
// requests per second; values <= 0 fall back to 5.
func NewOutscraperSource(client outscraper.Client, rateLimit float64) *OutscraperSource {
	if rateLimit <= 0 {
		rateLimit = 5
	}
	return &OutscraperSource{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rateLimit), 1),
	}
}

func (s *OutscraperSource) Name() string { return "outscraper" }

func (s *OutscraperSource) Priority() int { return 0 }

// Discover crawls the business website for contact data. A business without
// a website yields nothing so the cascade can fall through to search.
func (s *OutscraperSource) Discover(ctx context.Context, biz model.Business) (contacts.SourceRecord, error) {
	rec := contacts.SourceRecord{Source: s.Name(), Priority: s.Priority(), Confidence: outscraperConfidence}

	domain := websiteDomain(biz.Website)
	if domain == "" {
		return rec, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return rec, eris.Wrap(err, "outscraper: rate limit wait")
	}

	res, err := s.client.EmailsAndContacts(ctx, domain)
	if err != nil {
		return rec, eris.Wrap(err, "outscraper: discover")
	}

	for _, e := range res.Emails {
		rec.Emails = append(rec.Emails, e.Value)
	}
	for _, p := range res.Phones {
		rec.Phones = append(rec.Phones, p.Value)
	}
	rec.SocialLinks = res.Socials
	rec.PageText = res.PageContent
	rec.SiteData = marshalMeta(res.SiteData)
	rec.BusinessDetails = marshalMeta(res.Details)
	return rec, nil
}

// websiteDomain strips scheme, path and www prefix from a stored website URL.
func websiteDomain(website string) string {
	website = strings.TrimSpace(website)
	if website == "" {
		return ""
	}
	if !strings.Contains(website, "://") {
		website = "https://" + website
	}
	u, err := url.Parse(website)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}

// marshalMeta serializes profile metadata for opaque storage on the business
// row. Marshal of these plain structs cannot fail.
func marshalMeta(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
