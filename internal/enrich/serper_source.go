package enrich

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/outreach-cli/internal/contacts"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/pkg/serper"
)

// serperConfidence reflects snippet-mined data being second-hand.
const serperConfidence = 0.5

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	// UK-shaped numbers in snippets: +44 or 0 trunk prefix, spaced or not.
	phonePattern = regexp.MustCompile(`(?:\+44\s?\d{2,4}|\(?0\d{2,4}\)?)[\s\-]?\d{3,4}[\s\-]?\d{3,4}`)
)

// SerperSource mines contact data out of Google search snippets. It runs as
// the fallback when the website crawl yields nothing.
type SerperSource struct {
	client  serper.Client
	limiter *rate.Limiter
}

// NewSerperSource creates the search-based fallback source. rateLimit is in
// requests per second; values <= 0 fall back to 2.
func NewSerperSource(client serper.Client, rateLimit float64) *SerperSource {
	if rateLimit <= 0 {
		rateLimit = 2
	}
	return &SerperSource{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rateLimit), 1),
	}
}

func (s *SerperSource) Name() string { return "serper" }

func (s *SerperSource) Priority() int { return 1 }

// Discover searches for the business and mines the organic snippets for
// email addresses and phone numbers.
func (s *SerperSource) Discover(ctx context.Context, biz model.Business) (contacts.SourceRecord, error) {
	rec := contacts.SourceRecord{Source: s.Name(), Priority: s.Priority(), Confidence: serperConfidence}

	if err := s.limiter.Wait(ctx); err != nil {
		return rec, eris.Wrap(err, "serper: rate limit wait")
	}

	query := fmt.Sprintf("%q %s contact", biz.Name, biz.Postcode)
	res, err := s.client.Search(ctx, query, serper.WithCountry("gb"), serper.WithNumResults(10))
	if err != nil {
		return rec, eris.Wrap(err, "serper: discover")
	}

	var text strings.Builder
	for _, r := range res.Organic {
		text.WriteString(r.Title)
		text.WriteByte('\n')
		text.WriteString(r.Snippet)
		text.WriteByte('\n')
	}
	rec.PageText = text.String()
	rec.Emails = dedupe(emailPattern.FindAllString(rec.PageText, -1))
	rec.Phones = dedupe(phonePattern.FindAllString(rec.PageText, -1))
	return rec, nil
}

func dedupe(vals []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if v == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}
