package enrich

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/outreach-cli/internal/contacts"
	"github.com/sells-group/outreach-cli/internal/model"
)

// Result is the enrichment outcome for one business.
type Result struct {
	BusinessID      string
	Status          model.EnrichmentStatus
	Contacts        model.CombinedContacts
	SocialLinks     map[string]string
	BusinessDetails string
	SiteData        string
	SourceErrs      []error
}

// Orchestrator enriches batches of businesses through the registered
// discovery sources.
type Orchestrator struct {
	registry *Registry
	merger   *contacts.Merger
	fanOut   int
	now      func() time.Time
}

// NewOrchestrator creates an orchestrator. fanOut bounds the number of
// businesses enriched concurrently; values below 1 fall back to 5.
func NewOrchestrator(registry *Registry, merger *contacts.Merger, fanOut int) *Orchestrator {
	if fanOut < 1 {
		fanOut = 5
	}
	return &Orchestrator{
		registry: registry,
		merger:   merger,
		fanOut:   fanOut,
		now:      time.Now,
	}
}

// WithNow sets a fixed clock for testing.
func (o *Orchestrator) WithNow(fn func() time.Time) *Orchestrator {
	o.now = fn
	return o
}

// Enrich processes each business independently and concurrently, bounded by
// the fan-out limit. One business's failure never fails the batch; the
// returned slice is positionally aligned with the input.
func (o *Orchestrator) Enrich(ctx context.Context, businesses []model.Business) []Result {
	results := make([]Result, len(businesses))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.fanOut)

	for i, biz := range businesses {
		g.Go(func() error {
			results[i] = o.enrichOne(gctx, biz)
			return nil
		})
	}
	// Workers never return errors; the group is used for bounded fan-out.
	_ = g.Wait()

	return results
}

// enrichOne runs the source cascade for a single business. The primary
// source is always queried; the search fallback runs when the primary failed
// or found no contacts. Both outputs feed the merger.
func (o *Orchestrator) enrichOne(ctx context.Context, biz model.Business) Result {
	log := zap.L().With(zap.String("business", biz.ID), zap.String("website", biz.Website))

	res := Result{BusinessID: biz.ID, Status: model.EnrichmentFailed}

	var records []contacts.SourceRecord
	var details detailCapture

	primaryEmpty := true
	for _, src := range o.registry.Ordered() {
		if src.Priority() > 0 && !primaryEmpty {
			// Fallback sources only run when the cascade so far is empty.
			break
		}

		rec, err := src.Discover(ctx, biz)
		rec.Source = src.Name()
		rec.Priority = src.Priority()
		if err != nil {
			rec.Err = err
			res.SourceErrs = append(res.SourceErrs, err)
			log.Warn("discovery source failed", zap.String("source", src.Name()), zap.Error(err))
		} else {
			details.absorb(rec)
			if hasContactData(rec) {
				primaryEmpty = false
			}
		}
		records = append(records, rec)
	}

	res.Contacts = o.merger.Merge(records, biz.Types)
	res.SocialLinks = details.socialLinks
	res.BusinessDetails = details.businessDetails
	res.SiteData = details.siteData

	if !res.Contacts.Empty() {
		res.Status = model.EnrichmentEnriched
	}

	log.Debug("business enriched",
		zap.String("status", string(res.Status)),
		zap.Int("emails", len(res.Contacts.AllEmails)),
		zap.Int("phones", len(res.Contacts.AllPhones)),
	)
	return res
}

// StatusUpdate projects a result onto the status-only persistence command,
// used for failed results so contact fields survive the attempt.
func (o *Orchestrator) StatusUpdate(res Result) model.StatusUpdate {
	return model.StatusUpdate{
		BusinessID: res.BusinessID,
		Status:     res.Status,
		EnrichedAt: o.now(),
	}
}

// ContactUpdate converts a result into the typed persistence command. The
// write is unconditional for enriched results: last run wins.
func (o *Orchestrator) ContactUpdate(res Result) model.ContactUpdate {
	return model.ContactUpdate{
		BusinessID:      res.BusinessID,
		Contacts:        res.Contacts,
		SocialLinks:     res.SocialLinks,
		BusinessDetails: res.BusinessDetails,
		SiteData:        res.SiteData,
		Status:          res.Status,
		EnrichedAt:      o.now(),
	}
}

func hasContactData(rec contacts.SourceRecord) bool {
	return len(rec.Emails) > 0 || len(rec.Phones) > 0 || len(rec.People) > 0
}

// detailCapture keeps the first non-empty profile metadata seen across the
// cascade.
type detailCapture struct {
	socialLinks     map[string]string
	businessDetails string
	siteData        string
}

func (d *detailCapture) absorb(rec contacts.SourceRecord) {
	if d.socialLinks == nil && len(rec.SocialLinks) > 0 {
		d.socialLinks = rec.SocialLinks
	}
	if d.businessDetails == "" {
		d.businessDetails = rec.BusinessDetails
	}
	if d.siteData == "" {
		d.siteData = rec.SiteData
	}
}
