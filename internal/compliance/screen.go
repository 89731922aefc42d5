// Package compliance screens campaign phone numbers against a do-not-call
// opt-out registry before any dial.
package compliance

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/phone"
)

// Reason codes attached to not-allowed verdicts.
const (
	ReasonInvalidFormat = "invalid-format"
	ReasonOptedOut      = "opted-out"
	ReasonCheckFailed   = "check-failed"
)

// RegistryClient looks a number up in the opt-out registry.
type RegistryClient interface {
	// Lookup reports whether the E.164 number appears on the opt-out list.
	Lookup(ctx context.Context, e164 string) (bool, error)
}

// BusinessLister provides the businesses linked to a campaign.
type BusinessLister interface {
	ListCampaignBusinesses(ctx context.Context, campaignID string) ([]model.Business, error)
}

// Verdict is the screening result for one business's number.
type Verdict struct {
	BusinessID string `json:"business_id"`
	Phone      string `json:"phone"`
	Allowed    bool   `json:"allowed"`
	Reason     string `json:"reason,omitempty"`
}

// Report summarizes a screening run across a campaign. Checked and Blocked
// count distinct dialable numbers; Results carries one verdict per business,
// so duplicated numbers appear there more than once.
type Report struct {
	Checked int       `json:"checked"`
	Blocked int       `json:"blocked"`
	Results []Verdict `json:"results"`
}

// Screener validates campaign numbers against the registry. Results are
// advisory for the operator; the dispatcher re-checks each number
// immediately before dialing because opt-out registries change.
type Screener struct {
	registry RegistryClient
	lister   BusinessLister
}

// NewScreener creates a screener.
func NewScreener(registry RegistryClient, lister BusinessLister) *Screener {
	return &Screener{registry: registry, lister: lister}
}

// Screen checks every distinct dialable number in the campaign; counts are
// per number, verdicts per business. Numbers that fail E.164 normalization
// are not-allowed with ReasonInvalidFormat; listed numbers with
// ReasonOptedOut; a registry lookup failure marks the number not-allowed for
// this run with ReasonCheckFailed rather than failing the whole report.
func (s *Screener) Screen(ctx context.Context, campaignID string) (*Report, error) {
	businesses, err := s.lister.ListCampaignBusinesses(ctx, campaignID)
	if err != nil {
		return nil, eris.Wrap(err, "compliance: list campaign businesses")
	}

	report := &Report{}
	seen := map[string]Verdict{}

	for _, biz := range businesses {
		raw := biz.DialPhone()
		key := phone.Canonical(raw)
		if v, ok := seen[key]; ok && key != "" {
			// Same number as an earlier business: reuse the verdict and
			// leave the counters alone.
			v.BusinessID = biz.ID
			v.Phone = raw
			report.Results = append(report.Results, v)
			continue
		}

		v := s.Check(ctx, raw)
		v.BusinessID = biz.ID
		if key != "" {
			seen[key] = v
		}
		report.add(v)
	}

	zap.L().Info("compliance screen complete",
		zap.String("campaign", campaignID),
		zap.Int("checked", report.Checked),
		zap.Int("blocked", report.Blocked),
	)
	return report, nil
}

// Check screens a single raw number. Used by Screen and by the dispatcher's
// pre-dial re-check.
func (s *Screener) Check(ctx context.Context, raw string) Verdict {
	v := Verdict{Phone: raw}

	e164, err := phone.Normalize(raw)
	if err != nil {
		v.Reason = ReasonInvalidFormat
		return v
	}

	listed, err := s.registry.Lookup(ctx, e164)
	if err != nil {
		// Fail closed: a number we cannot check is not dialed this cycle.
		zap.L().Warn("opt-out registry lookup failed", zap.String("phone", e164), zap.Error(err))
		v.Reason = ReasonCheckFailed
		return v
	}
	if listed {
		v.Reason = ReasonOptedOut
		return v
	}

	v.Allowed = true
	return v
}

func (r *Report) add(v Verdict) {
	r.Checked++
	if !v.Allowed {
		r.Blocked++
	}
	r.Results = append(r.Results, v)
}
