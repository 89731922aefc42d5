package model

import "time"

// CampaignStatus represents the lifecycle state of an outreach campaign.
type CampaignStatus string

const (
	CampaignCreated   CampaignStatus = "created"
	CampaignEnriching CampaignStatus = "enriching"
	CampaignEnriched  CampaignStatus = "enriched"
	CampaignCalling   CampaignStatus = "calling"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
	CampaignFailed    CampaignStatus = "failed"
)

// Campaign is a batch of businesses targeted for outreach, tied to one
// location and business category.
type Campaign struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	BusinessType string         `json:"business_type"`
	Postcode     string         `json:"postcode"`
	LocationID   string         `json:"location_id"`
	Status       CampaignStatus `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
}

// CallOutcome classifies the result of a single call attempt.
type CallOutcome string

const (
	OutcomeNone          CallOutcome = ""
	OutcomeAnswered      CallOutcome = "answered"
	OutcomeNoAnswer      CallOutcome = "no_answer"
	OutcomeBusy          CallOutcome = "busy"
	OutcomeVoicemail     CallOutcome = "voicemail"
	OutcomeProviderError CallOutcome = "provider_error"
	OutcomeInvalidNumber CallOutcome = "invalid_number"
	OutcomeUnreachable   CallOutcome = "unreachable"
	OutcomeBlocked       CallOutcome = "blocked"
)

// Terminal reports whether the outcome retires the business from further
// dispatch regardless of remaining attempts.
func (o CallOutcome) Terminal() bool {
	switch o {
	case OutcomeAnswered, OutcomeInvalidNumber, OutcomeUnreachable, OutcomeBlocked:
		return true
	}
	return false
}

// CampaignBusiness is the join row linking a campaign to one of its target
// businesses, carrying the per-campaign call bookkeeping.
type CampaignBusiness struct {
	CampaignID      string      `json:"campaign_id"`
	BusinessID      string      `json:"business_id"`
	Position        int         `json:"position"` // join insertion order, drives dispatch ordering
	Attempts        int         `json:"attempts"`
	InFlight        bool        `json:"in_flight"`
	LastOutcome     CallOutcome `json:"last_outcome,omitempty"`
	LastCallID      string      `json:"last_call_id,omitempty"`
	LastAttemptedAt *time.Time  `json:"last_attempted_at,omitempty"`
}

// Exhausted reports whether the link has no dispatch eligibility left:
// either its last outcome is terminal or the attempt budget is spent.
func (cb CampaignBusiness) Exhausted(maxAttempts int) bool {
	return cb.LastOutcome.Terminal() || cb.Attempts >= maxAttempts
}
