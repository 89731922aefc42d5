// Package store persists campaigns, businesses, and call bookkeeping. Two
// implementations exist: SQLite for single-operator use and Postgres for
// shared deployments.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/model"
)

// ErrNotFound is wrapped by both implementations when a lookup misses, so
// callers can branch with eris.Is regardless of driver.
var ErrNotFound = eris.New("store: not found")

// CampaignFilter specifies criteria for listing campaigns.
type CampaignFilter struct {
	Status model.CampaignStatus `json:"status,omitempty"`
	Limit  int                  `json:"limit,omitempty"`
	Offset int                  `json:"offset,omitempty"`
}

// Store defines the persistence interface for the outreach pipeline.
//
// ReserveCallable and ReleaseInFlight carry the dispatch invariants: the
// reservation runs in a single transaction so concurrent dispatch cycles can
// never jointly exceed the concurrency limit, and a release either records
// the call outcome or refunds the attempt the reservation consumed.
type Store interface {
	// Locations
	UpsertLocation(ctx context.Context, loc model.Location) error
	GetLocation(ctx context.Context, id string) (*model.Location, error)

	// Campaigns
	CreateCampaign(ctx context.Context, camp model.Campaign) (*model.Campaign, error)
	GetCampaign(ctx context.Context, id string) (*model.Campaign, error)
	ListCampaigns(ctx context.Context, filter CampaignFilter) ([]model.Campaign, error)
	SetCampaignStatus(ctx context.Context, id string, status model.CampaignStatus) error

	// Businesses
	InsertBusinesses(ctx context.Context, campaignID string, businesses []model.Business) (int, error)
	GetBusiness(ctx context.Context, id string) (*model.Business, error)
	ListCampaignBusinesses(ctx context.Context, campaignID string) ([]model.Business, error)
	// ListEnrichable returns the businesses eligible for an enrichment run:
	// not yet enriched and carrying a website. Failed businesses stay
	// eligible for a later re-run.
	ListEnrichable(ctx context.Context, campaignID string) ([]model.Business, error)
	ApplyContactUpdate(ctx context.Context, upd model.ContactUpdate) error
	ApplyStatusUpdate(ctx context.Context, upd model.StatusUpdate) error

	// Voice configuration (singleton row)
	GetVoiceConfig(ctx context.Context) (*model.VoiceConfig, error)
	SetVoiceConfig(ctx context.Context, vc model.VoiceConfig) error

	// Dispatch bookkeeping
	ReserveCallable(ctx context.Context, campaignID string, maxConcurrent, maxAttempts, limit int) ([]model.CampaignBusiness, error)
	ReleaseInFlight(ctx context.Context, campaignID, businessID string, outcome model.CallOutcome, refundAttempt bool) error
	MarkDispatched(ctx context.Context, campaignID, businessID, callID string) error
	CountInFlight(ctx context.Context, campaignID string) (int, error)
	CountEligible(ctx context.Context, campaignID string, maxAttempts int) (int, error)
	FindByCallID(ctx context.Context, callID string) (*model.CampaignBusiness, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// terminalOutcomes are the outcomes that retire a link from dispatch; kept in
// one place so both stores build the same eligibility predicate.
var terminalOutcomes = []model.CallOutcome{
	model.OutcomeAnswered,
	model.OutcomeInvalidNumber,
	model.OutcomeUnreachable,
	model.OutcomeBlocked,
}
