package campaign

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/compliance"
	"github.com/sells-group/outreach-cli/internal/dispatch"
	"github.com/sells-group/outreach-cli/internal/model"
)

// Store is the persistence surface the campaign service needs.
type Store interface {
	GetCampaign(ctx context.Context, id string) (*model.Campaign, error)
	SetCampaignStatus(ctx context.Context, id string, status model.CampaignStatus) error
	GetLocation(ctx context.Context, id string) (*model.Location, error)
}

// Dispatcher triggers call dispatch cycles.
type Dispatcher interface {
	DispatchNext(ctx context.Context, campaignID string, opts dispatch.Options) (int, error)
}

// CampaignScreener runs the advisory compliance screen.
type CampaignScreener interface {
	Screen(ctx context.Context, campaignID string) (*compliance.Report, error)
}

// Service exposes the operator actions over campaigns. Each action is
// synchronous and idempotent with respect to state: repeating an action the
// campaign has already absorbed returns the current state, not an error.
type Service struct {
	store      Store
	dispatcher Dispatcher
	screener   CampaignScreener
}

// NewService creates the operator-facing campaign service.
func NewService(store Store, dispatcher Dispatcher, screener CampaignScreener) *Service {
	return &Service{store: store, dispatcher: dispatcher, screener: screener}
}

// StartEnrichment moves a created campaign into enriching.
func (s *Service) StartEnrichment(ctx context.Context, id string) (model.CampaignStatus, error) {
	return s.transition(ctx, id, model.CampaignEnriching, false)
}

// FinishEnrichment settles the enrichment phase: enriched when at least one
// business gained contact data, back to created otherwise so the operator
// can retry.
func (s *Service) FinishEnrichment(ctx context.Context, id string, enrichedCount int) (model.CampaignStatus, error) {
	target := model.CampaignEnriched
	if enrichedCount == 0 {
		target = model.CampaignCreated
	}
	return s.transition(ctx, id, target, false)
}

// StartCalling begins dialing for an enriched campaign. The linked location
// must be live; this guard is a compliance precondition and is reported to
// the caller without touching state.
func (s *Service) StartCalling(ctx context.Context, id string) (model.CampaignStatus, error) {
	status, err := s.transition(ctx, id, model.CampaignCalling, true)
	if err != nil {
		return status, err
	}
	if _, err := s.dispatcher.DispatchNext(ctx, id, dispatch.Options{}); err != nil {
		zap.L().Warn("initial dispatch after start failed", zap.String("campaign", id), zap.Error(err))
	}
	return status, nil
}

// Pause stops new dispatch. Calls already in flight complete normally and
// still update their bookkeeping.
func (s *Service) Pause(ctx context.Context, id string) (model.CampaignStatus, error) {
	return s.transition(ctx, id, model.CampaignPaused, false)
}

// Resume continues dialing a paused campaign, re-checking the location guard
// because its status may have changed while paused.
func (s *Service) Resume(ctx context.Context, id string) (model.CampaignStatus, error) {
	status, err := s.transition(ctx, id, model.CampaignCalling, true)
	if err != nil {
		return status, err
	}
	if _, err := s.dispatcher.DispatchNext(ctx, id, dispatch.Options{}); err != nil {
		zap.L().Warn("dispatch after resume failed", zap.String("campaign", id), zap.Error(err))
	}
	return status, nil
}

// Fail marks the campaign failed after an unrecoverable error.
func (s *Service) Fail(ctx context.Context, id string) (model.CampaignStatus, error) {
	return s.transition(ctx, id, model.CampaignFailed, false)
}

// CallNext is the debug bypass: dispatch exactly one call without the
// campaign-state guard. Attempt limits and compliance screening still apply.
func (s *Service) CallNext(ctx context.Context, id string) (int, error) {
	return s.dispatcher.DispatchNext(ctx, id, dispatch.Options{Bypass: true, Limit: 1})
}

// Screen runs the advisory compliance screen for the operator.
func (s *Service) Screen(ctx context.Context, id string) (*compliance.Report, error) {
	return s.screener.Screen(ctx, id)
}

// Status returns the campaign's current state.
func (s *Service) Status(ctx context.Context, id string) (model.CampaignStatus, error) {
	camp, err := s.store.GetCampaign(ctx, id)
	if err != nil {
		return "", eris.Wrap(err, "campaign: load")
	}
	return camp.Status, nil
}

// transition applies a guarded state change. A no-op (already in the target
// state) returns the current state without error.
func (s *Service) transition(ctx context.Context, id string, target model.CampaignStatus, guardLocation bool) (model.CampaignStatus, error) {
	camp, err := s.store.GetCampaign(ctx, id)
	if err != nil {
		return "", eris.Wrap(err, "campaign: load")
	}

	if camp.Status == target {
		return camp.Status, nil
	}

	if err := Transition(camp.Status, target); err != nil {
		return camp.Status, err
	}

	if guardLocation {
		loc, err := s.store.GetLocation(ctx, camp.LocationID)
		if err != nil {
			return camp.Status, eris.Wrap(err, "campaign: load location")
		}
		if err := guardCallable(loc); err != nil {
			return camp.Status, err
		}
	}

	if err := s.store.SetCampaignStatus(ctx, id, target); err != nil {
		return camp.Status, eris.Wrap(err, "campaign: set status")
	}

	zap.L().Info("campaign transitioned",
		zap.String("campaign", id),
		zap.String("from", string(camp.Status)),
		zap.String("to", string(target)),
	)
	return target, nil
}
