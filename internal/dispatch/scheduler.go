// Package dispatch is the admission-controlled scheduler that selects
// callable businesses, enforces concurrency and attempt limits, and issues
// dial requests through the voice gateway.
package dispatch

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/compliance"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/phone"
)

// Operation errors. A missing or disabled voice configuration is fatal for
// the requested operation and never degrades silently.
var (
	ErrNoVoiceConfig   = eris.New("dispatch: voice config not set")
	ErrCallingDisabled = eris.New("dispatch: calling is disabled")
	ErrNotCalling      = eris.New("dispatch: campaign is not in calling state")
)

// Store is the persistence surface the scheduler needs. ReserveCallable must
// be atomic: counting in-flight calls, comparing against the concurrency
// limit, and marking rows in-flight with their attempt incremented happen in
// a single transaction so overlapping dispatch invocations cannot jointly
// exceed the limit.
type Store interface {
	GetCampaign(ctx context.Context, id string) (*model.Campaign, error)
	SetCampaignStatus(ctx context.Context, id string, status model.CampaignStatus) error
	GetVoiceConfig(ctx context.Context) (*model.VoiceConfig, error)
	GetBusiness(ctx context.Context, id string) (*model.Business, error)

	// ReserveCallable atomically marks up to min(maxConcurrent-inFlight, limit)
	// eligible links in-flight, incrementing their attempt counters, and
	// returns the reserved rows in join order. limit <= 0 means no extra cap.
	ReserveCallable(ctx context.Context, campaignID string, maxConcurrent, maxAttempts, limit int) ([]model.CampaignBusiness, error)

	// ReleaseInFlight clears the in-flight flag, recording the outcome
	// (OutcomeNone leaves the previous outcome in place) and optionally
	// refunding the attempt consumed by the reservation.
	ReleaseInFlight(ctx context.Context, campaignID, businessID string, outcome model.CallOutcome, refundAttempt bool) error

	// MarkDispatched records the provider call id on an in-flight link.
	MarkDispatched(ctx context.Context, campaignID, businessID, callID string) error

	CountInFlight(ctx context.Context, campaignID string) (int, error)
	CountEligible(ctx context.Context, campaignID string, maxAttempts int) (int, error)
	FindByCallID(ctx context.Context, callID string) (*model.CampaignBusiness, error)
}

// Gateway places an outbound call with the voice provider.
type Gateway interface {
	PlaceCall(ctx context.Context, req DialRequest) (callID string, err error)
}

// Screener re-checks a number against the opt-out registry immediately
// before dialing.
type Screener interface {
	Check(ctx context.Context, raw string) compliance.Verdict
}

// DialRequest carries everything the gateway needs for one outbound call.
type DialRequest struct {
	CampaignID   string
	BusinessID   string
	CustomerE164 string
	// Variables are injected into the assistant prompt (business name,
	// car park name).
	Variables map[string]string
}

// Options modifies a dispatch cycle.
type Options struct {
	// Bypass skips the campaign-state guard: the debug path that dials
	// without the campaign being in calling state. Attempt limits and
	// compliance screening still apply.
	Bypass bool
	// Limit caps the number of calls dispatched this cycle; 0 means up to
	// the free concurrency slots.
	Limit int
}

// Scheduler performs bounded dispatch work per invocation; it is driven by
// operator actions and webhook ticks, never by a free-running loop.
type Scheduler struct {
	store    Store
	gateway  Gateway
	screener Screener
	carPark  func(ctx context.Context, campaignID string) string
}

// NewScheduler creates a scheduler. carParkName resolves the campaign's car
// park display name for the assistant variables; nil is allowed.
func NewScheduler(store Store, gateway Gateway, screener Screener, carParkName func(ctx context.Context, campaignID string) string) *Scheduler {
	return &Scheduler{store: store, gateway: gateway, screener: screener, carPark: carParkName}
}

// DispatchNext reserves free concurrency slots and issues calls for the next
// eligible businesses, returning the number of calls placed. Reservation
// happens before the provider round-trip so a slow response cannot cause
// double-dispatch from concurrent invocations.
func (s *Scheduler) DispatchNext(ctx context.Context, campaignID string, opts Options) (int, error) {
	vc, err := s.voiceConfig(ctx)
	if err != nil {
		return 0, err
	}

	camp, err := s.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return 0, eris.Wrap(err, "dispatch: load campaign")
	}
	if !opts.Bypass && camp.Status != model.CampaignCalling {
		return 0, eris.Wrapf(ErrNotCalling, "campaign %s is %s", campaignID, camp.Status)
	}

	reserved, err := s.store.ReserveCallable(ctx, campaignID, vc.MaxConcurrent, vc.MaxAttempts, opts.Limit)
	if err != nil {
		return 0, eris.Wrap(err, "dispatch: reserve")
	}

	log := zap.L().With(zap.String("campaign", campaignID))
	dispatched := 0
	for _, link := range reserved {
		if err := s.dispatchOne(ctx, camp, link); err != nil {
			log.Warn("dispatch attempt not placed",
				zap.String("business", link.BusinessID),
				zap.Error(err),
			)
			continue
		}
		dispatched++
	}

	if camp.Status == model.CampaignCalling {
		if err := s.maybeComplete(ctx, campaignID, vc.MaxAttempts); err != nil {
			log.Warn("completion check failed", zap.Error(err))
		}
	}

	log.Info("dispatch cycle finished",
		zap.Int("reserved", len(reserved)),
		zap.Int("dispatched", dispatched),
	)
	return dispatched, nil
}

// dispatchOne takes a reserved link through normalization, the pre-dial
// compliance check, and the provider call. The returned error is
// informational; bookkeeping has already been settled via the store.
func (s *Scheduler) dispatchOne(ctx context.Context, camp *model.Campaign, link model.CampaignBusiness) error {
	biz, err := s.store.GetBusiness(ctx, link.BusinessID)
	if err != nil {
		// Could not even load the lead; refund the attempt for a later cycle.
		_ = s.store.ReleaseInFlight(ctx, link.CampaignID, link.BusinessID, model.OutcomeNone, true)
		return eris.Wrap(err, "load business")
	}

	raw := biz.DialPhone()
	e164, err := phone.Normalize(raw)
	if err != nil {
		// Permanent validation failure: the number will never dial, so the
		// business is retired without consuming further attempts.
		_ = s.store.ReleaseInFlight(ctx, link.CampaignID, link.BusinessID, model.OutcomeInvalidNumber, false)
		return eris.Wrapf(err, "normalize %q", raw)
	}

	verdict := s.screener.Check(ctx, raw)
	if !verdict.Allowed {
		switch verdict.Reason {
		case compliance.ReasonCheckFailed:
			// Registry unreachable: fail closed for this cycle but leave the
			// business eligible, with its attempt refunded.
			_ = s.store.ReleaseInFlight(ctx, link.CampaignID, link.BusinessID, model.OutcomeNone, true)
		default:
			// Opted out. Retire without touching the attempt count.
			_ = s.store.ReleaseInFlight(ctx, link.CampaignID, link.BusinessID, model.OutcomeBlocked, true)
		}
		return eris.Errorf("compliance: %s", verdict.Reason)
	}

	req := DialRequest{
		CampaignID:   camp.ID,
		BusinessID:   biz.ID,
		CustomerE164: e164,
		Variables:    s.callVariables(ctx, camp, biz),
	}

	callID, err := s.gateway.PlaceCall(ctx, req)
	if err != nil {
		// The attempt stays consumed: transient provider errors retry via
		// the normal attempt-count mechanism, terminal ones retire the lead.
		_ = s.store.ReleaseInFlight(ctx, link.CampaignID, link.BusinessID, OutcomeFromError(err), false)
		return eris.Wrap(err, "place call")
	}

	if err := s.store.MarkDispatched(ctx, link.CampaignID, link.BusinessID, callID); err != nil {
		return eris.Wrap(err, "record call id")
	}

	zap.L().Info("call dispatched",
		zap.String("campaign", camp.ID),
		zap.String("business", biz.ID),
		zap.String("call_id", callID),
		zap.Int("attempt", link.Attempts),
	)
	return nil
}

// RecordOutcome ingests a completed call event: clears the in-flight flag,
// stores the outcome, and transitions the campaign to completed once nothing
// eligible or in-flight remains.
func (s *Scheduler) RecordOutcome(ctx context.Context, callID string, outcome model.CallOutcome) error {
	link, err := s.store.FindByCallID(ctx, callID)
	if err != nil {
		return eris.Wrapf(err, "dispatch: find call %s", callID)
	}

	if err := s.store.ReleaseInFlight(ctx, link.CampaignID, link.BusinessID, outcome, false); err != nil {
		return eris.Wrap(err, "dispatch: release in-flight")
	}

	zap.L().Info("call outcome recorded",
		zap.String("campaign", link.CampaignID),
		zap.String("business", link.BusinessID),
		zap.String("call_id", callID),
		zap.String("outcome", string(outcome)),
	)

	vc, err := s.voiceConfig(ctx)
	if err != nil {
		return err
	}
	camp, err := s.store.GetCampaign(ctx, link.CampaignID)
	if err != nil {
		return eris.Wrap(err, "dispatch: load campaign")
	}
	if camp.Status == model.CampaignCalling {
		return s.maybeComplete(ctx, link.CampaignID, vc.MaxAttempts)
	}
	return nil
}

// maybeComplete moves the campaign to completed when every business has
// succeeded, exhausted its attempts, or been permanently blocked, and no
// call is still in flight.
func (s *Scheduler) maybeComplete(ctx context.Context, campaignID string, maxAttempts int) error {
	eligible, err := s.store.CountEligible(ctx, campaignID, maxAttempts)
	if err != nil {
		return eris.Wrap(err, "dispatch: count eligible")
	}
	inFlight, err := s.store.CountInFlight(ctx, campaignID)
	if err != nil {
		return eris.Wrap(err, "dispatch: count in-flight")
	}
	if eligible > 0 || inFlight > 0 {
		return nil
	}

	if err := s.store.SetCampaignStatus(ctx, campaignID, model.CampaignCompleted); err != nil {
		return eris.Wrap(err, "dispatch: complete campaign")
	}
	zap.L().Info("campaign completed", zap.String("campaign", campaignID))
	return nil
}

func (s *Scheduler) voiceConfig(ctx context.Context) (*model.VoiceConfig, error) {
	vc, err := s.store.GetVoiceConfig(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "dispatch: load voice config")
	}
	if vc == nil {
		return nil, ErrNoVoiceConfig
	}
	if !vc.CallingEnabled {
		return nil, ErrCallingDisabled
	}
	vc.Clamp()
	return vc, nil
}

func (s *Scheduler) callVariables(ctx context.Context, camp *model.Campaign, biz *model.Business) map[string]string {
	vars := map[string]string{
		"businessName": biz.Name,
		"businessType": camp.BusinessType,
	}
	if s.carPark != nil {
		if name := s.carPark(ctx, camp.ID); name != "" {
			vars["carParkName"] = name
		}
	}
	return vars
}
