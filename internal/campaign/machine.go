// Package campaign owns the campaign lifecycle and the guards that permit
// calling to start, pause, and resume.
package campaign

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/model"
)

// Guard and transition errors returned to the operator. Guard violations
// never mutate state and are not retried automatically.
var (
	ErrLocationNotLive   = eris.New("campaign: linked location is not live")
	ErrInvalidTransition = eris.New("campaign: transition not permitted")
)

// transitions is the legal state graph. Completed and failed are terminal;
// any state may move to failed on an unrecoverable error (handled separately
// in Transition).
var transitions = map[model.CampaignStatus][]model.CampaignStatus{
	model.CampaignCreated:   {model.CampaignEnriching},
	model.CampaignEnriching: {model.CampaignEnriched, model.CampaignCreated},
	model.CampaignEnriched:  {model.CampaignCalling},
	model.CampaignCalling:   {model.CampaignPaused, model.CampaignCompleted},
	model.CampaignPaused:    {model.CampaignCalling},
}

// CanTransition reports whether moving from one status to another is legal.
// Every status may transition to failed.
func CanTransition(from, to model.CampaignStatus) bool {
	if to == model.CampaignFailed {
		return from != model.CampaignFailed
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates a status change, returning ErrInvalidTransition when
// the graph forbids it. A no-op transition (from == to) is legal and lets
// operator actions stay idempotent.
func Transition(from, to model.CampaignStatus) error {
	if from == to {
		return nil
	}
	if !CanTransition(from, to) {
		return eris.Wrapf(ErrInvalidTransition, "%s -> %s", from, to)
	}
	return nil
}

// guardCallable enforces the compliance precondition for dialing: the
// campaign's linked location must be live. This is a hard guard, not a
// retryable condition.
func guardCallable(loc *model.Location) error {
	if loc == nil || loc.Status != model.LocationLive {
		return eris.Wrapf(ErrLocationNotLive, "location %s", locationID(loc))
	}
	return nil
}

func locationID(loc *model.Location) string {
	if loc == nil {
		return "unknown"
	}
	return loc.ID
}
