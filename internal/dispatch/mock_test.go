package dispatch

import (
	"context"
	"strconv"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/compliance"
	"github.com/sells-group/outreach-cli/internal/model"
)

// memStore is a mutex-guarded in-memory Store whose ReserveCallable mirrors
// the transactional semantics of the real implementations.
type memStore struct {
	mu         sync.Mutex
	campaign   *model.Campaign
	voice      *model.VoiceConfig
	businesses map[string]*model.Business
	links      []*model.CampaignBusiness
}

func newMemStore(campaign *model.Campaign, voice *model.VoiceConfig) *memStore {
	return &memStore{
		campaign:   campaign,
		voice:      voice,
		businesses: map[string]*model.Business{},
	}
}

func (m *memStore) addBusiness(biz *model.Business) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.businesses[biz.ID] = biz
	m.links = append(m.links, &model.CampaignBusiness{
		CampaignID: m.campaign.ID,
		BusinessID: biz.ID,
		Position:   len(m.links),
	})
}

func (m *memStore) GetCampaign(context.Context, string) (*model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *m.campaign
	return &c, nil
}

func (m *memStore) SetCampaignStatus(_ context.Context, _ string, status model.CampaignStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.campaign.Status = status
	return nil
}

func (m *memStore) GetVoiceConfig(context.Context) (*model.VoiceConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.voice == nil {
		return nil, nil
	}
	v := *m.voice
	return &v, nil
}

func (m *memStore) GetBusiness(_ context.Context, id string) (*model.Business, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	biz, ok := m.businesses[id]
	if !ok {
		return nil, eris.Errorf("business %s not found", id)
	}
	b := *biz
	return &b, nil
}

func (m *memStore) ReserveCallable(_ context.Context, _ string, maxConcurrent, maxAttempts, limit int) ([]model.CampaignBusiness, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inFlight := 0
	for _, l := range m.links {
		if l.InFlight {
			inFlight++
		}
	}
	slots := maxConcurrent - inFlight
	if limit > 0 && limit < slots {
		slots = limit
	}

	var reserved []model.CampaignBusiness
	for _, l := range m.links {
		if slots <= 0 {
			break
		}
		if l.InFlight || l.Exhausted(maxAttempts) {
			continue
		}
		l.InFlight = true
		l.Attempts++
		reserved = append(reserved, *l)
		slots--
	}
	return reserved, nil
}

func (m *memStore) ReleaseInFlight(_ context.Context, _, businessID string, outcome model.CallOutcome, refundAttempt bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.link(businessID)
	if l == nil {
		return eris.Errorf("link %s not found", businessID)
	}
	l.InFlight = false
	if outcome != model.OutcomeNone {
		l.LastOutcome = outcome
	}
	if refundAttempt && l.Attempts > 0 {
		l.Attempts--
	}
	return nil
}

func (m *memStore) MarkDispatched(_ context.Context, _, businessID, callID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.link(businessID)
	if l == nil {
		return eris.Errorf("link %s not found", businessID)
	}
	l.LastCallID = callID
	return nil
}

func (m *memStore) CountInFlight(context.Context, string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, l := range m.links {
		if l.InFlight {
			n++
		}
	}
	return n, nil
}

func (m *memStore) CountEligible(_ context.Context, _ string, maxAttempts int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, l := range m.links {
		if !l.InFlight && !l.Exhausted(maxAttempts) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) FindByCallID(_ context.Context, callID string) (*model.CampaignBusiness, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.links {
		if l.LastCallID == callID {
			cb := *l
			return &cb, nil
		}
	}
	return nil, eris.Errorf("call %s not found", callID)
}

func (m *memStore) link(businessID string) *model.CampaignBusiness {
	for _, l := range m.links {
		if l.BusinessID == businessID {
			return l
		}
	}
	return nil
}

func (m *memStore) maxInFlightEver() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, l := range m.links {
		if l.InFlight {
			n++
		}
	}
	return n
}

// fakeGateway records placed calls and can inject latency or failures.
type fakeGateway struct {
	mu      sync.Mutex
	placed  []DialRequest
	nextID  int
	delay   func()
	err     error
	errOnce bool
}

func (g *fakeGateway) PlaceCall(_ context.Context, req DialRequest) (string, error) {
	if g.delay != nil {
		g.delay()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		err := g.err
		if g.errOnce {
			g.err = nil
		}
		return "", err
	}
	g.nextID++
	g.placed = append(g.placed, req)
	return callID(g.nextID), nil
}

func (g *fakeGateway) placedCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.placed)
}

func callID(n int) string {
	return "call-" + strconv.Itoa(n)
}

// allowAllScreener passes every normalizable number.
type allowAllScreener struct{}

func (allowAllScreener) Check(_ context.Context, raw string) compliance.Verdict {
	v := compliance.Verdict{Phone: raw, Allowed: true}
	return v
}

// denyScreener blocks specific canonical numbers with a reason.
type denyScreener struct {
	blocked map[string]string // raw phone -> reason
}

func (d denyScreener) Check(_ context.Context, raw string) compliance.Verdict {
	if reason, ok := d.blocked[raw]; ok {
		return compliance.Verdict{Phone: raw, Allowed: false, Reason: reason}
	}
	return compliance.Verdict{Phone: raw, Allowed: true}
}
