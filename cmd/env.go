package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/campaign"
	"github.com/sells-group/outreach-cli/internal/compliance"
	"github.com/sells-group/outreach-cli/internal/dispatch"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/pkg/ctps"
	"github.com/sells-group/outreach-cli/pkg/vapi"
)

// outreachEnv holds the initialized store and services needed by the
// campaign, enrich, and serve commands.
type outreachEnv struct {
	Store     store.Store
	Service   *campaign.Service
	Scheduler *dispatch.Scheduler
	Screener  *compliance.Screener
}

// Close releases resources held by the environment.
func (e *outreachEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens the configured database backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "outreach.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEnv sets up the store, registry and voice clients, and wires the
// dispatcher and campaign service. Callers should defer env.Close().
//
// The voice gateway is built from whatever VoiceConfig row exists; when none
// is set the scheduler rejects dispatch with its own typed error, so a
// missing row never degrades into a half-configured dial.
func initEnv(ctx context.Context, mode string) (*outreachEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	registry := ctps.NewClient(cfg.Ctps.Key, ctps.WithBaseURL(cfg.Ctps.BaseURL))
	screener := compliance.NewScreener(registry, st)

	vc, err := st.GetVoiceConfig(ctx)
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "load voice config")
	}
	var assistantID, phoneNumberID, apiKey string
	if vc != nil {
		apiKey, assistantID, phoneNumberID = vc.APIKey, vc.AssistantID, vc.PhoneNumberID
	} else {
		zap.L().Debug("voice config not set, dispatch unavailable until `voice set`")
	}

	vapiClient := vapi.NewClient(apiKey, vapi.WithBaseURL(cfg.Vapi.BaseURL))
	gateway := dispatch.NewVapiGateway(vapiClient, assistantID, phoneNumberID)

	scheduler := dispatch.NewScheduler(st, gateway, screener, carParkResolver(st))
	service := campaign.NewService(st, scheduler, screener)

	return &outreachEnv{
		Store:     st,
		Service:   service,
		Scheduler: scheduler,
		Screener:  screener,
	}, nil
}

// carParkResolver resolves the campaign's car park display name for the
// assistant prompt variables. Lookup failures leave the variable unset.
func carParkResolver(st store.Store) func(ctx context.Context, campaignID string) string {
	return func(ctx context.Context, campaignID string) string {
		camp, err := st.GetCampaign(ctx, campaignID)
		if err != nil {
			return ""
		}
		loc, err := st.GetLocation(ctx, camp.LocationID)
		if err != nil || loc == nil {
			return ""
		}
		return loc.Name
	}
}
