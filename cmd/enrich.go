package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/contacts"
	"github.com/sells-group/outreach-cli/internal/enrich"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/pkg/outscraper"
	"github.com/sells-group/outreach-cli/pkg/serper"
)

var enrichCampaignID string

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Run the contact-enrichment batch for a campaign",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "enrich")
		if err != nil {
			return err
		}
		defer env.Close()

		if _, err := env.Service.StartEnrichment(ctx, enrichCampaignID); err != nil {
			return err
		}

		businesses, err := env.Store.ListEnrichable(ctx, enrichCampaignID)
		if err != nil {
			return eris.Wrap(err, "list enrichable businesses")
		}
		if len(businesses) == 0 {
			zap.L().Info("nothing to enrich", zap.String("campaign", enrichCampaignID))
			_, err := env.Service.FinishEnrichment(ctx, enrichCampaignID, 0)
			return err
		}

		orchestrator, err := buildOrchestrator()
		if err != nil {
			return err
		}

		results := orchestrator.Enrich(ctx, businesses)

		enriched, failed := 0, 0
		for _, res := range results {
			switch res.Status {
			case model.EnrichmentEnriched:
				if err := env.Store.ApplyContactUpdate(ctx, orchestrator.ContactUpdate(res)); err != nil {
					zap.L().Error("contact update failed",
						zap.String("business", res.BusinessID),
						zap.Error(err),
					)
					continue
				}
				enriched++
			case model.EnrichmentFailed:
				// Status-only write: a failed attempt is recorded for the
				// operator without blanking contact fields, and the business
				// stays eligible for a manual re-run.
				if err := env.Store.ApplyStatusUpdate(ctx, orchestrator.StatusUpdate(res)); err != nil {
					zap.L().Error("status update failed",
						zap.String("business", res.BusinessID),
						zap.Error(err),
					)
					continue
				}
				failed++
			}
		}

		status, err := env.Service.FinishEnrichment(ctx, enrichCampaignID, enriched)
		if err != nil {
			return err
		}

		zap.L().Info("enrichment complete",
			zap.String("campaign", enrichCampaignID),
			zap.String("status", string(status)),
			zap.Int("processed", len(results)),
			zap.Int("enriched", enriched),
			zap.Int("failed", failed),
		)
		return nil
	},
}

// buildOrchestrator assembles the source cascade from config: the profile
// scraper is the primary source, the search miner joins as fallback when a
// key is configured.
func buildOrchestrator() (*enrich.Orchestrator, error) {
	registry := enrich.NewRegistry()

	osClient := outscraper.NewClient(cfg.Outscraper.Key, outscraper.WithBaseURL(cfg.Outscraper.BaseURL))
	registry.Register(enrich.NewOutscraperSource(osClient, cfg.Outscraper.RateLimit))

	if cfg.Serper.Key != "" {
		spClient := serper.NewClient(cfg.Serper.Key, serper.WithBaseURL(cfg.Serper.BaseURL))
		registry.Register(enrich.NewSerperSource(spClient, cfg.Serper.RateLimit))
	}

	scoring, err := contacts.LoadConfig(cfg.Enrich.ScoringPath)
	if err != nil {
		return nil, err
	}
	merger := contacts.NewMerger(scoring)

	return enrich.NewOrchestrator(registry, merger, cfg.Enrich.FanOut), nil
}

func init() {
	enrichCmd.Flags().StringVar(&enrichCampaignID, "campaign", "", "campaign id (required)")
	_ = enrichCmd.MarkFlagRequired("campaign")
	rootCmd.AddCommand(enrichCmd)
}
