package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
)

var campaignCmd = &cobra.Command{
	Use:   "campaign",
	Short: "Manage outreach campaigns",
}

var (
	campaignName       string
	campaignType       string
	campaignPostcode   string
	campaignLocationID string
	campaignListStatus string
)

var campaignCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a campaign",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("campaign"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		// The location must already exist; a campaign for an unknown car
		// park has nothing to sell.
		if _, err := st.GetLocation(ctx, campaignLocationID); err != nil {
			return eris.Wrapf(err, "load location %s", campaignLocationID)
		}

		camp, err := st.CreateCampaign(ctx, model.Campaign{
			ID:           uuid.New().String(),
			Name:         campaignName,
			BusinessType: campaignType,
			Postcode:     campaignPostcode,
			LocationID:   campaignLocationID,
			Status:       model.CampaignCreated,
			CreatedAt:    time.Now().UTC(),
		})
		if err != nil {
			return eris.Wrap(err, "create campaign")
		}

		zap.L().Info("campaign created",
			zap.String("campaign", camp.ID),
			zap.String("name", camp.Name),
		)
		fmt.Println(camp.ID)
		return nil
	},
}

var campaignListCmd = &cobra.Command{
	Use:   "list",
	Short: "List campaigns",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("campaign"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		campaigns, err := st.ListCampaigns(ctx, store.CampaignFilter{
			Status: model.CampaignStatus(campaignListStatus),
		})
		if err != nil {
			return eris.Wrap(err, "list campaigns")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(campaigns)
	},
}

// stateAction wraps the shared env setup for the operator state commands.
func stateAction(fn func(*outreachEnv, *cobra.Command, string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "campaign")
		if err != nil {
			return err
		}
		defer env.Close()

		return fn(env, cmd, args[0])
	}
}

var campaignStartCmd = &cobra.Command{
	Use:   "start <campaign-id>",
	Short: "Begin dialing an enriched campaign",
	Args:  cobra.ExactArgs(1),
	RunE: stateAction(func(env *outreachEnv, cmd *cobra.Command, id string) error {
		status, err := env.Service.StartCalling(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Println(status)
		return nil
	}),
}

var campaignPauseCmd = &cobra.Command{
	Use:   "pause <campaign-id>",
	Short: "Pause dispatch for a campaign",
	Args:  cobra.ExactArgs(1),
	RunE: stateAction(func(env *outreachEnv, cmd *cobra.Command, id string) error {
		status, err := env.Service.Pause(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Println(status)
		return nil
	}),
}

var campaignResumeCmd = &cobra.Command{
	Use:   "resume <campaign-id>",
	Short: "Resume dialing a paused campaign",
	Args:  cobra.ExactArgs(1),
	RunE: stateAction(func(env *outreachEnv, cmd *cobra.Command, id string) error {
		status, err := env.Service.Resume(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Println(status)
		return nil
	}),
}

var campaignStatusCmd = &cobra.Command{
	Use:   "status <campaign-id>",
	Short: "Show the campaign's current state",
	Args:  cobra.ExactArgs(1),
	RunE: stateAction(func(env *outreachEnv, cmd *cobra.Command, id string) error {
		status, err := env.Service.Status(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Println(status)
		return nil
	}),
}

var campaignScreenCmd = &cobra.Command{
	Use:   "screen <campaign-id>",
	Short: "Run the advisory opt-out registry screen",
	Args:  cobra.ExactArgs(1),
	RunE: stateAction(func(env *outreachEnv, cmd *cobra.Command, id string) error {
		report, err := env.Service.Screen(cmd.Context(), id)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}),
}

var campaignCallNextCmd = &cobra.Command{
	Use:   "call-next <campaign-id>",
	Short: "Dispatch a single call, bypassing the campaign-state guard",
	Args:  cobra.ExactArgs(1),
	RunE: stateAction(func(env *outreachEnv, cmd *cobra.Command, id string) error {
		placed, err := env.Service.CallNext(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Printf("dispatched %d\n", placed)
		return nil
	}),
}

func init() {
	campaignCreateCmd.Flags().StringVar(&campaignName, "name", "", "campaign name (required)")
	campaignCreateCmd.Flags().StringVar(&campaignType, "type", "", "target business type, e.g. cafe (required)")
	campaignCreateCmd.Flags().StringVar(&campaignPostcode, "postcode", "", "target postcode area (required)")
	campaignCreateCmd.Flags().StringVar(&campaignLocationID, "location", "", "car park location id (required)")
	_ = campaignCreateCmd.MarkFlagRequired("name")
	_ = campaignCreateCmd.MarkFlagRequired("type")
	_ = campaignCreateCmd.MarkFlagRequired("postcode")
	_ = campaignCreateCmd.MarkFlagRequired("location")

	campaignListCmd.Flags().StringVar(&campaignListStatus, "status", "", "filter by status")

	campaignCmd.AddCommand(campaignCreateCmd, campaignListCmd, campaignStartCmd,
		campaignPauseCmd, campaignResumeCmd, campaignStatusCmd,
		campaignScreenCmd, campaignCallNextCmd)
	rootCmd.AddCommand(campaignCmd)
}
