package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
)

var locationCmd = &cobra.Command{
	Use:   "location",
	Short: "Manage car park locations",
}

var (
	locationID     string
	locationName   string
	locationStatus string
)

var locationSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Create or update a location",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		switch model.LocationStatus(locationStatus) {
		case model.LocationDraft, model.LocationLive, model.LocationClosed:
		default:
			return eris.Errorf("invalid location status %q", locationStatus)
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		id := locationID
		if id == "" {
			id = uuid.New().String()
		}

		loc := model.Location{
			ID:     id,
			Name:   locationName,
			Status: model.LocationStatus(locationStatus),
		}
		if err := st.UpsertLocation(ctx, loc); err != nil {
			return eris.Wrap(err, "upsert location")
		}

		zap.L().Info("location saved",
			zap.String("location", loc.ID),
			zap.String("status", string(loc.Status)),
		)
		fmt.Println(loc.ID)
		return nil
	},
}

var locationShowCmd = &cobra.Command{
	Use:   "show <location-id>",
	Short: "Show a location",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		loc, err := st.GetLocation(ctx, args[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(loc)
	},
}

func init() {
	locationSetCmd.Flags().StringVar(&locationID, "id", "", "location id (generated when empty)")
	locationSetCmd.Flags().StringVar(&locationName, "name", "", "display name (required)")
	locationSetCmd.Flags().StringVar(&locationStatus, "status", string(model.LocationDraft), "draft, live, or closed")
	_ = locationSetCmd.MarkFlagRequired("name")

	locationCmd.AddCommand(locationSetCmd, locationShowCmd)
	rootCmd.AddCommand(locationCmd)
}
