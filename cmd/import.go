package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/leadimport"
)

var (
	importCampaignID string
	importFilePath   string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a leads file (CSV or XLSX) into a campaign",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("import"); err != nil {
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

		// The campaign must exist before leads are attached.
		if _, err := st.GetCampaign(ctx, importCampaignID); err != nil {
			return eris.Wrapf(err, "load campaign %s", importCampaignID)
		}

		res, err := leadimport.ParseFile(ctx, importFilePath)
		if err != nil {
			return eris.Wrap(err, "parse leads file")
		}
		for _, re := range res.RowErrors {
			zap.L().Warn("lead row rejected", zap.Int("line", re.Line), zap.Error(re.Err))
		}

		inserted, err := st.InsertBusinesses(ctx, importCampaignID, res.Businesses)
		if err != nil {
			return eris.Wrap(err, "insert businesses")
		}

		zap.L().Info("import complete",
			zap.String("campaign", importCampaignID),
			zap.String("file", importFilePath),
			zap.Int("parsed", len(res.Businesses)),
			zap.Int("inserted", inserted),
			zap.Int("rejected_rows", len(res.RowErrors)),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importCampaignID, "campaign", "", "campaign id (required)")
	importCmd.Flags().StringVar(&importFilePath, "file", "", "path to CSV or XLSX file (required)")
	_ = importCmd.MarkFlagRequired("campaign")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
