package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
)

var voiceCmd = &cobra.Command{
	Use:   "voice",
	Short: "Manage the voice provider configuration",
}

var (
	voiceAPIKey        string
	voiceAssistantID   string
	voicePhoneNumberID string
	voiceWebhookSecret string
	voiceEnabled       bool
	voiceMaxConcurrent int
	voiceMaxAttempts   int
)

var voiceSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Create or update the voice configuration",
	Long:  "Updates the singleton voice provider row. Unset flags keep their stored values; concurrency and attempt limits are clamped to the allowed range.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		vc, err := st.GetVoiceConfig(ctx)
		if err != nil {
			return eris.Wrap(err, "load voice config")
		}
		if vc == nil {
			vc = &model.VoiceConfig{
				MaxConcurrent: model.LimitFloor,
				MaxAttempts:   model.LimitCeil,
			}
		}

		flags := cmd.Flags()
		if flags.Changed("api-key") {
			vc.APIKey = voiceAPIKey
		}
		if flags.Changed("assistant") {
			vc.AssistantID = voiceAssistantID
		}
		if flags.Changed("phone-number") {
			vc.PhoneNumberID = voicePhoneNumberID
		}
		if flags.Changed("webhook-secret") {
			vc.WebhookSecret = voiceWebhookSecret
		}
		if flags.Changed("enabled") {
			vc.CallingEnabled = voiceEnabled
		}
		if flags.Changed("max-concurrent") {
			vc.MaxConcurrent = voiceMaxConcurrent
		}
		if flags.Changed("max-attempts") {
			vc.MaxAttempts = voiceMaxAttempts
		}

		if err := st.SetVoiceConfig(ctx, *vc); err != nil {
			return err
		}

		vc.Clamp()
		zap.L().Info("voice config saved",
			zap.Bool("calling_enabled", vc.CallingEnabled),
			zap.Int("max_concurrent", vc.MaxConcurrent),
			zap.Int("max_attempts", vc.MaxAttempts),
		)
		return nil
	},
}

var voiceShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the voice configuration (secrets redacted)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		vc, err := st.GetVoiceConfig(ctx)
		if err != nil {
			return eris.Wrap(err, "load voice config")
		}
		if vc == nil {
			return eris.New("voice config not set")
		}

		vc.APIKey = redact(vc.APIKey)
		vc.WebhookSecret = redact(vc.WebhookSecret)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(vc)
	},
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

func init() {
	voiceSetCmd.Flags().StringVar(&voiceAPIKey, "api-key", "", "provider API key")
	voiceSetCmd.Flags().StringVar(&voiceAssistantID, "assistant", "", "assistant id")
	voiceSetCmd.Flags().StringVar(&voicePhoneNumberID, "phone-number", "", "outbound phone number id")
	voiceSetCmd.Flags().StringVar(&voiceWebhookSecret, "webhook-secret", "", "webhook HMAC secret")
	voiceSetCmd.Flags().BoolVar(&voiceEnabled, "enabled", false, "enable outbound calling")
	voiceSetCmd.Flags().IntVar(&voiceMaxConcurrent, "max-concurrent", model.LimitFloor, "concurrent call limit")
	voiceSetCmd.Flags().IntVar(&voiceMaxAttempts, "max-attempts", model.LimitCeil, "attempt limit per business")

	voiceCmd.AddCommand(voiceSetCmd, voiceShowCmd)
	rootCmd.AddCommand(voiceCmd)
}
