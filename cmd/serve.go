package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/campaign"
	"github.com/sells-group/outreach-cli/internal/dispatch"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/pkg/vapi"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the operator API and voice webhook server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newRouter builds the HTTP surface: operator campaign actions and the
// provider webhook.
func newRouter(env *outreachEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", vapi.SignatureHeader},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/campaigns", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			campaigns, err := env.Store.ListCampaigns(r.Context(), store.CampaignFilter{
				Status: model.CampaignStatus(r.URL.Query().Get("status")),
			})
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, campaigns)
		})

		r.Route("/{campaignID}", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				camp, err := env.Store.GetCampaign(r.Context(), chi.URLParam(r, "campaignID"))
				if err != nil {
					writeError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, camp)
			})

			r.Post("/start", statusHandler(env.Service.StartCalling))
			r.Post("/pause", statusHandler(env.Service.Pause))
			r.Post("/resume", statusHandler(env.Service.Resume))

			r.Post("/call-next", func(w http.ResponseWriter, r *http.Request) {
				placed, err := env.Service.CallNext(r.Context(), chi.URLParam(r, "campaignID"))
				if err != nil {
					writeError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, map[string]int{"dispatched": placed})
			})

			r.Post("/screen", func(w http.ResponseWriter, r *http.Request) {
				report, err := env.Service.Screen(r.Context(), chi.URLParam(r, "campaignID"))
				if err != nil {
					writeError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, report)
			})
		})
	})

	r.Post("/webhook/vapi", webhookHandler(env))

	return r
}

// statusHandler adapts a campaign state action into an HTTP handler.
func statusHandler(action func(ctx context.Context, id string) (model.CampaignStatus, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := action(r.Context(), chi.URLParam(r, "campaignID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": string(status)})
	}
}

// webhookHandler verifies the provider signature and ingests call outcomes.
// End-of-call reports settle dispatch bookkeeping; other event types are
// acknowledged and dropped.
func webhookHandler(env *outreachEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
			return
		}

		vc, err := env.Store.GetVoiceConfig(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		if vc == nil || vc.WebhookSecret == "" {
			// No secret configured means no event can be authenticated.
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "webhook secret not configured"})
			return
		}

		event, err := vapi.VerifyWebhook(vc.WebhookSecret, body, r.Header.Get(vapi.SignatureHeader))
		if err != nil {
			if eris.Is(err, vapi.ErrBadSignature) {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
				return
			}
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed event"})
			return
		}

		if event.Type != vapi.EventEndOfCallReport {
			writeJSON(w, http.StatusAccepted, map[string]string{"status": "ignored"})
			return
		}

		outcome := dispatch.OutcomeFromEndedReason(event.EndedReason)
		if err := env.Scheduler.RecordOutcome(r.Context(), event.CallID, outcome); err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "recorded",
			"outcome": string(outcome),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps service errors onto HTTP statuses: unknown entities are
// 404, guard violations and disabled calling are 409, the rest 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case eris.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case eris.Is(err, campaign.ErrInvalidTransition),
		eris.Is(err, campaign.ErrLocationNotLive),
		eris.Is(err, dispatch.ErrNotCalling),
		eris.Is(err, dispatch.ErrCallingDisabled),
		eris.Is(err, dispatch.ErrNoVoiceConfig):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		zap.L().Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
