package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/sdr-enrich/internal/approval"
	"github.com/sells-group/sdr-enrich/internal/config"
	"github.com/sells-group/sdr-enrich/internal/monitoring"
	"github.com/sells-group/sdr-enrich/internal/server"
	"github.com/sells-group/sdr-enrich/internal/store"
	"github.com/sells-group/sdr-enrich/internal/webhook"
)

var (
	servePort       int
	serveWithWorker bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server",
	Long:  "Serves the signup, booking and Slack interaction webhooks. With --with-worker the queue worker runs in the same process.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate(config.ModeServe); err != nil {
			return err
		}

		var (
			st      store.Store
			gate    *approval.Gate
			metrics *monitoring.Metrics
			env     *enrichEnv
			err     error
		)
		if serveWithWorker {
			env, err = initEnrich(ctx, config.ModeWorker)
			if err != nil {
				return err
			}
			defer env.Close()
			st, gate, metrics = env.Store, env.Gate, env.Metrics
		} else {
			st, err = initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			metrics = monitoring.NewMetrics(nil)
			if cfg.Slack.Token != "" {
				if gate, err = initGate(st); err != nil {
					return err
				}
			}
		}

		signup, err := webhook.NewSignupHandler(cfg.Webhooks.SignupSecret, cfg.Webhooks.SignupTeamID, st, metrics)
		if err != nil {
			return err
		}
		handlers := server.Handlers{
			Signup:  signup,
			Booking: webhook.NewBookingHandler(cfg.Webhooks.BookingSecret, st, metrics),
		}
		if gate != nil {
			handlers.Slack = webhook.NewSlackHandler(cfg.Slack.SigningSecret, gate, metrics)
		} else {
			zap.L().Warn("slack not configured, approval interactions disabled")
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		router := server.NewRouter(st, handlers, server.Options{CORSOrigins: cfg.Server.CORSOrigins})

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return server.Run(gctx, port, router) })
		if env != nil {
			g.Go(func() error {
				runWorker(gctx, env)
				return nil
			})
		}
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveWithWorker, "with-worker", false, "also run the queue worker")
	rootCmd.AddCommand(serveCmd)
}
