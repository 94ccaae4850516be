package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/sdr-enrich/internal/config"
	"github.com/sells-group/sdr-enrich/internal/model"
	"github.com/sells-group/sdr-enrich/internal/monitoring"
	"github.com/sells-group/sdr-enrich/internal/queue"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Drain the enrichment and email queues",
	Long:  "Sweeps both queues every poll interval until interrupted, and alerts on exhausted tickets.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnrich(ctx, config.ModeWorker)
		if err != nil {
			return err
		}
		defer env.Close()

		runWorker(ctx, env)
		return nil
	},
}

// newWorkers builds one worker per queue.
func newWorkers(env *enrichEnv) []*queue.Worker {
	opts := []queue.WorkerOption{
		queue.WithConcurrency(cfg.Queue.Concurrency),
		queue.WithWorkerMetrics(env.Metrics),
	}
	return []*queue.Worker{
		queue.NewWorker(model.QueueEnrichment, env.Store,
			queue.EnrichmentHandler(env.Orchestrator),
			queue.PolicyFor(model.QueueEnrichment, cfg.Queue), opts...),
		queue.NewWorker(model.QueueEmail, env.Store,
			queue.NewEmailHandler(env.Mailer, env.Store),
			queue.PolicyFor(model.QueueEmail, cfg.Queue), opts...),
	}
}

// runWorker blocks until ctx is done.
func runWorker(ctx context.Context, env *enrichEnv) {
	workers := newWorkers(env)
	sched := queue.NewScheduler(cfg.Queue.PollInterval, workers[0], workers[1])

	checker := monitoring.NewChecker(
		monitoring.NewCollector(env.Store, env.Metrics, queueLimits()...),
		monitoring.NewAlerter(cfg.Monitoring),
		cfg.Monitoring.CheckInterval,
	)
	go checker.Run(ctx)

	sched.Start(ctx)
	<-ctx.Done()
	sched.Stop()
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
