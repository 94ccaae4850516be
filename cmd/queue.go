package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/sdr-enrich/internal/model"
	"github.com/sells-group/sdr-enrich/internal/queue"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and repair the work queues",
}

// -- queue status --

var queueStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pending, claimed and exhausted ticket counts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		var stats []model.QueueStats
		for _, l := range queueLimits() {
			s, err := st.QueueStats(ctx, l.Kind, l.MaxAttempts, time.Now().Add(-l.LeaseTTL))
			if err != nil {
				return eris.Wrap(err, "queue status")
			}
			s.Kind = l.Kind
			stats = append(stats, s)
		}
		formatQueueStats(os.Stdout, stats)
		return nil
	},
}

// -- queue dead --

var queueDeadCmd = &cobra.Command{
	Use:   "dead",
	Short: "List tickets that exhausted their retries",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		kind, err := queueKindFlag(cmd)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		items, err := st.ListExhausted(ctx, kind, queue.PolicyFor(kind, cfg.Queue).MaxAttempts)
		if err != nil {
			return eris.Wrap(err, "queue dead")
		}
		if len(items) == 0 {
			fmt.Fprintf(os.Stderr, "No exhausted %s tickets.\n", kind)
			return nil
		}
		formatDeadTickets(os.Stdout, items)
		return nil
	},
}

// -- queue retry --

var queueRetryCmd = &cobra.Command{
	Use:   "retry <ticket-id>...",
	Short: "Reset attempts so exhausted tickets are claimed again",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		kind, err := queueKindFlag(cmd)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		for _, id := range args {
			if err := st.ResetAttempts(ctx, kind, id); err != nil {
				return eris.Wrapf(err, "queue retry %s", id)
			}
			fmt.Fprintf(os.Stdout, "Requeued %s ticket %s\n", kind, id)
		}
		return nil
	},
}

func queueKindFlag(cmd *cobra.Command) (model.QueueKind, error) {
	name, _ := cmd.Flags().GetString("queue")
	switch model.QueueKind(name) {
	case model.QueueEnrichment, model.QueueEmail:
		return model.QueueKind(name), nil
	default:
		return "", eris.Errorf("unknown queue %q (want enrichment or email)", name)
	}
}

func formatQueueStats(out io.Writer, stats []model.QueueStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "QUEUE\tPENDING\tCLAIMED\tEXHAUSTED")
	_, _ = fmt.Fprintln(w, "-----\t-------\t-------\t---------")
	for _, s := range stats {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", s.Kind, s.Pending, s.Claimed, s.Exhausted)
	}
	_ = w.Flush()
}

func formatDeadTickets(out io.Writer, items []model.QueueItem) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TICKET\tLEAD\tATTEMPTS\tLAST_ATTEMPT\tERROR")
	_, _ = fmt.Fprintln(w, "------\t----\t--------\t------------\t-----")
	for _, it := range items {
		last := ""
		if it.LastAttempt != nil {
			last = it.LastAttempt.Format("2006-01-02 15:04")
		}
		msg := ""
		if it.Error != nil {
			msg = *it.Error
			if len(msg) > 60 {
				msg = msg[:57] + "..."
			}
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", it.ID, truncateID(it.LeadID), it.Attempts, last, msg)
	}
	_ = w.Flush()
}

func init() {
	for _, c := range []*cobra.Command{queueDeadCmd, queueRetryCmd} {
		c.Flags().String("queue", string(model.QueueEnrichment), "queue name (enrichment or email)")
	}
	queueCmd.AddCommand(queueStatusCmd, queueDeadCmd, queueRetryCmd)
	rootCmd.AddCommand(queueCmd)
}
