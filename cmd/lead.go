package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/sdr-enrich/internal/model"
)

var leadCmd = &cobra.Command{
	Use:   "lead",
	Short: "Create and inspect leads",
}

// -- lead add --

var leadAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a lead and queue it for enrichment",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		team, _ := cmd.Flags().GetString("team")
		email, _ := cmd.Flags().GetString("email")
		first, _ := cmd.Flags().GetString("first-name")
		last, _ := cmd.Flags().GetString("last-name")
		if !strings.Contains(email, "@") {
			return eris.Errorf("lead add: invalid email %q", email)
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		lead := &model.Lead{TeamID: team, Email: strings.TrimSpace(email), FirstName: first, LastName: last}
		created, err := st.CreateLead(ctx, lead)
		if err != nil {
			return eris.Wrap(err, "lead add")
		}
		if created {
			fmt.Fprintf(os.Stdout, "Created lead %s (queued for enrichment)\n", lead.ID)
		} else {
			fmt.Fprintf(os.Stdout, "Lead already exists: %s (%s)\n", lead.ID, lead.Status)
		}
		return nil
	},
}

// -- lead list --

var leadListCmd = &cobra.Command{
	Use:   "list",
	Short: "List leads",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		team, _ := cmd.Flags().GetString("team")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		leads, err := st.ListLeads(ctx, model.LeadFilter{
			TeamID: team,
			Status: model.LeadStatus(strings.ToUpper(status)),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "lead list")
		}
		if len(leads) == 0 {
			fmt.Fprintln(os.Stderr, "No leads found.")
			return nil
		}
		formatLeadList(os.Stdout, leads)
		return nil
	},
}

// -- lead show --

var leadShowCmd = &cobra.Command{
	Use:   "show <lead-id>",
	Short: "Show a lead and its activity log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		lead, err := st.GetLead(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "lead show")
		}
		acts, err := st.ListActivities(ctx, lead.ID)
		if err != nil {
			return eris.Wrap(err, "lead show: activities")
		}
		formatLeadDetail(os.Stdout, lead, acts)
		return nil
	},
}

func formatLeadList(out io.Writer, leads []model.Lead) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tEMAIL\tTYPE\tSTATUS\tCOMPANY\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t-----\t----\t------\t-------\t-------")
	for _, l := range leads {
		company := l.Company
		if len(company) > 30 {
			company = company[:27] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(l.ID),
			l.Email,
			l.EmailType,
			l.Status,
			company,
			l.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

func formatLeadDetail(out io.Writer, l *model.Lead, acts []model.Activity) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	row := func(k, v string) {
		if v != "" {
			_, _ = fmt.Fprintf(w, "%s:\t%s\n", k, v)
		}
	}
	row("ID", l.ID)
	row("Team", l.TeamID)
	row("Email", l.Email)
	row("Email type", string(l.EmailType))
	row("Status", string(l.Status))
	row("Name", l.FullName())
	row("Company", l.Company)
	row("Title", l.Title)
	row("Industry", l.Industry)
	row("Company size", l.CompanySize)
	row("Location", l.Location)
	row("LinkedIn", l.LinkedInURL)
	if d, err := model.ParseEnrichmentData(l.EnrichmentData); err == nil && d != nil {
		row("Pipeline", string(d.Pipeline))
		row("Sources", strings.Join(d.Sources, ", "))
		if d.Match != nil {
			row("Match score", fmt.Sprintf("%.2f", d.Match.Score))
		}
		row("Error", d.Error)
	}
	row("Created", l.CreatedAt.Format("2006-01-02 15:04:05"))
	_ = w.Flush()

	if len(acts) == 0 {
		return
	}
	_, _ = fmt.Fprintln(out, "\nActivity:")
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, a := range acts {
		_, _ = fmt.Fprintf(w, "  %s\t%s\t%s\n", a.CreatedAt.Format("2006-01-02 15:04:05"), a.Type, a.Description)
	}
	_ = w.Flush()
}

func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	leadAddCmd.Flags().String("team", "", "owning team ID (required)")
	leadAddCmd.Flags().String("email", "", "lead email address (required)")
	leadAddCmd.Flags().String("first-name", "", "first name")
	leadAddCmd.Flags().String("last-name", "", "last name")
	_ = leadAddCmd.MarkFlagRequired("team")
	_ = leadAddCmd.MarkFlagRequired("email")

	leadListCmd.Flags().String("team", "", "filter by team ID")
	leadListCmd.Flags().String("status", "", "filter by status (NEW, ENRICHED, FAILED, APPROVED, REJECTED)")
	leadListCmd.Flags().Int("limit", 50, "max leads to list")

	leadCmd.AddCommand(leadAddCmd, leadListCmd, leadShowCmd)
	rootCmd.AddCommand(leadCmd)
}
