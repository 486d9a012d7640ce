package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/weiwangfds/melodia/internal/database"
	"github.com/weiwangfds/melodia/internal/service/moderation"
	"github.com/weiwangfds/melodia/internal/service/notification"
	"github.com/weiwangfds/melodia/internal/stats"
)

func newReportCommand(ctx *commandContext) *cobra.Command {
	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Print operational reports",
	}
	reportCmd.AddCommand(newModerationReportCommand(ctx))
	return reportCmd
}

func newModerationReportCommand(ctx *commandContext) *cobra.Command {
	var (
		days   int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "moderation",
		Short: "Summarise reports and appeals over a window",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := ctx.openDatabase()
			if err != nil {
				return err
			}
			defer database.Close(db)

			svc := moderation.NewModerationService(db, nil, notification.NewNotificationService(db))
			summary, err := svc.Summary(cmd.Context(), days)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}
			writeModerationReport(cmd.OutOrStdout(), summary)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", stats.DefaultDays, "Window length in days")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of tables")
	return cmd
}

func writeModerationReport(out io.Writer, s *moderation.Summary) {
	fmt.Fprintf(out, "Moderation report: last %d days (%s to %s UTC)\n\n",
		s.Window.Days, s.Window.Start.Format("2006-01-02 15:04"), s.Window.End.Format("2006-01-02 15:04"))

	right4 := []columnAlignment{alignLeft, alignRight, alignRight, alignRight}

	rows := [][]string{
		trendRow("New reports", s.NewReports),
		trendRow("Resolved reports", s.ResolvedReports),
		trendRow("New appeals", s.Appeals.New),
	}
	fmt.Fprintln(out, renderTable("Activity", []string{"Metric", "Current", "Previous", "Change"}, rows, right4))

	rows = rows[:0]
	for _, t := range s.ByType {
		rows = append(rows, []string{
			t.Type,
			humanize.Comma(t.Pending),
			humanize.Comma(t.Resolved),
			humanize.Comma(t.Dismissed),
			humanize.Comma(t.Total),
			formatChange(t.New),
		})
	}
	rows = append(rows, []string{
		"all",
		humanize.Comma(s.Totals.Pending),
		humanize.Comma(s.Totals.Resolved),
		humanize.Comma(s.Totals.Dismissed),
		humanize.Comma(s.Totals.Total),
		formatChange(s.NewReports),
	})
	fmt.Fprintln(out, renderTable("Reports by type",
		[]string{"Type", "Pending", "Resolved", "Dismissed", "Total", "New"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight}))

	if len(s.ByReason) > 0 {
		rows = rows[:0]
		for _, r := range s.ByReason {
			rows = append(rows, []string{r.Reason, humanize.Comma(r.Count)})
		}
		fmt.Fprintln(out, renderTable("Reasons", []string{"Reason", "Reports"}, rows, []columnAlignment{alignLeft, alignRight}))
	}

	if len(s.TopTargets) > 0 {
		rows = rows[:0]
		for _, t := range s.TopTargets {
			rows = append(rows, []string{t.Type, strconv.FormatUint(uint64(t.TargetID), 10), humanize.Comma(t.Count)})
		}
		fmt.Fprintln(out, renderTable("Most reported", []string{"Type", "Target", "Reports"}, rows, []columnAlignment{alignLeft, alignRight, alignRight}))
	}

	a := s.Appeals
	fmt.Fprintf(out, "Appeals: %d pending, %d approved, %d rejected, approval rate %s\n",
		a.Pending, a.Approved, a.Rejected, formatOptional(a.ApprovalRate, "%"))
	fmt.Fprintf(out, "Average resolution time: %s\n", formatOptional(s.AvgResolutionHours, " h"))
}

func trendRow(label string, t stats.Trend) []string {
	return []string{label, humanize.Comma(t.Current), humanize.Comma(t.Previous), formatChange(t)}
}

func formatChange(t stats.Trend) string {
	return fmt.Sprintf("%+d (%+.1f%%)", t.Change, t.PercentChange)
}

func formatOptional(v *float64, unit string) string {
	if v == nil {
		return "n/a"
	}
	return strconv.FormatFloat(*v, 'f', 1, 64) + unit
}
