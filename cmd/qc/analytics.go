package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/qcyard/internal/analytics"
	"github.com/zulandar/qcyard/internal/clock"
	"github.com/zulandar/qcyard/internal/models"
)

func newAnalyticsCmd() *cobra.Command {
	var (
		configPath string
		days       int
		branch     string
		stage      string
		xlsxPath   string
	)

	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Show QC analytics for a date range",
		Long: `Aggregates inspections created in the last --days days into overall,
per-stage, per-inspector and daily metrics. --xlsx writes an Excel workbook.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalytics(cmd, configPath, days, analytics.Filter{
				BranchID: branch,
				Stage:    models.Stage(strings.ToUpper(stage)),
			}, xlsxPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to QC config file")
	cmd.Flags().IntVar(&days, "days", 7, "number of days to cover, including today")
	cmd.Flags().StringVar(&branch, "branch", "", "filter by branch")
	cmd.Flags().StringVar(&stage, "stage", "", "filter by stage")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "write the report to this .xlsx file")
	return cmd
}

func runAnalytics(cmd *cobra.Command, configPath string, days int, f analytics.Filter, xlsxPath string) error {
	if days < 1 {
		return fmt.Errorf("--days must be at least 1")
	}
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	now := time.Now().In(cfg.Location())
	f.End = now
	f.Start = clock.StartOfDay(now).AddDate(0, 0, -(days - 1))

	report, err := analytics.Build(cmd.Context(), gormDB, f)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if xlsxPath != "" {
		file, err := os.Create(xlsxPath)
		if err != nil {
			return fmt.Errorf("create %s: %w", xlsxPath, err)
		}
		defer file.Close()
		if err := analytics.Export(file, report); err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote %s\n", xlsxPath)
		return nil
	}

	o := report.Overview
	fmt.Fprintf(out, "QC analytics %s to %s\n", f.Start.Format("2006-01-02"), f.End.Format("2006-01-02"))
	fmt.Fprintf(out, "Inspections: %d (passed %d, failed %d, rework %d, pending %d)\n", o.Total, o.Passed, o.Failed, o.Rework, o.Pending)
	fmt.Fprintf(out, "Pass rate %.2f%%, fail rate %.2f%%, rework rate %.2f%%, average score %.2f\n\n", o.PassRate, o.FailRate, o.ReworkRate, o.AverageScore)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STAGE\tTOTAL\tPASS%\tFAIL%\tREWORK%\tAVG")
	for _, s := range report.Stages {
		fmt.Fprintf(w, "%s\t%d\t%.2f\t%.2f\t%.2f\t%.2f\n", s.Stage, s.Total, s.PassRate, s.FailRate, s.ReworkRate, s.AverageScore)
	}
	w.Flush()

	if len(report.Inspectors) > 0 {
		fmt.Fprintln(out)
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "INSPECTOR\tTOTAL\tPASS%\tAVG\tPER DAY")
		for _, in := range report.Inspectors {
			fmt.Fprintf(w, "%s\t%d\t%.2f\t%.2f\t%.2f\n", in.InspectorID, in.Total, in.PassRate, in.AverageScore, in.Efficiency)
		}
		w.Flush()
	}

	fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tTOTAL\tPASSED\tPASS%")
	for _, p := range report.Trend {
		fmt.Fprintf(w, "%s\t%d\t%d\t%.2f\n", p.Date, p.Total, p.Passed, p.PassRate)
	}
	w.Flush()
	return nil
}
