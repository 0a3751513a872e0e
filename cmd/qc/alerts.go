package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/zulandar/qcyard/internal/alerts"
	"go.uber.org/zap"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

func newAlertsCmd() *cobra.Command {
	var (
		configPath string
		watch      bool
		notify     bool
		schedule   string
	)

	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Scan for SLA, overload and quality alerts",
		Long: `Derives alerts from the current inspection state and prints them.

With --notify each alert is sent to the configured notifiers. With --watch the
scan repeats on the qc.alert_schedule cron expression (or --schedule) and
notifies on every run until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if watch {
				return runAlertsWatch(cmd, configPath, schedule)
			}
			return runAlerts(cmd, configPath, notify)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to QC config file")
	cmd.Flags().BoolVar(&watch, "watch", false, "scan on a schedule until interrupted")
	cmd.Flags().BoolVar(&notify, "notify", false, "send alerts to the configured notifiers")
	cmd.Flags().StringVar(&schedule, "schedule", "", "cron expression overriding qc.alert_schedule")
	return cmd
}

func runAlerts(cmd *cobra.Command, configPath string, notify bool) error {
	a, err := newApp(cmd.Context(), configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	list, err := a.alerts.Scan(cmd.Context())
	if err != nil {
		return err
	}
	printAlerts(cmd.OutOrStdout(), list)
	if notify && len(list) > 0 {
		sent := a.alerts.Publish(cmd.Context(), list)
		fmt.Fprintf(cmd.OutOrStdout(), "Notified %d of %d alerts\n", sent, len(list))
	}
	return nil
}

func runAlertsWatch(cmd *cobra.Command, configPath, schedule string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	if schedule == "" {
		schedule = a.cfg.QC.AlertSchedule
	}
	sched, err := cronParser.Parse(schedule)
	if err != nil {
		return fmt.Errorf("invalid alert schedule %q: %w", schedule, err)
	}

	out := cmd.OutOrStdout()
	// The first scan finishes before the scheduler can start another one.
	scanAndPublish(ctx, a, out)
	fmt.Fprintf(out, "Watching alerts on %q (Ctrl-C to stop)\n", schedule)

	c := cron.New(cron.WithParser(cronParser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	c.Schedule(sched, cron.FuncJob(func() { scanAndPublish(ctx, a, out) }))
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	fmt.Fprintln(out, "Stopped.")
	return nil
}

func scanAndPublish(ctx context.Context, a *app, out io.Writer) {
	list, err := a.alerts.Scan(ctx)
	if err != nil {
		a.log.Error("alert scan failed", zap.Error(err))
		return
	}
	sent := a.alerts.Publish(ctx, list)
	a.log.Info("alert scan", zap.Int("alerts", len(list)), zap.Int("notified", sent))
	printAlerts(out, list)
}

func printAlerts(out io.Writer, list []alerts.Alert) {
	if len(list) == 0 {
		fmt.Fprintln(out, "No alerts.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEVERITY\tTYPE\tID\tMESSAGE")
	for _, al := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", al.Severity, al.Type, al.ID, truncate(al.Message, 80))
	}
	w.Flush()
}
