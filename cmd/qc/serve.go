package main

import (
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/zulandar/qcyard/internal/api"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the QC HTTP API and dashboard",
		Long:  "Serves the inspection, certificate, analytics, alert and dashboard endpoints plus /metrics and /healthz.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to QC config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides server.port)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	if port <= 0 {
		port = a.cfg.Server.Port
	}

	gin.SetMode(gin.ReleaseMode)
	router, err := api.NewRouter(api.Options{
		DB:           a.db,
		Inspections:  a.inspections,
		Certificates: a.certificates,
		Alerts:       a.alerts,
		Metrics:      a.metrics,
		Logger:       a.log.Named("api"),
		Location:     a.cfg.Location(),
		RateLimit:    a.cfg.Server.RateLimit,
	})
	if err != nil {
		return err
	}
	return api.Serve(ctx, router, port, cmd.OutOrStdout())
}
