package main

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/zulandar/qcyard/internal/alerts"
	"github.com/zulandar/qcyard/internal/certificate"
	"github.com/zulandar/qcyard/internal/clock"
	"github.com/zulandar/qcyard/internal/config"
	"github.com/zulandar/qcyard/internal/db"
	"github.com/zulandar/qcyard/internal/directory"
	"github.com/zulandar/qcyard/internal/inspection"
	"github.com/zulandar/qcyard/internal/metrics"
	"github.com/zulandar/qcyard/internal/notify"
	"github.com/zulandar/qcyard/internal/sequence"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %s database: %w", cfg.Database.Driver, err)
	}

	return cfg, gormDB, nil
}

// app holds the services wired from one config.
type app struct {
	cfg          *config.Config
	db           *gorm.DB
	log          *zap.Logger
	metrics      *metrics.Metrics
	notifier     notify.Notifier
	inspections  *inspection.Service
	certificates *certificate.Service
	alerts       *alerts.Scanner

	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newApp connects and wires every service. Optional backends (Redis, NATS,
// Slack, Discord) are enabled by their config sections.
func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := initLogger(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &app{cfg: cfg, db: gormDB, log: logger, metrics: metrics.New()}
	a.closers = append(a.closers, func() { logger.Sync() })

	var counter sequence.Counter = sequence.DBCounter{}
	if cfg.Redis.Addr != "" {
		client, err := sequence.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		a.closers = append(a.closers, func() { client.Close() })
		counter = sequence.NewRedisCounter(client)
	}

	notifier, err := a.buildNotifier()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.notifier = notifier

	clk := clock.Real{}
	orders := directory.NewOrders(gormDB)
	a.inspections = inspection.NewService(inspection.Options{
		DB:           gormDB,
		Orders:       orders,
		Inspectors:   directory.NewInspectors(gormDB),
		Requirements: directory.NewRequirements(gormDB),
		Counter:      counter,
		Clock:        clk,
		Logger:       logger.Named("inspection"),
		Metrics:      a.metrics,
		MaxPending:   cfg.QC.InspectorMaxPending,
	})
	a.certificates = certificate.NewService(certificate.Options{
		DB:       gormDB,
		Orders:   orders,
		Delivery: directory.NewDelivery(orders),
		Notifier: notifier,
		Counter:  counter,
		Clock:    clk,
		Logger:   logger.Named("certificate"),
		Metrics:  a.metrics,
	})
	a.alerts = alerts.NewScanner(alerts.ScannerOpts{
		DB: gormDB,
		Thresholds: alerts.Thresholds{
			SLA:               cfg.SLA(),
			OverloadThreshold: cfg.QC.OverloadThreshold,
			QualityFailRate:   cfg.QC.QualityFailRate,
			QualityMinSample:  cfg.QC.QualityMinSample,
		},
		Notifier: notifier,
		Clock:    clk,
		Logger:   logger.Named("alerts"),
		Metrics:  a.metrics,
	})
	return a, nil
}

func (a *app) buildNotifier() (notify.Notifier, error) {
	multi := notify.Multi{notify.NewLog(a.log.Named("notify"))}

	if a.cfg.NATS.URL != "" {
		conn, err := notify.ConnectNATS(a.cfg.NATS.URL)
		if err != nil {
			return nil, fmt.Errorf("connect to nats at %s: %w", a.cfg.NATS.URL, err)
		}
		a.closers = append(a.closers, func() { drainNATS(conn) })
		multi = append(multi, notify.NewNATS(conn, a.cfg.NATS.SubjectPrefix))
	}
	if chat := a.cfg.Notify.Slack; chat.BotToken != "" {
		s, err := notify.NewSlack(notify.SlackOpts{BotToken: chat.BotToken, ChannelID: chat.ChannelID})
		if err != nil {
			return nil, fmt.Errorf("slack notifier: %w", err)
		}
		multi = append(multi, s)
	}
	if chat := a.cfg.Notify.Discord; chat.BotToken != "" {
		d, err := notify.NewDiscord(notify.DiscordOpts{BotToken: chat.BotToken, ChannelID: chat.ChannelID})
		if err != nil {
			return nil, fmt.Errorf("discord notifier: %w", err)
		}
		multi = append(multi, d)
	}
	return multi, nil
}

func drainNATS(conn *nats.Conn) {
	if err := conn.Drain(); err != nil {
		conn.Close()
	}
}
