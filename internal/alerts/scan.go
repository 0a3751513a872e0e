package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/zulandar/qcyard/internal/clock"
	"github.com/zulandar/qcyard/internal/inspection"
	"github.com/zulandar/qcyard/internal/metrics"
	"github.com/zulandar/qcyard/internal/models"
	"github.com/zulandar/qcyard/internal/notify"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LoadSnapshot reads the inspections and workload alerts are derived from.
func LoadSnapshot(ctx context.Context, db *gorm.DB, now time.Time) (Snapshot, error) {
	var s Snapshot
	if err := db.WithContext(ctx).
		Where("status = ?", models.InspectionPending).
		Order("created_at ASC").
		Find(&s.Pending).Error; err != nil {
		return s, fmt.Errorf("alerts: load pending: %w", err)
	}
	workload, err := inspection.CountPending(ctx, db)
	if err != nil {
		return s, fmt.Errorf("alerts: %w", err)
	}
	s.Workload = workload
	if err := db.WithContext(ctx).
		Where("created_at >= ?", now.UTC().Add(-QualityWindow)).
		Find(&s.Recent).Error; err != nil {
		return s, fmt.Errorf("alerts: load recent: %w", err)
	}
	return s, nil
}

// ScannerOpts configures a Scanner. DB is required.
type ScannerOpts struct {
	DB         *gorm.DB
	Thresholds Thresholds
	Notifier   notify.Notifier
	Clock      clock.Clock
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

// Scanner loads snapshots and generates alerts on demand.
type Scanner struct {
	db         *gorm.DB
	thresholds Thresholds
	notifier   notify.Notifier
	clock      clock.Clock
	log        *zap.Logger
	metrics    *metrics.Metrics
}

// NewScanner returns a Scanner. Zero thresholds fall back to defaults, except
// QualityFailRate where 0 disables the check.
func NewScanner(opts ScannerOpts) *Scanner {
	def := DefaultThresholds()
	th := opts.Thresholds
	if th.SLA <= 0 {
		th.SLA = def.SLA
	}
	if th.OverloadThreshold <= 0 {
		th.OverloadThreshold = def.OverloadThreshold
	}
	if th.QualityMinSample <= 0 {
		th.QualityMinSample = def.QualityMinSample
	}
	s := &Scanner{
		db:         opts.DB,
		thresholds: th,
		notifier:   opts.Notifier,
		clock:      opts.Clock,
		log:        opts.Logger,
		metrics:    opts.Metrics,
	}
	if s.clock == nil {
		s.clock = clock.Real{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// Scan returns the current alerts and updates the active-alert gauge.
func (s *Scanner) Scan(ctx context.Context) ([]Alert, error) {
	now := s.clock.Now()
	snap, err := LoadSnapshot(ctx, s.db, now)
	if err != nil {
		return nil, err
	}
	list := Generate(snap, s.thresholds, now)
	s.metrics.SetActiveAlerts(Counts(list))
	return list, nil
}

// Publish sends one event per alert to the notifier. Delivery failures are
// logged and the remaining alerts are still sent.
func (s *Scanner) Publish(ctx context.Context, list []Alert) int {
	if s.notifier == nil {
		return 0
	}
	sent := 0
	for _, a := range list {
		if err := s.notifier.Notify(ctx, Event(a)); err != nil {
			s.log.Warn("alert notify failed", zap.String("alert", a.ID), zap.Error(err))
			continue
		}
		sent++
	}
	return sent
}

// Event renders an alert as a notification.
func Event(a Alert) notify.Event {
	sev := notify.SeverityWarning
	if a.Severity.Rank() >= SeverityHigh.Rank() {
		sev = notify.SeverityError
	}
	evt := notify.Event{
		Kind:     notify.KindAlertPrefix + string(a.Type),
		Title:    fmt.Sprintf("%s alert: %s", a.Severity, a.Type),
		Body:     a.Message,
		Severity: sev,
	}
	for _, f := range []struct{ name, value string }{
		{"Inspection", a.InspectionID},
		{"Inspector", a.InspectorID},
		{"Production order", a.ProductionOrderID},
		{"Stage", a.Stage},
	} {
		if f.value != "" {
			evt.Fields = append(evt.Fields, notify.Field{Name: f.name, Value: f.value, Short: true})
		}
	}
	return evt
}
