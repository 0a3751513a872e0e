// Package dashboard composes the real-time QC view from inspection counts,
// analytics and alerts.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/zulandar/qcyard/internal/alerts"
	"github.com/zulandar/qcyard/internal/analytics"
	"github.com/zulandar/qcyard/internal/clock"
	"gorm.io/gorm"
)

// TrendDays is the length of the dashboard trend and stage window.
const TrendDays = 7

// View is one dashboard snapshot.
type View struct {
	GeneratedAt   time.Time                `json:"generatedAt"`
	Inspections   InspectionCounts         `json:"inspections"`
	Orders        OrderCounts              `json:"orders"`
	Workload      []WorkloadRow            `json:"workload"`
	TodayPassRate float64                  `json:"todayPassRate"`
	Trend         []analytics.TrendPoint   `json:"trend"`
	Stages        []analytics.StageMetrics `json:"stages"`
	Alerts        []alerts.Alert           `json:"alerts"`
	AlertCount    int                      `json:"alertCount"`
}

// Options configures a Composer. DB and Alerts are required.
type Options struct {
	DB       *gorm.DB
	Alerts   *alerts.Scanner
	Clock    clock.Clock
	Location *time.Location
}

// Composer builds dashboard views. It holds no state of its own.
type Composer struct {
	db     *gorm.DB
	alerts *alerts.Scanner
	clock  clock.Clock
	loc    *time.Location
}

// NewComposer returns a Composer.
func NewComposer(opts Options) *Composer {
	c := &Composer{db: opts.DB, alerts: opts.Alerts, clock: opts.Clock, loc: opts.Location}
	if c.clock == nil {
		c.clock = clock.Real{}
	}
	if c.loc == nil {
		c.loc = time.Local
	}
	return c
}

// Compose builds a view, optionally scoped to one branch. Workload and
// alerts always cover every branch.
func (c *Composer) Compose(ctx context.Context, branchID string) (*View, error) {
	now := c.clock.Now().In(c.loc)
	today := clock.StartOfDay(now)

	v := &View{GeneratedAt: now}
	var err error
	if v.Inspections, err = CountInspections(ctx, c.db, branchID, today); err != nil {
		return nil, err
	}
	if v.Orders, err = CountOrders(ctx, c.db, branchID); err != nil {
		return nil, err
	}
	if v.Workload, err = Workload(ctx, c.db, today); err != nil {
		return nil, err
	}
	v.TodayPassRate = analytics.Rate(int(v.Inspections.PassedToday), int(v.Inspections.CompletedToday))

	report, err := analytics.Build(ctx, c.db, analytics.Filter{
		Start:    today.AddDate(0, 0, -(TrendDays - 1)),
		End:      now,
		BranchID: branchID,
	})
	if err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}
	v.Trend = report.Trend
	v.Stages = report.Stages

	if c.alerts != nil {
		if v.Alerts, err = c.alerts.Scan(ctx); err != nil {
			return nil, fmt.Errorf("dashboard: %w", err)
		}
	}
	if v.Alerts == nil {
		v.Alerts = []alerts.Alert{}
	}
	v.AlertCount = len(v.Alerts)
	return v, nil
}
