package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/qcyard/internal/alerts"
	"github.com/zulandar/qcyard/internal/clock"
	"github.com/zulandar/qcyard/internal/db"
	"github.com/zulandar/qcyard/internal/models"
	"gorm.io/gorm"
)

var now = time.Date(2026, 10, 18, 15, 0, 0, 0, time.UTC)

type seedRow struct {
	order     string
	branch    string
	stage     models.Stage
	status    models.InspectionStatus
	inspector string
	created   time.Time
	recorded  time.Time
}

var seq int

func seed(t *testing.T, gdb *gorm.DB, rows ...seedRow) {
	t.Helper()
	for _, r := range rows {
		seq++
		insp := models.Inspection{
			ID:                fmt.Sprintf("insp-%03d", seq),
			InspectionNumber:  fmt.Sprintf("QC202610%04d", seq),
			ProductionOrderID: r.order,
			BranchID:          r.branch,
			Stage:             r.stage,
			Status:            r.status,
			Version:           1,
			CreatedAt:         r.created,
		}
		if r.inspector != "" {
			id := r.inspector
			insp.InspectorID = &id
		}
		if !r.recorded.IsZero() {
			at := r.recorded
			insp.InspectionDate = &at
		}
		if err := gdb.Create(&insp).Error; err != nil {
			t.Fatalf("create inspection: %v", err)
		}
	}
}

func newComposer(t *testing.T) (*Composer, *gorm.DB) {
	t.Helper()
	gdb, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	clk := clock.NewFixed(now)
	scanner := alerts.NewScanner(alerts.ScannerOpts{DB: gdb, Clock: clk})
	return NewComposer(Options{DB: gdb, Alerts: scanner, Clock: clk, Location: time.UTC}), gdb
}

func fixtureRows() []seedRow {
	morning := now.Add(-5 * time.Hour)
	return []seedRow{
		// po-1: passed cutting today, coating awaiting an inspector.
		{"po-1", "north", models.StageCutting, models.InspectionPassed, "emp-1", morning, morning.Add(time.Hour)},
		{"po-1", "north", models.StageCoating, models.InspectionPending, "", morning, time.Time{}},
		// po-2: failed and then assigned again, in QC.
		{"po-2", "north", models.StageCutting, models.InspectionReworkRequired, "emp-1", morning, morning.Add(2 * time.Hour)},
		{"po-2", "north", models.StageCutting, models.InspectionPending, "emp-2", morning, time.Time{}},
		// po-3: south branch, stale pending.
		{"po-3", "south", models.StageAssembly, models.InspectionPending, "emp-2", now.Add(-30 * time.Hour), time.Time{}},
		// po-4: recorded last week, outside today.
		{"po-4", "north", models.StageCutting, models.InspectionPassed, "emp-1", now.AddDate(0, 0, -3), now.AddDate(0, 0, -3)},
	}
}

func TestCompose(t *testing.T) {
	c, gdb := newComposer(t)
	seed(t, gdb, fixtureRows()...)

	v, err := c.Compose(context.Background(), "")
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	if v.Inspections.Pending != 3 || v.Inspections.Active != 2 {
		t.Errorf("pending/active = %d/%d, want 3/2", v.Inspections.Pending, v.Inspections.Active)
	}
	if v.Inspections.CompletedToday != 2 || v.Inspections.PassedToday != 1 {
		t.Errorf("completed/passed today = %d/%d, want 2/1", v.Inspections.CompletedToday, v.Inspections.PassedToday)
	}
	if v.TodayPassRate != 50 {
		t.Errorf("TodayPassRate = %v, want 50", v.TodayPassRate)
	}

	want := OrderCounts{AwaitingQC: 1, InQC: 2, Passed: 2, Failed: 1}
	if v.Orders != want {
		t.Errorf("Orders = %+v, want %+v", v.Orders, want)
	}

	if len(v.Workload) != 2 {
		t.Fatalf("Workload = %+v", v.Workload)
	}
	if w := v.Workload[0]; w.InspectorID != "emp-1" || w.Pending != 0 || w.CompletedToday != 2 {
		t.Errorf("emp-1 workload = %+v", w)
	}
	if w := v.Workload[1]; w.InspectorID != "emp-2" || w.Pending != 2 || w.InProgress != 2 || w.CompletedToday != 0 {
		t.Errorf("emp-2 workload = %+v", w)
	}

	if len(v.Trend) != TrendDays {
		t.Errorf("trend points = %d, want %d", len(v.Trend), TrendDays)
	}
	if last := v.Trend[len(v.Trend)-1]; last.Date != "2026-10-18" || last.Total != 4 {
		t.Errorf("today trend = %+v", last)
	}
	if len(v.Stages) == 0 || v.Stages[0].Stage != models.StageCutting {
		t.Errorf("Stages = %+v", v.Stages)
	}

	if v.AlertCount != 1 || v.Alerts[0].Type != alerts.TypeSLABreach {
		t.Errorf("alerts = %+v", v.Alerts)
	}
}

func TestCompose_TodayInConfiguredZone(t *testing.T) {
	gdb, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	ist := time.FixedZone("IST", 5*3600+1800)
	// 01:30 on the 19th in IST; the IST day began at 18:30 UTC on the 18th.
	at := time.Date(2026, 10, 18, 20, 0, 0, 0, time.UTC)
	c := NewComposer(Options{DB: gdb, Clock: clock.NewFixed(at), Location: ist})

	seed(t, gdb,
		seedRow{"po-1", "north", models.StageCutting, models.InspectionPassed, "emp-1",
			time.Date(2026, 10, 18, 18, 45, 0, 0, time.UTC), time.Date(2026, 10, 18, 19, 0, 0, 0, time.UTC)},
		// Written with an IST offset.
		seedRow{"po-2", "north", models.StageCutting, models.InspectionReworkRequired, "emp-1",
			time.Date(2026, 10, 19, 0, 50, 0, 0, ist), time.Date(2026, 10, 19, 1, 0, 0, 0, ist)},
		// 23:30 IST on the 18th: yesterday in the configured zone.
		seedRow{"po-3", "north", models.StageCutting, models.InspectionPassed, "emp-2",
			time.Date(2026, 10, 18, 17, 0, 0, 0, time.UTC), time.Date(2026, 10, 18, 18, 0, 0, 0, time.UTC)},
	)

	v, err := c.Compose(context.Background(), "")
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if v.Inspections.CompletedToday != 2 || v.Inspections.PassedToday != 1 {
		t.Errorf("completed/passed today = %d/%d, want 2/1", v.Inspections.CompletedToday, v.Inspections.PassedToday)
	}
	if v.TodayPassRate != 50 {
		t.Errorf("TodayPassRate = %v, want 50", v.TodayPassRate)
	}

	var emp1 *WorkloadRow
	for i := range v.Workload {
		if v.Workload[i].InspectorID == "emp-1" {
			emp1 = &v.Workload[i]
		}
	}
	if emp1 == nil || emp1.CompletedToday != 2 {
		t.Errorf("emp-1 workload = %+v", emp1)
	}

	n := len(v.Trend)
	if n != TrendDays {
		t.Fatalf("trend points = %d, want %d", n, TrendDays)
	}
	if last := v.Trend[n-1]; last.Date != "2026-10-19" || last.Total != 2 {
		t.Errorf("today trend = %+v, want 2026-10-19 with 2", last)
	}
	if prev := v.Trend[n-2]; prev.Date != "2026-10-18" || prev.Total != 1 {
		t.Errorf("yesterday trend = %+v, want 2026-10-18 with 1", prev)
	}
}

func TestCompose_BranchScope(t *testing.T) {
	c, gdb := newComposer(t)
	seed(t, gdb, fixtureRows()...)

	v, err := c.Compose(context.Background(), "south")
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if v.Inspections.Pending != 1 || v.Orders.InQC != 1 || v.Orders.Passed != 0 {
		t.Errorf("south view = %+v / %+v", v.Inspections, v.Orders)
	}
}

func TestCompose_Empty(t *testing.T) {
	c, _ := newComposer(t)
	v, err := c.Compose(context.Background(), "")
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if v.TodayPassRate != 0 || v.AlertCount != 0 || v.Alerts == nil {
		t.Errorf("empty view = %+v", v)
	}
	if len(v.Trend) != TrendDays {
		t.Errorf("trend points = %d", len(v.Trend))
	}
}

func router(c *Composer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, c, 10*time.Millisecond)
	return r
}

func TestHandleView(t *testing.T) {
	c, gdb := newComposer(t)
	seed(t, gdb, fixtureRows()...)

	rec := httptest.NewRecorder()
	router(c).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var v View
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.AlertCount != 1 || v.Inspections.Pending != 3 {
		t.Errorf("view = %+v", v)
	}
}

func TestHandleStream(t *testing.T) {
	c, _ := newComposer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/dashboard/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	router(c).ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	if n := strings.Count(body, "event: dashboard\n"); n < 2 {
		t.Errorf("dashboard events = %d, want at least 2:\n%s", n, body)
	}
}

func TestWriteSSE(t *testing.T) {
	var sb strings.Builder
	writeSSE(&sb, "heartbeat", map[string]string{"k": "v"})
	if got := sb.String(); got != "event: heartbeat\ndata: {\"k\":\"v\"}\n\n" {
		t.Errorf("writeSSE = %q", got)
	}
}
