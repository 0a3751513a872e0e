package alerts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/zulandar/qcyard/internal/clock"
	"github.com/zulandar/qcyard/internal/db"
	"github.com/zulandar/qcyard/internal/metrics"
	"github.com/zulandar/qcyard/internal/models"
	"github.com/zulandar/qcyard/internal/notify"
	"gorm.io/gorm"
)

var now = time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)

func strptr(s string) *string { return &s }

func pending(id string, created time.Time) models.Inspection {
	return models.Inspection{
		ID:                id,
		InspectionNumber:  "QC-" + id,
		ProductionOrderID: "po-1",
		Stage:             models.StageCutting,
		Status:            models.InspectionPending,
		CreatedAt:         created,
	}
}

func recorded(stage models.Stage, status models.InspectionStatus, created time.Time) models.Inspection {
	return models.Inspection{Stage: stage, Status: status, CreatedAt: created}
}

func TestGenerate_SLABreachAfter25Hours(t *testing.T) {
	snap := Snapshot{Pending: []models.Inspection{pending("i-1", now.Add(-25*time.Hour))}}
	got := Generate(snap, DefaultThresholds(), now)
	if len(got) != 1 {
		t.Fatalf("alerts = %d, want 1", len(got))
	}
	a := got[0]
	if a.Type != TypeSLABreach || a.Severity != SeverityHigh {
		t.Errorf("alert = %s/%s, want SLA_BREACH/HIGH", a.Type, a.Severity)
	}
	if a.InspectionID != "i-1" || a.ID != "sla-i-1" {
		t.Errorf("InspectionID = %q, ID = %q", a.InspectionID, a.ID)
	}
	if a.Acknowledged {
		t.Error("new alert should not be acknowledged")
	}
	if !a.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want %v", a.CreatedAt, now)
	}
}

func TestGenerate_SLAWithinWindow(t *testing.T) {
	snap := Snapshot{Pending: []models.Inspection{
		pending("i-1", now.Add(-23*time.Hour)),
		pending("i-2", now.Add(-24*time.Hour)),
	}}
	if got := Generate(snap, DefaultThresholds(), now); len(got) != 0 {
		t.Errorf("alerts = %v, want none", got)
	}
}

func TestGenerate_SLAIgnoresRecordedInspections(t *testing.T) {
	insp := pending("i-1", now.Add(-48*time.Hour))
	insp.Status = models.InspectionPassed
	if got := Generate(Snapshot{Pending: []models.Inspection{insp}}, DefaultThresholds(), now); len(got) != 0 {
		t.Errorf("alerts = %v, want none", got)
	}
}

func TestGenerate_Overload(t *testing.T) {
	snap := Snapshot{Workload: map[string]int64{"emp-1": 11, "emp-2": 10, "emp-3": 3}}
	got := Generate(snap, DefaultThresholds(), now)
	if len(got) != 1 {
		t.Fatalf("alerts = %d, want 1", len(got))
	}
	if got[0].Type != TypeInspectorOverload || got[0].Severity != SeverityMedium || got[0].InspectorID != "emp-1" {
		t.Errorf("alert = %+v", got[0])
	}
}

func TestGenerate_QualityIssue(t *testing.T) {
	var recent []models.Inspection
	for i := 0; i < 3; i++ {
		recent = append(recent, recorded(models.StageCoating, models.InspectionPassed, now.Add(-time.Hour)))
	}
	recent = append(recent,
		recorded(models.StageCoating, models.InspectionFailed, now.Add(-time.Hour)),
		recorded(models.StageCoating, models.InspectionReworkRequired, now.Add(-time.Hour)),
		recorded(models.StageCoating, models.InspectionPending, now.Add(-time.Hour)),
		recorded(models.StageCutting, models.InspectionFailed, now.Add(-time.Hour)),
	)

	got := Generate(Snapshot{Recent: recent}, DefaultThresholds(), now)
	if len(got) != 1 {
		t.Fatalf("alerts = %d, want 1: %+v", len(got), got)
	}
	if got[0].ID != "quality-COATING" || got[0].Severity != SeverityHigh {
		t.Errorf("alert = %+v", got[0])
	}

	th := DefaultThresholds()
	th.QualityFailRate = 0
	if got := Generate(Snapshot{Recent: recent}, th, now); len(got) != 0 {
		t.Errorf("disabled quality check produced %d alerts", len(got))
	}
}

func TestGenerate_QualityIgnoresOldInspections(t *testing.T) {
	var recent []models.Inspection
	for i := 0; i < 6; i++ {
		recent = append(recent, recorded(models.StageAssembly, models.InspectionFailed, now.Add(-8*24*time.Hour)))
	}
	if got := Generate(Snapshot{Recent: recent}, DefaultThresholds(), now); len(got) != 0 {
		t.Errorf("alerts = %d, want 0", len(got))
	}
}

func TestGenerate_OrderedBySeverityThenTime(t *testing.T) {
	snap := Snapshot{
		Pending: []models.Inspection{
			pending("newer", now.Add(-30*time.Hour)),
			pending("older", now.Add(-50*time.Hour)),
		},
		Workload: map[string]int64{"emp-1": 12},
	}
	got := Generate(snap, DefaultThresholds(), now)
	var ids []string
	for _, a := range got {
		ids = append(ids, a.ID)
	}
	want := "sla-older,sla-newer,overload-emp-1"
	if strings.Join(ids, ",") != want {
		t.Errorf("order = %v, want %s", ids, want)
	}
}

func TestCounts(t *testing.T) {
	c := Counts([]Alert{{Type: TypeSLABreach}, {Type: TypeSLABreach}, {Type: TypeInspectorOverload}})
	if c["SLA_BREACH"] != 2 || c["INSPECTOR_OVERLOAD"] != 1 {
		t.Errorf("Counts = %v", c)
	}
}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	return gdb
}

func TestScanner_Scan(t *testing.T) {
	gdb := testDB(t)
	for i := 0; i < 11; i++ {
		insp := pending(fmt.Sprintf("i-%02d", i), now.Add(-time.Hour))
		insp.InspectorID = strptr("emp-1")
		insp.Version = 1
		if err := gdb.Create(&insp).Error; err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	stale := pending("stale", now.Add(-26*time.Hour))
	stale.Version = 1
	if err := gdb.Create(&stale).Error; err != nil {
		t.Fatalf("create: %v", err)
	}

	m := metrics.New()
	s := NewScanner(ScannerOpts{DB: gdb, Clock: clock.NewFixed(now), Metrics: m})
	got, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("alerts = %d, want 2: %+v", len(got), got)
	}
	if got[0].ID != "sla-stale" || got[1].ID != "overload-emp-1" {
		t.Errorf("alerts = %s, %s", got[0].ID, got[1].ID)
	}
	n, err := testutil.GatherAndCount(m.Registry(), "qc_active_alerts")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if n != 2 {
		t.Errorf("qc_active_alerts series = %d, want 2", n)
	}
}

type recorder struct {
	events []notify.Event
	fail   map[string]bool
}

func (r *recorder) Notify(_ context.Context, evt notify.Event) error {
	if r.fail[evt.Body] {
		return errors.New("down")
	}
	r.events = append(r.events, evt)
	return nil
}

func TestScanner_Publish(t *testing.T) {
	list := []Alert{
		{ID: "sla-1", Type: TypeSLABreach, Severity: SeverityHigh, Message: "a", InspectionID: "i-1"},
		{ID: "overload-emp-1", Type: TypeInspectorOverload, Severity: SeverityMedium, Message: "b", InspectorID: "emp-1"},
		{ID: "sla-2", Type: TypeSLABreach, Severity: SeverityHigh, Message: "c"},
	}
	rec := &recorder{fail: map[string]bool{"b": true}}
	s := NewScanner(ScannerOpts{Notifier: rec})
	if sent := s.Publish(context.Background(), list); sent != 2 {
		t.Errorf("sent = %d, want 2", sent)
	}
	if len(rec.events) != 2 {
		t.Fatalf("events = %d", len(rec.events))
	}
	evt := rec.events[0]
	if evt.Kind != "alert.SLA_BREACH" || evt.Severity != notify.SeverityError {
		t.Errorf("event = %+v", evt)
	}
	if len(evt.Fields) != 1 || evt.Fields[0].Value != "i-1" {
		t.Errorf("fields = %+v", evt.Fields)
	}
}

func TestScanner_PublishWithoutNotifier(t *testing.T) {
	s := NewScanner(ScannerOpts{})
	if sent := s.Publish(context.Background(), []Alert{{ID: "x"}}); sent != 0 {
		t.Errorf("sent = %d", sent)
	}
}
