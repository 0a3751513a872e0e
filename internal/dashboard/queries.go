package dashboard

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/zulandar/qcyard/internal/inspection"
	"github.com/zulandar/qcyard/internal/models"
	"gorm.io/gorm"
)

// InspectionCounts summarizes the live inspection queue.
type InspectionCounts struct {
	Active         int64 `json:"active"`
	Pending        int64 `json:"pending"`
	CompletedToday int64 `json:"completedToday"`
	PassedToday    int64 `json:"passedToday"`
}

// OrderCounts are distinct production orders by QC outcome. The buckets are
// counted independently, so one order can appear in several.
type OrderCounts struct {
	AwaitingQC int64 `json:"awaitingQc"`
	InQC       int64 `json:"inQc"`
	Passed     int64 `json:"passed"`
	Failed     int64 `json:"failed"`
}

// WorkloadRow is one inspector's current load.
type WorkloadRow struct {
	InspectorID    string `json:"inspectorId"`
	Pending        int64  `json:"pending"`
	InProgress     int64  `json:"inProgress"`
	CompletedToday int64  `json:"completedToday"`
}

func scoped(ctx context.Context, db *gorm.DB, branchID string) *gorm.DB {
	q := db.WithContext(ctx).Model(&models.Inspection{})
	if branchID != "" {
		q = q.Where("branch_id = ?", branchID)
	}
	return q
}

// CountInspections returns queue counts. Completed means recorded since
// dayStart.
func CountInspections(ctx context.Context, db *gorm.DB, branchID string, dayStart time.Time) (InspectionCounts, error) {
	var c InspectionCounts
	dayStart = dayStart.UTC()
	if err := scoped(ctx, db, branchID).
		Where("status = ? AND inspector_id IS NOT NULL", models.InspectionPending).
		Count(&c.Active).Error; err != nil {
		return c, fmt.Errorf("dashboard: count active: %w", err)
	}
	if err := scoped(ctx, db, branchID).
		Where("status = ?", models.InspectionPending).
		Count(&c.Pending).Error; err != nil {
		return c, fmt.Errorf("dashboard: count pending: %w", err)
	}
	if err := scoped(ctx, db, branchID).
		Where("status <> ? AND inspection_date >= ?", models.InspectionPending, dayStart).
		Count(&c.CompletedToday).Error; err != nil {
		return c, fmt.Errorf("dashboard: count completed: %w", err)
	}
	if err := scoped(ctx, db, branchID).
		Where("status = ? AND inspection_date >= ?", models.InspectionPassed, dayStart).
		Count(&c.PassedToday).Error; err != nil {
		return c, fmt.Errorf("dashboard: count passed: %w", err)
	}
	return c, nil
}

// CountOrders returns distinct production orders per QC bucket: awaiting
// (unassigned PENDING inspection), in QC (assigned PENDING inspection),
// passed (any PASSED inspection) and failed (any FAILED or REWORK_REQUIRED).
func CountOrders(ctx context.Context, db *gorm.DB, branchID string) (OrderCounts, error) {
	var c OrderCounts
	buckets := []struct {
		name  string
		dst   *int64
		where string
		args  []interface{}
	}{
		{"awaiting", &c.AwaitingQC, "status = ? AND inspector_id IS NULL", []interface{}{models.InspectionPending}},
		{"in qc", &c.InQC, "status = ? AND inspector_id IS NOT NULL", []interface{}{models.InspectionPending}},
		{"passed", &c.Passed, "status = ?", []interface{}{models.InspectionPassed}},
		{"failed", &c.Failed, "status IN ?", []interface{}{[]models.InspectionStatus{models.InspectionFailed, models.InspectionReworkRequired}}},
	}
	for _, b := range buckets {
		if err := scoped(ctx, db, branchID).
			Where(b.where, b.args...).
			Distinct("production_order_id").
			Count(b.dst).Error; err != nil {
			return c, fmt.Errorf("dashboard: count %s orders: %w", b.name, err)
		}
	}
	return c, nil
}

// Workload returns per-inspector load ordered by inspector id. Pending and
// in-progress both come from the shared pending count; an assigned PENDING
// inspection is the only in-progress state the engine tracks.
func Workload(ctx context.Context, db *gorm.DB, dayStart time.Time) ([]WorkloadRow, error) {
	pending, err := inspection.CountPending(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}

	type row struct {
		InspectorID string
		Count       int64
	}
	var done []row
	if err := db.WithContext(ctx).Model(&models.Inspection{}).
		Select("inspector_id, COUNT(*) AS count").
		Where("status <> ? AND inspector_id IS NOT NULL AND inspection_date >= ?", models.InspectionPending, dayStart.UTC()).
		Group("inspector_id").
		Scan(&done).Error; err != nil {
		return nil, fmt.Errorf("dashboard: count completed by inspector: %w", err)
	}

	byID := make(map[string]*WorkloadRow)
	get := func(id string) *WorkloadRow {
		w, ok := byID[id]
		if !ok {
			w = &WorkloadRow{InspectorID: id}
			byID[id] = w
		}
		return w
	}
	for id, n := range pending {
		w := get(id)
		w.Pending = n
		w.InProgress = n
	}
	for _, r := range done {
		get(r.InspectorID).CompletedToday = r.Count
	}

	out := make([]WorkloadRow, 0, len(byID))
	for _, w := range byID {
		out = append(out, *w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InspectorID < out[j].InspectorID })
	return out, nil
}
