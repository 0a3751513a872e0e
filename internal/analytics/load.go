package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/zulandar/qcyard/internal/models"
	"gorm.io/gorm"
)

// Filter selects the inspections a report covers.
type Filter struct {
	Start    time.Time
	End      time.Time
	BranchID string
	Stage    models.Stage
}

// Load returns inspections created in [f.Start, f.End] matching the filter,
// without checklists.
func Load(ctx context.Context, db *gorm.DB, f Filter) ([]models.Inspection, error) {
	if f.End.Before(f.Start) {
		return nil, fmt.Errorf("analytics: end %s before start %s", f.End.Format(time.RFC3339), f.Start.Format(time.RFC3339))
	}
	q := db.WithContext(ctx).Model(&models.Inspection{}).
		Where("created_at >= ? AND created_at <= ?", f.Start.UTC(), f.End.UTC())
	if f.BranchID != "" {
		q = q.Where("branch_id = ?", f.BranchID)
	}
	if f.Stage != "" {
		q = q.Where("stage = ?", f.Stage)
	}
	var out []models.Inspection
	if err := q.Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("analytics: load inspections: %w", err)
	}
	return out, nil
}

// Build loads inspections for f and aggregates them.
func Build(ctx context.Context, db *gorm.DB, f Filter) (*Report, error) {
	insps, err := Load(ctx, db, f)
	if err != nil {
		return nil, err
	}
	return Aggregate(insps, f.Start, f.End), nil
}
