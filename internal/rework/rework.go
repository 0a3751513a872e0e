// Package rework derives rework job cards from failing inspections and
// tracks them through production scheduling.
package rework

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zulandar/qcyard/internal/models"
	"github.com/zulandar/qcyard/internal/qcerr"
	"github.com/zulandar/qcyard/internal/sequence"
	"gorm.io/gorm"
)

// hoursPerFailure is added to the stage base for each failed checkpoint.
var hoursPerFailure = decimal.NewFromFloat(0.5)

var baseHours = map[models.Stage]decimal.Decimal{
	models.StageCutting:      decimal.NewFromInt(2),
	models.StageFabrication:  decimal.NewFromInt(4),
	models.StageCoating:      decimal.NewFromInt(6),
	models.StageAssembly:     decimal.NewFromInt(3),
	models.StageDispatch:     decimal.NewFromInt(1),
	models.StageInstallation: decimal.NewFromInt(4),
}

var baseInstructions = map[models.Stage]string{
	models.StageCutting:      "Re-cut the affected panels to drawing dimensions and verify edge quality before release.",
	models.StageFabrication:  "Rework the affected joints and hardware positions, then re-check against the fabrication drawing.",
	models.StageCoating:      "Strip or sand the defective areas and recoat under controlled conditions, then re-measure film thickness.",
	models.StageAssembly:     "Disassemble the affected units, correct alignment and fastening, and repeat the functional checks.",
	models.StageDispatch:     "Repack the consignment with correct protection and labelling, and reconcile against the packing list.",
	models.StageInstallation: "Correct the installation defects on site and repeat leveling, fixing and operation checks.",
}

// ValidTransitions maps each rework status to its valid next statuses.
var ValidTransitions = map[models.ReworkStatus][]models.ReworkStatus{
	models.ReworkPending:    {models.ReworkInProgress, models.ReworkCompleted},
	models.ReworkInProgress: {models.ReworkCompleted},
}

// FailureReasons returns one line per failed checkpoint, in checklist order.
func FailureReasons(items []models.ChecklistItem) []string {
	var reasons []string
	for _, item := range items {
		if item.Status != models.ItemFail {
			continue
		}
		actual := item.ActualValue
		if actual == "" {
			actual = "N/A"
		}
		reasons = append(reasons, fmt.Sprintf("%s: Expected %s, Got %s", item.Description, item.ExpectedValue, actual))
	}
	return reasons
}

// Instructions combines the stage's base instruction with the failure reasons.
func Instructions(stage models.Stage, reasons []string) string {
	base := baseInstructions[stage]
	if len(reasons) == 0 {
		return base
	}
	return base + "\n\nIssues to address:\n- " + strings.Join(reasons, "\n- ")
}

// EstimatedHours returns the stage base plus half an hour per failed item.
func EstimatedHours(stage models.Stage, failed int) decimal.Decimal {
	return baseHours[stage].Add(hoursPerFailure.Mul(decimal.NewFromInt(int64(failed))))
}

// Build assembles an unsaved, unnumbered card for insp. The inspection's
// checklist must be loaded.
func Build(insp *models.Inspection) *models.ReworkJobCard {
	reasons := FailureReasons(insp.ChecklistItems)
	return &models.ReworkJobCard{
		ID:                uuid.NewString(),
		InspectionID:      insp.ID,
		ProductionOrderID: insp.ProductionOrderID,
		Stage:             insp.Stage,
		FailureReasons:    reasons,
		Instructions:      Instructions(insp.Stage, reasons),
		EstimatedHours:    EstimatedHours(insp.Stage, len(reasons)),
		Status:            models.ReworkPending,
	}
}

// Create numbers and persists a card for insp using tx. A second card for the
// same inspection is rejected by the unique index on inspection_id.
func Create(ctx context.Context, tx *gorm.DB, counter sequence.Counter, insp *models.Inspection, now time.Time) (*models.ReworkJobCard, error) {
	card := Build(insp)
	number, err := sequence.Generate(ctx, counter, tx, sequence.PrefixRework, now)
	if err != nil {
		return nil, fmt.Errorf("rework: number for %s: %w", insp.ID, err)
	}
	card.ReworkNumber = number
	card.CreatedAt = now
	if err := tx.WithContext(ctx).Create(card).Error; err != nil {
		return nil, fmt.Errorf("rework: create for %s: %w", insp.ID, err)
	}
	return card, nil
}

// Get retrieves a card by id.
func Get(ctx context.Context, db *gorm.DB, id string) (*models.ReworkJobCard, error) {
	var card models.ReworkJobCard
	if err := db.WithContext(ctx).Where("id = ?", id).First(&card).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, qcerr.New(qcerr.ErrReworkNotFound, "rework: not found: %s", id)
		}
		return nil, fmt.Errorf("rework: get %s: %w", id, err)
	}
	return &card, nil
}

// ForInspection returns the card raised for an inspection.
func ForInspection(ctx context.Context, db *gorm.DB, inspectionID string) (*models.ReworkJobCard, error) {
	var card models.ReworkJobCard
	if err := db.WithContext(ctx).Where("inspection_id = ?", inspectionID).First(&card).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, qcerr.New(qcerr.ErrReworkNotFound, "rework: no card for inspection %s", inspectionID)
		}
		return nil, fmt.Errorf("rework: get for inspection %s: %w", inspectionID, err)
	}
	return &card, nil
}

// ListFilters narrows List results.
type ListFilters struct {
	ProductionOrderID string
	Status            models.ReworkStatus
	AssignedTo        string
}

// List returns cards matching filters, oldest first.
func List(ctx context.Context, db *gorm.DB, filters ListFilters) ([]models.ReworkJobCard, error) {
	q := db.WithContext(ctx).Model(&models.ReworkJobCard{})
	if filters.ProductionOrderID != "" {
		q = q.Where("production_order_id = ?", filters.ProductionOrderID)
	}
	if filters.Status != "" {
		q = q.Where("status = ?", filters.Status)
	}
	if filters.AssignedTo != "" {
		q = q.Where("assigned_to = ?", filters.AssignedTo)
	}
	var cards []models.ReworkJobCard
	if err := q.Order("created_at ASC").Find(&cards).Error; err != nil {
		return nil, fmt.Errorf("rework: list: %w", err)
	}
	return cards, nil
}

// UpdateStatus moves a card along ValidTransitions, optionally assigning it.
// Completing a card stamps CompletedAt.
func UpdateStatus(ctx context.Context, db *gorm.DB, id string, to models.ReworkStatus, assignee string, now time.Time) (*models.ReworkJobCard, error) {
	card, err := Get(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if !isValidTransition(card.Status, to) {
		return nil, qcerr.New(qcerr.ErrInvalidReworkTransition,
			"rework: invalid status transition from %q to %q; valid transitions: %v", card.Status, to, ValidTransitions[card.Status])
	}

	updates := map[string]interface{}{"status": to}
	if assignee != "" {
		updates["assigned_to"] = assignee
	}
	if to == models.ReworkCompleted {
		updates["completed_at"] = now.UTC()
	}
	result := db.WithContext(ctx).Model(&models.ReworkJobCard{}).
		Where("id = ? AND status = ?", id, card.Status).Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("rework: update %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, qcerr.New(qcerr.ErrConcurrentModification, "rework: %s changed concurrently", id)
	}
	return Get(ctx, db, id)
}

func isValidTransition(from, to models.ReworkStatus) bool {
	for _, v := range ValidTransitions[from] {
		if v == to {
			return true
		}
	}
	return false
}
