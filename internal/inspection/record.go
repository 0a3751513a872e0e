package inspection

import (
	"context"
	"errors"
	"fmt"

	"github.com/zulandar/qcyard/internal/models"
	"github.com/zulandar/qcyard/internal/qcerr"
	"github.com/zulandar/qcyard/internal/rework"
	"github.com/zulandar/qcyard/internal/scoring"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Result is the outcome of one checkpoint.
type Result struct {
	CheckpointID string
	ActualValue  string
	Status       models.ItemStatus
	Photos       []string
	Comments     string
}

// RecordOpts holds the results submitted for an inspection.
type RecordOpts struct {
	Results []Result
	// Photos are appended to the inspection's photos.
	Photos []string
	// Remarks, when non-nil, replaces the inspection remarks.
	Remarks *string
}

// RecordResults applies checkpoint results and, once no checkpoint is left
// PENDING, scores the inspection. FAILED and REWORK_REQUIRED outcomes raise a
// rework card in the same transaction.
func (s *Service) RecordResults(ctx context.Context, id string, opts RecordOpts) (*models.Inspection, error) {
	if err := validateResults(opts.Results); err != nil {
		return nil, err
	}

	var (
		insp     models.Inspection
		outcome  scoring.Result
		complete bool
		card     *models.ReworkJobCard
	)
	now := s.clock.Now().UTC()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&insp).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return qcerr.New(qcerr.ErrInspectionNotFound, "inspection: not found: %s", id)
		}
		if err != nil {
			return fmt.Errorf("inspection: lock %s: %w", id, err)
		}
		if insp.Terminal() {
			return qcerr.New(qcerr.ErrInspectionAlreadyDone,
				"inspection: %s already recorded as %s", insp.InspectionNumber, insp.Status)
		}

		var items []models.ChecklistItem
		if err := tx.Where("inspection_id = ?", id).Order("position ASC").Find(&items).Error; err != nil {
			return fmt.Errorf("inspection: load checklist %s: %w", id, err)
		}
		index := make(map[string]int, len(items))
		for i, it := range items {
			index[it.CheckpointID] = i
		}
		for _, r := range opts.Results {
			if _, ok := index[r.CheckpointID]; !ok {
				return qcerr.New(qcerr.ErrInvalidChecklist,
					"inspection: %s has no checkpoint %q", insp.InspectionNumber, r.CheckpointID)
			}
		}

		for _, r := range opts.Results {
			item := &items[index[r.CheckpointID]]
			item.ActualValue = r.ActualValue
			item.Status = r.Status
			if r.Photos != nil {
				item.Photos = r.Photos
			}
			item.Comments = r.Comments
			if err := tx.Model(&models.ChecklistItem{}).Where("id = ?", item.ID).Updates(map[string]interface{}{
				"actual_value": item.ActualValue,
				"status":       item.Status,
				"photos":       item.Photos,
				"comments":     item.Comments,
			}).Error; err != nil {
				return fmt.Errorf("inspection: update checkpoint %s: %w", r.CheckpointID, err)
			}
		}
		insp.ChecklistItems = items

		photos := append([]string{}, insp.Photos...)
		photos = append(photos, opts.Photos...)
		updates := map[string]interface{}{
			"photos":  datatypes.JSONSlice[string](photos),
			"version": insp.Version + 1,
		}
		if opts.Remarks != nil {
			updates["remarks"] = *opts.Remarks
		}

		outcome, complete = scoring.Evaluate(items)
		if complete {
			updates["overall_score"] = outcome.Score
			updates["status"] = outcome.Status
			updates["inspection_date"] = now
		}

		result := tx.Model(&models.Inspection{}).
			Where("id = ? AND version = ?", id, insp.Version).Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("inspection: update %s: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return qcerr.New(qcerr.ErrConcurrentModification,
				"inspection: %s modified concurrently", insp.InspectionNumber)
		}

		if complete && needsRework(outcome.Status) {
			insp.Status = outcome.Status
			card, err = rework.Create(ctx, tx, s.counter, &insp, now)
			if err != nil {
				return err
			}
			if err := tx.Model(&models.Inspection{}).Where("id = ?", id).
				Update("rework_job_card_id", card.ID).Error; err != nil {
				return fmt.Errorf("inspection: link rework %s: %w", card.ReworkNumber, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if complete {
		s.afterRecorded(ctx, &insp, outcome, card)
	}
	return s.Get(ctx, id)
}

// afterRecorded syncs the production order and records telemetry. Order
// status failures are logged, not returned: the inspection is already final.
func (s *Service) afterRecorded(ctx context.Context, insp *models.Inspection, outcome scoring.Result, card *models.ReworkJobCard) {
	status := models.OrderQCPassed
	if needsRework(outcome.Status) {
		status = models.OrderReworkRequired
	}
	if err := s.orders.SetStatus(ctx, insp.ProductionOrderID, status); err != nil {
		s.log.Warn("production order status sync failed",
			zap.String("order", insp.ProductionOrderID),
			zap.String("status", status),
			zap.Error(err))
	}

	s.metrics.InspectionRecorded(string(insp.Stage), string(outcome.Status), outcome.Score)
	fields := []zap.Field{
		zap.String("inspection", insp.InspectionNumber),
		zap.String("stage", string(insp.Stage)),
		zap.Int("score", outcome.Score),
		zap.String("status", string(outcome.Status)),
		zap.Int("failed", outcome.Tally.Failed),
	}
	if card != nil {
		s.metrics.ReworkRaised(string(insp.Stage))
		fields = append(fields, zap.String("rework", card.ReworkNumber))
	}
	s.log.Info("inspection recorded", fields...)
}

func needsRework(status models.InspectionStatus) bool {
	return status == models.InspectionFailed || status == models.InspectionReworkRequired
}

func validateResults(results []Result) error {
	seen := make(map[string]bool, len(results))
	for i, r := range results {
		if r.CheckpointID == "" {
			return qcerr.New(qcerr.ErrInvalidChecklist, "inspection: result %d: checkpoint id is required", i)
		}
		if seen[r.CheckpointID] {
			return qcerr.New(qcerr.ErrInvalidChecklist, "inspection: duplicate result for checkpoint %q", r.CheckpointID)
		}
		seen[r.CheckpointID] = true
		if !r.Status.Valid() {
			return qcerr.New(qcerr.ErrInvalidChecklist, "inspection: checkpoint %q: invalid status %q", r.CheckpointID, r.Status)
		}
	}
	return nil
}
