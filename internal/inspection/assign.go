package inspection

import (
	"context"
	"errors"
	"fmt"

	"github.com/zulandar/qcyard/internal/models"
	"github.com/zulandar/qcyard/internal/qcerr"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AssignInspector hands a PENDING inspection to an inspector, refusing when
// the inspector already holds the maximum number of PENDING inspections.
// Re-assigning the current inspector is a no-op.
func (s *Service) AssignInspector(ctx context.Context, id, inspectorID string) (*models.Inspection, error) {
	if inspectorID == "" {
		return nil, qcerr.New(qcerr.ErrMissingField, "inspection: inspector id is required")
	}
	if err := s.requireInspector(ctx, inspectorID); err != nil {
		return nil, err
	}

	changed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var insp models.Inspection
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&insp).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return qcerr.New(qcerr.ErrInspectionNotFound, "inspection: not found: %s", id)
		}
		if err != nil {
			return fmt.Errorf("inspection: lock %s: %w", id, err)
		}
		if insp.InspectorID != nil && *insp.InspectorID == inspectorID {
			return nil
		}
		if insp.Terminal() {
			return qcerr.New(qcerr.ErrInspectionAlreadyDone,
				"inspection: %s already recorded as %s", insp.InspectionNumber, insp.Status)
		}
		if err := s.reserveInspector(tx, inspectorID); err != nil {
			return err
		}

		result := tx.Model(&models.Inspection{}).
			Where("id = ? AND version = ?", id, insp.Version).
			Updates(map[string]interface{}{
				"inspector_id": inspectorID,
				"version":      insp.Version + 1,
			})
		if result.Error != nil {
			return fmt.Errorf("inspection: assign %s: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return qcerr.New(qcerr.ErrConcurrentModification,
				"inspection: %s modified concurrently", insp.InspectionNumber)
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.log.Info("inspector assigned", zap.String("inspection", id), zap.String("inspector", inspectorID))
	}
	return s.Get(ctx, id)
}

// reserveInspector locks the inspector's lock row and checks their PENDING
// load against the ceiling. It must run inside the transaction that writes
// the assignment.
func (s *Service) reserveInspector(tx *gorm.DB, inspectorID string) error {
	lock := models.InspectorLock{InspectorID: inspectorID}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&lock).Error; err != nil {
		return fmt.Errorf("inspection: create inspector lock %s: %w", inspectorID, err)
	}
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("inspector_id = ?", inspectorID).First(&lock).Error; err != nil {
		return fmt.Errorf("inspection: lock inspector %s: %w", inspectorID, err)
	}

	var pending int64
	if err := tx.Model(&models.Inspection{}).
		Where("inspector_id = ? AND status = ?", inspectorID, models.InspectionPending).
		Count(&pending).Error; err != nil {
		return fmt.Errorf("inspection: count pending for %s: %w", inspectorID, err)
	}
	if pending >= int64(s.maxPending) {
		return qcerr.New(qcerr.ErrInspectorOverloaded,
			"inspection: inspector %s already has %d pending inspections (max %d)", inspectorID, pending, s.maxPending)
	}
	return nil
}
