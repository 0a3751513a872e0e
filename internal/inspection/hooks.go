package inspection

import (
	"context"
	"fmt"

	"github.com/zulandar/qcyard/internal/models"
	"github.com/zulandar/qcyard/internal/qcerr"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// OnStageCompleted is called when production finishes a stage. It opens an
// unassigned inspection with the stage's default checklist.
func (s *Service) OnStageCompleted(ctx context.Context, productionOrderID string, stage models.Stage) (*models.Inspection, error) {
	insp, err := s.Create(ctx, CreateOpts{ProductionOrderID: productionOrderID, Stage: stage})
	if err != nil {
		return nil, err
	}
	s.log.Debug("inspection opened on stage completion",
		zap.String("order", productionOrderID), zap.String("stage", string(stage)))
	return insp, nil
}

// LinkDeliveryDocuments attaches document ids to every PASSED inspection of
// an order, skipping ids already present. It returns the number of
// inspections touched.
func (s *Service) LinkDeliveryDocuments(ctx context.Context, productionOrderID string, documentIDs []string) (int, error) {
	if productionOrderID == "" {
		return 0, qcerr.New(qcerr.ErrMissingField, "inspection: production order id is required")
	}
	if len(documentIDs) == 0 {
		return 0, nil
	}

	touched := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var passed []models.Inspection
		if err := tx.Where("production_order_id = ? AND status = ?", productionOrderID, models.InspectionPassed).
			Order("created_at ASC").Find(&passed).Error; err != nil {
			return err
		}
		for _, insp := range passed {
			docs, added := appendUnique(insp.DeliveryDocuments, documentIDs)
			if !added {
				continue
			}
			if err := tx.Model(&models.Inspection{}).Where("id = ?", insp.ID).
				Update("delivery_documents", datatypes.JSONSlice[string](docs)).Error; err != nil {
				return err
			}
			touched++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("inspection: link delivery documents for %s: %w", productionOrderID, err)
	}
	return touched, nil
}

// appendUnique appends ids not already in existing, preserving order.
func appendUnique(existing, ids []string) ([]string, bool) {
	seen := make(map[string]bool, len(existing)+len(ids))
	out := make([]string, 0, len(existing)+len(ids))
	for _, id := range existing {
		seen[id] = true
		out = append(out, id)
	}
	added := false
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
		added = true
	}
	return out, added
}
