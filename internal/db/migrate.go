package db

import (
	"fmt"

	"github.com/zulandar/qcyard/internal/config"
	"github.com/zulandar/qcyard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns every GORM model the QC engine persists.
func AllModels() []interface{} {
	return []interface{}{
		&models.ProductionOrder{},
		&models.Employee{},
		&models.CustomerRequirement{},
		&models.Inspection{},
		&models.ChecklistItem{},
		&models.ReworkJobCard{},
		&models.Certificate{},
		&models.Sequence{},
		&models.InspectorLock{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// DropAll drops every QC table. Used by `qc db reset`.
func DropAll(db *gorm.DB) error {
	if err := db.Migrator().DropTable(AllModels()...); err != nil {
		return fmt.Errorf("db: drop tables: %w", err)
	}
	return nil
}

// SeedDirectory upserts inspectors, production orders and customer
// requirements from configuration.
func SeedDirectory(db *gorm.DB, seed config.SeedConfig) error {
	for _, in := range seed.Inspectors {
		emp := models.Employee{ID: in.ID, Name: in.Name, Active: true}
		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "active"}),
		}).Create(&emp)
		if result.Error != nil {
			return fmt.Errorf("db: seed inspector %q: %w", in.ID, result.Error)
		}
	}

	for _, o := range seed.Orders {
		order := models.ProductionOrder{
			ID:           o.ID,
			OrderNumber:  o.OrderNumber,
			Quantity:     o.Quantity,
			CustomerName: o.CustomerName,
			BranchID:     o.BranchID,
			Status:       models.OrderInProduction,
		}
		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"order_number", "quantity", "customer_name", "branch_id"}),
		}).Create(&order)
		if result.Error != nil {
			return fmt.Errorf("db: seed order %q: %w", o.ID, result.Error)
		}
	}

	for customer, reqs := range seed.Customers {
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("customer_name = ?", customer).Delete(&models.CustomerRequirement{}).Error; err != nil {
				return err
			}
			for i, r := range reqs {
				row := models.CustomerRequirement{CustomerName: customer, Position: i, Requirement: r}
				if err := tx.Create(&row).Error; err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("db: seed requirements for %q: %w", customer, err)
		}
	}
	return nil
}
