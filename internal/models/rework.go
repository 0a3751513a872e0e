package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ReworkStatus tracks a rework job card through production scheduling.
type ReworkStatus string

const (
	ReworkPending    ReworkStatus = "PENDING"
	ReworkInProgress ReworkStatus = "IN_PROGRESS"
	ReworkCompleted  ReworkStatus = "COMPLETED"
)

// ReworkJobCard is the corrective-action record raised for a failing inspection.
// Exactly one card exists per inspection.
type ReworkJobCard struct {
	ID                string `gorm:"primaryKey;size:36"`
	ReworkNumber      string `gorm:"size:32;uniqueIndex;not null"`
	InspectionID      string `gorm:"size:36;not null;uniqueIndex"`
	ProductionOrderID string `gorm:"size:64;not null;index"`
	Stage             Stage  `gorm:"size:16;not null"`
	FailureReasons    datatypes.JSONSlice[string]
	Instructions      string          `gorm:"type:text"`
	AssignedTo        *string         `gorm:"size:64"`
	EstimatedHours    decimal.Decimal `gorm:"type:decimal(6,2);not null"`
	Status            ReworkStatus    `gorm:"size:16;default:PENDING;index"`
	CreatedAt         time.Time
	CompletedAt       *time.Time
}
