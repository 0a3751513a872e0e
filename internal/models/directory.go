package models

import "time"

// ProductionOrder is the subset of a production order the QC engine reads.
// The owning system may keep far more; only these columns are consulted.
type ProductionOrder struct {
	ID           string `gorm:"primaryKey;size:64"`
	OrderNumber  string `gorm:"size:64;uniqueIndex;not null"`
	Quantity     int
	CustomerName string `gorm:"size:128;index"`
	BranchID     string `gorm:"size:64;index"`
	Status       string `gorm:"size:32;index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Employee is an inspector (or any staff member) referenced by id.
type Employee struct {
	ID        string `gorm:"primaryKey;size:64"`
	Name      string `gorm:"size:128;not null"`
	Active    bool   `gorm:"default:true"`
	CreatedAt time.Time
}

// CustomerRequirement is one standing requirement registered for a customer.
type CustomerRequirement struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	CustomerName string `gorm:"size:128;not null;index"`
	Position     int
	Requirement  string `gorm:"type:text;not null"`
}

// Production order statuses written by the QC engine.
const (
	OrderInProduction     = "IN_PRODUCTION"
	OrderQCPassed         = "QC_PASSED"
	OrderReworkRequired   = "REWORK_REQUIRED"
	OrderReadyForDelivery = "READY_FOR_DELIVERY"
)
