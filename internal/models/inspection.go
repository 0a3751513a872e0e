package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Stage is a production stage that is gated by a QC inspection.
type Stage string

const (
	StageCutting      Stage = "CUTTING"
	StageFabrication  Stage = "FABRICATION"
	StageCoating      Stage = "COATING"
	StageAssembly     Stage = "ASSEMBLY"
	StageDispatch     Stage = "DISPATCH"
	StageInstallation Stage = "INSTALLATION"
)

// Stages lists every production stage in pipeline order.
var Stages = []Stage{
	StageCutting,
	StageFabrication,
	StageCoating,
	StageAssembly,
	StageDispatch,
	StageInstallation,
}

// Valid reports whether s is a known production stage.
func (s Stage) Valid() bool {
	for _, v := range Stages {
		if v == s {
			return true
		}
	}
	return false
}

// InspectionStatus is the outcome of an inspection.
type InspectionStatus string

const (
	InspectionPending        InspectionStatus = "PENDING"
	InspectionPassed         InspectionStatus = "PASSED"
	InspectionFailed         InspectionStatus = "FAILED"
	InspectionReworkRequired InspectionStatus = "REWORK_REQUIRED"
)

// ItemStatus is the result of a single checkpoint.
type ItemStatus string

const (
	ItemPending ItemStatus = "PENDING"
	ItemPass    ItemStatus = "PASS"
	ItemFail    ItemStatus = "FAIL"
	ItemNA      ItemStatus = "NA"
)

// Valid reports whether s is a known checkpoint status.
func (s ItemStatus) Valid() bool {
	switch s {
	case ItemPending, ItemPass, ItemFail, ItemNA:
		return true
	}
	return false
}

// Inspection is one QC pass at one production stage of a production order.
type Inspection struct {
	ID                   string     `gorm:"primaryKey;size:36"`
	InspectionNumber     string     `gorm:"size:32;uniqueIndex;not null"`
	ProductionOrderID    string     `gorm:"size:64;not null;index"`
	BranchID             string     `gorm:"size:64;index"`
	Stage                Stage      `gorm:"size:16;not null;index"`
	InspectorID          *string    `gorm:"size:64;index"`
	InspectionDate       *time.Time `gorm:"index"`
	OverallScore         *int
	Status               InspectionStatus `gorm:"size:16;default:PENDING;index"`
	CustomerRequirements datatypes.JSONSlice[string]
	Photos               datatypes.JSONSlice[string]
	DeliveryDocuments    datatypes.JSONSlice[string]
	Remarks              string    `gorm:"type:text"`
	ReworkJobCardID      *string   `gorm:"size:36"`
	Version              int       `gorm:"not null;default:1"`
	CreatedAt            time.Time `gorm:"index"`
	UpdatedAt            time.Time

	ChecklistItems []ChecklistItem `gorm:"foreignKey:InspectionID"`
}

// BeforeSave stores timestamps in UTC. SQLite keeps times as text, so
// range filters only order correctly when every row shares one offset.
func (i *Inspection) BeforeSave(*gorm.DB) error {
	if !i.CreatedAt.IsZero() {
		i.CreatedAt = i.CreatedAt.UTC()
	}
	if !i.UpdatedAt.IsZero() {
		i.UpdatedAt = i.UpdatedAt.UTC()
	}
	if i.InspectionDate != nil {
		at := i.InspectionDate.UTC()
		i.InspectionDate = &at
	}
	return nil
}

// Terminal reports whether the inspection has left PENDING.
func (i *Inspection) Terminal() bool {
	return i.Status != InspectionPending
}

// ChecklistItem is one checkpoint within an inspection.
type ChecklistItem struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	InspectionID  string `gorm:"size:36;not null;index:idx_item_checkpoint"`
	CheckpointID  string `gorm:"size:32;not null;index:idx_item_checkpoint"`
	Position      int
	Description   string     `gorm:"type:text"`
	ExpectedValue string     `gorm:"type:text"`
	ActualValue   string     `gorm:"type:text"`
	Status        ItemStatus `gorm:"size:8;default:PENDING"`
	Photos        datatypes.JSONSlice[string]
	Comments      string `gorm:"type:text"`
}
