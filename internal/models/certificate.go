package models

import (
	"time"

	"gorm.io/datatypes"
)

// CertificateType classifies the attestation a certificate makes.
type CertificateType string

const (
	CertificateQuality    CertificateType = "QUALITY"
	CertificateCompliance CertificateType = "COMPLIANCE"
	CertificateTest       CertificateType = "TEST"
)

// Valid reports whether t is a known certificate type.
func (t CertificateType) Valid() bool {
	switch t {
	case CertificateQuality, CertificateCompliance, CertificateTest:
		return true
	}
	return false
}

// CertificateState is the single persisted lifecycle state of a certificate.
// Expiry is not stored; it is derived from ValidUntil.
type CertificateState string

const (
	CertificateDraft            CertificateState = "DRAFT"
	CertificateAwaitingApproval CertificateState = "AWAITING_APPROVAL"
	CertificateApproved         CertificateState = "APPROVED"
	CertificateRejected         CertificateState = "REJECTED"
)

// CertificateStatus is the externally reported certificate status.
type CertificateStatus string

const (
	StatusDraft    CertificateStatus = "DRAFT"
	StatusIssued   CertificateStatus = "ISSUED"
	StatusApproved CertificateStatus = "APPROVED"
	StatusRejected CertificateStatus = "REJECTED"
	StatusExpired  CertificateStatus = "EXPIRED"
)

// ApprovalStatus is the customer-approval view of a certificate.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

// Certificate attests the quality of a production order based on its passed inspections.
type Certificate struct {
	ID                       string `gorm:"primaryKey;size:36"`
	CertificateNumber        string `gorm:"size:32;uniqueIndex;not null"`
	ProductionOrderID        string `gorm:"size:64;not null;index"`
	InspectionIDs            datatypes.JSONSlice[string]
	Type                     CertificateType `gorm:"size:16;not null"`
	IssuedDate               time.Time
	ValidUntil               time.Time
	IssuedBy                 string           `gorm:"size:64;not null"`
	ApprovedBy               *string          `gorm:"size:64"`
	CustomerApprovalRequired bool             `gorm:"default:false"`
	State                    CertificateState `gorm:"size:24;not null;index"`
	Payload                  datatypes.JSONType[CertificatePayload]
	SubmissionNotes          string `gorm:"type:text"`
	SubmittedAt              *time.Time
	ApprovalComments         string `gorm:"type:text"`
	ResolvedAt               *time.Time
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

// Status projects the lifecycle state onto the reported certificate status.
// An approved certificate whose validity has elapsed at now reports EXPIRED.
func (c *Certificate) Status(now time.Time) CertificateStatus {
	switch c.State {
	case CertificateDraft:
		return StatusDraft
	case CertificateAwaitingApproval:
		return StatusIssued
	case CertificateApproved:
		if !c.ValidUntil.IsZero() && now.After(c.ValidUntil) {
			return StatusExpired
		}
		return StatusApproved
	case CertificateRejected:
		return StatusRejected
	}
	return CertificateStatus(c.State)
}

// CustomerApprovalStatus projects the lifecycle state onto the customer-approval view.
func (c *Certificate) CustomerApprovalStatus() ApprovalStatus {
	switch c.State {
	case CertificateApproved:
		return ApprovalApproved
	case CertificateRejected:
		return ApprovalRejected
	}
	return ApprovalPending
}

// CertificatePayload is the structured body embedded in a certificate.
type CertificatePayload struct {
	ProductDetails       ProductDetails      `json:"productDetails"`
	QualityResults       QualityResults      `json:"qualityResults"`
	InspectionSummary    []InspectionSummary `json:"inspectionSummary"`
	ComplianceInfo       ComplianceInfo      `json:"complianceInfo"`
	CustomerRequirements []string            `json:"customerRequirements"`
}

// ProductDetails describes the certified production order.
type ProductDetails struct {
	OrderNumber  string `json:"orderNumber"`
	Quantity     int    `json:"quantity"`
	CustomerName string `json:"customerName"`
}

// QualityResults summarizes the contributing inspections.
type QualityResults struct {
	AverageScore     float64  `json:"averageScore"`
	TotalInspections int      `json:"totalInspections"`
	PassedStages     []Stage  `json:"passedStages"`
	Inspectors       []string `json:"inspectors"`
}

// InspectionSummary is one contributing inspection.
type InspectionSummary struct {
	InspectionID     string     `json:"inspectionId"`
	InspectionNumber string     `json:"inspectionNumber"`
	Stage            Stage      `json:"stage"`
	Score            int        `json:"score"`
	InspectorID      string     `json:"inspectorId,omitempty"`
	InspectedAt      *time.Time `json:"inspectedAt,omitempty"`
}

// ComplianceInfo lists the compliance statements a certificate carries.
type ComplianceInfo struct {
	Standards  []string `json:"standards"`
	Statements []string `json:"statements"`
}
