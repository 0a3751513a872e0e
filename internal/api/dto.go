package api

import (
	"time"

	"github.com/zulandar/qcyard/internal/models"
)

type checklistItemJSON struct {
	CheckpointID  string   `json:"checkpointId"`
	Description   string   `json:"description"`
	ExpectedValue string   `json:"expectedValue"`
	ActualValue   string   `json:"actualValue,omitempty"`
	Status        string   `json:"status"`
	Photos        []string `json:"photos"`
	Comments      string   `json:"comments,omitempty"`
}

type inspectionJSON struct {
	ID                   string              `json:"id"`
	InspectionNumber     string              `json:"inspectionNumber"`
	ProductionOrderID    string              `json:"productionOrderId"`
	BranchID             string              `json:"branchId,omitempty"`
	Stage                string              `json:"stage"`
	InspectorID          *string             `json:"inspectorId"`
	InspectionDate       *time.Time          `json:"inspectionDate"`
	OverallScore         *int                `json:"overallScore"`
	Status               string              `json:"status"`
	CustomerRequirements []string            `json:"customerRequirements"`
	Photos               []string            `json:"photos"`
	DeliveryDocuments    []string            `json:"deliveryDocuments"`
	Remarks              string              `json:"remarks,omitempty"`
	ReworkJobCardID      *string             `json:"reworkJobCardId"`
	Version              int                 `json:"version"`
	CreatedAt            time.Time           `json:"createdAt"`
	UpdatedAt            time.Time           `json:"updatedAt"`
	ChecklistItems       []checklistItemJSON `json:"checklistItems,omitempty"`
}

func toInspectionJSON(insp *models.Inspection) inspectionJSON {
	out := inspectionJSON{
		ID:                   insp.ID,
		InspectionNumber:     insp.InspectionNumber,
		ProductionOrderID:    insp.ProductionOrderID,
		BranchID:             insp.BranchID,
		Stage:                string(insp.Stage),
		InspectorID:          insp.InspectorID,
		InspectionDate:       insp.InspectionDate,
		OverallScore:         insp.OverallScore,
		Status:               string(insp.Status),
		CustomerRequirements: orEmpty(insp.CustomerRequirements),
		Photos:               orEmpty(insp.Photos),
		DeliveryDocuments:    orEmpty(insp.DeliveryDocuments),
		Remarks:              insp.Remarks,
		ReworkJobCardID:      insp.ReworkJobCardID,
		Version:              insp.Version,
		CreatedAt:            insp.CreatedAt,
		UpdatedAt:            insp.UpdatedAt,
	}
	for _, it := range insp.ChecklistItems {
		out.ChecklistItems = append(out.ChecklistItems, checklistItemJSON{
			CheckpointID:  it.CheckpointID,
			Description:   it.Description,
			ExpectedValue: it.ExpectedValue,
			ActualValue:   it.ActualValue,
			Status:        string(it.Status),
			Photos:        orEmpty(it.Photos),
			Comments:      it.Comments,
		})
	}
	return out
}

type reworkJSON struct {
	ID                string     `json:"id"`
	ReworkNumber      string     `json:"reworkNumber"`
	InspectionID      string     `json:"inspectionId"`
	ProductionOrderID string     `json:"productionOrderId"`
	Stage             string     `json:"stage"`
	FailureReasons    []string   `json:"failureReasons"`
	Instructions      string     `json:"instructions"`
	AssignedTo        *string    `json:"assignedTo"`
	EstimatedHours    string     `json:"estimatedHours"`
	Status            string     `json:"status"`
	CreatedAt         time.Time  `json:"createdAt"`
	CompletedAt       *time.Time `json:"completedAt"`
}

func toReworkJSON(card *models.ReworkJobCard) reworkJSON {
	return reworkJSON{
		ID:                card.ID,
		ReworkNumber:      card.ReworkNumber,
		InspectionID:      card.InspectionID,
		ProductionOrderID: card.ProductionOrderID,
		Stage:             string(card.Stage),
		FailureReasons:    orEmpty(card.FailureReasons),
		Instructions:      card.Instructions,
		AssignedTo:        card.AssignedTo,
		EstimatedHours:    card.EstimatedHours.StringFixed(1),
		Status:            string(card.Status),
		CreatedAt:         card.CreatedAt,
		CompletedAt:       card.CompletedAt,
	}
}

type certificateJSON struct {
	ID                       string                    `json:"id"`
	CertificateNumber        string                    `json:"certificateNumber"`
	ProductionOrderID        string                    `json:"productionOrderId"`
	InspectionIDs            []string                  `json:"inspectionIds"`
	Type                     string                    `json:"certificateType"`
	IssuedDate               time.Time                 `json:"issuedDate"`
	ValidUntil               time.Time                 `json:"validUntil"`
	IssuedBy                 string                    `json:"issuedBy"`
	ApprovedBy               *string                   `json:"approvedBy"`
	CustomerApprovalRequired bool                      `json:"customerApprovalRequired"`
	CustomerApprovalStatus   string                    `json:"customerApprovalStatus"`
	Status                   string                    `json:"status"`
	Data                     models.CertificatePayload `json:"certificateData"`
	SubmissionNotes          string                    `json:"submissionNotes,omitempty"`
	ApprovalComments         string                    `json:"approvalComments,omitempty"`
	SubmittedAt              *time.Time                `json:"submittedAt"`
	ResolvedAt               *time.Time                `json:"resolvedAt"`
}

func toCertificateJSON(cert *models.Certificate, now time.Time) certificateJSON {
	return certificateJSON{
		ID:                       cert.ID,
		CertificateNumber:        cert.CertificateNumber,
		ProductionOrderID:        cert.ProductionOrderID,
		InspectionIDs:            orEmpty(cert.InspectionIDs),
		Type:                     string(cert.Type),
		IssuedDate:               cert.IssuedDate,
		ValidUntil:               cert.ValidUntil,
		IssuedBy:                 cert.IssuedBy,
		ApprovedBy:               cert.ApprovedBy,
		CustomerApprovalRequired: cert.CustomerApprovalRequired,
		CustomerApprovalStatus:   string(cert.CustomerApprovalStatus()),
		Status:                   string(cert.Status(now)),
		Data:                     cert.Payload.Data(),
		SubmissionNotes:          cert.SubmissionNotes,
		ApprovalComments:         cert.ApprovalComments,
		SubmittedAt:              cert.SubmittedAt,
		ResolvedAt:               cert.ResolvedAt,
	}
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
