package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/qcyard/internal/checklist"
	"github.com/zulandar/qcyard/internal/inspection"
	"github.com/zulandar/qcyard/internal/models"
	"github.com/zulandar/qcyard/internal/rework"
)

type createInspectionRequest struct {
	ProductionOrderID    string           `json:"productionOrderId" binding:"required"`
	Stage                string           `json:"stage" binding:"required"`
	InspectorID          string           `json:"inspectorId"`
	CustomerRequirements []string         `json:"customerRequirements"`
	ChecklistItems       []checklist.Item `json:"checklistItems"`
}

func (s *server) handleCreateInspection(c *gin.Context) {
	var req createInspectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	insp, err := s.inspections.Create(c.Request.Context(), inspection.CreateOpts{
		ProductionOrderID:    req.ProductionOrderID,
		Stage:                models.Stage(req.Stage),
		InspectorID:          req.InspectorID,
		CustomerRequirements: req.CustomerRequirements,
		ChecklistItems:       req.ChecklistItems,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toInspectionJSON(insp))
}

func (s *server) handleGetInspection(c *gin.Context) {
	insp, err := s.inspections.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toInspectionJSON(insp))
}

func (s *server) handleListInspections(c *gin.Context) {
	filters := inspection.ListFilters{
		ProductionOrderID: c.Query("order"),
		Stage:             models.Stage(c.Query("stage")),
		Status:            models.InspectionStatus(c.Query("status")),
		InspectorID:       c.Query("inspector"),
		BranchID:          c.Query("branch"),
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			badRequest(c, errInvalidParam("limit", v))
			return
		}
		filters.Limit = n
	}
	list, err := s.inspections.List(c.Request.Context(), filters)
	if err != nil {
		s.fail(c, err)
		return
	}
	out := make([]inspectionJSON, len(list))
	for i := range list {
		out[i] = toInspectionJSON(&list[i])
	}
	c.JSON(http.StatusOK, out)
}

type resultRequest struct {
	CheckpointID string   `json:"checkpointId" binding:"required"`
	ActualValue  string   `json:"actualValue"`
	Status       string   `json:"status" binding:"required"`
	Photos       []string `json:"photos"`
	Comments     string   `json:"comments"`
}

type recordResultsRequest struct {
	ChecklistResults []resultRequest `json:"checklistResults" binding:"required,dive"`
	Photos           []string        `json:"photos"`
	Remarks          *string         `json:"remarks"`
}

func (s *server) handleRecordResults(c *gin.Context) {
	var req recordResultsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	opts := inspection.RecordOpts{Photos: req.Photos, Remarks: req.Remarks}
	for _, r := range req.ChecklistResults {
		opts.Results = append(opts.Results, inspection.Result{
			CheckpointID: r.CheckpointID,
			ActualValue:  r.ActualValue,
			Status:       models.ItemStatus(r.Status),
			Photos:       r.Photos,
			Comments:     r.Comments,
		})
	}
	insp, err := s.inspections.RecordResults(c.Request.Context(), c.Param("id"), opts)
	if err != nil {
		s.fail(c, err)
		return
	}
	resp := gin.H{"inspection": toInspectionJSON(insp)}
	if insp.ReworkJobCardID != nil {
		if card, err := rework.Get(c.Request.Context(), s.db, *insp.ReworkJobCardID); err == nil {
			resp["reworkJobCard"] = toReworkJSON(card)
		}
	}
	c.JSON(http.StatusOK, resp)
}

type assignRequest struct {
	InspectorID string `json:"inspectorId" binding:"required"`
}

func (s *server) handleAssignInspector(c *gin.Context) {
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	insp, err := s.inspections.AssignInspector(c.Request.Context(), c.Param("id"), req.InspectorID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toInspectionJSON(insp))
}

type stageCompletedRequest struct {
	Stage string `json:"stage" binding:"required"`
}

func (s *server) handleStageCompleted(c *gin.Context) {
	var req stageCompletedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	insp, err := s.inspections.OnStageCompleted(c.Request.Context(), c.Param("id"), models.Stage(req.Stage))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toInspectionJSON(insp))
}

type deliveryDocumentsRequest struct {
	DocumentIDs []string `json:"documentIds" binding:"required,min=1"`
}

func (s *server) handleDeliveryDocuments(c *gin.Context) {
	var req deliveryDocumentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	n, err := s.inspections.LinkDeliveryDocuments(c.Request.Context(), c.Param("id"), req.DocumentIDs)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"linked": n})
}
