package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/qcyard/internal/models"
	"github.com/zulandar/qcyard/internal/rework"
)

func (s *server) handleListRework(c *gin.Context) {
	cards, err := rework.List(c.Request.Context(), s.db, rework.ListFilters{
		ProductionOrderID: c.Query("order"),
		Status:            models.ReworkStatus(c.Query("status")),
		AssignedTo:        c.Query("assignee"),
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	out := make([]reworkJSON, len(cards))
	for i := range cards {
		out[i] = toReworkJSON(&cards[i])
	}
	c.JSON(http.StatusOK, out)
}

func (s *server) handleGetRework(c *gin.Context) {
	card, err := rework.Get(c.Request.Context(), s.db, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toReworkJSON(card))
}

type reworkStatusRequest struct {
	Status   string `json:"status" binding:"required"`
	Assignee string `json:"assignee"`
}

func (s *server) handleReworkStatus(c *gin.Context) {
	var req reworkStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	card, err := rework.UpdateStatus(c.Request.Context(), s.db, c.Param("id"),
		models.ReworkStatus(req.Status), req.Assignee, s.clock.Now())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toReworkJSON(card))
}
