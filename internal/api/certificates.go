package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/qcyard/internal/certificate"
	"github.com/zulandar/qcyard/internal/models"
)

type issueRequest struct {
	ProductionOrderID        string `json:"productionOrderId" binding:"required"`
	CertificateType          string `json:"certificateType" binding:"required"`
	IssuedBy                 string `json:"issuedBy" binding:"required"`
	CustomerApprovalRequired bool   `json:"customerApprovalRequired"`
}

func (s *server) handleIssueCertificate(c *gin.Context) {
	var req issueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cert, err := s.certificates.Issue(c.Request.Context(), certificate.IssueOpts{
		ProductionOrderID:        req.ProductionOrderID,
		Type:                     models.CertificateType(req.CertificateType),
		IssuedBy:                 req.IssuedBy,
		CustomerApprovalRequired: req.CustomerApprovalRequired,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toCertificateJSON(cert, s.clock.Now()))
}

func (s *server) handleGetCertificate(c *gin.Context) {
	cert, err := s.certificates.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toCertificateJSON(cert, s.clock.Now()))
}

func (s *server) handleListCertificates(c *gin.Context) {
	order := c.Query("order")
	if order == "" {
		badRequest(c, errInvalidParam("order", ""))
		return
	}
	certs, err := s.certificates.ListByOrder(c.Request.Context(), order)
	if err != nil {
		s.fail(c, err)
		return
	}
	now := s.clock.Now()
	out := make([]certificateJSON, len(certs))
	for i := range certs {
		out[i] = toCertificateJSON(&certs[i], now)
	}
	c.JSON(http.StatusOK, out)
}

type submitRequest struct {
	Notes string `json:"notes"`
}

func (s *server) handleSubmitCertificate(c *gin.Context) {
	var req submitRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	cert, err := s.certificates.SubmitForApproval(c.Request.Context(), c.Param("id"), req.Notes)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toCertificateJSON(cert, s.clock.Now()))
}

type approvalRequest struct {
	Approved   *bool  `json:"approved" binding:"required"`
	ApprovedBy string `json:"approvedBy" binding:"required"`
	Comments   string `json:"comments"`
}

func (s *server) handleCertificateApproval(c *gin.Context) {
	var req approvalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cert, err := s.certificates.ProcessCustomerApproval(c.Request.Context(), c.Param("id"), *req.Approved, req.ApprovedBy, req.Comments)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toCertificateJSON(cert, s.clock.Now()))
}
