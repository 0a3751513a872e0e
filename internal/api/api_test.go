package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"github.com/zulandar/qcyard/internal/certificate"
	"github.com/zulandar/qcyard/internal/clock"
	"github.com/zulandar/qcyard/internal/db"
	"github.com/zulandar/qcyard/internal/directory"
	"github.com/zulandar/qcyard/internal/inspection"
	"github.com/zulandar/qcyard/internal/metrics"
	"github.com/zulandar/qcyard/internal/models"
	"gorm.io/gorm"
)

var t0 = time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)

type fixture struct {
	db     *gorm.DB
	router *gin.Engine
	clock  *clock.Fixed
}

func newFixture(t *testing.T, rateLimit string) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	gdb, err := db.OpenMemory()
	require.NoError(t, err)
	require.NoError(t, gdb.Create(&models.ProductionOrder{ID: "po-1", OrderNumber: "PO-0001", Quantity: 10, CustomerName: "Acme", BranchID: "north", Status: models.OrderInProduction}).Error)
	require.NoError(t, gdb.Create(&models.Employee{ID: "emp-1", Name: "Asha"}).Error)

	clk := clock.NewFixed(t0)
	m := metrics.New()
	orders := directory.NewOrders(gdb)
	insp := inspection.NewService(inspection.Options{
		DB:           gdb,
		Orders:       orders,
		Inspectors:   directory.NewInspectors(gdb),
		Requirements: directory.NewRequirements(gdb),
		Clock:        clk,
		Metrics:      m,
	})
	certs := certificate.NewService(certificate.Options{
		DB:       gdb,
		Orders:   orders,
		Delivery: directory.NewDelivery(orders),
		Clock:    clk,
		Metrics:  m,
	})
	router, err := NewRouter(Options{
		DB:           gdb,
		Inspections:  insp,
		Certificates: certs,
		Metrics:      m,
		Clock:        clk,
		Location:     time.UTC,
		RateLimit:    rateLimit,
	})
	require.NoError(t, err)
	return &fixture{db: gdb, router: router, clock: clk}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func (f *fixture) createInspection(t *testing.T) inspectionJSON {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/inspections", gin.H{
		"productionOrderId": "po-1",
		"stage":             "CUTTING",
		"inspectorId":       "emp-1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out inspectionJSON
	decode(t, rec, &out)
	return out
}

func results(items []checklistItemJSON, fail ...string) []gin.H {
	failing := map[string]bool{}
	for _, id := range fail {
		failing[id] = true
	}
	var out []gin.H
	for _, it := range items {
		status := "PASS"
		if failing[it.CheckpointID] {
			status = "FAIL"
		}
		out = append(out, gin.H{"checkpointId": it.CheckpointID, "status": status, "actualValue": "ok"})
	}
	return out
}

func TestNewRouter_RequiresServices(t *testing.T) {
	_, err := NewRouter(Options{})
	assert.ErrorContains(t, err, "db is required")
}

func TestNewRouter_BadRateLimit(t *testing.T) {
	f := newFixture(t, "")
	_, err := NewRouter(Options{DB: f.db, Inspections: &inspection.Service{}, Certificates: &certificate.Service{}, RateLimit: "lots"})
	assert.Error(t, err)
}

func TestCreateAndGetInspection(t *testing.T) {
	f := newFixture(t, "")
	created := f.createInspection(t)
	assert.Equal(t, "QC2026100001", created.InspectionNumber)
	assert.Equal(t, "PENDING", created.Status)
	assert.Len(t, created.ChecklistItems, 5)
	assert.Nil(t, created.OverallScore)

	rec := f.do(t, http.MethodGet, "/api/inspections/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got inspectionJSON
	decode(t, rec, &got)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "CUT_001", got.ChecklistItems[0].CheckpointID)

	rec = f.do(t, http.MethodGet, "/api/inspections?order=po-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []inspectionJSON
	decode(t, rec, &list)
	assert.Len(t, list, 1)
}

func TestErrorMapping(t *testing.T) {
	f := newFixture(t, "")

	rec := f.do(t, http.MethodGet, "/api/inspections/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body errorBody
	decode(t, rec, &body)
	assert.Equal(t, "INSPECTION_NOT_FOUND", body.Reason)

	rec = f.do(t, http.MethodPost, "/api/inspections", gin.H{"productionOrderId": "po-1", "stage": "PAINTING"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	decode(t, rec, &body)
	assert.Equal(t, "INVALID_STAGE", body.Reason)

	rec = f.do(t, http.MethodPost, "/api/inspections", gin.H{"stage": "CUTTING"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/inspections", gin.H{"productionOrderId": "po-404", "stage": "CUTTING"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/certificates", gin.H{"productionOrderId": "po-1", "certificateType": "QUALITY", "issuedBy": "emp-1"})
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	decode(t, rec, &body)
	assert.Equal(t, "NO_PASSED_INSPECTIONS", body.Reason)
}

func TestRecordResults_ReworkCard(t *testing.T) {
	f := newFixture(t, "")
	created := f.createInspection(t)

	rec := f.do(t, http.MethodPost, "/api/inspections/"+created.ID+"/results", gin.H{
		"checklistResults": results(created.ChecklistItems, "CUT_003"),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out struct {
		Inspection    inspectionJSON `json:"inspection"`
		ReworkJobCard *reworkJSON    `json:"reworkJobCard"`
	}
	decode(t, rec, &out)
	assert.Equal(t, "REWORK_REQUIRED", out.Inspection.Status)
	require.NotNil(t, out.Inspection.OverallScore)
	assert.Equal(t, 80, *out.Inspection.OverallScore)
	require.NotNil(t, out.ReworkJobCard)
	assert.Equal(t, "RW2026100001", out.ReworkJobCard.ReworkNumber)
	assert.Equal(t, "2.5", out.ReworkJobCard.EstimatedHours)

	rec = f.do(t, http.MethodPost, "/api/inspections/"+created.ID+"/results", gin.H{
		"checklistResults": results(created.ChecklistItems),
	})
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/rework/"+out.ReworkJobCard.ID+"/status", gin.H{"status": "IN_PROGRESS", "assignee": "emp-9"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var card reworkJSON
	decode(t, rec, &card)
	assert.Equal(t, "IN_PROGRESS", card.Status)

	rec = f.do(t, http.MethodPost, "/api/rework/"+out.ReworkJobCard.ID+"/status", gin.H{"status": "PENDING"})
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/rework?order=po-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cards []reworkJSON
	decode(t, rec, &cards)
	assert.Len(t, cards, 1)
}

func TestCertificateLifecycle(t *testing.T) {
	f := newFixture(t, "")
	created := f.createInspection(t)
	rec := f.do(t, http.MethodPost, "/api/inspections/"+created.ID+"/results", gin.H{
		"checklistResults": results(created.ChecklistItems),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/certificates", gin.H{
		"productionOrderId":        "po-1",
		"certificateType":          "QUALITY",
		"issuedBy":                 "emp-1",
		"customerApprovalRequired": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var cert certificateJSON
	decode(t, rec, &cert)
	assert.Equal(t, "QCC2026100001", cert.CertificateNumber)
	assert.Equal(t, "ISSUED", cert.Status)
	assert.Equal(t, "PENDING", cert.CustomerApprovalStatus)
	assert.Equal(t, []string{created.ID}, cert.InspectionIDs)

	rec = f.do(t, http.MethodPost, "/api/certificates/"+cert.ID+"/submit", gin.H{"notes": "please review"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/certificates/"+cert.ID+"/approval", gin.H{"approved": true, "approvedBy": "customer-1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &cert)
	assert.Equal(t, "APPROVED", cert.Status)
	require.NotNil(t, cert.ApprovedBy)
	assert.Equal(t, "customer-1", *cert.ApprovedBy)

	rec = f.do(t, http.MethodPost, "/api/certificates/"+cert.ID+"/approval", gin.H{"approved": false, "approvedBy": "customer-1"})
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)

	var order models.ProductionOrder
	require.NoError(t, f.db.First(&order, "id = ?", "po-1").Error)
	assert.Equal(t, models.OrderReadyForDelivery, order.Status)

	rec = f.do(t, http.MethodPost, "/api/certificates/"+cert.ID+"/approval", gin.H{"approvedBy": "customer-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/certificates?order=po-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []certificateJSON
	decode(t, rec, &list)
	assert.Len(t, list, 1)
}

func TestOrderHooks(t *testing.T) {
	f := newFixture(t, "")
	rec := f.do(t, http.MethodPost, "/api/orders/po-1/stage-completed", gin.H{"stage": "COATING"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var insp inspectionJSON
	decode(t, rec, &insp)
	assert.Equal(t, "COATING", insp.Stage)
	assert.Nil(t, insp.InspectorID)

	rec = f.do(t, http.MethodPost, "/api/inspections/"+insp.ID+"/assign", gin.H{"inspectorId": "emp-1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/inspections/"+insp.ID+"/assign", gin.H{"inspectorId": "emp-404"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/orders/po-1/delivery-documents", gin.H{"documentIds": []string{"doc-1"}})
	require.Equal(t, http.StatusOK, rec.Code)
	var linked struct {
		Linked int `json:"linked"`
	}
	decode(t, rec, &linked)
	assert.Equal(t, 0, linked.Linked)

	rec = f.do(t, http.MethodPost, "/api/orders/po-1/delivery-documents", gin.H{"documentIds": []string{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyticsAndAlerts(t *testing.T) {
	f := newFixture(t, "")
	f.createInspection(t)
	f.clock.Advance(25 * time.Hour)

	rec := f.do(t, http.MethodGet, "/api/alerts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var alertResp struct {
		Count  int `json:"count"`
		Alerts []struct {
			Type     string `json:"type"`
			Severity string `json:"severity"`
		} `json:"alerts"`
	}
	decode(t, rec, &alertResp)
	require.Equal(t, 1, alertResp.Count)
	assert.Equal(t, "SLA_BREACH", alertResp.Alerts[0].Type)
	assert.Equal(t, "HIGH", alertResp.Alerts[0].Severity)

	rec = f.do(t, http.MethodGet, "/api/analytics?start=2026-10-18&end=2026-10-19", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var report struct {
		Overview struct {
			Total   int `json:"total"`
			Pending int `json:"pending"`
		} `json:"overview"`
		Trend []struct {
			Date string `json:"date"`
		} `json:"trend"`
	}
	decode(t, rec, &report)
	assert.Equal(t, 1, report.Overview.Total)
	assert.Equal(t, 1, report.Overview.Pending)
	assert.Len(t, report.Trend, 2)

	rec = f.do(t, http.MethodGet, "/api/analytics?start=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(t, http.MethodGet, "/api/analytics?stage=PAINTING", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/analytics/export?start=2026-10-18&end=2026-10-19", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "qc-analytics-20261018-20261019.xlsx")
	wb, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer wb.Close()
	assert.Contains(t, wb.GetSheetList(), "Trend")

	rec = f.do(t, http.MethodGet, "/api/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"alertCount":1`)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t, "")
	rec := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	f.createInspection(t)
	rec = f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `qc_inspections_created_total{stage="CUTTING"} 1`)
	assert.True(t, strings.Contains(body, `route="/api/inspections"`), body)
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, "2-M")
	for i := 0; i < 2; i++ {
		rec := f.do(t, http.MethodGet, "/api/inspections", nil)
		require.Equal(t, http.StatusOK, rec.Code, fmt.Sprintf("request %d", i))
	}
	rec := f.do(t, http.MethodGet, "/api/inspections", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestParseTime(t *testing.T) {
	got, err := parseTime("2026-10-18", time.UTC, true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 18, 23, 59, 59, 999999999, time.UTC), got)

	got, err = parseTime("2026-10-18T08:00:00Z", time.UTC, true)
	require.NoError(t, err)
	assert.Equal(t, 8, got.Hour())

	_, err = parseTime("18/10/2026", time.UTC, false)
	assert.Error(t, err)
}
