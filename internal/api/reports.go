package api

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/qcyard/internal/analytics"
	"github.com/zulandar/qcyard/internal/models"
)

// DefaultAnalyticsDays is the report range when no start is given.
const DefaultAnalyticsDays = 30

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func errInvalidParam(name, value string) error {
	if value == "" {
		return fmt.Errorf("query parameter %q is required", name)
	}
	return fmt.Errorf("invalid %s %q", name, value)
}

// parseTime accepts RFC 3339 timestamps or YYYY-MM-DD dates in loc. A bare
// end date covers the whole day.
func parseTime(v string, loc *time.Location, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", v, loc)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return t, nil
}

func (s *server) analyticsFilter(c *gin.Context) (analytics.Filter, error) {
	now := s.clock.Now().In(s.loc)
	f := analytics.Filter{
		End:      now,
		BranchID: c.Query("branch"),
		Stage:    models.Stage(c.Query("stage")),
	}
	if v := c.Query("end"); v != "" {
		t, err := parseTime(v, s.loc, true)
		if err != nil {
			return f, errInvalidParam("end", v)
		}
		f.End = t
	}
	f.Start = f.End.AddDate(0, 0, -DefaultAnalyticsDays)
	if v := c.Query("start"); v != "" {
		t, err := parseTime(v, s.loc, false)
		if err != nil {
			return f, errInvalidParam("start", v)
		}
		f.Start = t
	}
	if f.End.Before(f.Start) {
		return f, fmt.Errorf("end must not be before start")
	}
	if f.Stage != "" && !f.Stage.Valid() {
		return f, errInvalidParam("stage", string(f.Stage))
	}
	return f, nil
}

func (s *server) handleAnalytics(c *gin.Context) {
	f, err := s.analyticsFilter(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	report, err := analytics.Build(c.Request.Context(), s.db, f)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *server) handleAnalyticsExport(c *gin.Context) {
	f, err := s.analyticsFilter(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	report, err := analytics.Build(c.Request.Context(), s.db, f)
	if err != nil {
		s.fail(c, err)
		return
	}
	var buf bytes.Buffer
	if err := analytics.Export(&buf, report); err != nil {
		s.fail(c, err)
		return
	}
	filename := fmt.Sprintf("qc-analytics-%s-%s.xlsx", f.Start.Format("20060102"), f.End.Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (s *server) handleAlerts(c *gin.Context) {
	list, err := s.alerts.Scan(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": list, "count": len(list)})
}
