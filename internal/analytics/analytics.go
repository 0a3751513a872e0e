// Package analytics computes stage, inspector and daily metrics over a set
// of inspections.
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/zulandar/qcyard/internal/clock"
	"github.com/zulandar/qcyard/internal/models"
)

const day = 24 * time.Hour

// Counts tallies inspections by outcome. Rates are percentages of Total and
// AverageScore covers inspections that have a score.
type Counts struct {
	Total        int     `json:"total"`
	Passed       int     `json:"passed"`
	Failed       int     `json:"failed"`
	Rework       int     `json:"rework"`
	Pending      int     `json:"pending"`
	PassRate     float64 `json:"passRate"`
	FailRate     float64 `json:"failRate"`
	ReworkRate   float64 `json:"reworkRate"`
	AverageScore float64 `json:"averageScore"`

	scoreSum int
	scored   int
}

// StageMetrics are the counts for one stage.
type StageMetrics struct {
	Stage models.Stage `json:"stage"`
	Counts
}

// InspectorMetrics are the counts for one inspector. Efficiency is
// inspections per day of the reporting range.
type InspectorMetrics struct {
	InspectorID string `json:"inspectorId"`
	Counts
	Efficiency float64 `json:"efficiency"`
}

// TrendPoint is one calendar day of the reporting range.
type TrendPoint struct {
	Date string `json:"date"` // YYYY-MM-DD
	Counts
}

// Report is the full analytics result for a range.
type Report struct {
	Start      time.Time          `json:"start"`
	End        time.Time          `json:"end"`
	Overview   Counts             `json:"overview"`
	Stages     []StageMetrics     `json:"stages"`
	Inspectors []InspectorMetrics `json:"inspectors"`
	Trend      []TrendPoint       `json:"trend"`
}

func (c *Counts) add(insp *models.Inspection) {
	c.Total++
	switch insp.Status {
	case models.InspectionPassed:
		c.Passed++
	case models.InspectionFailed:
		c.Failed++
	case models.InspectionReworkRequired:
		c.Rework++
	default:
		c.Pending++
	}
	if insp.OverallScore != nil {
		c.scoreSum += *insp.OverallScore
		c.scored++
	}
}

func (c *Counts) finish() {
	c.PassRate = Rate(c.Passed, c.Total)
	c.FailRate = Rate(c.Failed, c.Total)
	c.ReworkRate = Rate(c.Rework, c.Total)
	c.AverageScore = 0
	if c.scored > 0 {
		c.AverageScore = round2(float64(c.scoreSum) / float64(c.scored))
	}
}

// Summarize tallies inspections.
func Summarize(insps []models.Inspection) Counts {
	var c Counts
	for i := range insps {
		c.add(&insps[i])
	}
	c.finish()
	return c
}

// Rate returns n as a percentage of total, or 0 when total is 0.
func Rate(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(n) / float64(total) * 100)
}

// DaysInRange is ceil((end-start)/24h), never less than 1.
func DaysInRange(start, end time.Time) int {
	d := int(math.Ceil(float64(end.Sub(start)) / float64(day)))
	if d < 1 {
		return 1
	}
	return d
}

// ByStage groups inspections by stage in pipeline order. Stages with no
// inspections are omitted.
func ByStage(insps []models.Inspection) []StageMetrics {
	groups := map[models.Stage]*StageMetrics{}
	for i := range insps {
		insp := &insps[i]
		g, ok := groups[insp.Stage]
		if !ok {
			g = &StageMetrics{Stage: insp.Stage}
			groups[insp.Stage] = g
		}
		g.add(insp)
	}
	out := make([]StageMetrics, 0, len(groups))
	for _, s := range models.Stages {
		if g, ok := groups[s]; ok {
			g.finish()
			out = append(out, *g)
		}
	}
	return out
}

// ByInspector groups assigned inspections by inspector, ordered by id.
func ByInspector(insps []models.Inspection, start, end time.Time) []InspectorMetrics {
	days := float64(DaysInRange(start, end))
	groups := map[string]*InspectorMetrics{}
	for i := range insps {
		insp := &insps[i]
		if insp.InspectorID == nil {
			continue
		}
		g, ok := groups[*insp.InspectorID]
		if !ok {
			g = &InspectorMetrics{InspectorID: *insp.InspectorID}
			groups[*insp.InspectorID] = g
		}
		g.add(insp)
	}
	out := make([]InspectorMetrics, 0, len(groups))
	for _, g := range groups {
		g.finish()
		g.Efficiency = round2(float64(g.Total) / days)
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InspectorID < out[j].InspectorID })
	return out
}

// Trend buckets inspections by creation day. It returns one point for every
// calendar day from start to end inclusive, in start's location.
func Trend(insps []models.Inspection, start, end time.Time) []TrendPoint {
	loc := start.Location()
	first := clock.StartOfDay(start)
	last := clock.StartOfDay(end.In(loc))

	var points []TrendPoint
	index := map[string]int{}
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		key := d.Format("2006-01-02")
		index[key] = len(points)
		points = append(points, TrendPoint{Date: key})
	}
	for i := range insps {
		key := insps[i].CreatedAt.In(loc).Format("2006-01-02")
		if p, ok := index[key]; ok {
			points[p].add(&insps[i])
		}
	}
	for i := range points {
		points[i].finish()
	}
	return points
}

// Aggregate builds the full report for inspections created in [start, end].
func Aggregate(insps []models.Inspection, start, end time.Time) *Report {
	return &Report{
		Start:      start,
		End:        end,
		Overview:   Summarize(insps),
		Stages:     ByStage(insps),
		Inspectors: ByInspector(insps, start, end),
		Trend:      Trend(insps, start, end),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
