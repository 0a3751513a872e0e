// Package alerts derives operational alerts from inspection and workload
// snapshots. Alerts are recomputed on every scan and never stored.
package alerts

import (
	"fmt"
	"sort"
	"time"

	"github.com/zulandar/qcyard/internal/models"
)

// Type classifies an alert.
type Type string

const (
	TypeSLABreach         Type = "SLA_BREACH"
	TypeQualityIssue      Type = "QUALITY_ISSUE"
	TypeInspectorOverload Type = "INSPECTOR_OVERLOAD"
	TypeEquipmentIssue    Type = "EQUIPMENT_ISSUE"
)

// Severity ranks an alert.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Rank orders severities; higher is more urgent.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// QualityWindow is the trailing window the quality check looks at.
const QualityWindow = 7 * 24 * time.Hour

// Alert is one derived signal. Since is the moment the underlying condition
// began; CreatedAt is when the alert was generated.
type Alert struct {
	ID                string    `json:"id"`
	Type              Type      `json:"type"`
	Severity          Severity  `json:"severity"`
	Message           string    `json:"message"`
	InspectionID      string    `json:"inspectionId,omitempty"`
	InspectorID       string    `json:"inspectorId,omitempty"`
	ProductionOrderID string    `json:"productionOrderId,omitempty"`
	Stage             string    `json:"stage,omitempty"`
	Since             time.Time `json:"since"`
	CreatedAt         time.Time `json:"createdAt"`
	Acknowledged      bool      `json:"acknowledged"`
}

// Thresholds tune alert generation.
type Thresholds struct {
	SLA               time.Duration
	OverloadThreshold int
	// QualityFailRate is a percentage; 0 disables the quality check.
	QualityFailRate  float64
	QualityMinSample int
}

// DefaultThresholds returns the stock thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SLA:               24 * time.Hour,
		OverloadThreshold: 10,
		QualityFailRate:   30,
		QualityMinSample:  5,
	}
}

// Snapshot is the state alerts are derived from.
type Snapshot struct {
	// Pending holds every PENDING inspection.
	Pending []models.Inspection
	// Workload is the PENDING count per inspector.
	Workload map[string]int64
	// Recent holds inspections created within QualityWindow of now.
	Recent []models.Inspection
}

// Generate derives the alert list from s at time now, most severe first.
func Generate(s Snapshot, th Thresholds, now time.Time) []Alert {
	var out []Alert
	out = append(out, slaBreaches(s.Pending, th.SLA, now)...)
	out = append(out, overloads(s.Workload, th.OverloadThreshold, now)...)
	out = append(out, qualityIssues(s.Recent, th, now)...)

	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := out[i].Severity.Rank(), out[j].Severity.Rank()
		if ri != rj {
			return ri > rj
		}
		if !out[i].Since.Equal(out[j].Since) {
			return out[i].Since.Before(out[j].Since)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Counts tallies alerts by type.
func Counts(list []Alert) map[string]int {
	out := map[string]int{}
	for _, a := range list {
		out[string(a.Type)]++
	}
	return out
}

func slaBreaches(pending []models.Inspection, sla time.Duration, now time.Time) []Alert {
	var out []Alert
	for _, insp := range pending {
		if insp.Status != models.InspectionPending {
			continue
		}
		age := now.Sub(insp.CreatedAt)
		if age <= sla {
			continue
		}
		a := Alert{
			ID:                "sla-" + insp.ID,
			Type:              TypeSLABreach,
			Severity:          SeverityHigh,
			Message:           fmt.Sprintf("Inspection %s (%s) pending for %s", insp.InspectionNumber, insp.Stage, age.Truncate(time.Minute)),
			InspectionID:      insp.ID,
			ProductionOrderID: insp.ProductionOrderID,
			Stage:             string(insp.Stage),
			Since:             insp.CreatedAt,
			CreatedAt:         now,
		}
		if insp.InspectorID != nil {
			a.InspectorID = *insp.InspectorID
		}
		out = append(out, a)
	}
	return out
}

func overloads(workload map[string]int64, threshold int, now time.Time) []Alert {
	var out []Alert
	for inspector, n := range workload {
		if n <= int64(threshold) {
			continue
		}
		out = append(out, Alert{
			ID:          "overload-" + inspector,
			Type:        TypeInspectorOverload,
			Severity:    SeverityMedium,
			Message:     fmt.Sprintf("Inspector %s has %d pending inspections", inspector, n),
			InspectorID: inspector,
			Since:       now,
			CreatedAt:   now,
		})
	}
	return out
}

func qualityIssues(recent []models.Inspection, th Thresholds, now time.Time) []Alert {
	if th.QualityFailRate <= 0 {
		return nil
	}
	type tally struct{ recorded, bad int }
	byStage := map[models.Stage]*tally{}
	cutoff := now.Add(-QualityWindow)
	for _, insp := range recent {
		if insp.CreatedAt.Before(cutoff) || insp.Status == models.InspectionPending {
			continue
		}
		t, ok := byStage[insp.Stage]
		if !ok {
			t = &tally{}
			byStage[insp.Stage] = t
		}
		t.recorded++
		if insp.Status == models.InspectionFailed || insp.Status == models.InspectionReworkRequired {
			t.bad++
		}
	}

	var out []Alert
	for _, stage := range models.Stages {
		t, ok := byStage[stage]
		if !ok || t.recorded < th.QualityMinSample {
			continue
		}
		rate := float64(t.bad) / float64(t.recorded) * 100
		if rate <= th.QualityFailRate {
			continue
		}
		out = append(out, Alert{
			ID:        "quality-" + string(stage),
			Type:      TypeQualityIssue,
			Severity:  SeverityHigh,
			Message:   fmt.Sprintf("%s: %d of %d inspections failed or need rework in the last 7 days (%.1f%%)", stage, t.bad, t.recorded, rate),
			Stage:     string(stage),
			Since:     cutoff,
			CreatedAt: now,
		})
	}
	return out
}
