// Package scoring computes inspection scores and derives inspection status
// from checkpoint results.
package scoring

import (
	"math"

	"github.com/zulandar/qcyard/internal/models"
)

// Thresholds for status derivation.
const (
	PassScore      = 95
	ReworkScore    = 80
	MaxReworkFails = 2
)

// Tally counts checkpoint results.
type Tally struct {
	Total   int
	Passed  int
	Failed  int
	NA      int
	Pending int
}

// Applicable is the number of checkpoints that count toward the score.
func (t Tally) Applicable() int {
	return t.Total - t.NA
}

// Count tallies the statuses of items.
func Count(items []models.ChecklistItem) Tally {
	t := Tally{Total: len(items)}
	for _, it := range items {
		switch it.Status {
		case models.ItemPass:
			t.Passed++
		case models.ItemFail:
			t.Failed++
		case models.ItemNA:
			t.NA++
		default:
			t.Pending++
		}
	}
	return t
}

// Score returns round(passed / applicable * 100), or 100 when nothing is applicable.
func Score(t Tally) int {
	applicable := t.Applicable()
	if applicable <= 0 {
		return 100
	}
	return int(math.Round(float64(t.Passed) / float64(applicable) * 100))
}

// Status derives the inspection outcome from a score and failure count.
func Status(score, failed int) models.InspectionStatus {
	if failed == 0 && score >= PassScore {
		return models.InspectionPassed
	}
	if score >= ReworkScore && failed <= MaxReworkFails {
		return models.InspectionReworkRequired
	}
	return models.InspectionFailed
}

// Result is a scored checklist.
type Result struct {
	Tally  Tally
	Score  int
	Status models.InspectionStatus
}

// Evaluate scores items. Complete is false while any checkpoint is still
// PENDING, in which case Score and Status are not meaningful.
func Evaluate(items []models.ChecklistItem) (res Result, complete bool) {
	res.Tally = Count(items)
	if res.Tally.Pending > 0 {
		res.Status = models.InspectionPending
		return res, false
	}
	res.Score = Score(res.Tally)
	res.Status = Status(res.Score, res.Tally.Failed)
	return res, true
}
