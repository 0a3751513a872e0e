// Package checklist holds the per-stage inspection checklist templates and
// merges them with caller-supplied checkpoints.
package checklist

import (
	"fmt"
	"strings"

	"github.com/zulandar/qcyard/internal/models"
)

// Item is a checkpoint definition before it is attached to an inspection.
type Item struct {
	CheckpointID  string `json:"checkpointId" yaml:"checkpoint_id"`
	Description   string `json:"description" yaml:"description"`
	ExpectedValue string `json:"expectedValue" yaml:"expected_value"`
}

var templates = map[models.Stage][]Item{
	models.StageCutting: {
		{"CUT_001", "Cut length within tolerance", "±1 mm of drawing"},
		{"CUT_002", "Cut angle accuracy", "±0.5° of drawing"},
		{"CUT_003", "Edge finish free of burrs", "No burrs or sharp edges"},
		{"CUT_004", "Profile and material grade match order", "As per cutting list"},
		{"CUT_005", "Part marking legible", "Part ID visible on every piece"},
	},
	models.StageFabrication: {
		{"FAB_001", "Overall frame dimensions", "±2 mm of drawing"},
		{"FAB_002", "Frame squareness (diagonal difference)", "≤ 2 mm"},
		{"FAB_003", "Joint and weld quality", "No cracks, gaps or porosity"},
		{"FAB_004", "Drainage and fixing holes", "Positioned as per drawing"},
		{"FAB_005", "Corner cleaning", "Smooth, flush corners"},
	},
	models.StageCoating: {
		{"COT_001", "Coating thickness", "60–80 microns"},
		{"COT_002", "Colour and shade", "Matches approved RAL sample"},
		{"COT_003", "Adhesion cross-hatch test", "Class 0 or 1"},
		{"COT_004", "Surface finish", "No runs, orange peel or pinholes"},
		{"COT_005", "Curing", "Fully cured, no tackiness"},
	},
	models.StageAssembly: {
		{"ASM_001", "Hardware fitted", "All hinges, handles and locks installed"},
		{"ASM_002", "Glazing", "Correct glass type, no scratches"},
		{"ASM_003", "Gaskets and seals", "Continuous, correctly seated"},
		{"ASM_004", "Operation", "Opens and closes smoothly"},
		{"ASM_005", "Alignment", "Sashes aligned, uniform gaps"},
	},
	models.StageDispatch: {
		{"DSP_001", "Packaging", "Protective film and corner guards applied"},
		{"DSP_002", "Labelling", "Order and position labels on each unit"},
		{"DSP_003", "Quantity check", "Matches dispatch note"},
		{"DSP_004", "Accessories packed", "All loose accessories boxed and listed"},
	},
	models.StageInstallation: {
		{"INS_001", "Plumb and level", "Within 2 mm per metre"},
		{"INS_002", "Anchoring", "Fixings at specified spacing"},
		{"INS_003", "Sealant application", "Continuous weather seal"},
		{"INS_004", "Final operation check", "All units operate freely"},
		{"INS_005", "Site cleanliness", "Debris and protective film removed"},
	},
}

// Template returns a copy of the default checklist for stage. Unknown stages
// return nil.
func Template(stage models.Stage) []Item {
	tpl, ok := templates[stage]
	if !ok {
		return nil
	}
	out := make([]Item, len(tpl))
	copy(out, tpl)
	return out
}

// Merge overlays overrides onto template by checkpoint id. An override that
// matches a template checkpoint replaces each field it sets; overrides with
// no matching checkpoint are appended in the order given.
func Merge(template, overrides []Item) ([]Item, error) {
	seen := make(map[string]bool, len(overrides))
	for i, o := range overrides {
		id := strings.TrimSpace(o.CheckpointID)
		if id == "" {
			return nil, fmt.Errorf("checklist: item %d: checkpoint id is required", i)
		}
		if seen[id] {
			return nil, fmt.Errorf("checklist: duplicate checkpoint id %q", id)
		}
		seen[id] = true
	}

	merged := make([]Item, len(template))
	copy(merged, template)
	index := make(map[string]int, len(merged))
	for i, it := range merged {
		index[it.CheckpointID] = i
	}

	for _, o := range overrides {
		o.CheckpointID = strings.TrimSpace(o.CheckpointID)
		i, ok := index[o.CheckpointID]
		if !ok {
			merged = append(merged, o)
			index[o.CheckpointID] = len(merged) - 1
			continue
		}
		if o.Description != "" {
			merged[i].Description = o.Description
		}
		if o.ExpectedValue != "" {
			merged[i].ExpectedValue = o.ExpectedValue
		}
	}
	return merged, nil
}

// ForStage merges overrides onto the stage template.
func ForStage(stage models.Stage, overrides []Item) ([]Item, error) {
	if !stage.Valid() {
		return nil, fmt.Errorf("checklist: unknown stage %q", stage)
	}
	return Merge(Template(stage), overrides)
}
