package curvenotes

import (
	"fmt"
	"math"
	"strings"

	"curve-analyzer/derive"
)

const curveStructureSchemaVersion = "curve_structure_v1"

// Phase types.
const (
	PhaseAdvance = "advance"
	PhaseRetract = "retract"
	PhaseDwell   = "dwell"
)

// minPhaseSamples is the shortest run kept as its own phase.
const minPhaseSamples = 2

// CurveStructure is a motion-phase view of one record.
type CurveStructure struct {
	SchemaVersion  string       `json:"schema_version"`
	Confidence     float64      `json:"confidence"`
	CanonicalLabel string       `json:"canonical_label"`
	Phases         []CurvePhase `json:"phases,omitempty"`
	MergedSamples  int          `json:"merged_samples"`
}

// CurvePhase is one contiguous run of samples moving the same way.
type CurvePhase struct {
	PhaseType     string  `json:"phase_type"`
	StartSample   int     `json:"start_sample"`
	EndSample     int     `json:"end_sample"`
	StartMS       int64   `json:"start_ms"`
	EndMS         int64   `json:"end_ms"`
	DurationMS    int64   `json:"duration_ms"`
	PositionStart float64 `json:"position_start"`
	PositionEnd   float64 `json:"position_end"`
	Travel        float64 `json:"travel"`
	PeakForce     float64 `json:"peak_force"`
	MeanVelocity  float64 `json:"mean_velocity"`
	Description   string  `json:"description"`
}

type phaseRun struct {
	kind  string
	start int // index into the timed slice
	end   int // inclusive
}

func (r phaseRun) len() int { return r.end - r.start + 1 }

// InferCurveStructure segments a record's timed samples into advance,
// retract and dwell phases by velocity sign. The smoothed velocity is used
// when present. Runs shorter than two samples are folded into a neighbour.
func InferCurveStructure(samples []derive.EnrichedSample, dwellVelocity float64) CurveStructure {
	cs := CurveStructure{
		SchemaVersion: curveStructureSchemaVersion,
	}

	timed := make([]derive.EnrichedSample, 0, len(samples))
	index := make([]int, 0, len(samples))
	smoothed := true
	for i, s := range samples {
		if !s.TimeValid() || s.Velocity == nil {
			continue
		}
		if s.VelocityMA == nil {
			smoothed = false
		}
		timed = append(timed, s)
		index = append(index, i+1)
	}
	if len(timed) < 2 {
		cs.CanonicalLabel = "unable to infer curve structure (fewer than 2 timed samples)"
		return cs
	}

	runs := make([]phaseRun, 0, 8)
	for k, s := range timed {
		kind := classify(phaseVelocity(s, smoothed), dwellVelocity)
		if n := len(runs); n > 0 && runs[n-1].kind == kind {
			runs[n-1].end = k
			continue
		}
		runs = append(runs, phaseRun{kind: kind, start: k, end: k})
	}
	runs, merged := foldShortRuns(runs)
	cs.MergedSamples = merged

	labels := make([]string, 0, len(runs))
	for i, r := range runs {
		phase := buildPhase(timed, index, r, smoothed)
		if i+1 < len(runs) {
			phase.EndMS = *timed[runs[i+1].start].ElapsedMS
			phase.DurationMS = phase.EndMS - phase.StartMS
		}
		phase.Description = fmt.Sprintf("%s %s", phase.PhaseType, shortDuration(phase.DurationMS))
		cs.Phases = append(cs.Phases, phase)
		labels = append(labels, phase.Description)
	}
	cs.CanonicalLabel = strings.Join(labels, " -> ")
	cs.Confidence = structureConfidence(len(timed), merged, len(cs.Phases), smoothed)
	return cs
}

func phaseVelocity(s derive.EnrichedSample, smoothed bool) float64 {
	if smoothed && s.VelocityMA != nil {
		return *s.VelocityMA
	}
	return *s.Velocity
}

func classify(v, dwell float64) string {
	switch {
	case math.Abs(v) <= dwell:
		return PhaseDwell
	case v > 0:
		return PhaseAdvance
	default:
		return PhaseRetract
	}
}

// foldShortRuns merges runs shorter than minPhaseSamples into the previous
// run (the next one for a leading run), then joins neighbours of equal kind.
func foldShortRuns(runs []phaseRun) ([]phaseRun, int) {
	merged := 0
	for len(runs) > 1 {
		short := -1
		for i, r := range runs {
			if r.len() < minPhaseSamples {
				short = i
				break
			}
		}
		if short < 0 {
			break
		}
		merged += runs[short].len()
		if short == 0 {
			runs[1].start = runs[0].start
		} else {
			runs[short-1].end = runs[short].end
		}
		runs = append(runs[:short], runs[short+1:]...)
		runs = joinEqualNeighbours(runs)
	}
	return runs, merged
}

func joinEqualNeighbours(runs []phaseRun) []phaseRun {
	out := runs[:0]
	for _, r := range runs {
		if n := len(out); n > 0 && out[n-1].kind == r.kind {
			out[n-1].end = r.end
			continue
		}
		out = append(out, r)
	}
	return out
}

func buildPhase(timed []derive.EnrichedSample, index []int, r phaseRun, smoothed bool) CurvePhase {
	first, last := timed[r.start], timed[r.end]
	p := CurvePhase{
		PhaseType:     r.kind,
		StartSample:   index[r.start],
		EndSample:     index[r.end],
		StartMS:       *first.ElapsedMS,
		EndMS:         *last.ElapsedMS,
		PositionStart: first.Position,
		PositionEnd:   last.Position,
		PeakForce:     first.Force,
	}
	p.DurationMS = p.EndMS - p.StartMS
	p.Travel, _ = clampFinite(last.Position - first.Position)
	velocities := make([]float64, 0, r.len())
	for _, s := range timed[r.start : r.end+1] {
		if s.Force > p.PeakForce {
			p.PeakForce = s.Force
		}
		velocities = append(velocities, phaseVelocity(s, smoothed))
	}
	p.MeanVelocity = average(velocities)
	return p
}

func structureConfidence(timed, merged, phases int, smoothed bool) float64 {
	c := 0.25
	if timed >= 5 {
		c += 0.15
	}
	if timed >= 20 {
		c += 0.1
	}
	c += 0.3 * (1 - float64(merged)/float64(timed))
	if smoothed {
		c += 0.1
	}
	if phases <= 4 {
		c += 0.1
	}
	return math.Min(1, math.Max(0, c))
}

// shortDuration renders milliseconds for labels: "300ms", "1.2s", "2m05s".
func shortDuration(ms int64) string {
	switch {
	case ms < 0:
		return "0ms"
	case ms < 500:
		return fmt.Sprintf("%dms", ms)
	case ms < 60_000:
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	default:
		s := (ms + 500) / 1000
		return fmt.Sprintf("%dm%02ds", s/60, s%60)
	}
}
