package curvenotes

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"curve-analyzer/curvelog"
	"curve-analyzer/derive"
)

// DefaultDwellVelocity is the |velocity| (position units per second) at or
// below which a sample counts as standing still.
const DefaultDwellVelocity = 0.5

// Config controls enrichment and structure detection.
type Config struct {
	SmoothingWindow int
	DwellVelocity   float64
	Parallelism     int
}

func (c Config) dwellVelocity() float64 {
	if c.DwellVelocity <= 0 {
		return DefaultDwellVelocity
	}
	return c.DwellVelocity
}

func (c Config) deriveOptions() derive.Options {
	return derive.Options{
		SmoothingWindow: c.SmoothingWindow,
		Parallelism:     c.Parallelism,
	}
}

// Analysis contains per-record metrics and generated notes for one device log.
type Analysis struct {
	FilePath         string                          `json:"file_path,omitempty"`
	FileName         string                          `json:"file_name"`
	LineCount        int                             `json:"line_count"`
	SectionFound     bool                            `json:"section_found"`
	RecordCount      int                             `json:"record_count"`
	SampleCount      int                             `json:"sample_count"`
	TimedSampleCount int                             `json:"timed_sample_count"`
	SmoothingWindow  int                             `json:"smoothing_window"`
	Records          []RecordAnalysis                `json:"records"`
	Enriched         []derive.EnrichedRecord         `json:"enriched_records,omitempty"`
	Diagnostics      []curvelog.Diagnostic           `json:"diagnostics,omitempty"`
	DiagnosticCounts map[curvelog.DiagnosticKind]int `json:"diagnostic_counts,omitempty"`
	Warnings         []string                        `json:"warnings,omitempty"`
	Notes            string                          `json:"notes"`
}

// RecordAnalysis is the metric summary of one record.
type RecordAnalysis struct {
	Index            int    `json:"index"`
	Header           string `json:"header"`
	Number           int    `json:"number,omitempty"`
	Line             int    `json:"line"`
	SampleCount      int    `json:"sample_count"`
	TimedSampleCount int    `json:"timed_sample_count"`
	DurationMS       *int64 `json:"duration_ms"`

	PositionMin       float64  `json:"position_min"`
	PositionMax       float64  `json:"position_max"`
	Stroke            float64  `json:"stroke"`
	ForceMin          float64  `json:"force_min"`
	ForceMax          float64  `json:"force_max"`
	ForceMean         float64  `json:"force_mean"`
	PositionAtPeak    float64  `json:"position_at_peak_force"`
	Work              float64  `json:"work"`
	MeanVelocity      *float64 `json:"mean_velocity"`
	MaxAbsVelocity    *float64 `json:"max_abs_velocity"`
	AvgIntervalMS     *float64 `json:"avg_sampling_interval_ms"`
	StdIntervalMS     *float64 `json:"std_sampling_interval_ms"`
	IntervalJitterPct *float64 `json:"interval_jitter_pct"`
	Smoothed          bool     `json:"smoothed"`
	DiagnosticCount   int      `json:"diagnostic_count"`
	MetricOverflow    bool     `json:"metric_overflow,omitempty"`

	Structure CurveStructure `json:"structure"`
}

// AnalyzeFile reads and analyzes a device log file.
func AnalyzeFile(path string, cfg Config) (*Analysis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read log file: %w", err)
	}
	a, err := Analyze(context.Background(), filepath.Base(path), data, cfg)
	if err != nil {
		return nil, err
	}
	a.FilePath = path
	return a, nil
}

// AnalyzeText analyzes log content already held as a string.
func AnalyzeText(name, text string, cfg Config) (*Analysis, error) {
	return Analyze(context.Background(), name, []byte(text), cfg)
}

// Analyze parses raw log bytes and analyzes every record.
func Analyze(ctx context.Context, name string, data []byte, cfg Config) (*Analysis, error) {
	parsed, err := curvelog.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parse log: %w", err)
	}
	return AnalyzeParsed(ctx, name, parsed, cfg)
}

// AnalyzeParsed enriches and summarizes an existing parse result.
func AnalyzeParsed(ctx context.Context, name string, parsed *curvelog.ParseResult, cfg Config) (*Analysis, error) {
	opts := cfg.deriveOptions()
	enriched, err := derive.EnrichAll(ctx, parsed.Records, opts)
	if err != nil {
		return nil, err
	}

	a := &Analysis{
		FileName:        name,
		LineCount:       parsed.LineCount,
		SectionFound:    parsed.SectionFound,
		RecordCount:     len(parsed.Records),
		SampleCount:     parsed.SampleCount(),
		SmoothingWindow: opts.SmoothingWindow,
		Records:         make([]RecordAnalysis, 0, len(enriched)),
		Enriched:        enriched,
	}
	if a.SmoothingWindow <= 0 {
		a.SmoothingWindow = derive.DefaultSmoothingWindow
	}

	a.Diagnostics = append(a.Diagnostics, parsed.Diagnostics...)
	a.Diagnostics = append(a.Diagnostics, derive.Diagnostics(enriched)...)
	if len(a.Diagnostics) > 0 {
		a.DiagnosticCounts = curvelog.CountByKind(a.Diagnostics)
	}

	for i := range enriched {
		ra := analyzeRecord(&enriched[i], cfg.dwellVelocity())
		a.TimedSampleCount += ra.TimedSampleCount
		a.Records = append(a.Records, ra)
	}

	a.Warnings = buildWarnings(parsed, enriched, a.Records)
	a.Notes = BuildCurveNotes(a)
	return a, nil
}

func analyzeRecord(er *derive.EnrichedRecord, dwell float64) RecordAnalysis {
	ra := RecordAnalysis{
		Index:            er.Index,
		Header:           er.Header,
		Number:           er.Record.Number,
		Line:             er.Line,
		SampleCount:      len(er.Samples),
		TimedSampleCount: er.TimedCount,
		DurationMS:       er.DurationMS,
		AvgIntervalMS:    er.AvgSamplingIntervalMS,
		StdIntervalMS:    er.StdSamplingIntervalMS,
		Smoothed:         er.Smoothed,
		DiagnosticCount:  len(er.Diagnostics),
	}
	if len(er.Samples) == 0 {
		ra.Structure = InferCurveStructure(nil, dwell)
		return ra
	}

	positions := make([]float64, 0, len(er.Samples))
	forces := make([]float64, 0, len(er.Samples))
	peak := 0
	for i, s := range er.Samples {
		positions = append(positions, s.Position)
		forces = append(forces, s.Force)
		if s.Force > er.Samples[peak].Force {
			peak = i
		}
	}
	velocities := make([]float64, 0, er.TimedCount)
	for _, s := range er.Timed() {
		if s.Velocity != nil {
			velocities = append(velocities, *s.Velocity)
		}
	}

	ra.PositionMin = minValue(positions)
	ra.PositionMax = maxValue(positions)
	ra.ForceMin = minValue(forces)
	ra.ForceMax = maxValue(forces)
	ra.ForceMean = average(forces)
	ra.PositionAtPeak = er.Samples[peak].Position

	var stroke, work bool
	ra.Stroke, stroke = clampFinite(ra.PositionMax - ra.PositionMin)
	ra.Work, work = clampFinite(trapezoidWork(positions, forces))
	ra.MetricOverflow = stroke || work

	if len(velocities) > 0 {
		ra.MeanVelocity = floatPtr(average(velocities))
		ra.MaxAbsVelocity = floatPtr(maxAbsValue(velocities))
	}
	if ra.AvgIntervalMS != nil && ra.StdIntervalMS != nil && *ra.AvgIntervalMS > 0 {
		ra.IntervalJitterPct = floatPtr(*ra.StdIntervalMS / *ra.AvgIntervalMS * 100)
	}

	ra.Structure = InferCurveStructure(er.Samples, dwell)
	return ra
}

// trapezoidWork integrates force over position in file order.
func trapezoidWork(positions, forces []float64) float64 {
	work := 0.0
	for i := 1; i < len(positions); i++ {
		work += (forces[i] + forces[i-1]) / 2 * (positions[i] - positions[i-1])
	}
	return work
}

func buildWarnings(parsed *curvelog.ParseResult, enriched []derive.EnrichedRecord, records []RecordAnalysis) []string {
	warnings := curvelog.BuildWarnings(parsed)
	for _, er := range enriched {
		for _, d := range er.Diagnostics {
			if d.Warning() {
				warnings = append(warnings, d.String())
			}
		}
	}
	for _, r := range records {
		if r.MetricOverflow {
			warnings = append(warnings, fmt.Sprintf("record %s: stroke or work exceeds float64 range and was clamped", r.Header))
		}
		if r.IntervalJitterPct != nil && *r.IntervalJitterPct > jitterWarnPct {
			warnings = append(warnings, fmt.Sprintf("record %s: irregular sampling (jitter %.1f%%)", r.Header, *r.IntervalJitterPct))
		}
	}
	return dedupe(warnings)
}

// jitterWarnPct is the interval std/mean ratio above which sampling is flagged.
const jitterWarnPct = 10.0

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// average scales each term before summing so finite inputs never overflow.
func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	n := float64(len(values))
	mean := 0.0
	for _, v := range values {
		mean += v / n
	}
	return mean
}

// clampFinite maps ±Inf to ±MaxFloat64 and NaN to 0, reporting whether it
// had to.
func clampFinite(v float64) (float64, bool) {
	switch {
	case math.IsNaN(v):
		return 0, true
	case math.IsInf(v, 1):
		return math.MaxFloat64, true
	case math.IsInf(v, -1):
		return -math.MaxFloat64, true
	default:
		return v, false
	}
}

func maxValue(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func minValue(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxAbsValue(values []float64) float64 {
	m := 0.0
	for _, v := range values {
		m = math.Max(m, math.Abs(v))
	}
	return m
}

func floatPtr(v float64) *float64 {
	return &v
}
