package derive

import "curve-analyzer/curvelog"

// DefaultSmoothingWindow is the trailing moving-average width used when
// Options.SmoothingWindow is unset.
const DefaultSmoothingWindow = 5

// Options controls enrichment.
type Options struct {
	// SmoothingWindow is the moving-average width over the velocity series.
	// Zero or negative selects DefaultSmoothingWindow.
	SmoothingWindow int

	// Parallelism bounds EnrichAll workers. Zero uses GOMAXPROCS.
	Parallelism int
}

func (o Options) window() int {
	if o.SmoothingWindow <= 0 {
		return DefaultSmoothingWindow
	}
	return o.SmoothingWindow
}

// EnrichedSample is a parsed sample plus its time-derived values.
// ElapsedMS, Velocity and VelocityMA are nil when the sample's duration
// failed to decode; VelocityMA is also nil for records shorter than the
// smoothing window.
type EnrichedSample struct {
	curvelog.Sample
	ElapsedMS  *int64   `json:"elapsed_ms"`
	TimeError  string   `json:"time_error,omitempty"`
	Velocity   *float64 `json:"velocity"`
	VelocityMA *float64 `json:"velocity_ma"`
}

// TimeValid reports whether the sample took part in time-dependent computations.
func (s EnrichedSample) TimeValid() bool {
	return s.ElapsedMS != nil
}

// EnrichedRecord is one record with per-sample derived series and
// sampling-interval statistics.
type EnrichedRecord struct {
	Record curvelog.Record `json:"-"`

	Index  int    `json:"index"`
	Header string `json:"header"`
	Line   int    `json:"line"`

	Samples     []EnrichedSample      `json:"samples"`
	TimedCount  int                   `json:"timed_count"`
	DurationMS  *int64                `json:"duration_ms"`
	Diagnostics []curvelog.Diagnostic `json:"diagnostics,omitempty"`

	AvgSamplingIntervalMS *float64 `json:"avg_sampling_interval_ms"`
	StdSamplingIntervalMS *float64 `json:"std_sampling_interval_ms"`
	SmoothingWindow       int      `json:"smoothing_window"`
	Smoothed              bool     `json:"smoothed"`
}

// Timed returns the samples whose duration decoded, in file order.
func (r *EnrichedRecord) Timed() []EnrichedSample {
	out := make([]EnrichedSample, 0, r.TimedCount)
	for _, s := range r.Samples {
		if s.TimeValid() {
			out = append(out, s)
		}
	}
	return out
}
