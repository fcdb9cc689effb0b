package derive

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"curve-analyzer/curvelog"
	"golang.org/x/sync/errgroup"
)

// Enrich decodes sample times and derives elapsed time, velocity, smoothed
// velocity and sampling-interval statistics for one record. The input record
// is not modified.
//
// Samples whose time does not decode stay in Samples with TimeError set and
// are left out of every time-dependent series.
func Enrich(rec curvelog.Record, opts Options) EnrichedRecord {
	window := opts.window()
	out := EnrichedRecord{
		Record:          rec,
		Index:           rec.Index,
		Header:          rec.Header,
		Line:            rec.Line,
		Samples:         make([]EnrichedSample, len(rec.Samples)),
		SmoothingWindow: window,
	}

	timed := make([]int, 0, len(rec.Samples))
	abs := make([]int64, 0, len(rec.Samples))
	for i, s := range rec.Samples {
		out.Samples[i] = EnrichedSample{Sample: s}
		ms, err := curvelog.DecodeDuration(s.TimeRaw)
		if err != nil {
			out.Samples[i].TimeError = err.Error()
			out.diag(curvelog.KindDurationDecode, i, err.Error())
			continue
		}
		timed = append(timed, i)
		abs = append(abs, ms)
	}
	out.TimedCount = len(timed)
	if len(timed) == 0 {
		return out
	}

	origin := abs[0]
	for k, i := range timed {
		elapsed := abs[k] - origin
		out.Samples[i].ElapsedMS = &elapsed
	}
	duration := abs[len(abs)-1] - origin
	out.DurationMS = &duration

	velocity := out.velocities(timed, abs)
	for k, i := range timed {
		out.Samples[i].Velocity = floatPtr(velocity[k])
	}

	if ma := movingAverage(velocity, window); ma != nil {
		out.Smoothed = true
		for k, i := range timed {
			out.Samples[i].VelocityMA = floatPtr(ma[k])
		}
	}

	deltas := make([]float64, 0, len(abs))
	for k := 1; k < len(abs); k++ {
		deltas = append(deltas, float64(abs[k]-abs[k-1]))
	}
	if len(deltas) >= 1 {
		out.AvgSamplingIntervalMS = floatPtr(avgFloat(deltas))
	}
	if len(deltas) >= 2 {
		out.StdSamplingIntervalMS = floatPtr(sampleStddev(deltas, avgFloat(deltas)))
	}
	return out
}

// velocities returns one value per timed sample in position units per second.
// A zero time step repeats the previous velocity; leading gaps take the
// first defined value, or 0 when none exists.
func (r *EnrichedRecord) velocities(timed []int, abs []int64) []float64 {
	n := len(timed)
	vel := make([]float64, n)
	defined := make([]bool, n)
	for k := 1; k < n; k++ {
		prev := r.Samples[timed[k-1]]
		cur := r.Samples[timed[k]]
		dt := abs[k] - abs[k-1]
		if dt == 0 {
			r.diag(curvelog.KindZeroInterval, timed[k],
				fmt.Sprintf("same time as previous sample (%s); velocity carried forward", cur.TimeRaw))
			if defined[k-1] {
				vel[k] = vel[k-1]
				defined[k] = true
			}
			continue
		}
		if dt < 0 {
			r.diag(curvelog.KindNonMonotonicTime, timed[k],
				fmt.Sprintf("time went back %s (%s after %s)", curvelog.FormatDuration(-dt), cur.TimeRaw, prev.TimeRaw))
		}
		v := (cur.Position - prev.Position) / float64(dt) * 1000
		if math.IsInf(v, 0) || math.IsNaN(v) {
			r.diag(curvelog.KindNonFiniteVelocity, timed[k],
				fmt.Sprintf("velocity out of range (position %g after %g in %d ms); velocity carried forward", cur.Position, prev.Position, dt))
			if defined[k-1] {
				vel[k] = vel[k-1]
				defined[k] = true
			}
			continue
		}
		vel[k] = v
		defined[k] = true
	}

	fill := 0.0
	for k := range defined {
		if defined[k] {
			fill = vel[k]
			break
		}
	}
	for k := 0; k < n && !defined[k]; k++ {
		vel[k] = fill
	}
	return vel
}

func (r *EnrichedRecord) diag(kind curvelog.DiagnosticKind, sample int, msg string) {
	s := r.Samples[sample]
	r.Diagnostics = append(r.Diagnostics, curvelog.Diagnostic{
		Kind:    kind,
		Line:    s.Line,
		Record:  r.Index,
		Sample:  sample + 1,
		Text:    s.TimeRaw,
		Message: msg,
	})
}

// movingAverage is the trailing mean over window values. Positions before
// the first full window repeat the first full-window mean. It returns nil
// when the series is shorter than the window. Terms are scaled before
// summing so finite inputs always give a finite mean.
func movingAverage(values []float64, window int) []float64 {
	if window <= 0 || len(values) < window {
		return nil
	}
	out := make([]float64, len(values))
	w := float64(window)
	for i := window - 1; i < len(values); i++ {
		mean := 0.0
		for _, v := range values[i-window+1 : i+1] {
			mean += v / w
		}
		out[i] = mean
	}
	for i := 0; i < window-1; i++ {
		out[i] = out[window-1]
	}
	return out
}

// EnrichAll enriches records concurrently and returns them in input order.
func EnrichAll(ctx context.Context, records []curvelog.Record, opts Options) ([]EnrichedRecord, error) {
	out := make([]EnrichedRecord, len(records))
	limit := opts.Parallelism
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := range records {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = Enrich(records[i], opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("enrich records: %w", err)
	}
	return out, nil
}

// Diagnostics flattens the enrichment diagnostics of every record.
func Diagnostics(records []EnrichedRecord) []curvelog.Diagnostic {
	var out []curvelog.Diagnostic
	for _, r := range records {
		out = append(out, r.Diagnostics...)
	}
	return out
}

func avgFloat(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleStddev uses the n-1 denominator.
func sampleStddev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

func floatPtr(v float64) *float64 {
	return &v
}
