package derive

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"testing"

	"curve-analyzer/curvelog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(positions []float64, times ...string) curvelog.Record {
	rec := curvelog.Record{Index: 1, Header: "[Record 1]", Line: 2}
	for i, tr := range times {
		rec.Samples = append(rec.Samples, curvelog.Sample{
			Point:    uint64(i + 1),
			Position: positions[i],
			Force:    float64(i),
			TimeRaw:  tr,
			Line:     3 + i,
		})
	}
	return rec
}

func velocities(r EnrichedRecord) []float64 {
	out := make([]float64, 0, len(r.Samples))
	for _, s := range r.Samples {
		if s.Velocity != nil {
			out = append(out, *s.Velocity)
		}
	}
	return out
}

func elapsed(r EnrichedRecord) []int64 {
	out := make([]int64, 0, len(r.Samples))
	for _, s := range r.Samples {
		if s.ElapsedMS != nil {
			out = append(out, *s.ElapsedMS)
		}
	}
	return out
}

func TestEnrichVelocityForwardFillsFirstSample(t *testing.T) {
	rec := record([]float64{0, 1, 3}, "T#4m17s0ms", "T#4m17s100ms", "T#4m17s200ms")
	got := Enrich(rec, Options{})

	assert.Equal(t, []int64{0, 100, 200}, elapsed(got))
	assert.InDeltaSlice(t, []float64{10, 10, 20}, velocities(got), 1e-9)
	assert.Empty(t, got.Diagnostics)
	require.NotNil(t, got.DurationMS)
	assert.Equal(t, int64(200), *got.DurationMS)
}

func TestEnrichSamplingIntervalStats(t *testing.T) {
	rec := record([]float64{0, 1, 2, 3}, "T#0ms", "T#100ms", "T#210ms", "T#300ms")
	got := Enrich(rec, Options{})

	require.NotNil(t, got.AvgSamplingIntervalMS)
	require.NotNil(t, got.StdSamplingIntervalMS)
	assert.InDelta(t, 100.0, *got.AvgSamplingIntervalMS, 1e-9)
	assert.InDelta(t, 10.0, *got.StdSamplingIntervalMS, 1e-9)
}

func TestEnrichShortRecords(t *testing.T) {
	empty := Enrich(curvelog.Record{Index: 1}, Options{})
	assert.Empty(t, empty.Samples)
	assert.Nil(t, empty.AvgSamplingIntervalMS)
	assert.Nil(t, empty.DurationMS)

	one := Enrich(record([]float64{5}, "T#1s0ms"), Options{})
	require.Len(t, one.Samples, 1)
	require.NotNil(t, one.Samples[0].ElapsedMS)
	assert.Equal(t, int64(0), *one.Samples[0].ElapsedMS)
	require.NotNil(t, one.Samples[0].Velocity)
	assert.Equal(t, 0.0, *one.Samples[0].Velocity)
	assert.Nil(t, one.AvgSamplingIntervalMS)
	assert.Nil(t, one.StdSamplingIntervalMS)

	two := Enrich(record([]float64{0, 2}, "T#0ms", "T#100ms"), Options{})
	require.NotNil(t, two.AvgSamplingIntervalMS)
	assert.Equal(t, 100.0, *two.AvgSamplingIntervalMS)
	assert.Nil(t, two.StdSamplingIntervalMS)
}

func TestEnrichZeroIntervalCarriesVelocity(t *testing.T) {
	rec := record([]float64{0, 1, 5, 6}, "T#0ms", "T#100ms", "T#100ms", "T#200ms")
	got := Enrich(rec, Options{})

	assert.InDeltaSlice(t, []float64{10, 10, 10, 10}, velocities(got), 1e-9)
	require.Len(t, got.Diagnostics, 1)
	assert.Equal(t, curvelog.KindZeroInterval, got.Diagnostics[0].Kind)
	assert.Equal(t, 3, got.Diagnostics[0].Sample)
	assert.Equal(t, 5, got.Diagnostics[0].Line)
}

func TestEnrichAllZeroIntervalsGiveZeroVelocity(t *testing.T) {
	rec := record([]float64{0, 1, 2}, "T#5ms", "T#5ms", "T#5ms")
	got := Enrich(rec, Options{})

	assert.Equal(t, []float64{0, 0, 0}, velocities(got))
	assert.Len(t, got.Diagnostics, 2)
	require.NotNil(t, got.AvgSamplingIntervalMS)
	assert.Equal(t, 0.0, *got.AvgSamplingIntervalMS)
}

func TestEnrichNonMonotonicTimeIsReported(t *testing.T) {
	rec := record([]float64{0, 1, 2}, "T#0ms", "T#200ms", "T#100ms")
	got := Enrich(rec, Options{})

	assert.InDeltaSlice(t, []float64{5, 5, -10}, velocities(got), 1e-9)
	require.Len(t, got.Diagnostics, 1)
	assert.Equal(t, curvelog.KindNonMonotonicTime, got.Diagnostics[0].Kind)
	assert.Contains(t, got.Diagnostics[0].Message, "time went back T#100ms")
}

func TestEnrichSkipsUndecodableTimes(t *testing.T) {
	rec := record([]float64{0, 7, 1, 3}, "T#0ms", "T#garbage", "T#100ms", "T#200ms")
	got := Enrich(rec, Options{})

	require.Len(t, got.Samples, 4)
	bad := got.Samples[1]
	assert.False(t, bad.TimeValid())
	assert.NotEmpty(t, bad.TimeError)
	assert.Nil(t, bad.Velocity)
	assert.Nil(t, bad.VelocityMA)
	assert.Equal(t, 7.0, bad.Position)

	assert.Equal(t, 3, got.TimedCount)
	assert.Equal(t, []int64{0, 100, 200}, elapsed(got))
	assert.InDeltaSlice(t, []float64{10, 10, 20}, velocities(got), 1e-9)
	require.Len(t, got.Diagnostics, 1)
	assert.Equal(t, curvelog.KindDurationDecode, got.Diagnostics[0].Kind)
	assert.Equal(t, 2, got.Diagnostics[0].Sample)
	assert.Len(t, got.Timed(), 3)
}

func TestEnrichElapsedOriginSkipsUndecodableFirstSample(t *testing.T) {
	rec := record([]float64{0, 1, 2}, "bogus", "T#1s0ms", "T#1s100ms")
	got := Enrich(rec, Options{})

	assert.Nil(t, got.Samples[0].ElapsedMS)
	assert.Equal(t, []int64{0, 100}, elapsed(got))
}

func TestEnrichMovingAverage(t *testing.T) {
	// positions give velocities 10,10,20,30,40,50 at 100 ms steps
	rec := record(
		[]float64{0, 1, 3, 6, 10, 15},
		"T#0ms", "T#100ms", "T#200ms", "T#300ms", "T#400ms", "T#500ms",
	)
	got := Enrich(rec, Options{})

	assert.True(t, got.Smoothed)
	want := []float64{22, 22, 22, 22, 22, 30}
	for i, s := range got.Samples {
		require.NotNil(t, s.VelocityMA, "sample %d", i)
		assert.InDelta(t, want[i], *s.VelocityMA, 1e-9, "sample %d", i)
	}

	short := Enrich(record([]float64{0, 1, 2, 3}, "T#0ms", "T#1ms", "T#2ms", "T#3ms"), Options{})
	assert.False(t, short.Smoothed)
	for _, s := range short.Samples {
		assert.Nil(t, s.VelocityMA)
	}

	narrow := Enrich(record([]float64{0, 1, 2, 3}, "T#0ms", "T#1ms", "T#2ms", "T#3ms"), Options{SmoothingWindow: 2})
	assert.True(t, narrow.Smoothed)
	assert.Equal(t, 2, narrow.SmoothingWindow)
}

func TestEnrichDoesNotMutateInput(t *testing.T) {
	rec := record([]float64{0, 1, 3}, "T#0ms", "T#100ms", "T#200ms")
	before := fmt.Sprintf("%+v", rec)
	_ = Enrich(rec, Options{})
	assert.Equal(t, before, fmt.Sprintf("%+v", rec))
}

func TestEnrichAllPreservesOrder(t *testing.T) {
	records := make([]curvelog.Record, 20)
	for i := range records {
		records[i] = record([]float64{0, float64(i)}, "T#0ms", "T#1s0ms")
		records[i].Index = i + 1
	}

	got, err := EnrichAll(context.Background(), records, Options{Parallelism: 3})
	require.NoError(t, err)
	require.Len(t, got, 20)
	for i, r := range got {
		assert.Equal(t, i+1, r.Index)
		assert.InDelta(t, float64(i), *r.Samples[1].Velocity, 1e-9)
	}
}

func TestEnrichAllHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := EnrichAll(ctx, []curvelog.Record{record([]float64{0}, "T#0ms")}, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDiagnosticsFlattensRecords(t *testing.T) {
	a := Enrich(record([]float64{0, 1}, "T#0ms", "T#0ms"), Options{})
	b := Enrich(record([]float64{0}, "x"), Options{})
	assert.Len(t, Diagnostics([]EnrichedRecord{a, b}), 2)
}

func TestEnrichOverflowingVelocityCarriesForward(t *testing.T) {
	rec := record([]float64{0, 1, 1e307, 1e307}, "T#0ms", "T#1ms", "T#2ms", "T#3ms")
	got := Enrich(rec, Options{})

	assert.InDeltaSlice(t, []float64{1000, 1000, 1000, 0}, velocities(got), 1e-9)
	require.Len(t, got.Diagnostics, 1)
	assert.Equal(t, curvelog.KindNonFiniteVelocity, got.Diagnostics[0].Kind)
	assert.Equal(t, 3, got.Diagnostics[0].Sample)
	assert.True(t, got.Diagnostics[0].Warning())
}

func TestEnrichOverflowingVelocityStaysEncodable(t *testing.T) {
	rec := record([]float64{-1e307, 1e307, 0}, "T#0ms", "T#1ms", "T#2ms")
	got := Enrich(rec, Options{SmoothingWindow: 2})

	assert.Equal(t, []float64{0, 0, 0}, velocities(got))
	assert.Len(t, got.Diagnostics, 2)
	for _, s := range got.Samples {
		require.NotNil(t, s.VelocityMA)
		assert.False(t, math.IsInf(*s.VelocityMA, 0) || math.IsNaN(*s.VelocityMA))
	}
	_, err := json.Marshal(got)
	assert.NoError(t, err)
}

func TestMovingAverageOfLargeValuesIsFinite(t *testing.T) {
	big := math.MaxFloat64 / 2
	ma := movingAverage([]float64{big, big, big, big}, 3)
	require.Len(t, ma, 4)
	for _, v := range ma {
		assert.InDelta(t, big, v, big*1e-12)
	}
}
