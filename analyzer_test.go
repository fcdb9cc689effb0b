package curvenotes

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"curve-analyzer/curvelog"
	"curve-analyzer/derive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pressLog = `[Recorded curves]
[Record 1]
1;0.000;12.500;T#4m17s47ms
2;0.512;15.250;T#4m17s147ms
3;1.024;18.000;T#4m17s247ms
[Record 2]
1;0.000;11.000;T#4m20s0ms
2;0.250;11.500;T#4m20s100ms
[Variables]
`

// advanceThenDwell moves 1 unit per 100 ms for five steps and then holds.
func advanceThenDwell() string {
	var b strings.Builder
	b.WriteString("[Recorded curves]\n[Record 7]\n")
	for i := 0; i < 16; i++ {
		pos := float64(i)
		if pos > 5 {
			pos = 5
		}
		fmt.Fprintf(&b, "%d;%.3f;%.3f;%s\n", i+1, pos, 10+pos, curvelog.FormatDuration(int64(i*100)))
	}
	b.WriteString("[Variables]\n")
	return b.String()
}

func TestAnalyzeTextSummarizesRecords(t *testing.T) {
	a, err := AnalyzeText("press.log", pressLog, Config{})
	require.NoError(t, err)

	assert.Equal(t, "press.log", a.FileName)
	assert.Equal(t, 2, a.RecordCount)
	assert.Equal(t, 5, a.SampleCount)
	assert.Equal(t, 5, a.TimedSampleCount)
	assert.Equal(t, derive.DefaultSmoothingWindow, a.SmoothingWindow)
	require.Len(t, a.Records, 2)
	require.Len(t, a.Enriched, 2)
	assert.Empty(t, a.Diagnostics)

	r := a.Records[0]
	assert.Equal(t, 1, r.Number)
	assert.Equal(t, 3, r.SampleCount)
	require.NotNil(t, r.DurationMS)
	assert.Equal(t, int64(200), *r.DurationMS)
	assert.InDelta(t, 1.024, r.Stroke, 1e-9)
	assert.InDelta(t, 12.5, r.ForceMin, 1e-9)
	assert.InDelta(t, 18.0, r.ForceMax, 1e-9)
	assert.InDelta(t, 1.024, r.PositionAtPeak, 1e-9)
	assert.InDelta(t, 15.616, r.Work, 1e-9)
	require.NotNil(t, r.MeanVelocity)
	assert.InDelta(t, 5.12, *r.MeanVelocity, 1e-9)
	require.NotNil(t, r.IntervalJitterPct)
	assert.InDelta(t, 0, *r.IntervalJitterPct, 1e-9)
	assert.False(t, r.Smoothed)

	assert.Contains(t, a.Notes, "Record [Record 1] (#1, line 2)")
	assert.Contains(t, a.Notes, "Record [Record 2]")
}

func TestAnalyzeTextWithoutRecords(t *testing.T) {
	a, err := AnalyzeText("empty.log", "[General]\nx=1\n", Config{})
	require.NoError(t, err)

	assert.Empty(t, a.Records)
	assert.Contains(t, a.Notes, NoRecordsMessage)
	assert.Contains(t, a.Notes, "has no [Recorded curves] section")
	assert.Equal(t, []string{"no [Recorded curves] section found"}, a.Warnings)
}

func TestAnalyzeRejectsBinary(t *testing.T) {
	_, err := AnalyzeText("bin", string([]byte{0xff, 0xfe, 0xfd}), Config{})
	assert.ErrorIs(t, err, curvelog.ErrNotText)
}

func TestAnalyzeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "press.log")
	require.NoError(t, os.WriteFile(path, []byte(pressLog), 0o644))

	a, err := AnalyzeFile(path, Config{})
	require.NoError(t, err)
	assert.Equal(t, path, a.FilePath)
	assert.Equal(t, "press.log", a.FileName)

	_, err = AnalyzeFile(filepath.Join(t.TempDir(), "nope.log"), Config{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestAnalyzeCollectsDiagnosticsAndWarnings(t *testing.T) {
	text := "[Recorded curves]\n[Record 1]\n1;0;1;T#0ms\n2;x;1;T#1ms\n3;1;1;T#bad\n4;2;1;T#100ms\n5;3;1;T#100ms\n"
	a, err := AnalyzeText("diag.log", text, Config{})
	require.NoError(t, err)

	assert.Equal(t, 1, a.DiagnosticCounts[curvelog.KindMalformedLine])
	assert.Equal(t, 1, a.DiagnosticCounts[curvelog.KindDurationDecode])
	assert.Equal(t, 1, a.DiagnosticCounts[curvelog.KindZeroInterval])
	require.Len(t, a.Warnings, 3)
	assert.Contains(t, a.Warnings[2], "irregular sampling")
	assert.Equal(t, 4, a.SampleCount)
	assert.Equal(t, 3, a.TimedSampleCount)
	assert.Contains(t, a.Notes, "1 sample(s) have an unreadable time")
	assert.Contains(t, a.Notes, "zero_interval: 1")
}

func TestAnalyzeDetectsAdvanceThenDwell(t *testing.T) {
	a, err := AnalyzeText("press.log", advanceThenDwell(), Config{})
	require.NoError(t, err)
	require.Len(t, a.Records, 1)

	r := a.Records[0]
	assert.True(t, r.Smoothed)
	assert.Equal(t, "advance 1.0s -> dwell 0.5s", r.Structure.CanonicalLabel)
	require.Len(t, r.Structure.Phases, 2)
	assert.Equal(t, PhaseAdvance, r.Structure.Phases[0].PhaseType)
	assert.Equal(t, 1, r.Structure.Phases[0].StartSample)
	assert.Equal(t, 10, r.Structure.Phases[0].EndSample)
	assert.Equal(t, PhaseDwell, r.Structure.Phases[1].PhaseType)
	assert.Greater(t, r.Structure.Confidence, 0.5)
	assert.Contains(t, a.Notes, "Structure: advance 1.0s -> dwell 0.5s")
}

func TestAnalyzeClampsOverflowingMetrics(t *testing.T) {
	huge := "1" + strings.Repeat("0", 308)
	text := "[Recorded curves]\n[Record 1]\n" +
		"1;-" + huge + ";1;T#0ms\n" +
		"2;" + huge + ";1;T#1ms\n" +
		"[Variables]\n"
	a, err := AnalyzeText("huge.log", text, Config{})
	require.NoError(t, err)
	require.Len(t, a.Records, 1)

	r := a.Records[0]
	assert.True(t, r.MetricOverflow)
	assert.Equal(t, math.MaxFloat64, r.Stroke)
	assert.Equal(t, math.MaxFloat64, r.Work)
	require.NotNil(t, r.MeanVelocity)
	assert.Equal(t, 0.0, *r.MeanVelocity)
	assert.Equal(t, 1, a.DiagnosticCounts[curvelog.KindNonFiniteVelocity])
	assert.Contains(t, a.Warnings, "record [Record 1]: stroke or work exceeds float64 range and was clamped")

	_, err = json.Marshal(a)
	assert.NoError(t, err)
}
