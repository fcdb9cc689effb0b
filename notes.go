package curvenotes

import (
	"fmt"
	"strings"

	"curve-analyzer/curvelog"
)

// NoRecordsMessage is the notes text for a log without any record.
const NoRecordsMessage = "No records found under '" + curvelog.SectionStartMarker + "'."

// BuildCurveNotes turns extracted metrics into a readable per-record report.
func BuildCurveNotes(a *Analysis) string {
	if a == nil {
		return ""
	}

	var b strings.Builder

	name := a.FileName
	if name == "" {
		name = "(unnamed log)"
	}
	fmt.Fprintf(&b, "Log: %s\n", name)
	fmt.Fprintf(
		&b,
		"Lines %d | Records %d | Samples %d (%d timed) | Smoothing window %d\n",
		a.LineCount,
		a.RecordCount,
		a.SampleCount,
		a.TimedSampleCount,
		a.SmoothingWindow,
	)

	if len(a.Records) == 0 {
		b.WriteString("\n")
		b.WriteString(NoRecordsMessage)
		b.WriteByte('\n')
		if !a.SectionFound {
			fmt.Fprintf(&b, "The log has no %s section.\n", curvelog.SectionStartMarker)
		}
		return strings.TrimSpace(b.String())
	}

	for _, r := range a.Records {
		fmt.Fprintf(&b, "\nRecord %s (#%d, line %d)\n", r.Header, r.Index, r.Line)
		if r.SampleCount == 0 {
			b.WriteString("- No samples.\n")
			continue
		}
		fmt.Fprintf(&b, "- Samples %d (%d timed) | Duration %s\n", r.SampleCount, r.TimedSampleCount, durationText(r.DurationMS))
		fmt.Fprintf(
			&b,
			"- Stroke %.3f (%.3f .. %.3f) | Force %.2f min / %.2f mean / %.2f max\n",
			r.Stroke,
			r.PositionMin,
			r.PositionMax,
			r.ForceMin,
			r.ForceMean,
			r.ForceMax,
		)
		fmt.Fprintf(&b, "- Peak force %.2f at position %.3f | Work %.3f (force x position units)\n", r.ForceMax, r.PositionAtPeak, r.Work)
		if r.MeanVelocity != nil {
			fmt.Fprintf(&b, "- Velocity %.3f mean / %.3f max |v| per s", *r.MeanVelocity, derefOr(r.MaxAbsVelocity, 0))
			if r.Smoothed {
				fmt.Fprintf(&b, " (smoothed, window %d)", a.SmoothingWindow)
			}
			b.WriteByte('\n')
		}
		if r.AvgIntervalMS != nil {
			fmt.Fprintf(&b, "- Sampling %.1f ms mean", *r.AvgIntervalMS)
			if r.StdIntervalMS != nil {
				fmt.Fprintf(&b, " / %.1f ms std", *r.StdIntervalMS)
			}
			if r.IntervalJitterPct != nil {
				fmt.Fprintf(&b, " (jitter %.1f%%)", *r.IntervalJitterPct)
			}
			b.WriteByte('\n')
		}
		if r.Structure.CanonicalLabel != "" {
			fmt.Fprintf(&b, "- Structure: %s (confidence %.0f%%)\n", r.Structure.CanonicalLabel, r.Structure.Confidence*100)
		}
		if note := samplingAssessment(r); note != "" {
			fmt.Fprintf(&b, "- %s\n", note)
		}
	}

	if len(a.Warnings) > 0 {
		b.WriteString("\nWarnings\n")
		for _, w := range a.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}
	if len(a.DiagnosticCounts) > 0 {
		b.WriteString("\nDiagnostics\n")
		for _, kind := range []curvelog.DiagnosticKind{
			curvelog.KindMalformedLine,
			curvelog.KindOrphanSample,
			curvelog.KindDurationDecode,
			curvelog.KindZeroInterval,
			curvelog.KindNonMonotonicTime,
			curvelog.KindNonFiniteVelocity,
		} {
			if n := a.DiagnosticCounts[kind]; n > 0 {
				fmt.Fprintf(&b, "- %s: %d\n", kind, n)
			}
		}
	}

	return strings.TrimSpace(b.String())
}

func samplingAssessment(r RecordAnalysis) string {
	switch {
	case r.TimedSampleCount < r.SampleCount:
		return fmt.Sprintf("%d sample(s) have an unreadable time and are left out of velocity and interval figures.", r.SampleCount-r.TimedSampleCount)
	case r.TimedSampleCount < 2:
		return "Too few timed samples for velocity or interval statistics."
	case r.IntervalJitterPct != nil && *r.IntervalJitterPct > jitterWarnPct:
		return "Sampling is irregular; velocity peaks may be exaggerated."
	case !r.Smoothed:
		return "Record is shorter than the smoothing window; velocities are unsmoothed."
	default:
		return ""
	}
}

func durationText(ms *int64) string {
	if ms == nil {
		return "n/a"
	}
	return shortDuration(*ms)
}

func derefOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
