package pipeline

import (
	"fmt"

	curvenotes "curve-analyzer"
	"github.com/xuri/excelize/v2"
)

const summarySheet = "Summary"

var summaryHeader = []any{
	"record_index", "record_header", "samples", "timed_samples", "duration_ms",
	"stroke", "force_max", "position_at_peak_force", "work",
	"mean_velocity", "max_abs_velocity", "avg_sampling_interval_ms", "std_sampling_interval_ms",
	"structure",
}

// marshalEnrichedXLSX writes a summary sheet plus one sheet of samples per record.
func marshalEnrichedXLSX(analysis *curvenotes.Analysis, rows []EnrichedRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(summarySheet, "A1", &summaryHeader); err != nil {
		return nil, err
	}
	for i, r := range analysis.Records {
		row := []any{
			r.Index, r.Header, r.SampleCount, r.TimedSampleCount, intOrNil(r.DurationMS),
			r.Stroke, r.ForceMax, r.PositionAtPeak, r.Work,
			floatOrNil(r.MeanVelocity), floatOrNil(r.MaxAbsVelocity), floatOrNil(r.AvgIntervalMS), floatOrNil(r.StdIntervalMS),
			r.Structure.CanonicalLabel,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return nil, err
		}
	}

	header := make([]any, len(tableHeader))
	for i, h := range tableHeader {
		header[i] = h
	}
	sheetRow := make(map[string]int, len(analysis.Records))
	for _, r := range rows {
		sheet := recordSheetName(r.RecordIndex)
		next, ok := sheetRow[sheet]
		if !ok {
			if _, err := f.NewSheet(sheet); err != nil {
				return nil, err
			}
			if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
				return nil, err
			}
			next = 2
		}
		values := []any{
			r.RecordIndex, r.RecordHeader, r.SampleIndex, r.Line, r.Point, r.Position, r.Force,
			r.TimeRaw, intOrNil(r.ElapsedMS), r.TimeValid, floatOrNil(r.Velocity), floatOrNil(r.VelocityMA),
		}
		cell, err := excelize.CoordinatesToCellName(1, next)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, err
		}
		sheetRow[sheet] = next + 1
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func recordSheetName(index int) string {
	return fmt.Sprintf("Record %03d", index)
}

func floatOrNil(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func intOrNil(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
