//go:build !js

package pipeline

import (
	parquetbuffer "github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

type enrichedParquetRow struct {
	RecordIndex  int64    `parquet:"name=record_index, type=INT64"`
	RecordHeader string   `parquet:"name=record_header, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	SampleIndex  int64    `parquet:"name=sample_index, type=INT64"`
	Line         int64    `parquet:"name=line, type=INT64"`
	Point        int64    `parquet:"name=point, type=INT64"`
	Position     float64  `parquet:"name=position, type=DOUBLE"`
	Force        float64  `parquet:"name=force, type=DOUBLE"`
	TimeRaw      string   `parquet:"name=time_raw, type=BYTE_ARRAY, convertedtype=UTF8"`
	ElapsedMS    *int64   `parquet:"name=elapsed_ms, type=INT64, repetitiontype=OPTIONAL"`
	TimeValid    bool     `parquet:"name=time_valid, type=BOOLEAN"`
	Velocity     *float64 `parquet:"name=velocity, type=DOUBLE, repetitiontype=OPTIONAL"`
	VelocityMA   *float64 `parquet:"name=velocity_ma, type=DOUBLE, repetitiontype=OPTIONAL"`
}

func marshalEnrichedParquet(rows []EnrichedRow) ([]byte, error) {
	fw := parquetbuffer.NewBufferFile()
	pw, err := writer.NewParquetWriter(fw, new(enrichedParquetRow), 4)
	if err != nil {
		return nil, err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, r := range rows {
		row := enrichedParquetRow{
			RecordIndex:  int64(r.RecordIndex),
			RecordHeader: r.RecordHeader,
			SampleIndex:  int64(r.SampleIndex),
			Line:         int64(r.Line),
			Point:        int64(r.Point),
			Position:     r.Position,
			Force:        r.Force,
			TimeRaw:      r.TimeRaw,
			ElapsedMS:    r.ElapsedMS,
			TimeValid:    r.TimeValid,
			Velocity:     r.Velocity,
			VelocityMA:   r.VelocityMA,
		}
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			return nil, err
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, err
	}
	if err := fw.Close(); err != nil {
		return nil, err
	}
	return append([]byte(nil), fw.Bytes()...), nil
}
