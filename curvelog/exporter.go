package curvelog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ExportFile parses a device log and writes a lossless, line-oriented export bundle.
// Output files:
//   - manifest.json
//   - samples.jsonl
//   - source.log (optional)
func ExportFile(inputPath, outputDir string, opts ExportOptions) (*ExportResult, error) {
	if strings.TrimSpace(inputPath) == "" {
		return nil, fmt.Errorf("input path is required")
	}
	if strings.TrimSpace(outputDir) == "" {
		return nil, fmt.Errorf("output directory is required")
	}

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return nil, fmt.Errorf("read log file: %w", err)
	}
	bundle, err := ParseBundle(data)
	if err != nil {
		return nil, fmt.Errorf("parse log file: %w", err)
	}
	parsed, sha := bundle.Result, bundle.SourceSHA256

	if err := ensureOutputDir(outputDir, opts.Overwrite); err != nil {
		return nil, err
	}

	samplesPath := filepath.Join(outputDir, "samples.jsonl")
	if err := writeJSONL(samplesPath, Envelopes(parsed)); err != nil {
		return nil, fmt.Errorf("write samples.jsonl: %w", err)
	}

	manifest := BuildManifest(parsed, filepath.Base(inputPath), sha, int64(len(data)))
	manifest.SourceFile = inputPath
	manifest.SamplesPath = filepath.Base(samplesPath)

	manifestPath := filepath.Join(outputDir, "manifest.json")
	if err := writeJSON(manifestPath, manifest); err != nil {
		return nil, fmt.Errorf("write manifest.json: %w", err)
	}

	sourceCopyPath := ""
	if opts.CopySourceFile {
		sourceCopyPath = filepath.Join(outputDir, "source.log")
		if err := os.WriteFile(sourceCopyPath, data, 0o644); err != nil {
			return nil, fmt.Errorf("copy source log file: %w", err)
		}
	}

	return &ExportResult{
		OutputDir:       outputDir,
		ManifestPath:    manifestPath,
		SamplesPath:     samplesPath,
		SourceCopyPath:  sourceCopyPath,
		RecordCount:     len(parsed.Records),
		SampleCount:     parsed.SampleCount(),
		DiagnosticCount: len(parsed.Diagnostics),
		SourceSHA256:    sha,
		SourceSizeBytes: bundle.SourceSizeBytes,
		Parsed:          parsed,
	}, nil
}

// BuildManifest describes a parse result for the export bundle.
func BuildManifest(parsed *ParseResult, sourceName, sha string, size int64) Manifest {
	records := make([]RecordSummary, 0, len(parsed.Records))
	for _, rec := range parsed.Records {
		records = append(records, RecordSummary{
			Index:       rec.Index,
			Header:      rec.Header,
			Line:        rec.Line,
			SampleCount: len(rec.Samples),
		})
	}
	return Manifest{
		FormatVersion:   ExportFormatVersion,
		GeneratedAt:     time.Now().UTC(),
		SourceFileName:  sourceName,
		SourceSHA256:    sha,
		SourceSizeBytes: size,
		LineCount:       parsed.LineCount,
		SectionFound:    parsed.SectionFound,
		SamplesPath:     "samples.jsonl",
		RecordCount:     len(parsed.Records),
		SampleCount:     parsed.SampleCount(),
		DiagnosticCount: len(parsed.Diagnostics),
		Records:         records,
		Warnings:        BuildWarnings(parsed),
		SchemaDescription: SchemaDetails{
			RecordType: "JSONL line-per-sample preserving record order, sample order and source line numbers",
			Notes: []string{
				"Only samples inside the " + SectionStartMarker + " section are exported.",
				"time_raw is the device duration string exactly as read; it is not decoded here.",
				"Point indices are kept as read; they are not guaranteed to be contiguous or sorted.",
				"Records with no samples appear in the manifest but produce no JSONL lines.",
				"Skipped lines are listed as warnings with their line numbers.",
			},
		},
	}
}

// Envelopes flattens a parse result into JSONL rows.
func Envelopes(parsed *ParseResult) []SampleEnvelope {
	out := make([]SampleEnvelope, 0, parsed.SampleCount())
	for _, rec := range parsed.Records {
		for i, s := range rec.Samples {
			out = append(out, SampleEnvelope{
				FormatVersion: ExportFormatVersion,
				RecordIndex:   rec.Index,
				RecordHeader:  rec.Header,
				SampleIndex:   i + 1,
				Line:          s.Line,
				Point:         s.Point,
				Position:      s.Position,
				Force:         s.Force,
				TimeRaw:       s.TimeRaw,
			})
		}
	}
	return out
}

func ensureOutputDir(path string, overwrite bool) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("read output directory: %w", err)
	}
	if len(entries) > 0 && !overwrite {
		return fmt.Errorf("output directory is not empty: %s (set overwrite=true to allow)", path)
	}
	return nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeJSONL(path string, rows []SampleEnvelope) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := bufio.NewWriterSize(f, 1<<20)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return err
		}
	}
	return buf.Flush()
}
