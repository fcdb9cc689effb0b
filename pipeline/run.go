package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	curvenotes "curve-analyzer"
	"curve-analyzer/curvelog"
	"curve-analyzer/derive"
)

const (
	manifestName      = "manifest.json"
	samplesName       = "samples.jsonl"
	sourceCopyName    = "source.log"
	recordSummaryName = "record_summary.json"
	diagnosticsName   = "diagnostics.json"
	notesName         = "curve_notes.md"
	enrichedBaseName  = "enriched_samples"
)

// Run executes the full curve_analyze pipeline and writes all artifacts.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if strings.TrimSpace(opts.LogPath) == "" {
		return nil, fmt.Errorf("log path is required")
	}
	if strings.TrimSpace(opts.OutDir) == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	format, err := normalizeFormat(opts.Format)
	if err != nil {
		return nil, err
	}
	logger := loggerOrDefault(opts.Logger)

	baseExport, err := curvelog.ExportFile(opts.LogPath, opts.OutDir, curvelog.ExportOptions{
		Overwrite:      opts.Overwrite,
		CopySourceFile: opts.CopySource,
	})
	if err != nil {
		return nil, err
	}

	analysis, err := analyze(ctx, filepath.Base(opts.LogPath), baseExport.Parsed, curvenotes.Config{
		SmoothingWindow: opts.SmoothingWindow,
		DwellVelocity:   opts.DwellVelocity,
		Parallelism:     opts.Parallelism,
	}, logger)
	if err != nil {
		return nil, err
	}
	analysis.FilePath = opts.LogPath

	files, charts, err := renderArtifacts(analysis, format, opts.Charts, opts.ChartAxes)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(opts.OutDir, name), files[name], 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", name, err)
		}
	}

	chartPaths := make([]string, 0, len(charts))
	for _, name := range charts {
		chartPaths = append(chartPaths, filepath.Join(opts.OutDir, name))
	}

	logger.Info("curve analysis written",
		slog.String("log", opts.LogPath),
		slog.String("out_dir", opts.OutDir),
		slog.String("format", format),
		slog.Int("records", analysis.RecordCount),
		slog.Int("samples", analysis.SampleCount),
		slog.Int("diagnostics", len(analysis.Diagnostics)),
		slog.Int("charts", len(charts)),
	)

	return &Result{
		OutputDir:           opts.OutDir,
		ManifestPath:        baseExport.ManifestPath,
		SamplesPath:         baseExport.SamplesPath,
		SourceCopyPath:      baseExport.SourceCopyPath,
		EnrichedSamplesPath: filepath.Join(opts.OutDir, enrichedName(format)),
		RecordSummaryPath:   filepath.Join(opts.OutDir, recordSummaryName),
		DiagnosticsPath:     filepath.Join(opts.OutDir, diagnosticsName),
		NotesPath:           filepath.Join(opts.OutDir, notesName),
		ChartPaths:          chartPaths,
		RecordCount:         analysis.RecordCount,
		SampleCount:         analysis.SampleCount,
		Warnings:            analysis.Warnings,
	}, nil
}

// RunBytes executes the pipeline fully in memory.
func RunBytes(ctx context.Context, opts BytesOptions) (*BytesResult, error) {
	if len(opts.LogData) == 0 {
		return nil, curvelog.ErrEmptyInput
	}
	format, err := normalizeFormat(opts.Format)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(opts.SourceFileName)
	if name == "" {
		name = "input.log"
	}
	logger := loggerOrDefault(opts.Logger)

	bundle, err := curvelog.ParseBundle(opts.LogData)
	if err != nil {
		return nil, fmt.Errorf("parse log: %w", err)
	}
	parsed := bundle.Result

	analysis, err := analyze(ctx, name, parsed, curvenotes.Config{
		SmoothingWindow: opts.SmoothingWindow,
		DwellVelocity:   opts.DwellVelocity,
		Parallelism:     opts.Parallelism,
	}, logger)
	if err != nil {
		return nil, err
	}

	files, _, err := renderArtifacts(analysis, format, opts.Charts, opts.ChartAxes)
	if err != nil {
		return nil, err
	}

	manifest := curvelog.BuildManifest(parsed, name, bundle.SourceSHA256, bundle.SourceSizeBytes)
	if files[manifestName], err = curvelog.MarshalJSON(manifest); err != nil {
		return nil, fmt.Errorf("marshal %s: %w", manifestName, err)
	}
	if files[samplesName], err = curvelog.MarshalJSONL(curvelog.Envelopes(parsed)); err != nil {
		return nil, fmt.Errorf("marshal %s: %w", samplesName, err)
	}
	if opts.CopySource {
		files[sourceCopyName] = append([]byte(nil), opts.LogData...)
	}

	return &BytesResult{
		Files:    files,
		Warnings: analysis.Warnings,
		Analysis: analysis,
	}, nil
}

func analyze(ctx context.Context, name string, parsed *curvelog.ParseResult, cfg curvenotes.Config, logger *slog.Logger) (*curvenotes.Analysis, error) {
	analysis, err := curvenotes.AnalyzeParsed(ctx, name, parsed, cfg)
	if err != nil {
		return nil, fmt.Errorf("analyze log: %w", err)
	}
	logDiagnostics(ctx, logger, analysis.Diagnostics)
	return analysis, nil
}

// renderArtifacts builds every analysis artifact except the manifest and
// sample stream. It returns the files and the chart names among them.
func renderArtifacts(analysis *curvenotes.Analysis, format string, charts bool, axes []ChartAxes) (map[string][]byte, []string, error) {
	files := make(map[string][]byte, 8)
	rows := BuildRows(analysis.Enriched)

	table, err := marshalTable(format, analysis, rows)
	if err != nil {
		return nil, nil, fmt.Errorf("write enriched %s: %w", format, err)
	}
	files[enrichedName(format)] = table

	summary := RecordSummaryFile{
		FormatVersion:   recordSummaryVersion,
		SourceFileName:  analysis.FileName,
		SmoothingWindow: analysis.SmoothingWindow,
		Records:         analysis.Records,
	}
	if files[recordSummaryName], err = curvelog.MarshalJSON(summary); err != nil {
		return nil, nil, fmt.Errorf("marshal %s: %w", recordSummaryName, err)
	}

	diags := DiagnosticsFile{
		Counts:      curvelog.CountByKind(analysis.Diagnostics),
		Diagnostics: analysis.Diagnostics,
		Warnings:    analysis.Warnings,
	}
	if diags.Diagnostics == nil {
		diags.Diagnostics = []curvelog.Diagnostic{}
	}
	if files[diagnosticsName], err = curvelog.MarshalJSON(diags); err != nil {
		return nil, nil, fmt.Errorf("marshal %s: %w", diagnosticsName, err)
	}

	files[notesName] = []byte(notesMarkdown(analysis))

	var chartNames []string
	if charts {
		rendered, err := renderCharts(analysis.Enriched, axes)
		if err != nil {
			return nil, nil, fmt.Errorf("render charts: %w", err)
		}
		for name, data := range rendered {
			files[name] = data
			chartNames = append(chartNames, name)
		}
		sort.Strings(chartNames)
	}
	return files, chartNames, nil
}

func marshalTable(format string, analysis *curvenotes.Analysis, rows []EnrichedRow) ([]byte, error) {
	switch format {
	case FormatCSV:
		return marshalEnrichedCSV(rows)
	case FormatXLSX:
		return marshalEnrichedXLSX(analysis, rows)
	default:
		return marshalEnrichedParquet(rows)
	}
}

// BuildRows flattens enriched records into table rows in file order.
func BuildRows(records []derive.EnrichedRecord) []EnrichedRow {
	n := 0
	for _, r := range records {
		n += len(r.Samples)
	}
	rows := make([]EnrichedRow, 0, n)
	for _, r := range records {
		for i, s := range r.Samples {
			rows = append(rows, EnrichedRow{
				RecordIndex:  r.Index,
				RecordHeader: r.Header,
				SampleIndex:  i + 1,
				Line:         s.Line,
				Point:        s.Point,
				Position:     s.Position,
				Force:        s.Force,
				TimeRaw:      s.TimeRaw,
				ElapsedMS:    s.ElapsedMS,
				TimeValid:    s.TimeValid(),
				Velocity:     s.Velocity,
				VelocityMA:   s.VelocityMA,
			})
		}
	}
	return rows
}

var tableHeader = []string{
	"record_index", "record_header", "sample_index", "line", "point", "position", "force",
	"time_raw", "elapsed_ms", "time_valid", "velocity", "velocity_ma",
}

func tableRecord(r EnrichedRow) []string {
	return []string{
		strconv.Itoa(r.RecordIndex),
		r.RecordHeader,
		strconv.Itoa(r.SampleIndex),
		strconv.Itoa(r.Line),
		strconv.FormatUint(r.Point, 10),
		formatFloat(r.Position),
		formatFloat(r.Force),
		r.TimeRaw,
		formatIntPtr(r.ElapsedMS),
		strconv.FormatBool(r.TimeValid),
		formatFloatPtr(r.Velocity),
		formatFloatPtr(r.VelocityMA),
	}
}

func marshalEnrichedCSV(rows []EnrichedRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(tableHeader); err != nil {
		return nil, err
	}
	for _, r := range rows {
		if err := w.Write(tableRecord(r)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func notesMarkdown(a *curvenotes.Analysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Curve notes: %s\n\n", a.FileName)
	b.WriteString("```text\n")
	b.WriteString(a.Notes)
	b.WriteString("\n```\n")
	return b.String()
}

func logDiagnostics(ctx context.Context, logger *slog.Logger, diags []curvelog.Diagnostic) {
	for _, d := range diags {
		level := slog.LevelDebug
		if d.Warning() {
			level = slog.LevelWarn
		}
		logger.LogAttrs(ctx, level, "log diagnostic",
			slog.String("kind", string(d.Kind)),
			slog.Int("line", d.Line),
			slog.Int("record", d.Record),
			slog.String("message", d.Message),
		)
	}
}

func normalizeFormat(format string) (string, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = FormatParquet
	}
	switch format {
	case FormatParquet, FormatCSV, FormatXLSX:
		return format, nil
	default:
		return "", fmt.Errorf("unsupported format %q (expected parquet|csv|xlsx)", format)
	}
}

func enrichedName(format string) string {
	return enrichedBaseName + "." + format
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatIntPtr(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}
