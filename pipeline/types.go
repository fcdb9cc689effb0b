package pipeline

import (
	"log/slog"

	curvenotes "curve-analyzer"
	"curve-analyzer/curvelog"
)

// Table formats for the enriched sample table.
const (
	FormatParquet = "parquet"
	FormatCSV     = "csv"
	FormatXLSX    = "xlsx"
)

const recordSummaryVersion = "curve_record_summary_v1"

// Options configures the curve_analyze pipeline.
type Options struct {
	LogPath         string
	OutDir          string
	Format          string // parquet|csv|xlsx
	Overwrite       bool
	CopySource      bool
	SmoothingWindow int
	DwellVelocity   float64
	Parallelism     int
	Charts          bool
	ChartAxes       []ChartAxes // empty uses DefaultChartAxes
	Logger          *slog.Logger
}

// BytesOptions configures an in-memory run (WASM, HTTP).
type BytesOptions struct {
	SourceFileName  string
	LogData         []byte
	Format          string
	CopySource      bool
	SmoothingWindow int
	DwellVelocity   float64
	Parallelism     int
	Charts          bool
	ChartAxes       []ChartAxes
	Logger          *slog.Logger
}

// Result returns generated output paths.
type Result struct {
	OutputDir           string   `json:"output_dir"`
	ManifestPath        string   `json:"manifest_path"`
	SamplesPath         string   `json:"samples_path"`
	SourceCopyPath      string   `json:"source_copy_path,omitempty"`
	EnrichedSamplesPath string   `json:"enriched_samples_path"`
	RecordSummaryPath   string   `json:"record_summary_path"`
	DiagnosticsPath     string   `json:"diagnostics_path"`
	NotesPath           string   `json:"notes_path"`
	ChartPaths          []string `json:"chart_paths,omitempty"`
	RecordCount         int      `json:"record_count"`
	SampleCount         int      `json:"sample_count"`
	Warnings            []string `json:"warnings,omitempty"`
}

// BytesResult holds in-memory artifacts keyed by file name.
type BytesResult struct {
	Files    map[string][]byte
	Warnings []string
	Analysis *curvenotes.Analysis
}

// EnrichedRow is one row of the enriched sample table.
type EnrichedRow struct {
	RecordIndex  int      `json:"record_index"`
	RecordHeader string   `json:"record_header"`
	SampleIndex  int      `json:"sample_index"`
	Line         int      `json:"line"`
	Point        uint64   `json:"point"`
	Position     float64  `json:"position"`
	Force        float64  `json:"force"`
	TimeRaw      string   `json:"time_raw"`
	ElapsedMS    *int64   `json:"elapsed_ms,omitempty"`
	TimeValid    bool     `json:"time_valid"`
	Velocity     *float64 `json:"velocity,omitempty"`
	VelocityMA   *float64 `json:"velocity_ma,omitempty"`
}

// RecordSummaryFile is written to record_summary.json.
type RecordSummaryFile struct {
	FormatVersion   string                      `json:"format_version"`
	SourceFileName  string                      `json:"source_file_name"`
	SmoothingWindow int                         `json:"smoothing_window"`
	Records         []curvenotes.RecordAnalysis `json:"records"`
}

// DiagnosticsFile is written to diagnostics.json.
type DiagnosticsFile struct {
	Counts      map[curvelog.DiagnosticKind]int `json:"counts"`
	Diagnostics []curvelog.Diagnostic           `json:"diagnostics"`
	Warnings    []string                        `json:"warnings,omitempty"`
}

// ChartAxes names the two table columns plotted against each other.
type ChartAxes struct {
	X string `json:"x"`
	Y string `json:"y"`
}
