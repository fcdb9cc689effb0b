package curvelog

import "time"

const (
	// ExportFormatVersion identifies the on-disk schema for parsed-sample exports.
	ExportFormatVersion = "curve_log_jsonl_v1"

	// SectionStartMarker opens the recorded-curves section of a device log.
	SectionStartMarker = "[Recorded curves]"
	// SectionEndMarker opens the section that follows the recorded curves.
	SectionEndMarker = "[Variables]"
	// RecordHeaderPrefix starts every record header line, e.g. "[Record 3]".
	RecordHeaderPrefix = "[Record "
	// DurationPrefix starts every device duration string, e.g. "T#4m17s47ms".
	DurationPrefix = "T#"
)

// Sample is one measurement line of a record, exactly as read.
type Sample struct {
	Point    uint64  `json:"point"`
	Position float64 `json:"position"`
	Force    float64 `json:"force"`
	TimeRaw  string  `json:"time_raw"`
	// Line is the 1-based line number in the source text.
	Line int `json:"line"`
}

// Record is the ordered group of samples that follows one record header.
type Record struct {
	Index     int      `json:"index"`
	Header    string   `json:"header"`
	Number    int      `json:"number,omitempty"`
	HasNumber bool     `json:"has_number"`
	Line      int      `json:"line"`
	Samples   []Sample `json:"samples"`
}

// ParseResult is everything one scan of a log produced.
// Records keep header order; samples keep file order.
type ParseResult struct {
	Records      []Record     `json:"records"`
	Diagnostics  []Diagnostic `json:"diagnostics,omitempty"`
	LineCount    int          `json:"line_count"`
	SectionFound bool         `json:"section_found"`
}

// SampleCount returns the number of samples across all records.
func (r *ParseResult) SampleCount() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, rec := range r.Records {
		n += len(rec.Samples)
	}
	return n
}

// ExportOptions controls export behavior.
type ExportOptions struct {
	// Overwrite allows writing into a non-empty output directory.
	Overwrite bool

	// CopySourceFile writes a byte-for-byte copy of the source log to the output directory.
	CopySourceFile bool
}

// ExportResult describes generated files.
type ExportResult struct {
	OutputDir       string `json:"output_dir"`
	ManifestPath    string `json:"manifest_path"`
	SamplesPath     string `json:"samples_path"`
	SourceCopyPath  string `json:"source_copy_path,omitempty"`
	RecordCount     int    `json:"record_count"`
	SampleCount     int    `json:"sample_count"`
	DiagnosticCount int    `json:"diagnostic_count"`
	SourceSHA256    string `json:"source_sha256"`
	SourceSizeBytes int64  `json:"source_size_bytes"`

	// Parsed is the parse result the bundle was written from.
	Parsed *ParseResult `json:"-"`
}

// Manifest captures export metadata and pointers to exported files.
type Manifest struct {
	FormatVersion     string          `json:"format_version"`
	GeneratedAt       time.Time       `json:"generated_at"`
	SourceFile        string          `json:"source_file,omitempty"`
	SourceFileName    string          `json:"source_file_name"`
	SourceSHA256      string          `json:"source_sha256"`
	SourceSizeBytes   int64           `json:"source_size_bytes"`
	LineCount         int             `json:"line_count"`
	SectionFound      bool            `json:"section_found"`
	SamplesPath       string          `json:"samples_path"`
	RecordCount       int             `json:"record_count"`
	SampleCount       int             `json:"sample_count"`
	DiagnosticCount   int             `json:"diagnostic_count"`
	Records           []RecordSummary `json:"records"`
	Warnings          []string        `json:"warnings,omitempty"`
	SchemaDescription SchemaDetails   `json:"schema_description"`
}

// RecordSummary is the manifest view of one record.
type RecordSummary struct {
	Index       int    `json:"index"`
	Header      string `json:"header"`
	Line        int    `json:"line"`
	SampleCount int    `json:"sample_count"`
}

// SchemaDetails documents the record shape for downstream applications.
type SchemaDetails struct {
	RecordType string   `json:"record_type"`
	Notes      []string `json:"notes"`
}

// SampleEnvelope is one JSONL line in samples.jsonl.
// The stream preserves record order and sample order within each record.
type SampleEnvelope struct {
	FormatVersion string  `json:"format_version"`
	RecordIndex   int     `json:"record_index"`
	RecordHeader  string  `json:"record_header"`
	SampleIndex   int     `json:"sample_index"`
	Line          int     `json:"line"`
	Point         uint64  `json:"point"`
	Position      float64 `json:"position"`
	Force         float64 `json:"force"`
	TimeRaw       string  `json:"time_raw"`
}
