package curvelog

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// Bundle is the in-memory counterpart of an ExportFile run.
type Bundle struct {
	Result          *ParseResult
	SourceSHA256    string
	SourceSizeBytes int64
}

// ParseBundle parses raw log bytes and fingerprints them.
func ParseBundle(data []byte) (*Bundle, error) {
	parsed, err := ParseBytes(data)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)
	return &Bundle{
		Result:          parsed,
		SourceSHA256:    hex.EncodeToString(sum[:]),
		SourceSizeBytes: int64(len(data)),
	}, nil
}

// MarshalJSON renders indented JSON with a trailing newline.
func MarshalJSON(v any) ([]byte, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	out = append(out, '\n')
	return out, nil
}

// MarshalJSONL renders sample envelopes as JSONL bytes.
func MarshalJSONL(rows []SampleEnvelope) ([]byte, error) {
	var buf bytes.Buffer
	w := bufio.NewWriterSize(&buf, 1<<20)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return nil, err
		}
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildWarnings returns deterministic parse-quality warning notes.
func BuildWarnings(parsed *ParseResult) []string {
	if parsed == nil {
		return nil
	}
	warnings := make([]string, 0, 4)
	if !parsed.SectionFound {
		warnings = append(warnings, "no "+SectionStartMarker+" section found")
	} else if len(parsed.Records) == 0 {
		warnings = append(warnings, "no records found under '"+SectionStartMarker+"'")
	}
	for _, rec := range parsed.Records {
		if len(rec.Samples) == 0 {
			warnings = append(warnings, "record "+rec.Header+" has no samples")
		}
	}
	for _, d := range parsed.Diagnostics {
		if !d.Warning() {
			continue
		}
		if s := strings.TrimSpace(d.String()); s != "" {
			warnings = append(warnings, s)
		}
	}
	return dedupeStrings(warnings)
}

func dedupeStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
