package curvelog

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// scanState is the two-state machine of the section scanner.
type scanState uint8

const (
	stateOutside scanState = iota
	stateInSection
)

// transition applies the marker checks for one line. Both checks are
// substring matches and both run, start first: a line carrying both markers
// leaves the scanner outside the section.
func (s scanState) transition(line string) scanState {
	if strings.Contains(line, SectionStartMarker) {
		s = stateInSection
	}
	if strings.Contains(line, SectionEndMarker) {
		s = stateOutside
	}
	return s
}

var (
	decimalPattern      = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)$`)
	recordNumberPattern = regexp.MustCompile(`^\[Record\s+(\d+)\s*\]`)
)

type parseState struct {
	state   scanState
	current int // index into result.Records, -1 while no record is open in this section
	result  ParseResult
}

// Parse scans a device log and returns every record found inside the
// recorded-curves section. It never fails: lines that cannot be used are
// skipped and reported in ParseResult.Diagnostics.
func Parse(text string) *ParseResult {
	ps := &parseState{
		current: -1,
		result: ParseResult{
			Records: make([]Record, 0, 4),
		},
	}
	text = strings.TrimPrefix(text, "\ufeff")
	lineNo := 0
	eachLine(text, func(line string) {
		lineNo++
		ps.scanLine(lineNo, line)
	})
	ps.result.LineCount = lineNo
	return &ps.result
}

// ParseBytes checks that data is UTF-8 text and parses it.
func ParseBytes(data []byte) (*ParseResult, error) {
	if !utf8.Valid(data) {
		return nil, ErrNotText
	}
	return Parse(string(data)), nil
}

func (ps *parseState) scanLine(lineNo int, line string) {
	next := ps.state.transition(line)
	if next != ps.state {
		// Records never continue across a section boundary.
		ps.current = -1
		if next == stateInSection {
			ps.result.SectionFound = true
		}
	}
	ps.state = next
	if ps.state != stateInSection {
		return
	}

	trimmed := strings.TrimLeft(line, " \t")
	if strings.HasPrefix(trimmed, RecordHeaderPrefix) {
		ps.openRecord(lineNo, strings.TrimSpace(trimmed))
		return
	}
	if !looksLikeData(trimmed) {
		return
	}

	sample, err := parseSampleLine(trimmed)
	if err != nil {
		ps.diag(Diagnostic{
			Kind:    KindMalformedLine,
			Line:    lineNo,
			Record:  ps.current + 1,
			Text:    strings.TrimSpace(line),
			Message: err.Error(),
		})
		return
	}
	sample.Line = lineNo
	if ps.current < 0 {
		ps.diag(Diagnostic{
			Kind:    KindOrphanSample,
			Line:    lineNo,
			Text:    strings.TrimSpace(line),
			Message: "sample before any record header in section; dropped",
		})
		return
	}
	rec := &ps.result.Records[ps.current]
	rec.Samples = append(rec.Samples, sample)
}

func (ps *parseState) openRecord(lineNo int, header string) {
	rec := Record{
		Index:   len(ps.result.Records) + 1,
		Header:  header,
		Line:    lineNo,
		Samples: make([]Sample, 0, 64),
	}
	if m := recordNumberPattern.FindStringSubmatch(header); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			rec.Number = n
			rec.HasNumber = true
		}
	}
	ps.result.Records = append(ps.result.Records, rec)
	ps.current = len(ps.result.Records) - 1
}

func (ps *parseState) diag(d Diagnostic) {
	ps.result.Diagnostics = append(ps.result.Diagnostics, d)
}

// looksLikeData reports whether a line is meant to be a sample line: it
// starts with a digit and has at least one field separator.
func looksLikeData(trimmed string) bool {
	if trimmed == "" || trimmed[0] < '0' || trimmed[0] > '9' {
		return false
	}
	return strings.Contains(trimmed, ";")
}

// parseSampleLine reads "<uint point>;<position>;<force>;T#<duration>".
// The duration is kept verbatim; decoding happens during enrichment.
func parseSampleLine(line string) (Sample, error) {
	fields := strings.Split(line, ";")
	if len(fields) == 5 && strings.TrimSpace(fields[4]) == "" {
		fields = fields[:4]
	}
	if len(fields) != 4 {
		return Sample{}, fmt.Errorf("expected 4 fields, got %d", len(fields))
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	point, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return Sample{}, fmt.Errorf("point %q is not an unsigned integer", fields[0])
	}
	position, err := parseDecimal(fields[1])
	if err != nil {
		return Sample{}, fmt.Errorf("position: %w", err)
	}
	force, err := parseDecimal(fields[2])
	if err != nil {
		return Sample{}, fmt.Errorf("force: %w", err)
	}
	if !strings.HasPrefix(fields[3], DurationPrefix) {
		return Sample{}, fmt.Errorf("time %q does not start with %s", fields[3], DurationPrefix)
	}

	return Sample{
		Point:    point,
		Position: position,
		Force:    force,
		TimeRaw:  fields[3],
	}, nil
}

func parseDecimal(s string) (float64, error) {
	if !decimalPattern.MatchString(s) {
		return 0, fmt.Errorf("%q is not a decimal number", s)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q is out of range", s)
	}
	return v, nil
}

// eachLine calls fn for every line of text, splitting on "\n", "\r\n" and a
// lone "\r". A trailing line break does not produce an extra empty line.
func eachLine(text string, fn func(string)) {
	for len(text) > 0 {
		i := strings.IndexAny(text, "\r\n")
		if i < 0 {
			fn(text)
			return
		}
		fn(text[:i])
		if text[i] == '\r' && i+1 < len(text) && text[i+1] == '\n' {
			i++
		}
		text = text[i+1:]
	}
}
