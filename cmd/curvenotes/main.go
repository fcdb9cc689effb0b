package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	curvenotes "curve-analyzer"
	"curve-analyzer/derive"
)

func main() {
	var (
		window      = flag.Int("window", derive.DefaultSmoothingWindow, "Velocity moving-average window (samples)")
		dwell       = flag.Float64("dwell-velocity", curvenotes.DefaultDwellVelocity, "Velocity magnitude treated as standing still")
		jsonOut     = flag.Bool("json", false, "Emit full analysis as JSON")
		showRecords = flag.Bool("records", false, "Include a record-by-record table in text output")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <path-to-log-file>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	filePath := flag.Arg(0)
	analysis, err := curvenotes.AnalyzeFile(filePath, curvenotes.Config{
		SmoothingWindow: *window,
		DwellVelocity:   *dwell,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "analysis failed: %v\n", err)
		os.Exit(1)
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(analysis); err != nil {
			fmt.Fprintf(os.Stderr, "json encode failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Println(analysis.Notes)
	if *showRecords && len(analysis.Records) > 0 {
		fmt.Println()
		fmt.Println("Record Summary")
		for _, rec := range analysis.Records {
			fmt.Printf(
				"- %-12s | %4d samples | %8s | stroke %8.3f | peak %9.3f | %s\n",
				rec.Header,
				rec.SampleCount,
				durationCell(rec.DurationMS),
				rec.Stroke,
				rec.ForceMax,
				rec.Structure.CanonicalLabel,
			)
		}
	}
}

func durationCell(ms *int64) string {
	if ms == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.3fs", float64(*ms)/1000)
}
