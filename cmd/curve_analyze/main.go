package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"curve-analyzer/internal/config"
	"curve-analyzer/internal/logging"
	"curve-analyzer/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "curve_analyze: %v\n", err)
		os.Exit(1)
	}

	var (
		logPath    = flag.String("log", "", "Path to input device log")
		outDir     = flag.String("out", "", "Output directory")
		format     = flag.String("format", cfg.Export.Format, "Enriched sample format: parquet|csv|xlsx")
		window     = flag.Int("window", cfg.Analysis.SmoothingWindow, "Velocity moving-average window (samples)")
		dwell      = flag.Float64("dwell-velocity", cfg.Analysis.DwellVelocity, "Velocity magnitude treated as standing still")
		charts     = flag.Bool("charts", cfg.Export.Charts, "Render PNG charts per record")
		chartAxes  = flag.String("chart-axes", cfg.Export.ChartAxes, "Chart axis pairs, e.g. position:force,elapsed_ms:velocity")
		overwrite  = flag.Bool("overwrite", cfg.Export.Overwrite, "Allow writing into non-empty output directories")
		copySource = flag.Bool("copy-source", cfg.Export.CopySource, "Copy the original log into the output directory")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s --log in.log --out outdir [--format parquet|csv|xlsx] [--window 5] [--charts]\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if strings.TrimSpace(*logPath) == "" || strings.TrimSpace(*outDir) == "" {
		flag.Usage()
		os.Exit(2)
	}

	axes, err := pipeline.ParseChartAxes(*chartAxes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "curve_analyze: %v\n", err)
		os.Exit(2)
	}

	logger, closer, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "curve_analyze: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := pipeline.Run(ctx, pipeline.Options{
		LogPath:         *logPath,
		OutDir:          *outDir,
		Format:          *format,
		Overwrite:       *overwrite,
		CopySource:      *copySource,
		SmoothingWindow: *window,
		DwellVelocity:   *dwell,
		Parallelism:     cfg.Analysis.Parallelism,
		Charts:          *charts,
		ChartAxes:       axes,
		Logger:          logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "curve_analyze failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("curve_analyze complete\n")
	fmt.Printf("Output dir:          %s\n", result.OutputDir)
	fmt.Printf("manifest.json:       %s\n", result.ManifestPath)
	fmt.Printf("samples.jsonl:       %s\n", result.SamplesPath)
	fmt.Printf("enriched samples:    %s\n", result.EnrichedSamplesPath)
	fmt.Printf("record summary:      %s\n", result.RecordSummaryPath)
	fmt.Printf("diagnostics:         %s\n", result.DiagnosticsPath)
	fmt.Printf("curve notes:         %s\n", result.NotesPath)
	if result.SourceCopyPath != "" {
		fmt.Printf("source copy:         %s\n", result.SourceCopyPath)
	}
	for _, p := range result.ChartPaths {
		fmt.Printf("chart:               %s\n", p)
	}
	fmt.Printf("records / samples:   %d / %d\n", result.RecordCount, result.SampleCount)
	for _, w := range result.Warnings {
		fmt.Printf("warning:             %s\n", w)
	}
}
