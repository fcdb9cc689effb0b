package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"curve-analyzer/curvelog"
)

func main() {
	var (
		outDir     = flag.String("out-dir", "", "Output directory for manifest.json and samples.jsonl")
		overwrite  = flag.Bool("overwrite", true, "Allow writing to non-empty output directories")
		copySource = flag.Bool("copy-source", true, "Copy the original log into the export directory as source.log")
	)

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <path-to-log-file>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	inputPath := flag.Arg(0)
	if strings.TrimSpace(*outDir) == "" {
		base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
		*outDir = filepath.Join(".", "exports", base+"_"+curvelog.ExportFormatVersion)
	}

	result, err := curvelog.ExportFile(inputPath, *outDir, curvelog.ExportOptions{
		Overwrite:      *overwrite,
		CopySourceFile: *copySource,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "export failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Export complete\n")
	fmt.Printf("Output dir:  %s\n", result.OutputDir)
	fmt.Printf("Manifest:    %s\n", result.ManifestPath)
	fmt.Printf("Samples:     %s\n", result.SamplesPath)
	if result.SourceCopyPath != "" {
		fmt.Printf("Source log:  %s\n", result.SourceCopyPath)
	}
	fmt.Printf("Records:     %d (%d samples, %d diagnostics)\n", result.RecordCount, result.SampleCount, result.DiagnosticCount)
	fmt.Printf("SHA-256:     %s\n", result.SourceSHA256)
}
