// Command scantest runs the document pipeline on one photo and writes the result.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Mocca-flames/flame-pdf/internal/logging"
	"github.com/Mocca-flames/flame-pdf/internal/pipeline"
	"github.com/Mocca-flames/flame-pdf/internal/service"

	"github.com/disintegration/imaging"
)

func main() {
	in := flag.String("i", "", "Path to input photo")
	out := flag.String("o", "", "Path to output PNG (default processed_<input>.png next to the input)")
	debug := flag.Bool("debug", false, "Log every strategy attempt")
	flag.Parse()

	if *in == "" {
		fmt.Println("Usage: scantest -i <photo> [-o <out.png>] [-debug]")
		os.Exit(1)
	}

	level := "warn"
	if *debug {
		level = "debug"
	}
	lvl, _ := logging.ParseLevel(level)
	log := logging.New(os.Stderr, lvl, "text")

	data, err := os.ReadFile(*in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read input: %v\n", err)
		os.Exit(1)
	}

	start := time.Now()
	res, err := pipeline.NewProcessor(log).Process(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Processing failed: %v\n", err)
		os.Exit(1)
	}
	elapsed := time.Since(start)

	dst := *out
	if dst == "" {
		dst = service.ProcessedPath(*in)
	}
	if !strings.EqualFold(filepath.Ext(dst), ".png") {
		dst += ".png"
	}
	if err := imaging.Save(res.Image, dst); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to save %s: %v\n", dst, err)
		os.Exit(1)
	}

	b := res.Image.Bounds()
	fmt.Printf("=== %s ===\n", *in)
	fmt.Printf("Transformed: %v\n", res.Transformed)
	if res.Transformed {
		fmt.Printf("Strategy:    %s\n", res.Strategy)
		fmt.Printf("Corners:     %s\n", res.Corners)
	}
	fmt.Printf("Output:      %s (%dx%d)\n", dst, b.Dx(), b.Dy())
	fmt.Printf("Elapsed:     %s\n", elapsed.Round(time.Millisecond))
}
