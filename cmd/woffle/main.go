// Command woffle subsets a WOFF2 font file from the command line, keeping
// only the glyphs needed for the given text.
//
// Usage:
//
//	woffle -in font.woff2 -text "Hello, world" -out subset.woff2
//	woffle -in font.woff2 -text "Hello" -data-url
package main

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/glyphlab/woffle"
)

func main() {
	var (
		in      = flag.String("in", "", "input WOFF2 font file (required)")
		out     = flag.String("out", "", "output file for the subsetted font")
		text    = flag.String("text", "", "text whose runes select the glyphs to keep (required)")
		dataURL = flag.Bool("data-url", false, "print the result as a data-url instead of writing a file")
		verbose = flag.Bool("v", false, "enable debug logging")
	)
	flag.Parse()

	if *in == "" || *text == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *out == "" && !*dataURL {
		log.Fatal("either -out or -data-url is required")
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	font, err := os.ReadFile(*in)
	if err != nil {
		log.Fatalf("read font: %v", err)
	}

	sub := woffle.New(woffle.WithLogger(logger))
	result := sub.SubsetFont(context.Background(), font, []rune(*text))
	defer sub.ClearPool()

	if result.Route == woffle.RouteOriginal {
		logger.Warn("font could not be subsetted, output is the original")
	}

	if *dataURL {
		fmt.Println(result.DataURL)
		return
	}

	payload := strings.TrimPrefix(result.DataURL, woffle.DataURLPrefix)
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		log.Fatalf("decode result: %v", err)
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		log.Fatalf("write output: %v", err)
	}

	fmt.Printf("%s: %d bytes -> %s: %d bytes (%d runes kept)\n",
		*in, len(font), *out, len(data), len([]rune(*text)))
}
