package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/schiavigomme/hertz-invoicer/internal/extract"
)

// Runs the field extractor against one local PDF and prints the parsed
// candidate record. Useful when a document is rejected and the layout
// rules need checking.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if len(os.Args) != 2 {
		logger.Error("usage", "cmd", "runextract <file.pdf>")
		os.Exit(2)
	}
	path := os.Args[1]

	raw, err := os.ReadFile(path)
	if err != nil {
		logger.Error("read file", "path", path, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	service := extract.NewService(extract.NewPDFTextExtractor(logger), logger)

	start := time.Now()
	record, err := service.Extract(ctx, raw)
	dur := time.Since(start)

	if err != nil {
		logger.Error("extraction failed",
			"path", path, "error", err, "duration_ms", dur.Milliseconds())
		os.Exit(1)
	}

	logger.Info("extraction OK",
		"path", path,
		"doc_type", record.DocType,
		"pratica", record.Pratica,
		"plate", record.Plate,
		"duration_ms", dur.Milliseconds(),
	)

	out, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		logger.Error("encode record", "error", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
