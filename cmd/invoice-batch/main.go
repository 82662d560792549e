package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/schiavigomme/hertz-invoicer/constants"
	"github.com/schiavigomme/hertz-invoicer/internal/backup"
	"github.com/schiavigomme/hertz-invoicer/internal/common"
	"github.com/schiavigomme/hertz-invoicer/internal/compose"
	"github.com/schiavigomme/hertz-invoicer/internal/extract"
	"github.com/schiavigomme/hertz-invoicer/internal/ledger"
	"github.com/schiavigomme/hertz-invoicer/internal/match"
	"github.com/schiavigomme/hertz-invoicer/internal/numbering"
	processor "github.com/schiavigomme/hertz-invoicer/internal/pipeline"
	"github.com/schiavigomme/hertz-invoicer/internal/repository"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir       = flag.String("dir", "", "directory of PDFs to run through the pipeline (required)")
		out       = flag.String("out", "", "write the ledger as XLSX to this path after the run (optional)")
		seriesArg = flag.String("series", "", "limit the XLSX export to one series (HM or HG)")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	var exportFilter repository.ListInvoicesFilter
	if *seriesArg != "" {
		series, ok := constants.ParseSeries(*seriesArg)
		if !ok {
			printError("Error: unknown series %q, use HM or HG\n", *seriesArg)
			os.Exit(1)
		}
		exportFilter.Series = &series
	}

	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	pool, err := repository.Open(ctx, repository.Config{
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer repository.Close(pool, logger)

	if err := repository.Migrate(pool, logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	state, err := common.LoadInitialState(cfg.State.Path)
	if err != nil {
		logger.Error("failed to load initial state", "error", err)
		os.Exit(1)
	}

	documents := repository.NewDocumentRepository(pool, logger)
	invoices := repository.NewInvoiceRepository(pool, logger)
	counters := repository.NewCounterRepository(pool, logger)

	authority := numbering.NewAuthority(counters, invoices, logger)
	if err := authority.Bootstrap(ctx, state.Seeds); err != nil {
		logger.Error("failed to bootstrap numbering", "error", err)
		os.Exit(1)
	}

	sinks, err := backup.NewSinks(ctx, cfg.Backup)
	if err != nil {
		logger.Error("failed to configure backup sinks", "error", err)
		os.Exit(1)
	}
	dispatcher := backup.NewDispatcher(sinks, logger)

	issuer := processor.NewIssuer(logger, compose.NewComposer(state), invoices, dispatcher)
	matcher := match.NewMatcher(documents, invoices, issuer, logger)
	if err := matcher.ResumePairs(ctx); err != nil {
		logger.Error("failed to resume interrupted pairs", "error", err)
		os.Exit(1)
	}
	extractor := extract.NewService(extract.NewPDFTextExtractor(logger), logger)
	proc := processor.NewProcessor(logger, extractor, matcher, dispatcher)

	paths, err := collectPDFs(*dir)
	if err != nil {
		logger.Error("failed to scan directory", "dir", *dir, "error", err)
		os.Exit(1)
	}
	if len(paths) == 0 {
		logger.Warn("no PDFs found", "dir", *dir)
	}

	tally := make(map[string]int)
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Error("failed to read file", "path", path, "error", err)
			tally["failed"]++
			continue
		}
		res, err := proc.Process(ctx, &processor.Intake{
			Filename: filepath.Base(path),
			Source:   constants.SourceBatch,
			Data:     data,
		})
		if err != nil {
			logger.Error("file rejected", "path", path, "error", err)
			tally["rejected"]++
			continue
		}
		tally[string(res.Outcome)]++
	}
	logger.Info("batch complete", "files", len(paths), "outcomes", tally)

	if *out != "" {
		ledgerSvc := ledger.NewService(invoices, documents, counters, logger)
		data, err := ledgerSvc.ExportXLSX(ctx, exportFilter)
		if err != nil {
			logger.Error("failed to export ledger", "error", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*out, data, 0644); err != nil {
			logger.Error("failed to write workbook", "path", *out, "error", err)
			os.Exit(1)
		}
		logger.Info("ledger exported", "path", *out, "bytes", len(data))
	}
}

func collectPDFs(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := constants.AllowedExtensions[constants.NormalizeExt(filepath.Ext(path))]; ok {
			paths = append(paths, path)
		}
		return nil
	})
	return paths, err
}
