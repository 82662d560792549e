package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/schiavigomme/hertz-invoicer/internal/async"
	"github.com/schiavigomme/hertz-invoicer/internal/backup"
	"github.com/schiavigomme/hertz-invoicer/internal/common"
	"github.com/schiavigomme/hertz-invoicer/internal/compose"
	"github.com/schiavigomme/hertz-invoicer/internal/dropfolder"
	"github.com/schiavigomme/hertz-invoicer/internal/extract"
	"github.com/schiavigomme/hertz-invoicer/internal/ledger"
	"github.com/schiavigomme/hertz-invoicer/internal/mailfeed"
	"github.com/schiavigomme/hertz-invoicer/internal/match"
	"github.com/schiavigomme/hertz-invoicer/internal/numbering"
	processor "github.com/schiavigomme/hertz-invoicer/internal/pipeline"
	"github.com/schiavigomme/hertz-invoicer/internal/repository"
	"github.com/schiavigomme/hertz-invoicer/internal/server"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		fatal(logger, "invalid configuration", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
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
		fatal(logger, "failed to open database", err)
	}
	defer repository.Close(pool, logger)

	if err := repository.HealthCheck(ctx, pool, cfg.Database.DialTimeout, logger); err != nil {
		fatal(logger, "database health check failed", err)
	}
	if err := repository.Migrate(pool, logger); err != nil {
		fatal(logger, "failed to run migrations", err)
	}

	// Initial state: numbering seeds, company profiles, billing terms.
	state, err := common.LoadInitialState(cfg.State.Path)
	if err != nil {
		fatal(logger, "failed to load initial state", err)
	}

	// Repositories
	documents := repository.NewDocumentRepository(pool, logger)
	invoices := repository.NewInvoiceRepository(pool, logger)
	counters := repository.NewCounterRepository(pool, logger)
	mailSeen := repository.NewMailRepository(pool, logger)

	// Numbering: seed once, then cross-check the counters against the
	// ledger. Durable counters win over the state file.
	authority := numbering.NewAuthority(counters, invoices, logger)
	if err := authority.Bootstrap(ctx, state.Seeds); err != nil {
		fatal(logger, "failed to bootstrap numbering", err)
	}

	// Artifact backup sinks (local dir and/or S3, both optional).
	sinks, err := backup.NewSinks(ctx, cfg.Backup)
	if err != nil {
		fatal(logger, "failed to configure backup sinks", err)
	}
	dispatcher := backup.NewDispatcher(sinks, logger)

	// Pipeline
	issuer := processor.NewIssuer(logger, compose.NewComposer(state), invoices, dispatcher)
	matcher := match.NewMatcher(documents, invoices, issuer, logger)
	if err := matcher.ResumePairs(ctx); err != nil {
		fatal(logger, "failed to resume interrupted pairs", err)
	}
	extractor := extract.NewService(extract.NewPDFTextExtractor(logger), logger)
	proc := processor.NewProcessor(logger, extractor, matcher, dispatcher)

	// Async intake for the mail feed and drop folder; uploads run
	// in-request.
	queue := async.NewProcessorQueue(proc, logger)

	var scheduler *mailfeed.Scheduler
	if cfg.Mail.Enabled() {
		feed := mailfeed.NewFeed(cfg.Mail, queue, mailSeen, logger)
		scheduler = mailfeed.NewScheduler(feed, cfg.Mail.PollSpec, logger)
		if err := scheduler.Start(); err != nil {
			fatal(logger, "failed to start mail scheduler", err)
		}
		scheduler.RunNow()
	} else {
		logger.Info("mail feed disabled, IMAP_ADDR not set")
	}

	var watcher *dropfolder.Watcher
	if cfg.Drop.Enabled() {
		watcher = dropfolder.NewWatcher(cfg.Drop, queue, logger)
		if err := watcher.Start(ctx); err != nil {
			fatal(logger, "failed to start drop folder watcher", err)
		}
	} else {
		logger.Info("drop folder disabled, DROP_DIR not set")
	}

	// HTTP
	gin.SetMode(gin.ReleaseMode)
	ledgerSvc := ledger.NewService(invoices, documents, counters, logger)
	handlers := server.Handlers{
		Documents: server.NewDocumentsHandler(proc, matcher, documents, logger),
		Invoices:  server.NewInvoicesHandler(ledgerSvc, logger),
		Numbering: server.NewNumberingHandler(authority, logger),
		System:    server.NewSystemHandler(ledgerSvc, pool, logger),
	}
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           server.NewRouter(handlers, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http server listening", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if scheduler != nil {
		select {
		case <-scheduler.Stop().Done():
		case <-shutdownCtx.Done():
		}
	}
	if watcher != nil {
		select {
		case <-watcher.Stop():
		case <-shutdownCtx.Done():
		}
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	queue.Shutdown(shutdownCtx)
	logger.Info("stopped")
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
