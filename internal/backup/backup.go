// Package backup mirrors pipeline artifacts (uploaded PDFs, generated
// invoice XML) to secondary storage. Sinks are best-effort: a failed
// copy is logged and never blocks invoicing.
package backup

import (
	"context"
	"log/slog"

	"github.com/schiavigomme/hertz-invoicer/internal/common"
)

// Sink stores a single artifact under a slash-separated relative path.
type Sink interface {
	Name() string
	Store(ctx context.Context, relPath string, data []byte) error
}

// NewSinks builds the sinks enabled by cfg. Local and S3 can be active
// at the same time; an empty config yields no sinks.
func NewSinks(ctx context.Context, cfg common.BackupConfig) ([]Sink, error) {
	var sinks []Sink
	if cfg.LocalDir != "" {
		local, err := NewLocalSink(cfg.LocalDir)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, local)
	}
	if cfg.S3Bucket != "" {
		remote, err := NewS3Sink(ctx, cfg)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, remote)
	}
	return sinks, nil
}

// Dispatcher fans an artifact out to every configured sink.
type Dispatcher struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher over the given sinks.
func NewDispatcher(sinks []Sink, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{sinks: sinks, logger: logger}
}

// Store copies data to every sink. Failures are logged per sink and
// swallowed: the invoice is already committed by the time backups run.
func (d *Dispatcher) Store(ctx context.Context, relPath string, data []byte) {
	for _, sink := range d.sinks {
		if err := sink.Store(ctx, relPath, data); err != nil {
			d.logger.Error("artifact backup failed",
				"sink", sink.Name(),
				"path", relPath,
				"error", err)
			continue
		}
		d.logger.Debug("artifact backed up",
			"sink", sink.Name(),
			"path", relPath,
			"bytes", len(data))
	}
}
