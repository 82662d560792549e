// Package dropfolder watches a scanner drop directory and hands every
// stable PDF to the processing queue. Ingested files move into a
// processed/ subdirectory so a restart never replays them.
package dropfolder

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/schiavigomme/hertz-invoicer/constants"
	"github.com/schiavigomme/hertz-invoicer/internal/async"
	"github.com/schiavigomme/hertz-invoicer/internal/common"
	processor "github.com/schiavigomme/hertz-invoicer/internal/pipeline"
)

// archiveDir is where ingested files land, below the watched directory.
const archiveDir = "processed"

// Watcher tails a single directory (top level only, the archive
// subdirectory is never re-ingested) for dropped PDFs. Write bursts
// are debounced so a file is read only once the scanner has finished
// writing it.
type Watcher struct {
	cfg    common.DropConfig
	queue  async.Queue
	logger *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func NewWatcher(cfg common.DropConfig, queue async.Queue, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		cfg:    cfg,
		queue:  queue,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Start verifies the directory, replays any backlog left from a
// previous run, and begins tailing filesystem events. It returns once
// the watcher is running; the loop exits when ctx is cancelled or
// Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	info, err := os.Stat(w.cfg.Dir)
	if err != nil {
		return fmt.Errorf("drop dir %s: %w", w.cfg.Dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("drop dir %s: not a directory", w.cfg.Dir)
	}
	if err := os.MkdirAll(filepath.Join(w.cfg.Dir, archiveDir), 0755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(w.cfg.Dir); err != nil {
		_ = fw.Close()
		return fmt.Errorf("watch %s: %w", w.cfg.Dir, err)
	}

	ctx, w.cancel = context.WithCancel(ctx)
	go w.run(ctx, fw)

	w.logger.Info("drop folder watcher started",
		"dir", w.cfg.Dir, "debounce", w.cfg.Debounce.String())
	return nil
}

// Stop halts the event loop and returns a channel that closes once
// the loop has exited.
func (w *Watcher) Stop() <-chan struct{} {
	if w.cancel != nil {
		w.cancel()
	}
	return w.done
}

func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher) {
	defer close(w.done)
	defer func() {
		if err := fw.Close(); err != nil {
			w.logger.Debug("close watcher", "error", err)
		}
	}()

	w.scanBacklog(ctx)

	// Pending paths accumulate between events; the debounce timer
	// pokes flush so all map access stays on this goroutine.
	pending := map[string]struct{}{}
	flush := make(chan struct{}, 1)
	var timer *time.Timer

	schedule := func() {
		if w.cfg.Debounce <= 0 {
			select {
			case flush <- struct{}{}:
			default:
			}
			return
		}
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(w.cfg.Debounce, func() {
			select {
			case flush <- struct{}{}:
			default:
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-flush:
			for p := range pending {
				delete(pending, p)
				w.consume(ctx, p)
			}
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			// A file moved into the directory arrives as Create; a
			// scanner writing in place arrives as a Write burst.
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !eligible(ev.Name) {
				continue
			}
			pending[ev.Name] = struct{}{}
			schedule()
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Error("drop folder watch error", "error", err)
		}
	}
}

// scanBacklog ingests files already sitting in the directory, dropped
// while the daemon was down.
func (w *Watcher) scanBacklog(ctx context.Context) {
	entries, err := os.ReadDir(w.cfg.Dir)
	if err != nil {
		w.logger.Error("drop folder scan failed", "dir", w.cfg.Dir, "error", err)
		return
	}
	for _, e := range entries {
		if ctx.Err() != nil {
			return
		}
		if e.IsDir() {
			continue
		}
		p := filepath.Join(w.cfg.Dir, e.Name())
		if eligible(p) {
			w.consume(ctx, p)
		}
	}
}

// consume reads one stable file, enqueues it, and archives it out of
// the watched directory.
func (w *Watcher) consume(ctx context.Context, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		// Already archived by an earlier event, or moved away by the
		// operator.
		if errors.Is(err, fs.ErrNotExist) {
			return
		}
		w.logger.Warn("drop file unreadable", "path", path, "error", err)
		return
	}
	if len(data) == 0 {
		// The scanner is still writing; the next write event retries.
		w.logger.Debug("drop file empty, leaving in place", "path", path)
		return
	}

	intake := &processor.Intake{
		Filename: filepath.Base(path),
		Source:   constants.SourceDrop,
		Data:     data,
	}
	if err := w.queue.Enqueue(ctx, async.Job{Intake: intake, SubmittedAt: time.Now()}); err != nil {
		w.logger.Error("failed to queue drop file", "path", path, "error", err)
		return
	}
	w.archive(path)
	w.logger.Info("drop file ingested", "filename", intake.Filename, "bytes", len(data))
}

// archive moves an ingested file under processed/. A name clash keeps
// both copies.
func (w *Watcher) archive(path string) {
	name := filepath.Base(path)
	dest := filepath.Join(w.cfg.Dir, archiveDir, name)
	if _, err := os.Stat(dest); err == nil {
		dest = filepath.Join(w.cfg.Dir, archiveDir,
			fmt.Sprintf("%d_%s", time.Now().UnixNano(), name))
	}
	if err := os.Rename(path, dest); err != nil {
		w.logger.Warn("failed to archive drop file", "path", path, "error", err)
	}
}

func eligible(path string) bool {
	_, ok := constants.AllowedExtensions[constants.NormalizeExt(filepath.Ext(path))]
	return ok
}
