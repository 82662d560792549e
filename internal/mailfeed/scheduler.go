package mailfeed

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the feed on a cron spec.
type Scheduler struct {
	cron   *cron.Cron
	feed   *Feed
	spec   string
	logger *slog.Logger
}

// NewScheduler creates a scheduler polling the feed per spec
// (standard 5-field cron or @every descriptors).
func NewScheduler(feed *Feed, spec string, logger *slog.Logger) *Scheduler {
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:   c,
		feed:   feed,
		spec:   spec,
		logger: logger,
	}
}

// Start begins the polling schedule.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.spec, s.pollOnce)
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("mail feed scheduler started", slog.String("spec", s.spec))
	return nil
}

// Stop gracefully stops the schedule; the returned context is done once
// a running poll finishes.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("mail feed scheduler stopping")
	return s.cron.Stop()
}

// RunNow triggers one poll outside the schedule (startup catch-up).
func (s *Scheduler) RunNow() {
	go s.pollOnce()
}

func (s *Scheduler) pollOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	res, err := s.feed.Poll(ctx)
	if err != nil {
		s.logger.Error("mail poll failed", slog.Any("error", err))
		return
	}

	s.logger.Info("mail poll finished",
		slog.Int("checked", res.Checked),
		slog.Int("enqueued", res.Enqueued),
		slog.Int("duplicates", res.Duplicates),
		slog.Int("skipped", res.Skipped),
		slog.Int("errors", len(res.Errors)),
	)
	for _, detail := range res.Errors {
		s.logger.Warn("mail poll item failed", slog.String("detail", detail))
	}
}
