package async

import (
	"context"
	"time"

	"github.com/schiavigomme/hertz-invoicer/internal/match"
	processor "github.com/schiavigomme/hertz-invoicer/internal/pipeline"
)

// Job is one document submission waiting for a worker.
type Job struct {
	Intake      *processor.Intake
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// Runner executes one intake end to end. *processor.Processor is the
// production implementation.
type Runner interface {
	Process(ctx context.Context, in *processor.Intake) (*match.Result, error)
}
