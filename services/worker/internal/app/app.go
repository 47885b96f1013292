package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"filesmanager/internal/metrics"
	"filesmanager/pkg/domain"
	"filesmanager/pkg/queue"
	"filesmanager/pkg/storage"
	"filesmanager/pkg/thumbnail"
)

// NodeReader is the slice of the metadata store the worker needs.
type NodeReader interface {
	GetNode(ctx context.Context, id string) (domain.FileNode, bool, error)
}

// JobSource delivers thumbnail jobs and keeps their status.
type JobSource interface {
	Start(ctx context.Context, concurrency int, handler queue.Handler) error
	Wait()
	GetJob(ctx context.Context, jobID string) (domain.JobState, bool, error)
}

// Config wires the worker. Nodes, Content and Jobs are required.
type Config struct {
	Nodes       NodeReader
	Content     storage.ContentStore
	Jobs        JobSource
	Concurrency int
	Logger      *slog.Logger
}

// App turns queued image uploads into fixed-width variants.
type App struct {
	nodes       NodeReader
	content     storage.ContentStore
	jobs        JobSource
	concurrency int
	widths      []int
	logger      *slog.Logger
}

// errRender marks variant encoding failures; they repeat on every delivery.
var errRender = errors.New("render variant")

// New validates cfg and builds the worker.
func New(cfg Config) (*App, error) {
	if cfg.Nodes == nil {
		return nil, errors.New("metadata store required")
	}
	if cfg.Content == nil {
		return nil, errors.New("content store required")
	}
	if cfg.Jobs == nil {
		return nil, errors.New("job source required")
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		nodes:       cfg.Nodes,
		content:     cfg.Content,
		jobs:        cfg.Jobs,
		concurrency: concurrency,
		widths:      domain.ThumbnailWidths,
		logger:      logger,
	}, nil
}

// Run consumes jobs until ctx is done, then waits for in-flight jobs.
func (a *App) Run(ctx context.Context) error {
	if err := a.jobs.Start(ctx, a.concurrency, a.HandleJob); err != nil {
		return fmt.Errorf("start consumers: %w", err)
	}
	a.logger.Info("thumbnail consumers started", "concurrency", a.concurrency)
	<-ctx.Done()
	a.jobs.Wait()
	return nil
}

// GetJob returns the status of a job.
func (a *App) GetJob(ctx context.Context, jobID string) (domain.JobState, bool, error) {
	return a.jobs.GetJob(ctx, jobID)
}

// HandleJob generates every variant of one image. It is safe to run twice
// for the same job: variants are overwritten with identical bytes.
func (a *App) HandleJob(ctx context.Context, job queue.Job) queue.Result {
	started := time.Now()
	res := a.generate(ctx, job.Payload)
	metrics.ThumbnailJob(string(res.Kind), time.Since(started))
	if res.OK() {
		a.logger.Debug("thumbnails written",
			"job_id", job.ID,
			"file_id", job.Payload.FileID,
			"elapsed", time.Since(started))
	}
	return res
}

func (a *App) generate(ctx context.Context, job domain.ThumbnailJob) queue.Result {
	fileID := strings.TrimSpace(job.FileID)
	userID := strings.TrimSpace(job.UserID)
	if fileID == "" {
		return queue.Fail(queue.KindInvalidJob, errors.New("Missing fileId"))
	}
	if userID == "" {
		return queue.Fail(queue.KindInvalidJob, errors.New("Missing userId"))
	}

	node, ok, err := a.nodes.GetNode(ctx, fileID)
	if err != nil {
		return queue.Fail(queue.KindInfrastructure, fmt.Errorf("lookup node: %w", err))
	}
	if !ok || node.OwnerID != userID {
		return queue.Fail(queue.KindFileNotFound, errors.New("File not found"))
	}
	if node.Kind != domain.KindImage || node.ContentRef == "" {
		return queue.Fail(queue.KindUnsupportedMedia, fmt.Errorf("node %s is a %s, not an image", node.ID, node.Kind))
	}

	original, err := a.content.Get(ctx, node.ContentRef)
	if errors.Is(err, storage.ErrNotFound) {
		return queue.Fail(queue.KindFileNotFound, errors.New("File not found"))
	}
	if err != nil {
		return queue.Fail(queue.KindInfrastructure, fmt.Errorf("read original: %w", err))
	}
	src, err := thumbnail.Decode(original)
	if err != nil {
		return queue.Fail(queue.KindUnsupportedMedia, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, width := range a.widths {
		width := width
		g.Go(func() error {
			data, contentType, err := src.Render(width)
			if err != nil {
				return fmt.Errorf("%w %d: %w", errRender, width, err)
			}
			if err := a.content.Put(gctx, storage.VariantKey(node.ContentRef, width), data, contentType); err != nil {
				return fmt.Errorf("write variant %d: %w", width, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, errRender) {
			return queue.Fail(queue.KindUnsupportedMedia, err)
		}
		return queue.Fail(queue.KindInfrastructure, err)
	}
	return queue.Done()
}
