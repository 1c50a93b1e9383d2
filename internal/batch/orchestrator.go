package batch

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/certforge/certforge/internal/errors"
	"github.com/certforge/certforge/internal/template"
)

// maxDefaultWorkers bounds the automatic pool size on large machines;
// rendering is I/O heavy enough that more workers stop paying off.
const maxDefaultWorkers = 8

// Orchestrator fans a recipient list out over a worker pool and collects
// per-recipient results in input order.
type Orchestrator struct {
	renderer Renderer
	cfg      Config
	logger   *zap.Logger
	limiter  *renderThrottle
}

func NewOrchestrator(renderer Renderer, cfg Config, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		renderer: renderer,
		cfg:      cfg,
		logger:   logger,
		limiter:  newRenderThrottle(cfg.RendersPerMinute, cfg.Burst),
	}
}

type job struct {
	index    int
	rec      template.Recipient
	filename string
}

// Run generates one certificate per recipient into outputDir. Invalid
// recipients fail fast without touching the renderer; everything else is
// dispatched to the pool. The returned outcome holds one result per input
// recipient, at the recipient's input index.
func (o *Orchestrator) Run(ctx context.Context, recipients []template.Recipient, outputDir string, progress ProgressFunc) (*Outcome, error) {
	startTime := time.Now()
	total := len(recipients)

	outcome := &Outcome{
		Total:     total,
		Results:   make([]GenerationResult, total),
		StartTime: startTime,
	}
	reporter := newProgressReporter(progress, o.logger)

	// Filenames are assigned sequentially before dispatch so collision
	// suffixes follow input order, not completion order.
	namer := NewNamer()
	jobs := make([]job, 0, total)
	for i, rec := range recipients {
		if strings.TrimSpace(rec.FirstName) == "" || strings.TrimSpace(rec.LastName) == "" {
			outcome.Results[i] = GenerationResult{Error: errors.ErrMissingName.Message}
			continue
		}
		jobs = append(jobs, job{
			index:    i,
			rec:      rec,
			filename: namer.Filename(rec.FirstName, rec.LastName),
		})
	}

	workers := o.workerCount(len(jobs))
	o.logger.Info("starting batch generation",
		zap.Int("recipients", total),
		zap.Int("dispatched", len(jobs)),
		zap.Int("workers", workers),
		zap.String("output_dir", outputDir))

	var completed int64
	var completedMu sync.Mutex
	tick := func(message string) {
		completedMu.Lock()
		completed++
		current := int(completed)
		completedMu.Unlock()
		reporter.emit(current, total, message)
	}

	// Single-worker runs announce each recipient before rendering so a
	// watcher sees work begin, not only finish. Announcements never
	// advance the completion counter.
	var announce func(rec template.Recipient)
	if workers == 1 {
		announce = func(rec template.Recipient) {
			completedMu.Lock()
			current := int(completed)
			completedMu.Unlock()
			reporter.emit(current, total, fmt.Sprintf("Processing %s %s...", rec.FirstName, rec.LastName))
		}
	}

	jobsChan := make(chan job, len(jobs))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.worker(ctx, jobsChan, outputDir, outcome.Results, tick, announce)
		}()
	}

	// Failed validations count as completed work too.
	for i := range recipients {
		if outcome.Results[i].Error != "" {
			tick(fmt.Sprintf("Skipped recipient %d: %s", i+1, outcome.Results[i].Error))
		}
	}

	for _, j := range jobs {
		jobsChan <- j
	}
	close(jobsChan)
	wg.Wait()

	for _, res := range outcome.Results {
		if res.Success {
			outcome.Succeeded++
		} else {
			outcome.Failed++
		}
	}

	if o.cfg.ArchivePath != "" && outcome.Succeeded > 0 {
		if err := CreateArchive(outputDir, outcome.Results, o.cfg.ArchivePath); err != nil {
			o.logger.Error("archive packaging failed", zap.Error(err))
			return outcome, errors.Wrap(err, errors.ErrArchiveFailed.Code, errors.ErrArchiveFailed.Message)
		}
		outcome.ArchivePath = o.cfg.ArchivePath
	}

	outcome.EndTime = time.Now()
	outcome.Duration = outcome.EndTime.Sub(outcome.StartTime)

	reporter.emit(total, total, "Complete!")

	o.logger.Info("batch generation complete",
		zap.Int("succeeded", outcome.Succeeded),
		zap.Int("failed", outcome.Failed),
		zap.Duration("duration", outcome.Duration))

	return outcome, ctx.Err()
}

func (o *Orchestrator) worker(ctx context.Context, jobs <-chan job, outputDir string, results []GenerationResult, tick func(string), announce func(template.Recipient)) {
	for j := range jobs {
		if announce != nil {
			announce(j.rec)
		}

		if ctx.Err() != nil {
			results[j.index] = GenerationResult{Error: ctx.Err().Error()}
			tick(fmt.Sprintf("Cancelled %s", j.filename))
			continue
		}

		if err := o.limiter.wait(ctx); err != nil {
			results[j.index] = GenerationResult{Error: err.Error()}
			tick(fmt.Sprintf("Cancelled %s", j.filename))
			continue
		}

		start := time.Now()
		err := o.renderer.Render(j.rec, filepath.Join(outputDir, j.filename))
		elapsed := time.Since(start)

		if err != nil {
			results[j.index] = GenerationResult{
				Error:      err.Error(),
				DurationMs: elapsed.Milliseconds(),
			}
			o.logger.Warn("certificate generation failed",
				zap.String("filename", j.filename),
				zap.Error(err))
			tick(fmt.Sprintf("Failed %s", j.filename))
			continue
		}

		results[j.index] = GenerationResult{
			Success:    true,
			Filename:   j.filename,
			DurationMs: elapsed.Milliseconds(),
		}
		tick(fmt.Sprintf("Generated %s", j.filename))
	}
}

func (o *Orchestrator) workerCount(jobs int) int {
	if jobs == 0 {
		return 0
	}
	workers := o.cfg.MaxWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
		if workers > maxDefaultWorkers {
			workers = maxDefaultWorkers
		}
	}
	if !o.cfg.Parallel {
		workers = 1
	}
	if workers > jobs {
		workers = jobs
	}
	return workers
}

// progressReporter serializes callback invocations and contains panics so
// a misbehaving observer cannot corrupt or abort a batch run.
type progressReporter struct {
	fn     ProgressFunc
	logger *zap.Logger
	mu     sync.Mutex
}

func newProgressReporter(fn ProgressFunc, logger *zap.Logger) *progressReporter {
	return &progressReporter{fn: fn, logger: logger}
}

func (r *progressReporter) emit(current, total int, message string) {
	if r.fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	defer func() {
		if p := recover(); p != nil {
			r.logger.Warn("progress callback panicked", zap.Any("panic", p))
		}
	}()
	r.fn(current, total, message)
}
