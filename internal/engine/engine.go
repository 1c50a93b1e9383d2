// Package engine is the facade tying template discovery, mapping,
// rendering, and batch orchestration together for the CLI and HTTP
// surfaces.
package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/certforge/certforge/internal/batch"
	"github.com/certforge/certforge/internal/config"
	"github.com/certforge/certforge/internal/errors"
	"github.com/certforge/certforge/internal/metrics"
	"github.com/certforge/certforge/internal/render"
	"github.com/certforge/certforge/internal/store"
	"github.com/certforge/certforge/internal/template"
)

// Engine exposes the high-level certificate operations. Safe for
// concurrent use. The validation cache is optional; when nil caching is
// simply skipped. The store is required only by the run-history
// operations (StartBatch, BatchStatus, ListBatches), which return a
// configuration error when none is configured.
type Engine struct {
	cfg    *config.Config
	store  *store.Store
	cache  *template.ValidationCache
	logger *zap.Logger
	hub    *progressHub
}

func New(cfg *config.Config, st *store.Store, cache *template.ValidationCache, logger *zap.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		store:  st,
		cache:  cache,
		logger: logger,
		hub:    newProgressHub(),
	}
}

func (e *Engine) fontBounds() template.FontBounds {
	return template.FontBounds{
		Max: e.cfg.Render.MaxFontSize,
		Min: e.cfg.Render.MinFontSize,
	}
}

func (e *Engine) requireStore() error {
	if e.store == nil {
		return errors.New(errors.ErrConfigInvalid.Code, "run history requires a configured store")
	}
	return nil
}

// renderOptions resolves render options from config, with an optional
// per-request flatten override.
func (e *Engine) renderOptions(flatten *bool) render.Options {
	opts := render.Options{
		Flatten:  e.cfg.Render.Flatten,
		FontName: e.cfg.Render.FontName,
	}
	if flatten != nil {
		opts.Flatten = *flatten
	}
	return opts
}

// renderer discovers and maps the template, then binds a renderer to it.
func (e *Engine) renderer(templatePath string, overrides map[string]string, flatten *bool) (*render.Renderer, error) {
	cat, err := template.Discover(templatePath, e.fontBounds())
	if err != nil {
		return nil, err
	}
	mapping, err := template.BuildMapping(cat, overrides)
	if err != nil {
		return nil, err
	}
	return render.New(templatePath, cat, mapping, e.renderOptions(flatten), e.logger), nil
}

// ValidateTemplate validates a template, consulting the validation cache
// when one is configured.
func (e *Engine) ValidateTemplate(templatePath string) template.Report {
	if e.cache != nil {
		if report, ok := e.cache.Get(templatePath); ok {
			return report
		}
	}

	report := template.Validate(templatePath, e.fontBounds())
	metrics.RecordValidation(report.Valid)

	if e.cache != nil && report.Valid {
		e.cache.Put(templatePath, report)
	}
	return report
}

// CertificateRequest describes one single-certificate render. Flatten,
// when set, overrides the configured flatten behavior for this request.
type CertificateRequest struct {
	TemplatePath string
	Recipient    template.Recipient
	OutputPath   string
	Overrides    map[string]string
	Flatten      *bool
}

// GenerateCertificate renders one certificate. When OutputPath is empty
// the file is placed in the configured output directory under an
// auto-generated timestamped name. Returns the final output path.
func (e *Engine) GenerateCertificate(req CertificateRequest) (string, error) {
	r, err := e.renderer(req.TemplatePath, req.Overrides, req.Flatten)
	if err != nil {
		return "", err
	}

	outputPath := req.OutputPath
	if outputPath == "" {
		name := fmt.Sprintf("certificate_%s_%s.pdf",
			batch.BaseFilename(req.Recipient.FirstName, req.Recipient.LastName),
			time.Now().Format("20060102_150405"))
		outputPath = filepath.Join(e.cfg.Storage.OutputDir, name)
	}

	start := time.Now()
	err = r.Render(req.Recipient, outputPath)
	metrics.RecordRender(err == nil, time.Since(start))
	if err != nil {
		return "", err
	}
	return outputPath, nil
}

// GeneratePreview renders a sample certificate for the template and
// returns its bytes. Nothing is persisted.
func (e *Engine) GeneratePreview(templatePath string, overrides map[string]string) ([]byte, error) {
	r, err := e.renderer(templatePath, overrides, nil)
	if err != nil {
		return nil, err
	}
	data, err := r.Preview()
	if err != nil {
		return nil, err
	}
	metrics.RecordPreview()
	return data, nil
}

// BatchRequest describes one batch generation run.
type BatchRequest struct {
	TemplatePath string
	Recipients   []template.Recipient
	OutputDir    string
	Overrides    map[string]string
	Archive      bool
	Progress     batch.ProgressFunc
}

// GenerateBatch runs a batch synchronously and returns its outcome. When
// the request enables archiving, successful outputs are packaged into a
// ZIP next to them.
func (e *Engine) GenerateBatch(ctx context.Context, req BatchRequest) (*batch.Outcome, error) {
	r, err := e.renderer(req.TemplatePath, req.Overrides, nil)
	if err != nil {
		return nil, err
	}

	outputDir := req.OutputDir
	if outputDir == "" {
		outputDir = filepath.Join(e.cfg.Storage.OutputDir, time.Now().Format("batch_20060102_150405"))
	}

	cfg := batch.Config{
		Parallel:         e.cfg.Batch.Parallel,
		MaxWorkers:       e.cfg.Batch.MaxWorkers,
		RendersPerMinute: e.cfg.Batch.RendersPerMinute,
		Burst:            e.cfg.Batch.Burst,
	}
	if req.Archive {
		cfg.ArchivePath = filepath.Join(outputDir, "certificates.zip")
	}

	metrics.RecordBatchStart()
	o := batch.NewOrchestrator(r, cfg, e.logger)
	outcome, err := o.Run(ctx, req.Recipients, outputDir, req.Progress)
	metrics.RecordBatchEnd(err == nil)
	if outcome != nil && outcome.ArchivePath != "" {
		metrics.Default().RecordArchive()
	}
	return outcome, err
}

// StartBatch runs a batch in the background and returns its run ID. The
// run's lifecycle and per-recipient outcomes are persisted to the store;
// live progress is published to subscribers of the run ID.
func (e *Engine) StartBatch(req BatchRequest) (string, error) {
	if err := e.requireStore(); err != nil {
		return "", err
	}

	run := &store.BatchRun{
		TemplatePath: req.TemplatePath,
		Status:       store.RunStatusRunning,
		Total:        len(req.Recipients),
	}
	if err := e.store.CreateBatchRun(run); err != nil {
		return "", err
	}

	go e.runBatch(run.ID, req)
	return run.ID, nil
}

func (e *Engine) runBatch(runID string, req BatchRequest) {
	defer e.hub.closeRun(runID)

	userProgress := req.Progress
	req.Progress = func(current, total int, message string) {
		e.hub.publish(runID, ProgressEvent{Current: current, Total: total, Message: message})
		if userProgress != nil {
			userProgress(current, total, message)
		}
	}

	outcome, err := e.GenerateBatch(context.Background(), req)
	if err != nil && outcome == nil {
		e.logger.Error("batch run failed", zap.String("run_id", runID), zap.Error(err))
		if serr := e.store.MarkBatchRunComplete(runID, store.RunStatusFailed, 0, 0, "", err.Error()); serr != nil {
			e.logger.Error("failed to persist run failure", zap.String("run_id", runID), zap.Error(serr))
		}
		return
	}

	records := make([]store.RenderRecord, 0, len(outcome.Results))
	for i, res := range outcome.Results {
		records = append(records, store.RenderRecord{
			BatchRunID: runID,
			Position:   i,
			Filename:   res.Filename,
			Success:    res.Success,
			Error:      res.Error,
			DurationMs: res.DurationMs,
		})
	}
	if serr := e.store.CreateRenderRecords(records); serr != nil {
		e.logger.Error("failed to persist render records", zap.String("run_id", runID), zap.Error(serr))
	}

	status := store.RunStatusComplete
	errMsg := ""
	if err != nil {
		status = store.RunStatusFailed
		errMsg = err.Error()
	}
	if serr := e.store.MarkBatchRunComplete(runID, status, outcome.Succeeded, outcome.Failed, outcome.ArchivePath, errMsg); serr != nil {
		e.logger.Error("failed to persist run completion", zap.String("run_id", runID), zap.Error(serr))
	}
}

// BatchStatus returns the persisted state of a run.
func (e *Engine) BatchStatus(runID string) (*store.BatchRun, error) {
	if err := e.requireStore(); err != nil {
		return nil, err
	}
	return e.store.GetBatchRun(runID)
}

// ListBatches lists recent runs.
func (e *Engine) ListBatches(limit, offset int) ([]store.BatchRun, error) {
	if err := e.requireStore(); err != nil {
		return nil, err
	}
	return e.store.ListBatchRuns(limit, offset)
}

// SubscribeProgress returns a channel of live progress events for a run
// plus an unsubscribe function. The channel is closed when the run ends.
func (e *Engine) SubscribeProgress(runID string) (<-chan ProgressEvent, func()) {
	return e.hub.subscribe(runID)
}
