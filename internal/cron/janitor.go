// Package cron runs the retention janitor that removes aged certificate
// outputs and batch history on a schedule.
package cron

import (
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/certforge/certforge/internal/config"
	"github.com/certforge/certforge/internal/store"
)

// Janitor deletes generated certificates, archives, and run history older
// than the configured retention window.
type Janitor struct {
	cfg       config.CleanupConfig
	outputDir string
	store     *store.Store
	logger    *zap.Logger
	scheduler *cron.Cron
}

func NewJanitor(cfg config.CleanupConfig, outputDir string, st *store.Store, logger *zap.Logger) *Janitor {
	return &Janitor{
		cfg:       cfg,
		outputDir: outputDir,
		store:     st,
		logger:    logger,
		scheduler: cron.New(),
	}
}

// Start registers the sweep on the configured cron schedule and begins
// running it. No-op when cleanup is disabled.
func (j *Janitor) Start() error {
	if !j.cfg.Enabled {
		return nil
	}
	if _, err := j.scheduler.AddFunc(j.cfg.Schedule, j.Sweep); err != nil {
		return err
	}
	j.scheduler.Start()
	j.logger.Info("retention janitor started",
		zap.String("schedule", j.cfg.Schedule),
		zap.Int("max_age_hours", j.cfg.MaxAgeHours))
	return nil
}

// Stop halts the scheduler, waiting for an in-flight sweep to finish.
func (j *Janitor) Stop() {
	ctx := j.scheduler.Stop()
	<-ctx.Done()
}

// Sweep performs one retention pass. Exported so the CLI can trigger it
// on demand.
func (j *Janitor) Sweep() {
	cutoff := time.Now().Add(-time.Duration(j.cfg.MaxAgeHours) * time.Hour)

	removed := j.sweepFiles(cutoff)

	var runs int64
	if j.store != nil {
		var err error
		runs, err = j.store.DeleteRunsBefore(cutoff)
		if err != nil {
			j.logger.Error("failed to prune run history", zap.Error(err))
		}
	}

	if removed > 0 || runs > 0 {
		j.logger.Info("retention sweep complete",
			zap.Int("files_removed", removed),
			zap.Int64("runs_removed", runs))
	}
}

func (j *Janitor) sweepFiles(cutoff time.Time) int {
	removed := 0
	err := filepath.WalkDir(j.outputDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err != nil {
				j.logger.Warn("failed to remove expired output", zap.String("path", path), zap.Error(err))
				return nil
			}
			removed++
		}
		return nil
	})
	if err != nil {
		j.logger.Error("retention sweep failed", zap.Error(err))
	}
	return removed
}
