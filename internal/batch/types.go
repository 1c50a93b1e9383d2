// Package batch generates many certificates from one template with a
// bounded worker pool, deterministic output naming, and optional ZIP
// packaging of the results.
package batch

import (
	"fmt"
	"strings"
	"time"

	"github.com/certforge/certforge/internal/template"
)

// Renderer is the single-certificate seam the orchestrator drives. The
// implementation must be safe for concurrent calls.
type Renderer interface {
	Render(rec template.Recipient, outputPath string) error
}

// ProgressFunc receives progress updates during a batch run. Callbacks are
// serialized; a panicking callback is contained and never aborts the run.
type ProgressFunc func(current, total int, message string)

// Config tunes a batch run.
type Config struct {
	// Parallel enables the worker pool. When false everything runs on one
	// worker, preserving input order of side effects.
	Parallel bool
	// MaxWorkers caps pool size. Zero picks min(NumCPU, 8).
	MaxWorkers int
	// RendersPerMinute throttles the pool (0 = unlimited).
	RendersPerMinute int
	// Burst for the rate limiter.
	Burst int
	// ArchivePath, when non-empty, packs successful outputs into a ZIP at
	// this path after the run.
	ArchivePath string
}

// DefaultConfig returns the stock batch configuration.
func DefaultConfig() Config {
	return Config{Parallel: true}
}

// GenerationResult is the outcome for one recipient. Results are reported
// in input order regardless of completion order.
type GenerationResult struct {
	Success    bool   `json:"success"`
	Filename   string `json:"filename,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Outcome aggregates a full batch run.
type Outcome struct {
	Total       int                `json:"total"`
	Succeeded   int                `json:"succeeded"`
	Failed      int                `json:"failed"`
	Results     []GenerationResult `json:"results"`
	ArchivePath string             `json:"archive_path,omitempty"`
	StartTime   time.Time          `json:"start_time"`
	EndTime     time.Time          `json:"end_time"`
	Duration    time.Duration      `json:"duration"`
}

// Summary renders a human-readable run report.
func (o *Outcome) Summary() string {
	var sb strings.Builder
	sb.WriteString("=== Batch Generation Summary ===\n")
	sb.WriteString(fmt.Sprintf("Total:     %d\n", o.Total))
	sb.WriteString(fmt.Sprintf("Succeeded: %d\n", o.Succeeded))
	sb.WriteString(fmt.Sprintf("Failed:    %d\n", o.Failed))
	sb.WriteString(fmt.Sprintf("Duration:  %v\n", o.Duration))
	if o.ArchivePath != "" {
		sb.WriteString(fmt.Sprintf("Archive:   %s\n", o.ArchivePath))
	}
	return sb.String()
}
