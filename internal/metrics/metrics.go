package metrics

import (
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type Metrics struct {
	startTime time.Time

	rendersTotal   atomic.Int64
	rendersSuccess atomic.Int64
	rendersFailed  atomic.Int64

	batchesTotal    atomic.Int64
	batchesComplete atomic.Int64
	batchesFailed   atomic.Int64
	activeBatches   atomic.Int64

	validationsTotal  atomic.Int64
	validationsPassed atomic.Int64
	previewsTotal     atomic.Int64
	archivesTotal     atomic.Int64

	renderTimes     []time.Duration
	renderTimesLock sync.Mutex
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

func Default() *Metrics {
	once.Do(func() {
		defaultMetrics = New()
	})
	return defaultMetrics
}

func New() *Metrics {
	return &Metrics{
		startTime:   time.Now(),
		renderTimes: make([]time.Duration, 0, 1000),
	}
}

func (m *Metrics) RecordRender(success bool, d time.Duration) {
	m.rendersTotal.Add(1)
	if success {
		m.rendersSuccess.Add(1)
	} else {
		m.rendersFailed.Add(1)
	}

	m.renderTimesLock.Lock()
	m.renderTimes = append(m.renderTimes, d)
	if len(m.renderTimes) > 1000 {
		m.renderTimes = m.renderTimes[1:]
	}
	m.renderTimesLock.Unlock()
}

func (m *Metrics) RecordBatchStart() {
	m.batchesTotal.Add(1)
	m.activeBatches.Add(1)
}

func (m *Metrics) RecordBatchEnd(success bool) {
	m.activeBatches.Add(-1)
	if success {
		m.batchesComplete.Add(1)
	} else {
		m.batchesFailed.Add(1)
	}
}

func (m *Metrics) RecordValidation(valid bool) {
	m.validationsTotal.Add(1)
	if valid {
		m.validationsPassed.Add(1)
	}
}

func (m *Metrics) RecordPreview() {
	m.previewsTotal.Add(1)
}

func (m *Metrics) RecordArchive() {
	m.archivesTotal.Add(1)
}

type Snapshot struct {
	Uptime            time.Duration `json:"uptime"`
	RendersTotal      int64         `json:"renders_total"`
	RendersSuccess    int64         `json:"renders_success"`
	RendersFailed     int64         `json:"renders_failed"`
	BatchesTotal      int64         `json:"batches_total"`
	BatchesComplete   int64         `json:"batches_complete"`
	BatchesFailed     int64         `json:"batches_failed"`
	ActiveBatches     int64         `json:"active_batches"`
	ValidationsTotal  int64         `json:"validations_total"`
	ValidationsPassed int64         `json:"validations_passed"`
	PreviewsTotal     int64         `json:"previews_total"`
	ArchivesTotal     int64         `json:"archives_total"`
	AvgRenderTime     time.Duration `json:"avg_render_time"`
	P99RenderTime     time.Duration `json:"p99_render_time"`
	SuccessRate       float64       `json:"success_rate"`
}

func (m *Metrics) Snapshot() *Snapshot {
	s := &Snapshot{
		Uptime:            time.Since(m.startTime),
		RendersTotal:      m.rendersTotal.Load(),
		RendersSuccess:    m.rendersSuccess.Load(),
		RendersFailed:     m.rendersFailed.Load(),
		BatchesTotal:      m.batchesTotal.Load(),
		BatchesComplete:   m.batchesComplete.Load(),
		BatchesFailed:     m.batchesFailed.Load(),
		ActiveBatches:     m.activeBatches.Load(),
		ValidationsTotal:  m.validationsTotal.Load(),
		ValidationsPassed: m.validationsPassed.Load(),
		PreviewsTotal:     m.previewsTotal.Load(),
		ArchivesTotal:     m.archivesTotal.Load(),
	}

	if s.RendersTotal > 0 {
		s.SuccessRate = float64(s.RendersSuccess) / float64(s.RendersTotal) * 100
	}

	m.renderTimesLock.Lock()
	if len(m.renderTimes) > 0 {
		var total time.Duration
		for _, rt := range m.renderTimes {
			total += rt
		}
		s.AvgRenderTime = total / time.Duration(len(m.renderTimes))

		sorted := make([]time.Duration, len(m.renderTimes))
		copy(sorted, m.renderTimes)
		for i := 0; i < len(sorted)-1; i++ {
			for j := i + 1; j < len(sorted); j++ {
				if sorted[j] < sorted[i] {
					sorted[i], sorted[j] = sorted[j], sorted[i]
				}
			}
		}
		p99Index := int(float64(len(sorted)) * 0.99)
		if p99Index >= len(sorted) {
			p99Index = len(sorted) - 1
		}
		s.P99RenderTime = sorted[p99Index]
	}
	m.renderTimesLock.Unlock()

	return s
}

func (m *Metrics) Prometheus() string {
	var sb strings.Builder

	sb.WriteString("# HELP certforge_uptime_seconds Time since server start\n")
	sb.WriteString("# TYPE certforge_uptime_seconds gauge\n")
	sb.WriteString("certforge_uptime_seconds " + strconv.FormatInt(int64(time.Since(m.startTime).Seconds()), 10) + "\n\n")

	sb.WriteString("# HELP certforge_renders_total Total certificate renders\n")
	sb.WriteString("# TYPE certforge_renders_total counter\n")
	sb.WriteString("certforge_renders_total " + strconv.FormatInt(m.rendersTotal.Load(), 10) + "\n\n")

	sb.WriteString("# HELP certforge_renders_success Successful renders\n")
	sb.WriteString("# TYPE certforge_renders_success counter\n")
	sb.WriteString("certforge_renders_success " + strconv.FormatInt(m.rendersSuccess.Load(), 10) + "\n\n")

	sb.WriteString("# HELP certforge_renders_failed Failed renders\n")
	sb.WriteString("# TYPE certforge_renders_failed counter\n")
	sb.WriteString("certforge_renders_failed " + strconv.FormatInt(m.rendersFailed.Load(), 10) + "\n\n")

	sb.WriteString("# HELP certforge_batches_total Total batch runs\n")
	sb.WriteString("# TYPE certforge_batches_total counter\n")
	sb.WriteString("certforge_batches_total " + strconv.FormatInt(m.batchesTotal.Load(), 10) + "\n\n")

	sb.WriteString("# HELP certforge_active_batches Batch runs in flight\n")
	sb.WriteString("# TYPE certforge_active_batches gauge\n")
	sb.WriteString("certforge_active_batches " + strconv.FormatInt(m.activeBatches.Load(), 10) + "\n\n")

	sb.WriteString("# HELP certforge_validations_total Template validations\n")
	sb.WriteString("# TYPE certforge_validations_total counter\n")
	sb.WriteString("certforge_validations_total " + strconv.FormatInt(m.validationsTotal.Load(), 10) + "\n\n")

	sb.WriteString("# HELP certforge_previews_total Previews generated\n")
	sb.WriteString("# TYPE certforge_previews_total counter\n")
	sb.WriteString("certforge_previews_total " + strconv.FormatInt(m.previewsTotal.Load(), 10) + "\n\n")

	sb.WriteString("# HELP certforge_archives_total ZIP archives produced\n")
	sb.WriteString("# TYPE certforge_archives_total counter\n")
	sb.WriteString("certforge_archives_total " + strconv.FormatInt(m.archivesTotal.Load(), 10) + "\n\n")

	return sb.String()
}

func RecordRender(success bool, d time.Duration) {
	Default().RecordRender(success, d)
}

func RecordBatchStart() {
	Default().RecordBatchStart()
}

func RecordBatchEnd(success bool) {
	Default().RecordBatchEnd(success)
}

func RecordValidation(valid bool) {
	Default().RecordValidation(valid)
}

func RecordPreview() {
	Default().RecordPreview()
}

func Prometheus() string {
	return Default().Prometheus()
}
