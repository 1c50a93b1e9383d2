package store

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Batch run lifecycle states.
const (
	RunStatusPending  = "pending"
	RunStatusRunning  = "running"
	RunStatusComplete = "complete"
	RunStatusFailed   = "failed"
)

// BatchRun is the persisted record of one batch generation request.
type BatchRun struct {
	ID           string     `gorm:"primaryKey" json:"id"`
	TemplatePath string     `json:"template_path"`
	Status       string     `gorm:"index" json:"status"`
	Total        int        `json:"total"`
	Succeeded    int        `json:"succeeded"`
	Failed       int        `json:"failed"`
	ArchivePath  string     `json:"archive_path,omitempty"`
	Error        string     `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`

	Records []RenderRecord `gorm:"foreignKey:BatchRunID" json:"records,omitempty"`
}

func (r *BatchRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// RenderRecord is the persisted outcome for one recipient within a run.
// Position is the recipient's index in the submitted list.
type RenderRecord struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	BatchRunID string    `gorm:"index" json:"-"`
	Position   int       `json:"position"`
	Filename   string    `json:"filename,omitempty"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}
