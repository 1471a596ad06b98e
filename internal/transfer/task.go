// Package transfer tracks upload tasks for the dashboard.
// The queue observes transfers executed elsewhere: callers register tasks,
// report progress and mark the outcome, and the queue publishes events.
package transfer

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the lifecycle state of an upload task.
type TaskStatus string

const (
	StatusUploading TaskStatus = "uploading" // Bytes are moving
	StatusComplete  TaskStatus = "complete"  // Stored successfully
	StatusError     TaskStatus = "error"     // Failed; kept until dismissed
)

// IsTerminal reports whether the status can no longer change.
func (s TaskStatus) IsTerminal() bool {
	return s == StatusComplete || s == StatusError
}

// UploadTask is one file being uploaded. Values returned by the queue are
// snapshots.
type UploadTask struct {
	ID       string     `json:"id" yaml:"id"`
	Name     string     `json:"name" yaml:"name"`     // Object key (file base name)
	Source   string     `json:"source" yaml:"source"` // Local path
	Size     int64      `json:"size" yaml:"size"`
	Progress int        `json:"progress" yaml:"progress"` // 0..100
	Status   TaskStatus `json:"status" yaml:"status"`
	Error    string     `json:"error,omitempty" yaml:"error,omitempty"`

	CreatedAt   time.Time `json:"createdAt" yaml:"createdAt"`
	CompletedAt time.Time `json:"completedAt,omitempty" yaml:"completedAt,omitempty"`
}

// newUploadTask creates a task in StatusUploading with a random UUID.
func newUploadTask(name, source string, size int64) *UploadTask {
	return &UploadTask{
		ID:        uuid.NewString(),
		Name:      name,
		Source:    source,
		Size:      size,
		Status:    StatusUploading,
		CreatedAt: time.Now(),
	}
}

// Percent converts transferred/total to a whole percentage in 0..100.
// An unknown or zero total yields 0.
func Percent(transferred, total int64) int {
	if total <= 0 || transferred <= 0 {
		return 0
	}
	p := int(math.Round(float64(transferred) / float64(total) * 100))
	if p > 100 {
		return 100
	}
	return p
}
