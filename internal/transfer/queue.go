package transfer

import (
	"errors"
	"sync"
	"time"

	"github.com/blackdropbox/blackdropbox/internal/events"
)

// Queue errors
var (
	ErrTaskNotFound = errors.New("upload task not found")
	ErrTaskActive   = errors.New("upload task is still in progress")
)

// QueueStats holds counts of tracked tasks by status.
type QueueStats struct {
	Uploading int
	Complete  int
	Failed    int
}

// Total returns total number of tasks in queue.
func (s QueueStats) Total() int {
	return s.Uploading + s.Complete + s.Failed
}

// Queue is a passive upload tracker that publishes events for UI updates.
// It does NOT execute transfers.
//
// Terminal tasks never change again: progress, completion and failure
// reports for a finished task are ignored.
type Queue struct {
	tasks     []*UploadTask          // All tasks in creation order
	tasksByID map[string]*UploadTask // Index by ID for quick lookup
	mu        sync.RWMutex

	eventBus *events.EventBus
}

// NewQueue creates a new queue with the specified event bus, which may be nil.
func NewQueue(eventBus *events.EventBus) *Queue {
	return &Queue{
		tasksByID: make(map[string]*UploadTask),
		eventBus:  eventBus,
	}
}

// Track registers a new upload in StatusUploading with progress 0.
func (q *Queue) Track(name, source string, size int64) UploadTask {
	task := newUploadTask(name, source, size)

	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	q.tasksByID[task.ID] = task
	snapshot := *task
	q.mu.Unlock()

	q.publish(events.EventUploadQueued, snapshot)
	return snapshot
}

// UpdateProgress records transferred/total bytes. Progress only moves
// forward; it returns the resulting percentage and whether it changed.
func (q *Queue) UpdateProgress(taskID string, transferred, total int64) (int, bool) {
	percent := Percent(transferred, total)

	q.mu.Lock()
	task, exists := q.tasksByID[taskID]
	if !exists || task.Status != StatusUploading || percent <= task.Progress {
		current := 0
		if exists {
			current = task.Progress
		}
		q.mu.Unlock()
		return current, false
	}
	task.Progress = percent
	snapshot := *task
	q.mu.Unlock()

	q.publish(events.EventUploadProgress, snapshot)
	return percent, true
}

// Complete marks an uploading task as complete with progress 100.
// It returns true only for the transition itself, so callers can fire
// completion side effects exactly once.
func (q *Queue) Complete(taskID string) bool {
	q.mu.Lock()
	task, exists := q.tasksByID[taskID]
	if !exists || task.Status != StatusUploading {
		q.mu.Unlock()
		return false
	}
	task.Status = StatusComplete
	task.Progress = 100
	task.CompletedAt = time.Now()
	snapshot := *task
	q.mu.Unlock()

	q.publish(events.EventUploadCompleted, snapshot)
	return true
}

// Fail marks an uploading task as failed with err's message.
func (q *Queue) Fail(taskID string, err error) bool {
	msg := "upload failed"
	if err != nil {
		msg = err.Error()
	}

	q.mu.Lock()
	task, exists := q.tasksByID[taskID]
	if !exists || task.Status != StatusUploading {
		q.mu.Unlock()
		return false
	}
	task.Status = StatusError
	task.Error = msg
	task.CompletedAt = time.Now()
	snapshot := *task
	q.mu.Unlock()

	q.publish(events.EventUploadFailed, snapshot)
	return true
}

// Remove drops a task from the active set regardless of status.
func (q *Queue) Remove(taskID string) bool {
	q.mu.Lock()
	task, exists := q.tasksByID[taskID]
	if !exists {
		q.mu.Unlock()
		return false
	}
	delete(q.tasksByID, taskID)
	for i, t := range q.tasks {
		if t.ID == taskID {
			q.tasks = append(q.tasks[:i], q.tasks[i+1:]...)
			break
		}
	}
	snapshot := *task
	q.mu.Unlock()

	q.publish(events.EventUploadRemoved, snapshot)
	return true
}

// Dismiss removes a terminal task. Uploading tasks cannot be dismissed.
func (q *Queue) Dismiss(taskID string) error {
	q.mu.RLock()
	task, exists := q.tasksByID[taskID]
	var status TaskStatus
	if exists {
		status = task.Status
	}
	q.mu.RUnlock()

	if !exists {
		return ErrTaskNotFound
	}
	if !status.IsTerminal() {
		return ErrTaskActive
	}
	q.Remove(taskID)
	return nil
}

// Tasks returns snapshots of all tasks in creation order.
func (q *Queue) Tasks() []UploadTask {
	q.mu.RLock()
	defer q.mu.RUnlock()

	result := make([]UploadTask, len(q.tasks))
	for i, task := range q.tasks {
		result[i] = *task
	}
	return result
}

// Get returns a snapshot of one task.
func (q *Queue) Get(taskID string) (UploadTask, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	task, exists := q.tasksByID[taskID]
	if !exists {
		return UploadTask{}, false
	}
	return *task, true
}

// Stats returns current queue statistics.
func (q *Queue) Stats() QueueStats {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var stats QueueStats
	for _, task := range q.tasks {
		switch task.Status {
		case StatusUploading:
			stats.Uploading++
		case StatusComplete:
			stats.Complete++
		case StatusError:
			stats.Failed++
		}
	}
	return stats
}

func (q *Queue) publish(eventType events.EventType, task UploadTask) {
	q.eventBus.PublishUpload(eventType, task.ID, task.Name, task.Size, task.Progress, task.Error)
}
