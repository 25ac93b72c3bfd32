package services

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/editorial-eng/packsync/internal/common"
	"github.com/editorial-eng/packsync/internal/logging"
)

// Task states.
const (
	TaskPending = "pending"
	TaskRunning = "running"
	TaskDone    = "done"
	TaskFailed  = "failed"
)

// Task is a point-in-time view of a submitted job.
type Task struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Result any    `json:"result,omitempty"`
}

// TaskFunc is the unit of work a task executes.
type TaskFunc func(ctx context.Context) (any, error)

// TaskRunner executes jobs in the background and keeps their status
// in memory. Every service operation stays directly callable; the
// runner only wraps ones a handler wants off the request path.
type TaskRunner struct {
	mu    sync.Mutex
	tasks map[string]*Task
	log   logging.Logger
}

func NewTaskRunner(log logging.Logger) *TaskRunner {
	return &TaskRunner{
		tasks: make(map[string]*Task),
		log:   log,
	}
}

// Submit queues fn and returns the task id immediately. The task runs
// on its own goroutine detached from the submitting request's context.
func (r *TaskRunner) Submit(name string, fn TaskFunc) string {
	task := &Task{
		ID:     uuid.NewString(),
		Name:   name,
		Status: TaskPending,
	}

	r.mu.Lock()
	r.tasks[task.ID] = task
	r.mu.Unlock()

	go r.run(task.ID, name, fn)
	return task.ID
}

func (r *TaskRunner) run(id, name string, fn TaskFunc) {
	ctx := context.Background()

	r.setStatus(id, TaskRunning, "", nil)

	result, err := fn(ctx)
	if err != nil {
		r.log.Error(ctx, "task failed", "task", name, "id", id, "error", err)
		r.setStatus(id, TaskFailed, err.Error(), nil)
		return
	}
	r.setStatus(id, TaskDone, "", result)
}

func (r *TaskRunner) setStatus(id, status, errDetail string, result any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if task, ok := r.tasks[id]; ok {
		task.Status = status
		task.Error = errDetail
		task.Result = result
	}
}

// Status returns a copy of the task's current state.
func (r *TaskRunner) Status(id string) (*Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[id]
	if !ok {
		return nil, common.NotFoundError("no task with id %s", id)
	}
	copy := *task
	return &copy, nil
}
