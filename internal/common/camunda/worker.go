// internal/common/camunda/worker.go
package camunda

import (
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"go.uber.org/zap"
)

// JobHandlerFunc is the signature every task handler exposes as Handle.
// Handlers report their own outcome to the broker (complete or throw-error),
// so nothing is returned here.
type JobHandlerFunc func(client worker.JobClient, job entities.Job)

// Worker is one open job subscription on the broker.
type Worker struct {
	worker   worker.JobWorker
	logger   *zap.Logger
	taskType string
}

// NewWorker opens a job subscription for taskType and dispatches polled jobs
// to the handler.
func (c *Client) NewWorker(taskType string, handler JobHandlerFunc, maxJobsActive int, timeout time.Duration, log *zap.Logger) *Worker {
	jobWorker := c.client.NewJobWorker().
		JobType(taskType).
		Handler(worker.JobHandler(handler)).
		MaxJobsActive(maxJobsActive).
		Timeout(timeout).
		Open()

	log.Info("worker started",
		zap.String("taskType", taskType),
		zap.Int("maxJobsActive", maxJobsActive),
		zap.Duration("timeout", timeout),
	)

	return &Worker{
		worker:   jobWorker,
		logger:   log,
		taskType: taskType,
	}
}

// Close drains and closes the subscription. The shared client stays open.
func (w *Worker) Close() {
	w.logger.Info("stopping worker", zap.String("taskType", w.taskType))
	w.worker.Close()
}
