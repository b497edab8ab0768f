package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/carloswaibl/algotrader/internal/api"
	"github.com/carloswaibl/algotrader/internal/staging"
)

// Fetcher writes the Parquet body of one task and reports its row count.
// Returning api.ErrNotFound marks the task as having no vendor data.
type Fetcher interface {
	Fetch(ctx context.Context, task Task, w io.Writer) (int, error)
}

type Manager struct {
	fetcher Fetcher
	staging *staging.Manager
	workers int
	resume  bool
	logger  *zap.Logger
}

type BatchResult struct {
	Total    int
	Success  int
	Skipped  int
	NotFound int
	Failed   int
	Rows     int
	Errors   []string
}

// HasFailures reports whether any task failed outright.
func (r *BatchResult) HasFailures() bool {
	return r.Failed > 0
}

func NewManager(fetcher Fetcher, staging *staging.Manager, workers int, logger *zap.Logger) *Manager {
	if workers < 1 {
		workers = 1
	}
	return &Manager{
		fetcher: fetcher,
		staging: staging,
		workers: workers,
		resume:  true,
		logger:  logger,
	}
}

// SetResume controls whether tasks whose output file already exists are
// skipped. With resume off they are downloaded again and replaced.
func (m *Manager) SetResume(enabled bool) {
	m.resume = enabled
}

func (m *Manager) Execute(ctx context.Context, tasks []Task) (*BatchResult, error) {
	result := &BatchResult{Total: len(tasks)}

	if len(tasks) == 0 {
		return result, nil
	}

	jobs := make(chan Task, len(tasks))
	results := make(chan TaskResult, len(tasks))

	// Start workers
	var wg sync.WaitGroup
	for i := 0; i < m.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			m.worker(ctx, workerID, jobs, results)
		}(i)
	}

	// Send jobs
	go func() {
		defer close(jobs)
		for _, task := range tasks {
			select {
			case <-ctx.Done():
				return
			case jobs <- task:
			}
		}
	}()

	// Wait for workers and close results
	go func() {
		wg.Wait()
		close(results)
	}()

	// Collect results
	for r := range results {
		switch {
		case r.Skipped:
			result.Skipped++
		case r.NotFound:
			result.NotFound++
		case r.Success:
			result.Success++
			result.Rows += r.Rows
		default:
			result.Failed++
			if r.Error != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", r.Task, r.Error))
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (m *Manager) worker(ctx context.Context, id int, jobs <-chan Task, results chan<- TaskResult) {
	for task := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		result := m.processTask(ctx, task)

		select {
		case <-ctx.Done():
			return
		case results <- result:
		}
	}
}

func (m *Manager) processTask(ctx context.Context, task Task) TaskResult {
	result := TaskResult{Task: task}

	outputPath := task.OutputPath(m.staging.FinalDir())

	// Check if file exists (resume)
	if _, err := os.Stat(outputPath); m.resume && err == nil {
		m.logger.Debug("skipping existing file", zap.String("task", task.String()))
		result.Skipped = true
		result.Success = true
		return result
	}

	m.logger.Info("downloading", zap.String("task", task.String()))

	stagingPath := task.OutputPath(m.staging.StagingDir(task.Date))
	var rows int
	size, err := m.staging.WriteToStaging(stagingPath, func(w io.Writer) error {
		var fetchErr error
		rows, fetchErr = m.fetcher.Fetch(ctx, task, w)
		return fetchErr
	})
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			m.logger.Debug("not found", zap.String("task", task.String()))
			result.NotFound = true
			return result
		}
		m.logger.Warn("download failed", zap.String("task", task.String()), zap.Error(err))
		result.Error = err
		return result
	}

	result.Success = true
	result.Rows = rows
	result.BytesSize = size
	m.logger.Info("downloaded",
		zap.String("task", task.String()),
		zap.Int("rows", rows),
		zap.Int64("bytes", size))

	return result
}
