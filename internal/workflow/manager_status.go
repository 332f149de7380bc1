package workflow

import (
	"context"

	"reelhouse/internal/logging"
	"reelhouse/internal/metrics"
	"reelhouse/internal/queue"
	"reelhouse/internal/stage"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running     bool
	LastError   string
	LastJob     *queue.Job
	QueueStats  []queue.Count
	LaneWorkers map[queue.Lane]int
	StageHealth map[string]stage.Health
}

// Status returns the latest workflow information and refreshes the queue
// depth gauges.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	lastJob := m.lastJob
	handlers := make(map[queue.Kind]stage.Handler, len(m.handlers))
	for kind, handler := range m.handlers {
		handlers[kind] = handler
	}
	workers := make(map[queue.Lane]int, len(m.lanes))
	for name, lane := range m.lanes {
		workers[name] = lane.workers
	}
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats", logging.Error(err))
	}
	metrics.QueueJobs.Reset()
	for _, count := range stats {
		metrics.QueueJobs.WithLabelValues(string(count.Lane), string(count.Status)).Set(float64(count.Jobs))
	}

	health := make(map[string]stage.Health, len(handlers))
	for kind, handler := range handlers {
		health[string(kind)] = handler.HealthCheck(ctx)
	}

	summary := StatusSummary{
		Running:     running,
		QueueStats:  stats,
		LaneWorkers: workers,
		StageHealth: health,
	}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	if lastJob != nil {
		copy := *lastJob
		summary.LastJob = &copy
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastJob(job *queue.Job) {
	m.mu.Lock()
	if job != nil {
		copy := *job
		m.lastJob = &copy
	} else {
		m.lastJob = nil
	}
	m.mu.Unlock()
}
