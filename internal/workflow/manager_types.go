package workflow

import (
	"log/slog"
	"time"

	"reelhouse/internal/queue"
	"reelhouse/internal/stage"
)

// HandlerSet bundles the concrete job handlers the manager dispatches to.
type HandlerSet struct {
	Convert          stage.Handler
	ExtractSubtitles stage.Handler
	ConvertSubtitles stage.Handler
}

type laneState struct {
	lane    queue.Lane
	workers int
	timeout time.Duration
	wake    chan struct{}
	logger  *slog.Logger
}

// ConfigureHandlers registers the handlers the workflow will run. A lane is
// started only when at least one of its kinds has a handler.
func (m *Manager) ConfigureHandlers(set HandlerSet) {
	handlers := make(map[queue.Kind]stage.Handler, 3)
	if set.Convert != nil {
		handlers[queue.KindConvert] = set.Convert
	}
	if set.ExtractSubtitles != nil {
		handlers[queue.KindExtractSubtitles] = set.ExtractSubtitles
	}
	if set.ConvertSubtitles != nil {
		handlers[queue.KindConvertSubtitles] = set.ConvertSubtitles
	}

	lanes := make(map[queue.Lane]*laneState, 2)
	order := make([]queue.Lane, 0, 2)
	for _, lane := range queue.Lanes() {
		active := false
		for kind := range handlers {
			if queue.LaneFor(kind) == lane {
				active = true
				break
			}
		}
		if !active {
			continue
		}
		state := &laneState{
			lane:    lane,
			workers: m.laneWorkers(lane),
			timeout: m.laneTimeout(lane),
			wake:    make(chan struct{}, 1),
		}
		lanes[lane] = state
		order = append(order, lane)
	}

	m.mu.Lock()
	m.handlers = handlers
	m.lanes = lanes
	m.laneOrder = order
	m.mu.Unlock()
}

func (m *Manager) laneWorkers(lane queue.Lane) int {
	workers := m.cfg.Queue.SubtitleWorkers
	if lane == queue.LaneConversion {
		workers = m.cfg.Queue.ConversionWorkers
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}

func (m *Manager) laneTimeout(lane queue.Lane) time.Duration {
	if lane == queue.LaneConversion {
		return m.cfg.ConversionTimeout()
	}
	return m.cfg.SubtitleTimeout()
}

func (m *Manager) handlerFor(kind queue.Kind) stage.Handler {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.handlers[kind]
}

// Notify wakes an idle worker of lane so a freshly enqueued job starts
// without waiting for the next poll.
func (m *Manager) Notify(lane queue.Lane) {
	m.mu.RLock()
	state := m.lanes[lane]
	m.mu.RUnlock()
	if state == nil {
		return
	}
	select {
	case state.wake <- struct{}{}:
	default:
	}
}
