package ws

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/carloswaibl/algotrader/internal/data"
)

const streamClient = "stream"

// Streamer advances every subscribed session by one bar per tick and
// broadcasts the frame to the session's group. All subscribers of a group
// share one cursor.
type Streamer struct {
	hub      *Hub
	loader   data.Loader
	cursors  *data.IndexCache
	maxAge   time.Duration
	interval time.Duration
	ended    map[string]bool
	logger   *zap.Logger
}

func NewStreamer(hub *Hub, loader data.Loader, cursors *data.IndexCache, maxAge, interval time.Duration, logger *zap.Logger) *Streamer {
	return &Streamer{
		hub:      hub,
		loader:   loader,
		cursors:  cursors,
		maxAge:   maxAge,
		interval: interval,
		ended:    make(map[string]bool),
		logger:   logger,
	}
}

// Run starts the streaming loop. Call in a goroutine.
// Returns when context is cancelled.
func (s *Streamer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("streamer started", zap.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("streamer stopping")
			return

		case <-ticker.C:
			s.broadcastNext()
		}
	}
}

// broadcastNext sends the next bar to all active groups.
func (s *Streamer) broadcastNext() {
	for _, group := range s.hub.GetActiveGroups() {
		payload, ok := s.next(group)
		if ok {
			s.hub.Broadcast(group, payload)
		}
	}
}

// next builds the group's next message. A finished session yields one end
// message, then nothing until its cursor is reset.
func (s *Streamer) next(group string) ([]byte, bool) {
	root, date, err := ParseGroup(group)
	if err != nil {
		return nil, false
	}

	bars, err := s.loader.LoadBars(root, date)
	if err != nil {
		s.logger.Debug("failed to load bars", zap.String("group", group), zap.Error(err))
		return nil, false
	}

	key := data.CacheKey(root, date, streamClient)
	idx, exhausted := s.cursors.GetAndAdvance(key, len(bars))
	if exhausted {
		if s.ended[group] {
			return nil, false
		}
		s.ended[group] = true
		return endMessage(group), true
	}
	delete(s.ended, group)

	chain, err := s.loader.LoadChain(root, date)
	if err != nil && !errors.Is(err, data.ErrNotFound) {
		s.logger.Debug("failed to load chain", zap.String("group", group), zap.Error(err))
	}

	s.logger.Debug("broadcast bar", zap.String("group", group), zap.Int("index", idx))
	return barMessage(group, data.NewReplayFrame(root, date, idx, bars, chain, s.maxAge)), true
}
