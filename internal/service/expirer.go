package service

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultExpirerInterval = time.Minute
	defaultSessionTTL      = time.Hour
)

// SessionExpirer periodically evicts sessions idle longer than the TTL.
type SessionExpirer struct {
	sessions *SessionService
	logger   *zap.Logger

	ttl      time.Duration
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewSessionExpirer(sessions *SessionService, ttl time.Duration, logger *zap.Logger) *SessionExpirer {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &SessionExpirer{
		sessions: sessions,
		logger:   logger,
		ttl:      ttl,
		interval: defaultExpirerInterval,
		stopCh:   make(chan struct{}),
	}
}

func (e *SessionExpirer) SetInterval(d time.Duration) {
	e.interval = d
}

// Start runs the expirer on a periodic schedule in a background goroutine.
func (e *SessionExpirer) Start() {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()

		e.logger.Info("session expirer started",
			zap.Duration("interval", e.interval),
			zap.Duration("ttl", e.ttl))

		for {
			select {
			case <-ticker.C:
				e.run()
			case <-e.stopCh:
				e.logger.Info("session expirer stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the expirer.
func (e *SessionExpirer) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.wg.Wait()
}

func (e *SessionExpirer) run() {
	cutoff := e.sessions.now().Add(-e.ttl)
	if n := e.sessions.ExpireIdle(cutoff); n > 0 {
		e.logger.Info("expired idle sessions",
			zap.Int("count", n),
			zap.Int("remaining", e.sessions.Count()))
	}
}
