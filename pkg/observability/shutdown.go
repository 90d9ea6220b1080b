package observability

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ShutdownFunc releases one resource during shutdown.
type ShutdownFunc func(ctx context.Context) error

type namedShutdown struct {
	name string
	fn   ShutdownFunc
}

// ShutdownManager coordinates graceful shutdown of registered resources.
type ShutdownManager struct {
	mu      sync.Mutex
	funcs   []namedShutdown
	timeout time.Duration
	logger  *Logger
}

// NewShutdownManager creates a shutdown manager with the given timeout.
func NewShutdownManager(timeout time.Duration, logger *Logger) *ShutdownManager {
	return &ShutdownManager{timeout: timeout, logger: logger}
}

// Register adds a named shutdown function. Functions run concurrently when
// Shutdown is called.
func (m *ShutdownManager) Register(name string, fn ShutdownFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.funcs = append(m.funcs, namedShutdown{name: name, fn: fn})
}

// Wait blocks until SIGINT or SIGTERM is received, then runs shutdown.
func (m *ShutdownManager) Wait() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	m.logger.WithField("signal", sig.String()).Info("Shutdown signal received")

	m.Shutdown()
}

// Shutdown runs all registered shutdown functions within the timeout.
func (m *ShutdownManager) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	m.mu.Lock()
	funcs := make([]namedShutdown, len(m.funcs))
	copy(funcs, m.funcs)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range funcs {
		wg.Add(1)
		go func(s namedShutdown) {
			defer wg.Done()
			if err := s.fn(ctx); err != nil {
				m.logger.WithError(err).Errorf("Shutdown of %s failed", s.name)
				return
			}
			m.logger.Infof("Shutdown of %s complete", s.name)
		}(s)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("Graceful shutdown complete")
	case <-ctx.Done():
		m.logger.Warn("Shutdown timed out, some resources may not have closed cleanly")
	}
}
