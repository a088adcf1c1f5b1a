// Package graceful coordinates ordered shutdown. Components register in
// dependency order and are stopped in that order before the HTTP server
// and database close.
package graceful

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/umoja-exchange/settlement-service/pkg/logger"
)

const drainTimeout = 30 * time.Second

type Shutdowner interface {
	Shutdown(timeout time.Duration) error
}

// ShutdownFunc adapts a plain function to the Shutdowner interface
type ShutdownFunc func(timeout time.Duration) error

func (f ShutdownFunc) Shutdown(timeout time.Duration) error {
	return f(timeout)
}

type component struct {
	name string
	stop Shutdowner
}

type ShutdownManager struct {
	server     *http.Server
	db         *sql.DB
	components []component
	logger     *logger.Logger
}

func NewShutdownManager(server *http.Server, db *sql.DB, logger *logger.Logger) *ShutdownManager {
	return &ShutdownManager{
		server: server,
		db:     db,
		logger: logger,
	}
}

// Register adds a component to the shutdown sequence. Components stop in
// registration order, before the HTTP server and the database.
func (sm *ShutdownManager) Register(name string, s Shutdowner) {
	sm.components = append(sm.components, component{name: name, stop: s})
}

// WaitForShutdown blocks until SIGINT or SIGTERM, then drains the service.
func (sm *ShutdownManager) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	sm.logger.Info("Shutting down", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	for _, c := range sm.components {
		if err := c.stop.Shutdown(drainTimeout); err != nil {
			sm.logger.Warn("Component shutdown error", "component", c.name, "error", err)
		}
	}

	if err := sm.server.Shutdown(ctx); err != nil {
		sm.logger.Error("Server forced shutdown", "error", err)
	}

	if err := sm.db.Close(); err != nil {
		sm.logger.Warn("Database close error", "error", err)
	}

	sm.logger.Info("Shutdown complete")
}
