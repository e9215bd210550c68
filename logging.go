// Package-level logging configuration.
//
// Logging is an infrastructure cross-cutting concern shared by every loop in
// the process, so it is configured once, globally, rather than per slot.
// The default is a nil logiface logger, which is a safe no-op.

package easyloop

import (
	"sync"

	"github.com/joeycumines/logiface"
)

var globalLogger struct {
	sync.RWMutex
	logger *logiface.Logger[logiface.Event]
}

// SetLogger sets the package-level structured logger. Pass nil to disable
// logging (the default). Loggers for concrete backends can be generalized
// via their Logger method, e.g. stumpy's.
func SetLogger(logger *logiface.Logger[logiface.Event]) {
	globalLogger.Lock()
	defer globalLogger.Unlock()
	globalLogger.logger = logger
}

// getLogger returns the configured logger. A nil return is valid: all
// logiface builder methods no-op on a nil logger.
func getLogger() *logiface.Logger[logiface.Event] {
	globalLogger.RLock()
	defer globalLogger.RUnlock()
	return globalLogger.logger
}
