package logging

import (
	"fmt"
	"time"
)

// LogLevel represents the severity of a log message.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
	LogLevelPanic LogLevel = "panic"
)

const (
	defaultAppLogMaxSizeBytes    = 10 * 1024 * 1024
	defaultRotationVerifyInterval = 30 * time.Second
)

// Initialize sets up the global loggers: App for general application
// logging, Audit for security audit log entries.
func Initialize(auditLogPath, appLogPath string, level LogLevel) error {
	var err error

	Audit, err = NewAuditLogger(auditLogPath)
	if err != nil {
		return fmt.Errorf("failed to initialize audit logger: %w", err)
	}

	App, err = NewAppLogger(appLogPath, level, defaultAppLogMaxSizeBytes, defaultRotationVerifyInterval)
	if err != nil {
		return fmt.Errorf("failed to initialize app logger: %w", err)
	}

	return nil
}

// MustInitialize initializes logging and panics on error.
func MustInitialize(auditLogPath, appLogPath string, level LogLevel) {
	if err := Initialize(auditLogPath, appLogPath, level); err != nil {
		panic(fmt.Sprintf("failed to initialize logging: %v", err))
	}
}

var (
	// App is the global application logger.
	App *AppLogger
	// Audit is the global security audit logger.
	Audit AuditLogger
)
