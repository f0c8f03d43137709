package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/mmcdole/artisec/pkg/authorization"
)

// AuditLogger records security audit log entries. Any AuditLogger
// satisfies grantfile.AuditSink, so it can be wired directly as the sink
// a grantfile.Source writes denied/granted decisions through.
type AuditLogger interface {
	LogDecision(entry authorization.SecurityAuditLog)
}

type auditLogger struct {
	logger *log.Logger
}

// NewAuditLogger creates a new audit logger writing logfmt-style lines
// to logPath, or discarding them if logPath is empty.
func NewAuditLogger(logPath string) (AuditLogger, error) {
	var writer io.Writer

	if logPath == "" {
		writer = io.Discard
	} else {
		f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening audit log file: %w", err)
		}
		writer = f
	}

	return &auditLogger{
		logger: log.New(writer, "", 0), // no flags, we format timestamps ourselves
	}, nil
}

// formatValue formats a value for logfmt, quoting if necessary.
func formatValue(v interface{}) string {
	s := fmt.Sprintf("%v", v)
	if strings.ContainsAny(s, " =\"") {
		s = strings.ReplaceAll(s, "\"", "\\\"")
		return fmt.Sprintf("\"%s\"", s)
	}
	return s
}

func (l *auditLogger) LogDecision(entry authorization.SecurityAuditLog) {
	decision := "denied"
	if entry.Granted {
		decision = "granted"
	}

	parts := []string{
		fmt.Sprintf("user=%s", formatValue(entry.UserLoginID)),
		fmt.Sprintf("path=%s", formatValue(entry.Path)),
		fmt.Sprintf("permission=%s", formatValue(entry.Permission)),
		fmt.Sprintf("decision=%s", decision),
	}
	if entry.Reason != "" {
		parts = append(parts, fmt.Sprintf("reason=%s", formatValue(entry.Reason)))
	}

	timestamp := time.Now().UTC().Format("2006-01-02 15:04:05 -0700")
	l.logger.Printf("%s %s", timestamp, strings.Join(parts, " "))
}
