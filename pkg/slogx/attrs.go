// Package slogx holds small slog.Attr constructors shared across the service.
package slogx

import (
	"log/slog"
)

// Error wraps an error as an "error" attribute.
func Error(err error) slog.Attr {
	return slog.String("error", err.Error())
}

// Session tags a record with the owning chat session.
func Session(id string) slog.Attr {
	return slog.String("session_id", id)
}

// Agent tags a record with the agent that produced it.
func Agent(name string) slog.Attr {
	return slog.String("agent", name)
}

// ByteString logs a byte slice as a string without an intermediate copy at the
// call site.
func ByteString(key string, value []byte) slog.Attr {
	return slog.String(key, string(value))
}

// KeyLoggerName is the attribute key naming the subsystem logger.
const KeyLoggerName = "logger"

// LoggerName names the subsystem a record originates from.
func LoggerName(name string) slog.Attr {
	return slog.String(KeyLoggerName, name)
}
