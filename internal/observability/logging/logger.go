// Package logging provides structured logging helpers built on zerolog.
package logging

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// WithComponent returns a logger with a component tag.
func WithComponent(component string) zerolog.Logger {
	return log.With().
		Str("component", component).
		Logger()
}

// WithSession returns a logger with session context.
func WithSession(sessionId string) zerolog.Logger {
	return log.With().
		Str("sessionId", sessionId).
		Logger()
}

// WithEngine returns a logger with engine provider context.
func WithEngine(provider string) zerolog.Logger {
	return log.With().
		Str("engineProvider", provider).
		Logger()
}
