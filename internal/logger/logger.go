package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Global logger instance
var (
	Log zerolog.Logger
)

// Initialize sets up the global logger with configuration
func Initialize(level string, pretty bool) {
	// Parse log level
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	// Configure output format
	if pretty {
		// Pretty console output for development
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	} else {
		// JSON output for production
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	}

	// Set global logger
	Log = log.With().
		Str("service", "playground-api").
		Logger()

	Log.Info().
		Str("level", logLevel.String()).
		Bool("pretty", pretty).
		Msg("Logger initialized")
}

// GetLogger returns the global logger instance
func GetLogger() *zerolog.Logger {
	return &Log
}

// Component returns a sub-logger tagged with the given component name.
func Component(name string) *zerolog.Logger {
	l := Log.With().Str("component", name).Logger()
	return &l
}

// Gateway creates a logger for the Cluster Gateway (C1).
func Gateway() *zerolog.Logger {
	return Component("gateway")
}

// Store creates a logger for the Resource Store (C2).
func Store() *zerolog.Logger {
	return Component("store")
}

// Authz creates a logger for the Authorization component (C3).
func Authz() *zerolog.Logger {
	return Component("authz")
}

// Repository creates a logger for the Repository Pipeline (C4).
func Repository() *zerolog.Logger {
	return Component("repository")
}

// Session creates a logger for the Session Orchestrator (C5).
func Session() *zerolog.Logger {
	return Component("session")
}

// Ingress creates a logger for the Ingress Router (C6).
func Ingress() *zerolog.Logger {
	return Component("ingress")
}

// Reaper creates a logger for the Reaper Loop (C7).
func Reaper() *zerolog.Logger {
	return Component("reaper")
}

// HTTP creates a logger for HTTP request events.
func HTTP() *zerolog.Logger {
	return Component("http")
}
