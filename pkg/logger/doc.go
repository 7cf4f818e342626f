// Package logger provides structured logging for pinscraper.
//
// It wraps zerolog behind a small Logger interface so that components can
// attach fields without depending on zerolog directly:
//
//	log := logger.GetLogger().WithField("component", "migrate")
//	log.InfoWithFields("category relocated", map[string]interface{}{
//	    "category": "animals",
//	    "objects":  42,
//	})
//
// Initialize installs the process-global logger from a config.LoggingConfig.
// Tests use NewNopLogger or NewTestLogger, which captures messages.
package logger
