package shared

import (
	"go.uber.org/zap"
)

// LoggerConfig holds the configuration for the logger.
type LoggerConfig struct {
	ServiceName string // "prove" or "verify"
	Development bool   // true for development mode
}

// Logger wraps zap.Logger with additional context.
type Logger struct {
	*zap.Logger
	serviceName string
}

// NewLogger creates a new logger instance based on the configuration.
func NewLogger(config LoggerConfig) (*Logger, error) {
	var zapLogger *zap.Logger
	var err error

	if config.Development {
		zapConfig := zap.NewDevelopmentConfig()
		zapConfig.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		zapLogger, err = zapConfig.Build()
	} else {
		zapConfig := zap.NewProductionConfig()
		zapConfig.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
		zapLogger, err = zapConfig.Build()
	}
	if err != nil {
		return nil, err
	}

	zapLogger = zapLogger.With(zap.String("service", config.ServiceName))

	return &Logger{Logger: zapLogger, serviceName: config.ServiceName}, nil
}

// NewLoggerFromEnv creates a logger using environment variables.
func NewLoggerFromEnv(serviceName string) (*Logger, error) {
	config := LoggerConfig{
		ServiceName: serviceName,
		Development: GetEnvOrDefault("DEVELOPMENT", "false") == "true",
	}
	return NewLogger(config)
}

// WithScope returns a child logger carrying the run's provider scope string.
func (l *Logger) WithScope(scope string) *zap.Logger {
	if scope == "" {
		return l.Logger
	}
	return l.Logger.With(zap.String("scope", scope))
}

// Security logs a security-relevant event at Warn level, tagged with
// security_event=true.
func (l *Logger) Security(msg string, fields ...zap.Field) {
	l.Logger.Warn(msg, append(fields, zap.Bool("security_event", true))...)
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	return l.Logger.Sync()
}
