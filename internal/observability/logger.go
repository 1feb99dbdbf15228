package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog for structured logging.
type Logger struct {
	logger zerolog.Logger
}

// LogOptions selects level and encoding.
type LogOptions struct {
	// Level is a zerolog level name (debug, info, warn, error). Empty means info.
	Level string
	// Format is "json" or "console". Empty means json.
	Format string
}

// NewLogger creates a new structured logger.
func NewLogger(service, version string, output io.Writer, opts LogOptions) *Logger {
	if output == nil {
		output = os.Stderr
	}

	zerolog.TimeFieldFormat = time.RFC3339

	if strings.EqualFold(opts.Format, "console") {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.Kitchen}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	logger := zerolog.New(output).Level(level).With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Str("host", getHostname()).
		Logger()

	return &Logger{logger: logger}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{logger: zerolog.Nop()}
}

// WithAction adds action context to logger.
func (l *Logger) WithAction(actionID, action string) *Logger {
	return &Logger{
		logger: l.logger.With().Str("action_id", actionID).Str("action", action).Logger(),
	}
}

// WithBackend adds backend context to logger.
func (l *Logger) WithBackend(name string) *Logger {
	return &Logger{
		logger: l.logger.With().Str("backend", name).Logger(),
	}
}

// WithAccount adds the caller account to logger.
func (l *Logger) WithAccount(account string) *Logger {
	return &Logger{
		logger: l.logger.With().Str("account", account).Logger(),
	}
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string) {
	l.logger.Debug().Msg(msg)
}

// Info logs an info message.
func (l *Logger) Info(msg string) {
	l.logger.Info().Msg(msg)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string) {
	l.logger.Warn().Msg(msg)
}

// Error logs an error message.
func (l *Logger) Error(err error, msg string) {
	l.logger.Error().Err(err).Msg(msg)
}

// ContractCall logs the completion of one remote contract call.
func (l *Logger) ContractCall(method, hash string, elapsed time.Duration, err error) {
	if err != nil {
		l.logger.Warn().
			Str("method", method).
			Str("hash", hash).
			Float64("elapsed_seconds", elapsed.Seconds()).
			Err(err).
			Msg("contract call failed")
		return
	}
	l.logger.Debug().
		Str("method", method).
		Str("hash", hash).
		Float64("elapsed_seconds", elapsed.Seconds()).
		Msg("contract call completed")
}

// FileHashed logs a completed digest.
func (l *Logger) FileHashed(name string, size int64, hash string) {
	l.logger.Info().
		Str("file", name).
		Int64("file_size", size).
		Str("hash", hash).
		Msg("file hashed")
}

// NotarizeSkipped logs a notarization short-circuited by an existing record.
func (l *Logger) NotarizeSkipped(hash, owner string, timestamp int64) {
	l.logger.Info().
		Str("hash", hash).
		Str("owner", owner).
		Int64("timestamp", timestamp).
		Msg("document already notarized, submission skipped")
}

// TransactionMined logs a mined notarization transaction.
func (l *Logger) TransactionMined(txHash string, block uint64, gasUsed uint64) {
	l.logger.Info().
		Str("tx_hash", txHash).
		Uint64("block", block).
		Uint64("gas_used", gasUsed).
		Msg("notarization transaction mined")
}

// RPCHandled logs one gateway request.
func (l *Logger) RPCHandled(method, code string, elapsed time.Duration, err error) {
	ev := l.logger.Info()
	if err != nil {
		ev = l.logger.Warn().Err(err)
	}
	ev.Str("method", method).
		Str("code", code).
		Dur("duration", elapsed).
		Msg("request handled")
}

// Helper function to get hostname.
func getHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}
