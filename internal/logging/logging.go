package logging

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// New builds the run logger: human-readable console output plus an
// append-only run.log next to the workbook, so scheduled runs leave an
// auditable trail. The returned func closes the log file.
func New(logPath string) (zerolog.Logger, func(), error) {
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return zerolog.Nop(), func() {}, err
	}

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return zerolog.Nop(), func() {}, err
	}

	console := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "2006-01-02 15:04:05",
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(console, file)).
		Level(levelFromEnv()).
		With().Timestamp().Logger()

	return logger, func() { _ = file.Close() }, nil
}

func levelFromEnv() zerolog.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
