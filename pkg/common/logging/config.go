package logging

import (
	"fmt"
	"io"
	"os"
)

// ConfigureFromSettings builds a Logger from the string-typed settings
// carried by config.LoggingConfig: level ("debug".."error"), format
// ("text" or "json"), output ("console", "file", "both"), and the log
// file path required by the file-backed outputs.
func ConfigureFromSettings(level, format, output, filename string) (*Logger, error) {
	logLevel, err := ParseLogLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	var logFormat LogFormat
	switch format {
	case "json":
		logFormat = JSONFormat
	case "text":
		logFormat = TextFormat
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}

	var writer io.Writer
	switch output {
	case "console":
		writer = os.Stdout
	case "file":
		if filename == "" {
			return nil, fmt.Errorf("log file path required when output is %q", output)
		}
		writer, err = CreateFileOutput(filename)
		if err != nil {
			return nil, err
		}
	case "both":
		if filename == "" {
			return nil, fmt.Errorf("log file path required when output is %q", output)
		}
		writer, err = CreateCombinedOutput(filename)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("invalid log output %q", output)
	}

	return NewLogger(&Config{
		Level:            logLevel,
		Format:           logFormat,
		Output:           writer,
		EnableSanitizing: true,
	}), nil
}

// InitFromConfig configures the global logger from the same settings
// ConfigureFromSettings accepts.
func InitFromConfig(level, format, output, filename string) error {
	logger, err := ConfigureFromSettings(level, format, output, filename)
	if err != nil {
		return err
	}
	InitGlobalLogger(&Config{
		Level:            logger.level,
		Format:           logger.format,
		Output:           logger.output,
		EnableSanitizing: logger.sanitize,
	})
	return nil
}
