package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/ethereum/go-ethereum/log"
)

const (
	LevelFlagName  = "log.level"
	FormatFlagName = "log.format"
	ColorFlagName  = "log.color"
)

// FormatType defines a type of log format.
type FormatType string

const (
	FormatText     FormatType = "text"
	FormatTerminal FormatType = "terminal"
	FormatLogFmt   FormatType = "logfmt"
	FormatJSON     FormatType = "json"
)

// ParseFormat parses a log format type, returning an error for unknown formats.
func ParseFormat(v string) (FormatType, error) {
	switch f := FormatType(strings.ToLower(v)); f {
	case FormatText, FormatTerminal, FormatLogFmt, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unrecognized log format: %q", v)
	}
}

// LevelFromString returns the appropriate level from a string name.
// Useful for parsing command line args and configuration files.
func LevelFromString(lvlString string) (slog.Level, error) {
	switch strings.ToLower(lvlString) {
	case "trace", "trce":
		return log.LevelTrace, nil
	case "debug", "dbug":
		return log.LevelDebug, nil
	case "info":
		return log.LevelInfo, nil
	case "warn":
		return log.LevelWarn, nil
	case "error", "eror":
		return log.LevelError, nil
	case "crit":
		return log.LevelCrit, nil
	default:
		return log.LevelDebug, fmt.Errorf("unknown level: %v", lvlString)
	}
}

func CLIFlags(envPrefix string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    LevelFlagName,
			Usage:   "The lowest log level that will be output",
			Value:   "info",
			EnvVars: prefixEnvVars(envPrefix, "LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    FormatFlagName,
			Usage:   "Format the log output. Supported formats: 'text', 'terminal', 'logfmt', 'json'",
			Value:   string(FormatText),
			EnvVars: prefixEnvVars(envPrefix, "LOG_FORMAT"),
		},
		&cli.BoolFlag{
			Name:    ColorFlagName,
			Usage:   "Color the log output if in terminal mode",
			EnvVars: prefixEnvVars(envPrefix, "LOG_COLOR"),
		},
	}
}

func prefixEnvVars(prefix, name string) []string {
	return []string{prefix + "_" + name}
}

type CLIConfig struct {
	Level  slog.Level
	Color  bool
	Format FormatType
}

func DefaultCLIConfig() CLIConfig {
	return CLIConfig{
		Level:  log.LevelInfo,
		Format: FormatText,
		Color:  term.IsTerminal(int(os.Stdout.Fd())),
	}
}

// ReadCLIConfig reads the logger configuration from the CLI context.
func ReadCLIConfig(ctx *cli.Context) (CLIConfig, error) {
	cfg := DefaultCLIConfig()
	if ctx.IsSet(LevelFlagName) {
		lvl, err := LevelFromString(ctx.String(LevelFlagName))
		if err != nil {
			return cfg, err
		}
		cfg.Level = lvl
	}
	if ctx.IsSet(FormatFlagName) {
		f, err := ParseFormat(ctx.String(FormatFlagName))
		if err != nil {
			return cfg, err
		}
		cfg.Format = f
	}
	if ctx.IsSet(ColorFlagName) {
		cfg.Color = ctx.Bool(ColorFlagName)
	}
	return cfg, nil
}

// NewLogHandler creates a new configured handler, compatible as LvlSetter for log-level changes during runtime.
func NewLogHandler(wr io.Writer, cfg CLIConfig) slog.Handler {
	var handler slog.Handler
	switch cfg.Format {
	case FormatJSON:
		handler = JSONMsHandlerWithLevel(wr, cfg.Level)
	case FormatLogFmt:
		handler = LogfmtMsHandlerWithLevel(wr, cfg.Level)
	case FormatTerminal:
		handler = log.NewTerminalHandlerWithLevel(wr, cfg.Level, cfg.Color)
	default:
		handler = log.NewTerminalHandlerWithLevel(wr, cfg.Level, false)
	}
	return handler
}

// NewLogger creates a logger writing to wr.
func NewLogger(wr io.Writer, cfg CLIConfig) log.Logger {
	return log.NewLogger(NewLogHandler(wr, cfg))
}

// SetGlobalLogHandler sets the log handles as the handler of the global default logger.
func SetGlobalLogHandler(h slog.Handler) {
	log.SetDefault(log.NewLogger(h))
}
