package config

import (
	"flag"

	"github.com/rs/zerolog"
)

// flagSet wraps flag.FlagSet so Load can parse the small set of flags
// that override defaults ahead of the YAML file: where the file lives, the
// log level and the HTTP listen address, mirroring the HVAC controller's
// -state-file/-config-file/-log-level split.
type flagSet struct {
	fs       *flag.FlagSet
	logLevel *string
	cfg      *Config
}

func newFlagSet(cfg *Config) *flagSet {
	fs := flag.NewFlagSet("tacd", flag.ContinueOnError)
	logLevel := new(string)
	fs.StringVar(&cfg.ConfigFile, "config-file", "", "Path to YAML config file")
	fs.StringVar(logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "REST/WS/SSE listen address")
	return &flagSet{fs: fs, logLevel: logLevel, cfg: cfg}
}

func (f *flagSet) Parse(args []string) error {
	if err := f.fs.Parse(args); err != nil {
		return err
	}
	f.cfg.LogLevel = parseLogLevel(*f.logLevel)
	return nil
}

func parseLogLevel(level string) zerolog.Level {
	switch level {
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
