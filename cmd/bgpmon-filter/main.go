package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bgpmon/bgpmon-filter/internal/config"
	"github.com/bgpmon/bgpmon-filter/internal/relay"
)

func main() {
	os.Exit(run())
}

func run() int {
	flags, err := config.Flags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	logger := newLogger(cfg)

	if cfg.Daemonize {
		if err := daemonize(); err != nil {
			logger.Error().Err(err).Msg("daemonize failed")
			return 1
		}
	}

	sup := relay.New(cfg, logger)
	if err := sup.Run(); err != nil {
		logger.Error().Err(err).Msg("startup failed")
		return 1
	}

	logger.Info().Msg("shutdown complete")
	return 0
}

// newLogger wires zerolog, console-formatted to stderr by default or to
// log_file when set, at the level applyLevel derives from the syslog-style
// log_level and the debug flag.
func newLogger(cfg *config.Config) zerolog.Logger {
	var w = os.Stderr
	var out zerolog.ConsoleWriter
	if cfg.LogFile != "" {
		fh, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			logger := zerolog.New(fh).With().Timestamp().Logger()
			applyLevel(&logger, cfg)
			return logger
		}
	}
	out = zerolog.ConsoleWriter{Out: w}
	logger := zerolog.New(out).With().Timestamp().Logger()
	applyLevel(&logger, cfg)
	return logger
}

func applyLevel(logger *zerolog.Logger, cfg *config.Config) {
	lvl := zerolog.InfoLevel
	if cfg.Debug {
		lvl = zerolog.DebugLevel
	}
	// syslog-style 0-7, clamp into zerolog's scale: 7 (debug) .. 0 (emergency)
	switch {
	case cfg.LogLevel <= 3:
		lvl = zerolog.ErrorLevel
	case cfg.LogLevel <= 5:
		lvl = zerolog.WarnLevel
	case cfg.LogLevel == 6:
		lvl = zerolog.InfoLevel
	case cfg.LogLevel >= 7:
		lvl = zerolog.DebugLevel
	}
	if cfg.Debug {
		lvl = zerolog.DebugLevel
	}
	*logger = logger.Level(lvl)
	log.Logger = *logger
}

// daemonize is the hook for the daemonize key's double-fork detach, which
// is out of this module's scope per spec.md §1 ("only their interfaces are
// specified"). This build does not fork or detach: it always returns an
// error, so daemonize=true fails startup instead of being ignored.
func daemonize() error {
	return fmt.Errorf("daemonize: not implemented in this build")
}
