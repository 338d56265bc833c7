package main

import (
	"fmt"
	"io"
	stdslog "log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/feedsync"
	"github.com/unkn0wn-root/feedsync/internal/config"
	fsglog "github.com/unkn0wn-root/feedsync/log/glog"
	fslogrus "github.com/unkn0wn-root/feedsync/log/logrus"
	fsslog "github.com/unkn0wn-root/feedsync/log/slog"
	fszap "github.com/unkn0wn-root/feedsync/log/zap"
)

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// jsonLogs resolves format "auto": console on a terminal, JSON otherwise.
func jsonLogs(format string, w *os.File) bool {
	switch format {
	case "json":
		return true
	case "console":
		return false
	default:
		return !isTerminal(w)
	}
}

// newZap builds the CLI logger writing to w.
func newZap(cfg config.LogConfig, w *os.File) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if jsonLogs(cfg.Format, w) {
		enc = zapcore.NewJSONEncoder(ec)
	} else {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(ec)
	}
	return zap.New(zapcore.NewCore(enc, zapcore.Lock(w), level)), nil
}

// newSlog builds a slog logger at the configured level. Hook events and the
// slog backend go through it.
func newSlog(cfg config.LogConfig, w *os.File) *stdslog.Logger {
	var level stdslog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = stdslog.LevelInfo
	}
	ho := &stdslog.HandlerOptions{Level: level}
	if jsonLogs(cfg.Format, w) {
		return stdslog.New(stdslog.NewJSONHandler(w, ho))
	}
	return stdslog.New(stdslog.NewTextHandler(w, ho))
}

func newLogrus(cfg config.LogConfig, w io.Writer, json bool) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(level)
	if json {
		l.SetFormatter(&logrus.JSONFormatter{})
	}
	return l, nil
}

// dataLogger picks the feedsync.Logger adapter named by cfg.Backend.
func dataLogger(cfg config.LogConfig, zl *zap.Logger, w *os.File) (feedsync.Logger, error) {
	switch cfg.Backend {
	case "", "zap":
		return fszap.ZapLogger{L: zl.Named("feedsync")}, nil
	case "logrus":
		l, err := newLogrus(cfg, w, jsonLogs(cfg.Format, w))
		if err != nil {
			return nil, err
		}
		return fslogrus.LogrusLogger{E: logrus.NewEntry(l).WithField("logger", "feedsync")}, nil
	case "slog":
		return fsslog.Logger{L: newSlog(cfg, w).With("logger", "feedsync")}, nil
	case "glog":
		return fsglog.Logger{}, nil
	default:
		return nil, fmt.Errorf("unknown log backend %q", cfg.Backend)
	}
}
