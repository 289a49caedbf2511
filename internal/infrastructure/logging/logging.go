// Package logging builds the zap loggers shared by the CLI and the API.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const fileStamp = "20060102_150405"

type Options struct {
	Level string
	// File, when set, receives a JSON copy of every entry.
	File string
}

// New returns a console logger on stderr, teed to a JSON file when
// opts.File is set. The returned func flushes and closes the file.
func New(opts Options) (*zap.Logger, func(), error) {
	level := zap.NewAtomicLevel()
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, nil, fmt.Errorf("log level %q: %w", opts.Level, err)
		}
	}

	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.EncodeTime = zapcore.TimeEncoderOfLayout(time.DateTime)
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(os.Stderr), level),
	}

	closeFile := func() {}
	if opts.File != "" {
		core, closer, err := fileCore(opts.File, level)
		if err != nil {
			return nil, nil, err
		}
		cores = append(cores, core)
		closeFile = closer
	}

	log := zap.New(zapcore.NewTee(cores...))
	return log, func() {
		_ = log.Sync()
		closeFile()
	}, nil
}

func fileCore(path string, level zapcore.LevelEnabler) (zapcore.Core, func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	return zapcore.NewCore(enc, zapcore.AddSync(f), level), func() { _ = f.Close() }, nil
}

// FileFor names the log file of one run: <dir>/<name>_<YYYYmmdd_HHMMSS>.log.
func FileFor(dir, name string, at time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s.log", name, at.Format(fileStamp)))
}

// ForMigration tees base into a per-run JSON file under dir. base keeps
// logging to its own cores.
func ForMigration(base *zap.Logger, dir, name string, at time.Time) (*zap.Logger, func(), error) {
	core, closer, err := fileCore(FileFor(dir, name, at), zapcore.DebugLevel)
	if err != nil {
		return nil, nil, err
	}
	log := base.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, core)
	})).With(zap.String("migration", name))
	return log, func() {
		_ = log.Sync()
		closer()
	}, nil
}
