// Package logging builds the process wide zap logger.
package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/xerrors"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mongodb/mongodb-dc-topology/pkg/util"
	"github.com/mongodb/mongodb-dc-topology/pkg/util/env"
)

type Options struct {
	// Environment selects the development (console, debug level) or production (json, info level) config
	Environment util.OperatorEnvironment
	// File, when set, receives a copy of every entry as json and is rotated by size
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// OptionsFromEnv reads OPERATOR_ENV and the LOG_* variables.
func OptionsFromEnv() Options {
	return Options{
		Environment: util.OperatorEnvironment(strings.ToLower(env.ReadOrDefault(util.OmOperatorEnv, util.OperatorEnvironmentProd.String()))),
		File:        env.ReadOrDefault(util.LogFileEnv, ""),
		MaxSizeMB:   env.ReadIntOrDefault(util.LogMaxSizeMBEnv, util.DefaultLogMaxSizeMB),
		MaxBackups:  env.ReadIntOrDefault(util.LogMaxBackupsEnv, util.DefaultLogMaxBackups),
		MaxAgeDays:  env.ReadIntOrDefault(util.LogMaxAgeDaysEnv, util.DefaultLogMaxAgeDays),
	}
}

// New builds a logger for opts. The returned function flushes the logger and closes the log file.
func New(opts Options) (*zap.Logger, func(), error) {
	var cfg zap.Config
	switch opts.Environment {
	case util.OperatorEnvironmentProd, "":
		cfg = zap.NewProductionConfig()
	case util.OperatorEnvironmentDev:
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, nil, xerrors.Errorf("wrong environment %q specified, must be one of [%s, %s]", opts.Environment, util.OperatorEnvironmentDev, util.OperatorEnvironmentProd)
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, nil, xerrors.Errorf("failed to create logger: %w", err)
	}
	if opts.File == "" {
		return logger, func() { _ = logger.Sync() }, nil
	}

	file := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
	}
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), zapcore.AddSync(file), cfg.Level)
	logger = logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, fileCore)
	}))
	return logger, func() {
		_ = logger.Sync()
		_ = file.Close()
	}, nil
}

// Setup builds the logger from the environment and installs it as the global one.
func Setup() (*zap.SugaredLogger, func(), error) {
	opts := OptionsFromEnv()
	logger, closeFn, err := New(opts)
	if err != nil {
		return nil, nil, err
	}
	zap.ReplaceGlobals(logger)
	log := zap.S()
	log.Debugw("Logger configured", "env", opts.Environment, "file", opts.File)
	return log, closeFn, nil
}
