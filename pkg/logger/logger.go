// Copyright (c) 2025-2026 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/fablehost/fabled.
//
// SPDX-License-Identifier: Apache-2.0
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		MessageKey: "message",

		LevelKey:    "level",
		EncodeLevel: zapcore.CapitalLevelEncoder,

		TimeKey:    "time",
		EncodeTime: zapcore.ISO8601TimeEncoder,

		CallerKey:    "caller",
		EncodeCaller: zapcore.ShortCallerEncoder,
	}
}

// NewLogger returns the daemon logger. logto is "stdout", "stderr" or a
// file path, per the logging.logto option.
func NewLogger(logto string) (*zap.SugaredLogger, error) {
	cfg := zap.Config{
		Level:         zap.NewAtomicLevelAt(zapcore.InfoLevel),
		Encoding:      "console",
		OutputPaths:   []string{logto},
		EncoderConfig: encoderConfig(),
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

// NewDevelopmentLogger returns a new development logger.
func NewDevelopmentLogger() (*zap.SugaredLogger, error) {
	cfg := zap.Config{
		Level:         zap.NewAtomicLevelAt(zapcore.DebugLevel),
		Development:   true,
		Encoding:      "console",
		OutputPaths:   []string{"stdout"},
		EncoderConfig: encoderConfig(),
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}
