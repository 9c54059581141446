// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package log provides the process-wide structured logger. Writes to stderr,
// and optionally to a file.
package log

import (
	"fmt"

	"go.uber.org/zap"
)

var log *zap.SugaredLogger
var baseLogger *zap.Logger

// Initializes the package-level logger. Debug mode logs human-readable lines at debug
// level, otherwise JSON at info level. A non-empty fileName adds that file as output
func Init(debug bool, fileName string) error {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	if fileName != "" {
		cfg.OutputPaths = append(cfg.OutputPaths, fileName)
	}
	zapLogger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return fmt.Errorf("can't initialize zap logger: %w", err)
	}
	baseLogger = zapLogger
	log = zapLogger.Sugar()
	return nil
}

// Returns the sugared logger, falling back to a production logger if Init was not called
func Get() *zap.SugaredLogger {
	if log == nil {
		baseLogger, _ = zap.NewProduction(zap.AddCallerSkip(1))
		log = baseLogger.Sugar()
	}
	return log
}

// Replaces the package-level logger, e.g. with zap.NewNop() in tests
func Set(l *zap.SugaredLogger) {
	log = l
	baseLogger = l.Desugar()
}

// Flushes any buffered log entries
func Sync() {
	if log != nil {
		_ = log.Sync()
	}
}

func Debugf(template string, args ...interface{}) {
	Get().Debugf(template, args...)
}

func Infof(template string, args ...interface{}) {
	Get().Infof(template, args...)
}

func Infow(msg string, keysAndValues ...interface{}) {
	Get().Infow(msg, keysAndValues...)
}

func Warnf(template string, args ...interface{}) {
	Get().Warnf(template, args...)
}

func Errorf(template string, args ...interface{}) {
	Get().Errorf(template, args...)
}

// Logs and exits with status 1
func Fatalf(template string, args ...interface{}) {
	Get().Fatalf(template, args...)
}
