// Package mlog provides the two logging streams the analysis pipeline
// writes to: a program log (diagnostic, per-voxel detail at debug level)
// and an audit log (the fixed record of what was run and with what
// parameters, kept independently of verbosity). Modeled on the plain
// package-level logrus.Infof/Warnf usage in the simulator's sim package.
package mlog

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var (
	program = newLogger(&logrus.TextFormatter{FullTimestamp: true})
	audit   = newLogger(&logrus.JSONFormatter{})
)

func newLogger(formatter logrus.Formatter) *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(formatter)
	l.SetOutput(os.Stdout)
	return l
}

// Program returns the diagnostic logger. Fitters and the volume orchestrator
// log progress, warnings and per-voxel fit failures here.
func Program() *logrus.Logger { return program }

// Audit returns the audit logger. It records run configuration, input
// paths and summary statistics, independent of the program log's level.
func Audit() *logrus.Logger { return audit }

// OpenProgramLog directs the program log to the named file in place of
// stdout, matching the CLI's -program_log_file option.
func OpenProgramLog(path string, level logrus.Level) (io.Closer, error) {
	return openTo(program, path, level)
}

// OpenAuditLog directs the audit log to the named file.
func OpenAuditLog(path string) (io.Closer, error) {
	return openTo(audit, path, logrus.InfoLevel)
}

func openTo(l *logrus.Logger, path string, level logrus.Level) (io.Closer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	l.SetOutput(f)
	l.SetLevel(level)
	return f, nil
}
