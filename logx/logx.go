// Package logx is a thin wrapper around charmbracelet/log used by the
// packaging pipeline to report progress and warnings. Info messages are
// only printed at debug level unless the user asked for verbose output.
package logx

import (
	"os"

	"github.com/charmbracelet/log"
)

var Logger *log.Logger

func init() {
	Logger = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: false,
		ReportCaller:    false,
	})
}

// SetVerbose lowers the log threshold so Info messages are shown.
func SetVerbose(verbose bool) {
	if verbose {
		Logger.SetLevel(log.DebugLevel)
	} else {
		Logger.SetLevel(log.WarnLevel)
	}
}

// Info logs a progress message.
func Info(msg interface{}, keyvals ...interface{}) {
	Logger.Info(msg, keyvals...)
}

// Infof logs a progress message with formatting.
func Infof(format string, args ...interface{}) {
	Logger.Infof(format, args...)
}

// Warn logs a warning message.
func Warn(msg interface{}, keyvals ...interface{}) {
	Logger.Warn(msg, keyvals...)
}

// Warnf logs a warning message with formatting.
func Warnf(format string, args ...interface{}) {
	Logger.Warnf(format, args...)
}

// Error logs an error message.
func Error(msg interface{}, keyvals ...interface{}) {
	Logger.Error(msg, keyvals...)
}

// Fatalf logs an error message with formatting and exits.
func Fatalf(format string, args ...interface{}) {
	Logger.Errorf(format, args...)
	os.Exit(1)
}
