// Package logger implements core/logger with zerolog.
package logger

import corelogger "github.com/kilianp07/greenplace/core/logger"

// Logger is the core logging interface.
type Logger = corelogger.Logger

// NopLogger discards every entry. Tests use it where output is irrelevant.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any)         {}
func (NopLogger) Debugw(string, map[string]any) {}
func (NopLogger) Infof(string, ...any)          {}
func (NopLogger) Infow(string, map[string]any)  {}
func (NopLogger) Warnf(string, ...any)          {}
func (NopLogger) Errorf(string, ...any)         {}
func (n NopLogger) With(map[string]any) Logger  { return n }

// New returns the logger of component. APP_ENV=dev selects console output
// and LOG_LEVEL sets the minimum level.
func New(component string) Logger {
	return NewZerologLogger(component)
}
