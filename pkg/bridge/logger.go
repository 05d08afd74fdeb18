/*
Copyright © 2026 Anton Brekhov <anton@abrekhov.ru>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package bridge

import (
	"github.com/pion/logging"
	"github.com/sirupsen/logrus"
)

// LoggerFactory routes engine logging into a logrus logger. Engine info
// messages are demoted to debug.
type LoggerFactory struct {
	Logger *logrus.Logger
}

// NewLogger implements logging.LoggerFactory.
func (f *LoggerFactory) NewLogger(scope string) logging.LeveledLogger {
	l := f.Logger
	if l == nil {
		l = logrus.StandardLogger()
	}
	return &scopedLogger{entry: l.WithField("scope", "pion/"+scope)}
}

type scopedLogger struct {
	entry *logrus.Entry
}

func (l *scopedLogger) Trace(msg string)                          { l.entry.Trace(msg) }
func (l *scopedLogger) Tracef(format string, args ...interface{}) { l.entry.Tracef(format, args...) }
func (l *scopedLogger) Debug(msg string)                          { l.entry.Debug(msg) }
func (l *scopedLogger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *scopedLogger) Info(msg string)                           { l.entry.Debug(msg) }
func (l *scopedLogger) Infof(format string, args ...interface{})  { l.entry.Debugf(format, args...) }
func (l *scopedLogger) Warn(msg string)                           { l.entry.Warn(msg) }
func (l *scopedLogger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *scopedLogger) Error(msg string)                          { l.entry.Error(msg) }
func (l *scopedLogger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }
