/*
 * Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package eventstream

import "go.uber.org/zap"

// Level is the severity of a user-facing notice
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a short message meant for the person using the client
type Notice struct {
	Level   Level
	Title   string
	Message string
}

// Notifier shows notices to the user
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(n Notice)

// Notify calls f(n)
func (f NotifierFunc) Notify(n Notice) {
	f(n)
}

// LogNotifier writes notices to the logger
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier backed by logger
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the notice at a level matching its severity
func (n *LogNotifier) Notify(notice Notice) {
	fields := []zap.Field{zap.String("title", notice.Title), zap.String("level", string(notice.Level))}
	switch notice.Level {
	case LevelError:
		n.logger.Error(notice.Message, fields...)
	case LevelWarning:
		n.logger.Warn(notice.Message, fields...)
	default:
		n.logger.Info(notice.Message, fields...)
	}
}
