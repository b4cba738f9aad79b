/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package logger is the package-level structured logging facade used by
// every other package in this module, mirroring the teacher's use of
// github.com/dubbogo/gost/log/logger throughout registry/nacos and
// config. The default backend is zap; callers embedding this module in a
// larger application can swap it with SetLogger.
package logger

import (
	"sync"

	gostlog "github.com/dubbogo/gost/log/logger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu  sync.RWMutex
	log gostlog.Logger = newDefaultLogger()
)

func newDefaultLogger() gostlog.Logger {
	writer := zapcore.AddSync(&lumberjack.Logger{
		Filename:   "orchestrator.log",
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     7,
	})
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(zap.NewProductionEncoderConfig()), writer, zap.InfoLevel)
	return gostlog.NewLogger(zap.New(core, zap.AddCaller()).Sugar())
}

// SetLogger swaps the package-level logger backend.
func SetLogger(l gostlog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	log = l
}

func get() gostlog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

func Debugf(format string, args ...any) { get().Debugf(format, args...) }
func Infof(format string, args ...any)  { get().Infof(format, args...) }
func Warnf(format string, args ...any)  { get().Warnf(format, args...) }
func Errorf(format string, args ...any) { get().Errorf(format, args...) }
