// Package logging 提供全局 slog 日志器，支持调试开关和输出格式切换
package logging

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

// Format 日志输出格式
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

var (
	logger    *slog.Logger
	loggerMu  sync.RWMutex
	debugMode bool
	output    io.Writer = os.Stdout
	format              = FormatText
)

func init() {
	// 默认使用 Info 级别的文本处理器
	rebuild()
}

// rebuild 按当前设置重建处理器，调用方需持有写锁 (init 除外)
func rebuild() {
	level := slog.LevelInfo
	if debugMode {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if format == FormatJSON {
		h = slog.NewJSONHandler(output, opts)
	} else {
		h = slog.NewTextHandler(output, opts)
	}
	logger = slog.New(h)
}

// SetDebugMode 设置调试模式
func SetDebugMode(enabled bool) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	debugMode = enabled
	rebuild()
}

// SetOutput 设置日志输出位置和格式，w 为 nil 时恢复标准输出
func SetOutput(w io.Writer, f Format) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if w == nil {
		w = os.Stdout
	}
	if f != FormatJSON {
		f = FormatText
	}
	output = w
	format = f
	rebuild()
}

// IsDebugMode 是否调试模式
func IsDebugMode() bool {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return debugMode
}

// Logger 返回当前日志器
func Logger() *slog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// Component 返回带 component 字段的子日志器
func Component(name string) *slog.Logger {
	return Logger().With("component", name)
}

// LogDebug 调试日志
func LogDebug(msg string, args ...any) {
	Logger().Debug(msg, args...)
}

// LogInfo 信息日志
func LogInfo(msg string, args ...any) {
	Logger().Info(msg, args...)
}

// LogWarn 警告日志
func LogWarn(msg string, args ...any) {
	Logger().Warn(msg, args...)
}

// LogError 错误日志
func LogError(msg string, args ...any) {
	Logger().Error(msg, args...)
}
