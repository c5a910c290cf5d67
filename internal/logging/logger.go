// Package logging provides config-driven categorized logging for cogcore.
// Each subsystem gets its own zap core writing to <home>/logs/<date>_<category>.log;
// logging is controlled by debug_mode in the runtime config — when false, nothing
// is written.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category identifies which subsystem a log line belongs to.
type Category string

const (
	CategoryBoot       Category = "boot"
	CategoryStore      Category = "store"
	CategorySession    Category = "session"
	CategoryRecall     Category = "recall"
	CategoryNidra      Category = "nidra"
	CategoryChetana    Category = "chetana"
	CategoryDharma     Category = "dharma"
	CategoryJobQueue   Category = "jobqueue"
	CategoryCapability Category = "capability"
	CategoryMCP        Category = "mcp"
	CategorySabha      Category = "sabha"
	CategoryBridge     Category = "bridge"
	CategoryTLS        Category = "tls"
)

// Config mirrors the subset of the runtime config that governs logging.
type Config struct {
	DebugMode  bool
	Categories map[string]bool
	Level      string
	JSONFormat bool
}

var (
	mu        sync.RWMutex
	loggersMu sync.RWMutex
	loggers   = make(map[Category]*Logger)
	logsDir   string
	cfg       Config
)

// Configure sets the logging root directory and behavior. Must be called once
// at startup; safe to call again to change behavior at runtime.
func Configure(homeDir string, c Config) error {
	mu.Lock()
	defer mu.Unlock()

	cfg = c
	if !c.DebugMode {
		logsDir = ""
		return nil
	}

	logsDir = filepath.Join(homeDir, "logs")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return fmt.Errorf("logging: create logs dir: %w", err)
	}
	return nil
}

// IsCategoryEnabled reports whether a category should currently emit logs.
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	if !cfg.DebugMode {
		return false
	}
	if cfg.Categories == nil {
		return true
	}
	enabled, exists := cfg.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Logger wraps a zap.SugaredLogger scoped to one category.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
	file     *os.File
}

// Get returns (or lazily creates) the logger for a category. Returns a no-op
// logger when the category or debug mode is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) {
		return &Logger{category: category}
	}

	mu.RLock()
	dir := logsDir
	jsonFormat := cfg.JSONFormat
	mu.RUnlock()
	if dir == "" {
		return &Logger{category: category}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(dir, fmt.Sprintf("%s_%s.log", date, category))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] could not open %s: %v\n", logPath, err)
		return &Logger{category: category}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var encoder zapcore.Encoder
	if jsonFormat {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(file), levelFor())
	logger := zap.New(core).With(zap.String("category", string(category)))

	l := &Logger{category: category, sugar: logger.Sugar(), file: file}
	loggers[category] = l
	return l
}

func levelFor() zapcore.Level {
	mu.RLock()
	defer mu.RUnlock()
	switch cfg.Level {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l *Logger) Debug(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Debugf(format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Infof(format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Warnf(format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Errorf(format, args...)
}

// CloseAll flushes and closes every open category log file. Call at shutdown.
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	for _, l := range loggers {
		if l.sugar != nil {
			_ = l.sugar.Sync()
		}
		if l.file != nil {
			_ = l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

// Timer measures and logs the duration of an operation.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation in a category.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the elapsed duration at debug level.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs a warning if the operation exceeded threshold.
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}

// --- convenience per-category helpers, mirroring the teacher's pattern ---

func Boot(format string, args ...interface{})      { Get(CategoryBoot).Info(format, args...) }
func BootDebug(format string, args ...interface{}) { Get(CategoryBoot).Debug(format, args...) }

func Store(format string, args ...interface{})      { Get(CategoryStore).Info(format, args...) }
func StoreDebug(format string, args ...interface{}) { Get(CategoryStore).Debug(format, args...) }
func StoreWarn(format string, args ...interface{})  { Get(CategoryStore).Warn(format, args...) }
func StoreError(format string, args ...interface{}) { Get(CategoryStore).Error(format, args...) }

func Session(format string, args ...interface{})      { Get(CategorySession).Info(format, args...) }
func SessionDebug(format string, args ...interface{}) { Get(CategorySession).Debug(format, args...) }

func Recall(format string, args ...interface{})      { Get(CategoryRecall).Info(format, args...) }
func RecallDebug(format string, args ...interface{}) { Get(CategoryRecall).Debug(format, args...) }

func Nidra(format string, args ...interface{})      { Get(CategoryNidra).Info(format, args...) }
func NidraDebug(format string, args ...interface{}) { Get(CategoryNidra).Debug(format, args...) }

func Chetana(format string, args ...interface{})      { Get(CategoryChetana).Info(format, args...) }
func ChetanaDebug(format string, args ...interface{}) { Get(CategoryChetana).Debug(format, args...) }

func Dharma(format string, args ...interface{})      { Get(CategoryDharma).Info(format, args...) }
func DharmaDebug(format string, args ...interface{}) { Get(CategoryDharma).Debug(format, args...) }

func JobQueue(format string, args ...interface{})      { Get(CategoryJobQueue).Info(format, args...) }
func JobQueueDebug(format string, args ...interface{}) { Get(CategoryJobQueue).Debug(format, args...) }

func Capability(format string, args ...interface{}) { Get(CategoryCapability).Info(format, args...) }
func CapabilityDebug(format string, args ...interface{}) {
	Get(CategoryCapability).Debug(format, args...)
}

func MCP(format string, args ...interface{})      { Get(CategoryMCP).Info(format, args...) }
func MCPDebug(format string, args ...interface{}) { Get(CategoryMCP).Debug(format, args...) }

func Sabha(format string, args ...interface{})      { Get(CategorySabha).Info(format, args...) }
func SabhaDebug(format string, args ...interface{}) { Get(CategorySabha).Debug(format, args...) }

func Bridge(format string, args ...interface{})      { Get(CategoryBridge).Info(format, args...) }
func BridgeDebug(format string, args ...interface{}) { Get(CategoryBridge).Debug(format, args...) }

func TLS(format string, args ...interface{})      { Get(CategoryTLS).Info(format, args...) }
func TLSDebug(format string, args ...interface{}) { Get(CategoryTLS).Debug(format, args...) }
