// Package logger provides centralized logging for nipe.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"
)

// Level orders log severities.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

var (
	logFile   *os.File
	logMutex  sync.Mutex
	logPath   string
	listeners []listener
	listMutex sync.RWMutex
)

type listener struct {
	min Level
	fn  func(string)
}

// Init opens (or creates) the log file at path. Lines are appended.
func Init(path string) error {
	logMutex.Lock()
	defer logMutex.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if logFile != nil {
		logFile.Close()
	}
	logFile = f
	logPath = path
	return nil
}

// Close closes the log file
func Close() {
	logMutex.Lock()
	defer logMutex.Unlock()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

// AddListener adds a callback that receives every line at or above min.
// Callbacks run synchronously in the logging goroutine.
func AddListener(min Level, fn func(string)) {
	listMutex.Lock()
	defer listMutex.Unlock()
	listeners = append(listeners, listener{min: min, fn: fn})
}

// ResetListeners drops all registered listeners.
func ResetListeners() {
	listMutex.Lock()
	defer listMutex.Unlock()
	listeners = nil
}

func write(level Level, prefix, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	line := fmt.Sprintf("[%s] %s%s", timestamp, prefix, message)

	logMutex.Lock()
	if logFile != nil {
		logFile.WriteString(line + "\n")
		logFile.Sync()
	}
	logMutex.Unlock()

	listMutex.RLock()
	for _, l := range listeners {
		if level >= l.min {
			l.fn(line)
		}
	}
	listMutex.RUnlock()
}

// Info logs an info message
func Info(format string, args ...interface{}) {
	write(LevelInfo, "INFO: ", format, args...)
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	write(LevelError, "ERROR: ", format, args...)
}

// Debug logs a debug message
func Debug(format string, args ...interface{}) {
	write(LevelDebug, "DEBUG: ", format, args...)
}

// Warning logs a warning message
func Warning(format string, args ...interface{}) {
	write(LevelWarning, "WARN: ", format, args...)
}

// GetLogPath returns the path to the log file
func GetLogPath() string {
	logMutex.Lock()
	defer logMutex.Unlock()
	return logPath
}

// Recover should be deferred at the top of every goroutine to catch panics.
// Usage: go func() { defer logger.Recover("myGoroutine"); ... }()
func Recover(name string) {
	if r := recover(); r != nil {
		stack := string(debug.Stack())
		Error("PANIC in %s: %v\n%s", name, r, stack)
	}
}

// SafeGo launches a goroutine with panic recovery.
func SafeGo(name string, fn func()) {
	go func() {
		defer Recover(name)
		fn()
	}()
}

// ReadLogs reads the log file contents
func ReadLogs() (string, error) {
	path := GetLogPath()
	if path == "" {
		return "", fmt.Errorf("logger not initialized")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
