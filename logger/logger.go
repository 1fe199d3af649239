package logger

import (
	"encoding/json"
	"io"
	"log"
	"maps"
	"os"
	"strings"
	"time"
)

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var levelNames = map[Level]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
}

// Logger writes one JSON object per line for every entry at or above its level.
type Logger struct {
	level  Level
	logger *log.Logger
}

type logEntry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// New creates a logger. A nil output writes to stdout.
func New(level string, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}

	return &Logger{
		level:  ParseLevel(level),
		logger: log.New(output, "", 0),
	}
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *Logger {
	return New("ERROR", io.Discard)
}

// ParseLevel maps a level name to a Level, defaulting to INFO.
func ParseLevel(level string) Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return DEBUG
	case "WARN":
		return WARN
	case "ERROR", "FATAL":
		return ERROR
	default:
		return INFO
	}
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

func (l *Logger) write(level Level, message string, fields map[string]any) {
	if l == nil || l.level > level {
		return
	}

	entry := logEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     level.String(),
		Message:   message,
		Fields:    fields,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		// fields may hold values json cannot encode
		l.logger.Printf("[%s] %s", entry.Level, message)
		return
	}
	l.logger.Println(string(data))
}

func first(fields []map[string]any) map[string]any {
	if len(fields) > 0 {
		return fields[0]
	}
	return nil
}

func merge(base map[string]any, fields []map[string]any) map[string]any {
	if extra := first(fields); extra != nil {
		maps.Copy(base, extra)
	}
	return base
}

func (l *Logger) Debug(message string, fields ...map[string]any) {
	l.write(DEBUG, message, first(fields))
}

func (l *Logger) Info(message string, fields ...map[string]any) {
	l.write(INFO, message, first(fields))
}

func (l *Logger) Warn(message string, fields ...map[string]any) {
	l.write(WARN, message, first(fields))
}

func (l *Logger) Error(message string, fields ...map[string]any) {
	l.write(ERROR, message, first(fields))
}

// Task logs an INFO entry tagged with the task id.
func (l *Logger) Task(taskID, message string, fields ...map[string]any) {
	l.write(INFO, message, merge(map[string]any{
		"task_id": taskID,
		"type":    "task",
	}, fields))
}

// Conversation logs an INFO entry tagged with the conversation id.
func (l *Logger) Conversation(conversationID, message string, fields ...map[string]any) {
	l.write(INFO, message, merge(map[string]any{
		"conversation_id": conversationID,
		"type":            "conversation",
	}, fields))
}

func (l *Logger) HTTP(method, path string, statusCode int, duration time.Duration, fields ...map[string]any) {
	l.write(INFO, "HTTP request completed", merge(map[string]any{
		"http_method": method,
		"http_path":   path,
		"http_status": statusCode,
		"duration_ns": duration.Nanoseconds(),
		"type":        "http_request",
	}, fields))
}
