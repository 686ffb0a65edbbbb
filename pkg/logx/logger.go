package logx

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"
)

// Config controls logger behavior.
type Config struct {
	Level  Level
	JSON   bool
	Output io.Writer
}

// LoadFromEnv builds a Config from LOG_LEVEL and LOG_FORMAT.
func LoadFromEnv() Config {
	return Config{
		Level:  ParseLevel(os.Getenv("LOG_LEVEL")),
		JSON:   os.Getenv("LOG_FORMAT") == "json",
		Output: os.Stdout,
	}
}

// Logger is a leveled logger with optional structured fields.
type Logger struct {
	mu     sync.Mutex
	level  Level
	json   bool
	out    io.Writer
	exitFn func(int)
}

// NewLogger creates a logger from the given config.
func NewLogger(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	return &Logger{
		level:  cfg.Level,
		json:   cfg.JSON,
		out:    out,
		exitFn: os.Exit,
	}
}

// SetLevel sets the minimum level that will be written.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// SetOutput redirects log output.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = w
}

func (l *Logger) log(level Level, msg string, fields map[string]interface{}, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}

	now := time.Now()

	if l.json {
		record := map[string]interface{}{
			"time":    now.Format(time.RFC3339Nano),
			"level":   level.String(),
			"message": msg,
		}
		for k, v := range fields {
			record[k] = v
		}
		if err != nil {
			record["error"] = err.Error()
		}
		data, mErr := json.Marshal(record)
		if mErr != nil {
			fmt.Fprintf(l.out, "%s %s %s (log marshal failed: %v)\n", now.Format(time.RFC3339), level, msg, mErr)
			return
		}
		fmt.Fprintln(l.out, string(data))
		return
	}

	line := fmt.Sprintf("%s [%s] %s", now.Format("2006-01-02 15:04:05"), level, msg)
	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			line += fmt.Sprintf(" %s=%v", k, fields[k])
		}
	}
	if err != nil {
		line += fmt.Sprintf(" error=%q", err.Error())
	}
	fmt.Fprintln(l.out, line)
}

func (l *Logger) exit(code int) {
	l.exitFn(code)
}
