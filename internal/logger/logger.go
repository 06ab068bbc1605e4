package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

// Levels accepted by AddLog.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// LogEntry represents a single log record.
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

const redacted = "[REDACTED]"

var (
	mu          sync.RWMutex
	logEntries  []LogEntry
	maxEntries  = 1000
	maxFileSize = int64(5 * 1024 * 1024)
	logFilePath string
	logFile     *os.File
	logChan     = make(chan LogEntry, 100)
	done        chan struct{}
	workerDone  chan struct{}
	subscribers = make(map[chan LogEntry]bool)
	subsMu      sync.RWMutex
	quiet       bool

	secretsMu sync.RWMutex
	secrets   = make(map[string]struct{})

	keyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`sk-ant-[A-Za-z0-9_\-]+`),
		regexp.MustCompile(`sk-[A-Za-z0-9_\-]{16,}`),
		regexp.MustCompile(`AIza[0-9A-Za-z_\-]{20,}`),
	}
)

// Init initializes the file sink under appDir/logs.
func Init(appDir string) error {
	mu.Lock()
	defer mu.Unlock()

	logDir := filepath.Join(appDir, "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	logFileName := fmt.Sprintf("%s toolbridge.log", time.Now().Format("20060102"))
	logFilePath = filepath.Join(logDir, logFileName)

	f, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	logFile = f

	done = make(chan struct{})
	workerDone = make(chan struct{})
	go logWorker()

	return nil
}

// SetQuiet stops echoing entries to stdout. The CLI uses it so that
// command output stays machine readable.
func SetQuiet(q bool) {
	mu.Lock()
	quiet = q
	mu.Unlock()
}

// RegisterSecret adds a value that must never appear in log output.
// Short values are ignored; masking them would shred ordinary text.
func RegisterSecret(value string) {
	if len(strings.TrimSpace(value)) < 4 {
		return
	}
	secretsMu.Lock()
	secrets[value] = struct{}{}
	secretsMu.Unlock()
}

// Redact masks registered secrets and well-known API key shapes in s.
// Matches are collected first and masked in one pass, so a secret that
// overlaps a key never leaves part of the key behind.
func Redact(s string) string {
	var spans [][2]int
	for _, re := range keyPatterns {
		for _, loc := range re.FindAllStringIndex(s, -1) {
			spans = append(spans, [2]int{loc[0], loc[1]})
		}
	}
	secretsMu.RLock()
	for v := range secrets {
		for from := 0; from < len(s); {
			i := strings.Index(s[from:], v)
			if i < 0 {
				break
			}
			spans = append(spans, [2]int{from + i, from + i + len(v)})
			from += i + 1
		}
	}
	secretsMu.RUnlock()
	if len(spans) == 0 {
		return s
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i][0] < spans[j][0] })
	var sb strings.Builder
	last := 0
	for i := 0; i < len(spans); {
		start, end := spans[i][0], spans[i][1]
		for i++; i < len(spans) && spans[i][0] <= end; i++ {
			end = max(end, spans[i][1])
		}
		sb.WriteString(s[last:start])
		sb.WriteString(redacted)
		last = end
	}
	sb.WriteString(s[last:])
	return sb.String()
}

// AddLog adds a new log entry.
func AddLog(level, message string) {
	message = Redact(message)

	entry := LogEntry{
		Timestamp: time.Now().Format(time.RFC3339),
		Level:     level,
		Message:   message,
	}

	mu.Lock()
	logEntries = append(logEntries, entry)
	if len(logEntries) > maxEntries {
		logEntries = logEntries[len(logEntries)-maxEntries:]
	}
	echo := !quiet
	mu.Unlock()

	if echo {
		fmt.Printf("[%s] [%s] %s\n", entry.Timestamp, level, message)
	}

	select {
	case logChan <- entry:
	default:
		// Drop rather than block the caller.
	}

	subsMu.RLock()
	for sub := range subscribers {
		select {
		case sub <- entry:
		default:
		}
	}
	subsMu.RUnlock()
}

func Debugf(format string, args ...any) { AddLog(LevelDebug, fmt.Sprintf(format, args...)) }
func Infof(format string, args ...any)  { AddLog(LevelInfo, fmt.Sprintf(format, args...)) }
func Warnf(format string, args ...any)  { AddLog(LevelWarn, fmt.Sprintf(format, args...)) }
func Errorf(format string, args ...any) { AddLog(LevelError, fmt.Sprintf(format, args...)) }

// Subscribe returns a channel that receives new log entries.
func Subscribe() chan LogEntry {
	subsMu.Lock()
	defer subsMu.Unlock()
	ch := make(chan LogEntry, 100)
	subscribers[ch] = true
	return ch
}

// Unsubscribe removes a log subscriber.
func Unsubscribe(ch chan LogEntry) {
	subsMu.Lock()
	defer subsMu.Unlock()
	delete(subscribers, ch)
	close(ch)
}

// GetLogs returns a copy of the logs currently in memory.
func GetLogs() []LogEntry {
	mu.RLock()
	defer mu.RUnlock()

	res := make([]LogEntry, len(logEntries))
	copy(res, logEntries)
	return res
}

// ClearLogs wipes both memory and file logs.
func ClearLogs() error {
	mu.Lock()
	defer mu.Unlock()

	logEntries = []LogEntry{}

	if logFilePath == "" {
		return nil
	}
	if logFile != nil {
		logFile.Close()
	}

	f, err := os.OpenFile(logFilePath, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	logFile = f

	return nil
}

// GetLogFilePath returns the path to the log file.
func GetLogFilePath() string {
	mu.RLock()
	defer mu.RUnlock()
	return logFilePath
}

// Close flushes and closes the log file.
func Close() {
	if done != nil {
		close(done)
		if workerDone != nil {
			<-workerDone
		}
		done = nil
	}

	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

func logWorker() {
	defer close(workerDone)
	for {
		select {
		case entry := <-logChan:
			writeEntry(entry)
		case <-done:
			for {
				select {
				case entry := <-logChan:
					writeEntry(entry)
				default:
					return
				}
			}
		}
	}
}

func writeEntry(entry LogEntry) {
	mu.Lock()
	defer mu.Unlock()

	f := logFile
	if f == nil {
		return
	}

	if info, err := f.Stat(); err == nil && info.Size() > maxFileSize {
		f.Close()
		f, err = os.OpenFile(logFilePath, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			logFile = nil
			return
		}
		logFile = f
		truncateEntry := LogEntry{
			Timestamp: time.Now().Format(time.RFC3339),
			Level:     LevelInfo,
			Message:   "Log file reached 5MB limit and was truncated.",
		}
		data, _ := json.Marshal(truncateEntry)
		f.Write(append(data, '\n'))
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	f.Write(append(data, '\n'))
}
