package logging

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// LogLevel определяет уровни логирования
type LogLevel int

const (
	TRACE LogLevel = iota
	DEBUG
	INFO
	WARN
	ERROR
)

// String возвращает строковое представление уровня логирования
func (l LogLevel) String() string {
	switch l {
	case TRACE:
		return "TRACE"
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel разбирает уровень из конфигурации ("debug", "INFO"...).
func ParseLevel(s string) (LogLevel, error) {
	lvl, err := logrus.ParseLevel(s)
	if err != nil {
		return INFO, fmt.Errorf("неизвестный уровень логирования %q: %w", s, err)
	}
	switch lvl {
	case logrus.TraceLevel:
		return TRACE, nil
	case logrus.DebugLevel:
		return DEBUG, nil
	case logrus.InfoLevel:
		return INFO, nil
	case logrus.WarnLevel:
		return WARN, nil
	default:
		return ERROR, nil
	}
}

func (l LogLevel) logrus() logrus.Level {
	switch l {
	case TRACE:
		return logrus.TraceLevel
	case DEBUG:
		return logrus.DebugLevel
	case INFO:
		return logrus.InfoLevel
	case WARN:
		return logrus.WarnLevel
	default:
		return logrus.ErrorLevel
	}
}

// Logger представляет логгер компонента: консоль + (опционально) файл.
type Logger struct {
	component string

	consoleLogger *logrus.Logger
	fileLogger    *logrus.Logger
	file          *os.File

	minConsoleLevel atomic.Int32
	minFileLevel    atomic.Int32
}

// LogDir каталог для файловых логов.
var LogDir = "logs"

// defaultLogger используется пакетными функциями Info/Debug/...
// До InitDefaultLogger пишет только в stderr.
var defaultLogger = newConsoleLogger("default", os.Stderr)

func newConsoleLogger(component string, out io.Writer) *Logger {
	console := logrus.New()
	console.SetOutput(out)
	console.SetLevel(logrus.TraceLevel)
	console.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})

	l := &Logger{component: component, consoleLogger: console}
	l.SetLevels(INFO, DEBUG)
	return l
}

// NewLogger создаёт логгер компонента с файлом logs/<component>_<timestamp>.log
func NewLogger(component string) (*Logger, error) {
	if err := os.MkdirAll(LogDir, 0755); err != nil {
		return nil, fmt.Errorf("ошибка создания директории %s: %w", LogDir, err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	filename := filepath.Join(LogDir, fmt.Sprintf("%s_%s.log", component, timestamp))

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания файла логов: %w", err)
	}

	logger := newConsoleLogger(component, os.Stdout)

	fileLogger := logrus.New()
	fileLogger.SetOutput(file)
	fileLogger.SetLevel(logrus.TraceLevel)
	fileLogger.SetFormatter(&logrus.JSONFormatter{})

	logger.fileLogger = fileLogger
	logger.file = file
	return logger, nil
}

// SetLevels меняет минимальные уровни для консоли и файла. Безопасен
// при конкурентной записи.
func (l *Logger) SetLevels(console, file LogLevel) {
	l.minConsoleLevel.Store(int32(console))
	l.minFileLevel.Store(int32(file))
}

// Levels текущие минимальные уровни
func (l *Logger) Levels() (console, file LogLevel) {
	return LogLevel(l.minConsoleLevel.Load()), LogLevel(l.minFileLevel.Load())
}

// Component возвращает имя компонента логгера
func (l *Logger) Component() string {
	return l.component
}

// Close закрывает файл логов
func (l *Logger) Close() error {
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	if l == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)

	console, file := l.Levels()
	if l.fileLogger != nil && level >= file {
		l.fileLogger.WithField("component", l.component).Log(level.logrus(), msg)
	}
	if l.consoleLogger != nil && level >= console {
		l.consoleLogger.WithField("component", l.component).Log(level.logrus(), msg)
	}
}

// Trace логирует сообщение уровня TRACE
func (l *Logger) Trace(format string, args ...interface{}) { l.log(TRACE, format, args...) }

// Debug логирует сообщение уровня DEBUG
func (l *Logger) Debug(format string, args ...interface{}) { l.log(DEBUG, format, args...) }

// Info логирует сообщение уровня INFO
func (l *Logger) Info(format string, args ...interface{}) { l.log(INFO, format, args...) }

// Warn логирует сообщение уровня WARN
func (l *Logger) Warn(format string, args ...interface{}) { l.log(WARN, format, args...) }

// Error логирует сообщение уровня ERROR
func (l *Logger) Error(format string, args ...interface{}) { l.log(ERROR, format, args...) }

// InitDefaultLogger инициализирует глобальный логгер с файловым выводом
func InitDefaultLogger(component string) error {
	logger, err := NewLogger(component)
	if err != nil {
		return err
	}
	defaultLogger = logger
	return nil
}

// CloseDefaultLogger закрывает глобальный логгер
func CloseDefaultLogger() {
	if defaultLogger != nil {
		_ = defaultLogger.Close()
	}
}

// SetDefaultLevels меняет уровни глобального логгера.
func SetDefaultLevels(console, file LogLevel) {
	defaultLogger.SetLevels(console, file)
}

func Trace(format string, args ...interface{}) { defaultLogger.Trace(format, args...) }
func Debug(format string, args ...interface{}) { defaultLogger.Debug(format, args...) }
func Info(format string, args ...interface{})  { defaultLogger.Info(format, args...) }
func Warn(format string, args ...interface{})  { defaultLogger.Warn(format, args...) }
func Error(format string, args ...interface{}) { defaultLogger.Error(format, args...) }

// HexDump создает hex дамп данных
func HexDump(data []byte) string {
	if len(data) == 0 {
		return "No data"
	}

	// Ограничиваем размер дампа до 256 байт
	size := len(data)
	if size > 256 {
		size = 256
	}

	return hex.Dump(data[:size])
}

// LogProtocolError логирует ошибки разбора пакета
func LogProtocolError(connID uint64, err error, data []byte) {
	Error("Protocol error from conn %d: %v", connID, err)
	if len(data) > 0 {
		Debug("Raw data (%d bytes):\n%s", len(data), HexDump(data))
	}
}
