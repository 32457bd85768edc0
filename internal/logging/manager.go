package logging

import (
	"fmt"
	"os"
	"sort"
	"sync"
)

// Options настройки логгеров компонентов
type Options struct {
	ToFile     bool                // Писать компонентные логи в logs/<component>_*.log
	Console    LogLevel            // Уровень консоли по умолчанию
	File       LogLevel            // Уровень файла по умолчанию
	Components map[string]LogLevel // Уровень консоли отдельных компонентов
}

// LoggerManager хранит логгеры компонентов и применяет к ним общие настройки
type LoggerManager struct {
	mu      sync.RWMutex
	loggers map[string]*Logger
	opts    Options
}

var (
	globalManager *LoggerManager
	managerOnce   sync.Once
)

// GetLoggerManager возвращает глобальный менеджер логгеров
func GetLoggerManager() *LoggerManager {
	managerOnce.Do(func() {
		globalManager = newLoggerManager()
	})
	return globalManager
}

func newLoggerManager() *LoggerManager {
	return &LoggerManager{
		loggers: make(map[string]*Logger),
		opts:    Options{Console: INFO, File: DEBUG},
	}
}

// Configure меняет настройки. Уровни применяются и к уже созданным
// логгерам; ToFile действует только на логгеры, созданные после вызова.
// До вызова компонентные логгеры пишут только в stderr.
func (lm *LoggerManager) Configure(opts Options) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.opts = opts
	for component, logger := range lm.loggers {
		logger.SetLevels(lm.consoleLevel(component), opts.File)
	}
}

func (lm *LoggerManager) consoleLevel(component string) LogLevel {
	if lvl, ok := lm.opts.Components[component]; ok {
		return lvl
	}
	return lm.opts.Console
}

// GetLogger возвращает логгер компонента, создавая его при необходимости
func (lm *LoggerManager) GetLogger(component string) (*Logger, error) {
	lm.mu.RLock()
	logger, exists := lm.loggers[component]
	lm.mu.RUnlock()
	if exists {
		return logger, nil
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()
	if logger, exists := lm.loggers[component]; exists {
		return logger, nil
	}

	if lm.opts.ToFile {
		var err error
		logger, err = NewLogger(component)
		if err != nil {
			return nil, fmt.Errorf("failed to create logger for %s: %w", component, err)
		}
	} else {
		logger = newConsoleLogger(component, os.Stderr)
	}
	logger.SetLevels(lm.consoleLevel(component), lm.opts.File)

	lm.loggers[component] = logger
	return logger, nil
}

// MustGetLogger при ошибке создания файла возвращает консольный логгер
func (lm *LoggerManager) MustGetLogger(component string) *Logger {
	logger, err := lm.GetLogger(component)
	if err != nil {
		fallback := newConsoleLogger(component, os.Stderr)
		fallback.Warn("Файловый лог недоступен: %v", err)
		return fallback
	}
	return logger
}

// Components имена созданных логгеров по алфавиту
func (lm *LoggerManager) Components() []string {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	out := make([]string, 0, len(lm.loggers))
	for component := range lm.loggers {
		out = append(out, component)
	}
	sort.Strings(out)
	return out
}

// CloseAll закрывает файлы всех логгеров
func (lm *LoggerManager) CloseAll() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	var lastErr error
	for component, logger := range lm.loggers {
		if err := logger.Close(); err != nil {
			lastErr = fmt.Errorf("failed to close logger for %s: %w", component, err)
		}
	}
	lm.loggers = make(map[string]*Logger)
	return lastErr
}

func GetComponentLogger(component string) *Logger {
	return GetLoggerManager().MustGetLogger(component)
}

func GetNetworkLogger() *Logger {
	return GetComponentLogger("network")
}

func GetShardLogger() *Logger {
	return GetComponentLogger("shard")
}

func GetStorageLogger() *Logger {
	return GetComponentLogger("storage")
}
