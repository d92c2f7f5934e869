package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	once   sync.Once
	logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
)

// Config 日志配置
type Config struct {
	Level  string
	Output string // "stdout"、"stderr" 或文件路径
	Pretty bool   // 控制台友好格式，本地调试用
}

// Init 初始化全局 logger，只生效一次
func Init(cfg Config) error {
	var initErr error
	once.Do(func() {
		level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil || cfg.Level == "" {
			level = zerolog.InfoLevel
		}
		zerolog.SetGlobalLevel(level)
		zerolog.TimeFieldFormat = time.RFC3339

		out, err := openOutput(cfg.Output)
		if err != nil {
			initErr = err
			out = os.Stdout
		}

		if cfg.Pretty {
			out = zerolog.ConsoleWriter{Out: out, TimeFormat: "2006-01-02 15:04:05"}
		}
		logger = zerolog.New(out).With().Timestamp().Logger()
		zerolog.DefaultContextLogger = &logger
	})
	return initErr
}

func openOutput(output string) (io.Writer, error) {
	switch output {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}
	if dir := filepath.Dir(output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// Get 返回全局 logger
func Get() *zerolog.Logger {
	return &logger
}

// Component 返回带 component 字段的子 logger
func Component(name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}
