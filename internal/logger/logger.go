// Package logger 封装进程级的 logrus 日志实例
package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Logger 全局日志实例
var Logger *logrus.Logger

// Config 日志配置结构体
type Config struct {
	// Level 日志级别 (debug, info, warn, error, fatal, panic)
	Level string `mapstructure:"level" json:"level"`
	// Format 日志格式 (json, text)
	Format string `mapstructure:"format" json:"format"`
	// Output 输出方式 (console, file, both)
	Output string `mapstructure:"output" json:"output"`
	// FilePath 日志文件路径，file 和 both 输出时使用
	FilePath string `mapstructure:"file_path" json:"file_path"`
}

// DefaultConfig 返回默认日志配置 (console, text, info)
func DefaultConfig() *Config {
	return &Config{
		Level:    "info",
		Format:   "text",
		Output:   "console",
		FilePath: "logs/melodia.log",
	}
}

// Init 初始化日志系统，并把 gin 的输出接入 logrus
func Init(config *Config) error {
	if config == nil {
		config = DefaultConfig()
	}

	l := logrus.New()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
		l.Warnf("invalid log level %q, falling back to info", config.Level)
	}
	l.SetLevel(level)

	switch config.Format {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	case "text", "":
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	default:
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
		l.Warnf("invalid log format %q, falling back to text", config.Format)
	}

	out, err := openOutput(config)
	if err != nil {
		return err
	}
	l.SetOutput(out)

	Logger = l
	setupGinLogger()

	Logger.Debug("logger initialised")
	return nil
}

func openOutput(config *Config) (io.Writer, error) {
	switch config.Output {
	case "file", "both":
		if err := os.MkdirAll(filepath.Dir(config.FilePath), 0755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, err
		}
		if config.Output == "file" {
			return f, nil
		}
		return io.MultiWriter(os.Stdout, f), nil
	default:
		return os.Stdout, nil
	}
}

// setupGinLogger 将 gin 的调试输出重定向到 logrus
func setupGinLogger() {
	w := &GinLogWriter{logger: Logger}
	gin.DefaultWriter = w
	gin.DefaultErrorWriter = w
}

// GinLogWriter 供 gin 使用的 io.Writer 适配器
type GinLogWriter struct {
	logger *logrus.Logger
}

// Write 实现 io.Writer 接口
func (w *GinLogWriter) Write(p []byte) (n int, err error) {
	w.logger.Debug(string(p))
	return len(p), nil
}

// GetLogger 获取全局日志实例，首次调用时使用默认配置初始化
func GetLogger() *logrus.Logger {
	if Logger == nil {
		if err := Init(nil); err != nil {
			logrus.Error("logger init failed, using logrus standard logger")
			return logrus.StandardLogger()
		}
	}
	return Logger
}

// Debug 记录调试日志
func Debug(args ...interface{}) { GetLogger().Debug(args...) }

// Debugf 记录格式化调试日志
func Debugf(format string, args ...interface{}) { GetLogger().Debugf(format, args...) }

// Info 记录信息日志
func Info(args ...interface{}) { GetLogger().Info(args...) }

// Infof 记录格式化信息日志
func Infof(format string, args ...interface{}) { GetLogger().Infof(format, args...) }

// Warn 记录警告日志
func Warn(args ...interface{}) { GetLogger().Warn(args...) }

// Warnf 记录格式化警告日志
func Warnf(format string, args ...interface{}) { GetLogger().Warnf(format, args...) }

// Error 记录错误日志
func Error(args ...interface{}) { GetLogger().Error(args...) }

// Errorf 记录格式化错误日志
func Errorf(format string, args ...interface{}) { GetLogger().Errorf(format, args...) }

// Fatalf 记录格式化致命错误日志并退出程序
func Fatalf(format string, args ...interface{}) { GetLogger().Fatalf(format, args...) }

// WithField 添加单个字段
func WithField(key string, value interface{}) *logrus.Entry {
	return GetLogger().WithField(key, value)
}

// WithFields 添加多个字段
func WithFields(fields logrus.Fields) *logrus.Entry {
	return GetLogger().WithFields(fields)
}

// WithComponent 为日志添加组件标识
func WithComponent(component string) *logrus.Entry {
	return GetLogger().WithField("component", component)
}
