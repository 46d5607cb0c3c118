package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// L 是全局 sugared logger。
	L *zap.SugaredLogger
	// Z 是 L 底层的 zap.Logger。
	Z *zap.Logger
	// rotator 非空时表示日志同时写入滚动文件。
	rotator *lumberjack.Logger
)

// 未调用 Init 前使用 zap 的生产配置。
func init() {
	if z, err := zap.NewProduction(); err == nil {
		Z, L = z, z.Sugar()
	} else {
		Z = zap.NewNop()
		L = Z.Sugar()
	}
}

// Config 日志配置。
type Config struct {
	Level      string `yaml:"level"`       // debug, info, warn, error
	File       string `yaml:"file"`        // 为空则只输出到 stderr
	MaxSize    int    `yaml:"max_size"`    // 单个文件最大 MB
	MaxBackups int    `yaml:"max_backups"` // 旧文件保留个数
	MaxAge     int    `yaml:"max_age"`     // 旧文件保留天数
}

// ParseLevel 将配置中的级别字符串转换为 zapcore.Level。
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("不支持的日志级别: %s", level)
	}
}

// Init 根据配置重建全局 logger。
func Init(cfg Config) error {
	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		return err
	}

	sink := zapcore.Lock(os.Stderr)
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return fmt.Errorf("[logger] 无法创建目录 %s: %w", filepath.Dir(cfg.File), err)
		}
		rotator = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSize, 32),
			MaxBackups: orDefault(cfg.MaxBackups, 3),
			MaxAge:     orDefault(cfg.MaxAge, 14),
			Compress:   true,
		}
		sink = zapcore.Lock(zapcore.NewMultiWriteSyncer(os.Stderr, zapcore.AddSync(rotator)))
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig()), sink, lvl)

	Z = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	L = Z.Sugar()
	return nil
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.TimeKey = "time"
	cfg.CallerKey = "caller"
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// With 返回附带固定字段的子 logger，例如一次合成调用的 run_id。
func With(args ...interface{}) *zap.SugaredLogger {
	return L.With(args...)
}

// Sync 刷新缓冲区并关闭日志文件，应在程序退出前调用。
func Sync() {
	_ = Z.Sync()
	if rotator != nil {
		_ = rotator.Close()
	}
}

// 包级快捷函数，调用位置按调用方计算 (AddCallerSkip)。

func Debugf(template string, args ...interface{}) { L.Debugf(template, args...) }
func Infof(template string, args ...interface{})  { L.Infof(template, args...) }
func Warnf(template string, args ...interface{})  { L.Warnf(template, args...) }
func Errorf(template string, args ...interface{}) { L.Errorf(template, args...) }
