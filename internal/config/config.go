package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/seblemaguer/marytts-http-server/internal/engine"
	"github.com/seblemaguer/marytts-http-server/internal/logger"
)

// 重复 AUDIO 数据流的处理策略。
const (
	AudioPolicyReject  = "reject"
	AudioPolicyReplace = "replace"
)

// Config 是顶层配置结构。
type Config struct {
	Engine  EngineConfig  `yaml:"engine"`
	Label   LabelConfig   `yaml:"label"`
	Log     logger.Config `yaml:"log"`
	Journal JournalConfig `yaml:"journal"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// EngineConfig 外部合成引擎配置。
type EngineConfig struct {
	// Binary 引擎可执行文件，可以是 PATH 中的名字。
	Binary string `yaml:"binary"`
	// Voice 声音模型文件（.htsvoice）。
	Voice string `yaml:"voice"`
	// Flags 引擎参数拼写，留空使用 hts_engine 默认值。
	Flags engine.Flags `yaml:"flags"`
	// ExtraArgs 放在模型参数之前的额外参数，例如 ["-r", "1.1"]。
	ExtraArgs []string `yaml:"extra_args"`
	// Env 附加给子进程的环境变量。
	Env map[string]string `yaml:"env"`
	// Timeout 单次调用超时，0 表示不限制。
	Timeout time.Duration `yaml:"timeout"`
	// MaxConcurrent 同时运行的引擎进程上限。
	MaxConcurrent int `yaml:"max_concurrent"`
	// TempDir 临时文件目录，为空使用系统临时目录。
	TempDir string `yaml:"temp_dir"`
	// OutputDir 非空时把合成出的波形保存到该目录，AudioItem 引用保存后的文件。
	OutputDir string `yaml:"output_dir"`
	// AudioPolicy 话语已有 AUDIO 时的处理方式：reject 或 replace。
	AudioPolicy string `yaml:"audio_policy"`
	// StderrTail 错误信息中保留的 stderr 行数。
	StderrTail int `yaml:"stderr_tail"`
}

// EnvList 把 Env 转换为 KEY=VALUE 列表。
func (c EngineConfig) EnvList() []string {
	out := make([]string, 0, len(c.Env))
	for k, v := range c.Env {
		out = append(out, k+"="+v)
	}
	return out
}

// LabelConfig 标注导出配置。
type LabelConfig struct {
	FeatureKeys []string `yaml:"feature_keys"`
}

// JournalConfig 合成记录配置。
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MetricsConfig 指标导出配置。
type MetricsConfig struct {
	// Textfile 非空时，每次命令结束后把指标写入该文件。
	Textfile string `yaml:"textfile"`
}

// Load 读取 YAML 配置文件并返回 Config。
// 支持 ${VAR_NAME} 形式的环境变量展开。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件 %s 失败: %w", path, err)
	}

	expanded := os.Expand(string(data), func(key string) string {
		return os.Getenv(key)
	})

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件 %s 失败: %w", path, err)
	}

	setDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置文件 %s 无效: %w", path, err)
	}
	return cfg, nil
}

// Default 返回只含默认值的配置。
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

// Validate 检查取值是否合法。声音模型在启动检查时才要求存在。
func (c *Config) Validate() error {
	switch c.Engine.AudioPolicy {
	case AudioPolicyReject, AudioPolicyReplace:
	default:
		return fmt.Errorf("engine.audio_policy 只能是 %s 或 %s: %q",
			AudioPolicyReject, AudioPolicyReplace, c.Engine.AudioPolicy)
	}
	if c.Engine.Timeout < 0 {
		return fmt.Errorf("engine.timeout 不能为负")
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// setDefaults 为未设置的配置项填充默认值。
func setDefaults(cfg *Config) {
	if cfg.Engine.Binary == "" {
		cfg.Engine.Binary = "hts_engine"
	}
	def := engine.DefaultFlags()
	if cfg.Engine.Flags.Model == "" {
		cfg.Engine.Flags.Model = def.Model
	}
	if cfg.Engine.Flags.Wave == "" {
		cfg.Engine.Flags.Wave = def.Wave
	}
	if cfg.Engine.Flags.Duration == "" {
		cfg.Engine.Flags.Duration = def.Duration
	}
	if cfg.Engine.MaxConcurrent <= 0 {
		cfg.Engine.MaxConcurrent = 2
	}
	if cfg.Engine.AudioPolicy == "" {
		cfg.Engine.AudioPolicy = AudioPolicyReject
	}
	cfg.Engine.AudioPolicy = strings.ToLower(strings.TrimSpace(cfg.Engine.AudioPolicy))
	if cfg.Engine.StderrTail <= 0 {
		cfg.Engine.StderrTail = 20
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	cfg.Engine.Voice = expandHome(cfg.Engine.Voice)
	cfg.Engine.TempDir = expandHome(cfg.Engine.TempDir)
	cfg.Engine.OutputDir = expandHome(cfg.Engine.OutputDir)
	cfg.Journal.Path = expandHome(cfg.Journal.Path)
	cfg.Log.File = expandHome(cfg.Log.File)
}

// expandHome 展开路径开头的 ~/，Go 不会自动处理。
func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, _ := os.UserHomeDir()
	if home == "" {
		return p
	}
	return home + p[1:]
}
