package config

import (
	"errors"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix 是服务配置环境变量前缀，例如 BIZRANK_REDIS_ADDR -> redis_addr。
const EnvPrefix = "BIZRANK_"

// Service 是 cmd/bizrank 的服务配置。
type Service struct {
	LogLevel  string `koanf:"log_level"`
	LogPretty bool   `koanf:"log_pretty"`

	// PipelineFile 是业务逻辑 Pipeline 的 YAML 定义
	PipelineFile string `koanf:"pipeline_file"`
	APISource    string `koanf:"api_source"`

	// RedisAddr 为空时使用内存存储
	RedisAddr      string `koanf:"redis_addr"`
	RedisPassword  string `koanf:"redis_password"`
	RedisDB        int    `koanf:"redis_db"`
	RedisKeyPrefix string `koanf:"redis_key_prefix"`

	// EventTTLSeconds 是落盘事件的过期时间，0 表示不落盘
	EventTTLSeconds int  `koanf:"event_ttl_seconds"`
	LogEvents       bool `koanf:"log_events"`

	// 打分模型：ModelEndpoint 优先，其次 LRModelFile，都为空时不打分
	ModelEndpoint  string `koanf:"model_endpoint"`
	ModelTimeoutMS int    `koanf:"model_timeout_ms"`
	LRModelFile    string `koanf:"lr_model_file"`

	MetricsAddr string `koanf:"metrics_addr"`
}

// DefaultService 返回默认配置。
func DefaultService() *Service {
	return &Service{
		LogLevel:        "info",
		APISource:       "/ranking",
		RedisKeyPrefix:  "bizrank:",
		EventTTLSeconds: 86400,
		ModelTimeoutMS:  500,
	}
}

// LoadService 按 默认值 -> YAML 文件 -> 环境变量 的顺序叠加配置。
// path 为空时读取 BIZRANK_CONFIG；两者都为空则跳过文件。
func LoadService(path string) (*Service, error) {
	k := koanf.New(".")

	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG")
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	cfg := DefaultService()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 做基本校验。
func (s *Service) Validate() error {
	if s.PipelineFile == "" {
		return errors.New("pipeline_file must not be empty")
	}
	if s.EventTTLSeconds < 0 {
		return errors.New("event_ttl_seconds must not be negative")
	}
	if s.ModelTimeoutMS < 0 {
		return errors.New("model_timeout_ms must not be negative")
	}
	return nil
}
