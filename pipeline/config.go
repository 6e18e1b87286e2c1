package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Config 是业务逻辑 Pipeline 的配置结构（支持 YAML/JSON）。
//
//	pipeline:
//	  name: search_business_logic
//	  stages:
//	    - type: boost
//	      name: boost_wax_seal
//	      config: {keys: ["7"], boost: 100}
type Config struct {
	Pipeline struct {
		Name   string        `yaml:"name" json:"name"`
		Stages []StageConfig `yaml:"stages" json:"stages"`
	} `yaml:"pipeline" json:"pipeline"`
}

// StageConfig 是单个 Stage 的配置。
type StageConfig struct {
	Type   string         `yaml:"type" json:"type"`     // boost / pin / lookup_boost / conditional ...
	Name   string         `yaml:"name" json:"name"`     // 事件与指标中的阶段名，为空时使用 Type
	Config map[string]any `yaml:"config" json:"config"` // Stage 特定配置
}

// LoadFromYAML 从 YAML 文件加载 Pipeline 配置。
func LoadFromYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return ParseYAML(data)
}

// ParseYAML 解析 YAML 格式的 Pipeline 配置。
func ParseYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return &cfg, nil
}

// LoadFromJSON 从 JSON 文件加载 Pipeline 配置。
func LoadFromJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return &cfg, nil
}

// BuildPipeline 根据配置构建 Pipeline（需要 StageFactory 注册 Stage 构建器）。
// Sink / Observer / Logger 由调用方在返回后设置。
func (c *Config) BuildPipeline(factory *StageFactory) (*Pipeline, error) {
	stages := make([]Stage, 0, len(c.Pipeline.Stages))
	for i, sc := range c.Pipeline.Stages {
		name := sc.Name
		if name == "" {
			name = sc.Type
		}
		stage, err := factory.Build(sc.Type, name, sc.Config)
		if err != nil {
			return nil, fmt.Errorf("build stage #%d %s: %w", i, name, err)
		}
		stages = append(stages, stage)
	}
	return &Pipeline{Name: c.Pipeline.Name, Stages: stages}, nil
}

// StageBuilder 根据名称和配置构建 Stage。
type StageBuilder func(name string, cfg map[string]any) (Stage, error)

// StageFactory 用于根据配置构建 Stage 实例。
// 每个服务显式构造自己的 factory，不使用进程级全局注册表。
type StageFactory struct {
	builders map[string]StageBuilder
}

func NewStageFactory() *StageFactory {
	return &StageFactory{builders: make(map[string]StageBuilder)}
}

// Register 注册 Stage 构建器；同名类型后注册的覆盖先注册的。
func (f *StageFactory) Register(stageType string, builder StageBuilder) {
	if stageType == "" || builder == nil {
		return
	}
	f.builders[stageType] = builder
}

// Has 判断类型是否已注册。
func (f *StageFactory) Has(stageType string) bool {
	_, ok := f.builders[stageType]
	return ok
}

// Types 返回已注册的类型（排序）。
func (f *StageFactory) Types() []string {
	types := make([]string, 0, len(f.builders))
	for t := range f.builders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Build 根据类型和配置构建 Stage。
func (f *StageFactory) Build(stageType, name string, cfg map[string]any) (Stage, error) {
	builder, ok := f.builders[stageType]
	if !ok {
		return nil, fmt.Errorf("unknown stage type %q (supported: %v)", stageType, f.Types())
	}
	return builder(name, cfg)
}
