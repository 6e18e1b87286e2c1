// Package config 负责把配置转换为运行时对象：业务逻辑阶段注册表与服务配置。
package config

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rushteam/bizrank/pipeline"
)

// Registry 是显式构造的阶段构建器注册表，每个服务持有自己的实例。
// 内置阶段通过 builders.RegisterDefaults 注册。
type Registry struct {
	mu       sync.RWMutex
	builders map[string]pipeline.StageBuilder
}

func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]pipeline.StageBuilder)}
}

// Register 注册一种阶段的构建逻辑；同名类型后注册的覆盖先注册的。
func (r *Registry) Register(stageType string, builder pipeline.StageBuilder) {
	if stageType == "" || builder == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[stageType] = builder
}

// SupportedTypes 返回已注册的阶段类型（排序），用于错误提示与校验。
func (r *Registry) SupportedTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.builders))
	for t := range r.builders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Factory 返回包含当前全部构建器的 StageFactory 快照。
func (r *Registry) Factory() *pipeline.StageFactory {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f := pipeline.NewStageFactory()
	for typeName, builder := range r.builders {
		f.Register(typeName, builder)
	}
	return f
}

// Build 是 StageFactory.Build 的便捷版本，供嵌套阶段（conditional）使用。
func (r *Registry) Build(stageType, name string, cfg map[string]any) (pipeline.Stage, error) {
	r.mu.RLock()
	builder, ok := r.builders[stageType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported stage type %q (supported: %v)", stageType, r.SupportedTypes())
	}
	return builder(name, cfg)
}

// Validate 校验配置中所有阶段类型均已注册，未注册时返回包含已支持列表的错误。
func (r *Registry) Validate(cfg *pipeline.Config) error {
	if cfg == nil {
		return nil
	}
	for i, sc := range cfg.Pipeline.Stages {
		if sc.Type == "" {
			return fmt.Errorf("stage #%d: missing type", i)
		}
		r.mu.RLock()
		_, ok := r.builders[sc.Type]
		r.mu.RUnlock()
		if !ok {
			return fmt.Errorf("stage #%d: unsupported stage type %q (supported: %v)", i, sc.Type, r.SupportedTypes())
		}
	}
	return nil
}

// BuildPipeline 校验并构建 Pipeline。
func (r *Registry) BuildPipeline(cfg *pipeline.Config) (*pipeline.Pipeline, error) {
	if err := r.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg.BuildPipeline(r.Factory())
}
