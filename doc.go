// Package bizrank 是请求级的排序业务逻辑框架。
//
// 设计要点：
// - Pipeline-first: 模型打分之后的业务逻辑（加权、置顶、规则）通过 Stage 串联，每个阶段之后重新稳定排序
// - Events-first: 每个阶段改动的分数都产生一条业务逻辑事件，用于审计与 explain
// - Stage 可扩展: 实现 pipeline.Stage 并注册到 config.Registry 即可由配置驱动
package bizrank

import (
	"github.com/rushteam/bizrank/core"
	"github.com/rushteam/bizrank/pipeline"
)

// 轻量 facade：便于直接 import "bizrank" 使用核心抽象。
type (
	Pipeline        = pipeline.Pipeline
	Stage           = pipeline.Stage
	Kind            = pipeline.Kind
	ScoredCandidate = core.ScoredCandidate
	RequestContext  = core.RequestContext
)

const (
	KindBoost  = pipeline.KindBoost
	KindPin    = pipeline.KindPin
	KindRule   = pipeline.KindRule
	KindCustom = pipeline.KindCustom
)
