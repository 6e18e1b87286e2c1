package pipeline

import (
	"context"

	"github.com/rushteam/bizrank/core"
)

// Kind 用于标记 Stage 类型，方便观测/治理（例如按阶段打点）。
type Kind string

const (
	KindBoost  Kind = "boost"  // 加权：对命中 key 的候选加/乘分
	KindPin    Kind = "pin"    // 置顶/定位：把指定实体放到指定位置
	KindRule   Kind = "rule"   // 规则：由表达式或外部规则驱动的调整
	KindCustom Kind = "custom" // 自定义业务逻辑
)

// Stage 是业务逻辑 Pipeline 的最小可扩展单元。
//
// 约定：
//   - 输入已按分数降序排列（Pipeline 在每个阶段前排序）
//   - 输出与输入等长、同序，只允许修改分数；排序由 Pipeline 负责
//   - 不得原地修改输入切片
type Stage interface {
	Name() string
	Kind() Kind

	Process(
		ctx context.Context,
		rctx *core.RequestContext,
		cands []core.ScoredCandidate,
	) ([]core.ScoredCandidate, error)
}

// Prefetcher 由需要远程数据的 Stage 实现（例如从 Redis 读取运营规则）。
// 排序编排层可以在模型打分的同时并发调用 Prefetch，结果缓存在 RequestContext 中。
type Prefetcher interface {
	Prefetch(ctx context.Context, rctx *core.RequestContext) error
}

// StageFunc 把普通函数适配为 Stage，便于测试和一次性逻辑。
type StageFunc struct {
	StageName string
	StageKind Kind
	Fn        func(ctx context.Context, rctx *core.RequestContext, cands []core.ScoredCandidate) ([]core.ScoredCandidate, error)
}

func (s *StageFunc) Name() string { return s.StageName }

func (s *StageFunc) Kind() Kind {
	if s.StageKind == "" {
		return KindCustom
	}
	return s.StageKind
}

func (s *StageFunc) Process(ctx context.Context, rctx *core.RequestContext, cands []core.ScoredCandidate) ([]core.ScoredCandidate, error) {
	if s.Fn == nil {
		return cands, nil
	}
	return s.Fn(ctx, rctx, cands)
}
