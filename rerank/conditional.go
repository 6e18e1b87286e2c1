package rerank

import (
	"context"
	"fmt"

	"github.com/rushteam/bizrank/core"
	"github.com/rushteam/bizrank/pipeline"
	"github.com/rushteam/bizrank/pkg/dsl"
)

// ConditionalNode 仅在请求满足 Condition 时执行 Stage，否则候选原样通过。
// Condition 为空时总是执行 Stage；Stage 为空时总是原样通过。
//
// 示例（搜索词为 candle 时给商品 3 加 100 分）：
//
//	&rerank.ConditionalNode{
//	    Condition: dsl.MustCompile(`rctx.query == "candle"`),
//	    Stage:     &rerank.BoostNode{NodeName: "boost_candles", Keys: []string{"3"}, Boost: 100},
//	}
type ConditionalNode struct {
	NodeName  string
	Condition *dsl.Program
	Stage     pipeline.Stage
}

func (n *ConditionalNode) Name() string {
	if n.NodeName != "" {
		return n.NodeName
	}
	if n.Stage != nil {
		return n.Stage.Name()
	}
	return "rerank.conditional"
}

func (n *ConditionalNode) Kind() pipeline.Kind {
	if n.Stage != nil {
		return n.Stage.Kind()
	}
	return pipeline.KindRule
}

func (n *ConditionalNode) Process(
	ctx context.Context,
	rctx *core.RequestContext,
	cands []core.ScoredCandidate,
) ([]core.ScoredCandidate, error) {
	if n.Stage == nil {
		return cands, nil
	}
	if n.Condition != nil {
		ok, err := n.Condition.EvalRequest(rctx)
		if err != nil {
			return nil, fmt.Errorf("condition: %w", err)
		}
		if !ok {
			return cands, nil
		}
	}
	return n.Stage.Process(ctx, rctx, cands)
}

// Prefetch 透传给内部阶段，不判断条件。
func (n *ConditionalNode) Prefetch(ctx context.Context, rctx *core.RequestContext) error {
	if pf, ok := n.Stage.(pipeline.Prefetcher); ok {
		return pf.Prefetch(ctx, rctx)
	}
	return nil
}

var (
	_ pipeline.Stage      = (*ConditionalNode)(nil)
	_ pipeline.Prefetcher = (*ConditionalNode)(nil)
)
