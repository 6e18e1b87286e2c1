package rerank

import (
	"context"
	"fmt"

	"github.com/rushteam/bizrank/core"
	"github.com/rushteam/bizrank/pipeline"
	"github.com/rushteam/bizrank/pkg/dsl"
)

// RuleBoostNode 对满足表达式的候选加权，表达式可以同时引用 entity 与 rctx。
//
// 示例：
//
//	&rerank.RuleBoostNode{
//	    Rule:           dsl.MustCompile(`entity.meta.brand == "acme"`),
//	    Boost:          1.2,
//	    Multiplicative: true,
//	}
type RuleBoostNode struct {
	NodeName       string
	Rule           *dsl.Program
	Boost          float64
	Multiplicative bool
}

func (n *RuleBoostNode) Name() string {
	if n.NodeName == "" {
		return "rerank.rule_boost"
	}
	return n.NodeName
}

func (n *RuleBoostNode) Kind() pipeline.Kind { return pipeline.KindRule }

func (n *RuleBoostNode) Process(
	_ context.Context,
	rctx *core.RequestContext,
	cands []core.ScoredCandidate,
) ([]core.ScoredCandidate, error) {
	out := make([]core.ScoredCandidate, len(cands))
	for i, c := range cands {
		ok, err := n.Rule.EvalCandidate(rctx, c)
		if err != nil {
			return nil, fmt.Errorf("rule on %s: %w", core.DefaultKey(c.Entity), err)
		}
		switch {
		case !ok:
			out[i] = c
		case n.Multiplicative:
			out[i] = c.WithScore(c.Score * n.Boost)
		default:
			out[i] = c.WithScore(c.Score + n.Boost)
		}
	}
	return out, nil
}

var _ pipeline.Stage = (*RuleBoostNode)(nil)
