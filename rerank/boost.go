package rerank

import (
	"context"

	"github.com/rushteam/bizrank/core"
	"github.com/rushteam/bizrank/pipeline"
)

// Boost 对 key 命中 keys 的候选调整分数：multiplicative 为 true 时 score*boost，否则 score+boost。
// 未命中的候选原样返回。输出与输入等长同序，不排序。
// boost 可以是任意浮点数（包括 0 和负数，即降权）。
func Boost(
	cands []core.ScoredCandidate,
	keys map[string]struct{},
	boost float64,
	keyFn core.KeyFunc,
	multiplicative bool,
) []core.ScoredCandidate {
	keyFn = core.KeyOrDefault(keyFn)
	out := make([]core.ScoredCandidate, len(cands))
	for i, c := range cands {
		if _, ok := keys[keyFn(c.Entity)]; !ok {
			out[i] = c
			continue
		}
		if multiplicative {
			out[i] = c.WithScore(c.Score * boost)
		} else {
			out[i] = c.WithScore(c.Score + boost)
		}
	}
	return out
}

// KeySet 把 key 列表转为 Boost 使用的集合。
func KeySet(keys ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

// BoostNode 是固定 key 集合的加权阶段。
//
// 示例：
//
//	&rerank.BoostNode{NodeName: "boost_wax_seal", Keys: []string{"7"}, Boost: 100}
type BoostNode struct {
	NodeName       string
	Keys           []string
	Boost          float64
	Multiplicative bool
	// KeyFunc 为空时使用实体 ID
	KeyFunc core.KeyFunc
}

func (n *BoostNode) Name() string {
	if n.NodeName == "" {
		return "rerank.boost"
	}
	return n.NodeName
}

func (n *BoostNode) Kind() pipeline.Kind { return pipeline.KindBoost }

func (n *BoostNode) Process(
	_ context.Context,
	_ *core.RequestContext,
	cands []core.ScoredCandidate,
) ([]core.ScoredCandidate, error) {
	return Boost(cands, KeySet(n.Keys...), n.Boost, n.KeyFunc, n.Multiplicative), nil
}

var _ pipeline.Stage = (*BoostNode)(nil)
