package rerank

import (
	"context"
	"fmt"
	"math"

	"github.com/rushteam/bizrank/core"
	"github.com/rushteam/bizrank/pipeline"
)

// DiversityNode 对同一属性值（默认 meta["category"]）过于集中的候选降权。
// 输入按分数降序遍历，每个值前 MaxPerValue 个候选不变，
// 之后第 k 个超出的候选分数乘以 Decay^k。没有该属性的候选不参与统计。
//
// 分数需为正数，否则乘法降权会变成提权。
type DiversityNode struct {
	NodeName    string
	Field       string  // 默认 "category"
	MaxPerValue int     // 默认 1
	Decay       float64 // 默认 0.5，取值 (0, 1]
}

func (n *DiversityNode) Name() string {
	if n.NodeName == "" {
		return "rerank.diversity"
	}
	return n.NodeName
}

func (n *DiversityNode) Kind() pipeline.Kind { return pipeline.KindRule }

func (n *DiversityNode) Process(
	_ context.Context,
	_ *core.RequestContext,
	cands []core.ScoredCandidate,
) ([]core.ScoredCandidate, error) {
	field := n.Field
	if field == "" {
		field = "category"
	}
	limit := n.MaxPerValue
	if limit <= 0 {
		limit = 1
	}
	decay := n.Decay
	if decay == 0 {
		decay = 0.5
	}

	seen := make(map[string]int, 16)
	out := make([]core.ScoredCandidate, len(cands))
	for i, c := range cands {
		out[i] = c
		v := metaString(c.Entity, field)
		if v == "" {
			continue
		}
		seen[v]++
		if over := seen[v] - limit; over > 0 {
			out[i] = c.WithScore(c.Score * math.Pow(decay, float64(over)))
		}
	}
	return out, nil
}

func metaString(e core.Entity, field string) string {
	be, ok := e.(*core.BasicEntity)
	if !ok || be.Meta == nil {
		return ""
	}
	v, ok := be.Meta[field]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

var _ pipeline.Stage = (*DiversityNode)(nil)
