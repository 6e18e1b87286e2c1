package rerank

import (
	"context"

	"github.com/rushteam/bizrank/core"
	"github.com/rushteam/bizrank/pipeline"
)

// currentPositionFromBottom 返回下标 index 在长度 n 的列表中自底向上、从 1 开始的位置：
// 最后一个元素为 1，第一个元素为 n。降权判断（desired < current）依赖这个坐标系，
// 它和 pin 的目标位置（自顶向下、从 0 开始）不是同一套坐标。
func currentPositionFromBottom(index, n int) int {
	return n - index
}

// Pin 为 pins 中的实体重新计算分数，使其在重新排序后落在（或尽量接近）指定位置。
//
// 输入必须已按分数降序排列；pins 为 实体 key -> 目标位置（0 为最顶部）。
// 输出与输入等长同序，只修改被置顶实体的分数，调用方需要重新排序。
//
// 规则：
//   - allowDownRanking 为 false 时，只有 desired < currentPositionFromBottom 才生效
//   - 目标位置超出列表时截断到 n-1，按置底处理
//   - 置底：最低分 - 1/自身分数（自身分数越高，最终分数越高，多个置底实体保持相对顺序）
//   - 置顶：最高分 + 自身分数
//   - 中间位置：取目标位置及其下一个位置的分数均值，已被本次调用占用的位置使用占用者的分数
//
// 置底要求被置底实体分数非 0，否则分数为 ±Inf（调用方的前置条件，不做防御）。
func Pin(
	cands []core.ScoredCandidate,
	pins map[string]int,
	keyFn core.KeyFunc,
	allowDownRanking bool,
) []core.ScoredCandidate {
	n := len(cands)
	out := make([]core.ScoredCandidate, n)
	if n == 0 || len(pins) == 0 {
		copy(out, cands)
		return out
	}
	keyFn = core.KeyOrDefault(keyFn)
	ledger := newPinLedger(n)

	for i, c := range cands {
		desired, ok := pins[keyFn(c.Entity)]
		if !ok || !(allowDownRanking || desired < currentPositionFromBottom(i, n)) {
			out[i] = c
			continue
		}
		target := min(desired, n-1)
		score := pinnedScore(ledger, c, target, cands)
		out[i] = c.WithScore(score)
		ledger.place(target, score)
	}
	return out
}

func pinnedScore(ledger *pinLedger, c core.ScoredCandidate, target int, cands []core.ScoredCandidate) float64 {
	n := len(cands)
	switch {
	case target >= n-1:
		return cands[n-1].Score - 1.0/c.Score
	case target == 0:
		return cands[0].Score + c.Score
	default:
		left := ledger.scoreAt(target, cands[target].Score)
		right := ledger.scoreAt(target+1, cands[target+1].Score)
		return (left + right) / 2
	}
}

// pinLedger 记录单次 Pin 调用中各位置被哪个分数占用，用于处理多个 pin 的冲突。
type pinLedger struct {
	n      int
	scores map[int]float64
}

func newPinLedger(n int) *pinLedger {
	return &pinLedger{n: n, scores: make(map[int]float64)}
}

func (l *pinLedger) scoreAt(pos int, fallback float64) float64 {
	if s, ok := l.scores[pos]; ok {
		return s
	}
	return fallback
}

type ledgerFrame struct {
	pos   int
	score float64
}

// place 把 score 放到 pos。pos 已被占用时原占用者被挤开：
// 原分数更高则向上（pos-1），否则向下（pos+1）；每一格都重新比较占用者与被挤分数。
//
// 级联过程中只读不写，所有写入在找到终点后按逆序回放（最深处先写，pos 最后写）。
// 被挤出 [0, n-1] 的分数不再被读取，直接丢弃；
// 同一 (pos, score) 状态重复出现说明级联成环，此时丢弃被挤分数，只回放已经过的位置。
func (l *pinLedger) place(pos int, score float64) {
	var frames []ledgerFrame
	seen := make(map[ledgerFrame]struct{})
	settle := true
	for pos >= 0 && pos < l.n {
		existing, taken := l.scores[pos]
		if !taken {
			break
		}
		f := ledgerFrame{pos: pos, score: score}
		if _, loop := seen[f]; loop {
			settle = false
			break
		}
		seen[f] = struct{}{}
		frames = append(frames, f)
		if existing > score {
			pos--
		} else {
			pos++
		}
		score = existing
	}
	if settle && pos >= 0 && pos < l.n {
		l.scores[pos] = score
	}
	for i := len(frames) - 1; i >= 0; i-- {
		l.scores[frames[i].pos] = frames[i].score
	}
}

// PinNode 是固定置顶规则的阶段。
//
// 示例：
//
//	&rerank.PinNode{NodeName: "merch_pins", Pins: map[string]int{"p3": 0, "p4": 2}}
type PinNode struct {
	NodeName         string
	Pins             map[string]int
	AllowDownRanking bool
	// KeyFunc 为空时使用实体 ID
	KeyFunc core.KeyFunc
}

func (n *PinNode) Name() string {
	if n.NodeName == "" {
		return "rerank.pin"
	}
	return n.NodeName
}

func (n *PinNode) Kind() pipeline.Kind { return pipeline.KindPin }

func (n *PinNode) Process(
	_ context.Context,
	_ *core.RequestContext,
	cands []core.ScoredCandidate,
) ([]core.ScoredCandidate, error) {
	return Pin(cands, n.Pins, n.KeyFunc, n.AllowDownRanking), nil
}

var _ pipeline.Stage = (*PinNode)(nil)
