package core

import "sort"

// SortCandidates 按分数稳定排序，返回新切片，不修改输入。
// 同分候选保持输入中的相对顺序：Pipeline 在每个阶段之间都会重新排序，
// 未被调整的候选不能因为重复排序而互换位置。
func SortCandidates(cands []ScoredCandidate, descending bool) []ScoredCandidate {
	out := make([]ScoredCandidate, len(cands))
	copy(out, cands)
	if descending {
		sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	} else {
		sort.SliceStable(out, func(i, j int) bool { return out[i].Score < out[j].Score })
	}
	return out
}

// SortDesc 是 SortCandidates(cands, true) 的简写。
func SortDesc(cands []ScoredCandidate) []ScoredCandidate {
	return SortCandidates(cands, true)
}
