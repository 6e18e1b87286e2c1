package utils

import "strings"

// Label 记录排序链路上的一次可解释事实，例如哪个业务逻辑阶段改动过分数。
// Value 与 Source 的语义由业务自定义；这里只提供标准化的合并规则。
type Label struct {
	Value  string `json:"value"`
	Source string `json:"source"` // pipeline / rule / rank ...
}

// MergeLabel 合并同名 Label：
// - Value: 以 '|' 累积，已出现过的值不重复追加
// - Source: 以 ',' 累积，同样去重
func MergeLabel(existing Label, incoming Label) Label {
	if existing.Value == "" {
		return incoming
	}
	if incoming.Value == "" {
		return existing
	}
	return Label{
		Value:  appendUnique(existing.Value, incoming.Value, "|"),
		Source: appendUnique(existing.Source, incoming.Source, ","),
	}
}

func appendUnique(list, v, sep string) string {
	switch {
	case list == "":
		return v
	case v == "":
		return list
	}
	for _, p := range strings.Split(list, sep) {
		if p == v {
			return list
		}
	}
	return list + sep + v
}
