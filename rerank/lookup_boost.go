package rerank

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rushteam/bizrank/core"
	"github.com/rushteam/bizrank/pipeline"
)

// LookupKeyFunc 根据请求和实体生成查表用的 key。
type LookupKeyFunc func(rctx *core.RequestContext, e core.Entity) string

// EntityQueryKey 是默认的查表 key："<entity_id>:<query>"。
func EntityQueryKey(rctx *core.RequestContext, e core.Entity) string {
	q := ""
	if rctx != nil {
		q = rctx.Query
	}
	return core.DefaultKey(e) + ":" + q
}

// LoadBoostTableCSV 从 CSV 读取加权表。
// 表头必须包含 keyColumns 与 boostColumn；多列 key 以 ':' 拼接，顺序与 keyColumns 一致。
// 重复 key 以最后一行为准。
//
// 例如 product_id,query,boost 三列，keyColumns = [product_id, query]，得到 "3:candle" -> 100。
func LoadBoostTableCSV(r io.Reader, keyColumns []string, boostColumn string) (map[string]float64, error) {
	if len(keyColumns) == 0 {
		return nil, errors.New("boost table: no key columns")
	}
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("boost table: read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(h)] = i
	}
	keyIdx := make([]int, len(keyColumns))
	for i, col := range keyColumns {
		idx, ok := index[col]
		if !ok {
			return nil, fmt.Errorf("boost table: missing key column %q", col)
		}
		keyIdx[i] = idx
	}
	boostIdx, ok := index[boostColumn]
	if !ok {
		return nil, fmt.Errorf("boost table: missing boost column %q", boostColumn)
	}

	table := make(map[string]float64)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("boost table: line %d: %w", line, err)
		}
		parts := make([]string, len(keyIdx))
		for i, idx := range keyIdx {
			parts[i] = strings.TrimSpace(rec[idx])
		}
		boost, err := strconv.ParseFloat(strings.TrimSpace(rec[boostIdx]), 64)
		if err != nil {
			return nil, fmt.Errorf("boost table: line %d: parse boost: %w", line, err)
		}
		table[strings.Join(parts, ":")] = boost
	}
	return table, nil
}

// LoadBoostTableFile 是 LoadBoostTableCSV 的文件版本。
func LoadBoostTableFile(path string, keyColumns []string, boostColumn string) (map[string]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("boost table: %w", err)
	}
	defer f.Close()
	return LoadBoostTableCSV(f, keyColumns, boostColumn)
}

// LookupBoostNode 按查表结果加权：每个候选用 KeyFunc 生成 key，命中 Table 则加/乘对应的值。
type LookupBoostNode struct {
	NodeName       string
	Table          map[string]float64
	Multiplicative bool
	// KeyFunc 为空时使用 EntityQueryKey
	KeyFunc LookupKeyFunc
}

func (n *LookupBoostNode) Name() string {
	if n.NodeName == "" {
		return "rerank.lookup_boost"
	}
	return n.NodeName
}

func (n *LookupBoostNode) Kind() pipeline.Kind { return pipeline.KindBoost }

func (n *LookupBoostNode) Process(
	_ context.Context,
	rctx *core.RequestContext,
	cands []core.ScoredCandidate,
) ([]core.ScoredCandidate, error) {
	keyFn := n.KeyFunc
	if keyFn == nil {
		keyFn = EntityQueryKey
	}
	out := make([]core.ScoredCandidate, len(cands))
	for i, c := range cands {
		boost, ok := n.Table[keyFn(rctx, c.Entity)]
		switch {
		case !ok:
			out[i] = c
		case n.Multiplicative:
			out[i] = c.WithScore(c.Score * boost)
		default:
			out[i] = c.WithScore(c.Score + boost)
		}
	}
	return out, nil
}

var _ pipeline.Stage = (*LookupBoostNode)(nil)
