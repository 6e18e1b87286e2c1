package rerank

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rushteam/bizrank/core"
	"github.com/rushteam/bizrank/pipeline"
)

// StorePinNode 从 KeyValueStore 读取运营配置的置顶规则并执行 Pin。
//
// 规则以 Hash 存储：key = KeyPrefix + scope，field = 实体 key，value = 目标位置（十进制整数）。
// scope 为 Scope（非空时）或请求的搜索词；Hash 不存在时不置顶。
//
//	HSET pins:candle 3 0
//	HSET pins:candle 7 2
type StorePinNode struct {
	NodeName         string
	Store            core.KeyValueStore
	KeyPrefix        string // 默认 "pins:"
	Scope            string
	AllowDownRanking bool
	KeyFunc          core.KeyFunc
	Logger           *zerolog.Logger
}

func (n *StorePinNode) Name() string {
	if n.NodeName == "" {
		return "rerank.store_pin"
	}
	return n.NodeName
}

func (n *StorePinNode) Kind() pipeline.Kind { return pipeline.KindPin }

func (n *StorePinNode) ruleKey(rctx *core.RequestContext) string {
	prefix := n.KeyPrefix
	if prefix == "" {
		prefix = "pins:"
	}
	scope := n.Scope
	if scope == "" && rctx != nil {
		scope = strings.ToLower(strings.TrimSpace(rctx.Query))
	}
	return prefix + scope
}

// cacheKey 以规则 key 区分缓存，同一请求中多个 store_pin 阶段互不覆盖。
func (n *StorePinNode) cacheKey(rctx *core.RequestContext) string {
	return "store_pin:" + n.ruleKey(rctx)
}

// Prefetch 读取规则并缓存到 RequestContext，Process 直接使用缓存。
func (n *StorePinNode) Prefetch(ctx context.Context, rctx *core.RequestContext) error {
	if rctx == nil {
		return nil
	}
	pins, err := n.load(ctx, rctx)
	if err != nil {
		return err
	}
	rctx.SetValue(n.cacheKey(rctx), pins)
	return nil
}

func (n *StorePinNode) load(ctx context.Context, rctx *core.RequestContext) (map[string]int, error) {
	if n.Store == nil {
		return nil, nil
	}
	key := n.ruleKey(rctx)
	raw, err := n.Store.HGetAll(ctx, key)
	if err != nil {
		if core.IsStoreNotFound(err) {
			return nil, nil
		}
		return nil, core.WrapDomainError(core.ModuleRule, core.ErrorCodeUnavailable,
			fmt.Sprintf("load pins %s", key), err)
	}
	pins := make(map[string]int, len(raw))
	for field, v := range raw {
		pos, err := strconv.Atoi(strings.TrimSpace(string(v)))
		if err != nil || pos < 0 {
			if n.Logger != nil {
				n.Logger.Warn().Str("key", key).Str("field", field).Str("value", string(v)).Msg("skip invalid pin position")
			}
			continue
		}
		pins[field] = pos
	}
	return pins, nil
}

func (n *StorePinNode) Process(
	ctx context.Context,
	rctx *core.RequestContext,
	cands []core.ScoredCandidate,
) ([]core.ScoredCandidate, error) {
	var pins map[string]int
	if v, ok := rctxValue(rctx, n.cacheKey(rctx)); ok {
		pins, _ = v.(map[string]int)
	} else {
		var err error
		if pins, err = n.load(ctx, rctx); err != nil {
			return nil, err
		}
	}
	return Pin(cands, pins, n.KeyFunc, n.AllowDownRanking), nil
}

func rctxValue(rctx *core.RequestContext, key string) (any, bool) {
	if rctx == nil {
		return nil, false
	}
	return rctx.Value(key)
}

var (
	_ pipeline.Stage      = (*StorePinNode)(nil)
	_ pipeline.Prefetcher = (*StorePinNode)(nil)
)
