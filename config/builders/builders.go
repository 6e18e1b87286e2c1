// Package builders 注册内置的业务逻辑阶段。
package builders

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rushteam/bizrank/config"
	"github.com/rushteam/bizrank/core"
	"github.com/rushteam/bizrank/pipeline"
	"github.com/rushteam/bizrank/pkg/conv"
	"github.com/rushteam/bizrank/pkg/dsl"
	"github.com/rushteam/bizrank/rerank"
)

// Deps 是构建阶段时可注入的外部依赖。
type Deps struct {
	// Store 供 store_pin 读取运营规则，为空时 store_pin 不可用
	Store  core.KeyValueStore
	Logger *zerolog.Logger
}

// RegisterDefaults 把内置阶段注册到 reg。
func RegisterDefaults(reg *config.Registry, deps Deps) {
	reg.Register("boost", BuildBoost)
	reg.Register("pin", BuildPin)
	reg.Register("lookup_boost", BuildLookupBoost)
	reg.Register("rule_boost", BuildRuleBoost)
	reg.Register("diversity", BuildDiversity)
	reg.Register("conditional", func(name string, cfg map[string]any) (pipeline.Stage, error) {
		return BuildConditional(reg, name, cfg)
	})
	reg.Register("store_pin", func(name string, cfg map[string]any) (pipeline.Stage, error) {
		return BuildStorePin(deps, name, cfg)
	})
}

// NewDefaultRegistry 返回注册了全部内置阶段的 Registry。
func NewDefaultRegistry(deps Deps) *config.Registry {
	reg := config.NewRegistry()
	RegisterDefaults(reg, deps)
	return reg
}

// keyFunc 解析 key_field：为空时使用实体 ID，否则读取 BasicEntity.Meta 中的字段。
func keyFunc(cfg map[string]any) core.KeyFunc {
	field := conv.ConfigGet(cfg, "key_field", "")
	if field == "" || field == "id" {
		return nil
	}
	return func(e core.Entity) string {
		be, ok := e.(*core.BasicEntity)
		if !ok || be.Meta == nil {
			return ""
		}
		v, ok := be.Meta[field]
		if !ok || v == nil {
			return ""
		}
		return fmt.Sprint(v)
	}
}

// BuildBoost
//
//	type: boost
//	config: {keys: ["7"], boost: 100, multiplicative: false, key_field: brand}
func BuildBoost(name string, cfg map[string]any) (pipeline.Stage, error) {
	keys := conv.SliceAnyToString(cfg["keys"])
	if len(keys) == 0 {
		return nil, errors.New("boost: keys not found")
	}
	if _, ok := cfg["boost"]; !ok {
		return nil, errors.New("boost: boost not found")
	}
	return &rerank.BoostNode{
		NodeName:       name,
		Keys:           keys,
		Boost:          conv.ConfigGetFloat64(cfg, "boost", 0),
		Multiplicative: conv.ConfigGet(cfg, "multiplicative", false),
		KeyFunc:        keyFunc(cfg),
	}, nil
}

// BuildPin 支持两种写法：
//
//	config: {pins: {"3": 0, "7": 2}, allow_down_ranking: false}
//	config: {pins: [{key: "3", position: 0}, {key: "7", position: 2}]}
func BuildPin(name string, cfg map[string]any) (pipeline.Stage, error) {
	pins, err := parsePins(cfg["pins"])
	if err != nil {
		return nil, fmt.Errorf("pin: %w", err)
	}
	return &rerank.PinNode{
		NodeName:         name,
		Pins:             pins,
		AllowDownRanking: conv.ConfigGet(cfg, "allow_down_ranking", false),
		KeyFunc:          keyFunc(cfg),
	}, nil
}

func parsePins(v any) (map[string]int, error) {
	pins := make(map[string]int)
	switch raw := v.(type) {
	case map[string]any:
		for k, p := range raw {
			pos, ok := conv.ToInt(p)
			if !ok || pos < 0 {
				return nil, fmt.Errorf("invalid position %v for %q", p, k)
			}
			pins[k] = pos
		}
	case map[any]any:
		for k, p := range raw {
			pos, ok := conv.ToInt(p)
			if !ok || pos < 0 {
				return nil, fmt.Errorf("invalid position %v for %v", p, k)
			}
			pins[fmt.Sprint(k)] = pos
		}
	case []any:
		for i, item := range raw {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("pins[%d]: expect {key, position}", i)
			}
			key := conv.SliceAnyToString([]any{m["key"]})
			pos, ok := conv.ToInt(m["position"])
			if len(key) == 0 || key[0] == "" || !ok || pos < 0 {
				return nil, fmt.Errorf("pins[%d]: invalid key or position", i)
			}
			pins[key[0]] = pos
		}
	case nil:
		return nil, errors.New("pins not found")
	default:
		return nil, fmt.Errorf("unsupported pins format %T", v)
	}
	return pins, nil
}

// BuildLookupBoost 从 CSV 文件或内联 table 构建查表加权：
//
//	config: {file: boosts.csv, key_columns: [product_id, query], boost_column: boost}
//	config: {table: {"3:candle": 100}}
func BuildLookupBoost(name string, cfg map[string]any) (pipeline.Stage, error) {
	node := &rerank.LookupBoostNode{
		NodeName:       name,
		Multiplicative: conv.ConfigGet(cfg, "multiplicative", false),
	}
	if path := conv.ConfigGet(cfg, "file", ""); path != "" {
		keyColumns := conv.SliceAnyToString(cfg["key_columns"])
		if len(keyColumns) == 0 {
			keyColumns = []string{"entity_id", "query"}
		}
		table, err := rerank.LoadBoostTableFile(path, keyColumns, conv.ConfigGet(cfg, "boost_column", "boost"))
		if err != nil {
			return nil, fmt.Errorf("lookup_boost: %w", err)
		}
		node.Table = table
		return node, nil
	}
	table := conv.MapToFloat64(conv.ConfigGetMap(cfg, "table"))
	if table == nil {
		return nil, errors.New("lookup_boost: file or table required")
	}
	node.Table = table
	return node, nil
}

// BuildRuleBoost
//
//	config: {rule: 'entity.meta.brand == "acme"', boost: 1.2, multiplicative: true}
func BuildRuleBoost(name string, cfg map[string]any) (pipeline.Stage, error) {
	expr := conv.ConfigGet(cfg, "rule", "")
	if expr == "" {
		return nil, errors.New("rule_boost: rule not found")
	}
	prg, err := dsl.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("rule_boost: %w", err)
	}
	return &rerank.RuleBoostNode{
		NodeName:       name,
		Rule:           prg,
		Boost:          conv.ConfigGetFloat64(cfg, "boost", 0),
		Multiplicative: conv.ConfigGet(cfg, "multiplicative", false),
	}, nil
}

// BuildDiversity
//
//	config: {field: category, max_per_value: 2, decay: 0.5}
func BuildDiversity(name string, cfg map[string]any) (pipeline.Stage, error) {
	decay := conv.ConfigGetFloat64(cfg, "decay", 0.5)
	if decay <= 0 || decay > 1 {
		return nil, fmt.Errorf("diversity: decay %v must be in (0, 1]", decay)
	}
	return &rerank.DiversityNode{
		NodeName:    name,
		Field:       conv.ConfigGet(cfg, "field", "category"),
		MaxPerValue: int(conv.ConfigGetInt64(cfg, "max_per_value", 1)),
		Decay:       decay,
	}, nil
}

// BuildConditional 包装一个嵌套阶段，仅在请求满足 condition 时执行：
//
//	type: conditional
//	name: boost_candles
//	config:
//	  condition: rctx.query == "candle"
//	  stage: {type: boost, config: {keys: ["3", "5"], boost: 10}}
func BuildConditional(reg *config.Registry, name string, cfg map[string]any) (pipeline.Stage, error) {
	prg, err := dsl.Compile(conv.ConfigGet(cfg, "condition", ""))
	if err != nil {
		return nil, fmt.Errorf("conditional: %w", err)
	}
	inner := conv.ConfigGetMap(cfg, "stage")
	if inner == nil {
		return nil, errors.New("conditional: stage not found")
	}
	innerType := conv.ConfigGet(inner, "type", "")
	if innerType == "" {
		return nil, errors.New("conditional: stage type not found")
	}
	innerName := conv.ConfigGet(inner, "name", name)
	stage, err := reg.Build(innerType, innerName, conv.ConfigGetMap(inner, "config"))
	if err != nil {
		return nil, fmt.Errorf("conditional: %w", err)
	}
	return &rerank.ConditionalNode{NodeName: name, Condition: prg, Stage: stage}, nil
}

// BuildStorePin
//
//	config: {key_prefix: "pins:", scope: "", allow_down_ranking: false}
func BuildStorePin(deps Deps, name string, cfg map[string]any) (pipeline.Stage, error) {
	if deps.Store == nil {
		return nil, core.NewDomainError(core.ModuleRule, core.ErrorCodeUnavailable, "store_pin: no store configured")
	}
	return &rerank.StorePinNode{
		NodeName:         name,
		Store:            deps.Store,
		KeyPrefix:        conv.ConfigGet(cfg, "key_prefix", ""),
		Scope:            conv.ConfigGet(cfg, "scope", ""),
		AllowDownRanking: conv.ConfigGet(cfg, "allow_down_ranking", false),
		KeyFunc:          keyFunc(cfg),
		Logger:           deps.Logger,
	}, nil
}
