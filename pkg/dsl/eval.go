package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/bizrank/core"
)

var (
	// celEnv 是全局的 CEL 环境，只读、线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once
)

func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = cel.NewEnv(
			cel.Variable("entity", cel.DynType),
			cel.Variable("rctx", cel.DynType),
		)
	})
	return celEnv, celEnvErr
}

// Program 是编译后的业务规则表达式，使用 CEL (Common Expression Language)。
// 编译一次，可在多个请求、多个 goroutine 中并发求值。
//
// 可用变量：
//   - rctx.request_id / rctx.user_id / rctx.query
//   - rctx.params.<key>、rctx.labels.<key>（label 的 value）
//   - entity.id / entity.type / entity.score
//   - entity.meta.<key>、entity.features.<key>（仅 core.BasicEntity 有值）
//
// 示例：
//   - `rctx.query == "candle"`
//   - `entity.meta.brand == "acme" && entity.score > 0.5`
//   - `has(rctx.params.device_type) && rctx.params.device_type == "ios"`
//
// 访问 map 中不存在的 key 会报错，需要用 has(...) 判断存在性。
type Program struct {
	expr string
	prg  cel.Program
}

// Compile 编译表达式。空表达式恒为 true。
func Compile(expr string) (*Program, error) {
	if expr == "" {
		return &Program{}, nil
	}
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", expr, err)
	}
	return &Program{expr: expr, prg: prg}, nil
}

// MustCompile 与 Compile 相同，失败时 panic，用于包级变量与测试。
func MustCompile(expr string) *Program {
	p, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Program) String() string { return p.expr }

// EvalRequest 仅基于请求上下文求值（entity 为空 map）。
func (p *Program) EvalRequest(rctx *core.RequestContext) (bool, error) {
	return p.eval(rctx, nil)
}

// EvalCandidate 基于请求上下文和候选求值。
func (p *Program) EvalCandidate(rctx *core.RequestContext, c core.ScoredCandidate) (bool, error) {
	return p.eval(rctx, &c)
}

func (p *Program) eval(rctx *core.RequestContext, c *core.ScoredCandidate) (bool, error) {
	if p == nil || p.prg == nil {
		return true, nil
	}
	out, _, err := p.prg.Eval(map[string]any{
		"rctx":   rctxInput(rctx),
		"entity": entityInput(c),
	})
	if err != nil {
		return false, fmt.Errorf("eval %q: %w", p.expr, err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("eval %q: expression must return bool, got %T", p.expr, out.Value())
	}
	return result, nil
}

func rctxInput(rctx *core.RequestContext) map[string]any {
	if rctx == nil {
		return map[string]any{}
	}
	labels := make(map[string]any, len(rctx.Labels))
	for k, v := range rctx.Labels {
		labels[k] = v.Value
	}
	params := rctx.Params
	if params == nil {
		params = map[string]any{}
	}
	return map[string]any{
		"request_id": rctx.RequestID,
		"user_id":    rctx.UserID,
		"query":      rctx.Query,
		"params":     params,
		"labels":     labels,
	}
}

func entityInput(c *core.ScoredCandidate) map[string]any {
	if c == nil || c.Entity == nil {
		return map[string]any{}
	}
	id := c.Entity.Identifier()
	in := map[string]any{
		"id":       id.ID,
		"type":     id.Type,
		"score":    c.Score,
		"meta":     map[string]any{},
		"features": map[string]float64{},
	}
	if be, ok := c.Entity.(*core.BasicEntity); ok {
		if be.Meta != nil {
			in["meta"] = be.Meta
		}
		if be.Features != nil {
			in["features"] = be.Features
		}
	}
	return in
}
