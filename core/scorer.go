package core

import "context"

// Scorer 是打分模型的领域接口。
//
// 设计原则：
//   - 定义在领域层（core），由 model 包实现（LR、远程 RPC 模型等）
//   - 返回 map[实体 ID]分数；缺失的实体由调用方按 0 分处理
//
// 实现：
//   - model.LRModel
//   - model.RPCModel
type Scorer interface {
	// Name 返回模型名称（用于日志/监控）
	Name() string

	// Score 对一批实体打分
	Score(ctx context.Context, rctx *RequestContext, entities []Entity) (map[string]float64, error)
}
