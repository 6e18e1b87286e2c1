package core

import (
	"sync"

	"github.com/rushteam/bizrank/pkg/utils"
)

// RequestContext 承载单次排序请求的上下文，贯穿整个 Pipeline 透传。
// 每个请求独立构造，不在请求之间共享。
type RequestContext struct {
	RequestID string
	// APISource 是请求入口（如 "/ranking"），写入业务逻辑事件
	APISource string
	UserID    string
	Query     string

	// Params 请求级参数：device_type、scene、实验分桶等
	Params map[string]any

	// Labels 是请求级标签，记录哪些业务逻辑阶段生效过，用于 explain / 观测
	Labels map[string]utils.Label

	mu     sync.RWMutex
	values map[string]any
}

func NewRequestContext(requestID string) *RequestContext {
	return &RequestContext{
		RequestID: requestID,
		Params:    make(map[string]any),
		Labels:    make(map[string]utils.Label),
	}
}

// PutLabel 写入请求级 Label；同名 key 按默认 Merge 规则累积。
func (rctx *RequestContext) PutLabel(key string, lbl utils.Label) {
	if rctx.Labels == nil {
		rctx.Labels = make(map[string]utils.Label)
	}
	if old, ok := rctx.Labels[key]; ok {
		rctx.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	rctx.Labels[key] = lbl
}

// GetLabel 获取请求级 Label。
func (rctx *RequestContext) GetLabel(key string) (utils.Label, bool) {
	if rctx.Labels == nil {
		return utils.Label{}, false
	}
	lbl, ok := rctx.Labels[key]
	return lbl, ok
}

// SetValue 保存请求内的缓存值（例如预取的规则）。
// 预取可能与打分并发执行，因此读写加锁。
func (rctx *RequestContext) SetValue(key string, v any) {
	rctx.mu.Lock()
	defer rctx.mu.Unlock()
	if rctx.values == nil {
		rctx.values = make(map[string]any)
	}
	rctx.values[key] = v
}

// Value 读取 SetValue 写入的值。
func (rctx *RequestContext) Value(key string) (any, bool) {
	rctx.mu.RLock()
	defer rctx.mu.RUnlock()
	v, ok := rctx.values[key]
	return v, ok
}
