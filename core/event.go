package core

import (
	"context"
	"time"
)

// EventTypeBusinessLogic 是业务逻辑事件的类型标识。
const EventTypeBusinessLogic = "BUSINESS_LOGIC"

// BusinessLogicEvent 记录某个业务逻辑阶段对单个实体分数的修改。
// 仅在新旧分数不同时产生。
type BusinessLogicEvent struct {
	ID            string    `json:"event_id"`
	Type          string    `json:"event_type"`
	RequestID     string    `json:"request_id"`
	APISource     string    `json:"api_source,omitempty"`
	PipelineOrder int       `json:"business_logic_pipeline_order"`
	StageName     string    `json:"business_logic_name"`
	EntityID      string    `json:"entity_identifier"`
	EntityType    string    `json:"entity_identifier_type,omitempty"`
	OldScore      float64   `json:"old_score"`
	NewScore      float64   `json:"new_score"`
	Timestamp     time.Time `json:"event_timestamp"`
}

// EventSink 接收 Pipeline 产生的业务逻辑事件。
//
// 实现：
//   - eventlog.MemorySink：请求内收集，用于返回给调用方
//   - eventlog.StoreSink：写入 core.Store（Redis 等）
//   - eventlog.LogSink：写日志
//   - eventlog.MultiSink：并发分发到多个 sink
type EventSink interface {
	Emit(ctx context.Context, events []BusinessLogicEvent) error
}
