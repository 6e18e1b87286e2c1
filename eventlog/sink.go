// Package eventlog 提供 core.EventSink 的实现：请求内收集、落存储、写日志以及并发分发。
package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/bizrank/core"
)

// MemorySink 在内存中收集事件，通常每个请求一个实例。
type MemorySink struct {
	mu     sync.Mutex
	events []core.BusinessLogicEvent
}

func (s *MemorySink) Emit(_ context.Context, events []core.BusinessLogicEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

// Events 返回已收集事件的副本。
func (s *MemorySink) Events() []core.BusinessLogicEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.BusinessLogicEvent, len(s.events))
	copy(out, s.events)
	return out
}

// StoreSink 把事件按请求写入 core.Store：key 为 KeyPrefix + request_id，value 为 JSON 数组。
// 同一请求多次 Emit 时追加到已有数组。
type StoreSink struct {
	Store     core.Store
	KeyPrefix string // 默认 "events:"
	TTL       int    // 秒，0 表示不过期

	mu sync.Mutex
}

func (s *StoreSink) key(requestID string) string {
	prefix := s.KeyPrefix
	if prefix == "" {
		prefix = "events:"
	}
	return prefix + requestID
}

func (s *StoreSink) Emit(ctx context.Context, events []core.BusinessLogicEvent) error {
	if len(events) == 0 {
		return nil
	}
	byRequest := make(map[string][]core.BusinessLogicEvent)
	for _, e := range events {
		byRequest[e.RequestID] = append(byRequest[e.RequestID], e)
	}

	// 读-改-写，同一 sink 内串行化
	s.mu.Lock()
	defer s.mu.Unlock()
	for requestID, batch := range byRequest {
		key := s.key(requestID)
		var existing []core.BusinessLogicEvent
		raw, err := s.Store.Get(ctx, key)
		switch {
		case err == nil:
			if err := json.Unmarshal(raw, &existing); err != nil {
				return fmt.Errorf("decode events %s: %w", key, err)
			}
		case !core.IsStoreNotFound(err):
			return fmt.Errorf("read events %s: %w", key, err)
		}
		data, err := json.Marshal(append(existing, batch...))
		if err != nil {
			return fmt.Errorf("encode events %s: %w", key, err)
		}
		if err := s.Store.Set(ctx, key, data, s.TTL); err != nil {
			return fmt.Errorf("write events %s: %w", key, err)
		}
	}
	return nil
}

// Load 读取某个请求已落盘的事件。
func (s *StoreSink) Load(ctx context.Context, requestID string) ([]core.BusinessLogicEvent, error) {
	raw, err := s.Store.Get(ctx, s.key(requestID))
	if err != nil {
		if core.IsStoreNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var events []core.BusinessLogicEvent
	if err := json.Unmarshal(raw, &events); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	return events, nil
}

// LogSink 以结构化日志输出每条事件。
type LogSink struct {
	Logger zerolog.Logger
	Level  zerolog.Level
}

func (s *LogSink) Emit(_ context.Context, events []core.BusinessLogicEvent) error {
	for _, e := range events {
		s.Logger.WithLevel(s.Level).
			Str("event_id", e.ID).
			Str("request_id", e.RequestID).
			Int("order", e.PipelineOrder).
			Str("stage", e.StageName).
			Str("entity_id", e.EntityID).
			Str("entity_type", e.EntityType).
			Float64("old_score", e.OldScore).
			Float64("new_score", e.NewScore).
			Msg("business logic event")
	}
	return nil
}

// MultiSink 并发地把事件分发给所有 sink，返回第一个错误；
// 某个 sink 出错不会取消其他 sink 的写入。
type MultiSink []core.EventSink

func (m MultiSink) Emit(ctx context.Context, events []core.BusinessLogicEvent) error {
	var eg errgroup.Group
	for _, sink := range m {
		if sink == nil {
			continue
		}
		sink := sink
		eg.Go(func() error {
			return sink.Emit(ctx, events)
		})
	}
	return eg.Wait()
}

var (
	_ core.EventSink = (*MemorySink)(nil)
	_ core.EventSink = (*StoreSink)(nil)
	_ core.EventSink = (*LogSink)(nil)
	_ core.EventSink = MultiSink(nil)
)
