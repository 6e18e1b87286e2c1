package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rushteam/bizrank/core"
	"github.com/rushteam/bizrank/pkg/utils"
)

const tracerName = "github.com/rushteam/bizrank/pipeline"

// LabelBusinessLogic 记录哪些阶段实际改动过分数（写入 RequestContext.Labels）。
const LabelBusinessLogic = "business_logic"

// Observer 接收阶段级观测数据，metrics.Recorder 是 Prometheus 实现。
type Observer interface {
	ObserveStage(pipeline, stage string, kind Kind, d time.Duration, changed int, err error)
	ObserveRun(pipeline string, d time.Duration, err error)
}

// Result 是一次 Pipeline 执行的结果。
type Result struct {
	// Adjusted 是最后一个阶段之后重新排序的候选
	Adjusted []core.ScoredCandidate
	// Events 按阶段顺序记录所有分数变化
	Events []core.BusinessLogicEvent
}

// Pipeline 依次执行业务逻辑阶段：
//
//	排序 -> [阶段 -> 提取分数变化事件 -> 排序] x N
//
// 阶段严格串行：每个阶段的输入是上一个阶段排好序的输出。
// 任一阶段出错立即中止，不返回部分结果。
type Pipeline struct {
	Name   string
	Stages []Stage

	// Sink 接收每个阶段产生的事件（可选）；写入失败只记日志，不影响排序结果
	Sink core.EventSink
	// Observer 接收阶段耗时、变更数（可选）
	Observer Observer
	Logger   *zerolog.Logger

	now func() time.Time
}

func (p *Pipeline) logger() *zerolog.Logger {
	if p.Logger == nil {
		l := zerolog.Nop()
		return &l
	}
	return p.Logger
}

func (p *Pipeline) clock() time.Time {
	if p.now != nil {
		return p.now()
	}
	return time.Now().UTC()
}

// Prefetchers 返回所有实现了 Prefetcher 的阶段。
func (p *Pipeline) Prefetchers() []Prefetcher {
	var out []Prefetcher
	for _, s := range p.Stages {
		if pf, ok := s.(Prefetcher); ok {
			out = append(out, pf)
		}
	}
	return out
}

// Run 执行全部阶段并返回最终排序。
func (p *Pipeline) Run(
	ctx context.Context,
	rctx *core.RequestContext,
	cands []core.ScoredCandidate,
) (*Result, error) {
	if rctx == nil {
		rctx = core.NewRequestContext("")
	}
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline.Run", trace.WithAttributes(
		attribute.String("pipeline.name", p.Name),
		attribute.String("request.id", rctx.RequestID),
		attribute.Int("pipeline.candidates", len(cands)),
	))
	defer span.End()

	cur := core.SortDesc(cands)
	var events []core.BusinessLogicEvent

	for order, stage := range p.Stages {
		out, stageEvents, err := p.runStage(ctx, rctx, order, stage, cur)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if p.Observer != nil {
				p.Observer.ObserveRun(p.Name, time.Since(start), err)
			}
			return nil, err
		}
		if len(stageEvents) > 0 {
			events = append(events, stageEvents...)
			rctx.PutLabel(LabelBusinessLogic, utils.Label{Value: stage.Name(), Source: "pipeline"})
			p.emit(ctx, stage, stageEvents)
		}
		cur = core.SortDesc(out)
	}

	span.SetAttributes(attribute.Int("pipeline.events", len(events)))
	if p.Observer != nil {
		p.Observer.ObserveRun(p.Name, time.Since(start), nil)
	}
	return &Result{Adjusted: cur, Events: events}, nil
}

func (p *Pipeline) runStage(
	ctx context.Context,
	rctx *core.RequestContext,
	order int,
	stage Stage,
	cur []core.ScoredCandidate,
) ([]core.ScoredCandidate, []core.BusinessLogicEvent, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline.stage", trace.WithAttributes(
		attribute.String("stage.name", stage.Name()),
		attribute.String("stage.kind", string(stage.Kind())),
		attribute.Int("stage.order", order),
	))
	defer span.End()

	log := p.logger().With().
		Str("pipeline", p.Name).
		Str("stage", stage.Name()).
		Int("order", order).
		Str("request_id", rctx.RequestID).
		Logger()

	oldScores := make([]float64, len(cur))
	for j, c := range cur {
		oldScores[j] = c.Score
	}

	start := time.Now()
	out, err := stage.Process(ctx, rctx, cur)
	if err == nil && len(out) != len(cur) {
		err = core.NewDomainError(core.ModulePipeline, core.ErrorCodeInvalidOutput,
			fmt.Sprintf("returned %d candidates, want %d", len(out), len(cur)))
	}
	elapsed := time.Since(start)
	if err != nil {
		err = fmt.Errorf("stage %s: %w", stage.Name(), err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error().Err(err).Dur("elapsed", elapsed).Msg("business logic stage failed")
		if p.Observer != nil {
			p.Observer.ObserveStage(p.Name, stage.Name(), stage.Kind(), elapsed, 0, err)
		}
		return nil, nil, err
	}

	events := p.extractEvents(rctx, order, stage.Name(), out, oldScores)
	span.SetAttributes(attribute.Int("stage.changed", len(events)))
	log.Debug().Int("changed", len(events)).Dur("elapsed", elapsed).Msg("business logic stage done")
	if p.Observer != nil {
		p.Observer.ObserveStage(p.Name, stage.Name(), stage.Kind(), elapsed, len(events), nil)
	}
	return out, events, nil
}

// extractEvents 对比阶段前后同一位置的分数，每个变化产生一条事件。
func (p *Pipeline) extractEvents(
	rctx *core.RequestContext,
	order int,
	stageName string,
	out []core.ScoredCandidate,
	oldScores []float64,
) []core.BusinessLogicEvent {
	var events []core.BusinessLogicEvent
	ts := p.clock()
	for j, c := range out {
		if c.Score == oldScores[j] {
			continue
		}
		var id core.Identifier
		if c.Entity != nil {
			id = c.Entity.Identifier()
		}
		events = append(events, core.BusinessLogicEvent{
			ID:            uuid.NewString(),
			Type:          core.EventTypeBusinessLogic,
			RequestID:     rctx.RequestID,
			APISource:     rctx.APISource,
			PipelineOrder: order,
			StageName:     stageName,
			EntityID:      id.ID,
			EntityType:    id.Type,
			OldScore:      oldScores[j],
			NewScore:      c.Score,
			Timestamp:     ts,
		})
	}
	return events
}

func (p *Pipeline) emit(ctx context.Context, stage Stage, events []core.BusinessLogicEvent) {
	if p.Sink == nil {
		return
	}
	if err := p.Sink.Emit(ctx, events); err != nil {
		p.logger().Warn().Err(err).
			Str("pipeline", p.Name).
			Str("stage", stage.Name()).
			Int("events", len(events)).
			Msg("emit business logic events")
	}
}
