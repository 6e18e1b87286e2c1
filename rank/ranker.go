// Package rank 编排一次完整的排序请求：打分、业务逻辑 Pipeline、分页。
package rank

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
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/bizrank/core"
	"github.com/rushteam/bizrank/pagination"
	"github.com/rushteam/bizrank/pipeline"
)

const (
	tracerName = "github.com/rushteam/bizrank/rank"

	// DefaultAPISource 写入业务逻辑事件的 api_source
	DefaultAPISource = "/ranking"
)

// Request 是排序请求。分页字段内嵌，JSON 中与其他字段平铺。
type Request struct {
	RequestID string              `json:"request_id"`
	UserID    string              `json:"user_id,omitempty"`
	Query     string              `json:"query"`
	Params    map[string]any      `json:"params,omitempty"`
	Entities  []*core.BasicEntity `json:"entities"`

	pagination.Fields

	IncludeEvents bool `json:"include_events"`
	// BypassRanking 跳过打分和业务逻辑，候选按请求顺序、分数为下标返回
	BypassRanking bool `json:"bypass_ranking"`
}

// ResponseEntity 是返回给调用方的单个排序结果。
type ResponseEntity struct {
	EntityID    string  `json:"entity_id"`
	RankedScore float64 `json:"ranked_score"`
}

type Response struct {
	RequestID      string                    `json:"request_id"`
	RankedEntities []ResponseEntity          `json:"ranked_entities"`
	Events         []core.BusinessLogicEvent `json:"events,omitempty"`
}

// Observer 接收请求级观测数据，metrics.Recorder 实现了它。
type Observer interface {
	ObserveRank(d time.Duration, candidates int, err error)
}

// Ranker 是排序服务的入口，可被多个请求并发使用。
type Ranker struct {
	// Scorer 为空时所有候选初始分数为 0（保持请求顺序）
	Scorer   core.Scorer
	Pipeline *pipeline.Pipeline

	APISource string
	Observer  Observer
	Logger    *zerolog.Logger
}

func (r *Ranker) logger() *zerolog.Logger {
	if r.Logger == nil {
		l := zerolog.Nop()
		return &l
	}
	return r.Logger
}

// Rank 执行一次排序请求。
func (r *Ranker) Rank(ctx context.Context, req *Request) (resp *Response, err error) {
	if req == nil {
		return nil, core.NewDomainError(core.ModulePipeline, core.ErrorCodeInvalidInput, "nil ranking request")
	}
	start := time.Now()
	rctx := r.newRequestContext(req)

	ctx, span := otel.Tracer(tracerName).Start(ctx, "rank.Rank", trace.WithAttributes(
		attribute.String("request.id", rctx.RequestID),
		attribute.Int("rank.entities", len(req.Entities)),
		attribute.Bool("rank.bypass", req.BypassRanking),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		if r.Observer != nil {
			r.Observer.ObserveRank(time.Since(start), len(req.Entities), err)
		}
	}()

	log := r.logger().With().Str("request_id", rctx.RequestID).Logger()

	entities := make([]core.Entity, 0, len(req.Entities))
	for _, e := range req.Entities {
		if e != nil {
			entities = append(entities, e)
		}
	}

	var (
		ranked []core.ScoredCandidate
		events []core.BusinessLogicEvent
	)
	if req.BypassRanking {
		ranked = make([]core.ScoredCandidate, len(entities))
		for i, e := range entities {
			ranked[i] = core.ScoredCandidate{Entity: e, Score: float64(i)}
		}
	} else {
		ranked, events, err = r.rank(ctx, rctx, entities, &log)
		if err != nil {
			return nil, err
		}
	}

	page, err := pagination.Paginate(req.Fields.WithDefaults(), ranked)
	if err != nil {
		log.Warn().Err(err).Int("candidates", len(ranked)).Msg("paginate ranked candidates")
		return nil, err
	}

	resp = &Response{
		RequestID:      rctx.RequestID,
		RankedEntities: make([]ResponseEntity, len(page)),
	}
	for i, c := range page {
		resp.RankedEntities[i] = ResponseEntity{EntityID: core.DefaultKey(c.Entity), RankedScore: c.Score}
	}
	if req.IncludeEvents {
		resp.Events = events
	}
	log.Debug().
		Int("candidates", len(entities)).
		Int("returned", len(page)).
		Int("events", len(events)).
		Dur("elapsed", time.Since(start)).
		Msg("ranking request done")
	return resp, nil
}

func (r *Ranker) newRequestContext(req *Request) *core.RequestContext {
	id := req.RequestID
	if id == "" {
		id = uuid.NewString()
	}
	rctx := core.NewRequestContext(id)
	rctx.UserID = req.UserID
	rctx.Query = req.Query
	rctx.APISource = r.APISource
	if rctx.APISource == "" {
		rctx.APISource = DefaultAPISource
	}
	for k, v := range req.Params {
		rctx.Params[k] = v
	}
	return rctx
}

// rank 并发执行打分与规则预取，然后按请求顺序组装候选并跑业务逻辑 Pipeline。
func (r *Ranker) rank(
	ctx context.Context,
	rctx *core.RequestContext,
	entities []core.Entity,
	log *zerolog.Logger,
) ([]core.ScoredCandidate, []core.BusinessLogicEvent, error) {
	var scores map[string]float64

	eg, egCtx := errgroup.WithContext(ctx)
	if r.Scorer != nil {
		eg.Go(func() error {
			s, err := r.Scorer.Score(egCtx, rctx, entities)
			if err != nil {
				return fmt.Errorf("score with %s: %w", r.Scorer.Name(), err)
			}
			scores = s
			return nil
		})
	}
	if r.Pipeline != nil {
		for _, pf := range r.Pipeline.Prefetchers() {
			pf := pf
			eg.Go(func() error {
				// 预取失败不中止请求，阶段执行时会重新读取
				if err := pf.Prefetch(egCtx, rctx); err != nil {
					log.Warn().Err(err).Msg("prefetch business logic rules")
				}
				return nil
			})
		}
	}
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}

	cands := core.NewCandidates(entities, scores)
	if r.Pipeline == nil {
		return core.SortDesc(cands), nil, nil
	}
	res, err := r.Pipeline.Run(ctx, rctx, cands)
	if err != nil {
		return nil, nil, err
	}
	return res.Adjusted, res.Events, nil
}
