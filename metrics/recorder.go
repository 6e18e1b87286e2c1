package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rushteam/bizrank/pipeline"
)

// Recorder 实现 pipeline.Observer，并记录排序请求级指标。
type Recorder struct {
	namespace string
	subsystem string
	buckets   []float64
	registry  prometheus.Registerer

	stageDuration *prometheus.HistogramVec
	stageChanged  *prometheus.CounterVec
	stageErrors   *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	runErrors     *prometheus.CounterVec

	rankRequests   *prometheus.CounterVec
	rankDuration   prometheus.Histogram
	rankCandidates prometheus.Histogram
}

// NewRecorder 创建并注册全部指标。同一个 registry 只能创建一次。
func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{
		namespace: "bizrank",
		subsystem: "ranking",
		buckets:   prometheus.DefBuckets,
		registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.init()
	return r
}

func (r *Recorder) init() {
	auto := promauto.With(r.registry)

	r.stageDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      "stage_duration_seconds",
		Help:      "Business logic stage processing time",
		Buckets:   r.buckets,
	}, []string{"pipeline", "stage", "kind"})

	r.stageChanged = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      "stage_score_changes_total",
		Help:      "Number of candidate scores changed by a business logic stage",
	}, []string{"pipeline", "stage", "kind"})

	r.stageErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      "stage_errors_total",
		Help:      "Number of failed business logic stage executions",
	}, []string{"pipeline", "stage", "kind"})

	r.runDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      "pipeline_duration_seconds",
		Help:      "Whole business logic pipeline processing time",
		Buckets:   r.buckets,
	}, []string{"pipeline"})

	r.runErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      "pipeline_errors_total",
		Help:      "Number of aborted business logic pipeline runs",
	}, []string{"pipeline"})

	r.rankRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      "requests_total",
		Help:      "Ranking requests by outcome",
	}, []string{"status"})

	r.rankDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      "request_duration_seconds",
		Help:      "End to end ranking request latency",
		Buckets:   r.buckets,
	})

	r.rankCandidates = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      "request_candidates",
		Help:      "Number of candidates per ranking request",
		Buckets:   []float64{1, 10, 50, 100, 250, 500, 1000},
	})
}

func (r *Recorder) ObserveStage(pl, stage string, kind pipeline.Kind, d time.Duration, changed int, err error) {
	labels := prometheus.Labels{"pipeline": pl, "stage": stage, "kind": string(kind)}
	r.stageDuration.With(labels).Observe(d.Seconds())
	if err != nil {
		r.stageErrors.With(labels).Inc()
		return
	}
	r.stageChanged.With(labels).Add(float64(changed))
}

func (r *Recorder) ObserveRun(pl string, d time.Duration, err error) {
	r.runDuration.WithLabelValues(pl).Observe(d.Seconds())
	if err != nil {
		r.runErrors.WithLabelValues(pl).Inc()
	}
}

// ObserveRank 记录一次排序请求。
func (r *Recorder) ObserveRank(d time.Duration, candidates int, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.rankRequests.WithLabelValues(status).Inc()
	r.rankDuration.Observe(d.Seconds())
	r.rankCandidates.Observe(float64(candidates))
}

var _ pipeline.Observer = (*Recorder)(nil)
