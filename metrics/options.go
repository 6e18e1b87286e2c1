// Package metrics 提供 Prometheus 指标：Pipeline 阶段耗时、分数变更数与排序请求统计。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Option 配置 Recorder。
type Option func(*Recorder)

// WithNamespace 设置指标 namespace。
func WithNamespace(namespace string) Option {
	return func(r *Recorder) {
		if namespace != "" {
			r.namespace = namespace
		}
	}
}

// WithSubsystem 设置指标 subsystem。
func WithSubsystem(subsystem string) Option {
	return func(r *Recorder) {
		if subsystem != "" {
			r.subsystem = subsystem
		}
	}
}

// WithHistogramBuckets 设置耗时直方图的桶（秒）。
func WithHistogramBuckets(buckets []float64) Option {
	return func(r *Recorder) {
		if len(buckets) > 0 {
			r.buckets = buckets
		}
	}
}

// WithRegistry 指定注册器，默认 prometheus.DefaultRegisterer。
func WithRegistry(reg prometheus.Registerer) Option {
	return func(r *Recorder) {
		if reg != nil {
			r.registry = reg
		}
	}
}
