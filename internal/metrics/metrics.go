// Package metrics 众筹服务的 Prometheus 指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "crowdfund"

// Metrics 所有指标集中注册在同一个 Registerer 上
type Metrics struct {
	Transitions       *prometheus.CounterVec
	TransitionLatency *prometheus.HistogramVec
	Contributed       prometheus.Counter
	Settlements       *prometheus.CounterVec
	PotShortfall      *prometheus.GaugeVec
	OutboxBacklog     *prometheus.GaugeVec
	OutboxPublished   *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "State transitions by operation and result (ok or error name).",
		}, []string{"op", "result"}),
		TransitionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transition_duration_seconds",
			Help:      "Latency of state transitions including lock wait.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		Contributed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contributed_amount_total",
			Help:      "Sum of accepted contributions.",
		}),
		Settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlements_total",
			Help:      "Projects closed, by reason (target or stop).",
		}, []string{"reason"}),
		PotShortfall: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pot_shortfall",
			Help:      "Active project totals not covered by the pot balance.",
		}, []string{"pot"}),
		OutboxBacklog: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outbox_messages",
			Help:      "Outbox rows by status.",
		}, []string{"status"}),
		OutboxPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_published_total",
			Help:      "Outbox publish attempts by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.Transitions,
		m.TransitionLatency,
		m.Contributed,
		m.Settlements,
		m.PotShortfall,
		m.OutboxBacklog,
		m.OutboxPublished,
	)
	return m
}

// NewNop 不注册到任何 Registry，测试和不需要暴露指标时使用
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
