package metrics

import (
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/liliang-cn/chatsupervisor/internal/domain"
)

var (
	EvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supervisor_evaluations_total",
			Help: "Total number of evaluated bot responses",
		},
		[]string{"risk_level", "sentiment"},
	)

	EvaluationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "supervisor_evaluation_duration_seconds",
			Help:    "Time spent evaluating one bot response",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005},
		},
	)

	InterventionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supervisor_interventions_total",
			Help: "Total intervention signals raised",
		},
		[]string{"risk_level"},
	)

	TakeoversTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "supervisor_takeovers_total",
			Help: "Total conversations taken over by an operator",
		},
	)

	ConversationsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supervisor_conversations_created_total",
			Help: "Total conversations created",
		},
		[]string{"source"},
	)

	StreamSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "supervisor_intervention_stream_subscribers",
			Help: "Open intervention stream connections",
		},
	)
)

var registerOnce sync.Once

// Init registers the collectors with the default registry
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(EvaluationsTotal)
		prometheus.MustRegister(EvaluationDuration)
		prometheus.MustRegister(InterventionsTotal)
		prometheus.MustRegister(TakeoversTotal)
		prometheus.MustRegister(ConversationsCreated)
		prometheus.MustRegister(StreamSubscribers)
	})
}

// ObserveEvaluation records one evaluation result
func ObserveEvaluation(result domain.EvaluationResult, seconds float64) {
	EvaluationsTotal.WithLabelValues(string(result.RiskLevel), string(result.Sentiment)).Inc()
	EvaluationDuration.Observe(seconds)
}

// Handler exposes the default registry
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
