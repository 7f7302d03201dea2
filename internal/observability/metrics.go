package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce             sync.Once
	httpDurationHistogram    *prometheus.HistogramVec
	callbackOutcomeCounter   *prometheus.CounterVec
	creditsSettledCounter    prometheus.Counter
	amountSynthesizedCounter prometheus.Counter
	walletDriftCounter       prometheus.Counter
	workerRunCounter         *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		callbackOutcomeCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "callback_outcomes_total",
			Help: "Callback pipeline outcomes",
		}, []string{"outcome"})

		creditsSettledCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "credits_settled_total",
			Help: "Credits applied to wallets by settlement",
		})

		amountSynthesizedCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "callback_amount_synthesized_total",
			Help: "Callbacks whose audit amount was synthesized from the unit price",
		})

		walletDriftCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wallet_ledger_drift_total",
			Help: "Wallets found diverging from their ledger sum",
		})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		prometheus.MustRegister(
			httpDurationHistogram,
			callbackOutcomeCounter,
			creditsSettledCounter,
			amountSynthesizedCounter,
			walletDriftCounter,
			workerRunCounter,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

func IncrementCallbackOutcome(outcome string) {
	if callbackOutcomeCounter == nil {
		return
	}
	callbackOutcomeCounter.WithLabelValues(outcome).Inc()
}

func AddCreditsSettled(credits int64) {
	if creditsSettledCounter == nil {
		return
	}
	creditsSettledCounter.Add(float64(credits))
}

func IncrementAmountSynthesized() {
	if amountSynthesizedCounter == nil {
		return
	}
	amountSynthesizedCounter.Inc()
}

func IncrementWalletDrift() {
	if walletDriftCounter == nil {
		return
	}
	walletDriftCounter.Inc()
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}
