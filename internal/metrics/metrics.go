// Package metrics holds the server's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RoomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lockstep_rooms_active",
		Help: "Number of rooms currently registered.",
	})

	WSClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lockstep_ws_clients",
		Help: "Number of open websocket connections.",
	})

	AnswersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lockstep_answers_total",
			Help: "Answer submissions by result (correct, wrong, stage, exhausted).",
		},
		[]string{"result"},
	)

	GamesEndedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lockstep_games_ended_total",
			Help: "Finished games by outcome (won, lost).",
		},
		[]string{"outcome"},
	)

	EventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lockstep_events_total",
		Help: "Domain events recorded in the event log.",
	})

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lockstep_build_info",
			Help: "Always 1; labelled with the running version.",
		},
		[]string{"version"},
	)
)

// SetBuildInfo publishes the running version.
func SetBuildInfo(version string) {
	buildInfo.WithLabelValues(version).Set(1)
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
