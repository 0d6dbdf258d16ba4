package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(adminRequestTotal)
}

var adminRequestTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "admin_request_total",
		Help: "Tracks calls to the ops API.",
	},
	[]string{"endpoint", "status"}, // status: 'authorized', 'unauthorized'
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func IncAdminRequest(endpoint, status string) {
	adminRequestTotal.WithLabelValues(norm(endpoint), norm(status)).Inc()
}
