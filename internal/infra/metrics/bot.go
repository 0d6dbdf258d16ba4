package metrics

import "github.com/prometheus/client_golang/prometheus"

var botCommandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "bot_commands_total",
	Help: "Bot commands handled, by command and outcome.",
}, []string{"command", "status"})

func init() { register(botCommandsTotal) }

func IncBotCommand(command, status string) {
	botCommandsTotal.WithLabelValues(norm(command), norm(status)).Inc()
}
