package monitoring

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler serves the given gatherers in the Prometheus exposition format
func Handler(gatherers ...prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(prometheus.Gatherers(gatherers), promhttp.HandlerOpts{})
}

// GinHandler is Handler wrapped for a gin route
func GinHandler(gatherers ...prometheus.Gatherer) gin.HandlerFunc {
	return gin.WrapH(Handler(gatherers...))
}
