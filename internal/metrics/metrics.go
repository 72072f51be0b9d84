// Package metrics registers the Prometheus collectors shared by the API and the gateway.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	NotificationsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messenger_notifications_published_total",
			Help: "Notification events pushed to the transport channel, by result.",
		},
		[]string{"result"},
	)

	BroadcastMaterialized = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "messenger_broadcast_participants_materialized_total",
			Help: "Participant rows created lazily for broadcast threads.",
		},
	)

	GatewayDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messenger_gateway_deliveries_total",
			Help: "Notifications handed to socket clients, by transport and outcome.",
		},
		[]string{"transport", "outcome"},
	)

	GatewayConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "messenger_gateway_connections",
			Help: "Currently connected socket clients.",
		},
		[]string{"transport"},
	)
)

func init() {
	prometheus.MustRegister(NotificationsPublished)
	prometheus.MustRegister(BroadcastMaterialized)
	prometheus.MustRegister(GatewayDeliveries)
	prometheus.MustRegister(GatewayConnections)
}

func RegisterRoutes(rg gin.IRoutes) {
	rg.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
