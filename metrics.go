package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics of the vault.
type Metrics struct {
	// WebSocket connection metrics
	ConnectedClients prometheus.Gauge
	ConnectionsTotal prometheus.Counter
	MessageReceived  prometheus.Counter
	MessageSent      prometheus.Counter

	// RPC method metrics
	RPCRequests *prometheus.CounterVec

	// Vault metrics
	AuthAttemptsSuccess prometheus.Counter
	AuthAttemptsFail    *prometheus.CounterVec
	DocumentsStored     prometheus.Counter
	DelegationCalls     *prometheus.CounterVec
}

// NewMetrics registers the metrics on the default Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(nil)
}

// NewMetricsWithRegistry registers the metrics with registry, or with the
// default registerer when registry is nil.
func NewMetricsWithRegistry(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		ConnectedClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "docvault_connected_clients",
			Help: "The current number of connected clients",
		}),
		ConnectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "docvault_connections_total",
			Help: "The total number of WebSocket connections made since server start",
		}),
		MessageReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "docvault_ws_messages_received_total",
			Help: "The total number of RPC requests dispatched to handlers",
		}),
		MessageSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "docvault_ws_messages_sent_total",
			Help: "The total number of WebSocket messages sent",
		}),
		RPCRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docvault_rpc_requests_total",
			Help: "The total number of RPC requests by method and status",
		}, []string{"method", "status"}),
		AuthAttemptsSuccess: factory.NewCounter(prometheus.CounterOpts{
			Name: "docvault_auth_attempts_success_total",
			Help: "The total number of successful authentications",
		}),
		AuthAttemptsFail: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docvault_auth_attempts_fail_total",
			Help: "The total number of failed authentications by reason",
		}, []string{"reason"}),
		DocumentsStored: factory.NewCounter(prometheus.CounterOpts{
			Name: "docvault_documents_stored_total",
			Help: "The total number of encrypted documents stored",
		}),
		DelegationCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docvault_delegation_calls_total",
			Help: "The total number of key derivation service calls by kind and status",
		}, []string{"kind", "status"}),
	}
}
