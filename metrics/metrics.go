package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "peerz_build_info",
			Help: "Build information of the peerz node",
		},
		[]string{"version", "network"},
	)

	PeerOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peerz_peer_operations_total",
			Help: "Total number of peer registry operations",
		},
		[]string{"operation", "status"},
	)

	ActivePeers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "peerz_active_peers",
			Help: "Number of active peers",
		},
	)

	TotalContribution = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "peerz_total_contribution",
			Help: "Sum of active peer contributions",
		},
	)

	AttestationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peerz_attestations_total",
			Help: "Total number of validator attestations by kind and outcome",
		},
		[]string{"kind", "status"},
	)

	AttestationSigners = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "peerz_attestation_signers",
			Help:    "Number of valid signers per accepted attestation",
			Buckets: prometheus.LinearBuckets(1, 2, 10),
		},
	)

	ClaimsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peerz_claims_total",
			Help: "Total number of reward claims",
		},
		[]string{"kind", "status"},
	)

	ClaimedTokens = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "peerz_claimed_tokens",
			Help: "Claimed reward in whole tokens (18 decimals truncated)",
		},
	)

	RelayMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peerz_relay_messages_total",
			Help: "Total number of relay messages by stage and outcome",
		},
		[]string{"stage", "status"},
	)

	BridgePacketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peerz_bridge_packets_total",
			Help: "Total number of bridge packets by direction",
		},
		[]string{"chain", "direction"},
	)

	BridgeQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "peerz_bridge_queue_depth",
			Help: "Packets waiting for delivery per destination chain",
		},
		[]string{"chain"},
	)
)
