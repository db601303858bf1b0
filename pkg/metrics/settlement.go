package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "settlement"

// SettlementMetrics counts money-moving outcomes. All methods are nil-safe.
type SettlementMetrics struct {
	webhooks    *prometheus.CounterVec
	settlements *prometheus.CounterVec
	payouts     *prometheus.CounterVec
	retries     *prometheus.CounterVec
}

// NewSettlementMetrics registers the settlement counters on reg.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	m := &SettlementMetrics{
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Inbound gateway events by channel and ingestion result.",
		}, []string{"channel", "result"}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_settled_total",
			Help:      "Orders moved out of created, by outcome.",
		}, []string{"outcome"}),
		payouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "withdrawal_transitions_total",
			Help:      "Withdrawal state machine transitions by target status.",
		}, []string{"status"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "version_conflicts_total",
			Help:      "Optimistic concurrency conflicts by operation.",
		}, []string{"operation"}),
	}
	reg.MustRegister(m.webhooks, m.settlements, m.payouts, m.retries)
	return m
}

func (m *SettlementMetrics) WebhookEvent(channel, result string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(channel), normalizeLabel(result)).Inc()
}

func (m *SettlementMetrics) OrderSettled(outcome string) {
	if m == nil || m.settlements == nil {
		return
	}
	m.settlements.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *SettlementMetrics) WithdrawalTransition(status string) {
	if m == nil || m.payouts == nil {
		return
	}
	m.payouts.WithLabelValues(normalizeLabel(status)).Inc()
}

func (m *SettlementMetrics) VersionConflict(operation string) {
	if m == nil || m.retries == nil {
		return
	}
	m.retries.WithLabelValues(normalizeLabel(operation)).Inc()
}
