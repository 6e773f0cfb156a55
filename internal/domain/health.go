package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
}

// WebhookMetrics is returned by GET /v1/admin/metrics/webhooks.
type WebhookMetrics struct {
	StripeProcessed      int64  `json:"stripeProcessed"`
	StripeFailed         int64  `json:"stripeFailed"`
	MercadoPagoProcessed int64  `json:"mercadoPagoProcessed"`
	MercadoPagoFailed    int64  `json:"mercadoPagoFailed"`
	LedgerDuplicates     int64  `json:"ledgerDuplicates"`
	NotificationsSent    int64  `json:"notificationsSent"`
	NotificationsFailed  int64  `json:"notificationsFailed"`
	Period               string `json:"period"`
}

// SuccessResponse wraps a successful single-entity response.
type SuccessResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}
