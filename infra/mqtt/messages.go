package mqtt

import "time"

// registerMessage announces a provider connection.
type registerMessage struct {
	Type       string `json:"type"` // "register"
	ProviderID string `json:"provider_id"`
}

// heartbeatMessage refreshes a provider's liveness.
type heartbeatMessage struct {
	ProviderID string    `json:"provider_id"`
	SentAt     time.Time `json:"sent_at"`
}

// disconnectMessage is set as the provider's LWT on connect; the broker
// publishes it when the connection drops uncleanly.
type disconnectMessage struct {
	ProviderID string `json:"provider_id"`
}

// responseMessage carries a provider's answer to a job offer.
type responseMessage struct {
	DispatchID        string `json:"dispatch_id"`
	ProviderID        string `json:"provider_id"`
	Action            string `json:"action"` // accepted | rejected
	ResponseLatencyMs int64  `json:"response_latency_ms"`
	DeviceInfo        string `json:"device_info,omitempty"`
}
