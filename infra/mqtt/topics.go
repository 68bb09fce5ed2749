package mqtt

import "fmt"

// Inbound topics published by providers.
func registerTopic(prefix string) string  { return prefix + "/provider/register" }
func heartbeatTopic(prefix string) string { return prefix + "/provider/heartbeat" }
func responseTopic(prefix string) string  { return prefix + "/provider/response" }

// disconnectTopic carries provider last-will messages so unclean drops
// release the registry entry without waiting for the staleness sweep.
func disconnectTopic(prefix string) string { return prefix + "/provider/disconnect" }

// pushTopic is the per-provider outbound topic the server publishes
// offers and notices on.
func pushTopic(prefix, providerID string) string {
	return fmt.Sprintf("%s/provider/%s/push", prefix, providerID)
}
