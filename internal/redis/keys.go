package redis

import "fmt"

const ns = "busgo:v1"

func KeyFlow(flowID string) string {
	return fmt.Sprintf("%s:flow:%s", ns, flowID)
}

func KeyFlowSubmit(flowID string) string {
	return fmt.Sprintf("%s:flow:%s:submit", ns, flowID)
}

func KeyBookingList(ownerID string) string {
	return fmt.Sprintf("%s:bookings:%s", ns, ownerID)
}

func KeySession(sessionID string) string {
	return fmt.Sprintf("%s:session:%s", ns, sessionID)
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

func ChannelBusChanged() string {
	return ns + ":bus:changed"
}

// KeyIdemConfirm scopes a client Idempotency-Key to one user and flow.
func KeyIdemConfirm(userID int64, flowID, idemKey string) string {
	return fmt.Sprintf("%s:idem:confirm:%d:%s:%s", ns, userID, flowID, idemKey)
}
