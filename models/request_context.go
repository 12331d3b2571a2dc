package models

// RequestContext carries the caller identity into every pipeline call.
// There is no process-wide default tenant.
type RequestContext struct {
	TenantID  int64  `json:"tenant_id"`
	AccountID int64  `json:"account_id"`
	RequestID string `json:"request_id"`
	ActorID   string `json:"actor_id,omitempty"`
}
