package entities

type AuthState string

const (
	AuthNone          AuthState = "none"
	AuthCodeSent      AuthState = "code_sent"
	AuthRequires2FA   AuthState = "requires_2fa"
	AuthAuthenticated AuthState = "authenticated"
	AuthFailed        AuthState = "failed"
)

// CodeDelivery describes how a verification code reached the user.
type CodeDelivery struct {
	Method     string `json:"method"` // e.g. "app", "sms", "call", "linked_device"
	CodeLength int    `json:"code_length"`
	Code       string `json:"code,omitempty"` // Set when the platform hands the code to us (pairing codes)

	AlreadyAuthorized bool `json:"already_authorized,omitempty"`
}

type SignInResult struct {
	NeedsPassword bool
}

// SessionStatus is the health view of a tenant session.
type SessionStatus struct {
	TenantID  int       `json:"tenant_id"`
	State     AuthState `json:"auth_state"`
	Connected bool      `json:"is_connected"`
	Running   bool      `json:"running"` // Listener and monitor started
}
