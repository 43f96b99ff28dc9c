package services

// Participant roles as forwarded by the gateway in X-User-Roles.
const (
	RoleRequester = "requester"
	RoleAgent     = "agent"
	RoleAdmin     = "admin"
)

// Caller is the authenticated identity an operation runs as. It is built by
// the transport layer from gateway headers (or SSE query auth) and validated
// by each operation as a precondition; the engine itself never touches
// transport state.
type Caller struct {
	ID    string
	Roles []string
}

// HasRole reports whether the caller carries the given role.
func (c Caller) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAgent reports whether the caller may claim and fulfill requests.
// Admins can do everything an agent can.
func (c Caller) IsAgent() bool {
	return c.HasRole(RoleAgent) || c.HasRole(RoleAdmin)
}
