package services

// Actor identifies who is performing an operation, together with the
// request metadata the audit trail records. It is built once at the HTTP
// edge and passed explicitly into every service call; services never pull
// identity from ambient request state.
type Actor struct {
	UserID    uint
	Email     string
	Role      string // system-wide role: admin, user
	IP        string
	UserAgent string
}

// IsAdmin reports whether the actor holds the system-wide admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == "admin"
}
