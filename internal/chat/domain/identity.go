package domain

// Role classifies an identity's privilege level.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Identity is an authenticated account as the realtime core sees it.
//
// Identities are created and mutated by external registration and profile
// flows; the core only reads them.
type Identity struct {
	ID          string
	Email       string
	DisplayName string
	// ReplyName is the name shown when automated replies are sent on this
	// identity's behalf.
	ReplyName string
	Role      Role
	// Verified gates connection auth: unverified accounts cannot connect.
	Verified bool
	// GhostMode suppresses outward online/offline broadcasts for this
	// identity. Internal activity checks still see the identity as present.
	GhostMode bool
}

// IsAdmin reports whether the identity holds the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
