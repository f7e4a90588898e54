package domain

// AccessPolicy is the authorization requirement of a room.
type AccessPolicy struct {
	// Login requires an authenticated identity.
	Login bool `json:"login"`
	// Operator requires operator or admin privileges.
	Operator bool `json:"operator"`
	// Admin requires admin privileges.
	Admin bool `json:"admin"`
	// AllowPost lets any member publish with PUT. Admins may always post.
	AllowPost bool `json:"allow_post"`
}

// Public is a room anyone may join.
var Public = AccessPolicy{}

// AllowsSubscribe reports whether id may join a room with this policy.
// A nil id is an anonymous connection.
func (p AccessPolicy) AllowsSubscribe(id *Identity) bool {
	if (p.Login || p.Operator || p.Admin) && id == nil {
		return false
	}
	if p.Operator && !id.Operator && !id.Admin {
		return false
	}
	if p.Admin && !id.Admin {
		return false
	}
	return true
}

// AllowsPost reports whether id may publish into a room with this policy.
func (p AccessPolicy) AllowsPost(id *Identity) bool {
	return p.AllowPost || (id != nil && id.Admin)
}
