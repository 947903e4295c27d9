package domain

// Role grants access to a slice of the portal. A user may hold several.
type Role string

const (
	RoleAdmin               Role = "Admin"
	RoleAgent               Role = "Agent"
	RoleCustomer            Role = "Customer"
	RoleRelationshipManager Role = "RelationshipManager"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleAgent, RoleCustomer, RoleRelationshipManager:
		return true
	}
	return false
}

// User is the application-side account record. Its ID is the document id in
// the users collection and is what every other collection references; it is
// unrelated to the identity provider's principal id.
type User struct {
	ID    string `json:"id" bson:"_id,omitempty"`
	Name  string `json:"name" bson:"name"`
	Email string `json:"email" bson:"email"`
	Roles []Role `json:"roles" bson:"roles"`
}

// HasRole reports whether the user holds role r.
func (u *User) HasRole(r Role) bool {
	if u == nil {
		return false
	}
	for _, have := range u.Roles {
		if have == r {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the user holds at least one of roles.
func (u *User) HasAnyRole(roles ...Role) bool {
	for _, r := range roles {
		if u.HasRole(r) {
			return true
		}
	}
	return false
}

// Principal is an identity authenticated by the identity provider.
type Principal struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
}

// Credential is the stored sign-in record behind a Principal.
type Credential struct {
	ID           string `bson:"_id,omitempty"`
	Email        string `bson:"email"`
	DisplayName  string `bson:"display_name"`
	PasswordHash string `bson:"password_hash"`
}

// Principal returns the public view of the credential.
func (c *Credential) Principal() *Principal {
	return &Principal{ID: c.ID, Email: c.Email, DisplayName: c.DisplayName}
}
