package domain

// Role is an authorization role carried in access tokens.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Account is a login identity configured for the service.
type Account struct {
	Username     string
	PasswordHash string
	Roles        []Role
}

// HasAnyRole reports whether the account holds one of roles.
func (a *Account) HasAnyRole(roles ...Role) bool {
	for _, have := range a.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}
