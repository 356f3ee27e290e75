package domain

import "strings"

type Role string

const (
	RoleTecnico Role = "tecnico"
	RoleOficina Role = "oficina"
	RoleAdmin   Role = "admin"
	RoleCliente Role = "cliente"
)

// ActorContext identifies who is calling a state-machine entry point.
// It is always passed in explicitly; business logic never resolves roles
// on its own.
type ActorContext struct {
	ID   string
	Role Role
}

func NormalizeRole(r string) Role {
	return Role(strings.ToLower(strings.TrimSpace(r)))
}

// CanReview reports whether the actor may approve or reject pending updates.
func (a ActorContext) CanReview() bool {
	return a.Role == RoleOficina || a.Role == RoleAdmin
}

func (a ActorContext) IsAdmin() bool { return a.Role == RoleAdmin }
