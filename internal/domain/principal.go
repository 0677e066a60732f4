package domain

import "context"

// Principal es el usuario autenticado asociado a un request.
type Principal struct {
	ID       int64
	Username string
	Email    string
	Role     Role
	Enabled  bool
}

// PrincipalFromUser construye el principal a partir de un usuario cargado.
func PrincipalFromUser(u User) Principal {
	return Principal{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
		Enabled:  u.Enabled,
	}
}

// Authorities devuelve las authorities concedidas al principal.
func (p Principal) Authorities() []string {
	return []string{p.Role.Authority()}
}

// HasAnyAuthority reporta si el principal tiene alguna de las authorities.
func (p Principal) HasAnyAuthority(authorities ...string) bool {
	for _, granted := range p.Authorities() {
		for _, want := range authorities {
			if granted == want {
				return true
			}
		}
	}
	return false
}

type principalKey struct{}

// WithPrincipal adjunta el principal al contexto del request.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom obtiene el principal del contexto, si existe.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
