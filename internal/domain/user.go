package domain

import (
	"strings"
	"time"
)

// Role es el rol de un usuario. Solo existen USER y ADMIN.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Authorities consumidas por el gate de autorización.
const (
	AuthorityUser  = "ROLE_USER"
	AuthorityAdmin = "ROLE_ADMIN"
)

// ParseRole valida el nombre de un rol.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleUser:
		return RoleUser, true
	case RoleAdmin:
		return RoleAdmin, true
	default:
		return "", false
	}
}

func (r Role) Valid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

// Authority devuelve "ROLE_<rol>".
func (r Role) Authority() string {
	return "ROLE_" + string(r)
}

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Enabled      bool      `json:"enabled"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ValidHandle aplica las reglas del nombre de usuario: no vacío y sin '@'.
func ValidHandle(handle string) bool {
	return strings.TrimSpace(handle) != "" && !strings.Contains(handle, "@")
}

// UserStatus es el valor que se refleja en la cache de estado.
type UserStatus string

const (
	StatusActive   UserStatus = "ACTIVE"
	StatusDisabled UserStatus = "DISABLED"
)

// StatusOf traduce el flag enabled a su estado cacheado.
func StatusOf(enabled bool) UserStatus {
	if enabled {
		return StatusActive
	}
	return StatusDisabled
}

// Page es una porción paginada de resultados; los números de página empiezan en 0.
type Page[T any] struct {
	Content       []T   `json:"content"`
	PageNo        int   `json:"pageNo"`
	PageSize      int   `json:"pageSize"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	Last          bool  `json:"last"`
}

// NewPage calcula los metadatos de paginación a partir del total.
func NewPage[T any](content []T, pageNo, pageSize int, total int64) Page[T] {
	if content == nil {
		content = []T{}
	}
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return Page[T]{
		Content:       content,
		PageNo:        pageNo,
		PageSize:      pageSize,
		TotalElements: total,
		TotalPages:    totalPages,
		Last:          pageNo >= totalPages-1,
	}
}

// MapPage transforma el contenido conservando los metadatos.
func MapPage[T, R any](p Page[T], fn func(T) R) Page[R] {
	out := make([]R, 0, len(p.Content))
	for _, item := range p.Content {
		out = append(out, fn(item))
	}
	return Page[R]{
		Content:       out,
		PageNo:        p.PageNo,
		PageSize:      p.PageSize,
		TotalElements: p.TotalElements,
		TotalPages:    p.TotalPages,
		Last:          p.Last,
	}
}
