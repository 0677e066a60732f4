package domain

import "time"

// ResetCode es un código de un solo uso para restablecer la contraseña,
// ligado a un email. USED y EXPIRED son estados terminales.
type ResetCode struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Code      string    `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
	Used      bool      `json:"used"`
}

// ExpiredAt reporta si el código ya no es válido en el instante now.
func (r ResetCode) ExpiredAt(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// ActiveAt reporta si el código puede canjearse en el instante now.
func (r ResetCode) ActiveAt(now time.Time) bool {
	return !r.Used && !r.ExpiredAt(now)
}
