package domain

import "time"

// PasswordResetToken es un token de un solo uso con expiración.
type PasswordResetToken struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}
