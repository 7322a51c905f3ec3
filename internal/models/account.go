package models

import (
	"strings"
	"time"
)

// Account is an API credential bound to an on-protocol address. The address
// is what the registry authorizes against; the account is only the HTTP-side
// login for it.
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Address      Address   `json:"address"`
	Admin        bool      `json:"admin"`
	CreatedAt    time.Time `json:"created_at"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *RegisterRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if !strings.Contains(r.Email, "@") {
		errors["email"] = "Valid email required"
	}
	if len(r.Password) < 8 {
		errors["password"] = "Password must be at least 8 characters"
	}
	return errors
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token   string  `json:"token"`
	Account Account `json:"account"`
}
