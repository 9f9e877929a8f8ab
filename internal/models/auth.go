package models

import "github.com/golang-jwt/jwt/v5"

type Role string

const (
	RoleCivilian Role = "CIVILIAN"
	RoleAgency   Role = "AGENCY"
	RoleAdmin    Role = "ADMIN"
)

type Profile struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Role        Role   `json:"role,omitempty"`
}

type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	ClientType string `json:"client_type,omitempty"`
}

type LoginResponse struct {
	User    Profile `json:"user"`
	Access  string  `json:"access"`
	Refresh string  `json:"refresh"`
}

type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

type RefreshResponse struct {
	Access string `json:"access"`
	// present when the server rotates refresh tokens
	Refresh string `json:"refresh,omitempty"`
}

type RegisterDeviceRequest struct {
	PushToken string `json:"push_token"`
}

// TokenClaims mirrors the claims the backend puts in access and refresh
// tokens.
type TokenClaims struct {
	UserID    int64  `json:"user_id"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}
