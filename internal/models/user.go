package models

// AuthUser is the verified caller identity attached to the request
// context by the auth middleware.
type AuthUser struct {
	ID      int64  `json:"id"`
	Subject string `json:"subject"`
	Email   string `json:"email,omitempty"`
}

// JWTClaims are the claims this service reads from a verified bearer token
type JWTClaims struct {
	Sub    string
	Email  string
	UserID int64
	Iss    string
	Aud    string
	Exp    int64
	Iat    int64
}
