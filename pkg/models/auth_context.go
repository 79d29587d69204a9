package models

import "github.com/google/uuid"

// AuthContext is the request-scoped identity produced by the authentication
// resolver. It is derived on every request and never persisted.
type AuthContext struct {
	UserID   uuid.UUID `json:"user_id"`
	TenantID uuid.UUID `json:"tenant_id"`
	Email    string    `json:"email"`
	Role     string    `json:"role"`
}
