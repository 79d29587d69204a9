package models

import (
	"time"

	"github.com/google/uuid"
)

// Tenant represents an isolated customer organization. Every user and
// business record belongs to exactly one tenant. Domain is unique and is
// never changed after creation.
type Tenant struct {
	ID        uuid.UUID `db:"tenant_id"     json:"tenant_id"`
	Name      string    `db:"tenant_name"   json:"tenant_name"`
	Domain    string    `db:"tenant_domain" json:"tenant_domain"`
	CreatedAt time.Time `db:"created_at"    json:"created_at"`
}
