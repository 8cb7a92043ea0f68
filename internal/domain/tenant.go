package domain

import (
	"time"

	"github.com/google/uuid"
)

// Tenant is the top-level isolation unit. Tenants own users and, through
// them, sessions. Domain is unique across the system and drives request
// routing (domain -> tenant lookup).
type Tenant struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Domain    string    `json:"domain"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewTenant creates an active tenant with a fresh id.
func NewTenant(name, domain string) *Tenant {
	now := time.Now().UTC()
	return &Tenant{
		ID:        uuid.New(),
		Name:      name,
		Domain:    domain,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
