// internal/model/tenant.go
package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrTenantNotFound = errors.New("tenant not found")
	ErrPrefixInUse    = errors.New("table prefix already in use")
)

type Tenant struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	TablePrefix string    `db:"table_prefix" json:"table_prefix"`
	LogoURL     *string   `db:"logo_url" json:"logo_url,omitempty"`
	Email       string    `db:"email" json:"email"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Address is optional contact data captured at provisioning time.
type Address struct {
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

type User struct {
	ID     uuid.UUID `db:"id"`
	Email  string    `db:"email"`
	Status string    `db:"status"`
}

const (
	UserStatusInvited = "invited"
	UserStatusActive  = "active"
)

// Credential is a per-channel placeholder row filled in later by the sync pipeline.
type Credential struct {
	TenantID uuid.UUID `db:"tenant_id"`
	Channel  Channel   `db:"channel"`
	Key      string    `db:"credential_key"`
	Value    string    `db:"credential_value"`
}
