package models

import (
	"time"

	"github.com/google/uuid"
)

type ContactType string

const (
	ContactTypeAgent  ContactType = "AGENT"
	ContactTypeBroker ContactType = "BROKER"
)

// Contact is one agent or broker. agent_id is the strongest identity key and
// is unique when present; the normalized phone number is the fallback key.
// Empty string means absent for the optional text fields.
type Contact struct {
	ID            uuid.UUID   `json:"id" db:"id"`
	AgentID       string      `json:"agent_id" db:"agent_id"`
	PhoneNumber   string      `json:"phone_number" db:"phone_number"`
	Name          string      `json:"name" db:"name"`
	Company       string      `json:"company" db:"company"`
	LicenseNumber string      `json:"license_number" db:"license_number"`
	Type          ContactType `json:"type" db:"type"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at" db:"updated_at"`
}

// CandidateContact is an extractor-produced contact that has not been checked
// against the store yet. PhoneNumber is already in canonical display form;
// the extractor never emits a candidate without one.
type CandidateContact struct {
	Name          string      `json:"name"`
	PhoneNumber   string      `json:"phone_number"`
	Company       string      `json:"company"`
	AgentID       string      `json:"agent_id"`
	LicenseNumber string      `json:"license_number"`
	Type          ContactType `json:"type"`
}
