package models

import (
	"time"

	"github.com/google/uuid"
)

// Unknown is the sentinel stored for descriptive fields the source omitted.
const Unknown = "Unknown"

type ListingStatus string

const (
	ListingStatusNew ListingStatus = "NEW"
)

type ListingPriority string

const (
	PriorityLow    ListingPriority = "LOW"
	PriorityMedium ListingPriority = "MEDIUM"
	PriorityHigh   ListingPriority = "HIGH"
)

type ListingSource string

const (
	SourceZillow ListingSource = "ZILLOW"
)

// Listing is one property offering, deduplicated by the source's external id.
// Rows are created once and never deleted; only contact_fetch_attempts and
// the contact links change afterwards.
type Listing struct {
	ID                   uuid.UUID       `json:"id" db:"id"`
	ExternalID           string          `json:"external_id" db:"external_id"`
	Address              string          `json:"address" db:"address"`
	PriceText            string          `json:"price_text" db:"price_text"`
	BedsText             string          `json:"beds_text" db:"beds_text"`
	DetailURL            string          `json:"detail_url" db:"detail_url"`
	PostalCode           string          `json:"postal_code" db:"postal_code"`
	RegionLabel          string          `json:"region_label" db:"region_label"`
	Status               ListingStatus   `json:"status" db:"status"`
	Priority             ListingPriority `json:"priority" db:"priority"`
	Source               ListingSource   `json:"source" db:"source"`
	ContactFetchAttempts int             `json:"contact_fetch_attempts" db:"contact_fetch_attempts"`
	CreatedAt            time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at" db:"updated_at"`
}
