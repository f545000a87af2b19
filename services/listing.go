package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"leadsweep/models"
	"leadsweep/storage"
)

type UpsertOutcome string

const (
	UpsertCreated  UpsertOutcome = "created"
	UpsertExists   UpsertOutcome = "exists"
	UpsertSkipped  UpsertOutcome = "skipped"
	UpsertRejected UpsertOutcome = "rejected"
)

type UpsertResult struct {
	Outcome   UpsertOutcome
	ListingID uuid.UUID
	Reason    string
}

// ListingService maps raw search payloads onto stored listings. The store's
// unique constraint on external_id is the dedup authority; a create racing
// an existing row is reported as exists, not as a failure.
type ListingService struct {
	store         storage.Store
	allowedStates map[string]bool
}

// NewListingService returns a service that skips listings whose state is
// known and not in states. An empty states list disables the filter.
func NewListingService(store storage.Store, states []string) *ListingService {
	allowed := make(map[string]bool, len(states))
	for _, s := range states {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			allowed[s] = true
		}
	}
	return &ListingService{store: store, allowedStates: allowed}
}

// UpsertListing creates the listing if its external id is unseen. Every
// descriptive field falls back through alternative payload keys before
// defaulting; a missing or implausible external id is the only rejection.
func (s *ListingService) UpsertListing(ctx context.Context, raw models.RawListing) (UpsertResult, error) {
	externalID := raw.String("zpid", "externalId", "external_id", "id")
	if externalID == "" {
		return UpsertResult{Outcome: UpsertRejected, Reason: "missing external id"}, nil
	}
	if len(externalID) > 64 {
		return UpsertResult{Outcome: UpsertRejected, Reason: "implausible external id"}, nil
	}

	existing, err := s.store.FindListingByExternalID(ctx, externalID)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("find listing %s: %w", externalID, err)
	}
	if existing != nil {
		return UpsertResult{Outcome: UpsertExists, ListingID: existing.ID}, nil
	}

	state := raw.String("addressState", "state")
	if state != "" && len(s.allowedStates) > 0 && !s.allowedStates[strings.ToUpper(state)] {
		return UpsertResult{Outcome: UpsertSkipped, Reason: "state " + state + " not targeted"}, nil
	}

	now := time.Now().UTC()
	listing := &models.Listing{
		ID:          uuid.New(),
		ExternalID:  externalID,
		Address:     raw.StringOr(models.Unknown, "address", "streetAddress", "addressStreet"),
		PriceText:   raw.StringOr(models.Unknown, "price", "priceText", "unformattedPrice"),
		BedsText:    raw.StringOr(models.Unknown, "beds", "bedrooms"),
		DetailURL:   detailURL(raw),
		PostalCode:  raw.StringOr(models.Unknown, "addressZipcode", "zipCode", "postal_code"),
		RegionLabel: regionLabel(raw),
		Status:      models.ListingStatusNew,
		Priority:    models.PriorityMedium,
		Source:      models.SourceZillow,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.store.CreateListing(ctx, listing)
	if err == storage.ErrDuplicate {
		// Lost a race against a concurrent writer; the row is there now.
		existing, err = s.store.FindListingByExternalID(ctx, externalID)
		if err != nil {
			return UpsertResult{}, fmt.Errorf("refetch listing %s: %w", externalID, err)
		}
		if existing == nil {
			return UpsertResult{}, fmt.Errorf("listing %s: duplicate on create but not found", externalID)
		}
		return UpsertResult{Outcome: UpsertExists, ListingID: existing.ID}, nil
	}
	if err != nil {
		return UpsertResult{}, fmt.Errorf("create listing %s: %w", externalID, err)
	}

	return UpsertResult{Outcome: UpsertCreated, ListingID: listing.ID}, nil
}

func detailURL(raw models.RawListing) string {
	url := raw.String("detailUrl", "detail_url", "link", "url")
	if strings.HasPrefix(url, "/") {
		return "https://www.zillow.com" + url
	}
	return url
}

func regionLabel(raw models.RawListing) string {
	city := raw.String("addressCity", "city")
	state := raw.String("addressState", "state")
	if city == "" || state == "" {
		return models.Unknown
	}
	return city + ", " + state
}
