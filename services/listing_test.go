package services

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"leadsweep/models"
)

func TestUpsertListingCreatedThenExists(t *testing.T) {
	store := newFakeStore()
	svc := NewListingService(store, nil)
	ctx := context.Background()

	raw := models.RawListing{
		"zpid":      "70982473",
		"address":   "123 Main St, Atlanta, GA",
		"detailUrl": "https://www.zillow.com/homedetails/70982473_zpid/",
	}

	first, err := svc.UpsertListing(ctx, raw)
	if err != nil {
		t.Fatalf("UpsertListing: %v", err)
	}
	if first.Outcome != UpsertCreated {
		t.Fatalf("first outcome = %s, want %s", first.Outcome, UpsertCreated)
	}

	second, err := svc.UpsertListing(ctx, raw)
	if err != nil {
		t.Fatalf("UpsertListing again: %v", err)
	}
	if second.Outcome != UpsertExists {
		t.Fatalf("second outcome = %s, want %s", second.Outcome, UpsertExists)
	}
	if second.ListingID != first.ListingID {
		t.Errorf("exists returned id %s, want %s", second.ListingID, first.ListingID)
	}
	if len(store.listings) != 1 {
		t.Errorf("stored listings = %d, want 1", len(store.listings))
	}
}

func TestUpsertListingRejectsMissingExternalID(t *testing.T) {
	store := newFakeStore()
	svc := NewListingService(store, nil)

	result, err := svc.UpsertListing(context.Background(), models.RawListing{"address": "No ID Rd"})
	if err != nil {
		t.Fatalf("UpsertListing: %v", err)
	}
	if result.Outcome != UpsertRejected {
		t.Fatalf("outcome = %s, want %s", result.Outcome, UpsertRejected)
	}
	if result.Reason == "" {
		t.Error("rejected result carries no reason")
	}
	if len(store.listings) != 0 {
		t.Errorf("stored listings = %d, want 0", len(store.listings))
	}
}

func TestUpsertListingRejectsImplausibleExternalID(t *testing.T) {
	store := newFakeStore()
	svc := NewListingService(store, nil)

	raw := models.RawListing{"zpid": strings.Repeat("7", 65)}
	result, err := svc.UpsertListing(context.Background(), raw)
	if err != nil {
		t.Fatalf("UpsertListing: %v", err)
	}
	if result.Outcome != UpsertRejected {
		t.Fatalf("outcome = %s, want %s", result.Outcome, UpsertRejected)
	}
	if len(store.listings) != 0 {
		t.Errorf("stored listings = %d, want 0", len(store.listings))
	}
}

func TestUpsertListingFieldFallbacks(t *testing.T) {
	store := newFakeStore()
	svc := NewListingService(store, nil)
	ctx := context.Background()

	raw := models.RawListing{
		"externalId": "881220",
		"link":       "/homedetails/881220_zpid/",
		"zipCode":    "31401",
		"city":       "Savannah",
		"state":      "GA",
	}

	result, err := svc.UpsertListing(ctx, raw)
	if err != nil {
		t.Fatalf("UpsertListing: %v", err)
	}
	if result.Outcome != UpsertCreated {
		t.Fatalf("outcome = %s, want %s", result.Outcome, UpsertCreated)
	}

	stored, err := store.FindListingByExternalID(ctx, "881220")
	if err != nil || stored == nil {
		t.Fatalf("stored listing missing: %v", err)
	}
	if stored.DetailURL != "https://www.zillow.com/homedetails/881220_zpid/" {
		t.Errorf("detail url = %q, relative link not resolved", stored.DetailURL)
	}
	if stored.PostalCode != "31401" {
		t.Errorf("postal code = %q, want 31401", stored.PostalCode)
	}
	if stored.RegionLabel != "Savannah, GA" {
		t.Errorf("region label = %q, want Savannah, GA", stored.RegionLabel)
	}
	if stored.Address != models.Unknown || stored.PriceText != models.Unknown {
		t.Errorf("missing descriptive fields = %q/%q, want %q sentinels", stored.Address, stored.PriceText, models.Unknown)
	}
	if stored.ContactFetchAttempts != 0 {
		t.Errorf("attempts = %d, want 0", stored.ContactFetchAttempts)
	}
}

func TestUpsertListingStateFilter(t *testing.T) {
	store := newFakeStore()
	svc := NewListingService(store, []string{"GA", "LA", "FL"})
	ctx := context.Background()

	skipped, err := svc.UpsertListing(ctx, models.RawListing{"zpid": "1", "addressState": "NY"})
	if err != nil {
		t.Fatalf("UpsertListing: %v", err)
	}
	if skipped.Outcome != UpsertSkipped {
		t.Fatalf("outcome = %s, want %s", skipped.Outcome, UpsertSkipped)
	}

	// A payload with no state at all is kept; only a known foreign state
	// is filtered.
	kept, err := svc.UpsertListing(ctx, models.RawListing{"zpid": "2"})
	if err != nil {
		t.Fatalf("UpsertListing: %v", err)
	}
	if kept.Outcome != UpsertCreated {
		t.Fatalf("outcome = %s, want %s", kept.Outcome, UpsertCreated)
	}

	targeted, err := svc.UpsertListing(ctx, models.RawListing{"zpid": "3", "addressState": "ga"})
	if err != nil {
		t.Fatalf("UpsertListing: %v", err)
	}
	if targeted.Outcome != UpsertCreated {
		t.Fatalf("outcome = %s, want %s (state match is case-insensitive)", targeted.Outcome, UpsertCreated)
	}
}

func TestUpsertListingDuplicateRaceReturnsExists(t *testing.T) {
	store := newFakeStore()
	svc := NewListingService(store, nil)

	race := &models.Listing{ID: uuid.New(), ExternalID: "90001"}
	store.raceListing = race

	result, err := svc.UpsertListing(context.Background(), models.RawListing{"zpid": "90001"})
	if err != nil {
		t.Fatalf("UpsertListing: %v", err)
	}
	if result.Outcome != UpsertExists {
		t.Fatalf("outcome = %s, want %s", result.Outcome, UpsertExists)
	}
	if result.ListingID != race.ID {
		t.Errorf("listing id = %s, want the concurrent writer's %s", result.ListingID, race.ID)
	}
}
