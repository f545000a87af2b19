package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"leadsweep/models"
)

func TestReconcileDedupsByAgentIDAcrossListings(t *testing.T) {
	store := newFakeStore()
	svc := NewContactService(store)
	ctx := context.Background()

	listingA, listingB := uuid.New(), uuid.New()

	first, err := svc.Reconcile(ctx, models.CandidateContact{
		Name:        "Jane Smith",
		PhoneNumber: "(404) 555-0101",
		AgentID:     "agent-7",
	}, listingA)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if first.Outcome != ReconcileCreated {
		t.Fatalf("first outcome = %s, want %s", first.Outcome, ReconcileCreated)
	}

	// Same agent id, different phone, different listing: must link the
	// existing contact, not create a second one.
	second, err := svc.Reconcile(ctx, models.CandidateContact{
		Name:        "Jane Smith",
		PhoneNumber: "(404) 555-0202",
		AgentID:     "agent-7",
	}, listingB)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if second.Outcome != ReconcileLinked {
		t.Fatalf("second outcome = %s, want %s", second.Outcome, ReconcileLinked)
	}
	if second.ContactID != first.ContactID {
		t.Errorf("contact ids differ: %s vs %s", first.ContactID, second.ContactID)
	}
	if len(store.contacts) != 1 {
		t.Errorf("stored contacts = %d, want 1", len(store.contacts))
	}
	if len(store.links[listingA]) != 1 || len(store.links[listingB]) != 1 {
		t.Errorf("links = %d/%d, want 1/1", len(store.links[listingA]), len(store.links[listingB]))
	}
}

func TestReconcileLinksByPhoneAndBackfills(t *testing.T) {
	store := newFakeStore()
	svc := NewContactService(store)
	ctx := context.Background()

	existing := &models.Contact{
		ID:          uuid.New(),
		PhoneNumber: "(912) 555-0164",
		Company:     "Original Brokerage",
		Type:        models.ContactTypeAgent,
		CreatedAt:   time.Now().UTC(),
	}
	if err := store.CreateContact(ctx, existing); err != nil {
		t.Fatalf("CreateContact: %v", err)
	}

	listingID := uuid.New()
	result, err := svc.Reconcile(ctx, models.CandidateContact{
		Name:          "Jane Smith",
		PhoneNumber:   "(912) 555-0164",
		Company:       "Newer Brokerage",
		AgentID:       "agent-new",
		LicenseNumber: "GA-339911",
	}, listingID)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if result.Outcome != ReconcileLinked {
		t.Fatalf("outcome = %s, want %s", result.Outcome, ReconcileLinked)
	}
	if result.ContactID != existing.ID {
		t.Fatalf("contact id = %s, want %s", result.ContactID, existing.ID)
	}

	stored := store.contacts[existing.ID]
	if stored.Name != "Jane Smith" {
		t.Errorf("name = %q, want backfilled Jane Smith", stored.Name)
	}
	if stored.Company != "Original Brokerage" {
		t.Errorf("company = %q, backfill must not overwrite", stored.Company)
	}
	if stored.LicenseNumber != "GA-339911" {
		t.Errorf("license = %q, want backfilled GA-339911", stored.LicenseNumber)
	}
	if stored.AgentID != "" {
		t.Errorf("agent id = %q, backfill must never touch identity keys", stored.AgentID)
	}
}

func TestReconcileCreatesWhenNoMatch(t *testing.T) {
	store := newFakeStore()
	svc := NewContactService(store)
	ctx := context.Background()

	listingID := uuid.New()
	result, err := svc.Reconcile(ctx, models.CandidateContact{
		Name:        "Dana West",
		PhoneNumber: "(229) 555-0177",
	}, listingID)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if result.Outcome != ReconcileCreated {
		t.Fatalf("outcome = %s, want %s", result.Outcome, ReconcileCreated)
	}

	stored := store.contacts[result.ContactID]
	if stored == nil {
		t.Fatal("created contact not stored")
	}
	if stored.Type != models.ContactTypeAgent {
		t.Errorf("type = %q, want default %q", stored.Type, models.ContactTypeAgent)
	}
	if len(store.links[listingID]) != 1 {
		t.Errorf("links = %d, want 1", len(store.links[listingID]))
	}
}

func TestReconcileSameCandidateTwiceIsIdempotent(t *testing.T) {
	store := newFakeStore()
	svc := NewContactService(store)
	ctx := context.Background()

	listingID := uuid.New()
	candidate := models.CandidateContact{Name: "Dana West", PhoneNumber: "(229) 555-0177"}

	if _, err := svc.Reconcile(ctx, candidate, listingID); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	second, err := svc.Reconcile(ctx, candidate, listingID)
	if err != nil {
		t.Fatalf("Reconcile again: %v", err)
	}
	if second.Outcome != ReconcileLinked {
		t.Fatalf("second outcome = %s, want %s", second.Outcome, ReconcileLinked)
	}
	if len(store.contacts) != 1 || len(store.links[listingID]) != 1 {
		t.Errorf("contacts/links = %d/%d, want 1/1", len(store.contacts), len(store.links[listingID]))
	}
}

func TestReconcileCreateRaceLinksExisting(t *testing.T) {
	store := newFakeStore()
	svc := NewContactService(store)

	race := &models.Contact{
		ID:          uuid.New(),
		AgentID:     "agent-9",
		PhoneNumber: "(555) 111-2222",
	}
	store.raceContact = race

	result, err := svc.Reconcile(context.Background(), models.CandidateContact{
		PhoneNumber: "(555) 111-2222",
		AgentID:     "agent-9",
	}, uuid.New())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if result.Outcome != ReconcileLinked {
		t.Fatalf("outcome = %s, want %s", result.Outcome, ReconcileLinked)
	}
	if result.ContactID != race.ID {
		t.Errorf("contact id = %s, want the concurrent writer's %s", result.ContactID, race.ID)
	}
}

func TestReconcileRejectsPhonelessCandidate(t *testing.T) {
	svc := NewContactService(newFakeStore())

	_, err := svc.Reconcile(context.Background(), models.CandidateContact{Name: "No Phone"}, uuid.New())
	if err == nil {
		t.Fatal("expected error for candidate without phone")
	}
}
